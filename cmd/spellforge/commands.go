package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/spellforge/internal/analysis"
	"github.com/cory-johannsen/spellforge/internal/effect"
	"github.com/cory-johannsen/spellforge/internal/formula"
	"github.com/cory-johannsen/spellforge/internal/preset"
	"github.com/cory-johannsen/spellforge/internal/preview"
	"github.com/cory-johannsen/spellforge/internal/scripting"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <formula>...",
		Short: "Check that each argument is a valid formula",
		Long:  "Checks every argument as a separate formula and prints its canonical form. Exits non-zero when any is invalid.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			invalid := 0
			for _, src := range args {
				expr, err := a.cache.Parse(src)
				if err != nil {
					invalid++
					fmt.Fprintf(out, "invalid  %s: %v\n", src, err)
					continue
				}
				fmt.Fprintf(out, "valid    %s\n", expr)
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d formulas invalid", invalid, len(args))
			}
			return nil
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	var scale string
	cmd := &cobra.Command{
		Use:   "stats <formula>",
		Short: "Show minimum, maximum, average, terms and severity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := analysis.ParseScale(scale)
			if err != nil {
				return err
			}
			expr, err := a.cache.Parse(strings.Join(args, " "))
			if err != nil {
				return err
			}
			st, err := formula.Stats(expr)
			if err != nil {
				return err
			}
			terms, err := formula.Terms(expr)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "formula:  %s\n", expr)
			fmt.Fprintf(out, "stats:    %s\n", st)
			if len(terms) > 1 {
				fmt.Fprintf(out, "terms:    %s\n", formula.DescribeTerms(terms))
			}
			if st.Known(formula.FieldAverage) {
				band := analysis.Assess(st.Average, sc)
				fmt.Fprintf(out, "severity: %s - %s\n", band.Label, band.Description)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scale, "scale", "standard", "difficulty scale: standard or combat")
	return cmd
}

func newEvalCmd(a *app) *cobra.Command {
	var cf contextFlags
	cmd := &cobra.Command{
		Use:   "eval <formula>",
		Short: "Evaluate a formula against a context",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, _, err := a.resolve(cmd, args, &cf)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), preview.Number(res.Value))
			return nil
		},
	}
	cf.register(cmd)
	return cmd
}

func newChainCmd(a *app) *cobra.Command {
	var (
		cf           contextFlags
		targets      int
		falloff      string
		rate, floor  float64
		compounding  bool
		fullJumps    int
		acceleration float64
	)
	cmd := &cobra.Command{
		Use:   "chain <formula>",
		Short: "Spread a resolved value across chained targets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			p := effect.ChainParams{FalloffType: falloff}
			if flags.Changed("targets") {
				p.TargetCount = &targets
			}
			if flags.Changed("rate") {
				p.FalloffRate = &rate
			}
			if flags.Changed("floor") {
				p.MinimumFloor = &floor
			}
			if flags.Changed("compounding") {
				p.Compounding = &compounding
			}
			if flags.Changed("full-jumps") {
				p.FullEffectJumps = &fullJumps
			}
			if flags.Changed("acceleration") {
				p.Acceleration = &acceleration
			}
			cfg, err := effect.NewChainConfig(p, a.defaults)
			if err != nil {
				return err
			}
			res, _, err := a.resolve(cmd, args, &cf)
			if err != nil {
				return err
			}
			chain, err := effect.ResolveChain(res.Value, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", preview.Numbers(chain.PerTarget), preview.Number(chain.Total))
			return nil
		},
	}
	cf.register(cmd)
	fs := cmd.Flags()
	fs.IntVar(&targets, "targets", 0, "number of targets (default from config)")
	fs.StringVar(&falloff, "falloff", "", "falloff type: percentage, flat, stepped or accelerating (default from config)")
	fs.Float64Var(&rate, "rate", 0, "falloff rate per jump (default from config)")
	fs.Float64Var(&floor, "floor", 0, "minimum value for targets after the first")
	fs.BoolVar(&compounding, "compounding", true, "apply percentage falloff to the previous target")
	fs.IntVar(&fullJumps, "full-jumps", 0, "jumps at full strength for stepped falloff (default from config)")
	fs.Float64Var(&acceleration, "acceleration", 0, "extra percent per jump for accelerating falloff (default from config)")
	return cmd
}

func newCritCmd(a *app) *cobra.Command {
	var (
		cf         contextFlags
		multiplier float64
		bonus      string
	)
	cmd := &cobra.Command{
		Use:   "crit <formula>",
		Short: "Resolve a critical hit and its range",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := effect.CriticalParams{Bonus: bonus}
			if cmd.Flags().Changed("multiplier") {
				p.Multiplier = &multiplier
			}
			cfg, err := effect.NewCriticalConfig(p, a.defaults)
			if err != nil {
				return err
			}
			res, ctx, err := a.resolve(cmd, args, &cf)
			if err != nil {
				return err
			}
			value, err := effect.ResolveCritical(res.Value, cfg, ctx)
			if err != nil {
				return err
			}
			expr, err := a.cache.Parse(res.Source)
			if err != nil {
				return err
			}
			base, err := formula.Stats(expr)
			if err != nil {
				return err
			}
			st, err := effect.CriticalStats(base, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s [%s]\n", preview.Number(value), st)
			return nil
		},
	}
	cf.register(cmd)
	cmd.Flags().Float64Var(&multiplier, "multiplier", 0, "critical multiplier, at least 1 (default from config)")
	cmd.Flags().StringVar(&bonus, "bonus", "", "bonus formula added to the multiplied value, e.g. 2d8")
	return cmd
}

func newTicksCmd(a *app) *cobra.Command {
	var (
		cf      contextFlags
		count   int
		scaling string
	)
	cmd := &cobra.Command{
		Use:   "ticks <per-tick formula>",
		Short: "Resolve an effect over time",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := effect.TickParams{Expression: strings.Join(args, " "), Scaling: scaling}
			if cmd.Flags().Changed("count") {
				p.Count = &count
			}
			cfg, err := effect.NewTickConfig(p, a.defaults)
			if err != nil {
				return err
			}
			ctx, _, err := cf.build()
			if err != nil {
				return err
			}
			ticks, err := effect.EvaluateTicks(cfg, ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", preview.Numbers(ticks.PerTick), preview.Number(ticks.Total))
			return nil
		},
	}
	cf.register(cmd)
	cmd.Flags().IntVar(&count, "count", 0, "number of ticks (default from config)")
	cmd.Flags().StringVar(&scaling, "scaling", "", "flat, front_loaded, back_loaded or pulsing (default from config)")
	return cmd
}

func newSuggestCmd(_ *app) *cobra.Command {
	var (
		variance   string
		maxDice    int
		noModifier bool
		anyDie     bool
	)
	cmd := &cobra.Command{
		Use:   "suggest <average>",
		Short: "Propose NdM+K dice for a target average",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("%q is not a number", args[0])
			}
			v, err := analysis.ParseVariance(variance)
			if err != nil {
				return err
			}
			sg, err := analysis.Suggest(target, analysis.SuggestOptions{
				Variance:       v,
				MaxDice:        maxDice,
				NoModifier:     noModifier,
				AnyStandardDie: anyDie,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (avg %s)\n", sg.Notation(), preview.Number(sg.Average))
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&variance, "variance", "medium", "low, medium or high")
	fs.IntVar(&maxDice, "max-dice", 0, "largest die count to consider (0 means 10)")
	fs.BoolVar(&noModifier, "no-modifier", false, "forbid a flat modifier")
	fs.BoolVar(&anyDie, "any-die", false, "search every standard die, not just the variance profile's")
	return cmd
}

func newPreviewCmd(a *app) *cobra.Command {
	var (
		cf  contextFlags
		all bool
	)
	cmd := &cobra.Command{
		Use:   "preview [preset-id]...",
		Short: "Preview presets from the preset directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return errors.New("name at least one preset or pass --all")
			}
			dir := a.cfg.Presets.Dir
			if dir == "" {
				return errors.New("no preset directory: set presets.dir or pass --presets")
			}
			lib, err := preset.LoadDirectory(dir, a.defaults)
			if err != nil {
				return err
			}

			var hooks preview.HookRunner
			if a.cfg.Scripting.Enabled {
				mgr := scripting.NewManager(a.logger)
				if err := mgr.Load(a.cfg.Scripting.Dir, a.cfg.Scripting.InstructionLimit); err != nil {
					return err
				}
				defer mgr.Close()
				hooks = mgr
			}
			previewer := preview.NewPreviewer(a.resolver, hooks, a.logger)

			ctx, _, err := cf.build()
			if err != nil {
				return err
			}
			presets := lib.All()
			if !all {
				presets = nil
				for _, id := range args {
					p, ok := lib.Get(id)
					if !ok {
						return fmt.Errorf("unknown preset %q", id)
					}
					presets = append(presets, p)
				}
			}
			out := cmd.OutOrStdout()
			for i, p := range presets {
				report, err := previewer.Preview(p, ctx)
				if err != nil {
					return err
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprint(out, preview.Render(report))
			}
			return nil
		},
	}
	cf.register(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "preview every preset")
	cmd.Flags().String("presets", "", "preset directory (overrides presets.dir)")
	_ = a.v.BindPFlag("presets.dir", cmd.Flags().Lookup("presets"))
	return cmd
}

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cory-johannsen/spellforge/internal/config"
	"github.com/cory-johannsen/spellforge/internal/effect"
	"github.com/cory-johannsen/spellforge/internal/formula"
	"github.com/cory-johannsen/spellforge/internal/observability"
	"github.com/cory-johannsen/spellforge/internal/resolution"
)

// app is the state shared by every subcommand, built once the flags are parsed.
type app struct {
	v        *viper.Viper
	cfg      config.Config
	logger   *zap.Logger
	defaults effect.Defaults
	cache    *formula.Cache
	resolver *resolution.Resolver
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}
	// The CLI logs to stderr and should stay quiet unless asked.
	a.v.SetDefault("logging.level", "warn")
	a.v.SetDefault("logging.format", "console")

	var configPath string
	root := &cobra.Command{
		Use:          "spellforge",
		Short:        "Check, analyze and resolve effect formulas",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init(configPath)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	_ = a.v.BindPFlag("logging.level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		newValidateCmd(a),
		newStatsCmd(a),
		newEvalCmd(a),
		newChainCmd(a),
		newCritCmd(a),
		newTicksCmd(a),
		newSuggestCmd(a),
		newPreviewCmd(a),
	)
	return root
}

func (a *app) init(configPath string) error {
	if configPath != "" {
		a.v.SetConfigFile(configPath)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	}
	cfg, err := config.LoadFromViper(a.v)
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defaults, err := cfg.Engine.EffectDefaults()
	if err != nil {
		return fmt.Errorf("engine defaults: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	a.defaults = defaults
	a.cache = formula.NewCache(cfg.Engine.CacheSize)
	a.resolver = resolution.NewResolver(a.cache, logger)
	logger.Debug("configuration loaded", zap.String("config", configPath))
	return nil
}

// contextFlags collect the bindings a formula is evaluated against.
type contextFlags struct {
	vars   []string
	method string
	hand   string
	flips  string
}

func (f *contextFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringArrayVarP(&f.vars, "var", "v", nil, "bind a variable, NAME=VALUE (repeatable)")
	fs.StringVarP(&f.method, "method", "m", "", "resolution method: dice, cards or coins (default from --hand/--flips, else dice)")
	fs.StringVar(&f.hand, "hand", "", "bind card vocabulary from a hand, e.g. \"AH KS 7D\"")
	fs.StringVar(&f.flips, "flips", "", "bind coin vocabulary from flips, e.g. HHT")
}

// build returns the context and method. Explicit --var bindings override
// vocabulary derived from --hand and --flips.
func (f *contextFlags) build() (formula.Context, resolution.Method, error) {
	ctx := formula.NewContext()
	implied := resolution.MethodDice
	if f.hand != "" {
		hand, err := resolution.ParseHand(f.hand)
		if err != nil {
			return ctx, "", err
		}
		ctx = ctx.Merge(resolution.CardContext(hand))
		implied = resolution.MethodCards
	}
	if f.flips != "" {
		flips, err := resolution.ParseFlips(f.flips)
		if err != nil {
			return ctx, "", err
		}
		ctx = ctx.Merge(resolution.CoinContext(flips))
		implied = resolution.MethodCoins
	}
	for _, kv := range f.vars {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return ctx, "", fmt.Errorf("--var %q: want NAME=VALUE", kv)
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return ctx, "", fmt.Errorf("--var %q: %q is not a number", kv, value)
		}
		ctx = ctx.With(strings.TrimSpace(name), n)
	}

	method := implied
	if f.method != "" {
		m, err := resolution.ParseMethod(f.method)
		if err != nil {
			return ctx, "", err
		}
		method = m
	}
	return ctx, method, nil
}

// resolve evaluates the formula formed by args, warning on stderr about
// vocabulary that does not match the method.
func (a *app) resolve(cmd *cobra.Command, args []string, cf *contextFlags) (resolution.Resolution, formula.Context, error) {
	ctx, method, err := cf.build()
	if err != nil {
		return resolution.Resolution{}, ctx, err
	}
	res, err := a.resolver.Resolve(strings.Join(args, " "), ctx, method)
	if err != nil {
		return res, ctx, err
	}
	if len(res.Foreign) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "note: %s not %s vocabulary\n", strings.Join(res.Foreign, ", "), method)
	}
	return res, ctx, nil
}

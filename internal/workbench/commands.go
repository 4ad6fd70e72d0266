package workbench

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/cory-johannsen/spellforge/internal/analysis"
	"github.com/cory-johannsen/spellforge/internal/effect"
	"github.com/cory-johannsen/spellforge/internal/formula"
	"github.com/cory-johannsen/spellforge/internal/preview"
	"github.com/cory-johannsen/spellforge/internal/resolution"
)

const (
	distRows     = 40
	distBarWidth = 30
)

var (
	identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	diceLike   = regexp.MustCompile(`(?i)^d[0-9]+(k[0-9]+)?$`)
)

// BuiltinCommands returns all built-in workbench commands.
func BuiltinCommands() []Command {
	return []Command{
		// Formula commands
		{Name: "valid", Aliases: []string{"check"}, Usage: "valid <formula>", Help: "Check whether a formula parses", Category: CategoryFormula, Run: runValid},
		{Name: "stats", Usage: "stats <formula>", Help: "Show minimum, maximum and average", Category: CategoryFormula, Run: runStats},
		{Name: "terms", Usage: "terms <formula>", Help: "Break a formula into signed terms", Category: CategoryFormula, Run: runTerms},
		{Name: "eval", Aliases: []string{"e"}, Usage: "eval <formula>", Help: "Evaluate a formula against the session context", Category: CategoryFormula, Run: runEval},

		// Context commands
		{Name: "let", Aliases: []string{"set"}, Usage: "let <name> <formula>", Help: "Bind a variable to the value of a formula", Category: CategoryContext, Run: runLet},
		{Name: "unlet", Aliases: []string{"unset"}, Usage: "unlet <name>", Help: "Remove a binding", Category: CategoryContext, Run: runUnlet},
		{Name: "vars", Aliases: []string{"context"}, Usage: "vars", Help: "List the session's bindings", Category: CategoryContext, Run: runVars},
		{Name: "method", Usage: "method [dice|cards|coins]", Help: "Show or set the resolution method", Category: CategoryContext, Run: runMethod},
		{Name: "hand", Usage: "hand <cards>", Help: "Bind card vocabulary from a hand, e.g. hand AH KS 7D", Category: CategoryContext, Run: runHand},
		{Name: "flips", Usage: "flips <coins>", Help: "Bind coin vocabulary from flips, e.g. flips HHT", Category: CategoryContext, Run: runFlips},
		{Name: "clear", Aliases: []string{"reset"}, Usage: "clear", Help: "Drop all bindings and return to dice", Category: CategoryContext, Run: runClear},

		// Effect commands
		{Name: "chain", Usage: "chain <formula> [targets=N] [falloff=percentage|flat|stepped|accelerating] [rate=R] [floor=F] [compounding=true|false] [full=N] [accel=A]", Help: "Spread a value across chained targets", Category: CategoryEffect, Run: runChain},
		{Name: "crit", Aliases: []string{"critical"}, Usage: "crit <formula> [multiplier=M] [bonus=<formula>]", Help: "Resolve a critical hit", Category: CategoryEffect, Run: runCrit},
		{Name: "ticks", Aliases: []string{"dot"}, Usage: "ticks <per-tick formula> [count=N] [scaling=flat|front_loaded|back_loaded|pulsing]", Help: "Resolve an effect over time", Category: CategoryEffect, Run: runTicks},

		// Analysis commands
		{Name: "dist", Aliases: []string{"distribution"}, Usage: "dist <formula>", Help: "Show the exact outcome distribution", Category: CategoryAnalysis, Run: runDist},
		{Name: "suggest", Usage: "suggest <average> [variance=low|medium|high] [max=N] [modifier=true|false] [any=true|false]", Help: "Propose dice for a target average", Category: CategoryAnalysis, Run: runSuggest},
		{Name: "assess", Usage: "assess <formula> [scale=standard|combat]", Help: "Place a formula's average on a difficulty scale", Category: CategoryAnalysis, Run: runAssess},
		{Name: "compare", Aliases: []string{"cmp"}, Usage: "compare <formula> | <formula>", Help: "Contrast two formulas", Category: CategoryAnalysis, Run: runCompare},

		// Preset commands
		{Name: "preset", Usage: "preset <id>", Help: "Preview a preset with the session context", Category: CategoryPreset, Run: runPreset},
		{Name: "presets", Usage: "presets", Help: "List loaded presets", Category: CategoryPreset, Run: runPresets},

		// System commands
		{Name: "help", Aliases: []string{"?"}, Usage: "help [command]", Help: "List commands or describe one", Category: CategorySystem, Run: runHelp},
		{Name: "quit", Aliases: []string{"exit", "q"}, Usage: "quit", Help: "End the session", Category: CategorySystem, Run: runQuit},
	}
}

func (s *Session) parse(source string) (formula.Expression, error) {
	if strings.TrimSpace(source) == "" {
		return nil, ErrUsage
	}
	return s.wb.cache.Parse(source)
}

func (s *Session) resolve(source string) (resolution.Resolution, error) {
	if strings.TrimSpace(source) == "" {
		return resolution.Resolution{}, ErrUsage
	}
	return s.wb.resolver.Resolve(source, s.ctx, s.method)
}

func runValid(s *Session, in Input) (string, error) {
	expr, err := s.parse(in.RawArgs)
	switch {
	case errors.Is(err, ErrUsage):
		return "", err
	case err != nil:
		return "invalid: " + err.Error(), nil
	}
	return "valid: " + expr.String(), nil
}

func runStats(s *Session, in Input) (string, error) {
	expr, err := s.parse(in.RawArgs)
	if err != nil {
		return "", err
	}
	st, err := formula.Stats(expr)
	if err != nil {
		return "", err
	}
	return st.String(), nil
}

func runTerms(s *Session, in Input) (string, error) {
	expr, err := s.parse(in.RawArgs)
	if err != nil {
		return "", err
	}
	terms, err := formula.Terms(expr)
	if err != nil {
		return "", err
	}
	return formula.DescribeTerms(terms), nil
}

func runEval(s *Session, in Input) (string, error) {
	res, err := s.resolve(in.RawArgs)
	if err != nil {
		return "", err
	}
	lines := []string{"= " + preview.Number(res.Value)}
	if len(res.Foreign) > 0 {
		lines = append(lines, fmt.Sprintf("note: %s not %s vocabulary", strings.Join(res.Foreign, ", "), res.Method))
	}
	return strings.Join(lines, "\n"), nil
}

func runLet(s *Session, in Input) (string, error) {
	i := strings.IndexFunc(in.RawArgs, func(r rune) bool { return unicode.IsSpace(r) || r == '=' })
	if i < 0 {
		return "", ErrUsage
	}
	name := in.RawArgs[:i]
	source := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(in.RawArgs[i:]), "="))
	if !identifier.MatchString(name) {
		return "", fmt.Errorf("%q is not a valid variable name", name)
	}
	if diceLike.MatchString(name) {
		return "", fmt.Errorf("%q reads as dice notation", name)
	}
	expr, err := s.parse(source)
	if err != nil {
		return "", err
	}
	v, err := formula.Evaluate(expr, s.ctx)
	if err != nil {
		return "", err
	}
	s.ctx = s.ctx.With(name, v)
	return name + " = " + preview.Number(v), nil
}

func runUnlet(s *Session, in Input) (string, error) {
	if len(in.Args) != 1 {
		return "", ErrUsage
	}
	name := in.Args[0]
	if !s.ctx.Has(name) {
		return "", fmt.Errorf("%s is not bound", name)
	}
	s.ctx = s.ctx.Without(name)
	return "unbound " + name, nil
}

func runVars(s *Session, _ Input) (string, error) {
	bindings := s.ctx.Bindings()
	if len(bindings) == 0 {
		return fmt.Sprintf("no bindings (method %s)", s.method), nil
	}
	sort.Slice(bindings, func(i, j int) bool { return bindings[i].Name < bindings[j].Name })
	lines := make([]string, 0, len(bindings)+1)
	lines = append(lines, fmt.Sprintf("%d bindings (method %s)", len(bindings), s.method))
	for _, b := range bindings {
		lines = append(lines, "  "+b.Name+" = "+preview.Number(b.Value))
	}
	return strings.Join(lines, "\n"), nil
}

func runMethod(s *Session, in Input) (string, error) {
	switch len(in.Args) {
	case 0:
	case 1:
		m, err := resolution.ParseMethod(in.Args[0])
		if err != nil {
			return "", err
		}
		s.method = m
	default:
		return "", ErrUsage
	}
	return "method: " + s.method.String(), nil
}

func runHand(s *Session, in Input) (string, error) {
	hand, err := resolution.ParseHand(in.RawArgs)
	if err != nil {
		return "", err
	}
	if len(hand) == 0 {
		return "", ErrUsage
	}
	cards := make([]string, len(hand))
	for i, c := range hand {
		cards[i] = c.String()
	}
	s.ctx = s.ctx.Merge(resolution.CardContext(hand))
	s.method = resolution.MethodCards
	value, _ := s.ctx.Lookup("CARD_VALUE")
	return fmt.Sprintf("hand: %s (CARD_VALUE %s), method: %s", strings.Join(cards, " "), preview.Number(value), s.method), nil
}

func runFlips(s *Session, in Input) (string, error) {
	flips, err := resolution.ParseFlips(in.RawArgs)
	if err != nil {
		return "", err
	}
	if len(flips) == 0 {
		return "", ErrUsage
	}
	var seq strings.Builder
	for _, f := range flips {
		seq.WriteString(f.String())
	}
	s.ctx = s.ctx.Merge(resolution.CoinContext(flips))
	s.method = resolution.MethodCoins
	heads, _ := s.ctx.Lookup("HEADS_COUNT")
	return fmt.Sprintf("flips: %s (HEADS_COUNT %s), method: %s", seq.String(), preview.Number(heads), s.method), nil
}

func runClear(s *Session, _ Input) (string, error) {
	s.ctx = formula.NewContext()
	s.method = resolution.MethodDice
	return "context cleared, method: " + s.method.String(), nil
}

func runChain(s *Session, in Input) (string, error) {
	source, opts := splitOptions(in.Args, "targets", "falloff", "rate", "floor", "compounding", "full", "accel")
	p := effect.ChainParams{FalloffType: opts["falloff"]}
	var err error
	if p.TargetCount, err = opts.intValue("targets"); err != nil {
		return "", err
	}
	if p.FalloffRate, err = opts.floatValue("rate"); err != nil {
		return "", err
	}
	if p.MinimumFloor, err = opts.floatValue("floor"); err != nil {
		return "", err
	}
	if p.Compounding, err = opts.boolValue("compounding"); err != nil {
		return "", err
	}
	if p.FullEffectJumps, err = opts.intValue("full"); err != nil {
		return "", err
	}
	if p.Acceleration, err = opts.floatValue("accel"); err != nil {
		return "", err
	}
	cfg, err := effect.NewChainConfig(p, s.wb.defaults)
	if err != nil {
		return "", err
	}
	res, err := s.resolve(source)
	if err != nil {
		return "", err
	}
	chain, err := effect.ResolveChain(res.Value, cfg)
	if err != nil {
		return "", err
	}
	return "chain: " + preview.Numbers(chain.PerTarget) + " = " + preview.Number(chain.Total), nil
}

func runCrit(s *Session, in Input) (string, error) {
	source, opts := splitOptions(in.Args, "multiplier", "bonus")
	p := effect.CriticalParams{Bonus: opts["bonus"]}
	var err error
	if p.Multiplier, err = opts.floatValue("multiplier"); err != nil {
		return "", err
	}
	cfg, err := effect.NewCriticalConfig(p, s.wb.defaults)
	if err != nil {
		return "", err
	}
	res, err := s.resolve(source)
	if err != nil {
		return "", err
	}
	value, err := effect.ResolveCritical(res.Value, cfg, s.ctx)
	if err != nil {
		return "", err
	}
	expr, err := s.parse(source)
	if err != nil {
		return "", err
	}
	base, err := formula.Stats(expr)
	if err != nil {
		return "", err
	}
	st, err := effect.CriticalStats(base, cfg)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("critical: %s [%s]", preview.Number(value), st), nil
}

func runTicks(s *Session, in Input) (string, error) {
	source, opts := splitOptions(in.Args, "count", "scaling")
	if source == "" {
		return "", ErrUsage
	}
	p := effect.TickParams{Expression: source, Scaling: opts["scaling"]}
	var err error
	if p.Count, err = opts.intValue("count"); err != nil {
		return "", err
	}
	cfg, err := effect.NewTickConfig(p, s.wb.defaults)
	if err != nil {
		return "", err
	}
	ticks, err := effect.EvaluateTicks(cfg, s.ctx)
	if err != nil {
		return "", err
	}
	return "ticks: " + preview.Numbers(ticks.PerTick) + " = " + preview.Number(ticks.Total), nil
}

func runDist(s *Session, in Input) (string, error) {
	expr, err := s.parse(in.RawArgs)
	if err != nil {
		return "", err
	}
	d, err := analysis.Distribute(expr)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "outcomes %d, mean %s, stddev %s\n",
		len(d.Outcomes), preview.Number(d.Mean()), preview.Number(d.StdDev()))
	fmt.Fprintf(&b, "p10 %s, p25 %s, p50 %s, p75 %s, p90 %s",
		preview.Number(d.Percentile(0.10)), preview.Number(d.Percentile(0.25)),
		preview.Number(d.Percentile(0.50)), preview.Number(d.Percentile(0.75)),
		preview.Number(d.Percentile(0.90)))
	if len(d.Outcomes) > distRows {
		return b.String(), nil
	}

	var peak float64
	width := 0
	for _, o := range d.Outcomes {
		peak = math.Max(peak, o.Probability)
		width = max(width, len(preview.Number(o.Value)))
	}
	for _, o := range d.Outcomes {
		bar := strings.Repeat("#", max(1, int(math.Round(o.Probability/peak*distBarWidth))))
		fmt.Fprintf(&b, "\n%*s %6.2f%% %s", width, preview.Number(o.Value), o.Probability*100, bar)
	}
	return b.String(), nil
}

func runSuggest(s *Session, in Input) (string, error) {
	text, opts := splitOptions(in.Args, "variance", "max", "modifier", "any")
	if text == "" {
		return "", ErrUsage
	}
	target, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return "", fmt.Errorf("%q is not a number", text)
	}
	variance, err := analysis.ParseVariance(opts["variance"])
	if err != nil {
		return "", err
	}
	so := analysis.SuggestOptions{Variance: variance}
	maxDice, err := opts.intValue("max")
	if err != nil {
		return "", err
	}
	if maxDice != nil {
		so.MaxDice = *maxDice
	}
	modifier, err := opts.boolValue("modifier")
	if err != nil {
		return "", err
	}
	so.NoModifier = modifier != nil && !*modifier
	anyDie, err := opts.boolValue("any")
	if err != nil {
		return "", err
	}
	so.AnyStandardDie = anyDie != nil && *anyDie

	sg, err := analysis.Suggest(target, so)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s (avg %s)", sg.Notation(), preview.Number(sg.Average)), nil
}

func runAssess(s *Session, in Input) (string, error) {
	source, opts := splitOptions(in.Args, "scale")
	scale, err := analysis.ParseScale(opts["scale"])
	if err != nil {
		return "", err
	}
	expr, err := s.parse(source)
	if err != nil {
		return "", err
	}
	st, err := formula.Stats(expr)
	if err != nil {
		return "", err
	}
	if !st.Known(formula.FieldAverage) {
		return "", analysis.ErrIndeterminate
	}
	band := analysis.Assess(st.Average, scale)
	return fmt.Sprintf("%s - %s (avg %.1f, %s scale)", band.Label, band.Description, st.RoundedAverage(), scale), nil
}

func runCompare(s *Session, in Input) (string, error) {
	left, right, ok := strings.Cut(in.RawArgs, "|")
	if !ok {
		return "", ErrUsage
	}
	var stats [2]formula.Statistics
	for i, source := range []string{left, right} {
		expr, err := s.parse(source)
		if err != nil {
			return "", err
		}
		if stats[i], err = formula.Stats(expr); err != nil {
			return "", err
		}
	}
	c, err := analysis.Compare(stats[0], stats[1])
	if err != nil {
		return "", err
	}
	verdict := "mixed"
	switch {
	case c.StrictlyBetter:
		verdict = "second is strictly better"
	case c.StrictlyWorse:
		verdict = "second is strictly worse"
	}
	return strings.Join([]string{
		"first:   " + stats[0].String(),
		"second:  " + stats[1].String(),
		fmt.Sprintf("average: %s (x%s)", signed(c.AverageDifference), preview.Number(c.AverageRatio)),
		fmt.Sprintf("range:   %s (x%s)", signed(c.RangeDifference), preview.Number(c.RangeRatio)),
		"verdict: " + verdict,
	}, "\n"), nil
}

func runPreset(s *Session, in Input) (string, error) {
	if len(in.Args) != 1 {
		return "", ErrUsage
	}
	p, ok := s.wb.presets.Get(in.Args[0])
	if !ok {
		return "", fmt.Errorf("%w %q, try 'presets'", ErrUnknownPreset, in.Args[0])
	}
	report, err := s.wb.previewer.Preview(p, s.ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(preview.Render(report), "\n"), nil
}

func runPresets(s *Session, _ Input) (string, error) {
	all := s.wb.presets.All()
	if len(all) == 0 {
		return "no presets loaded", nil
	}
	width := 0
	for _, p := range all {
		width = max(width, len(p.ID))
	}
	lines := make([]string, len(all))
	for i, p := range all {
		line := fmt.Sprintf("%-*s  %s", width, p.ID, p.Formula)
		if p.Name != "" {
			line += "  (" + p.Name + ")"
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n"), nil
}

func runHelp(s *Session, in Input) (string, error) {
	if len(in.Args) > 0 {
		name := strings.ToLower(in.Args[0])
		cmd, ok := s.wb.registry.Resolve(name)
		if !ok {
			return "", fmt.Errorf("%w %q", ErrUnknownCommand, name)
		}
		out := "usage: " + cmd.Usage + "\n" + cmd.Help
		if len(cmd.Aliases) > 0 {
			out += "\naliases: " + strings.Join(cmd.Aliases, ", ")
		}
		return out, nil
	}

	var b strings.Builder
	groups := s.wb.registry.CommandsByCategory()
	for _, category := range categoryOrder {
		cmds := groups[category]
		if len(cmds) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s:\n", category)
		for _, cmd := range cmds {
			fmt.Fprintf(&b, "  %-8s %s\n", cmd.Name, cmd.Help)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func runQuit(_ *Session, _ Input) (string, error) {
	return "", ErrQuit
}

func signed(v float64) string {
	if v > 0 {
		return "+" + preview.Number(v)
	}
	return preview.Number(v)
}

// options are key=value arguments split off a command line.
type options map[string]string

// splitOptions separates arguments of the form key=value, for the given
// keys, from the remaining words, which are rejoined as the formula text.
func splitOptions(args []string, keys ...string) (string, options) {
	allowed := make(map[string]bool, len(keys))
	for _, k := range keys {
		allowed[k] = true
	}
	opts := options{}
	rest := make([]string, 0, len(args))
	for _, a := range args {
		if k, v, ok := strings.Cut(a, "="); ok && v != "" && allowed[strings.ToLower(k)] {
			opts[strings.ToLower(k)] = v
			continue
		}
		rest = append(rest, a)
	}
	return strings.Join(rest, " "), opts
}

func (o options) intValue(key string) (*int, error) {
	v, ok := o[key]
	if !ok {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return &n, nil
}

func (o options) floatValue(key string) (*float64, error) {
	v, ok := o[key]
	if !ok {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not a number", key, v)
	}
	return &f, nil
}

func (o options) boolValue(key string) (*bool, error) {
	v, ok := o[key]
	if !ok {
		return nil, nil
	}
	switch strings.ToLower(v) {
	case "yes", "on":
		v = "true"
	case "no", "off":
		v = "false"
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not true or false", key, v)
	}
	return &b, nil
}

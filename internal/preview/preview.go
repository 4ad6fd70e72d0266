// Package preview resolves a preset end to end: statistics, the value for a
// sample context, and any chain, critical and tick breakdowns.
package preview

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/spellforge/internal/analysis"
	"github.com/cory-johannsen/spellforge/internal/effect"
	"github.com/cory-johannsen/spellforge/internal/formula"
	"github.com/cory-johannsen/spellforge/internal/preset"
	"github.com/cory-johannsen/spellforge/internal/resolution"
)

// ErrNoHooks is returned when a preset names a script hook but the
// Previewer has no hook runner.
var ErrNoHooks = errors.New("preview: preset requires a script hook but scripting is disabled")

// HookRunner enriches a context through a named script hook.
type HookRunner interface {
	ContextHook(name string, ctx formula.Context) (formula.Context, error)
}

// Previewer produces Reports for presets.
type Previewer struct {
	resolver *resolution.Resolver
	hooks    HookRunner
	logger   *zap.Logger
}

// NewPreviewer creates a Previewer. hooks may be nil when scripting is disabled.
//
// Precondition: resolver and logger must be non-nil.
func NewPreviewer(resolver *resolution.Resolver, hooks HookRunner, logger *zap.Logger) *Previewer {
	return &Previewer{resolver: resolver, hooks: hooks, logger: logger}
}

// Critical is the critical-hit part of a Report.
type Critical struct {
	Value float64
	Stats formula.Statistics
}

// Report is the full preview of one preset.
type Report struct {
	ID         string
	Name       string
	Stats      formula.Statistics
	Terms      []formula.Term
	Band       analysis.Band
	Context    formula.Context
	Resolution resolution.Resolution

	Chain    *effect.ChainResult
	Critical *Critical
	Ticks    *effect.TickResult
}

// Preview resolves p. Bindings in ctx override the preset's own sample
// context; the preset's script hook, if any, runs last.
//
// Postcondition: Report.Resolution.Value equals formula.Evaluate(p.Expr, Report.Context).
func (v *Previewer) Preview(p *preset.Preset, ctx formula.Context) (Report, error) {
	r := Report{ID: p.ID, Name: p.Name}
	var err error
	if r.Stats, err = formula.Stats(p.Expr); err != nil {
		return Report{}, fmt.Errorf("preset %q: %w", p.ID, err)
	}
	if r.Terms, err = formula.Terms(p.Expr); err != nil {
		return Report{}, fmt.Errorf("preset %q: %w", p.ID, err)
	}
	r.Band = analysis.Assess(r.Stats.Average, analysis.ScaleCombat)

	r.Context = p.Context.Merge(ctx)
	if p.Script != "" {
		if v.hooks == nil {
			return Report{}, fmt.Errorf("preset %q: %w", p.ID, ErrNoHooks)
		}
		if r.Context, err = v.hooks.ContextHook(p.Script, r.Context); err != nil {
			return Report{}, fmt.Errorf("preset %q: %w", p.ID, err)
		}
	}

	if r.Resolution, err = v.resolver.ResolveExpr(p.Expr, r.Context, p.Method); err != nil {
		return Report{}, fmt.Errorf("preset %q: %w", p.ID, err)
	}
	value := r.Resolution.Value

	if p.Chain != nil {
		c, err := effect.ResolveChain(value, *p.Chain)
		if err != nil {
			return Report{}, fmt.Errorf("preset %q: %w", p.ID, err)
		}
		r.Chain = &c
	}
	if p.Critical != nil {
		cv, err := effect.ResolveCritical(value, *p.Critical, r.Context)
		if err != nil {
			return Report{}, fmt.Errorf("preset %q: %w", p.ID, err)
		}
		cs, err := effect.CriticalStats(r.Stats, *p.Critical)
		if err != nil {
			return Report{}, fmt.Errorf("preset %q: %w", p.ID, err)
		}
		r.Critical = &Critical{Value: cv, Stats: cs}
	}
	if p.Ticks != nil {
		var t effect.TickResult
		if p.Ticks.PerTick != nil {
			t, err = effect.EvaluateTicks(*p.Ticks, r.Context)
		} else {
			t, err = effect.ResolveTicks(value, *p.Ticks)
		}
		if err != nil {
			return Report{}, fmt.Errorf("preset %q: %w", p.ID, err)
		}
		r.Ticks = &t
	}

	v.logger.Debug("preset previewed",
		zap.String("preset", p.ID),
		zap.Float64("value", value),
		zap.Bool("chain", r.Chain != nil),
		zap.Bool("critical", r.Critical != nil),
		zap.Bool("ticks", r.Ticks != nil),
	)
	return r, nil
}

// Render formats r as plain text, one fact per line.
func Render(r Report) string {
	var b strings.Builder
	title := r.ID
	if r.Name != "" {
		title = r.Name + " (" + r.ID + ")"
	}
	fmt.Fprintf(&b, "%s\n", title)
	fmt.Fprintf(&b, "  formula:  %s [%s]\n", r.Resolution.Source, r.Resolution.Method)
	fmt.Fprintf(&b, "  stats:    %s\n", r.Stats)
	if len(r.Terms) > 1 {
		fmt.Fprintf(&b, "  terms:    %s\n", formula.DescribeTerms(r.Terms))
	}
	if r.Stats.Known(formula.FieldAverage) {
		fmt.Fprintf(&b, "  severity: %s - %s\n", r.Band.Label, r.Band.Description)
	}
	fmt.Fprintf(&b, "  value:    %s\n", Number(r.Resolution.Value))
	if len(r.Resolution.Missing) > 0 {
		fmt.Fprintf(&b, "  missing:  %s\n", strings.Join(r.Resolution.Missing, ", "))
	}
	if r.Chain != nil {
		fmt.Fprintf(&b, "  chain:    %s = %s\n", Numbers(r.Chain.PerTarget), Number(r.Chain.Total))
	}
	if r.Critical != nil {
		fmt.Fprintf(&b, "  critical: %s [%s]\n", Number(r.Critical.Value), r.Critical.Stats)
	}
	if r.Ticks != nil {
		fmt.Fprintf(&b, "  ticks:    %s = %s\n", Numbers(r.Ticks.PerTick), Number(r.Ticks.Total))
	}
	return b.String()
}

// Number renders v rounded to two decimals without trailing zeros.
func Number(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// Numbers renders vs as a space-separated list.
func Numbers(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = Number(v)
	}
	return strings.Join(parts, " ")
}

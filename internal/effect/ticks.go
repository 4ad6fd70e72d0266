package effect

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/spellforge/internal/formula"
)

// Scaling shapes how an effect over time distributes across its ticks.
type Scaling string

const (
	ScalingFlat        Scaling = "flat"
	ScalingFrontLoaded Scaling = "front_loaded"
	ScalingBackLoaded  Scaling = "back_loaded"
	ScalingPulsing     Scaling = "pulsing"
)

// ParseScaling accepts the scaling names with "_", "-" or no separator,
// case-insensitively ("frontLoaded", "front-loaded", "FRONT_LOADED").
func ParseScaling(s string) (Scaling, error) {
	key := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch key {
	case "flat":
		return ScalingFlat, nil
	case "frontloaded":
		return ScalingFrontLoaded, nil
	case "backloaded":
		return ScalingBackLoaded, nil
	case "pulsing":
		return ScalingPulsing, nil
	}
	return "", &ConfigError{Field: "tick scaling", Reason: fmt.Sprintf("unknown scaling %q", s)}
}

// Factor returns the multiplier for tick i of n.
//
// FrontLoaded and BackLoaded are not mirror images: front-loaded runs from 1.5
// down towards 1.0, back-loaded from 0.5 up towards 1.5.
//
// Precondition: 0 <= i < n.
func (s Scaling) Factor(i, n int) float64 {
	switch s {
	case ScalingFrontLoaded:
		return 1.5 - float64(i)*0.5/float64(n)
	case ScalingBackLoaded:
		return 0.5 + float64(i)*1.0/float64(n)
	case ScalingPulsing:
		if i%2 == 0 {
			return 1.3
		}
		return 0.7
	}
	return 1
}

// TickParams is caller-supplied tick configuration.
type TickParams struct {
	Count *int `yaml:"count"`
	// Expression is the per-tick formula. Empty means the caller supplies the
	// per-tick value directly.
	Expression string `yaml:"per_tick"`
	Scaling    string `yaml:"scaling"`
}

// TickConfig is a validated tick configuration.
type TickConfig struct {
	Count int
	// PerTick is nil when no per-tick formula was configured.
	PerTick formula.Expression
	Scaling Scaling
}

// NewTickConfig fills p from d, parses the per-tick formula and validates.
//
// Postcondition: Returns a TickConfig accepted by ResolveTicks, or an error
// matching ErrInvalidConfig or formula.ErrSyntax.
func NewTickConfig(p TickParams, d Defaults) (TickConfig, error) {
	cfg := TickConfig{Count: d.TickCount, Scaling: d.Scaling}
	if p.Count != nil {
		cfg.Count = *p.Count
	}
	if p.Scaling != "" {
		s, err := ParseScaling(p.Scaling)
		if err != nil {
			return TickConfig{}, err
		}
		cfg.Scaling = s
	}
	if p.Expression != "" {
		expr, err := formula.Parse(p.Expression)
		if err != nil {
			return TickConfig{}, fmt.Errorf("per-tick formula: %w", err)
		}
		cfg.PerTick = expr
	}
	if err := cfg.Validate(); err != nil {
		return TickConfig{}, err
	}
	return cfg, nil
}

// Validate checks the tick invariants.
func (c TickConfig) Validate() error {
	if c.Count < 1 {
		return &ConfigError{Field: "tick count", Reason: fmt.Sprintf("must be >= 1, got %d", c.Count)}
	}
	if _, err := ParseScaling(string(c.Scaling)); err != nil {
		return err
	}
	return nil
}

// TickResult is the per-tick breakdown of an effect over time.
type TickResult struct {
	PerTick []float64
	Total   float64
}

// ResolveTicks computes perTick*Factor(i, Count) for every tick.
//
// Precondition: cfg passes Validate.
// Postcondition: len(PerTick) == cfg.Count and Total == sum(PerTick).
func ResolveTicks(perTick float64, cfg TickConfig) (TickResult, error) {
	if err := cfg.Validate(); err != nil {
		return TickResult{}, err
	}
	per := make([]float64, cfg.Count)
	for i := range per {
		per[i] = perTick * cfg.Scaling.Factor(i, cfg.Count)
	}
	return TickResult{PerTick: per, Total: sum(per)}, nil
}

// EvaluateTicks evaluates cfg.PerTick against ctx and resolves the schedule.
// A config without a per-tick formula is a *ConfigError.
func EvaluateTicks(cfg TickConfig, ctx formula.Context) (TickResult, error) {
	if cfg.PerTick == nil {
		return TickResult{}, &ConfigError{Field: "per-tick formula", Reason: "not configured"}
	}
	v, err := formula.Evaluate(cfg.PerTick, ctx)
	if err != nil {
		return TickResult{}, fmt.Errorf("per-tick formula: %w", err)
	}
	return ResolveTicks(v, cfg)
}

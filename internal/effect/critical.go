package effect

import (
	"fmt"
	"math"

	"github.com/cory-johannsen/spellforge/internal/formula"
)

// CriticalParams is caller-supplied critical configuration.
type CriticalParams struct {
	Multiplier *float64 `yaml:"multiplier"`
	// Bonus is an optional formula added on top, e.g. "2d8".
	Bonus string `yaml:"bonus"`
}

// CriticalConfig is a validated critical configuration.
type CriticalConfig struct {
	Multiplier float64
	// Bonus is nil when the critical adds nothing beyond the multiplier.
	Bonus formula.Expression
}

// NewCriticalConfig fills p from d, parses the bonus formula and validates.
//
// Postcondition: Returns a CriticalConfig accepted by ResolveCritical, or an
// error matching ErrInvalidMultiplier or formula.ErrSyntax.
func NewCriticalConfig(p CriticalParams, d Defaults) (CriticalConfig, error) {
	cfg := CriticalConfig{Multiplier: d.CriticalMultiplier}
	if p.Multiplier != nil {
		cfg.Multiplier = *p.Multiplier
	}
	if p.Bonus != "" {
		bonus, err := formula.Parse(p.Bonus)
		if err != nil {
			return CriticalConfig{}, fmt.Errorf("critical bonus: %w", err)
		}
		cfg.Bonus = bonus
	}
	if err := cfg.Validate(); err != nil {
		return CriticalConfig{}, err
	}
	return cfg, nil
}

// Validate rejects multipliers that would weaken the effect.
func (c CriticalConfig) Validate() error {
	if math.IsNaN(c.Multiplier) || c.Multiplier < 1 {
		return fmt.Errorf("%w: got %g", ErrInvalidMultiplier, c.Multiplier)
	}
	return nil
}

// ResolveCritical returns base*Multiplier plus the bonus evaluated against ctx.
//
// Precondition: cfg passes Validate.
// Postcondition: the result is at least base*Multiplier when the bonus is non-negative.
func ResolveCritical(base float64, cfg CriticalConfig, ctx formula.Context) (float64, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	result := base * cfg.Multiplier
	if cfg.Bonus == nil {
		return result, nil
	}
	bonus, err := formula.Evaluate(cfg.Bonus, ctx)
	if err != nil {
		return 0, fmt.Errorf("critical bonus: %w", err)
	}
	return result + bonus, nil
}

// CriticalStats scales base statistics by the multiplier and adds the bonus
// statistics, for previews that show the critical range rather than a value.
func CriticalStats(base formula.Statistics, cfg CriticalConfig) (formula.Statistics, error) {
	if err := cfg.Validate(); err != nil {
		return formula.Statistics{}, err
	}
	out := formula.Statistics{
		Minimum:       base.Minimum * cfg.Multiplier,
		Maximum:       base.Maximum * cfg.Multiplier,
		Average:       base.Average * cfg.Multiplier,
		Indeterminate: base.Indeterminate,
	}
	if cfg.Bonus == nil {
		return out, nil
	}
	bonus, err := formula.Stats(cfg.Bonus)
	if err != nil {
		return formula.Statistics{}, fmt.Errorf("critical bonus: %w", err)
	}
	return out.Add(bonus), nil
}

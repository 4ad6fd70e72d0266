// Package effect resolves composite spell effects from already-resolved base
// values: chained falloff across targets, critical amplification, and tick
// schedules for effects over time.
//
// Configuration arrives as Params records whose fields may be missing. The
// New*Config constructors are the only place defaults are applied; resolvers
// receive fully specified, validated configs and never re-parse formulas.
package effect

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidMultiplier is returned for a critical multiplier below 1.
	ErrInvalidMultiplier = errors.New("effect: critical multiplier must be at least 1")
	// ErrInvalidConfig is matched by every *ConfigError.
	ErrInvalidConfig = errors.New("effect: invalid configuration")
)

// ConfigError names the configuration field that failed validation.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("effect: invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// Defaults holds the values applied when a Params record omits a field.
type Defaults struct {
	ChainTargets       int
	FalloffType        FalloffType
	FalloffRate        float64
	Compounding        bool
	FullEffectJumps    int
	Acceleration       float64
	TickCount          int
	Scaling            Scaling
	CriticalMultiplier float64
}

// StandardDefaults returns the stock defaults: three chain targets losing 25%
// per jump (compounding), three flat ticks and a doubling critical. Stepped
// falloff keeps one full jump; accelerating falloff adds 10% per jump.
func StandardDefaults() Defaults {
	return Defaults{
		ChainTargets:       3,
		FalloffType:        FalloffPercentage,
		FalloffRate:        25,
		Compounding:        true,
		FullEffectJumps:    1,
		Acceleration:       10,
		TickCount:          3,
		Scaling:            ScalingFlat,
		CriticalMultiplier: 2,
	}
}

// Validate reports every invalid default in one error.
//
// Postcondition: Returns nil when each default would pass its config's validation.
func (d Defaults) Validate() error {
	var errs []string
	if d.ChainTargets < 1 {
		errs = append(errs, fmt.Sprintf("chain targets must be >= 1, got %d", d.ChainTargets))
	}
	if _, err := ParseFalloffType(string(d.FalloffType)); err != nil {
		errs = append(errs, err.Error())
	} else if err := validateRate(d.FalloffType, d.FalloffRate); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateStep(d.FullEffectJumps, d.Acceleration); err != nil {
		errs = append(errs, err.Error())
	}
	if d.TickCount < 1 {
		errs = append(errs, fmt.Sprintf("tick count must be >= 1, got %d", d.TickCount))
	}
	if _, err := ParseScaling(string(d.Scaling)); err != nil {
		errs = append(errs, err.Error())
	}
	if d.CriticalMultiplier < 1 {
		errs = append(errs, fmt.Sprintf("critical multiplier must be >= 1, got %g", d.CriticalMultiplier))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

func sum(vs []float64) float64 {
	var total float64
	for _, v := range vs {
		total += v
	}
	return total
}

package effect

import (
	"fmt"
	"math"
	"strings"
)

// FalloffType selects how a chained effect weakens from target to target.
type FalloffType string

const (
	// FalloffPercentage removes FalloffRate percent per jump.
	FalloffPercentage FalloffType = "percentage"
	// FalloffFlat removes FalloffRate points per jump.
	FalloffFlat FalloffType = "flat"
	// FalloffStepped keeps full strength for FullEffectJumps jumps, then
	// removes FalloffRate percent once.
	FalloffStepped FalloffType = "stepped"
	// FalloffAccelerating removes FalloffRate percent on the first jump and
	// Acceleration more percent on each jump after it.
	FalloffAccelerating FalloffType = "accelerating"
)

// ParseFalloffType accepts "percentage"/"percent"/"%", "flat"/"linear",
// "stepped"/"step" and "accelerating"/"accelerate", case-insensitively.
func ParseFalloffType(s string) (FalloffType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "percentage", "percent", "%":
		return FalloffPercentage, nil
	case "flat", "linear":
		return FalloffFlat, nil
	case "stepped", "step":
		return FalloffStepped, nil
	case "accelerating", "accelerate":
		return FalloffAccelerating, nil
	}
	return "", &ConfigError{Field: "falloff type", Reason: fmt.Sprintf("unknown falloff type %q", s)}
}

// ChainParams is caller-supplied chain configuration. Nil or empty fields take
// the Defaults.
type ChainParams struct {
	TargetCount     *int     `yaml:"targets"`
	FalloffType     string   `yaml:"falloff"`
	FalloffRate     *float64 `yaml:"rate"`
	MinimumFloor    *float64 `yaml:"floor"`
	Compounding     *bool    `yaml:"compounding"`
	FullEffectJumps *int     `yaml:"full_jumps"`
	Acceleration    *float64 `yaml:"acceleration"`
}

// ChainConfig is a validated chain configuration.
type ChainConfig struct {
	TargetCount int
	FalloffType FalloffType
	FalloffRate float64
	// MinimumFloor bounds every target after the first from below.
	MinimumFloor float64
	// Compounding applies percentage falloff to the previous target rather
	// than to the base. Used by percentage falloff only.
	Compounding bool
	// FullEffectJumps is the number of jumps at full strength under stepped
	// falloff.
	FullEffectJumps int
	// Acceleration is the extra percentage removed per jump under
	// accelerating falloff.
	Acceleration float64
}

// NewChainConfig fills p from d and validates the result.
//
// Postcondition: Returns a ChainConfig accepted by ResolveChain, or an error
// matching ErrInvalidConfig.
func NewChainConfig(p ChainParams, d Defaults) (ChainConfig, error) {
	cfg := ChainConfig{
		TargetCount: d.ChainTargets,
		FalloffType: d.FalloffType,
		FalloffRate: d.FalloffRate,
		Compounding: d.Compounding,

		FullEffectJumps: d.FullEffectJumps,
		Acceleration:    d.Acceleration,
	}
	if p.TargetCount != nil {
		cfg.TargetCount = *p.TargetCount
	}
	if p.FalloffType != "" {
		ft, err := ParseFalloffType(p.FalloffType)
		if err != nil {
			return ChainConfig{}, err
		}
		cfg.FalloffType = ft
	}
	if p.FalloffRate != nil {
		cfg.FalloffRate = *p.FalloffRate
	}
	if p.MinimumFloor != nil {
		cfg.MinimumFloor = *p.MinimumFloor
	}
	if p.Compounding != nil {
		cfg.Compounding = *p.Compounding
	}
	if p.FullEffectJumps != nil {
		cfg.FullEffectJumps = *p.FullEffectJumps
	}
	if p.Acceleration != nil {
		cfg.Acceleration = *p.Acceleration
	}
	if err := cfg.Validate(); err != nil {
		return ChainConfig{}, err
	}
	return cfg, nil
}

// Validate checks the chain invariants.
func (c ChainConfig) Validate() error {
	if c.TargetCount < 1 {
		return &ConfigError{Field: "chain targets", Reason: fmt.Sprintf("must be >= 1, got %d", c.TargetCount)}
	}
	if _, err := ParseFalloffType(string(c.FalloffType)); err != nil {
		return err
	}
	if err := validateRate(c.FalloffType, c.FalloffRate); err != nil {
		return err
	}
	if err := validateStep(c.FullEffectJumps, c.Acceleration); err != nil {
		return err
	}
	if math.IsNaN(c.MinimumFloor) || math.IsInf(c.MinimumFloor, 0) {
		return &ConfigError{Field: "falloff floor", Reason: "must be finite"}
	}
	return nil
}

func validateRate(ft FalloffType, rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return &ConfigError{Field: "falloff rate", Reason: fmt.Sprintf("must be a finite number >= 0, got %g", rate)}
	}
	if ft != FalloffFlat && rate > 100 {
		return &ConfigError{Field: "falloff rate", Reason: fmt.Sprintf("percentage must be <= 100, got %g", rate)}
	}
	return nil
}

func validateStep(fullJumps int, acceleration float64) error {
	if fullJumps < 0 {
		return &ConfigError{Field: "full effect jumps", Reason: fmt.Sprintf("must be >= 0, got %d", fullJumps)}
	}
	if math.IsNaN(acceleration) || math.IsInf(acceleration, 0) || acceleration < 0 {
		return &ConfigError{Field: "falloff acceleration", Reason: fmt.Sprintf("must be a finite number >= 0, got %g", acceleration)}
	}
	return nil
}

// ChainResult is the per-target breakdown of a chained effect.
type ChainResult struct {
	PerTarget []float64
	Total     float64
}

// ResolveChain spreads base across cfg.TargetCount targets.
//
// Target 0 always receives base. Target i >= 1 receives
//   - percentage, compounding:     base * (1 - rate/100)^i
//   - percentage, non-compounding: base * (1 - i*rate/100)
//   - flat:                        base - i*rate
//   - stepped:                     base while i <= full jumps, then base * (1 - rate/100)
//   - accelerating:                base * (1 - (rate + (i-1)*acceleration)/100)
//
// raised to cfg.MinimumFloor when it falls below.
//
// Precondition: cfg passes Validate.
// Postcondition: len(PerTarget) == cfg.TargetCount and Total == sum(PerTarget).
func ResolveChain(base float64, cfg ChainConfig) (ChainResult, error) {
	if err := cfg.Validate(); err != nil {
		return ChainResult{}, err
	}

	per := make([]float64, cfg.TargetCount)
	per[0] = base
	for i := 1; i < cfg.TargetCount; i++ {
		var v float64
		switch {
		case cfg.FalloffType == FalloffFlat:
			v = base - float64(i)*cfg.FalloffRate
		case cfg.FalloffType == FalloffStepped:
			v = base
			if i > cfg.FullEffectJumps {
				v = base * (1 - cfg.FalloffRate/100)
			}
		case cfg.FalloffType == FalloffAccelerating:
			v = base * (1 - (cfg.FalloffRate+float64(i-1)*cfg.Acceleration)/100)
		case cfg.Compounding:
			v = base * math.Pow(1-cfg.FalloffRate/100, float64(i))
		default:
			v = base * (1 - float64(i)*cfg.FalloffRate/100)
		}
		per[i] = math.Max(cfg.MinimumFloor, v)
	}
	return ChainResult{PerTarget: per, Total: sum(per)}, nil
}

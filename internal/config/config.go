// Package config provides Viper-based configuration loading for spellforge.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/spellforge/internal/effect"
)

// EnvPrefix prefixes environment overrides, e.g. SPELLFORGE_LOGGING_LEVEL.
const EnvPrefix = "SPELLFORGE"

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// Service tags every log entry.
	Service string `mapstructure:"service"`
}

// WorkbenchConfig holds the authoring workbench listener settings.
type WorkbenchConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// Color enables ANSI styling of prompts and errors.
	Color bool `mapstructure:"color"`
	// MaxSessions caps concurrent sessions; 0 means unlimited.
	MaxSessions int `mapstructure:"max_sessions"`
}

// Addr returns the "host:port" listen address.
func (w WorkbenchConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// ChainDefaults are the fallback chain settings.
type ChainDefaults struct {
	Targets      int     `mapstructure:"targets"`
	Falloff      string  `mapstructure:"falloff"`
	Rate         float64 `mapstructure:"rate"`
	Compounding  bool    `mapstructure:"compounding"`
	FullJumps    int     `mapstructure:"full_jumps"`
	Acceleration float64 `mapstructure:"acceleration"`
}

// TickDefaults are the fallback tick settings.
type TickDefaults struct {
	Count   int    `mapstructure:"count"`
	Scaling string `mapstructure:"scaling"`
}

// CriticalDefaults are the fallback critical settings.
type CriticalDefaults struct {
	Multiplier float64 `mapstructure:"multiplier"`
}

// EngineConfig holds formula engine settings.
type EngineConfig struct {
	// CacheSize bounds the parse cache; 0 disables it.
	CacheSize int              `mapstructure:"cache_size"`
	Chain     ChainDefaults    `mapstructure:"chain"`
	Ticks     TickDefaults     `mapstructure:"ticks"`
	Critical  CriticalDefaults `mapstructure:"critical"`
}

// EffectDefaults converts the engine section into effect defaults.
//
// Postcondition: Returns defaults that pass effect.Defaults.Validate, or an error.
func (e EngineConfig) EffectDefaults() (effect.Defaults, error) {
	falloff, err := effect.ParseFalloffType(e.Chain.Falloff)
	if err != nil {
		return effect.Defaults{}, err
	}
	scaling, err := effect.ParseScaling(e.Ticks.Scaling)
	if err != nil {
		return effect.Defaults{}, err
	}
	d := effect.Defaults{
		ChainTargets:       e.Chain.Targets,
		FalloffType:        falloff,
		FalloffRate:        e.Chain.Rate,
		Compounding:        e.Chain.Compounding,
		FullEffectJumps:    e.Chain.FullJumps,
		Acceleration:       e.Chain.Acceleration,
		TickCount:          e.Ticks.Count,
		Scaling:            scaling,
		CriticalMultiplier: e.Critical.Multiplier,
	}
	if err := d.Validate(); err != nil {
		return effect.Defaults{}, err
	}
	return d, nil
}

// ScriptingConfig holds Lua context hook settings.
type ScriptingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
	// InstructionLimit is the opcode budget per hook call; 0 uses the scripting default.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// PresetsConfig locates the preset library.
type PresetsConfig struct {
	// Dir is the preset directory; empty disables presets.
	Dir string `mapstructure:"dir"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Workbench WorkbenchConfig `mapstructure:"workbench"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
	Presets   PresetsConfig   `mapstructure:"presets"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	for _, err := range []error{
		validateLogging(c.Logging),
		validateWorkbench(c.Workbench),
		validateEngine(c.Engine),
		validateScripting(c.Scripting),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	var errs []string
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of [debug, info, warn, error], got %q", l.Level))
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		errs = append(errs, fmt.Sprintf("logging.format must be one of [json, console], got %q", l.Format))
	}
	if strings.TrimSpace(l.Service) == "" {
		errs = append(errs, "logging.service must not be empty")
	}
	return joinErrs(errs)
}

func validateWorkbench(w WorkbenchConfig) error {
	var errs []string
	if w.Port < 1 || w.Port > 65535 {
		errs = append(errs, fmt.Sprintf("workbench.port must be 1-65535, got %d", w.Port))
	}
	if w.ReadTimeout < 0 {
		errs = append(errs, "workbench.read_timeout must not be negative")
	}
	if w.WriteTimeout < 0 {
		errs = append(errs, "workbench.write_timeout must not be negative")
	}
	if w.MaxSessions < 0 {
		errs = append(errs, fmt.Sprintf("workbench.max_sessions must be >= 0, got %d", w.MaxSessions))
	}
	return joinErrs(errs)
}

func validateEngine(e EngineConfig) error {
	var errs []string
	if e.CacheSize < 0 {
		errs = append(errs, fmt.Sprintf("engine.cache_size must be >= 0, got %d", e.CacheSize))
	}
	if _, err := e.EffectDefaults(); err != nil {
		errs = append(errs, "engine defaults: "+err.Error())
	}
	return joinErrs(errs)
}

func validateScripting(s ScriptingConfig) error {
	var errs []string
	if s.Enabled && strings.TrimSpace(s.Dir) == "" {
		errs = append(errs, "scripting.dir must not be empty when scripting is enabled")
	}
	if s.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("scripting.instruction_limit must be >= 0, got %d", s.InstructionLimit))
	}
	return joinErrs(errs)
}

func joinErrs(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.New(strings.Join(errs, "; "))
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := NewViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// NewViper returns a Viper instance with defaults and SPELLFORGE_ environment
// overrides applied but no config file read, for running without a file.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.service", "spellforge")

	v.SetDefault("workbench.host", "127.0.0.1")
	v.SetDefault("workbench.port", 4100)
	v.SetDefault("workbench.read_timeout", "10m")
	v.SetDefault("workbench.write_timeout", "30s")
	v.SetDefault("workbench.color", true)
	v.SetDefault("workbench.max_sessions", 64)

	d := effect.StandardDefaults()
	v.SetDefault("engine.cache_size", 512)
	v.SetDefault("engine.chain.targets", d.ChainTargets)
	v.SetDefault("engine.chain.falloff", string(d.FalloffType))
	v.SetDefault("engine.chain.rate", d.FalloffRate)
	v.SetDefault("engine.chain.compounding", d.Compounding)
	v.SetDefault("engine.chain.full_jumps", d.FullEffectJumps)
	v.SetDefault("engine.chain.acceleration", d.Acceleration)
	v.SetDefault("engine.ticks.count", d.TickCount)
	v.SetDefault("engine.ticks.scaling", string(d.Scaling))
	v.SetDefault("engine.critical.multiplier", d.CriticalMultiplier)

	v.SetDefault("scripting.enabled", false)
	v.SetDefault("scripting.dir", "scripts")
	v.SetDefault("scripting.instruction_limit", 0)

	v.SetDefault("presets.dir", "")
}

// Command workbench serves the interactive formula workbench over telnet.
// It wires together configuration, logging, presets, Lua context hooks and
// the telnet acceptor.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/spellforge/internal/config"
	"github.com/cory-johannsen/spellforge/internal/formula"
	"github.com/cory-johannsen/spellforge/internal/observability"
	"github.com/cory-johannsen/spellforge/internal/preset"
	"github.com/cory-johannsen/spellforge/internal/preview"
	"github.com/cory-johannsen/spellforge/internal/scripting"
	"github.com/cory-johannsen/spellforge/internal/server"
	"github.com/cory-johannsen/spellforge/internal/telnet"
	"github.com/cory-johannsen/spellforge/internal/workbench"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:          "workbench",
		Short:        "Serve the interactive formula workbench over telnet",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "configs/dev.yaml", "path to configuration file")
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	start := time.Now()

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	defaults, err := cfg.Engine.EffectDefaults()
	if err != nil {
		return fmt.Errorf("engine defaults: %w", err)
	}

	// Load presets
	var presets *preset.Library
	if cfg.Presets.Dir != "" {
		if presets, err = preset.LoadDirectory(cfg.Presets.Dir, defaults); err != nil {
			return fmt.Errorf("loading presets: %w", err)
		}
		logger.Info("presets loaded",
			zap.String("dir", cfg.Presets.Dir),
			zap.Int("count", presets.Len()),
		)
	}

	// Load Lua context hooks
	var hooks preview.HookRunner
	if cfg.Scripting.Enabled {
		mgr := scripting.NewManager(logger)
		if err := mgr.Load(cfg.Scripting.Dir, cfg.Scripting.InstructionLimit); err != nil {
			return fmt.Errorf("loading scripts: %w", err)
		}
		defer mgr.Close()
		hooks = mgr
	}

	// Build services
	wb := workbench.New(workbench.Options{
		Cache:    formula.NewCache(cfg.Engine.CacheSize),
		Presets:  presets,
		Hooks:    hooks,
		Defaults: defaults,
		Color:    cfg.Workbench.Color,
	}, logger)
	acceptor := telnet.NewAcceptor(cfg.Workbench, wb, logger)

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("telnet", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})

	logger.Info("workbench initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("addr", cfg.Workbench.Addr()),
		zap.Bool("scripting", cfg.Scripting.Enabled),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("workbench stopped with error", zap.Error(err))
		return err
	}
	return nil
}

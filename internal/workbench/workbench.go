package workbench

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/spellforge/internal/effect"
	"github.com/cory-johannsen/spellforge/internal/formula"
	"github.com/cory-johannsen/spellforge/internal/preset"
	"github.com/cory-johannsen/spellforge/internal/preview"
	"github.com/cory-johannsen/spellforge/internal/resolution"
	"github.com/cory-johannsen/spellforge/internal/telnet"
)

// Banner greets every new session.
const Banner = "Spellforge workbench. Type 'help' for commands."

// Prompt is written before every input line.
const Prompt = "spellforge> "

// Options configures a Workbench.
type Options struct {
	// Cache memoizes parsed formulas across sessions; nil parses every time.
	Cache *formula.Cache
	// Presets may be nil when no preset directory is configured.
	Presets *preset.Library
	// Hooks runs preset script hooks; nil when scripting is disabled.
	Hooks    preview.HookRunner
	Defaults effect.Defaults
	// Color enables ANSI styling of prompts and errors.
	Color bool
}

// Workbench serves interactive formula sessions. It holds only read-only
// shared state; every session owns its context.
type Workbench struct {
	registry  *Registry
	cache     *formula.Cache
	resolver  *resolution.Resolver
	previewer *preview.Previewer
	presets   *preset.Library
	defaults  effect.Defaults
	palette   telnet.Palette
	logger    *zap.Logger
}

// New creates a Workbench with the built-in commands.
//
// Precondition: logger must be non-nil and opts.Defaults must pass Validate.
func New(opts Options, logger *zap.Logger) *Workbench {
	if logger == nil {
		panic("workbench.New: logger must not be nil")
	}
	resolver := resolution.NewResolver(opts.Cache, logger)
	presets := opts.Presets
	if presets == nil {
		presets = preset.NewLibrary()
	}
	return &Workbench{
		registry:  DefaultRegistry(),
		cache:     opts.Cache,
		resolver:  resolver,
		previewer: preview.NewPreviewer(resolver, opts.Hooks, logger),
		presets:   presets,
		defaults:  opts.Defaults,
		palette:   telnet.Palette{Enabled: opts.Color},
		logger:    logger,
	}
}

// Registry returns the command registry.
func (w *Workbench) Registry() *Registry { return w.registry }

// NewSession creates a session with an empty context and the dice method.
func (w *Workbench) NewSession() *Session {
	id := uuid.New()
	return &Session{
		ID:     id,
		wb:     w,
		logger: w.logger.With(zap.String("session_id", id.String())),
		ctx:    formula.NewContext(),
		method: resolution.MethodDice,
	}
}

// HandleSession runs the read-eval-print loop for one connection.
//
// Postcondition: Returns nil when the client quits or ctx is cancelled, and
// the read or write error otherwise.
func (w *Workbench) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	s := w.NewSession()
	logger := s.logger.With(zap.String("remote_addr", conn.RemoteAddr().String()))
	logger.Info("session started")
	defer func() {
		logger.Info("session closed", zap.Int("commands", s.executed))
	}()

	if err := conn.WriteLine(w.palette.Paint(telnet.Bold, Banner)); err != nil {
		return err
	}
	for {
		if err := conn.WritePrompt(w.palette.Paint(telnet.Cyan, Prompt)); err != nil {
			return err
		}
		line, err := conn.ReadLine()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, telnet.ErrLineTooLong) {
				_ = conn.WriteLine(w.palette.Paint(telnet.Red, "error: line too long, disconnecting"))
			}
			return err
		}

		out, err := s.Exec(line)
		switch {
		case errors.Is(err, ErrQuit):
			return conn.WriteLine("Goodbye.")
		case err != nil:
			out = w.palette.Paint(telnet.Red, "error: "+err.Error())
		}
		if out == "" {
			continue
		}
		if err := conn.WriteLine(strings.ReplaceAll(out, "\n", "\r\n")); err != nil {
			return err
		}
	}
}

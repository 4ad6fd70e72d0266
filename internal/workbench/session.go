package workbench

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/spellforge/internal/formula"
	"github.com/cory-johannsen/spellforge/internal/resolution"
)

// Session is one client's workbench state. A Session is not safe for
// concurrent use; each connection owns exactly one.
type Session struct {
	ID uuid.UUID

	wb       *Workbench
	logger   *zap.Logger
	ctx      formula.Context
	method   resolution.Method
	executed int
}

// Context returns the session's current bindings.
func (s *Session) Context() formula.Context { return s.ctx }

// Method returns the session's resolution method.
func (s *Session) Method() resolution.Method { return s.method }

// Exec parses and runs one input line.
//
// Postcondition: Blank input returns ("", nil). ErrQuit signals the end of
// the session; any other error is reported to the client and the session
// continues.
func (s *Session) Exec(line string) (string, error) {
	in := ParseInput(line)
	if in.Command == "" {
		return "", nil
	}
	cmd, ok := s.wb.registry.Resolve(in.Command)
	if !ok {
		return "", fmt.Errorf("%w %q, try 'help'", ErrUnknownCommand, in.Command)
	}

	start := time.Now()
	out, err := cmd.Run(s, in)
	s.executed++
	if errors.Is(err, ErrUsage) {
		err = fmt.Errorf("%w: %s", ErrUsage, cmd.Usage)
	}
	if err != nil && !errors.Is(err, ErrQuit) {
		s.logger.Debug("command failed",
			zap.String("command", cmd.Name),
			zap.String("args", in.RawArgs),
			zap.Error(err),
		)
		return "", err
	}
	s.logger.Debug("command executed",
		zap.String("command", cmd.Name),
		zap.Duration("duration", time.Since(start)),
	)
	return out, err
}

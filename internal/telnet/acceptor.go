package telnet

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/spellforge/internal/config"
)

// SessionHandler runs the command loop for one connection.
type SessionHandler interface {
	// HandleSession returns when the client leaves or ctx is cancelled.
	HandleSession(ctx context.Context, conn *Conn) error
}

// BusyMessage is sent to clients turned away by the session cap.
const BusyMessage = "Too many sessions, try again later."

// Acceptor accepts TCP connections and runs each through a SessionHandler.
type Acceptor struct {
	cfg     config.WorkbenchConfig
	handler SessionHandler
	logger  *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	quit     chan struct{}
	ready    chan struct{}
	stopOnce sync.Once
	active   atomic.Int32
}

// NewAcceptor creates an Acceptor.
//
// Precondition: handler and logger must be non-nil.
func NewAcceptor(cfg config.WorkbenchConfig, handler SessionHandler, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		quit:    make(chan struct{}),
		ready:   make(chan struct{}),
	}
}

// ListenAndServe listens on cfg.Addr() and serves until Stop.
func (a *Acceptor) ListenAndServe() error {
	ln, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}
	return a.Serve(ln)
}

// Serve accepts connections on ln until Stop is called, then returns nil.
//
// Precondition: Serve is called at most once.
// Postcondition: ln is closed when Serve returns.
func (a *Acceptor) Serve(ln net.Listener) error {
	a.mu.Lock()
	select {
	case <-a.quit:
		a.mu.Unlock()
		return ln.Close()
	default:
	}
	a.listener = ln
	close(a.ready)
	a.mu.Unlock()

	a.logger.Info("workbench listening", zap.String("addr", ln.Addr().String()))

	for {
		raw, err := ln.Accept()
		if err != nil {
			select {
			case <-a.quit:
				return nil
			default:
			}
			a.logger.Error("accepting connection", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			continue
		}

		a.mu.Lock()
		select {
		case <-a.quit:
			a.mu.Unlock()
			_ = raw.Close()
			return nil
		default:
		}
		a.wg.Add(1)
		a.mu.Unlock()
		go a.handleConn(raw)
	}
}

func (a *Acceptor) handleConn(raw net.Conn) {
	defer a.wg.Done()
	start := time.Now()
	addr := raw.RemoteAddr().String()
	conn := NewConn(raw, a.cfg.ReadTimeout, a.cfg.WriteTimeout)
	defer conn.Close()

	n := a.active.Add(1)
	defer a.active.Add(-1)
	if a.cfg.MaxSessions > 0 && int(n) > a.cfg.MaxSessions {
		a.logger.Warn("session cap reached, rejecting client",
			zap.String("remote_addr", addr),
			zap.Int("max_sessions", a.cfg.MaxSessions),
		)
		_ = conn.WriteLine(BusyMessage)
		return
	}

	if err := conn.Negotiate(); err != nil {
		a.logger.Error("telnet negotiation failed", zap.String("remote_addr", addr), zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-a.quit:
			cancel()
			_ = conn.Close()
		case <-ctx.Done():
		}
	}()

	err := a.handler.HandleSession(ctx, conn)
	if err != nil && !IsClosed(err) {
		a.logger.Debug("session ended with error",
			zap.String("remote_addr", addr),
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return
	}
	a.logger.Info("session ended",
		zap.String("remote_addr", addr),
		zap.Duration("duration", time.Since(start)),
	)
}

// Stop closes the listener, disconnects every session and waits for their
// handlers to return. Stop is idempotent and may be called before Serve.
func (a *Acceptor) Stop() {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		close(a.quit)
		ln := a.listener
		a.mu.Unlock()
		if ln != nil {
			_ = ln.Close()
		}
		a.wg.Wait()
		a.logger.Info("workbench acceptor stopped")
	})
}

// Ready is closed once the acceptor is listening.
func (a *Acceptor) Ready() <-chan struct{} { return a.ready }

// Addr returns the listening address, or "" before Serve.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Sessions returns the number of connected clients.
func (a *Acceptor) Sessions() int { return int(a.active.Load()) }

package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/spellforge/internal/formula"
)

var (
	// ErrNoScripts is returned by ContextHook before a successful Load.
	ErrNoScripts = errors.New("scripting: no scripts loaded")
	// ErrUnknownHook is returned when the named hook is not a Lua function.
	ErrUnknownHook = errors.New("scripting: unknown hook")
	// ErrHookFailed wraps Lua runtime errors and malformed hook results.
	ErrHookFailed = errors.New("scripting: hook failed")
)

// Manager owns one sandbox holding every loaded script and dispatches context
// hooks into it.
//
// Manager is safe for concurrent use; hook calls are serialized.
type Manager struct {
	mu      sync.Mutex
	sandbox *Sandbox
	logger  *zap.Logger
}

// NewManager creates a Manager with nothing loaded.
//
// Precondition: logger must be non-nil.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{logger: logger}
}

// Load creates a fresh sandbox, registers the formula and log modules, then
// runs every *.lua file in dir in lexicographic order. On success the new
// sandbox replaces any previously loaded one.
//
// Precondition: dir must be a readable directory.
func (m *Manager) Load(dir string, instLimit int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	sb := NewSandbox(instLimit)
	m.RegisterModules(sb.L)
	for _, path := range files {
		if err := sb.DoFile(path); err != nil {
			sb.Close()
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}

	m.mu.Lock()
	old := m.sandbox
	m.sandbox = sb
	m.mu.Unlock()
	if old != nil {
		old.Close()
	}
	m.logger.Info("scripts loaded", zap.String("dir", dir), zap.Int("files", len(files)))
	return nil
}

// Hooks returns the names of the loaded Lua functions, sorted.
func (m *Manager) Hooks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sandbox == nil {
		return nil
	}
	return m.sandbox.Functions()
}

// ContextHook calls the global Lua function name with ctx as a table and
// merges the table it returns into ctx. Returned entries override existing
// bindings of the same name; returning nil leaves ctx unchanged.
//
// Postcondition: On error the returned context is ctx.
func (m *Manager) ContextHook(name string, ctx formula.Context) (formula.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sandbox == nil {
		return ctx, ErrNoScripts
	}

	fn, ok := m.sandbox.L.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return ctx, fmt.Errorf("%w: %q", ErrUnknownHook, name)
	}

	var ret lua.LValue
	err := m.sandbox.Run(func(L *lua.LState) error {
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, ContextTable(L, ctx)); err != nil {
			return err
		}
		ret = L.Get(-1)
		L.Pop(1)
		return nil
	})
	if err != nil {
		m.logger.Warn("lua hook runtime error", zap.String("hook", name), zap.Error(err))
		return ctx, fmt.Errorf("%w: %s: %w", ErrHookFailed, name, err)
	}

	switch r := ret.(type) {
	case *lua.LNilType:
		return ctx, nil
	case *lua.LTable:
		extra := TableContext(r)
		m.logger.Debug("lua hook applied", zap.String("hook", name), zap.Int("bindings", extra.Len()))
		return ctx.Merge(extra), nil
	}
	m.logger.Warn("lua hook returned non-table", zap.String("hook", name), zap.String("value", describe(ret)))
	return ctx, fmt.Errorf("%w: %s returned %s, want table", ErrHookFailed, name, describe(ret))
}

// Close releases the loaded sandbox. Later ContextHook calls return
// ErrNoScripts.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sandbox != nil {
		m.sandbox.Close()
		m.sandbox = nil
	}
}

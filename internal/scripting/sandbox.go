// Package scripting hosts sandboxed Lua context hooks. A hook is a global Lua
// function that receives the current formula bindings and returns extra
// bindings, letting content authors derive values (a caster's spell power,
// a card bonus) without touching Go.
package scripting

import (
	"context"
	"sort"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the opcode budget per load or hook call when no
// limit is configured.
const DefaultInstructionLimit = 100_000

// countingContext cancels itself after Done() has been called limit times.
// GopherLua's mainLoopWithContext calls Done() once per opcode.
type countingContext struct {
	context.Context
	cancel    context.CancelFunc
	remaining *atomic.Int64
}

func (c *countingContext) Done() <-chan struct{} {
	if c.remaining.Add(-1) <= 0 {
		c.cancel()
	}
	return c.Context.Done()
}

// Precondition: limit > 0.
func newCountingContext(limit int) (context.Context, context.CancelFunc) {
	base, cancel := context.WithCancel(context.Background())
	rem := &atomic.Int64{}
	rem.Store(int64(limit))
	return &countingContext{Context: base, cancel: cancel, remaining: rem}, cancel
}

// Sandbox is a Lua state restricted to the base, table, string and math
// libraries, with a fresh instruction budget for every Run.
//
// A Sandbox is not safe for concurrent use.
type Sandbox struct {
	L       *lua.LState
	limit   int
	builtin map[string]bool
}

// NewSandbox creates a Sandbox.
//
// Precondition: instLimit >= 0; 0 uses DefaultInstructionLimit.
// Postcondition: The caller must call Close when done.
func NewSandbox(instLimit int) *Sandbox {
	if instLimit <= 0 {
		instLimit = DefaultInstructionLimit
	}
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
	builtin := make(map[string]bool)
	L.G.Global.ForEach(func(k, v lua.LValue) {
		if _, ok := v.(*lua.LFunction); ok {
			builtin[k.String()] = true
		}
	})
	return &Sandbox{L: L, limit: instLimit, builtin: builtin}
}

// Functions returns the names of global Lua functions defined after the
// sandbox was created, sorted.
func (s *Sandbox) Functions() []string {
	var names []string
	s.L.G.Global.ForEach(func(k, v lua.LValue) {
		if _, ok := v.(*lua.LFunction); !ok {
			return
		}
		if name, ok := k.(lua.LString); ok && !s.builtin[string(name)] {
			names = append(names, string(name))
		}
	})
	sort.Strings(names)
	return names
}

// Limit returns the per-run opcode budget.
func (s *Sandbox) Limit() int { return s.limit }

// Run calls fn with the instruction budget armed. Exceeding the budget makes
// the running Lua code fail with an error.
func (s *Sandbox) Run(fn func(L *lua.LState) error) error {
	ctx, cancel := newCountingContext(s.limit)
	s.L.SetContext(ctx)
	defer func() {
		s.L.RemoveContext()
		cancel()
	}()
	return fn(s.L)
}

// DoString runs src under the instruction budget.
func (s *Sandbox) DoString(src string) error {
	return s.Run(func(L *lua.LState) error { return L.DoString(src) })
}

// DoFile runs the file at path under the instruction budget.
func (s *Sandbox) DoFile(path string) error {
	return s.Run(func(L *lua.LState) error { return L.DoFile(path) })
}

// Close releases the Lua state.
func (s *Sandbox) Close() { s.L.Close() }

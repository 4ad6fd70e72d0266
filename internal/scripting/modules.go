package scripting

import (
	"fmt"
	"math"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/spellforge/internal/formula"
)

// RegisterModules installs the formula and log tables into L.
//
//	formula.valid(src)         -> boolean
//	formula.stats(src)         -> {min, max, avg, text} or nil, message
//	formula.evaluate(src, ctx) -> number or nil, message
//	log.debug/info/warn/error(msg)
//
// Indeterminate statistics fields are nil.
//
// Precondition: L must come from NewSandbox.
func (m *Manager) RegisterModules(L *lua.LState) {
	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"valid":    luaValid,
		"stats":    luaStats,
		"evaluate": luaEvaluate,
	})
	L.SetGlobal("formula", mod)

	logMod := L.NewTable()
	L.SetFuncs(logMod, map[string]lua.LGFunction{
		"debug": m.luaLog(m.logger.Debug),
		"info":  m.luaLog(m.logger.Info),
		"warn":  m.luaLog(m.logger.Warn),
		"error": m.luaLog(m.logger.Error),
	})
	L.SetGlobal("log", logMod)
}

func luaValid(L *lua.LState) int {
	L.Push(lua.LBool(formula.IsValidDiceNotation(L.CheckString(1))))
	return 1
}

func luaStats(L *lua.LState) int {
	expr, err := formula.Parse(L.CheckString(1))
	if err != nil {
		return luaFail(L, err)
	}
	s, err := formula.Stats(expr)
	if err != nil {
		return luaFail(L, err)
	}
	t := L.NewTable()
	if s.Known(formula.FieldMinimum) {
		t.RawSetString("min", lua.LNumber(s.Minimum))
	}
	if s.Known(formula.FieldMaximum) {
		t.RawSetString("max", lua.LNumber(s.Maximum))
	}
	if s.Known(formula.FieldAverage) {
		t.RawSetString("avg", lua.LNumber(s.Average))
	}
	t.RawSetString("text", lua.LString(s.String()))
	L.Push(t)
	return 1
}

func luaEvaluate(L *lua.LState) int {
	expr, err := formula.Parse(L.CheckString(1))
	if err != nil {
		return luaFail(L, err)
	}
	ctx := TableContext(L.OptTable(2, L.NewTable()))
	v, err := formula.Evaluate(expr, ctx)
	if err != nil {
		return luaFail(L, err)
	}
	L.Push(lua.LNumber(v))
	return 1
}

func luaFail(L *lua.LState, err error) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(err.Error()))
	return 2
}

func (m *Manager) luaLog(log func(string, ...zap.Field)) lua.LGFunction {
	return func(L *lua.LState) int {
		log(L.CheckString(1), zap.String("source", "lua"))
		return 0
	}
}

// ContextTable converts ctx into a Lua table keyed by binding name.
func ContextTable(L *lua.LState, ctx formula.Context) *lua.LTable {
	t := L.CreateTable(0, ctx.Len())
	for _, b := range ctx.Bindings() {
		t.RawSetString(b.Name, lua.LNumber(b.Value))
	}
	return t
}

// TableContext converts string-keyed numeric and boolean entries of t into a
// context. Booleans become 1 or 0; other entries are ignored.
func TableContext(t *lua.LTable) formula.Context {
	values := make(map[string]float64)
	t.ForEach(func(k, v lua.LValue) {
		name, ok := k.(lua.LString)
		if !ok {
			return
		}
		if f, ok := luaNumber(v); ok {
			values[string(name)] = f
		}
	})
	return formula.ContextFromMap(values)
}

func luaNumber(v lua.LValue) (float64, bool) {
	switch x := v.(type) {
	case lua.LNumber:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case lua.LBool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func describe(v lua.LValue) string {
	return fmt.Sprintf("%s %s", v.Type(), v.String())
}

package preview_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/spellforge/internal/effect"
	"github.com/cory-johannsen/spellforge/internal/formula"
	"github.com/cory-johannsen/spellforge/internal/preset"
	"github.com/cory-johannsen/spellforge/internal/preview"
	"github.com/cory-johannsen/spellforge/internal/resolution"
)

type fakeHooks struct {
	calls []string
	err   error
}

func (f *fakeHooks) ContextHook(name string, ctx formula.Context) (formula.Context, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return ctx, f.err
	}
	return ctx.With("POWER", 5), nil
}

func newPreviewer(t *testing.T, hooks preview.HookRunner) *preview.Previewer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return preview.NewPreviewer(resolution.NewResolver(formula.NewCache(16), logger), hooks, logger)
}

func compile(t *testing.T, def preset.Def) *preset.Preset {
	t.Helper()
	p, err := preset.Compile(def, effect.StandardDefaults())
	require.NoError(t, err)
	return p
}

func intp(v int) *int { return &v }

func floatp(v float64) *float64 { return &v }

func TestPreview_ChainAndCritical(t *testing.T) {
	p := compile(t, preset.Def{
		ID:       "chain_lightning",
		Name:     "Chain Lightning",
		Formula:  "2d8+SPI/2",
		Context:  map[string]float64{"SPI": 14},
		Chain:    &effect.ChainParams{TargetCount: intp(4), FalloffType: "flat", FalloffRate: floatp(2)},
		Critical: &effect.CriticalParams{Bonus: "1d8"},
	})
	r, err := newPreviewer(t, nil).Preview(p, formula.Context{})
	require.NoError(t, err)

	assert.Equal(t, 16.0, r.Resolution.Value)
	assert.False(t, r.Stats.Known(formula.FieldAverage))
	require.Len(t, r.Terms, 2)
	assert.True(t, r.Terms[0].Stats.Determinate())

	require.NotNil(t, r.Chain)
	assert.Equal(t, []float64{16, 14, 12, 10}, r.Chain.PerTarget)
	assert.Equal(t, 52.0, r.Chain.Total)

	require.NotNil(t, r.Critical)
	assert.Equal(t, 36.5, r.Critical.Value)
	assert.Nil(t, r.Ticks)
}

func TestPreview_CallerContextOverridesPreset(t *testing.T) {
	p := compile(t, preset.Def{ID: "bolt", Formula: "2d8+SPI/2", Context: map[string]float64{"SPI": 14}})
	r, err := newPreviewer(t, nil).Preview(p, formula.NewContext(formula.Binding{Name: "SPI", Value: 20}))
	require.NoError(t, err)
	assert.Equal(t, 19.0, r.Resolution.Value)
}

func TestPreview_TicksWithPerTickFormula(t *testing.T) {
	p := compile(t, preset.Def{
		ID:      "ember",
		Formula: "1d6",
		Ticks:   &effect.TickParams{Count: intp(4), Scaling: "back_loaded", Expression: "1d4"},
	})
	r, err := newPreviewer(t, nil).Preview(p, formula.Context{})
	require.NoError(t, err)
	require.NotNil(t, r.Ticks)
	assert.InDeltaSlice(t, []float64{1.25, 1.875, 2.5, 3.125}, r.Ticks.PerTick, 1e-9)
	assert.InDelta(t, 8.75, r.Ticks.Total, 1e-9)
	assert.Equal(t, "Minor", r.Band.Label)
}

func TestPreview_TicksFromResolvedValue(t *testing.T) {
	p := compile(t, preset.Def{ID: "burn", Formula: "1d6", Ticks: &effect.TickParams{}})
	r, err := newPreviewer(t, nil).Preview(p, formula.Context{})
	require.NoError(t, err)
	require.NotNil(t, r.Ticks)
	assert.Equal(t, []float64{3.5, 3.5, 3.5}, r.Ticks.PerTick)
	assert.Equal(t, 10.5, r.Ticks.Total)
}

func TestPreview_ScriptHook(t *testing.T) {
	hooks := &fakeHooks{}
	p := compile(t, preset.Def{ID: "empowered", Formula: "1d6+POWER", Script: "spell_power"})
	r, err := newPreviewer(t, hooks).Preview(p, formula.Context{})
	require.NoError(t, err)
	assert.Equal(t, 8.5, r.Resolution.Value)
	assert.Equal(t, []string{"spell_power"}, hooks.calls)
	assert.True(t, r.Context.Has("POWER"))
}

func TestPreview_ScriptHookErrors(t *testing.T) {
	p := compile(t, preset.Def{ID: "empowered", Formula: "1d6+POWER", Script: "spell_power"})

	_, err := newPreviewer(t, nil).Preview(p, formula.Context{})
	assert.ErrorIs(t, err, preview.ErrNoHooks)

	boom := errors.New("boom")
	_, err = newPreviewer(t, &fakeHooks{err: boom}).Preview(p, formula.Context{})
	assert.ErrorIs(t, err, boom)
}

func TestPreview_UnknownVariable(t *testing.T) {
	p := compile(t, preset.Def{ID: "bolt", Formula: "2d8+SPI"})
	_, err := newPreviewer(t, nil).Preview(p, formula.Context{})
	assert.ErrorIs(t, err, formula.ErrUnknownVariable)
	assert.Contains(t, err.Error(), `"bolt"`)
}

func TestPreview_CardsPreset(t *testing.T) {
	p := compile(t, preset.Def{ID: "blackjack", Formula: "CARD_VALUE*2", Method: "cards", Hand: "AH KS"})
	r, err := newPreviewer(t, nil).Preview(p, formula.Context{})
	require.NoError(t, err)
	assert.Equal(t, resolution.MethodCards, r.Resolution.Method)
	assert.Equal(t, 42.0, r.Resolution.Value)
	assert.Empty(t, r.Resolution.Missing)
}

func TestRender(t *testing.T) {
	p := compile(t, preset.Def{
		ID:       "chain_lightning",
		Name:     "Chain Lightning",
		Formula:  "2d8+4",
		Chain:    &effect.ChainParams{TargetCount: intp(3), FalloffType: "flat", FalloffRate: floatp(2)},
		Critical: &effect.CriticalParams{},
		Ticks:    &effect.TickParams{Count: intp(2)},
	})
	r, err := preview.NewPreviewer(resolution.NewResolver(nil, zap.NewNop()), nil, zap.NewNop()).Preview(p, formula.Context{})
	require.NoError(t, err)

	out := preview.Render(r)
	assert.True(t, strings.HasPrefix(out, "Chain Lightning (chain_lightning)\n"))
	assert.Contains(t, out, "formula:  2d8+4 [DICE]")
	assert.Contains(t, out, "stats:    min 6, max 20, avg 13.0")
	assert.Contains(t, out, "severity: Moderate")
	assert.Contains(t, out, "value:    13")
	assert.Contains(t, out, "chain:    13 11 9 = 33")
	assert.Contains(t, out, "critical: 26 [min 12, max 40, avg 26.0]")
	assert.Contains(t, out, "ticks:    13 13 = 26")
	assert.Contains(t, out, "terms:    +2d8 [min 2, max 16, avg 9.0] +4 [min 4, max 4, avg 4.0]")
}

func TestNumber(t *testing.T) {
	assert.Equal(t, "13", preview.Number(13))
	assert.Equal(t, "9.75", preview.Number(9.75))
	assert.Equal(t, "7.31", preview.Number(7.3125))
	assert.Equal(t, "-2.5", preview.Number(-2.5))
	assert.Equal(t, "1 2.5", preview.Numbers([]float64{1, 2.5}))
}

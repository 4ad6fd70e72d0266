package resolution_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/spellforge/internal/formula"
	"github.com/cory-johannsen/spellforge/internal/resolution"
)

func lookup(t *testing.T, ctx formula.Context, name string) float64 {
	t.Helper()
	v, ok := ctx.Lookup(name)
	require.True(t, ok, "context must bind %s", name)
	return v
}

func TestParseMethod(t *testing.T) {
	for in, want := range map[string]resolution.Method{
		"": resolution.MethodDice, "dice": resolution.MethodDice,
		"Cards": resolution.MethodCards, "COINS": resolution.MethodCoins, "coin": resolution.MethodCoins,
	} {
		got, err := resolution.ParseMethod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := resolution.ParseMethod("tarot")
	assert.Error(t, err)
}

func TestVocabulary(t *testing.T) {
	assert.Empty(t, resolution.MethodDice.Vocabulary())
	assert.Contains(t, resolution.MethodCards.Vocabulary(), "CARD_VALUE")
	assert.Contains(t, resolution.MethodCards.Vocabulary(), "FACE_CARD_COUNT")
	assert.Contains(t, resolution.MethodCards.Vocabulary(), "SAME_SUIT")
	assert.Contains(t, resolution.MethodCards.Vocabulary(), "HEARTS_COUNT")
	assert.Contains(t, resolution.MethodCards.Vocabulary(), "POKER_HAND_RANK")
	assert.Contains(t, resolution.MethodCoins.Vocabulary(), "HEADS_COUNT")
	assert.Contains(t, resolution.MethodCoins.Vocabulary(), "ALL_HEADS")

	m, ok := resolution.MethodFor("TAILS_COUNT")
	require.True(t, ok)
	assert.Equal(t, resolution.MethodCoins, m)
	_, ok = resolution.MethodFor("SPI")
	assert.False(t, ok)
}

func TestParseCard(t *testing.T) {
	cases := map[string]resolution.Card{
		"AH":  {Rank: 1, Suit: resolution.Hearts},
		"10s": {Rank: 10, Suit: resolution.Spades},
		"qd":  {Rank: 12, Suit: resolution.Diamonds},
		"7C":  {Rank: 7, Suit: resolution.Clubs},
	}
	for in, want := range cases {
		got, err := resolution.ParseCard(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "A", "1H", "11S", "07H", "KX"} {
		_, err := resolution.ParseCard(bad)
		assert.Error(t, err, bad)
	}
}

func TestCardValues(t *testing.T) {
	hand, err := resolution.ParseHand("AH KS QD JC 7H")
	require.NoError(t, err)
	assert.Equal(t, []int{11, 10, 10, 10, 7}, []int{hand[0].Value(), hand[1].Value(), hand[2].Value(), hand[3].Value(), hand[4].Value()})
	assert.Equal(t, "AH", hand[0].String())
	assert.Equal(t, "7H", hand[4].String())
}

func TestCardContext(t *testing.T) {
	hand, err := resolution.ParseHand("AH, KH, KS, 7H, 7D")
	require.NoError(t, err)
	ctx := resolution.CardContext(hand)

	assert.Equal(t, 45.0, lookup(t, ctx, "CARD_VALUE"))
	assert.Equal(t, 5.0, lookup(t, ctx, "CARD_COUNT"))
	assert.Equal(t, 2.0, lookup(t, ctx, "FACE_CARDS"))
	assert.Equal(t, 2.0, lookup(t, ctx, "FACE_CARD_COUNT"))
	assert.Equal(t, 1.0, lookup(t, ctx, "ACES"))
	assert.Equal(t, 11.0, lookup(t, ctx, "HIGHEST_CARD"))
	assert.Equal(t, 4.0, lookup(t, ctx, "RED_COUNT"))
	assert.Equal(t, 1.0, lookup(t, ctx, "BLACK_COUNT"))
	assert.Equal(t, 3.0, lookup(t, ctx, "SUIT_COUNT"))
	assert.Equal(t, 0.0, lookup(t, ctx, "SAME_SUIT"))
	assert.Equal(t, 2.0, lookup(t, ctx, "PAIRS"))
	assert.Equal(t, 0.0, lookup(t, ctx, "THREE_KIND"))
	assert.Equal(t, 0.0, lookup(t, ctx, "FULL_HOUSE"))
	assert.Equal(t, 0.0, lookup(t, ctx, "STRAIGHT"))
}

func TestCardContext_FlushAndFullHouse(t *testing.T) {
	flush, err := resolution.ParseHand("2S 5S 9S JS KS")
	require.NoError(t, err)
	ctx := resolution.CardContext(flush)
	assert.Equal(t, 1.0, lookup(t, ctx, "SAME_SUIT"))
	assert.Equal(t, 1.0, lookup(t, ctx, "FLUSH"))

	house, err := resolution.ParseHand("9S 9H 9D 4C 4S")
	require.NoError(t, err)
	ctx = resolution.CardContext(house)
	assert.Equal(t, 1.0, lookup(t, ctx, "THREE_KIND"))
	assert.Equal(t, 1.0, lookup(t, ctx, "FULL_HOUSE"))
	assert.Equal(t, 1.0, lookup(t, ctx, "PAIRS"))
}

func TestCardContext_Straights(t *testing.T) {
	for _, src := range []string{"AH 2S 3D 4C 5H", "10H JS QD KC AH", "4H 5S 6D 7C 8H"} {
		hand, err := resolution.ParseHand(src)
		require.NoError(t, err)
		assert.Equal(t, 1.0, lookup(t, resolution.CardContext(hand), "STRAIGHT"), src)
	}
	hand, err := resolution.ParseHand("QH KS AD 2C 3H")
	require.NoError(t, err)
	assert.Equal(t, 0.0, lookup(t, resolution.CardContext(hand), "STRAIGHT"), "no wrap-around straights")
}

func TestCardContext_SuitCounts(t *testing.T) {
	hand, err := resolution.ParseHand("AH 4H 9H KS 2D 2C")
	require.NoError(t, err)
	ctx := resolution.CardContext(hand)
	assert.Equal(t, 3.0, lookup(t, ctx, "HEARTS_COUNT"))
	assert.Equal(t, 1.0, lookup(t, ctx, "DIAMONDS_COUNT"))
	assert.Equal(t, 1.0, lookup(t, ctx, "CLUBS_COUNT"))
	assert.Equal(t, 1.0, lookup(t, ctx, "SPADES_COUNT"))
	assert.Equal(t, 3.0, lookup(t, ctx, "SAME_SUIT_COUNT"))
	assert.Equal(t, 1.0, lookup(t, ctx, "PAIR_COUNT"))
	assert.Equal(t, float64(resolution.OnePair), lookup(t, ctx, "POKER_HAND_RANK"))
}

func TestCardContext_RoyalFlush(t *testing.T) {
	hand, err := resolution.ParseHand("AH KH QH JH 10H")
	require.NoError(t, err)
	ctx := resolution.CardContext(hand)
	assert.Equal(t, 1.0, lookup(t, ctx, "ROYAL_FLUSH"))
	assert.Equal(t, 1.0, lookup(t, ctx, "STRAIGHT_FLUSH"))
	assert.Equal(t, 5.0, lookup(t, ctx, "HEARTS_COUNT"))
	assert.Equal(t, 5.0, lookup(t, ctx, "SAME_SUIT_COUNT"))
	assert.Equal(t, float64(resolution.RoyalFlush), lookup(t, ctx, "POKER_HAND_RANK"))

	wheel, err := resolution.ParseHand("AS 2S 3S 4S 5S")
	require.NoError(t, err)
	ctx = resolution.CardContext(wheel)
	assert.Equal(t, 0.0, lookup(t, ctx, "ROYAL_FLUSH"), "ace-low straight flush is not royal")
	assert.Equal(t, 1.0, lookup(t, ctx, "STRAIGHT_FLUSH"))
	assert.Equal(t, float64(resolution.StraightFlush), lookup(t, ctx, "POKER_HAND_RANK"))
}

func TestCardContext_PokerHandRank(t *testing.T) {
	cases := map[string]int{
		"2H 5S 9D JC KH":    resolution.HighCard,
		"2H 2S 9D JC KH":    resolution.OnePair,
		"2H 2S 9D 9C KH":    resolution.TwoPair,
		"2H 2S 2D JC KH":    resolution.ThreeOfAKind,
		"4H 5S 6D 7C 8H":    resolution.StraightHand,
		"2S 5S 9S JS KS":    resolution.FlushHand,
		"9S 9H 9D 4C 4S":    resolution.FullHouse,
		"9S 9H 9D 4C 4S 4H": resolution.FullHouse,
		"7S 7H 7D 7C KH":    resolution.FourOfAKind,
		"5D 6D 7D 8D 9D":    resolution.StraightFlush,
		"10C JC QC KC AC":   resolution.RoyalFlush,
	}
	for src, want := range cases {
		hand, err := resolution.ParseHand(src)
		require.NoError(t, err, src)
		assert.Equal(t, float64(want), lookup(t, resolution.CardContext(hand), "POKER_HAND_RANK"), src)
	}
}

func TestResolver_CardsFormulaWithSuitCounts(t *testing.T) {
	r, _ := newObservedResolver()
	hand, err := resolution.ParseHand("AH 4H KS")
	require.NoError(t, err)

	res, err := r.Resolve("CARD_VALUE + (HEARTS_COUNT * 3)", resolution.CardContext(hand), resolution.MethodCards)
	require.NoError(t, err)
	assert.Equal(t, 31.0, res.Value)
	assert.Empty(t, res.Missing)
	assert.Empty(t, res.Foreign)

	res, err = r.Resolve("CARD_VALUE + POKER_HAND_RANK * 3", resolution.CardContext(hand), resolution.MethodCards)
	require.NoError(t, err)
	assert.Equal(t, 25.0, res.Value)
	assert.Empty(t, res.Foreign)
}

func TestCardContext_EmptyHand(t *testing.T) {
	ctx := resolution.CardContext(nil)
	assert.Equal(t, 0.0, lookup(t, ctx, "CARD_VALUE"))
	assert.Equal(t, 0.0, lookup(t, ctx, "SAME_SUIT"))
	assert.Equal(t, 0.0, lookup(t, ctx, "SAME_SUIT_COUNT"))
	assert.Equal(t, float64(resolution.HighCard), lookup(t, ctx, "POKER_HAND_RANK"))
}

func TestParseFlips(t *testing.T) {
	flips, err := resolution.ParseFlips("HHT h,tails heads")
	require.NoError(t, err)
	assert.Equal(t, []resolution.Flip{resolution.Heads, resolution.Heads, resolution.Tails, resolution.Heads, resolution.Tails, resolution.Heads}, flips)

	_, err = resolution.ParseFlips("HXT")
	assert.Error(t, err)
}

func TestCoinContext(t *testing.T) {
	flips, err := resolution.ParseFlips("HHHTTH")
	require.NoError(t, err)
	ctx := resolution.CoinContext(flips)

	assert.Equal(t, 4.0, lookup(t, ctx, "HEADS_COUNT"))
	assert.Equal(t, 2.0, lookup(t, ctx, "TAILS_COUNT"))
	assert.Equal(t, 0.0, lookup(t, ctx, "ALL_HEADS"))
	assert.Equal(t, 0.0, lookup(t, ctx, "ALL_TAILS"))
	assert.Equal(t, 6.0, lookup(t, ctx, "COIN_COUNT"))
	assert.InDelta(t, 4.0/6.0, lookup(t, ctx, "HEADS_RATIO"), 1e-12)
	assert.Equal(t, 3.0, lookup(t, ctx, "LONGEST_STREAK"))
	assert.Equal(t, 3.0, lookup(t, ctx, "CONSECUTIVE_HEADS"))
	assert.Equal(t, 2.0, lookup(t, ctx, "CONSECUTIVE_TAILS"))
	assert.Equal(t, 0.0, lookup(t, ctx, "ALTERNATING_PATTERN"))
}

func TestCoinContext_AllHeadsAndAlternating(t *testing.T) {
	ctx := resolution.CoinContext([]resolution.Flip{resolution.Heads, resolution.Heads, resolution.Heads})
	assert.Equal(t, 1.0, lookup(t, ctx, "ALL_HEADS"))
	assert.Equal(t, 1.0, lookup(t, ctx, "HEADS_RATIO"))

	ctx = resolution.CoinContext([]resolution.Flip{resolution.Heads, resolution.Tails, resolution.Heads, resolution.Tails})
	assert.Equal(t, 1.0, lookup(t, ctx, "ALTERNATING_PATTERN"))
	assert.Equal(t, 1.0, lookup(t, ctx, "LONGEST_STREAK"))

	ctx = resolution.CoinContext(nil)
	assert.Equal(t, 0.0, lookup(t, ctx, "ALL_HEADS"))
	assert.Equal(t, 0.0, lookup(t, ctx, "HEADS_RATIO"))
}

// TestCoinContext_Property verifies heads + tails == count and streak bounds.
func TestCoinContext_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		raw := rapid.SliceOfN(rapid.Bool(), 0, 30).Draw(rt, "flips")
		flips := make([]resolution.Flip, len(raw))
		for i, b := range raw {
			flips[i] = resolution.Flip(b)
		}
		ctx := resolution.CoinContext(flips)
		get := func(name string) float64 {
			v, ok := ctx.Lookup(name)
			require.True(rt, ok)
			return v
		}
		assert.Equal(rt, float64(len(flips)), get("HEADS_COUNT")+get("TAILS_COUNT"))
		assert.LessOrEqual(rt, get("LONGEST_STREAK"), float64(len(flips)))
		assert.Equal(rt, get("LONGEST_STREAK"), max(get("CONSECUTIVE_HEADS"), get("CONSECUTIVE_TAILS")))
		assert.GreaterOrEqual(rt, get("HEADS_RATIO"), 0.0)
		assert.LessOrEqual(rt, get("HEADS_RATIO"), 1.0)
	})
}

func TestStatContext_UpperCases(t *testing.T) {
	ctx := resolution.StatContext(map[string]float64{"spi": 14, "Str": 9})
	assert.Equal(t, []formula.Binding{{Name: "SPI", Value: 14}, {Name: "STR", Value: 9}}, ctx.Bindings())
}

func newObservedResolver() (*resolution.Resolver, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return resolution.NewResolver(formula.NewCache(16), zap.New(core)), logs
}

func TestResolver_CoinsFormula(t *testing.T) {
	r, logs := newObservedResolver()
	flips, err := resolution.ParseFlips("HHH")
	require.NoError(t, err)
	ctx := resolution.CoinContext(flips).Merge(resolution.StatContext(map[string]float64{"SPI": 4}))

	res, err := r.Resolve("ALL_HEADS ? 12 : 3 + SPI", ctx, resolution.MethodCoins)
	require.NoError(t, err)
	assert.Equal(t, 12.0, res.Value)
	assert.Empty(t, res.Missing)
	assert.Empty(t, res.Foreign)

	entries := logs.FilterMessage("formula resolved").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "COINS", entries[0].ContextMap()["method"])
}

func TestResolver_MethodNeverChangesValue(t *testing.T) {
	r, _ := newObservedResolver()
	hand, err := resolution.ParseHand("AH KS")
	require.NoError(t, err)
	ctx := resolution.CardContext(hand)
	var values []float64
	for _, m := range resolution.Methods {
		res, err := r.Resolve("CARD_VALUE * (SAME_SUIT ? 2 : 1)", ctx, m)
		require.NoError(t, err)
		values = append(values, res.Value)
	}
	assert.Equal(t, []float64{21, 21, 21}, values)
}

func TestResolver_WarnsOnVocabularyMismatch(t *testing.T) {
	r, logs := newObservedResolver()
	ctx := formula.NewContext(formula.Binding{Name: "HEADS_COUNT", Value: 1})

	res, err := r.Resolve("HEADS_COUNT + CARD_VALUE", ctx, resolution.MethodCoins)
	require.Error(t, err)
	assert.True(t, errors.Is(err, formula.ErrUnknownVariable))
	assert.Equal(t, []string{"CARD_VALUE"}, res.Foreign)

	_, err = r.Resolve("TAILS_COUNT * 2", formula.Context{}, resolution.MethodCoins)
	require.Error(t, err)

	warnings := logs.FilterMessage("formula vocabulary mismatch").All()
	require.Len(t, warnings, 2)
	assert.Equal(t, zapcore.WarnLevel, warnings[1].Level)
}

func TestResolver_SyntaxError(t *testing.T) {
	r, logs := newObservedResolver()
	_, err := r.Resolve("2d+4", formula.Context{}, resolution.MethodDice)
	assert.True(t, errors.Is(err, formula.ErrSyntax))
	assert.Equal(t, 1, logs.FilterMessage("formula rejected").Len())
}

func TestResolver_WithoutCache(t *testing.T) {
	r := resolution.NewResolver(nil, zap.NewNop())
	res, err := r.Resolve("2d8+4", formula.Context{}, resolution.MethodDice)
	require.NoError(t, err)
	assert.Equal(t, 13.0, res.Value)
	assert.Equal(t, "2d8+4", res.Source)
}

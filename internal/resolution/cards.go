package resolution

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cory-johannsen/spellforge/internal/formula"
)

var cardVocabulary = []string{
	"CARD_VALUE", "CARD_COUNT", "FACE_CARDS", "FACE_CARD_COUNT", "ACES", "ACE_COUNT",
	"HIGHEST_CARD", "RED_COUNT", "BLACK_COUNT", "SUIT_COUNT", "SAME_SUIT", "FLUSH",
	"STRAIGHT", "PAIRS", "THREE_KIND", "FOUR_KIND", "FULL_HOUSE",
	"HEARTS_COUNT", "DIAMONDS_COUNT", "CLUBS_COUNT", "SPADES_COUNT", "SAME_SUIT_COUNT",
	"PAIR_COUNT", "THREE_KIND_COUNT", "STRAIGHT_FLUSH", "ROYAL_FLUSH", "POKER_HAND_RANK",
}

// Poker hand ranks bound to POKER_HAND_RANK, weakest first.
const (
	HighCard = iota
	OnePair
	TwoPair
	ThreeOfAKind
	StraightHand
	FlushHand
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

// Suit is a playing-card suit.
type Suit byte

const (
	Hearts   Suit = 'H'
	Diamonds Suit = 'D'
	Clubs    Suit = 'C'
	Spades   Suit = 'S'
)

// Red reports whether s is hearts or diamonds.
func (s Suit) Red() bool { return s == Hearts || s == Diamonds }

// Card is a playing card. Rank is 1 (ace) through 13 (king).
type Card struct {
	Rank int
	Suit Suit
}

// Value is the card's score: aces 11, face cards 10, others their rank.
func (c Card) Value() int {
	switch {
	case c.Rank == 1:
		return 11
	case c.Rank >= 11:
		return 10
	}
	return c.Rank
}

// Face reports whether c is a jack, queen or king.
func (c Card) Face() bool { return c.Rank >= 11 }

func (c Card) String() string {
	var rank string
	switch c.Rank {
	case 1:
		rank = "A"
	case 11:
		rank = "J"
	case 12:
		rank = "Q"
	case 13:
		rank = "K"
	default:
		rank = fmt.Sprint(c.Rank)
	}
	return rank + string(c.Suit)
}

// ParseCard parses "AH", "10s", "qd", "7C".
func ParseCard(s string) (Card, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 2 {
		return Card{}, fmt.Errorf("resolution: invalid card %q", s)
	}
	rankText, suit := s[:len(s)-1], Suit(s[len(s)-1])
	switch suit {
	case Hearts, Diamonds, Clubs, Spades:
	default:
		return Card{}, fmt.Errorf("resolution: invalid suit in card %q", s)
	}
	var rank int
	switch rankText {
	case "A":
		rank = 1
	case "J":
		rank = 11
	case "Q":
		rank = 12
	case "K":
		rank = 13
	default:
		if _, err := fmt.Sscanf(rankText, "%d", &rank); err != nil || rank < 2 || rank > 10 || fmt.Sprint(rank) != rankText {
			return Card{}, fmt.Errorf("resolution: invalid rank in card %q", s)
		}
	}
	return Card{Rank: rank, Suit: suit}, nil
}

// ParseHand parses a whitespace- or comma-separated list of cards.
func ParseHand(s string) ([]Card, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	hand := make([]Card, 0, len(fields))
	for _, f := range fields {
		c, err := ParseCard(f)
		if err != nil {
			return nil, err
		}
		hand = append(hand, c)
	}
	return hand, nil
}

// CardContext derives the card vocabulary from a drawn hand.
//
// Boolean tokens are 1 or 0. An empty hand yields zeroes throughout.
func CardContext(hand []Card) formula.Context {
	var value, faces, aces, highest, red int
	suits := make(map[Suit]int)
	ranks := make(map[int]int)
	for _, c := range hand {
		value += c.Value()
		if c.Face() {
			faces++
		}
		if c.Rank == 1 {
			aces++
		}
		if c.Value() > highest {
			highest = c.Value()
		}
		if c.Suit.Red() {
			red++
		}
		suits[c.Suit]++
		ranks[c.Rank]++
	}

	var pairs, threes, fours int
	for _, n := range ranks {
		switch {
		case n >= 4:
			fours++
		case n == 3:
			threes++
		case n == 2:
			pairs++
		}
	}

	var largestSuit int
	for _, n := range suits {
		largestSuit = max(largestSuit, n)
	}

	sameSuit := len(hand) > 0 && len(suits) == 1
	flush := sameSuit && len(hand) >= 5
	straight := isStraight(ranks, len(hand))
	straightFlush := flush && straight
	royal := straightFlush && ranks[1] == 1 && ranks[13] == 1 && ranks[10] == 1
	fullHouse := threes > 0 && pairs > 0 || threes > 1
	return formula.NewContext(
		formula.Binding{Name: "CARD_VALUE", Value: float64(value)},
		formula.Binding{Name: "CARD_COUNT", Value: float64(len(hand))},
		formula.Binding{Name: "FACE_CARDS", Value: float64(faces)},
		formula.Binding{Name: "FACE_CARD_COUNT", Value: float64(faces)},
		formula.Binding{Name: "ACES", Value: float64(aces)},
		formula.Binding{Name: "ACE_COUNT", Value: float64(aces)},
		formula.Binding{Name: "HIGHEST_CARD", Value: float64(highest)},
		formula.Binding{Name: "RED_COUNT", Value: float64(red)},
		formula.Binding{Name: "BLACK_COUNT", Value: float64(len(hand) - red)},
		formula.Binding{Name: "SUIT_COUNT", Value: float64(len(suits))},
		formula.Binding{Name: "SAME_SUIT", Value: flag(sameSuit)},
		formula.Binding{Name: "FLUSH", Value: flag(flush)},
		formula.Binding{Name: "STRAIGHT", Value: flag(straight)},
		formula.Binding{Name: "PAIRS", Value: float64(pairs)},
		formula.Binding{Name: "THREE_KIND", Value: flag(threes > 0 || fours > 0)},
		formula.Binding{Name: "FOUR_KIND", Value: flag(fours > 0)},
		formula.Binding{Name: "FULL_HOUSE", Value: flag(fullHouse)},
		formula.Binding{Name: "HEARTS_COUNT", Value: float64(suits[Hearts])},
		formula.Binding{Name: "DIAMONDS_COUNT", Value: float64(suits[Diamonds])},
		formula.Binding{Name: "CLUBS_COUNT", Value: float64(suits[Clubs])},
		formula.Binding{Name: "SPADES_COUNT", Value: float64(suits[Spades])},
		formula.Binding{Name: "SAME_SUIT_COUNT", Value: float64(largestSuit)},
		formula.Binding{Name: "PAIR_COUNT", Value: float64(pairs)},
		formula.Binding{Name: "THREE_KIND_COUNT", Value: float64(threes)},
		formula.Binding{Name: "STRAIGHT_FLUSH", Value: flag(straightFlush)},
		formula.Binding{Name: "ROYAL_FLUSH", Value: flag(royal)},
		formula.Binding{Name: "POKER_HAND_RANK", Value: float64(handRank(pairs, threes, fours, fullHouse, flush, straight, royal))},
	)
}

// handRank classifies a hand on the HighCard..RoyalFlush scale.
func handRank(pairs, threes, fours int, fullHouse, flush, straight, royal bool) int {
	switch {
	case royal:
		return RoyalFlush
	case flush && straight:
		return StraightFlush
	case fours > 0:
		return FourOfAKind
	case fullHouse:
		return FullHouse
	case flush:
		return FlushHand
	case straight:
		return StraightHand
	case threes > 0:
		return ThreeOfAKind
	case pairs > 1:
		return TwoPair
	case pairs == 1:
		return OnePair
	}
	return HighCard
}

// isStraight reports whether at least five cards form a run of distinct ranks.
// Aces count high or low.
func isStraight(ranks map[int]int, n int) bool {
	if n < 5 || len(ranks) != n {
		return false
	}
	run := func(values []int) bool {
		sort.Ints(values)
		for i := 1; i < len(values); i++ {
			if values[i] != values[i-1]+1 {
				return false
			}
		}
		return true
	}
	low := make([]int, 0, n)
	for r := range ranks {
		low = append(low, r)
	}
	if run(low) {
		return true
	}
	if ranks[1] == 0 {
		return false
	}
	high := make([]int, 0, n)
	for r := range ranks {
		if r == 1 {
			r = 14
		}
		high = append(high, r)
	}
	return run(high)
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Package resolution binds a formula to the randomness source behind its
// variable tokens (dice, playing cards or coin flips) and resolves it to a
// single number.
//
// The method only decides which vocabulary a context is expected to carry.
// Evaluation itself is the same for every method.
package resolution

import (
	"fmt"
	"strings"
)

// Method is a resolution method discriminator.
type Method string

const (
	MethodDice  Method = "DICE"
	MethodCards Method = "CARDS"
	MethodCoins Method = "COINS"
)

// Methods lists every method in display order.
var Methods = []Method{MethodDice, MethodCards, MethodCoins}

// ParseMethod resolves s case-insensitively. An empty string means MethodDice.
func ParseMethod(s string) (Method, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "DICE":
		return MethodDice, nil
	case "CARDS", "CARD":
		return MethodCards, nil
	case "COINS", "COIN":
		return MethodCoins, nil
	}
	return "", fmt.Errorf("resolution: unknown method %q (want DICE, CARDS or COINS)", s)
}

// String returns the method name.
func (m Method) String() string { return string(m) }

// Vocabulary returns the variable names a context built for m provides.
// Dice formulas carry their randomness in dice terms and need no tokens.
func (m Method) Vocabulary() []string {
	switch m {
	case MethodCards:
		return append([]string(nil), cardVocabulary...)
	case MethodCoins:
		return append([]string(nil), coinVocabulary...)
	}
	return nil
}

// Owns reports whether name belongs to m's vocabulary.
func (m Method) Owns(name string) bool {
	for _, v := range m.Vocabulary() {
		if v == name {
			return true
		}
	}
	return false
}

// MethodFor returns the method whose vocabulary contains name.
func MethodFor(name string) (Method, bool) {
	for _, m := range Methods {
		if m.Owns(name) {
			return m, true
		}
	}
	return "", false
}

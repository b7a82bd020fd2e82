package exchange

import (
	"fmt"
	"regexp"
	"strings"
)

// validSymbol matches canonical currency codes.
var validSymbol = regexp.MustCompile(`^[A-Z0-9]{1,20}$`)

// CanonicalSymbol converts a currency code to its canonical form.
// Two symbols are the same entity iff their canonical forms are equal.
func CanonicalSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidateSymbol checks that a symbol has a valid canonical form.
func ValidateSymbol(s string) error {
	c := CanonicalSymbol(s)
	if c == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if !validSymbol.MatchString(c) {
		return fmt.Errorf("invalid symbol: %q", s)
	}
	return nil
}

// Pair is an ordered (base, quote) combination of canonical symbols.
// (A,B) and (B,A) are distinct pairs.
type Pair struct {
	Base  string
	Quote string
}

// NewPair builds a pair from raw symbols, canonicalizing both sides.
func NewPair(base, quote string) Pair {
	return Pair{Base: CanonicalSymbol(base), Quote: CanonicalSymbol(quote)}
}

// ParsePair parses "BTC/USD", "BTC_USD" or "BTC-USD" into a pair.
func ParsePair(s string) (Pair, error) {
	for _, sep := range []string{"/", "_", "-"} {
		parts := strings.Split(s, sep)
		if len(parts) != 2 {
			continue
		}
		p := NewPair(parts[0], parts[1])
		if err := ValidateSymbol(p.Base); err != nil {
			return Pair{}, fmt.Errorf("parsing pair %q: %w", s, err)
		}
		if err := ValidateSymbol(p.Quote); err != nil {
			return Pair{}, fmt.Errorf("parsing pair %q: %w", s, err)
		}
		return p, nil
	}
	return Pair{}, fmt.Errorf("invalid pair format: %q", s)
}

// String formats the pair as "BASE_QUOTE".
func (p Pair) String() string {
	return p.Base + "_" + p.Quote
}

// Inverse returns the pair with base and quote swapped.
func (p Pair) Inverse() Pair {
	return Pair{Base: p.Quote, Quote: p.Base}
}

// IsIdentity reports whether base and quote are the same symbol.
func (p Pair) IsIdentity() bool {
	return p.Base == p.Quote
}

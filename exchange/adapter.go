package exchange

import (
	"context"
	"time"
)

// Adapter is the capability contract every data source must satisfy.
// The manager depends only on this interface, never on concrete types.
type Adapter interface {
	// Code returns the unique short identifier of the source.
	Code() string
	// Name returns the display name. Names need not be unique.
	Name() string
	// Provides returns the pairs this source lists directly.
	Provides() []Pair
	// HasPair answers from the static provides set. Pure, no I/O.
	HasPair(base, quote string) bool
	// GetPair returns a quote, cached or live. It fails with
	// ErrPairNotFound when the pair is not provided, ErrExchangeDown on
	// transport or parse failure, and ErrRateLimited when the source
	// signals throttling. Calls within CacheTTL of a prior success for
	// the same pair must not hit the network again.
	GetPair(ctx context.Context, base, quote string) (Quote, error)
	// CacheTTL returns how long a fetched quote stays fresh.
	CacheTTL() time.Duration
}

// Factory constructs an adapter on demand, used for deferred loading by
// locator string.
type Factory func() (Adapter, error)

// PairSet is an ordered set of pairs with constant-time membership checks.
// Adapters use it to back Provides and HasPair.
type PairSet struct {
	pairs []Pair
	index map[Pair]struct{}
}

// NewPairSet builds a set from the given pairs, canonicalizing and
// deduplicating them while preserving first-seen order.
func NewPairSet(pairs ...Pair) *PairSet {
	s := &PairSet{index: make(map[Pair]struct{}, len(pairs))}
	s.Add(pairs...)
	return s
}

// Add appends pairs not already present.
func (s *PairSet) Add(pairs ...Pair) {
	for _, p := range pairs {
		c := NewPair(p.Base, p.Quote)
		if _, ok := s.index[c]; ok {
			continue
		}
		s.index[c] = struct{}{}
		s.pairs = append(s.pairs, c)
	}
}

// Has reports whether the canonical (base, quote) pair is in the set.
func (s *PairSet) Has(base, quote string) bool {
	_, ok := s.index[NewPair(base, quote)]
	return ok
}

// Pairs returns the pairs in insertion order.
func (s *PairSet) Pairs() []Pair {
	out := make([]Pair, len(s.pairs))
	copy(out, s.pairs)
	return out
}

// Len returns the number of pairs in the set.
func (s *PairSet) Len() int {
	return len(s.pairs)
}

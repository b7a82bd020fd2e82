package exchange

import "sort"

// pairIndex maps pairs to the adapters listing them and back. A built index
// is immutable; the manager swaps in a fresh one on every load or unload so
// concurrent readers see either the old or the new state, never a partial
// rebuild.
type pairIndex struct {
	byPair map[Pair][]string
	byCode map[string][]Pair
}

// buildIndex derives the index from adapters in resolution-priority order.
// Adapter codes inside each byPair slice keep that order.
func buildIndex(adapters []Adapter) *pairIndex {
	ix := &pairIndex{
		byPair: make(map[Pair][]string),
		byCode: make(map[string][]Pair, len(adapters)),
	}
	for _, a := range adapters {
		code := a.Code()
		seen := make(map[Pair]struct{})
		for _, raw := range a.Provides() {
			p := NewPair(raw.Base, raw.Quote)
			if p.Base == "" || p.Quote == "" {
				continue
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			ix.byPair[p] = append(ix.byPair[p], code)
			ix.byCode[code] = append(ix.byCode[code], p)
		}
		if _, ok := ix.byCode[code]; !ok {
			ix.byCode[code] = nil
		}
	}
	return ix
}

// adaptersFor returns the codes directly providing the pair, highest
// priority first.
func (ix *pairIndex) adaptersFor(p Pair) []string {
	return ix.byPair[p]
}

// has reports whether at least one adapter provides the pair directly.
func (ix *pairIndex) has(p Pair) bool {
	return len(ix.byPair[p]) > 0
}

// pairsOf returns the pairs a single adapter provides.
func (ix *pairIndex) pairsOf(code string) []Pair {
	return ix.byCode[code]
}

// pairsFrom lists all quote symbols directly reachable from base, sorted.
func (ix *pairIndex) pairsFrom(base string) []string {
	var out []string
	seen := make(map[string]struct{})
	for p := range ix.byPair {
		if p.Base != base {
			continue
		}
		if _, dup := seen[p.Quote]; dup {
			continue
		}
		seen[p.Quote] = struct{}{}
		out = append(out, p.Quote)
	}
	sort.Strings(out)
	return out
}

// pairsTo lists all base symbols with a direct pair into quote, sorted.
func (ix *pairIndex) pairsTo(quote string) []string {
	var out []string
	seen := make(map[string]struct{})
	for p := range ix.byPair {
		if p.Quote != quote {
			continue
		}
		if _, dup := seen[p.Base]; dup {
			continue
		}
		seen[p.Base] = struct{}{}
		out = append(out, p.Base)
	}
	sort.Strings(out)
	return out
}

// pairCount returns the number of distinct indexed pairs.
func (ix *pairIndex) pairCount() int {
	return len(ix.byPair)
}

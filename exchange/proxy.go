package exchange

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ProxyTable configures indirect resolution. ProxyOf assigns a preferred
// intermediate to specific symbols (typically stablecoins mapping to their
// reference currency); Coins is the generic pool of intermediates. Static
// after construction.
type ProxyTable struct {
	ProxyOf map[string]string
	Coins   []string
}

// DefaultProxyTable routes the major stablecoins through USD and falls back
// to BTC, USD and USDT as generic intermediates.
func DefaultProxyTable() ProxyTable {
	return ProxyTable{
		ProxyOf: map[string]string{
			"USDT": "USD",
			"USDC": "USD",
		},
		Coins: []string{"BTC", "USD", "USDT"},
	}
}

// IsZero reports whether the table has no entries at all.
func (t ProxyTable) IsZero() bool {
	return len(t.ProxyOf) == 0 && len(t.Coins) == 0
}

// normalized returns a canonicalized copy of the table.
func (t ProxyTable) normalized() ProxyTable {
	out := ProxyTable{
		ProxyOf: make(map[string]string, len(t.ProxyOf)),
		Coins:   make([]string, 0, len(t.Coins)),
	}
	for sym, proxy := range t.ProxyOf {
		out.ProxyOf[CanonicalSymbol(sym)] = CanonicalSymbol(proxy)
	}
	for _, c := range t.Coins {
		out.Coins = append(out.Coins, CanonicalSymbol(c))
	}
	return out
}

// candidates returns the intermediates to try for (base, quote): the proxy
// assigned to base, the proxy assigned to quote, then the generic pool, in
// that order, deduplicated, skipping base and quote themselves.
func (t ProxyTable) candidates(base, quote string) []string {
	ordered := make([]string, 0, len(t.Coins)+2)
	if p, ok := t.ProxyOf[base]; ok {
		ordered = append(ordered, p)
	}
	if p, ok := t.ProxyOf[quote]; ok {
		ordered = append(ordered, p)
	}
	ordered = append(ordered, t.Coins...)

	out := make([]string, 0, len(ordered))
	seen := make(map[string]struct{}, len(ordered))
	for _, p := range ordered {
		if p == base || p == quote {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// proxyRoute is a viable two-leg path through an intermediate. The second
// leg may be listed inverted, in which case its quote gets flipped before
// composing.
type proxyRoute struct {
	intermediate string
	first        Pair
	second       Pair
	invertSecond bool
}

// findRoute checks the index for a usable two-leg path via p. No I/O.
func findRoute(ix *pairIndex, base, quote, p string) (proxyRoute, bool) {
	first := Pair{Base: base, Quote: p}
	if !ix.has(first) {
		return proxyRoute{}, false
	}
	second := Pair{Base: p, Quote: quote}
	if ix.has(second) {
		return proxyRoute{intermediate: p, first: first, second: second}, true
	}
	inverted := second.Inverse()
	if ix.has(inverted) {
		return proxyRoute{intermediate: p, first: first, second: inverted, invertSecond: true}, true
	}
	return proxyRoute{}, false
}

// resolveProxy synthesizes a rate for pair by composing two direct rates
// through the first intermediate whose both legs resolve.
func (m *Manager) resolveProxy(ctx context.Context, pair Pair, v managerView, log *zap.Logger) (Quote, error) {
	cands := m.proxies.candidates(pair.Base, pair.Quote)
	if len(cands) == 0 {
		return Quote{}, WrapError(ErrProxyMissingPair,
			fmt.Errorf("no proxy candidates configured for %s", pair))
	}

	var lastErr error
	tried := make([]string, 0, len(cands))
	for _, p := range cands {
		route, ok := findRoute(v.index, pair.Base, pair.Quote, p)
		if !ok {
			continue
		}
		tried = append(tried, p)
		m.recordProxyAttempt(p)
		log.Debug("trying proxy route",
			zap.String("intermediate", p),
			zap.String("first_leg", route.first.String()),
			zap.String("second_leg", route.second.String()),
			zap.Bool("invert_second", route.invertSecond))

		first, err := m.queryFirst(ctx, route.first, v, log)
		if err != nil {
			lastErr = err
			continue
		}
		second, err := m.queryFirst(ctx, route.second, v, log)
		if err != nil {
			lastErr = err
			continue
		}
		if route.invertSecond {
			second = second.Inverse()
		}

		observed := first.ObservedAt
		if second.ObservedAt.Before(observed) {
			observed = second.ObservedAt
		}
		return Quote{
			Base:       pair.Base,
			Quote:      pair.Quote,
			Price:      first.Price.Mul(second.Price),
			Source:     ProxySource(p),
			ObservedAt: observed,
		}, nil
	}

	if len(tried) == 0 {
		return Quote{}, WrapError(ErrProxyMissingPair,
			fmt.Errorf("no viable proxy route for %s via %s", pair, strings.Join(cands, ", ")))
	}
	return Quote{}, WrapError(ErrProxyMissingPair,
		fmt.Errorf("proxy legs failed for %s via %s: %w", pair, strings.Join(tried, ", "), lastErr))
}

// proxyRouteExists answers route viability from the index and table alone.
func (m *Manager) proxyRouteExists(pair Pair, ix *pairIndex) bool {
	for _, p := range m.proxies.candidates(pair.Base, pair.Quote) {
		if _, ok := findRoute(ix, pair.Base, pair.Quote, p); ok {
			return true
		}
	}
	return false
}

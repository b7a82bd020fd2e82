package exchange

import (
	"reflect"
	"testing"
)

func TestProxyTableCandidates(t *testing.T) {
	table := DefaultProxyTable()

	tests := []struct {
		base, quote string
		want        []string
	}{
		// Neither side has an assigned proxy, so only the generic pool.
		{"EOS", "HIVE", []string{"BTC", "USD", "USDT"}},
		// USDT maps to USD; USD leads, USDT is excluded as the base itself.
		{"USDT", "HIVE", []string{"USD", "BTC"}},
		// Both sides consume their own pool entries.
		{"BTC", "USD", []string{"USDT"}},
		{"USDC", "EOS", []string{"USD", "BTC", "USDT"}},
	}
	for _, tc := range tests {
		got := table.candidates(tc.base, tc.quote)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("candidates(%s, %s) = %v, want %v", tc.base, tc.quote, got, tc.want)
		}
	}
}

func TestProxyTableCandidatesDeduplicates(t *testing.T) {
	table := ProxyTable{
		ProxyOf: map[string]string{"EOS": "USD", "HIVE": "USD"},
		Coins:   []string{"USD", "BTC", "BTC"},
	}

	got := table.candidates("EOS", "HIVE")
	want := []string{"USD", "BTC"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("candidates = %v, want %v", got, want)
	}
}

func TestProxyTableCandidatesEmpty(t *testing.T) {
	var table ProxyTable
	if got := table.candidates("BTC", "USD"); len(got) != 0 {
		t.Errorf("candidates on an empty table = %v, want none", got)
	}
	if !table.IsZero() {
		t.Error("empty table should report IsZero")
	}
}

func TestProxyTableNormalized(t *testing.T) {
	table := ProxyTable{
		ProxyOf: map[string]string{" usdt ": "usd"},
		Coins:   []string{"btc", " Usd "},
	}

	n := table.normalized()
	if got := n.ProxyOf["USDT"]; got != "USD" {
		t.Errorf("ProxyOf[USDT] = %q, want USD", got)
	}
	if want := []string{"BTC", "USD"}; !reflect.DeepEqual(n.Coins, want) {
		t.Errorf("Coins = %v, want %v", n.Coins, want)
	}
}

func TestFindRouteForward(t *testing.T) {
	a := newFakeAdapter("alpha").
		withQuote("EOS", "BTC", "1").
		withQuote("BTC", "HIVE", "1")
	ix := buildIndex([]Adapter{a})

	route, ok := findRoute(ix, "EOS", "HIVE", "BTC")
	if !ok {
		t.Fatal("expected a forward route via BTC")
	}
	if route.first != NewPair("EOS", "BTC") || route.second != NewPair("BTC", "HIVE") {
		t.Errorf("route legs = %s, %s", route.first, route.second)
	}
	if route.invertSecond {
		t.Error("forward route must not invert the second leg")
	}
}

func TestFindRouteInvertedSecondLeg(t *testing.T) {
	// Only HIVE/BTC is listed, so the BTC/HIVE leg has to be derived by
	// inverting it.
	a := newFakeAdapter("alpha").
		withQuote("EOS", "BTC", "1").
		withQuote("HIVE", "BTC", "1")
	ix := buildIndex([]Adapter{a})

	route, ok := findRoute(ix, "EOS", "HIVE", "BTC")
	if !ok {
		t.Fatal("expected a route via the inverted second leg")
	}
	if route.second != NewPair("HIVE", "BTC") {
		t.Errorf("second leg = %s, want HIVE_BTC", route.second)
	}
	if !route.invertSecond {
		t.Error("expected invertSecond to be set")
	}
}

func TestFindRouteNoFirstLeg(t *testing.T) {
	a := newFakeAdapter("alpha").withQuote("BTC", "HIVE", "1")
	ix := buildIndex([]Adapter{a})

	if _, ok := findRoute(ix, "EOS", "HIVE", "BTC"); ok {
		t.Error("route must require the first leg to be listed directly")
	}
}

func TestFindRouteNoSecondLeg(t *testing.T) {
	a := newFakeAdapter("alpha").withQuote("EOS", "BTC", "1")
	ix := buildIndex([]Adapter{a})

	if _, ok := findRoute(ix, "EOS", "HIVE", "BTC"); ok {
		t.Error("route must require a second leg in either direction")
	}
}

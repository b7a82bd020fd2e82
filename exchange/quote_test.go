package exchange

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestQuoteIsValid(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		quote Quote
		want  bool
	}{
		{"valid", Quote{Base: "BTC", Quote: "USD", Price: decimal.NewFromInt(1), ObservedAt: now}, true},
		{"missing base", Quote{Quote: "USD", Price: decimal.NewFromInt(1)}, false},
		{"missing quote", Quote{Base: "BTC", Price: decimal.NewFromInt(1)}, false},
		{"zero price", Quote{Base: "BTC", Quote: "USD"}, false},
		{"negative price", Quote{Base: "BTC", Quote: "USD", Price: decimal.NewFromInt(-1)}, false},
	}
	for _, tc := range tests {
		if got := tc.quote.IsValid(); got != tc.want {
			t.Errorf("%s: IsValid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestQuoteInverse(t *testing.T) {
	observed := time.Now().Add(-time.Minute)
	q := Quote{
		Base:       "BTC",
		Quote:      "USD",
		Price:      decimal.NewFromInt(4),
		Source:     "test",
		ObservedAt: observed,
	}

	inv := q.Inverse()
	if inv.Base != "USD" || inv.Quote != "BTC" {
		t.Errorf("Inverse() swapped sides wrong: %s_%s", inv.Base, inv.Quote)
	}
	if inv.Price.String() != "0.25" {
		t.Errorf("Inverse() price = %s, want 0.25", inv.Price)
	}
	if inv.Source != "test" || !inv.ObservedAt.Equal(observed) {
		t.Error("Inverse() must preserve source and timestamp")
	}
}

// Division truncates at a fixed precision, so a price times its inverse is
// only approximately one.
func TestQuoteInverseRoundTrip(t *testing.T) {
	q := Quote{Base: "ETH", Quote: "BTC", Price: decimal.RequireFromString("0.0532")}
	product := q.Price.Mul(q.Inverse().Price)

	diff := product.Sub(decimal.NewFromInt(1)).Abs()
	if diff.GreaterThan(decimal.RequireFromString("0.000000000001")) {
		t.Errorf("price * inverse = %s, want ~1", product)
	}
}

func TestQuotePair(t *testing.T) {
	q := Quote{Base: "BTC", Quote: "USD"}
	if q.Pair() != (Pair{Base: "BTC", Quote: "USD"}) {
		t.Errorf("Pair() = %v", q.Pair())
	}
}

func TestProxySource(t *testing.T) {
	if got := ProxySource("USDT"); got != "proxy:USDT" {
		t.Errorf("ProxySource(USDT) = %q", got)
	}
}

func TestIdentityQuote(t *testing.T) {
	q := identityQuote("BTC")
	if q.Base != "BTC" || q.Quote != "BTC" {
		t.Errorf("identityQuote sides: %s_%s", q.Base, q.Quote)
	}
	if q.Price.String() != "1" {
		t.Errorf("identityQuote price = %s, want 1", q.Price)
	}
	if q.Source != SourceIdentity {
		t.Errorf("identityQuote source = %q", q.Source)
	}
	if !q.IsValid() {
		t.Error("identityQuote must be valid")
	}
}

package exchange

import (
	"time"

	"github.com/shopspring/decimal"
)

// Synthetic quote sources. Direct quotes carry the adapter code instead.
const (
	SourceIdentity = "identity"
	SourceAverage  = "average"
)

// ProxySource labels a quote synthesized through an intermediate currency.
func ProxySource(intermediate string) string {
	return "proxy:" + intermediate
}

// Quote is one price observation: Price units of Quote buy one unit of Base.
// Immutable once constructed.
type Quote struct {
	Base       string
	Quote      string
	Price      decimal.Decimal
	Source     string
	ObservedAt time.Time
}

// Pair returns the quote's (base, quote) pair.
func (q Quote) Pair() Pair {
	return Pair{Base: q.Base, Quote: q.Quote}
}

// IsValid checks if the quote has required fields and a positive price.
func (q Quote) IsValid() bool {
	return q.Base != "" && q.Quote != "" && q.Price.IsPositive()
}

// Inverse returns the quote for the flipped pair with the reciprocal price.
// Price must be positive.
func (q Quote) Inverse() Quote {
	return Quote{
		Base:       q.Quote,
		Quote:      q.Base,
		Price:      decimal.NewFromInt(1).Div(q.Price),
		Source:     q.Source,
		ObservedAt: q.ObservedAt,
	}
}

// identityQuote is the synthetic unit rate returned for (S, S) lookups.
func identityQuote(symbol string) Quote {
	return Quote{
		Base:       symbol,
		Quote:      symbol,
		Price:      decimal.NewFromInt(1),
		Source:     SourceIdentity,
		ObservedAt: time.Now().UTC(),
	}
}

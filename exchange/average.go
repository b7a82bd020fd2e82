package exchange

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultOutlierPct is the default tolerance band around the median, in
// percent, outside which values are discarded before averaging.
var DefaultOutlierPct = decimal.NewFromInt(50)

// Median returns the median of vals: the middle value, or the mean of the
// two middle values for an even count.
func Median(vals []decimal.Decimal) (decimal.Decimal, error) {
	if len(vals) == 0 {
		return decimal.Zero, fmt.Errorf("median of empty input")
	}
	sorted := make([]decimal.Decimal, len(vals))
	copy(sorted, vals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], nil
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2)), nil
}

// TrimOutliers keeps only the values within pct percent of mid.
func TrimOutliers(vals []decimal.Decimal, mid, pct decimal.Decimal) []decimal.Decimal {
	band := mid.Mul(pct).Div(decimal.NewFromInt(100))
	low, high := mid.Sub(band), mid.Add(band)
	out := make([]decimal.Decimal, 0, len(vals))
	for _, v := range vals {
		if v.LessThan(low) || v.GreaterThan(high) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// MedianAverage computes the median of vals, discards values more than
// outlierPct percent away from it, and returns the arithmetic mean of the
// remainder. When trimming leaves nothing, the median itself is returned.
func MedianAverage(vals []decimal.Decimal, outlierPct decimal.Decimal) (decimal.Decimal, error) {
	med, err := Median(vals)
	if err != nil {
		return decimal.Zero, err
	}
	kept := vals
	if outlierPct.IsPositive() {
		kept = TrimOutliers(vals, med, outlierPct)
	}
	if len(kept) == 0 {
		return med, nil
	}
	sum := decimal.Zero
	for _, v := range kept {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(kept)))), nil
}

// GetAverage resolves (base, quote) on every direct adapter and returns the
// outlier-trimmed median average of the successful quotes. Identity pairs
// return a unit price. Failure semantics follow GetTickers.
func (m *Manager) GetAverage(ctx context.Context, base, quote string) (Quote, error) {
	start := time.Now()
	defer func() {
		m.observeLookup("get_average", time.Since(start).Seconds())
	}()

	b, q, err := canonicalPairInput(base, quote)
	if err != nil {
		m.recordLookup("get_average", "invalid")
		return Quote{}, err
	}
	if b == q {
		m.recordLookup("get_average", "identity")
		return identityQuote(b), nil
	}

	tickers, err := m.GetTickers(ctx, b, q)
	if err != nil {
		m.recordLookup("get_average", "error")
		return Quote{}, err
	}

	vals := make([]decimal.Decimal, 0, len(tickers))
	var observed time.Time
	for _, t := range tickers {
		vals = append(vals, t.Price)
		if observed.IsZero() || t.ObservedAt.Before(observed) {
			observed = t.ObservedAt
		}
	}
	price, err := MedianAverage(vals, DefaultOutlierPct)
	if err != nil {
		m.recordLookup("get_average", "error")
		return Quote{}, WrapError(ErrExchangeDown, fmt.Errorf("averaging %s_%s: %w", b, q, err))
	}

	m.recordLookup("get_average", "ok")
	return Quote{
		Base:       b,
		Quote:      q,
		Price:      price,
		Source:     SourceAverage,
		ObservedAt: observed,
	}, nil
}

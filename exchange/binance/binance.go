// Package binance implements the exchange.Adapter interface for the
// Binance spot market.
//
// Binance has no native USD markets, so USD-quoted lookups are served
// from the matching USDT (or USDC) market under the requested symbols.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/quotelab/ratemux/exchange"
)

const (
	baseURL = "https://api.binance.com"

	code = "binance"
	name = "Binance"
)

// defaultPairs are the markets advertised out of the box. Extra markets
// can be added through Config.ExtraPairs.
var defaultPairs = []exchange.Pair{
	{Base: "BTC", Quote: "USDT"},
	{Base: "ETH", Quote: "USDT"},
	{Base: "BNB", Quote: "USDT"},
	{Base: "XRP", Quote: "USDT"},
	{Base: "LTC", Quote: "USDT"},
	{Base: "SOL", Quote: "USDT"},
	{Base: "DOGE", Quote: "USDT"},
	{Base: "ADA", Quote: "USDT"},
	{Base: "TRX", Quote: "USDT"},
	{Base: "EOS", Quote: "USDT"},
	{Base: "BTC", Quote: "USDC"},
	{Base: "ETH", Quote: "USDC"},
	{Base: "ETH", Quote: "BTC"},
	{Base: "BNB", Quote: "BTC"},
	{Base: "LTC", Quote: "BTC"},
	{Base: "XRP", Quote: "BTC"},
	{Base: "SOL", Quote: "BTC"},
	{Base: "BTC", Quote: "EUR"},
	{Base: "ETH", Quote: "EUR"},
}

// Config holds the adapter settings.
type Config struct {
	BaseURL    string
	CacheTTL   time.Duration
	RPS        float64
	ExtraPairs []exchange.Pair
}

// Binance implements exchange.Adapter for the Binance REST API.
type Binance struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	cache   *exchange.QuoteCache
	pairs   *exchange.PairSet
	venue   map[exchange.Pair]string
}

var _ exchange.Adapter = (*Binance)(nil)

// New creates a new Binance adapter.
func New(cfg Config) *Binance {
	b := &Binance{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
		cache:   exchange.NewQuoteCache(cfg.CacheTTL),
		pairs:   exchange.NewPairSet(),
		venue:   make(map[exchange.Pair]string),
	}
	if cfg.BaseURL != "" {
		b.baseURL = cfg.BaseURL
	}
	if cfg.RPS > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}
	for _, p := range append(append([]exchange.Pair{}, defaultPairs...), cfg.ExtraPairs...) {
		b.addMarket(p)
	}
	return b
}

// NewWithBaseURL creates a Binance adapter with custom base URL (for testing)
func NewWithBaseURL(url string) *Binance {
	return New(Config{BaseURL: url})
}

// addMarket registers a venue market plus the USD alias it can serve.
// The first market registered for an alias wins, so USDT markets take
// precedence over USDC ones given the default ordering.
func (b *Binance) addMarket(p exchange.Pair) {
	p = exchange.NewPair(p.Base, p.Quote)
	if p.Base == "" || p.Quote == "" {
		return
	}
	symbol := p.Base + p.Quote
	if _, ok := b.venue[p]; !ok {
		b.venue[p] = symbol
		b.pairs.Add(p)
	}
	for _, stable := range []string{"USDT", "USDC"} {
		var alias exchange.Pair
		switch {
		case p.Base == stable:
			alias = exchange.Pair{Base: "USD", Quote: p.Quote}
		case p.Quote == stable:
			alias = exchange.Pair{Base: p.Base, Quote: "USD"}
		default:
			continue
		}
		if alias.IsIdentity() {
			continue
		}
		if _, ok := b.venue[alias]; !ok {
			b.venue[alias] = symbol
			b.pairs.Add(alias)
		}
	}
}

func (b *Binance) Code() string {
	return code
}

func (b *Binance) Name() string {
	return name
}

func (b *Binance) Provides() []exchange.Pair {
	return b.pairs.Pairs()
}

func (b *Binance) HasPair(base, quote string) bool {
	return b.pairs.Has(base, quote)
}

func (b *Binance) CacheTTL() time.Duration {
	return b.cache.TTL()
}

// GetPair fetches the latest rate for base/quote from the 24hr ticker API.
func (b *Binance) GetPair(ctx context.Context, base, quote string) (exchange.Quote, error) {
	pair := exchange.NewPair(base, quote)
	symbol, ok := b.venue[pair]
	if !ok {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrPairNotFound,
			fmt.Errorf("pair %s is not supported by %s", pair, name))
	}
	return b.cache.GetOrFetch(ctx, pair, func(ctx context.Context) (exchange.Quote, error) {
		return b.fetchTicker(ctx, pair, symbol)
	})
}

func (b *Binance) fetchTicker(ctx context.Context, pair exchange.Pair, symbol string) (exchange.Quote, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return exchange.Quote{}, err
		}
	}

	url := fmt.Sprintf("%s/api/v3/ticker/24hr?symbol=%s", b.baseURL, symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return exchange.Quote{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("fetching ticker: %w", err))
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests, http.StatusTeapot:
		// Binance answers 429 when the request weight is exhausted and
		// 418 once a client has been auto-banned for ignoring 429s.
		return exchange.Quote{}, exchange.WrapError(exchange.ErrRateLimited,
			fmt.Errorf("unexpected status: %d", resp.StatusCode))
	default:
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var result ticker24hr
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("decoding response: %w", err))
	}

	price, err := decimal.NewFromString(result.LastPrice)
	if err != nil {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("parsing last price %q: %w", result.LastPrice, err))
	}

	observed := time.Now()
	if result.CloseTime > 0 {
		observed = time.UnixMilli(result.CloseTime)
	}

	return exchange.Quote{
		Base:       pair.Base,
		Quote:      pair.Quote,
		Price:      price,
		Source:     code,
		ObservedAt: observed,
	}, nil
}

// Binance API response types
type ticker24hr struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
	BidPrice  string `json:"bidPrice"`
	AskPrice  string `json:"askPrice"`
	CloseTime int64  `json:"closeTime"`
}

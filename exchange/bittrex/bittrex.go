// Package bittrex implements the exchange.Adapter interface for the
// Bittrex v3 REST API. Bittrex lists USD markets directly.
package bittrex

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
	baseURL = "https://api.bittrex.com"

	code = "bittrex"
	name = "Bittrex"
)

var defaultPairs = []exchange.Pair{
	{Base: "BTC", Quote: "USD"},
	{Base: "ETH", Quote: "USD"},
	{Base: "LTC", Quote: "USD"},
	{Base: "XRP", Quote: "USD"},
	{Base: "ADA", Quote: "USD"},
	{Base: "DOGE", Quote: "USD"},
	{Base: "BTC", Quote: "USDT"},
	{Base: "ETH", Quote: "USDT"},
	{Base: "LTC", Quote: "USDT"},
	{Base: "ETH", Quote: "BTC"},
	{Base: "LTC", Quote: "BTC"},
	{Base: "XRP", Quote: "BTC"},
	{Base: "DOGE", Quote: "BTC"},
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

// Bittrex implements exchange.Adapter for the Bittrex v3 REST API.
type Bittrex struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	cache   *exchange.QuoteCache
	pairs   *exchange.PairSet
}

var _ exchange.Adapter = (*Bittrex)(nil)

// New creates a new Bittrex adapter.
func New(cfg Config) *Bittrex {
	b := &Bittrex{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
		cache:   exchange.NewQuoteCache(cfg.CacheTTL),
		pairs:   exchange.NewPairSet(),
	}
	if cfg.BaseURL != "" {
		b.baseURL = cfg.BaseURL
	}
	if cfg.RPS > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}
	for _, p := range append(append([]exchange.Pair{}, defaultPairs...), cfg.ExtraPairs...) {
		b.pairs.Add(p)
	}
	return b
}

// NewWithBaseURL creates a Bittrex adapter with custom base URL (for testing)
func NewWithBaseURL(url string) *Bittrex {
	return New(Config{BaseURL: url})
}

func (b *Bittrex) Code() string {
	return code
}

func (b *Bittrex) Name() string {
	return name
}

func (b *Bittrex) Provides() []exchange.Pair {
	return b.pairs.Pairs()
}

func (b *Bittrex) HasPair(base, quote string) bool {
	return b.pairs.Has(base, quote)
}

func (b *Bittrex) CacheTTL() time.Duration {
	return b.cache.TTL()
}

// GetPair fetches the latest rate for base/quote from the market ticker API.
func (b *Bittrex) GetPair(ctx context.Context, base, quote string) (exchange.Quote, error) {
	pair := exchange.NewPair(base, quote)
	if !b.pairs.Has(pair.Base, pair.Quote) {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrPairNotFound,
			fmt.Errorf("pair %s is not supported by %s", pair, name))
	}
	return b.cache.GetOrFetch(ctx, pair, func(ctx context.Context) (exchange.Quote, error) {
		return b.fetchTicker(ctx, pair)
	})
}

func (b *Bittrex) fetchTicker(ctx context.Context, pair exchange.Pair) (exchange.Quote, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return exchange.Quote{}, err
		}
	}

	url := fmt.Sprintf("%s/v3/markets/%s-%s/ticker", b.baseURL, pair.Base, pair.Quote)

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
	case http.StatusNotFound:
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil &&
			apiErr.Code == "MARKET_DOES_NOT_EXIST" {
			return exchange.Quote{}, exchange.WrapError(exchange.ErrPairNotFound,
				fmt.Errorf("pair %s is not listed on %s", pair, name))
		}
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("unexpected status: %d", resp.StatusCode))
	case http.StatusTooManyRequests:
		return exchange.Quote{}, exchange.WrapError(exchange.ErrRateLimited,
			fmt.Errorf("unexpected status: %d", resp.StatusCode))
	default:
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var result marketTicker
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("decoding response: %w", err))
	}

	price, err := decimal.NewFromString(result.LastTradeRate)
	if err != nil {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("parsing last trade rate %q: %w", result.LastTradeRate, err))
	}

	return exchange.Quote{
		Base:       pair.Base,
		Quote:      pair.Quote,
		Price:      price,
		Source:     code,
		ObservedAt: time.Now(),
	}, nil
}

// Bittrex API response types
type marketTicker struct {
	Symbol        string `json:"symbol"`
	LastTradeRate string `json:"lastTradeRate"`
	BidRate       string `json:"bidRate"`
	AskRate       string `json:"askRate"`
}

type apiError struct {
	Code string `json:"code"`
}

// Package huobi implements the exchange.Adapter interface for Huobi.
//
// Huobi has no USD markets, so USD-quoted lookups are served from the
// matching USDT market under the requested symbols.
package huobi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/quotelab/ratemux/exchange"
)

const (
	baseURL = "https://api.huobi.pro"

	code = "huobi"
	name = "Huobi"
)

var defaultPairs = []exchange.Pair{
	{Base: "BTC", Quote: "USDT"},
	{Base: "ETH", Quote: "USDT"},
	{Base: "XRP", Quote: "USDT"},
	{Base: "LTC", Quote: "USDT"},
	{Base: "TRX", Quote: "USDT"},
	{Base: "EOS", Quote: "USDT"},
	{Base: "ADA", Quote: "USDT"},
	{Base: "DOT", Quote: "USDT"},
	{Base: "DOGE", Quote: "USDT"},
	{Base: "SOL", Quote: "USDT"},
	{Base: "ETH", Quote: "BTC"},
	{Base: "LTC", Quote: "BTC"},
	{Base: "XRP", Quote: "BTC"},
	{Base: "TRX", Quote: "BTC"},
	{Base: "EOS", Quote: "BTC"},
}

// Config holds the adapter settings.
type Config struct {
	BaseURL    string
	CacheTTL   time.Duration
	RPS        float64
	ExtraPairs []exchange.Pair
}

// Huobi implements exchange.Adapter for the Huobi REST API.
type Huobi struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	cache   *exchange.QuoteCache
	pairs   *exchange.PairSet
	venue   map[exchange.Pair]string
}

var _ exchange.Adapter = (*Huobi)(nil)

// New creates a new Huobi adapter.
func New(cfg Config) *Huobi {
	h := &Huobi{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
		cache:   exchange.NewQuoteCache(cfg.CacheTTL),
		pairs:   exchange.NewPairSet(),
		venue:   make(map[exchange.Pair]string),
	}
	if cfg.BaseURL != "" {
		h.baseURL = cfg.BaseURL
	}
	if cfg.RPS > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}
	for _, p := range append(append([]exchange.Pair{}, defaultPairs...), cfg.ExtraPairs...) {
		h.addMarket(p)
	}
	return h
}

// NewWithBaseURL creates a Huobi adapter with custom base URL (for testing)
func NewWithBaseURL(url string) *Huobi {
	return New(Config{BaseURL: url})
}

// addMarket registers a venue market plus the USD alias served from the
// corresponding USDT market.
func (h *Huobi) addMarket(p exchange.Pair) {
	p = exchange.NewPair(p.Base, p.Quote)
	if p.Base == "" || p.Quote == "" {
		return
	}
	symbol := strings.ToLower(p.Base + p.Quote)
	if _, ok := h.venue[p]; !ok {
		h.venue[p] = symbol
		h.pairs.Add(p)
	}
	var alias exchange.Pair
	switch {
	case p.Base == "USDT":
		alias = exchange.Pair{Base: "USD", Quote: p.Quote}
	case p.Quote == "USDT":
		alias = exchange.Pair{Base: p.Base, Quote: "USD"}
	default:
		return
	}
	if alias.IsIdentity() {
		return
	}
	if _, ok := h.venue[alias]; !ok {
		h.venue[alias] = symbol
		h.pairs.Add(alias)
	}
}

func (h *Huobi) Code() string {
	return code
}

func (h *Huobi) Name() string {
	return name
}

func (h *Huobi) Provides() []exchange.Pair {
	return h.pairs.Pairs()
}

func (h *Huobi) HasPair(base, quote string) bool {
	return h.pairs.Has(base, quote)
}

func (h *Huobi) CacheTTL() time.Duration {
	return h.cache.TTL()
}

// GetPair fetches the latest rate for base/quote from the merged detail API.
func (h *Huobi) GetPair(ctx context.Context, base, quote string) (exchange.Quote, error) {
	pair := exchange.NewPair(base, quote)
	symbol, ok := h.venue[pair]
	if !ok {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrPairNotFound,
			fmt.Errorf("pair %s is not supported by %s", pair, name))
	}
	return h.cache.GetOrFetch(ctx, pair, func(ctx context.Context) (exchange.Quote, error) {
		return h.fetchTicker(ctx, pair, symbol)
	})
}

func (h *Huobi) fetchTicker(ctx context.Context, pair exchange.Pair, symbol string) (exchange.Quote, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return exchange.Quote{}, err
		}
	}

	url := fmt.Sprintf("%s/market/detail/merged?symbol=%s", h.baseURL, symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return exchange.Quote{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("fetching ticker: %w", err))
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return exchange.Quote{}, exchange.WrapError(exchange.ErrRateLimited,
			fmt.Errorf("unexpected status: %d", resp.StatusCode))
	default:
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	// Huobi encodes prices as JSON floats. Decoding them as json.Number
	// keeps the exact decimal representation.
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()

	var result mergedDetail
	if err := dec.Decode(&result); err != nil {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("decoding response: %w", err))
	}

	if result.Status != "ok" {
		kind := exchange.ErrExchangeDown
		if strings.Contains(result.ErrCode, "invalid") {
			kind = exchange.ErrPairNotFound
		}
		return exchange.Quote{}, exchange.WrapError(kind,
			fmt.Errorf("querying %s: %s (%s)", name, result.ErrMsg, result.ErrCode))
	}
	if result.Tick == nil {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("'tick' missing from %s response", name))
	}

	price, err := decimal.NewFromString(result.Tick.Close.String())
	if err != nil {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("parsing last price %q: %w", result.Tick.Close, err))
	}

	observed := time.Now()
	if result.Timestamp > 0 {
		observed = time.UnixMilli(result.Timestamp)
	}

	return exchange.Quote{
		Base:       pair.Base,
		Quote:      pair.Quote,
		Price:      price,
		Source:     code,
		ObservedAt: observed,
	}, nil
}

// Huobi API response types
type mergedDetail struct {
	Status    string      `json:"status"`
	ErrCode   string      `json:"err-code"`
	ErrMsg    string      `json:"err-msg"`
	Timestamp int64       `json:"ts"`
	Tick      *mergedTick `json:"tick"`
}

type mergedTick struct {
	Close json.Number   `json:"close"`
	Open  json.Number   `json:"open"`
	High  json.Number   `json:"high"`
	Low   json.Number   `json:"low"`
	Bid   []json.Number `json:"bid"`
	Ask   []json.Number `json:"ask"`
}

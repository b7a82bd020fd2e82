// Package kraken implements the exchange.Adapter interface for Kraken.
//
// Kraken asset pairs are notoriously inconsistent ("XXBTZUSD", "EOSUSD",
// "USDTEUR"), so the most common markets carry an explicit venue symbol
// and everything else is derived from a symbol translation table.
package kraken

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
	baseURL = "https://api.kraken.com"

	code = "kraken"
	name = "Kraken"
)

type venueMarket struct {
	pair   exchange.Pair
	symbol string
}

// knownPairs maps canonical pairs to the exact venue symbol Kraken expects.
var knownPairs = []venueMarket{
	{exchange.Pair{Base: "BTC", Quote: "USD"}, "XXBTZUSD"},
	{exchange.Pair{Base: "LTC", Quote: "USD"}, "XLTCZUSD"},
	{exchange.Pair{Base: "ETH", Quote: "USD"}, "XETHZUSD"},
	{exchange.Pair{Base: "BTC", Quote: "EUR"}, "XXBTZEUR"},
	{exchange.Pair{Base: "LTC", Quote: "EUR"}, "XLTCZEUR"},
	{exchange.Pair{Base: "ETH", Quote: "EUR"}, "XETHZEUR"},
	{exchange.Pair{Base: "BTC", Quote: "GBP"}, "XXBTZGBP"},
	{exchange.Pair{Base: "LTC", Quote: "GBP"}, "XLTCZGBP"},
	{exchange.Pair{Base: "ETH", Quote: "GBP"}, "XETHZGBP"},
	{exchange.Pair{Base: "EOS", Quote: "USD"}, "EOSUSD"},
	{exchange.Pair{Base: "EOS", Quote: "BTC"}, "EOSXBT"},
	{exchange.Pair{Base: "LTC", Quote: "BTC"}, "XLTCXXBT"},
	{exchange.Pair{Base: "ETH", Quote: "BTC"}, "XETHXXBT"},
	{exchange.Pair{Base: "USD", Quote: "EUR"}, "USDTEUR"},
	{exchange.Pair{Base: "USD", Quote: "GBP"}, "USDTGBP"},
	{exchange.Pair{Base: "USD", Quote: "CAD"}, "USDTCAD"},
}

// symbolMap translates canonical symbols to the short forms Kraken
// accepts in pair queries.
var symbolMap = map[string]string{
	"BTC":  "XBT",
	"DOGE": "XDG",
}

// Config holds the adapter settings.
type Config struct {
	BaseURL    string
	CacheTTL   time.Duration
	RPS        float64
	ExtraPairs []exchange.Pair
}

// Kraken implements exchange.Adapter for the Kraken REST API.
type Kraken struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	cache   *exchange.QuoteCache
	pairs   *exchange.PairSet
	venue   map[exchange.Pair]string
}

var _ exchange.Adapter = (*Kraken)(nil)

// New creates a new Kraken adapter.
func New(cfg Config) *Kraken {
	k := &Kraken{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
		cache:   exchange.NewQuoteCache(cfg.CacheTTL),
		pairs:   exchange.NewPairSet(),
		venue:   make(map[exchange.Pair]string),
	}
	if cfg.BaseURL != "" {
		k.baseURL = cfg.BaseURL
	}
	if cfg.RPS > 0 {
		k.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}
	for _, m := range knownPairs {
		k.venue[m.pair] = m.symbol
		k.pairs.Add(m.pair)
	}
	for _, p := range cfg.ExtraPairs {
		p = exchange.NewPair(p.Base, p.Quote)
		if p.Base == "" || p.Quote == "" {
			continue
		}
		if _, ok := k.venue[p]; !ok {
			k.venue[p] = translate(p.Base) + translate(p.Quote)
			k.pairs.Add(p)
		}
	}
	return k
}

// NewWithBaseURL creates a Kraken adapter with custom base URL (for testing)
func NewWithBaseURL(url string) *Kraken {
	return New(Config{BaseURL: url})
}

func translate(symbol string) string {
	if t, ok := symbolMap[symbol]; ok {
		return t
	}
	return symbol
}

func (k *Kraken) Code() string {
	return code
}

func (k *Kraken) Name() string {
	return name
}

func (k *Kraken) Provides() []exchange.Pair {
	return k.pairs.Pairs()
}

func (k *Kraken) HasPair(base, quote string) bool {
	return k.pairs.Has(base, quote)
}

func (k *Kraken) CacheTTL() time.Duration {
	return k.cache.TTL()
}

// GetPair fetches the latest rate for base/quote from the public Ticker API.
func (k *Kraken) GetPair(ctx context.Context, base, quote string) (exchange.Quote, error) {
	pair := exchange.NewPair(base, quote)
	symbol, ok := k.venue[pair]
	if !ok {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrPairNotFound,
			fmt.Errorf("pair %s is not supported by %s", pair, name))
	}
	return k.cache.GetOrFetch(ctx, pair, func(ctx context.Context) (exchange.Quote, error) {
		return k.fetchTicker(ctx, pair, symbol)
	})
}

func (k *Kraken) fetchTicker(ctx context.Context, pair exchange.Pair, symbol string) (exchange.Quote, error) {
	if k.limiter != nil {
		if err := k.limiter.Wait(ctx); err != nil {
			return exchange.Quote{}, err
		}
	}

	url := fmt.Sprintf("%s/0/public/Ticker?pair=%s", k.baseURL, symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return exchange.Quote{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := k.client.Do(req)
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

	var result tickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("decoding response: %w", err))
	}

	if len(result.Error) > 0 {
		msg := strings.Join(result.Error, "; ")
		kind := exchange.ErrExchangeDown
		if strings.Contains(msg, "Unknown asset pair") {
			kind = exchange.ErrPairNotFound
		}
		if strings.Contains(msg, "Rate limit") || strings.Contains(msg, "Too many requests") {
			kind = exchange.ErrRateLimited
		}
		return exchange.Quote{}, exchange.WrapError(kind,
			fmt.Errorf("querying %s: %s", name, msg))
	}

	// The result is keyed by whatever symbol form Kraken decided to echo
	// back, which rarely matches the requested one exactly.
	var ticker tickerInfo
	found := false
	for _, t := range result.Result {
		ticker, found = t, true
		break
	}
	if !found || len(ticker.Close) == 0 {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("ticker for %s missing from %s response", pair, name))
	}

	price, err := decimal.NewFromString(ticker.Close[0])
	if err != nil {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("parsing last price %q: %w", ticker.Close[0], err))
	}

	return exchange.Quote{
		Base:       pair.Base,
		Quote:      pair.Quote,
		Price:      price,
		Source:     code,
		ObservedAt: time.Now(),
	}, nil
}

// Kraken API response types
type tickerResponse struct {
	Error  []string              `json:"error"`
	Result map[string]tickerInfo `json:"result"`
}

type tickerInfo struct {
	Ask   []string `json:"a"`
	Bid   []string `json:"b"`
	Close []string `json:"c"`
	Open  string   `json:"o"`
}

// Package coingecko implements the exchange.Adapter interface for the
// CoinGecko simple price API. CoinGecko quotes fiat currencies natively,
// which makes it the usual bridge for USD legs.
package coingecko

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
	baseURL = "https://api.coingecko.com/api/v3"

	code = "coingecko"
	name = "CoinGecko"
)

// Symbol to CoinGecko ID mapping
var symbolToIDMap = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"BNB":   "binancecoin",
	"SOL":   "solana",
	"XRP":   "ripple",
	"DOGE":  "dogecoin",
	"ADA":   "cardano",
	"DOT":   "polkadot",
	"LINK":  "chainlink",
	"LTC":   "litecoin",
	"TRX":   "tron",
	"EOS":   "eos",
	"XMR":   "monero",
	"XLM":   "stellar",
	"BCH":   "bitcoin-cash",
	"USDT":  "tether",
	"USDC":  "usd-coin",
	"STEEM": "steem",
	"HIVE":  "hive",
	"SBD":   "steem-dollars",
	"HBD":   "hive_dollar",
}

// defaultCoins are advertised against every entry in vsCurrencies.
var defaultCoins = []string{
	"BTC", "ETH", "LTC", "XRP", "DOGE", "ADA", "DOT", "SOL", "TRX",
	"EOS", "XMR", "USDT", "USDC", "STEEM", "HIVE",
}

// vsCurrencies are the quote currencies requested from the simple price API.
var vsCurrencies = []string{"BTC", "ETH", "USD", "GBP", "EUR", "SEK"}

// Config holds the adapter settings.
type Config struct {
	BaseURL    string
	APIKey     string
	CacheTTL   time.Duration
	RPS        float64
	ExtraPairs []exchange.Pair
}

// CoinGecko implements exchange.Adapter for the CoinGecko REST API.
type CoinGecko struct {
	client  *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	cache   *exchange.QuoteCache
	pairs   *exchange.PairSet
}

var _ exchange.Adapter = (*CoinGecko)(nil)

// New creates a new CoinGecko adapter.
func New(cfg Config) *CoinGecko {
	c := &CoinGecko{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		cache:   exchange.NewQuoteCache(cfg.CacheTTL),
		pairs:   exchange.NewPairSet(),
	}
	if cfg.BaseURL != "" {
		c.baseURL = cfg.BaseURL
	}
	if cfg.RPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}
	for _, coin := range defaultCoins {
		for _, vs := range vsCurrencies {
			if coin == vs {
				continue
			}
			c.pairs.Add(exchange.Pair{Base: coin, Quote: vs})
		}
	}
	for _, p := range cfg.ExtraPairs {
		c.pairs.Add(p)
	}
	return c
}

// NewWithBaseURL creates a CoinGecko adapter with custom base URL (for testing)
func NewWithBaseURL(apiKey, url string) *CoinGecko {
	return New(Config{APIKey: apiKey, BaseURL: url})
}

// symbolToID converts a coin symbol to its CoinGecko coin ID.
func symbolToID(symbol string) string {
	if id, ok := symbolToIDMap[symbol]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

func (c *CoinGecko) Code() string {
	return code
}

func (c *CoinGecko) Name() string {
	return name
}

func (c *CoinGecko) Provides() []exchange.Pair {
	return c.pairs.Pairs()
}

func (c *CoinGecko) HasPair(base, quote string) bool {
	return c.pairs.Has(base, quote)
}

func (c *CoinGecko) CacheTTL() time.Duration {
	return c.cache.TTL()
}

// GetPair fetches the latest rate for base/quote from the simple price API.
func (c *CoinGecko) GetPair(ctx context.Context, base, quote string) (exchange.Quote, error) {
	pair := exchange.NewPair(base, quote)
	if !c.pairs.Has(pair.Base, pair.Quote) {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrPairNotFound,
			fmt.Errorf("pair %s is not supported by %s", pair, name))
	}
	return c.cache.GetOrFetch(ctx, pair, func(ctx context.Context) (exchange.Quote, error) {
		return c.fetchPrice(ctx, pair)
	})
}

func (c *CoinGecko) fetchPrice(ctx context.Context, pair exchange.Pair) (exchange.Quote, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return exchange.Quote{}, err
		}
	}

	coinID := symbolToID(pair.Base)
	vsCurrency := strings.ToLower(pair.Quote)

	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s&include_last_updated_at=true",
		c.baseURL, coinID, vsCurrency)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return exchange.Quote{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("fetching price: %w", err))
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

	var result map[string]map[string]json.Number
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("decoding response: %w", err))
	}

	coinData, ok := result[coinID]
	if !ok {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrPairNotFound,
			fmt.Errorf("no data for coin %s on %s", coinID, name))
	}
	raw, ok := coinData[vsCurrency]
	if !ok {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrPairNotFound,
			fmt.Errorf("no %s price for coin %s on %s", vsCurrency, coinID, name))
	}

	price, err := decimal.NewFromString(raw.String())
	if err != nil {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("parsing price %q: %w", raw, err))
	}

	observed := time.Now()
	if ts, ok := coinData["last_updated_at"]; ok {
		if unix, err := ts.Int64(); err == nil && unix > 0 {
			observed = time.Unix(unix, 0)
		}
	}

	return exchange.Quote{
		Base:       pair.Base,
		Quote:      pair.Quote,
		Price:      price,
		Source:     code,
		ObservedAt: observed,
	}, nil
}

// Package chainlink implements the exchange.Adapter interface on top of
// Chainlink price feed aggregator contracts.
//
// Unlike the venue adapters, the set of pairs is entirely configuration
// driven: each feed maps one pair to the address of its on-chain
// aggregator, read over JSON-RPC.
package chainlink

import (
	"context"
	_ "embed"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/quotelab/ratemux/exchange"
)

//go:embed abi/aggregator.abi
var aggregatorABI string

const (
	code = "chainlink"
	name = "Chainlink"
)

// Config holds the adapter settings. Feeds maps pair strings such as
// "ETH/USD" to aggregator contract addresses.
type Config struct {
	RPCURL   string
	Feeds    map[string]string
	CacheTTL time.Duration
}

// Chainlink implements exchange.Adapter over aggregator contracts.
type Chainlink struct {
	client *ethclient.Client
	cache  *exchange.QuoteCache
	pairs  *exchange.PairSet
	feeds  map[exchange.Pair]*feed
}

type feed struct {
	address  common.Address
	contract *bind.BoundContract

	mu       sync.Mutex
	decimals int32
	loaded   bool
}

var _ exchange.Adapter = (*Chainlink)(nil)

// New dials the configured RPC endpoint and creates a Chainlink adapter.
func New(cfg Config) (*Chainlink, error) {
	if cfg.RPCURL == "" {
		return nil, exchange.WrapError(exchange.ErrConfigMissing,
			fmt.Errorf("chainlink rpc url is required"))
	}
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dialing rpc %s: %w", cfg.RPCURL, err)
	}
	return NewWithClient(client, cfg)
}

// NewWithClient creates a Chainlink adapter on an existing client.
func NewWithClient(client *ethclient.Client, cfg Config) (*Chainlink, error) {
	if len(cfg.Feeds) == 0 {
		return nil, exchange.WrapError(exchange.ErrConfigMissing,
			fmt.Errorf("chainlink requires at least one feed"))
	}
	parsedABI, err := abi.JSON(strings.NewReader(aggregatorABI))
	if err != nil {
		return nil, fmt.Errorf("parsing aggregator ABI: %w", err)
	}

	c := &Chainlink{
		client: client,
		cache:  exchange.NewQuoteCache(cfg.CacheTTL),
		pairs:  exchange.NewPairSet(),
		feeds:  make(map[exchange.Pair]*feed, len(cfg.Feeds)),
	}

	pairs := make([]exchange.Pair, 0, len(cfg.Feeds))
	addrs := make(map[exchange.Pair]string, len(cfg.Feeds))
	for rawPair, rawAddr := range cfg.Feeds {
		p, err := exchange.ParsePair(rawPair)
		if err != nil {
			return nil, exchange.WrapError(exchange.ErrConfigInvalid,
				fmt.Errorf("feed pair %q: %w", rawPair, err))
		}
		if !common.IsHexAddress(rawAddr) {
			return nil, exchange.WrapError(exchange.ErrConfigInvalid,
				fmt.Errorf("feed %s: invalid aggregator address %q", p, rawAddr))
		}
		pairs = append(pairs, p)
		addrs[p] = rawAddr
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].String() < pairs[j].String() })

	for _, p := range pairs {
		addr := common.HexToAddress(addrs[p])
		c.feeds[p] = &feed{
			address:  addr,
			contract: bind.NewBoundContract(addr, parsedABI, client, client, client),
		}
		c.pairs.Add(p)
	}
	return c, nil
}

func (c *Chainlink) Code() string {
	return code
}

func (c *Chainlink) Name() string {
	return name
}

func (c *Chainlink) Provides() []exchange.Pair {
	return c.pairs.Pairs()
}

func (c *Chainlink) HasPair(base, quote string) bool {
	return c.pairs.Has(base, quote)
}

func (c *Chainlink) CacheTTL() time.Duration {
	return c.cache.TTL()
}

// GetPair reads the latest round of the aggregator configured for base/quote.
func (c *Chainlink) GetPair(ctx context.Context, base, quote string) (exchange.Quote, error) {
	pair := exchange.NewPair(base, quote)
	f, ok := c.feeds[pair]
	if !ok {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrPairNotFound,
			fmt.Errorf("no aggregator feed configured for %s", pair))
	}
	return c.cache.GetOrFetch(ctx, pair, func(ctx context.Context) (exchange.Quote, error) {
		return c.fetchRound(ctx, pair, f)
	})
}

func (c *Chainlink) fetchRound(ctx context.Context, pair exchange.Pair, f *feed) (exchange.Quote, error) {
	decimals, err := f.loadDecimals(ctx)
	if err != nil {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("reading decimals of feed %s: %w", f.address.Hex(), err))
	}

	opts := &bind.CallOpts{Context: ctx}
	var out []any
	if err := f.contract.Call(opts, &out, "latestRoundData"); err != nil {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("reading latest round of feed %s: %w", f.address.Hex(), err))
	}
	if len(out) < 5 {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("short round data from feed %s", f.address.Hex()))
	}

	answer, ok := out[1].(*big.Int)
	if !ok || answer == nil || answer.Sign() <= 0 {
		return exchange.Quote{}, exchange.WrapError(exchange.ErrExchangeDown,
			fmt.Errorf("feed %s returned a non-positive answer", f.address.Hex()))
	}

	observed := time.Now()
	if updatedAt, ok := out[3].(*big.Int); ok && updatedAt.Sign() > 0 {
		observed = time.Unix(updatedAt.Int64(), 0)
	}

	return exchange.Quote{
		Base:       pair.Base,
		Quote:      pair.Quote,
		Price:      decimal.NewFromBigInt(answer, -decimals),
		Source:     code,
		ObservedAt: observed,
	}, nil
}

// loadDecimals reads and caches the feed's answer scale. A failed read is
// retried on the next call.
func (f *feed) loadDecimals(ctx context.Context) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loaded {
		return f.decimals, nil
	}

	opts := &bind.CallOpts{Context: ctx}
	var out []any
	if err := f.contract.Call(opts, &out, "decimals"); err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("empty decimals response")
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type %T", out[0])
	}

	f.decimals = int32(d)
	f.loaded = true
	return f.decimals, nil
}

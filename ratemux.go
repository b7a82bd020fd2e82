// Package ratemux assembles exchange-rate managers from configuration.
//
// The heavy lifting lives in the exchange package; this package only wires
// the built-in adapters to their config sections and registers factories so
// disabled adapters stay constructible on demand.
package ratemux

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/quotelab/ratemux/config"
	"github.com/quotelab/ratemux/exchange"
	"github.com/quotelab/ratemux/exchange/binance"
	"github.com/quotelab/ratemux/exchange/bittrex"
	"github.com/quotelab/ratemux/exchange/chainlink"
	"github.com/quotelab/ratemux/exchange/coingecko"
	"github.com/quotelab/ratemux/exchange/huobi"
	"github.com/quotelab/ratemux/exchange/kraken"
	"github.com/quotelab/ratemux/metrics"
)

// FactoryPrefix namespaces the locators under which the built-in adapter
// factories are registered, e.g. "ratemux/binance".
const FactoryPrefix = "ratemux/"

// adapterCodes fixes the registration order of the built-in adapters, which
// doubles as the default priority order.
var adapterCodes = []string{
	"binance",
	"kraken",
	"huobi",
	"bittrex",
	"coingecko",
	"chainlink",
}

// Build assembles a Manager from configuration: enabled adapters are
// constructed and loaded in the fixed built-in order, and every built-in
// adapter gets a factory under FactoryPrefix+code for on-demand loading.
func Build(cfg *config.Config, log *zap.Logger, reg *metrics.Registry) (*exchange.Manager, error) {
	if cfg == nil {
		cfg = config.Defaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mgr := exchange.NewManager(exchange.Options{
		Logger:   log,
		Metrics:  reg,
		Proxies:  cfg.Proxy.Table(),
		Priority: cfg.Priority,
	})

	for _, code := range adapterCodes {
		section := cfg.Adapters[code]
		build, err := builder(code, section)
		if err != nil {
			return nil, err
		}
		if err := mgr.RegisterFactory(FactoryPrefix+code, build); err != nil {
			return nil, err
		}
		if !section.Enabled {
			continue
		}
		a, err := build()
		if err != nil {
			return nil, fmt.Errorf("building adapter %s: %w", code, err)
		}
		if err := mgr.LoadAdapter(a); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}

// builder returns the factory for one built-in adapter, bound to its config
// section.
func builder(code string, section config.AdapterConfig) (exchange.Factory, error) {
	switch code {
	case "binance":
		return func() (exchange.Adapter, error) {
			pairs, err := section.Pairs()
			if err != nil {
				return nil, err
			}
			return binance.New(binance.Config{
				BaseURL:    section.BaseURL,
				CacheTTL:   section.CacheTTL,
				RPS:        section.RPS,
				ExtraPairs: pairs,
			}), nil
		}, nil
	case "kraken":
		return func() (exchange.Adapter, error) {
			pairs, err := section.Pairs()
			if err != nil {
				return nil, err
			}
			return kraken.New(kraken.Config{
				BaseURL:    section.BaseURL,
				CacheTTL:   section.CacheTTL,
				RPS:        section.RPS,
				ExtraPairs: pairs,
			}), nil
		}, nil
	case "huobi":
		return func() (exchange.Adapter, error) {
			pairs, err := section.Pairs()
			if err != nil {
				return nil, err
			}
			return huobi.New(huobi.Config{
				BaseURL:    section.BaseURL,
				CacheTTL:   section.CacheTTL,
				RPS:        section.RPS,
				ExtraPairs: pairs,
			}), nil
		}, nil
	case "bittrex":
		return func() (exchange.Adapter, error) {
			pairs, err := section.Pairs()
			if err != nil {
				return nil, err
			}
			return bittrex.New(bittrex.Config{
				BaseURL:    section.BaseURL,
				CacheTTL:   section.CacheTTL,
				RPS:        section.RPS,
				ExtraPairs: pairs,
			}), nil
		}, nil
	case "coingecko":
		return func() (exchange.Adapter, error) {
			pairs, err := section.Pairs()
			if err != nil {
				return nil, err
			}
			return coingecko.New(coingecko.Config{
				BaseURL:    section.BaseURL,
				APIKey:     section.APIKey,
				CacheTTL:   section.CacheTTL,
				RPS:        section.RPS,
				ExtraPairs: pairs,
			}), nil
		}, nil
	case "chainlink":
		return func() (exchange.Adapter, error) {
			return chainlink.New(chainlink.Config{
				RPCURL:   section.RPCURL,
				Feeds:    section.Feeds,
				CacheTTL: section.CacheTTL,
			})
		}, nil
	default:
		return nil, exchange.WrapError(exchange.ErrAdapterNotFound,
			fmt.Errorf("unknown built-in adapter %q", code))
	}
}

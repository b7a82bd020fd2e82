package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/quotelab/ratemux/exchange"
)

type Config struct {
	Logging  LoggingConfig            `mapstructure:"logging"`
	Proxy    ProxyConfig              `mapstructure:"proxy"`
	Priority []string                 `mapstructure:"priority"`
	Adapters map[string]AdapterConfig `mapstructure:"adapters"`
}

type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ProxyConfig configures indirect resolution: per-symbol preferred
// intermediates and the generic intermediate pool.
type ProxyConfig struct {
	ProxyOf map[string]string `mapstructure:"proxy_of"`
	Coins   []string          `mapstructure:"coins"`
}

// Table converts the section into the resolver's proxy table.
func (p ProxyConfig) Table() exchange.ProxyTable {
	return exchange.ProxyTable{ProxyOf: p.ProxyOf, Coins: p.Coins}
}

// AdapterConfig holds per-source settings. Fields apply where the source
// supports them; RPCURL and Feeds are for on-chain sources only.
type AdapterConfig struct {
	Enabled    bool              `mapstructure:"enabled"`
	BaseURL    string            `mapstructure:"base_url"`
	APIKey     string            `mapstructure:"api_key"`
	CacheTTL   time.Duration     `mapstructure:"cache_ttl"`
	RPS        float64           `mapstructure:"rps"`
	ExtraPairs []string          `mapstructure:"extra_pairs"`
	RPCURL     string            `mapstructure:"rpc_url"`
	Feeds      map[string]string `mapstructure:"feeds"`
}

// Pairs parses the extra_pairs entries ("BTC/USDT", "BTC_USDT", "BTC-USDT").
func (a AdapterConfig) Pairs() ([]exchange.Pair, error) {
	out := make([]exchange.Pair, 0, len(a.ExtraPairs))
	for _, raw := range a.ExtraPairs {
		p, err := exchange.ParsePair(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Proxy: ProxyConfig{
			ProxyOf: map[string]string{
				"USDT": "USD",
				"USDC": "USD",
			},
			Coins: []string{"BTC", "USD", "USDT"},
		},
		Adapters: map[string]AdapterConfig{
			"binance":   {Enabled: true, CacheTTL: 2 * time.Minute, RPS: 5},
			"kraken":    {Enabled: true, CacheTTL: 2 * time.Minute, RPS: 1},
			"huobi":     {Enabled: true, CacheTTL: 2 * time.Minute, RPS: 5},
			"bittrex":   {Enabled: true, CacheTTL: 2 * time.Minute, RPS: 1},
			"coingecko": {Enabled: true, CacheTTL: 2 * time.Minute, RPS: 0.5},
			"chainlink": {Enabled: false, CacheTTL: 2 * time.Minute},
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	for _, sym := range c.Proxy.Coins {
		if err := exchange.ValidateSymbol(sym); err != nil {
			return exchange.WrapError(exchange.ErrConfigInvalid,
				fmt.Errorf("proxy coin: %w", err))
		}
	}
	for sym, proxy := range c.Proxy.ProxyOf {
		if err := exchange.ValidateSymbol(sym); err != nil {
			return exchange.WrapError(exchange.ErrConfigInvalid,
				fmt.Errorf("proxy_of key: %w", err))
		}
		if err := exchange.ValidateSymbol(proxy); err != nil {
			return exchange.WrapError(exchange.ErrConfigInvalid,
				fmt.Errorf("proxy_of value for %s: %w", sym, err))
		}
	}

	for code, a := range c.Adapters {
		if a.CacheTTL < 0 {
			return exchange.WrapError(exchange.ErrConfigInvalid,
				fmt.Errorf("adapter %s: cache_ttl cannot be negative, got %s", code, a.CacheTTL))
		}
		if a.RPS < 0 {
			return exchange.WrapError(exchange.ErrConfigInvalid,
				fmt.Errorf("adapter %s: rps cannot be negative, got %f", code, a.RPS))
		}
		if _, err := a.Pairs(); err != nil {
			return exchange.WrapError(exchange.ErrConfigInvalid,
				fmt.Errorf("adapter %s: %w", code, err))
		}
		for rawPair := range a.Feeds {
			if _, err := exchange.ParsePair(rawPair); err != nil {
				return exchange.WrapError(exchange.ErrConfigInvalid,
					fmt.Errorf("adapter %s feed: %w", code, err))
			}
		}
	}

	if chainlink, ok := c.Adapters["chainlink"]; ok && chainlink.Enabled {
		if chainlink.RPCURL == "" {
			return exchange.WrapError(exchange.ErrConfigMissing,
				fmt.Errorf("chainlink rpc_url required when the adapter is enabled"))
		}
		if len(chainlink.Feeds) == 0 {
			return exchange.WrapError(exchange.ErrConfigMissing,
				fmt.Errorf("chainlink feeds required when the adapter is enabled"))
		}
	}

	return nil
}

package main

import (
	"go.uber.org/zap"

	"github.com/quotelab/ratemux"
	"github.com/quotelab/ratemux/config"
	"github.com/quotelab/ratemux/exchange"
	"github.com/quotelab/ratemux/logger"
	"github.com/quotelab/ratemux/metrics"
)

// setup loads configuration and assembles the manager shared by the
// rate-serving subcommands.
func setup() (*exchange.Manager, *zap.Logger, error) {
	cfg := config.Defaults()
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}

	log := logger.NewCLI(debug)

	mgr, err := ratemux.Build(cfg, log, metrics.NewRegistry())
	if err != nil {
		return nil, nil, err
	}
	return mgr, log, nil
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	rateAverage bool
	rateTimeout time.Duration
)

var rateCmd = &cobra.Command{
	Use:   "rate [base] [quote]",
	Short: "Resolve the exchange rate for a pair",
	Long: `Resolve the exchange rate for a pair, e.g. "ratemux rate BTC USD".
The first responding venue in priority order wins; pairs no venue lists
directly are routed through a proxy coin.`,
	Args: cobra.ExactArgs(2),
	RunE: runRate,
}

func init() {
	rateCmd.Flags().BoolVar(&rateAverage, "average", false, "outlier-trimmed average across all venues")
	rateCmd.Flags().DurationVar(&rateTimeout, "timeout", 15*time.Second, "lookup timeout")

	rootCmd.AddCommand(rateCmd)
}

func runRate(cmd *cobra.Command, args []string) error {
	base, quote := args[0], args[1]

	mgr, _, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), rateTimeout)
	defer cancel()

	get := mgr.GetPair
	if rateAverage {
		get = mgr.GetAverage
	}

	q, err := get(ctx, base, quote)
	if err != nil {
		return err
	}

	fmt.Printf("%s/%s\n", q.Base, q.Quote)
	fmt.Printf("  Price:    %s\n", q.Price)
	fmt.Printf("  Source:   %s\n", q.Source)
	fmt.Printf("  Observed: %s\n", q.ObservedAt.Format(time.RFC3339))

	return nil
}

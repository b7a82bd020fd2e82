package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var tickersTimeout time.Duration

var tickersCmd = &cobra.Command{
	Use:   "tickers [base] [quote]",
	Short: "Show the rate every venue reports for a pair",
	Args:  cobra.ExactArgs(2),
	RunE:  runTickers,
}

func init() {
	tickersCmd.Flags().DurationVar(&tickersTimeout, "timeout", 15*time.Second, "lookup timeout")

	rootCmd.AddCommand(tickersCmd)
}

func runTickers(cmd *cobra.Command, args []string) error {
	base, quote := args[0], args[1]

	mgr, _, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), tickersTimeout)
	defer cancel()

	quotes, err := mgr.GetTickers(ctx, base, quote)
	if err != nil {
		return err
	}

	codes := make([]string, 0, len(quotes))
	for code := range quotes {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		q := quotes[code]
		fmt.Printf("%-12s %-20s %s\n", code, q.Price, q.ObservedAt.Format(time.RFC3339))
	}

	return nil
}

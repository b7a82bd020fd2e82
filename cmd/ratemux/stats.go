package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show loaded adapters and index shape",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	mgr, _, err := setup()
	if err != nil {
		return err
	}

	s := mgr.Stats()
	fmt.Printf("Adapters:    %d (%s)\n", s.Adapters, strings.Join(mgr.AdapterCodes(), ", "))
	fmt.Printf("Pairs:       %d\n", s.Pairs)
	fmt.Printf("Proxy rules: %d\n", s.ProxyOf)
	fmt.Printf("Proxy coins: %d\n", s.ProxyCoins)
	fmt.Printf("Factories:   %d\n", s.Factories)

	return nil
}

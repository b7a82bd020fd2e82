package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "ratemux",
	Short: "RateMux - multiplexed cryptocurrency exchange rates",
	Long: `RateMux aggregates exchange rates across multiple venues and answers
pair lookups with automatic failover, proxy routing and outlier-trimmed
averages.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	// .env files carry API keys and RPC endpoints during development.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

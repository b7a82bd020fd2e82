package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pairsTo bool

var pairsCmd = &cobra.Command{
	Use:   "pairs [symbol]",
	Short: "List symbols directly paired with the given one",
	Args:  cobra.ExactArgs(1),
	RunE:  runPairs,
}

func init() {
	pairsCmd.Flags().BoolVar(&pairsTo, "to", false, "list base symbols paired into the given quote")

	rootCmd.AddCommand(pairsCmd)
}

func runPairs(cmd *cobra.Command, args []string) error {
	symbol := args[0]

	mgr, _, err := setup()
	if err != nil {
		return err
	}

	var symbols []string
	if pairsTo {
		symbols = mgr.ListPairsTo(symbol)
	} else {
		symbols = mgr.ListPairsFrom(symbol)
	}

	for _, s := range symbols {
		fmt.Println(s)
	}
	fmt.Printf("%d pair(s)\n", len(symbols))

	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print resolution and decision statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sum, err := st.Summarize(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Records:        %d\n", sum.Total)
		fmt.Printf("Decided:        %d\n", sum.Decided)
		fmt.Printf("Avg confidence: %.1f\n", sum.AvgConfidence)
		fmt.Printf("Avg distance:   %.1f m\n", sum.AvgDistanceM)

		if len(sum.ByStatus) > 0 {
			fmt.Println("\nBy status:")
			for status, n := range sum.ByStatus {
				fmt.Printf("  %-14s %d\n", status, n)
			}
		}
		if len(sum.ByProvider) > 0 {
			fmt.Println("\nBy provider:")
			for provider, n := range sum.ByProvider {
				fmt.Printf("  %-14s %d\n", provider, n)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

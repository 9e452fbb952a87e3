package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/geocode-cli/internal/decision"
	"github.com/sells-group/geocode-cli/internal/store"
)

var decideLimit int

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Compute distances and final decisions for resolved records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		engine := decision.NewEngine(decision.Thresholds{
			OKDistanceM:         cfg.Thresholds.OKDistanceM,
			SuspiciousDistanceM: cfg.Thresholds.SuspiciousDistanceM,
			MinConfidence:       cfg.Thresholds.MinConfidence,
		})

		_, err = engine.DecideAll(ctx, st, store.Filter{Limit: decideLimit})
		return err
	},
}

func init() {
	decideCmd.Flags().IntVar(&decideLimit, "limit", 0, "max records to decide (0 = all)")
	rootCmd.AddCommand(decideCmd)
}

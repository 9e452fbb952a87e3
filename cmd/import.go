package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geocode-cli/internal/ingest"
)

var importXLSXPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the registry XLSX into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		im := ingest.NewImporter(st, cfg.Strategy.Country)
		stats, err := im.ImportXLSX(ctx, importXLSXPath)
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.String("xlsx", importXLSXPath),
			zap.Int("imported", stats.Imported),
			zap.Int("skipped", stats.Skipped),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importXLSXPath, "xlsx", "", "path to registry XLSX file (required)")
	_ = importCmd.MarkFlagRequired("xlsx")
	rootCmd.AddCommand(importCmd)
}

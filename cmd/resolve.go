package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/geocode-cli/internal/store"
)

var (
	resolveLimit        int
	resolveMunicipality string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve unresolved records against the geocoding providers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		r, err := newResolver(st)
		if err != nil {
			return err
		}

		_, err = r.ResolveBatch(ctx, store.Filter{
			Limit:        resolveLimit,
			Municipality: resolveMunicipality,
		})
		return err
	},
}

func init() {
	resolveCmd.Flags().IntVar(&resolveLimit, "limit", 0, "max records to resolve (0 = all)")
	resolveCmd.Flags().StringVar(&resolveMunicipality, "municipality", "", "only resolve records in this municipality")
	rootCmd.AddCommand(resolveCmd)
}

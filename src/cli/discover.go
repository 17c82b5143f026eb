package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/username/bondflow/src/services"
)

func discoverCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Register newly listed bonds and fetch their depository metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			quotes, err := a.quoteService()
			if err != nil {
				return err
			}
			bse := services.NewBSEClient(a.cfg.BSEBaseURL, a.clientOptions())
			discovery := services.NewDiscoveryService(store, quotes, bse, a.nsdlClient(), a.log)

			report, err := discovery.Run(ctx)
			if err != nil {
				return fmt.Errorf("discovery: %w", err)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

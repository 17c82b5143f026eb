package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func yieldsCmd(a *app) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "yields",
		Short: "Price every stored schedule against the current best ask once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			svc, err := a.yieldService(store)
			if err != nil {
				return err
			}
			run, err := svc.RunBatch(ctx)
			if err != nil {
				return fmt.Errorf("yield batch: %w", err)
			}
			printYields(cmd.OutOrStdout(), run.Quotes, top)
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d quotes stored\n", run.Persisted)
			printReport(cmd.OutOrStdout(), run.Report)
			return nil
		},
	}
	cmd.Flags().IntVarP(&top, "top", "n", 0, "print only the N highest yields (0 prints all)")
	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func schedulesCmd(a *app) *cobra.Command {
	var secIDs []int64
	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "Rebuild and store the cashflow schedule of every known bond",
		Long: `Rebuild cashflow schedules from the depository disclosures.

Without --sec-id every security with stored metadata is rebuilt. A summary
report is sent through the configured notifier after the run.

Examples:
  bondflow schedules
  bondflow schedules --sec-id 12 --sec-id 40`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			svc, err := a.scheduleService(store)
			if err != nil {
				return err
			}
			report, err := svc.RunBatch(ctx, secIDs)
			if err != nil {
				return fmt.Errorf("schedule batch: %w", err)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().Int64SliceVar(&secIDs, "sec-id", nil, "rebuild only these security ids")
	return cmd
}

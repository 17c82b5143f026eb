package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/username/bondflow/src/services"
)

func pollCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Recompute yields on a fixed interval during market hours",
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
			scheduler, err := a.marketScheduler()
			if err != nil {
				return err
			}
			return ignoreCanceled(scheduler.Run(ctx, yieldJob(svc, func(services.YieldRun) {})))
		},
	}
}

// yieldJob adapts a yield batch to the scheduler; done sees every finished run.
func yieldJob(svc services.YieldService, done func(services.YieldRun)) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		run, err := svc.RunBatch(ctx)
		if err != nil {
			return err
		}
		done(run)
		return nil
	}
}

// ignoreCanceled treats an interrupted long-running command as a clean exit.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

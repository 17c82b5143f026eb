package cli

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/username/bondflow/src/handlers"
	"github.com/username/bondflow/src/services"
	"golang.org/x/sync/errgroup"
)

func serveCmd(a *app) *cobra.Command {
	var (
		withPoller bool
		origins    string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored schedules, cashflows and yields over HTTP",
		Long: `Start the read API.

Examples:
  bondflow serve
  bondflow serve --poll --origins http://localhost:3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			yields := handlers.NewYieldHandler(store, time.Minute)
			router := handlers.NewRouter(handlers.RouterDeps{
				Cashflows:      handlers.NewCashflowHandler(store),
				Schedules:      handlers.NewScheduleHandler(store),
				Yields:         yields,
				Health:         store,
				AllowedOrigins: splitOrigins(origins),
			})

			serverAddr := ":" + a.cfg.Port
			server := &http.Server{
				Addr:         serverAddr,
				Handler:      router,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.log.Info("Server starting", "address", serverAddr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				a.log.Info("Server stopped gracefully.")
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})
			if withPoller {
				svc, err := a.yieldService(store)
				if err != nil {
					cancel()
					_ = g.Wait()
					return err
				}
				scheduler, err := a.marketScheduler()
				if err != nil {
					cancel()
					_ = g.Wait()
					return err
				}
				g.Go(func() error {
					// the scheduler returning after close must not stop the server
					return ignoreCanceled(scheduler.Run(gctx, yieldJob(svc, func(services.YieldRun) { yields.Invalidate() })))
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&withPoller, "poll", false, "also recompute yields during market hours")
	cmd.Flags().StringVar(&origins, "origins", "http://localhost:3000", "comma separated CORS origins")
	return cmd
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

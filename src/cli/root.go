// Package cli wires configuration, storage and services into the bondflow commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/username/bondflow/src/config"
	"github.com/username/bondflow/src/database"
	"github.com/username/bondflow/src/logger"
	"github.com/username/bondflow/src/processors"
	"github.com/username/bondflow/src/services"
)

// app holds what every command needs once the root pre-run has finished.
type app struct {
	cfg *config.AppConfig
	log *slog.Logger
}

func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "bondflow",
		Short:         "Bond cashflow schedules and yields for exchange-listed debt",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.cfg = config.LoadConfig()
			if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
				a.cfg.DatabasePath = dbPath
			}
			logger.InitLogger(a.cfg.LogLevel)
			a.log = logger.L
			return nil
		},
	}
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides DATABASE_PATH)")

	rootCmd.AddCommand(discoverCmd(a))
	rootCmd.AddCommand(schedulesCmd(a))
	rootCmd.AddCommand(yieldsCmd(a))
	rootCmd.AddCommand(pollCmd(a))
	rootCmd.AddCommand(serveCmd(a))
	return rootCmd
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (a *app) openStore() (*database.Store, error) {
	store, err := database.Open(a.cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", a.cfg.DatabasePath, err)
	}
	return store, nil
}

func (a *app) clientOptions() services.ClientOptions {
	return services.ClientOptionsFromConfig(a.cfg)
}

func (a *app) nsdlClient() *services.NSDLClient {
	return services.NewNSDLClient(a.cfg.NSDLBaseURL, a.clientOptions(), a.cfg.SourceCacheTTL)
}

func (a *app) quoteService() (*services.QuoteService, error) {
	if err := a.cfg.ValidateKite(); err != nil {
		return nil, err
	}
	return services.NewQuoteService(a.cfg.KiteBaseURL, a.cfg.KiteInstrumentsURL,
		a.cfg.KiteAPIKey, a.cfg.KiteAccessToken, a.cfg.QuoteBatchSize, a.clientOptions()), nil
}

func (a *app) engineOptions() (processors.EngineOptions, error) {
	dayCount, err := processors.ParseDayCount(a.cfg.DayCount)
	if err != nil {
		return processors.EngineOptions{}, fmt.Errorf("DAY_COUNT: %w", err)
	}
	return processors.EngineOptions{
		RecordDateOffsetDays:         a.cfg.RecordDateOffsetDays,
		ZeroCouponPrincipalThreshold: a.cfg.ZeroCouponPrincipalThreshold,
		ClassifierMaxAttempts:        a.cfg.ClassifierMaxAttempts,
		FallbackFrequency:            a.cfg.ClassifierFallbackFrequency,
		DayCount:                     dayCount,
		Logger:                       a.log,
	}, nil
}

func (a *app) scheduleService(store *database.Store) (services.ScheduleService, error) {
	if err := a.cfg.ValidateNotifier(); err != nil {
		return nil, err
	}
	opts, err := a.engineOptions()
	if err != nil {
		return nil, err
	}
	nsdl := a.nsdlClient()
	deps := services.ScheduleDeps{
		Store:       store,
		Redemptions: nsdl,
		Coupons:     nsdl,
		Events:      nsdl,
		Notifier:    services.NewNotifier(a.cfg),
	}
	if a.cfg.ClassifierAPIKey != "" {
		deps.Classifier = services.NewClassifierService(a.cfg.ClassifierBaseURL, a.cfg.ClassifierModel,
			a.cfg.ClassifierAPIKey, a.clientOptions())
	} else {
		a.log.Warn("CLASSIFIER_API_KEY not set, unrecognised frequency text falls back to the default frequency",
			"fallback", a.cfg.ClassifierFallbackFrequency)
	}
	return services.NewScheduleService(deps, opts, a.cfg.BatchWorkers), nil
}

func (a *app) yieldService(store *database.Store) (services.YieldService, error) {
	quotes, err := a.quoteService()
	if err != nil {
		return nil, err
	}
	return services.NewYieldService(store, quotes, a.cfg.SettlementLagDays, a.cfg.BatchWorkers, a.log), nil
}

func (a *app) marketScheduler() (*services.MarketScheduler, error) {
	hours, err := services.ParseMarketHours(a.cfg.MarketOpen, a.cfg.MarketClose, a.cfg.MarketLocation())
	if err != nil {
		return nil, err
	}
	return services.NewMarketScheduler(hours, a.cfg.PollInterval, a.log), nil
}

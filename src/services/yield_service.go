package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/username/bondflow/src/logger"
	"github.com/username/bondflow/src/models"
	"github.com/username/bondflow/src/processors"
	"github.com/username/bondflow/src/utils"
	"golang.org/x/sync/errgroup"
)

const JobYields = "yields"

// YieldRun is the outcome of one yield batch.
type YieldRun struct {
	Report    models.BatchReport
	Quotes    []models.YieldQuote // every computed quote, highest yield first
	Persisted int
}

// YieldService prices stored schedules against live asks.
type YieldService interface {
	ComputeYield(ctx context.Context, sec models.Security, quote models.Quote) (models.YieldQuote, error)
	RunBatch(ctx context.Context) (YieldRun, error)
}

type yieldServiceImpl struct {
	store             YieldStore
	prices            PriceSource
	solver            processors.YieldSolver
	settlementLagDays int
	workers           int
	now               func() time.Time
	log               *slog.Logger
}

func NewYieldService(store YieldStore, prices PriceSource, settlementLagDays, workers int, log *slog.Logger) YieldService {
	if workers < 1 {
		workers = 1
	}
	if settlementLagDays < 0 {
		settlementLagDays = 0
	}
	return &yieldServiceImpl{
		store:             store,
		prices:            prices,
		solver:            processors.NewYieldSolver(),
		settlementLagDays: settlementLagDays,
		workers:           workers,
		now:               time.Now,
		log:               logger.OrDefault(log),
	}
}

// YieldCashflows prepends the purchase at price on runDate to the events.
func YieldCashflows(runDate time.Time, price float64, events []models.CashflowEvent) []processors.Cashflow {
	cfs := make([]processors.Cashflow, 0, len(events)+1)
	cfs = append(cfs, processors.Cashflow{Date: utils.TruncateDay(runDate), Amount: -price})
	for _, e := range events {
		cfs = append(cfs, processors.Cashflow{Date: e.DueDate, Amount: e.Amount.AsFloat64()})
	}
	return cfs
}

// ComputeYield values the cashflows whose record date falls after the
// settlement lag. A failure is returned alongside an unavailable quote.
func (s *yieldServiceImpl) ComputeYield(ctx context.Context, sec models.Security, quote models.Quote) (models.YieldQuote, error) {
	at := quote.Timestamp
	if at.IsZero() {
		at = s.now()
	}
	yq := models.YieldQuote{
		SecurityID:    sec.SecurityID,
		TradingSymbol: sec.TradingSymbol,
		ISIN:          sec.ISIN,
		Timestamp:     at,
		Price:         quote.Price,
		Quantity:      quote.Quantity,
	}
	if quote.Price <= 0 {
		yq.Reason = "no ask"
		return yq, fmt.Errorf("%w: no ask for %s", models.ErrPriceUnavailable, sec.TradingSymbol)
	}

	cutoff := utils.AddDays(utils.TruncateDay(at), s.settlementLagDays)
	events, err := s.store.FutureCashflows(ctx, sec.SecurityID, cutoff)
	if err != nil {
		yq.Reason = "cashflows unavailable"
		return yq, err
	}
	if len(events) == 0 {
		yq.Reason = "no future cashflows"
		return yq, fmt.Errorf("%w: no cashflows after %s for %s", models.ErrMissingData, cutoff.Format(time.DateOnly), sec.TradingSymbol)
	}

	y, err := processors.YieldPercent(s.solver, YieldCashflows(at, quote.Price, events))
	if err != nil {
		yq.Reason = "yield unavailable"
		return yq, fmt.Errorf("%s at %.2f: %w", sec.TradingSymbol, quote.Price, err)
	}
	yq.YieldPercent = y
	yq.Available = true
	return yq, nil
}

// RunBatch fetches best asks for every listed security, computes yields and
// stores the usable ones. Unavailable yields are reported, not fatal.
func (s *yieldServiceImpl) RunBatch(ctx context.Context) (YieldRun, error) {
	run := YieldRun{Report: models.BatchReport{RunID: uuid.NewString(), Job: JobYields, StartedAt: s.now().UTC()}}
	runLog := s.log.With("runID", run.Report.RunID, "job", JobYields)
	ctx = logger.WithContext(ctx, runLog)

	secs, err := s.store.ListSecurities(ctx)
	if err != nil {
		return run, fmt.Errorf("listing securities: %w", err)
	}
	var tradable []models.Security
	var symbols []string
	seen := make(map[string]bool)
	for _, sec := range secs {
		if strings.TrimSpace(sec.TradingSymbol) == "" {
			continue
		}
		tradable = append(tradable, sec)
		if !seen[sec.TradingSymbol] {
			seen[sec.TradingSymbol] = true
			symbols = append(symbols, sec.TradingSymbol)
		}
	}
	run.Report.Total = len(tradable)
	if len(tradable) == 0 {
		run.Report.FinishedAt = s.now().UTC()
		return run, nil
	}

	quotes, err := s.prices.GetBestAsks(ctx, symbols)
	if err != nil {
		if len(quotes) == 0 {
			return run, fmt.Errorf("fetching quotes: %w", err)
		}
		runLog.Warn("Quote fetch incomplete, pricing what was returned", "error", err, "received", len(quotes))
	}
	at := s.now()

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for _, sec := range tradable {
		g.Go(func() error {
			quote, ok := quotes[sec.TradingSymbol]
			if !ok {
				quote = models.Quote{Symbol: sec.TradingSymbol}
			}
			if quote.Timestamp.IsZero() {
				quote.Timestamp = at
			}
			yq, err := s.ComputeYield(ctx, sec, quote)

			mu.Lock()
			defer mu.Unlock()
			run.Quotes = append(run.Quotes, yq)
			if err != nil {
				runLog.Debug("Yield unavailable", "securityID", sec.SecurityID, "symbol", sec.TradingSymbol, "error", err)
				run.Report.Skipped = append(run.Report.Skipped, skipped(sec.SecurityID, sec.ISIN, err))
				return nil
			}
			run.Report.Succeeded++
			return nil
		})
	}
	_ = g.Wait()

	SortYieldQuotes(run.Quotes)
	sort.Slice(run.Report.Skipped, func(i, j int) bool {
		return run.Report.Skipped[i].SecurityID < run.Report.Skipped[j].SecurityID
	})

	run.Persisted, err = s.store.SaveYieldQuotes(ctx, run.Quotes)
	run.Report.FinishedAt = s.now().UTC()
	if err != nil {
		return run, fmt.Errorf("storing yield quotes: %w", err)
	}
	runLog.Info("Yield batch finished", "securities", run.Report.Total, "priced", run.Report.Succeeded,
		"unavailable", len(run.Report.Skipped), "persisted", run.Persisted)
	return run, nil
}

// SortYieldQuotes orders available quotes by yield, highest first, then the rest by symbol.
func SortYieldQuotes(quotes []models.YieldQuote) {
	sort.SliceStable(quotes, func(i, j int) bool {
		a, b := quotes[i], quotes[j]
		if a.Available != b.Available {
			return a.Available
		}
		if a.YieldPercent != b.YieldPercent {
			return a.YieldPercent > b.YieldPercent
		}
		return a.TradingSymbol < b.TradingSymbol
	})
}

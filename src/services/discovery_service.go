package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/username/bondflow/src/logger"
	"github.com/username/bondflow/src/models"
	"github.com/username/bondflow/src/parsers"
)

const JobDiscover = "discover"

// DiscoveryService registers exchange-listed bonds that are not yet stored.
type DiscoveryService struct {
	store    SecurityStore
	lister   InstrumentLister
	resolver ISINResolver
	fetcher  InstrumentFetcher
	now      func() time.Time
	log      *slog.Logger
}

func NewDiscoveryService(store SecurityStore, lister InstrumentLister, resolver ISINResolver, fetcher InstrumentFetcher, log *slog.Logger) *DiscoveryService {
	return &DiscoveryService{
		store:    store,
		lister:   lister,
		resolver: resolver,
		fetcher:  fetcher,
		now:      time.Now,
		log:      logger.OrDefault(log),
	}
}

// Run walks the listings in symbol order. Symbols whose ISIN or metadata
// cannot be found are marked bad so later runs skip them; transient failures
// are left for the next run.
func (d *DiscoveryService) Run(ctx context.Context) (models.BatchReport, error) {
	report := models.BatchReport{RunID: uuid.NewString(), Job: JobDiscover, StartedAt: d.now().UTC()}
	log := d.log.With("runID", report.RunID, "job", JobDiscover)
	ctx = logger.WithContext(ctx, log)

	listed, err := d.lister.ListInstruments(ctx)
	if err != nil {
		return report, fmt.Errorf("listing instruments: %w", err)
	}
	known, err := d.store.KnownSymbols(ctx)
	if err != nil {
		return report, err
	}

	var fresh []models.ListedInstrument
	for _, l := range listed {
		sym := strings.ToUpper(l.TradingSymbol)
		if known[sym] {
			continue
		}
		known[sym] = true
		fresh = append(fresh, l)
	}
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].TradingSymbol < fresh[j].TradingSymbol })
	report.Total = len(fresh)
	log.Info("Discovery started", "listed", len(listed), "new", len(fresh))

	for _, l := range fresh {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = d.now().UTC()
			return report, err
		}
		secID, isin, err := d.register(ctx, l)
		if err != nil {
			report.Skipped = append(report.Skipped, skipped(secID, isin, err))
			if isPermanent(err) {
				if markErr := d.store.MarkBadSymbol(ctx, l.TradingSymbol, err.Error()); markErr != nil {
					log.Error("Failed to mark bad symbol", "symbol", l.TradingSymbol, "error", markErr)
				}
				log.Warn("Symbol marked bad", "symbol", l.TradingSymbol, "error", err)
			} else {
				log.Error("Symbol left for next run", "symbol", l.TradingSymbol, "error", err)
			}
			continue
		}
		report.Succeeded++
		log.Info("Security registered", "securityID", secID, "symbol", l.TradingSymbol, "isin", isin)
	}
	report.FinishedAt = d.now().UTC()
	return report, nil
}

func (d *DiscoveryService) register(ctx context.Context, l models.ListedInstrument) (int64, string, error) {
	isin, err := d.resolver.ResolveISIN(ctx, l.ExchangeToken)
	if err != nil {
		return 0, "", fmt.Errorf("resolving ISIN of %s: %w", l.TradingSymbol, err)
	}
	secID, err := d.store.NextSecurityID(ctx)
	if err != nil {
		return 0, isin, err
	}
	inst, err := d.fetcher.FetchInstrument(ctx, secID, l.TradingSymbol, isin)
	if err != nil {
		return 0, isin, fmt.Errorf("metadata of %s: %w", isin, err)
	}
	sec := models.Security{
		SecurityID:    secID,
		TradingSymbol: l.TradingSymbol,
		ScripCode:     l.ExchangeToken,
		ISIN:          isin,
		CapturedAt:    d.now(),
	}
	if err := d.store.SaveInstrument(ctx, sec, inst); err != nil {
		return secID, isin, err
	}
	return secID, isin, nil
}

func isPermanent(err error) bool {
	return errors.Is(err, models.ErrNotFound) || errors.Is(err, parsers.ErrParsingFailed)
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/username/bondflow/src/logger"
	"github.com/username/bondflow/src/models"
)

type fakeYieldStore struct {
	securities []models.Security
	events     map[int64][]models.CashflowEvent
	saved      []models.YieldQuote
	cutoffs    []time.Time
}

func (f *fakeYieldStore) ListSecurities(context.Context) ([]models.Security, error) {
	return f.securities, nil
}

func (f *fakeYieldStore) FutureCashflows(_ context.Context, id int64, cutoff time.Time) ([]models.CashflowEvent, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	var out []models.CashflowEvent
	for _, e := range f.events[id] {
		if e.RecordDate.After(cutoff) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeYieldStore) SaveYieldQuotes(_ context.Context, quotes []models.YieldQuote) (int, error) {
	n := 0
	for _, q := range quotes {
		if q.Persistable() {
			f.saved = append(f.saved, q)
			n++
		}
	}
	return n, nil
}

type fakePrices map[string]models.Quote

func (f fakePrices) GetBestAsks(_ context.Context, symbols []string) (map[string]models.Quote, error) {
	out := map[string]models.Quote{}
	for _, s := range symbols {
		if q, ok := f[s]; ok {
			out[s] = q
		}
	}
	return out, nil
}

func (f fakePrices) GetBestAsk(_ context.Context, symbol string) (models.Quote, error) {
	q, ok := f[symbol]
	if !ok {
		return q, models.ErrPriceUnavailable
	}
	return q, nil
}

func oneYearBond(id int64) []models.CashflowEvent {
	return []models.CashflowEvent{
		{SecurityID: id, RecordDate: day(2025, 2, 14), DueDate: day(2025, 3, 1), Kind: models.KindInterest, Amount: amt(100)},
		{SecurityID: id, RecordDate: day(2026, 2, 14), DueDate: day(2026, 3, 1), Kind: models.KindInterest, Amount: amt(100)},
		{SecurityID: id, RecordDate: day(2026, 2, 14), DueDate: day(2026, 3, 1), Kind: models.KindRedemption, Amount: amt(1000)},
	}
}

func newYieldFixture() (*yieldServiceImpl, *fakeYieldStore) {
	store := &fakeYieldStore{
		securities: []models.Security{
			{SecurityID: 1, TradingSymbol: "10EFL26", ISIN: "INE657N07431"},
			{SecurityID: 2, TradingSymbol: "NOASK"},
			{SecurityID: 3, TradingSymbol: ""},
			{SecurityID: 4, TradingSymbol: "NOFLOWS"},
			{SecurityID: 5, TradingSymbol: "RICH"},
		},
		events: map[int64][]models.CashflowEvent{1: oneYearBond(1), 5: oneYearBond(5)},
	}
	prices := fakePrices{
		"10EFL26": {Symbol: "10EFL26", Price: 1000, Quantity: 10},
		"NOFLOWS": {Symbol: "NOFLOWS", Price: 990, Quantity: 1},
		"RICH":    {Symbol: "RICH", Price: 5000, Quantity: 1},
	}
	svc := NewYieldService(store, prices, 2, 3, logger.Discard()).(*yieldServiceImpl)
	svc.now = fixedClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	return svc, store
}

func TestComputeYield(t *testing.T) {
	is := is.New(t)
	svc, store := newYieldFixture()
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	yq, err := svc.ComputeYield(context.Background(), store.securities[0], models.Quote{Price: 1000, Timestamp: at})
	is.NoErr(err)
	is.True(yq.Available)
	is.Equal(yq.YieldPercent, 10.0) // -1000 today, 1100 in 365 days
	is.Equal(store.cutoffs[0], day(2025, 3, 3))

	yq, err = svc.ComputeYield(context.Background(), store.securities[1], models.Quote{Timestamp: at})
	is.True(errors.Is(err, models.ErrPriceUnavailable))
	is.True(!yq.Available)
	is.Equal(yq.Reason, "no ask")
}

func TestYieldCashflows(t *testing.T) {
	is := is.New(t)
	cfs := YieldCashflows(time.Date(2025, 3, 1, 15, 4, 0, 0, time.UTC), 1000, oneYearBond(1)[1:])
	is.Equal(len(cfs), 3)
	is.Equal(cfs[0].Date, day(2025, 3, 1))
	is.Equal(cfs[0].Amount, -1000.0)
	is.Equal(cfs[2].Amount, 1000.0)
}

func TestYieldRunBatch(t *testing.T) {
	is := is.New(t)
	svc, store := newYieldFixture()

	run, err := svc.RunBatch(context.Background())
	is.NoErr(err)
	is.Equal(run.Report.Total, 4) // blank symbol is not tradable
	is.Equal(run.Report.Succeeded, 2)
	is.Equal(len(run.Report.Skipped), 2)
	is.Equal(run.Report.Skipped[0].Reason, models.SkipNoPrice)
	is.Equal(run.Report.Skipped[1].Reason, models.SkipMissingData)

	is.Equal(len(run.Quotes), 4)
	is.Equal(run.Quotes[0].SecurityID, int64(1))
	is.Equal(run.Quotes[1].YieldPercent, -78.0) // available but negative
	is.True(!run.Quotes[2].Available)

	is.Equal(run.Persisted, 1)
	is.Equal(len(store.saved), 1)
	is.Equal(store.saved[0].TradingSymbol, "10EFL26")
}

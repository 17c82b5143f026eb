package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/matryer/is"
	"github.com/username/bondflow/src/logger"
	"github.com/username/bondflow/src/models"
)

type fakeSecurityStore struct {
	known  map[string]bool
	nextID int64
	saved  []models.Security
	bad    map[string]string
}

func (f *fakeSecurityStore) KnownSymbols(context.Context) (map[string]bool, error) {
	out := map[string]bool{}
	for k, v := range f.known {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSecurityStore) NextSecurityID(context.Context) (int64, error) {
	return f.nextID + int64(len(f.saved)), nil
}

func (f *fakeSecurityStore) SaveInstrument(_ context.Context, sec models.Security, inst models.Instrument) error {
	if sec.SecurityID != inst.SecurityID {
		return fmt.Errorf("%w: id mismatch", models.ErrDataInconsistency)
	}
	f.saved = append(f.saved, sec)
	return nil
}

func (f *fakeSecurityStore) MarkBadSymbol(_ context.Context, symbol, reason string) error {
	f.bad[symbol] = reason
	return nil
}

type fakeLister []models.ListedInstrument

func (f fakeLister) ListInstruments(context.Context) ([]models.ListedInstrument, error) {
	return f, nil
}

type fakeResolver map[string]error

func (f fakeResolver) ResolveISIN(_ context.Context, scrip string) (string, error) {
	if err := f[scrip]; err != nil {
		return "", err
	}
	return "INE657N07431", nil
}

type fakeFetcher struct{}

func (fakeFetcher) FetchInstrument(_ context.Context, id int64, symbol, isin string) (models.Instrument, error) {
	inst := sampleInstrument(id)
	inst.TradingSymbol = symbol
	inst.ISIN = isin
	return inst, nil
}

func TestDiscoveryRun(t *testing.T) {
	is := is.New(t)
	store := &fakeSecurityStore{known: map[string]bool{"KNOWN": true}, nextID: 10, bad: map[string]string{}}
	lister := fakeLister{
		{TradingSymbol: "CCC", ExchangeToken: "4"},
		{TradingSymbol: "AAA", ExchangeToken: "1"},
		{TradingSymbol: "known", ExchangeToken: "3"},
		{TradingSymbol: "BBB", ExchangeToken: "2"},
		{TradingSymbol: "AAA", ExchangeToken: "1"},
	}
	resolver := fakeResolver{
		"2": fmt.Errorf("%w: no isin", models.ErrNotFound),
		"4": fmt.Errorf("%w: timeout", models.ErrExternalSource),
	}
	d := NewDiscoveryService(store, lister, resolver, fakeFetcher{}, logger.Discard())

	report, err := d.Run(context.Background())
	is.NoErr(err)
	is.Equal(report.Job, JobDiscover)
	is.Equal(report.Total, 3)
	is.Equal(report.Succeeded, 1)
	is.Equal(len(report.Skipped), 2)

	is.Equal(len(store.saved), 1)
	is.Equal(store.saved[0].SecurityID, int64(10))
	is.Equal(store.saved[0].TradingSymbol, "AAA")
	is.Equal(store.saved[0].ScripCode, "1")

	_, marked := store.bad["BBB"]
	is.True(marked)
	_, marked = store.bad["CCC"]
	is.True(!marked) // transient failures are retried next run
}

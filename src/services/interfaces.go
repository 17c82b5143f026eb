package services

import (
	"context"
	"time"

	"github.com/username/bondflow/src/models"
)

// MetadataSource loads the stored metadata of one security.
type MetadataSource interface {
	GetInstrument(ctx context.Context, securityID int64) (models.Instrument, error)
}

// RedemptionSource returns the raw redemption disclosure of an ISIN.
type RedemptionSource interface {
	GetRawRedemption(ctx context.Context, isin string) (models.RedemptionDisclosure, error)
}

// CouponDetailSource returns the published coupon terms and cashflow table of an ISIN.
type CouponDetailSource interface {
	GetCouponDetail(ctx context.Context, isin string) (models.CouponDetail, error)
}

// PriceSource returns best asks for exchange symbols.
type PriceSource interface {
	GetBestAsk(ctx context.Context, symbol string) (models.Quote, error)
	GetBestAsks(ctx context.Context, symbols []string) (map[string]models.Quote, error)
}

// InstrumentLister lists the bonds tradable on the exchange.
type InstrumentLister interface {
	ListInstruments(ctx context.Context) ([]models.ListedInstrument, error)
}

// ISINResolver maps an exchange scrip code to its ISIN.
type ISINResolver interface {
	ResolveISIN(ctx context.Context, scripCode string) (string, error)
}

// InstrumentFetcher assembles depository metadata for a newly discovered listing.
type InstrumentFetcher interface {
	FetchInstrument(ctx context.Context, securityID int64, symbol, isin string) (models.Instrument, error)
}

// Notifier receives the report of every batch run.
type Notifier interface {
	NotifyBatch(ctx context.Context, report models.BatchReport) error
}

// ScheduleStore is the persistence used by the schedule batch.
type ScheduleStore interface {
	MetadataSource
	SecurityIDsWithMetadata(ctx context.Context) ([]int64, error)
	SaveSchedule(ctx context.Context, schedule models.Schedule) error
}

// YieldStore is the persistence used by the yield batch.
type YieldStore interface {
	ListSecurities(ctx context.Context) ([]models.Security, error)
	FutureCashflows(ctx context.Context, securityID int64, cutoff time.Time) ([]models.CashflowEvent, error)
	SaveYieldQuotes(ctx context.Context, quotes []models.YieldQuote) (int, error)
}

// SecurityStore is the persistence used by discovery.
type SecurityStore interface {
	KnownSymbols(ctx context.Context) (map[string]bool, error)
	NextSecurityID(ctx context.Context) (int64, error)
	SaveInstrument(ctx context.Context, sec models.Security, inst models.Instrument) error
	MarkBadSymbol(ctx context.Context, symbol, reason string) error
}

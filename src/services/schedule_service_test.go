package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/username/bondflow/src/logger"
	"github.com/username/bondflow/src/models"
	"github.com/username/bondflow/src/processors"
)

type fakeScheduleStore struct {
	mu          sync.Mutex
	instruments map[int64]models.Instrument
	saved       map[int64]models.Schedule
}

func (f *fakeScheduleStore) GetInstrument(_ context.Context, id int64) (models.Instrument, error) {
	inst, ok := f.instruments[id]
	if !ok {
		return models.Instrument{}, fmt.Errorf("%w: security %d", models.ErrNotFound, id)
	}
	return inst, nil
}

func (f *fakeScheduleStore) SecurityIDsWithMetadata(context.Context) ([]int64, error) {
	var ids []int64
	for id := range f.instruments {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeScheduleStore) SaveSchedule(_ context.Context, s models.Schedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[s.SecurityID] = s
	return nil
}

type fakeDisclosures struct {
	redemptions map[string]models.RedemptionDisclosure
	coupons     map[string]models.CouponDetail
}

func (f fakeDisclosures) GetRawRedemption(_ context.Context, isin string) (models.RedemptionDisclosure, error) {
	d, ok := f.redemptions[isin]
	if !ok {
		return d, fmt.Errorf("%w: redemptions of %s", models.ErrNotFound, isin)
	}
	return d, nil
}

func (f fakeDisclosures) GetCouponDetail(_ context.Context, isin string) (models.CouponDetail, error) {
	d, ok := f.coupons[isin]
	if !ok {
		return d, fmt.Errorf("%w: coupon detail of %s", models.ErrNotFound, isin)
	}
	return d, nil
}

func (f fakeDisclosures) RedemptionEvents(context.Context, string) ([]models.RedemptionRecord, error) {
	return nil, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	reports []models.BatchReport
}

func (n *recordingNotifier) NotifyBatch(_ context.Context, r models.BatchReport) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, r)
	return nil
}

func annualCoupons(isin string) models.CouponDetail {
	detail := models.CouponDetail{ISIN: isin, CouponRate: 10, FrequencyText: "Annual", CouponBasis: "Fixed"}
	for _, y := range []int{2024, 2025, 2026} {
		detail.Cashflows = append(detail.Cashflows, models.CouponCashflow{
			RecordDate: day(y, 2, 14), DueDate: day(y, 3, 1), PaymentDate: day(y, 3, 1), Amount: amt(100), Event: "Interest",
		})
	}
	return detail
}

func newScheduleFixture() (*scheduleServiceImpl, *fakeScheduleStore, *recordingNotifier) {
	fixed := sampleInstrument(1)

	variable := sampleInstrument(2)
	variable.ISIN = "INE002A01018"
	variable.CouponBasis = models.VariableCouponBasis

	zero := sampleInstrument(4)
	zero.ISIN = "INE01CY079E7"
	zero.CouponRate = 0
	zero.FrequencyText = "On Maturity"

	store := &fakeScheduleStore{
		instruments: map[int64]models.Instrument{1: fixed, 2: variable, 4: zero},
		saved:       map[int64]models.Schedule{},
	}
	full := models.RedemptionDisclosure{Type: models.RedemptionTypeFull}
	sources := fakeDisclosures{
		redemptions: map[string]models.RedemptionDisclosure{fixed.ISIN: full, variable.ISIN: full, zero.ISIN: full},
		coupons: map[string]models.CouponDetail{
			fixed.ISIN:    annualCoupons(fixed.ISIN),
			variable.ISIN: annualCoupons(variable.ISIN),
			zero.ISIN: {ISIN: zero.ISIN, FrequencyText: "On Maturity", Cashflows: []models.CouponCashflow{
				{RecordDate: day(2026, 2, 14), DueDate: day(2026, 3, 1), Amount: amt(200), Event: "Interest"},
				{RecordDate: day(2026, 2, 14), DueDate: day(2026, 3, 1), Amount: amt(1000), Event: "Redemption"},
			}},
		},
	}
	notifier := &recordingNotifier{}
	opts := processors.DefaultEngineOptions()
	opts.Logger = logger.Discard()
	svc := NewScheduleService(ScheduleDeps{
		Store:       store,
		Redemptions: sources,
		Coupons:     sources,
		Events:      sources,
		Notifier:    notifier,
	}, opts, 2).(*scheduleServiceImpl)
	svc.now = fixedClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	return svc, store, notifier
}

func TestBuildScheduleCouponBearing(t *testing.T) {
	is := is.New(t)
	svc, _, _ := newScheduleFixture()

	s, err := svc.BuildSchedule(context.Background(), 1)
	is.NoErr(err)
	is.Equal(len(s.Events), 4)
	is.Equal(s.OriginalFaceValue, amt(1000))
	is.Equal(s.Events[1].Amount, amt(100)) // 2024-03-01 to 2025-03-01 is 365 days
	is.Equal(s.Events[1].Frequency, 1)
	last := s.Events[3]
	is.Equal(last.Kind, models.KindRedemption)
	is.Equal(last.Amount, amt(1000))
	is.Equal(last.OutstandingAfter, amt(0))
	is.Equal(last.RecordDate, day(2026, 2, 14))
	is.Equal(s.GeneratedAt, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
}

func TestBuildScheduleZeroCoupon(t *testing.T) {
	is := is.New(t)
	svc, _, _ := newScheduleFixture()

	s, err := svc.BuildSchedule(context.Background(), 4)
	is.NoErr(err)
	is.Equal(len(s.Events), 2)
	is.Equal(s.Events[0].Kind, models.KindInterest)
	is.Equal(s.Events[0].Amount, amt(200))
	is.Equal(s.Events[1].Amount, amt(1000))
}

func TestRunBatchReportsSkips(t *testing.T) {
	is := is.New(t)
	svc, store, notifier := newScheduleFixture()

	report, err := svc.RunBatch(context.Background(), []int64{1, 2, 3, 4})
	is.NoErr(err)
	is.True(report.RunID != "")
	is.Equal(report.Job, JobSchedules)
	is.Equal(report.Total, 4)
	is.Equal(report.Succeeded, 2)
	is.Equal(len(report.Skipped), 2)
	is.Equal(report.Skipped[0].SecurityID, int64(2))
	is.Equal(report.Skipped[0].Reason, models.SkipUnsupported)
	is.Equal(report.Skipped[1].SecurityID, int64(3))
	is.Equal(report.Skipped[1].Reason, models.SkipNotFound)
	is.True(!report.Skipped[1].Retryable)

	is.Equal(len(store.saved), 2)
	is.Equal(len(store.saved[1].Events), 4)
	is.Equal(len(notifier.reports), 1)
	is.Equal(notifier.reports[0].RunID, report.RunID)
}

func TestRunBatchDefaultsToAllStored(t *testing.T) {
	is := is.New(t)
	svc, store, _ := newScheduleFixture()

	report, err := svc.RunBatch(context.Background(), nil)
	is.NoErr(err)
	is.Equal(report.Total, 3)
	is.Equal(report.Succeeded, 2)
	is.Equal(len(store.saved), 2)
}

func TestRunBatchCancelled(t *testing.T) {
	is := is.New(t)
	svc, store, notifier := newScheduleFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.RunBatch(ctx, []int64{1, 4})
	is.True(err != nil)
	is.Equal(len(store.saved), 0)
	is.Equal(len(notifier.reports), 1)
}

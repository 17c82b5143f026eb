package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/username/bondflow/src/logger"
	"github.com/username/bondflow/src/models"
	"github.com/username/bondflow/src/processors"
	"golang.org/x/sync/errgroup"
)

const JobSchedules = "schedules"

// ScheduleService rebuilds and stores cashflow schedules.
type ScheduleService interface {
	BuildSchedule(ctx context.Context, securityID int64) (models.Schedule, error)
	RunBatch(ctx context.Context, securityIDs []int64) (models.BatchReport, error)
}

// ScheduleDeps are the collaborators of the schedule batch.
type ScheduleDeps struct {
	Store       ScheduleStore
	Redemptions RedemptionSource
	Coupons     CouponDetailSource
	Events      processors.RedemptionEventSource
	Classifier  processors.FrequencyClassifier
	Notifier    Notifier
}

type scheduleServiceImpl struct {
	deps       ScheduleDeps
	resolver   processors.FrequencyResolver
	reconciler processors.ScheduleReconciler
	amortizer  processors.RedemptionAmortizer
	builder    processors.CashflowBuilder
	workers    int
	now        func() time.Time
	log        *slog.Logger
}

func NewScheduleService(deps ScheduleDeps, opts processors.EngineOptions, workers int) ScheduleService {
	if workers < 1 {
		workers = 1
	}
	if deps.Notifier == nil {
		deps.Notifier = LogNotifier{}
	}
	return &scheduleServiceImpl{
		deps:       deps,
		resolver:   processors.NewFrequencyResolver(deps.Classifier, opts),
		reconciler: processors.NewScheduleReconciler(opts),
		amortizer:  processors.NewRedemptionAmortizer(opts),
		builder:    processors.NewCashflowBuilder(opts),
		workers:    workers,
		now:        time.Now,
		log:        logger.OrDefault(opts.Logger),
	}
}

// BuildSchedule produces the schedule of one security without storing it.
func (s *scheduleServiceImpl) BuildSchedule(ctx context.Context, securityID int64) (models.Schedule, error) {
	log := logger.FromContext(ctx)
	inst, err := s.deps.Store.GetInstrument(ctx, securityID)
	if err != nil {
		return models.Schedule{}, err
	}
	if inst.IsVariableCoupon() {
		return models.Schedule{}, fmt.Errorf("%w: %s has a variable coupon", models.ErrUnsupportedInstrument, inst.ISIN)
	}

	disclosure, err := s.deps.Redemptions.GetRawRedemption(ctx, inst.ISIN)
	if err != nil {
		return models.Schedule{}, fmt.Errorf("redemption disclosure: %w", err)
	}
	detail, err := s.deps.Coupons.GetCouponDetail(ctx, inst.ISIN)
	if err != nil {
		return models.Schedule{}, fmt.Errorf("coupon detail: %w", err)
	}
	if detail.CouponBasis != "" {
		inst.CouponBasis = detail.CouponBasis
		if inst.IsVariableCoupon() {
			return models.Schedule{}, fmt.Errorf("%w: %s has a variable coupon", models.ErrUnsupportedInstrument, inst.ISIN)
		}
	}
	if inst.FrequencyText == "" {
		inst.FrequencyText = detail.FrequencyText
	}

	frequency, err := s.resolver.Resolve(ctx, securityID, inst.FrequencyText, inst.CouponRate)
	if err != nil {
		return models.Schedule{}, err
	}
	generatedAt := s.now().UTC()
	if frequency == 0 {
		log.Debug("Building zero-coupon schedule", "isin", inst.ISIN)
		return s.builder.BuildZeroCoupon(inst, detail.Cashflows, generatedAt)
	}

	var (
		reconciled  processors.ReconcileResult
		redemptions []models.RedemptionRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		reconciled, err = s.reconciler.Reconcile(detail.InterestPeriods(), inst.IssueDate, inst.MaturityDate, frequency)
		return err
	})
	g.Go(func() error {
		var err error
		redemptions, err = s.amortizer.Amortize(gctx, inst, disclosure, s.deps.Events)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.Schedule{}, err
	}
	if reconciled.Regenerated {
		log.Info("Interest dates synthesized", "isin", inst.ISIN, "reason", reconciled.Reason, "periods", len(reconciled.Periods))
	}
	if err := processors.CheckFaceValue(redemptions, inst.FaceValue); err != nil {
		log.Warn("Redemptions do not match face value", "isin", inst.ISIN, "error", err)
	}

	return s.builder.Build(processors.ScheduleInput{
		Instrument:  inst,
		Periods:     reconciled.Periods,
		Redemptions: redemptions,
		Frequency:   frequency,
		GeneratedAt: generatedAt,
	})
}

// RunBatch rebuilds the schedules of securityIDs (all stored securities when
// empty) on a bounded worker pool. A failing security is recorded in the report
// and never stops the batch; only a cancelled context does.
func (s *scheduleServiceImpl) RunBatch(ctx context.Context, securityIDs []int64) (models.BatchReport, error) {
	report := models.BatchReport{RunID: uuid.NewString(), Job: JobSchedules, StartedAt: s.now().UTC()}
	runLog := s.log.With("runID", report.RunID, "job", JobSchedules)
	ctx = logger.WithContext(ctx, runLog)

	if len(securityIDs) == 0 {
		ids, err := s.deps.Store.SecurityIDsWithMetadata(ctx)
		if err != nil {
			return report, fmt.Errorf("listing securities: %w", err)
		}
		securityIDs = ids
	}
	report.Total = len(securityIDs)
	runLog.Info("Schedule batch started", "securities", report.Total, "workers", s.workers)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for _, id := range securityIDs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			itemCtx := logger.WithContext(ctx, runLog.With("securityID", id))
			isin, err := s.buildAndSave(itemCtx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Skipped = append(report.Skipped, skipped(id, isin, err))
				return nil
			}
			report.Succeeded++
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Skipped, func(i, j int) bool { return report.Skipped[i].SecurityID < report.Skipped[j].SecurityID })
	report.FinishedAt = s.now().UTC()
	if err := s.deps.Notifier.NotifyBatch(ctx, report); err != nil {
		runLog.Error("Failed to deliver batch report", "error", err)
	}
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("schedule batch interrupted: %w", err)
	}
	return report, nil
}

func (s *scheduleServiceImpl) buildAndSave(ctx context.Context, id int64) (string, error) {
	log := logger.FromContext(ctx)
	schedule, err := s.BuildSchedule(ctx, id)
	if err != nil {
		logSkip(log, err)
		return schedule.ISIN, err
	}
	if err := s.deps.Store.SaveSchedule(ctx, schedule); err != nil {
		log.Error("Failed to store schedule", "isin", schedule.ISIN, "error", err)
		return schedule.ISIN, err
	}
	log.Info("Schedule stored", "isin", schedule.ISIN, "events", len(schedule.Events))
	return schedule.ISIN, nil
}

func skipped(id int64, isin string, err error) models.SkippedInstrument {
	return models.SkippedInstrument{
		SecurityID: id,
		ISIN:       isin,
		Reason:     models.ClassifySkip(err),
		Retryable:  models.IsRetryable(err),
		Error:      err.Error(),
	}
}

// logSkip logs expected data problems as warnings and everything else as errors.
func logSkip(log *slog.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrUnsupportedInstrument), errors.Is(err, models.ErrNotFound):
		log.Info("Skipping security", "reason", models.ClassifySkip(err), "error", err)
	case errors.Is(err, models.ErrMissingData), errors.Is(err, models.ErrDataInconsistency),
		errors.Is(err, models.ErrNoYieldSolution), errors.Is(err, models.ErrPriceUnavailable):
		log.Warn("Skipping security", "reason", models.ClassifySkip(err), "error", err)
	default:
		log.Error("Skipping security", "reason", models.ClassifySkip(err), "retryable", models.IsRetryable(err), "error", err)
	}
}

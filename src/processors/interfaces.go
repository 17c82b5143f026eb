package processors

import (
	"context"
	"time"

	"github.com/username/bondflow/src/models"
)

// FrequencyClassifier guesses coupons per year from free text. It may return
// any integer; the resolver validates the answer.
type FrequencyClassifier interface {
	Classify(ctx context.Context, securityID int64, text string) (int, error)
}

// RedemptionEventSource lists redemption events published in a coupon
// cashflow table. It backs partial redemptions whose disclosure has no amounts.
type RedemptionEventSource interface {
	RedemptionEvents(ctx context.Context, isin string) ([]models.RedemptionRecord, error)
}

// FrequencyResolver maps frequency text and coupon rate to payments per year.
type FrequencyResolver interface {
	Resolve(ctx context.Context, securityID int64, text string, couponRate float64) (int, error)
}

// ScheduleReconciler cleans published record/due date pairs, or synthesizes
// them when the published table cannot be trusted.
type ScheduleReconciler interface {
	Reconcile(raw []models.InterestPeriod, issue, maturity time.Time, frequency int) (ReconcileResult, error)
}

// RedemptionAmortizer turns a redemption disclosure into dated principal repayments.
type RedemptionAmortizer interface {
	Amortize(ctx context.Context, inst models.Instrument, disclosure models.RedemptionDisclosure, fallback RedemptionEventSource) ([]models.RedemptionRecord, error)
}

// CashflowBuilder assembles the final schedule.
type CashflowBuilder interface {
	Build(in ScheduleInput) (models.Schedule, error)
	BuildZeroCoupon(inst models.Instrument, cashflows []models.CouponCashflow, generatedAt time.Time) (models.Schedule, error)
}

// YieldSolver finds the actual/365 internal rate of return of dated cashflows.
type YieldSolver interface {
	XIRR(cashflows []Cashflow) (float64, error)
}

package processors

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/strongo/decimal"
	"github.com/username/bondflow/src/logger"
	"github.com/username/bondflow/src/models"
	"github.com/username/bondflow/src/utils"
)

// ScheduleInput is everything the builder needs for a coupon-bearing instrument.
type ScheduleInput struct {
	Instrument  models.Instrument
	Periods     []models.InterestPeriod
	Redemptions []models.RedemptionRecord
	Frequency   int
	GeneratedAt time.Time
}

type cashflowBuilderImpl struct {
	recordOffsetDays   int
	principalThreshold float64
	dayCount           DayCount
	log                *slog.Logger
}

func NewCashflowBuilder(opts EngineOptions) CashflowBuilder {
	opts = opts.withDefaults()
	return &cashflowBuilderImpl{
		recordOffsetDays:   opts.RecordDateOffsetDays,
		principalThreshold: opts.ZeroCouponPrincipalThreshold,
		dayCount:           opts.DayCount,
		log:                logger.OrDefault(opts.Logger),
	}
}

// Build merges interest periods and redemptions into one schedule ordered by
// due date, interest first on equal dates, and prices each coupon on the face
// value outstanding before that date's redemption.
func (b *cashflowBuilderImpl) Build(in ScheduleInput) (models.Schedule, error) {
	inst := in.Instrument
	if inst.IssueDate.IsZero() {
		return models.Schedule{}, fmt.Errorf("%w: issue date of %s", models.ErrMissingData, inst.ISIN)
	}
	if len(in.Redemptions) == 0 {
		return models.Schedule{}, fmt.Errorf("%w: no redemptions for %s", models.ErrMissingData, inst.ISIN)
	}

	events := make([]models.CashflowEvent, 0, len(in.Periods)+len(in.Redemptions))
	for _, p := range in.Periods {
		e, err := models.NewCashflowEvent(inst.SecurityID, p.RecordDate, p.DueDate, models.KindInterest)
		if err != nil {
			return models.Schedule{}, fmt.Errorf("interest period of %s: %w", inst.ISIN, err)
		}
		e.CouponRate = inst.CouponRate
		e.Frequency = in.Frequency
		events = append(events, e)
	}
	for _, r := range in.Redemptions {
		e, err := models.NewCashflowEvent(inst.SecurityID, r.RecordDate, r.DueDate, models.KindRedemption)
		if err != nil {
			return models.Schedule{}, fmt.Errorf("redemption of %s: %w", inst.ISIN, err)
		}
		e.RedemptionKind = r.Kind
		e.Amount = r.Amount
		e.CouponRate = inst.CouponRate
		e.Frequency = in.Frequency
		events = append(events, e)
	}
	sortEvents(events)

	originalFace := OriginalFaceValue(in.Redemptions)
	outstanding := originalFace
	prevInterestDue := utils.TruncateDay(inst.IssueDate)
	out := events[:0]
	for _, e := range events {
		e.OutstandingBefore = outstanding
		switch e.Kind {
		case models.KindInterest:
			start := prevInterestDue
			prevInterestDue = e.DueDate
			if outstanding <= 0 {
				b.log.Debug("Dropping coupon after principal is repaid", "isin", inst.ISIN, "dueDate", e.DueDate.Format(time.DateOnly))
				continue
			}
			e.Amount = accrue(outstanding, inst.CouponRate, b.dayCount.YearFraction(start, e.DueDate))
		case models.KindRedemption:
			outstanding -= e.Amount
		}
		e.OutstandingAfter = outstanding
		out = append(out, e)
	}
	if outstanding != 0 {
		b.log.Warn("Outstanding face value does not reach zero", "isin", inst.ISIN, "remaining", outstanding.String())
	}

	return models.Schedule{
		SecurityID:        inst.SecurityID,
		ISIN:              inst.ISIN,
		OriginalFaceValue: originalFace,
		Events:            out,
		GeneratedAt:       in.GeneratedAt,
	}, nil
}

// accrue is simple interest over a year fraction, rounded to cents.
func accrue(outstanding decimal.Decimal64p2, couponRate float64, years float64) decimal.Decimal64p2 {
	return utils.ToAmount(outstanding.AsFloat64() * couponRate / 100 * years)
}

func kindRank(k models.CashflowKind) int {
	if k == models.KindInterest {
		return 0
	}
	return 1
}

func sortEvents(events []models.CashflowEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].DueDate.Equal(events[j].DueDate) {
			return events[i].DueDate.Before(events[j].DueDate)
		}
		return kindRank(events[i].Kind) < kindRank(events[j].Kind)
	})
}

// BuildZeroCoupon collapses a discount instrument into a payoff and a
// redemption, both at maturity. The payoff is the published interest amount,
// or the published redemption amount less face value. A payoff whose implied
// annual return is above the principal threshold is taken to include the
// principal, and face value is subtracted from it.
func (b *cashflowBuilderImpl) BuildZeroCoupon(inst models.Instrument, cashflows []models.CouponCashflow, generatedAt time.Time) (models.Schedule, error) {
	if inst.IssueDate.IsZero() || inst.MaturityDate.IsZero() {
		return models.Schedule{}, fmt.Errorf("%w: issue and maturity dates of %s", models.ErrMissingData, inst.ISIN)
	}
	if !inst.HasDates() {
		return models.Schedule{}, fmt.Errorf("%w: maturity %s not after issue %s for %s", models.ErrDataInconsistency,
			inst.MaturityDate.Format(time.DateOnly), inst.IssueDate.Format(time.DateOnly), inst.ISIN)
	}
	days := utils.DaysBetween(inst.IssueDate, inst.MaturityDate)
	if inst.FaceValue <= 0 {
		return models.Schedule{}, fmt.Errorf("%w: non-positive face value %s for %s", models.ErrDataInconsistency, inst.FaceValue.String(), inst.ISIN)
	}

	payoff, err := zeroCouponPayoff(cashflows, inst.FaceValue)
	if err != nil {
		return models.Schedule{}, fmt.Errorf("zero coupon payoff of %s: %w", inst.ISIN, err)
	}
	if payoff <= 0 {
		return models.Schedule{}, fmt.Errorf("%w: non-positive payoff %s for %s", models.ErrDataInconsistency, payoff.String(), inst.ISIN)
	}

	irr := ImpliedAnnualReturn(payoff, inst.FaceValue, days)
	if irr > b.principalThreshold {
		b.log.Info("Zero coupon payoff includes principal, subtracting face value",
			"isin", inst.ISIN, "payoff", payoff.String(), "impliedReturn", irr)
		payoff -= inst.FaceValue
	}

	maturity := utils.TruncateDay(inst.MaturityDate)
	record := utils.AddDays(maturity, -b.recordOffsetDays)
	face := inst.FaceValue
	events := []models.CashflowEvent{
		{
			SecurityID: inst.SecurityID, RecordDate: record, DueDate: maturity,
			Kind: models.KindInterest, Amount: payoff,
			OutstandingBefore: face, OutstandingAfter: face,
		},
		{
			SecurityID: inst.SecurityID, RecordDate: record, DueDate: maturity,
			Kind: models.KindRedemption, RedemptionKind: models.RedemptionFull, Amount: face,
			OutstandingBefore: face, OutstandingAfter: 0,
		},
	}
	return models.Schedule{
		SecurityID:        inst.SecurityID,
		ISIN:              inst.ISIN,
		OriginalFaceValue: face,
		Events:            events,
		GeneratedAt:       generatedAt,
	}, nil
}

func zeroCouponPayoff(cashflows []models.CouponCashflow, face decimal.Decimal64p2) (decimal.Decimal64p2, error) {
	for _, c := range cashflows {
		if c.IsInterest() && c.Amount != 0 {
			return c.Amount, nil
		}
	}
	for _, c := range cashflows {
		if c.IsRedemption() && c.Amount != 0 {
			return c.Amount - face, nil
		}
	}
	return 0, fmt.Errorf("%w: no interest or redemption amount published", models.ErrMissingData)
}

// ImpliedAnnualReturn is (payoff/face)^(365/days) - 1.
func ImpliedAnnualReturn(payoff, face decimal.Decimal64p2, days int) float64 {
	if face <= 0 || days <= 0 {
		return math.NaN()
	}
	return math.Pow(payoff.AsFloat64()/face.AsFloat64(), utils.DaysInYear/float64(days)) - 1
}

package processors

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/strongo/decimal"
	"github.com/username/bondflow/src/logger"
	"github.com/username/bondflow/src/models"
	"github.com/username/bondflow/src/utils"
)

type redemptionAmortizerImpl struct {
	recordOffsetDays int
	log              *slog.Logger
}

func NewRedemptionAmortizer(opts EngineOptions) RedemptionAmortizer {
	opts = opts.withDefaults()
	return &redemptionAmortizerImpl{
		recordOffsetDays: opts.RecordDateOffsetDays,
		log:              logger.OrDefault(opts.Logger),
	}
}

// Amortize returns the instrument's principal repayments sorted by due date.
// A full redemption repays the face value at maturity. A partial redemption
// repays each disclosed amount; when the disclosure carries no amounts the
// fallback source is asked for the published redemption events.
func (a *redemptionAmortizerImpl) Amortize(ctx context.Context, inst models.Instrument, disclosure models.RedemptionDisclosure, fallback RedemptionEventSource) ([]models.RedemptionRecord, error) {
	var records []models.RedemptionRecord
	switch {
	case disclosure.IsFull():
		if inst.MaturityDate.IsZero() {
			return nil, fmt.Errorf("%w: maturity date of %s", models.ErrMissingData, inst.ISIN)
		}
		if inst.FaceValue <= 0 {
			return nil, fmt.Errorf("%w: face value of %s", models.ErrMissingData, inst.ISIN)
		}
		maturity := utils.TruncateDay(inst.MaturityDate)
		records = append(records, models.RedemptionRecord{
			DueDate:    maturity,
			RecordDate: utils.AddDays(maturity, -a.recordOffsetDays),
			Amount:     inst.FaceValue,
			Kind:       models.RedemptionFull,
		})

	case disclosure.IsPartial():
		partial, err := a.partialRecords(inst, disclosure)
		if err != nil {
			return nil, err
		}
		records = partial
		if len(records) == 0 {
			if fallback == nil {
				return nil, fmt.Errorf("%w: partial redemption of %s has no amounts", models.ErrMissingData, inst.ISIN)
			}
			a.log.Info("Partial redemption disclosed without amounts, using published redemption events", "isin", inst.ISIN)
			events, err := fallback.RedemptionEvents(ctx, inst.ISIN)
			if err != nil {
				return nil, fmt.Errorf("fallback redemption events for %s: %w", inst.ISIN, err)
			}
			for _, e := range events {
				if e.Amount == 0 || e.DueDate.IsZero() {
					continue
				}
				e.Kind = models.RedemptionPartial
				e.DueDate = utils.TruncateDay(e.DueDate)
				if e.RecordDate.IsZero() || e.RecordDate.After(e.DueDate) {
					e.RecordDate = utils.AddDays(e.DueDate, -a.recordOffsetDays)
				}
				records = append(records, e)
			}
		}
		if len(records) == 0 {
			return nil, fmt.Errorf("%w: no redemption amounts found for %s", models.ErrMissingData, inst.ISIN)
		}

	default:
		return nil, fmt.Errorf("%w: unknown redemption type %q for %s", models.ErrMissingData, disclosure.Type, inst.ISIN)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].DueDate.Before(records[j].DueDate)
	})
	return records, nil
}

// partialRecords converts the disclosed entries to currency. Value redeemed is
// already currency and wins when both figures are present. An entry with only
// a quantity is priced as its share of the total disclosed quantity of the
// face value; the shares are allocated cumulatively so that quantity-only
// disclosures sum to the face value exactly.
func (a *redemptionAmortizerImpl) partialRecords(inst models.Instrument, disclosure models.RedemptionDisclosure) ([]models.RedemptionRecord, error) {
	var quantities []decimal.Decimal64p2
	for _, entry := range disclosure.Entries {
		if !entry.Date.IsZero() && entry.QuantityRedeemed > 0 {
			quantities = append(quantities, entry.QuantityRedeemed)
		}
	}
	totalQty := utils.SumAmounts(quantities...)

	var records []models.RedemptionRecord
	var cumQty, allocated decimal.Decimal64p2
	for _, entry := range disclosure.Entries {
		if entry.Date.IsZero() {
			if entry.ValueRedeemed != 0 || entry.QuantityRedeemed != 0 {
				a.log.Warn("Skipping partial redemption entry without a date", "isin", inst.ISIN,
					"value", entry.ValueRedeemed.String(), "quantity", entry.QuantityRedeemed.String())
			}
			continue
		}
		amount := entry.ValueRedeemed
		if amount == 0 && entry.QuantityRedeemed > 0 {
			if inst.FaceValue <= 0 {
				return nil, fmt.Errorf("%w: face value of %s is needed to price redeemed quantities", models.ErrMissingData, inst.ISIN)
			}
			cumQty += entry.QuantityRedeemed
			upTo := utils.ToAmount(inst.FaceValue.AsFloat64() * cumQty.AsFloat64() / totalQty.AsFloat64())
			amount = upTo - allocated
			allocated = upTo
		}
		if amount == 0 {
			continue
		}
		due := utils.TruncateDay(entry.Date)
		records = append(records, models.RedemptionRecord{
			DueDate:    due,
			RecordDate: utils.AddDays(due, -a.recordOffsetDays),
			Amount:     amount,
			Kind:       models.RedemptionPartial,
		})
	}
	return records, nil
}

// OriginalFaceValue is the sum of all redemption amounts.
func OriginalFaceValue(records []models.RedemptionRecord) decimal.Decimal64p2 {
	amounts := make([]decimal.Decimal64p2, len(records))
	for i, r := range records {
		amounts[i] = r.Amount
	}
	return utils.SumAmounts(amounts...)
}

// Trajectory walks redemptions in due-date order from the original face value
// down to zero.
func Trajectory(records []models.RedemptionRecord) []models.FaceValuePoint {
	sorted := make([]models.RedemptionRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DueDate.Before(sorted[j].DueDate)
	})

	outstanding := OriginalFaceValue(sorted)
	points := make([]models.FaceValuePoint, 0, len(sorted))
	for _, r := range sorted {
		point := models.FaceValuePoint{DueDate: r.DueDate, Before: outstanding}
		outstanding -= r.Amount
		point.After = outstanding
		points = append(points, point)
	}
	return points
}

// CheckFaceValue reports redemptions that do not add up to the instrument's
// face value. The mismatch is returned, never corrected.
func CheckFaceValue(records []models.RedemptionRecord, faceValue decimal.Decimal64p2) error {
	total := OriginalFaceValue(records)
	if faceValue > 0 && total != faceValue {
		return fmt.Errorf("%w: redemptions sum to %s, face value is %s",
			models.ErrDataInconsistency, total.String(), faceValue.String())
	}
	return nil
}

// RecordsFromSchedule extracts the redemption events of a built schedule.
func RecordsFromSchedule(s models.Schedule) []models.RedemptionRecord {
	var records []models.RedemptionRecord
	for _, e := range s.Events {
		if !e.IsRedemption() {
			continue
		}
		records = append(records, models.RedemptionRecord{
			DueDate:    e.DueDate,
			RecordDate: e.RecordDate,
			Amount:     e.Amount,
			Kind:       e.RedemptionKind,
		})
	}
	return records
}

// ScheduleTrajectory reads the face value trajectory recorded on a schedule's
// redemption events.
func ScheduleTrajectory(s models.Schedule) []models.FaceValuePoint {
	var points []models.FaceValuePoint
	for _, e := range s.Events {
		if e.IsRedemption() {
			points = append(points, models.FaceValuePoint{DueDate: e.DueDate, Before: e.OutstandingBefore, After: e.OutstandingAfter})
		}
	}
	return points
}

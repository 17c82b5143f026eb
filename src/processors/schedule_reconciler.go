package processors

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/username/bondflow/src/logger"
	"github.com/username/bondflow/src/models"
	"github.com/username/bondflow/src/utils"
)

// ReconcileResult is the cleaned interest period table.
type ReconcileResult struct {
	Periods     []models.InterestPeriod
	Regenerated bool
	Reason      string // why the published table was discarded
}

type scheduleReconcilerImpl struct {
	recordOffsetDays int
	dayCount         DayCount
	log              *slog.Logger
}

func NewScheduleReconciler(opts EngineOptions) ScheduleReconciler {
	opts = opts.withDefaults()
	return &scheduleReconcilerImpl{
		recordOffsetDays: opts.RecordDateOffsetDays,
		dayCount:         opts.DayCount,
		log:              logger.OrDefault(opts.Logger),
	}
}

// Reconcile dedupes and sorts record and due dates independently, then pairs
// them by position. Tables that are empty, unbalanced or that put a record
// date after its due date are replaced by a synthesized table.
func (r *scheduleReconcilerImpl) Reconcile(raw []models.InterestPeriod, issue, maturity time.Time, frequency int) (ReconcileResult, error) {
	records := make([]time.Time, 0, len(raw))
	dues := make([]time.Time, 0, len(raw))
	for _, p := range raw {
		records = append(records, p.RecordDate)
		dues = append(dues, p.DueDate)
	}
	records = utils.UniqueSortedDates(records)
	dues = utils.UniqueSortedDates(dues)

	reason := inconsistency(records, dues)
	if reason == "" {
		periods := make([]models.InterestPeriod, len(dues))
		for i := range dues {
			periods[i] = models.InterestPeriod{RecordDate: records[i], DueDate: dues[i]}
		}
		return ReconcileResult{Periods: periods}, nil
	}

	r.log.Info("Discarding published interest dates, synthesizing schedule",
		"reason", reason, "recordDates", len(records), "dueDates", len(dues), "frequency", frequency)
	synthesize := SynthesizePeriods
	if r.dayCount == DayCountActualDaily {
		synthesize = SynthesizeCalendarPeriods
	}
	periods, err := synthesize(issue, maturity, frequency, r.recordOffsetDays)
	if err != nil {
		return ReconcileResult{Regenerated: true, Reason: reason}, err
	}
	return ReconcileResult{Periods: periods, Regenerated: true, Reason: reason}, nil
}

func inconsistency(records, dues []time.Time) string {
	switch {
	case len(records) == 0 || len(dues) == 0:
		return "no published dates"
	case len(records) != len(dues):
		return fmt.Sprintf("%d record dates vs %d due dates", len(records), len(dues))
	}
	for i := range records {
		if records[i].After(dues[i]) {
			return fmt.Sprintf("record date %s after due date %s",
				records[i].Format(time.DateOnly), dues[i].Format(time.DateOnly))
		}
	}
	return ""
}

// SynthesizePeriods steps from issue by 365/frequency days. The k-th due date
// is issue + floor(k*365/frequency) days, so rounding never accumulates. The
// last period ends exactly at maturity.
func SynthesizePeriods(issue, maturity time.Time, frequency, recordOffsetDays int) ([]models.InterestPeriod, error) {
	totalDays, err := checkSynthesisInputs(issue, maturity, frequency)
	if err != nil {
		return nil, err
	}
	return stepPeriods(maturity, recordOffsetDays, func(k int) time.Time {
		offset := k * 365 / frequency
		if offset >= totalDays {
			return maturity
		}
		return utils.AddDays(issue, offset)
	}), nil
}

// SynthesizeCalendarPeriods steps from issue by 12/frequency calendar months,
// each due date counted from issue and clamped to the month end. The last
// period ends exactly at maturity.
func SynthesizeCalendarPeriods(issue, maturity time.Time, frequency, recordOffsetDays int) ([]models.InterestPeriod, error) {
	if _, err := checkSynthesisInputs(issue, maturity, frequency); err != nil {
		return nil, err
	}
	if !ValidFrequency(frequency) {
		return nil, fmt.Errorf("%w: frequency %d does not divide a year into months", models.ErrDataInconsistency, frequency)
	}
	months := 12 / frequency
	return stepPeriods(maturity, recordOffsetDays, func(k int) time.Time {
		return utils.AddMonths(issue, k*months)
	}), nil
}

func checkSynthesisInputs(issue, maturity time.Time, frequency int) (int, error) {
	if frequency <= 0 {
		return 0, fmt.Errorf("%w: frequency %d", models.ErrZeroFrequency, frequency)
	}
	if issue.IsZero() || maturity.IsZero() {
		return 0, fmt.Errorf("%w: issue and maturity dates are required to synthesize periods", models.ErrMissingData)
	}
	totalDays := utils.DaysBetween(issue, maturity)
	if totalDays <= 0 {
		return 0, fmt.Errorf("%w: maturity %s not after issue %s", models.ErrDataInconsistency,
			maturity.Format(time.DateOnly), issue.Format(time.DateOnly))
	}
	return totalDays, nil
}

// stepPeriods collects dueAt(1), dueAt(2), ... up to the first due date on or
// after maturity, which is replaced by maturity itself.
func stepPeriods(maturity time.Time, recordOffsetDays int, dueAt func(k int) time.Time) []models.InterestPeriod {
	maturity = utils.TruncateDay(maturity)
	var periods []models.InterestPeriod
	for k := 1; ; k++ {
		due := dueAt(k)
		last := !due.Before(maturity)
		if last {
			due = maturity
		}
		periods = append(periods, models.InterestPeriod{
			RecordDate: utils.AddDays(due, -recordOffsetDays),
			DueDate:    due,
		})
		if last {
			return periods
		}
	}
}

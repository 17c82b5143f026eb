package processors

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/username/bondflow/src/utils"
)

// DayCount selects how coupons accrue and how synthetic periods step.
type DayCount string

const (
	// DayCountAct365 accrues actual days over 365 and steps synthetic
	// periods by floor(k*365/frequency) days.
	DayCountAct365 DayCount = "ACT/365"
	// DayCountActualDaily accrues day by day over 365 or 366 depending on
	// the year of each day, and steps synthetic periods by calendar months.
	DayCountActualDaily DayCount = "ACT/ACT-DAILY"
)

func ParseDayCount(s string) (DayCount, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(DayCountAct365):
		return DayCountAct365, nil
	case string(DayCountActualDaily):
		return DayCountActualDaily, nil
	}
	return "", fmt.Errorf("unknown day count %q, expected %s or %s", s, DayCountAct365, DayCountActualDaily)
}

// YearFraction is the accrual fraction between two dates under d.
func (d DayCount) YearFraction(start, end time.Time) float64 {
	if !end.After(start) {
		return 0
	}
	if d == DayCountActualDaily {
		return utils.DailyAccrualFraction(start, end)
	}
	return utils.YearFraction(start, end)
}

// EngineOptions carries the policy constants of the schedule engine.
type EngineOptions struct {
	RecordDateOffsetDays         int
	ZeroCouponPrincipalThreshold float64
	ClassifierMaxAttempts        int
	FallbackFrequency            int
	DayCount                     DayCount
	Logger                       *slog.Logger
}

func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		RecordDateOffsetDays:         15,
		ZeroCouponPrincipalThreshold: 0.20,
		ClassifierMaxAttempts:        5,
		FallbackFrequency:            1,
		DayCount:                     DayCountAct365,
	}
}

func (o EngineOptions) withDefaults() EngineOptions {
	d := DefaultEngineOptions()
	if o.RecordDateOffsetDays < 0 {
		o.RecordDateOffsetDays = d.RecordDateOffsetDays
	}
	if o.ZeroCouponPrincipalThreshold <= 0 {
		o.ZeroCouponPrincipalThreshold = d.ZeroCouponPrincipalThreshold
	}
	if o.ClassifierMaxAttempts < 1 {
		o.ClassifierMaxAttempts = d.ClassifierMaxAttempts
	}
	if !ValidFrequency(o.FallbackFrequency) || o.FallbackFrequency == 0 {
		o.FallbackFrequency = d.FallbackFrequency
	}
	if o.DayCount != DayCountActualDaily {
		o.DayCount = d.DayCount
	}
	return o
}

package utils

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultDateFormat is the dd-mm-yyyy layout used by the depository feeds.
const DefaultDateFormat = "02-01-2006"

// DaysInYear is the actual/365 denominator used for accrual and discounting.
const DaysInYear = 365.0

var fallbackDateFormats = []string{
	time.DateOnly,
	"02-Jan-2006",
	"02/01/2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ParseDate parses a date in the default format, falling back to a few layouts
// seen in exchange payloads. Blank or placeholder input is an error.
func ParseDate(dateStr string) (time.Time, error) {
	s := strings.TrimSpace(dateStr)
	if s == "" || strings.EqualFold(s, "na") || s == "-" {
		return time.Time{}, fmt.Errorf("empty date %q", dateStr)
	}
	if t, err := time.Parse(DefaultDateFormat, s); err == nil {
		return t, nil
	}
	for _, layout := range fallbackDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return TruncateDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", dateStr)
}

// TruncateDay drops the clock part and the zone, keeping the calendar date.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts calendar days from start to end. Negative when end is earlier.
func DaysBetween(start, end time.Time) int {
	return int(TruncateDay(end).Sub(TruncateDay(start)).Hours() / 24)
}

// AddDays moves a calendar date by n days.
func AddDays(t time.Time, n int) time.Time {
	return TruncateDay(t).AddDate(0, 0, n)
}

// YearFraction is the actual/365 fraction between two dates.
func YearFraction(start, end time.Time) float64 {
	return float64(DaysBetween(start, end)) / DaysInYear
}

func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// YearDays returns 366 if t is in a leap year, else 365.
func YearDays(t time.Time) int {
	if IsLeapYear(t.Year()) {
		return 366
	}
	return 365
}

// DailyAccrualFraction sums 1/YearDays(d) over every day d in [start, end),
// so days in a leap year accrue 1/366 and the others 1/365. Zero when end is
// not after start.
func DailyAccrualFraction(start, end time.Time) float64 {
	start, end = TruncateDay(start), TruncateDay(end)
	var total float64
	for start.Before(end) {
		yearEnd := time.Date(start.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
		if yearEnd.After(end) {
			yearEnd = end
		}
		total += float64(DaysBetween(start, yearEnd)) / float64(YearDays(start))
		start = yearEnd
	}
	return total
}

// AddMonths moves a date by n calendar months, clamping to the last day of
// the target month (31 Jan + 1 month is 28 or 29 Feb).
func AddMonths(t time.Time, n int) time.Time {
	t = TruncateDay(t)
	firstOfTarget := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	lastOfTarget := firstOfTarget.AddDate(0, 1, -1).Day()
	d := t.Day()
	if d > lastOfTarget {
		d = lastOfTarget
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, 0, 0, 0, 0, time.UTC)
}

// SortDates sorts in place, ascending.
func SortDates(dates []time.Time) {
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})
}

// UniqueSortedDates returns the distinct calendar dates of in, ascending.
// Zero dates are dropped.
func UniqueSortedDates(in []time.Time) []time.Time {
	seen := make(map[time.Time]bool, len(in))
	out := make([]time.Time, 0, len(in))
	for _, d := range in {
		if d.IsZero() {
			continue
		}
		day := TruncateDay(d)
		if seen[day] {
			continue
		}
		seen[day] = true
		out = append(out, day)
	}
	SortDates(out)
	return out
}

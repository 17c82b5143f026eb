package processors

import (
	"context"
	"time"

	"github.com/strongo/decimal"
	"github.com/username/bondflow/src/logger"
	"github.com/username/bondflow/src/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func amt(v int64) decimal.Decimal64p2 { return decimal.NewDecimal64p2(v, 0) }

func testOptions() EngineOptions {
	opts := DefaultEngineOptions()
	opts.Logger = logger.Discard()
	return opts
}

// scriptedClassifier answers from a fixed script, then repeats the last answer.
type scriptedClassifier struct {
	answers []int
	errs    []error
	calls   int
}

func (c *scriptedClassifier) Classify(_ context.Context, _ int64, _ string) (int, error) {
	i := c.calls
	c.calls++
	if i >= len(c.answers) {
		i = len(c.answers) - 1
	}
	var err error
	if i < len(c.errs) {
		err = c.errs[i]
	}
	return c.answers[i], err
}

type staticEvents struct {
	records []models.RedemptionRecord
	err     error
	isin    string
}

func (s *staticEvents) RedemptionEvents(_ context.Context, isin string) ([]models.RedemptionRecord, error) {
	s.isin = isin
	return s.records, s.err
}

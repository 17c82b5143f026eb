package services

import (
	"time"

	"github.com/strongo/decimal"
	"github.com/username/bondflow/src/models"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func amt(v int64) decimal.Decimal64p2 { return decimal.NewDecimal64p2(v, 0) }

// testClientOptions disables rate limiting so tests run at full speed.
func testClientOptions() ClientOptions {
	return ClientOptions{Timeout: 5 * time.Second}
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func sampleInstrument(id int64) models.Instrument {
	return models.Instrument{
		SecurityID:    id,
		ISIN:          "INE657N07431",
		TradingSymbol: "10EFL26",
		IssueDate:     day(2023, 3, 1),
		MaturityDate:  day(2026, 3, 1),
		CouponRate:    10,
		FrequencyText: "Annual",
		CouponBasis:   "Fixed",
		FaceValue:     amt(1000),
	}
}

package models

import (
	"strings"
	"time"

	"github.com/strongo/decimal"
)

// Instrument is the metadata of one listed bond. It is read once per run and
// never mutated by the engine.
type Instrument struct {
	SecurityID    int64               `json:"security_id"`
	ISIN          string              `json:"isin"`
	TradingSymbol string              `json:"trading_symbol"`
	IssueDate     time.Time           `json:"issue_date"`
	MaturityDate  time.Time           `json:"maturity_date"`
	CouponRate    float64             `json:"coupon_rate"` // annual, in percent
	FrequencyText string              `json:"frequency_text"`
	CouponBasis   string              `json:"coupon_basis"`
	FaceValue     decimal.Decimal64p2 `json:"face_value"`
	IssuerName    string              `json:"issuer_name"`
	Sector        string              `json:"sector"`
	Industry      string              `json:"industry"`
}

// VariableCouponBasis is the coupon basis label of floating and step coupons.
const VariableCouponBasis = "Variable-Others"

func (i Instrument) IsVariableCoupon() bool {
	return strings.EqualFold(strings.TrimSpace(i.CouponBasis), VariableCouponBasis)
}

// HasDates reports whether both issue and maturity are known and ordered.
func (i Instrument) HasDates() bool {
	return !i.IssueDate.IsZero() && !i.MaturityDate.IsZero() && i.IssueDate.Before(i.MaturityDate)
}

// Security ties an exchange listing to its ISIN under a stable numeric id.
type Security struct {
	SecurityID    int64     `json:"security_id"`
	TradingSymbol string    `json:"trading_symbol"`
	ScripCode     string    `json:"scrip_code"`
	ISIN          string    `json:"isin"`
	CapturedAt    time.Time `json:"captured_at"`
}

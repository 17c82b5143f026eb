package models

import (
	"strings"
	"time"

	"github.com/strongo/decimal"
)

// Redemption types as disclosed by the depository.
const (
	RedemptionTypeFull          = "Full Redemption"
	RedemptionTypePartialByFace = "Partial Redemption By Face Value"
)

// RedemptionDisclosure is the depository's description of how principal is repaid.
type RedemptionDisclosure struct {
	ISIN    string            `json:"isin"`
	Type    string            `json:"redemption_type"`
	Entries []RedemptionEntry `json:"entries"`
}

func (d RedemptionDisclosure) IsFull() bool {
	return strings.EqualFold(strings.TrimSpace(d.Type), RedemptionTypeFull)
}

func (d RedemptionDisclosure) IsPartial() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(d.Type)), "partial redemption")
}

// RedemptionEntry is one disclosed partial redemption. Either amount may be zero.
type RedemptionEntry struct {
	Date             time.Time           `json:"date"`
	QuantityRedeemed decimal.Decimal64p2 `json:"quantity_redeemed"`
	ValueRedeemed    decimal.Decimal64p2 `json:"value_redeemed"`
}

// CouponDetail is the coupon terms and the published cashflow table of an ISIN.
type CouponDetail struct {
	ISIN          string           `json:"isin"`
	CouponRate    float64          `json:"coupon_rate"`
	FrequencyText string           `json:"frequency_text"`
	CouponBasis   string           `json:"coupon_basis"`
	Cashflows     []CouponCashflow `json:"cashflows"`
}

// CouponCashflow is one row of a published cashflow table.
type CouponCashflow struct {
	RecordDate  time.Time           `json:"record_date"`
	DueDate     time.Time           `json:"due_date"`
	PaymentDate time.Time           `json:"payment_date"`
	Amount      decimal.Decimal64p2 `json:"amount"`
	Event       string              `json:"event"`
}

func (c CouponCashflow) IsInterest() bool {
	return strings.Contains(c.Event, "Interest")
}

func (c CouponCashflow) IsRedemption() bool {
	return strings.Contains(c.Event, "Redemption")
}

// InterestPeriods returns the record/due pairs of the interest rows.
func (d CouponDetail) InterestPeriods() []InterestPeriod {
	var out []InterestPeriod
	for _, c := range d.Cashflows {
		if c.IsRedemption() && !c.IsInterest() {
			continue
		}
		out = append(out, InterestPeriod{RecordDate: c.RecordDate, DueDate: c.DueDate})
	}
	return out
}

// ListedInstrument is a row of the broker's instrument dump.
type ListedInstrument struct {
	InstrumentToken string `json:"instrument_token"`
	ExchangeToken   string `json:"exchange_token"`
	TradingSymbol   string `json:"tradingsymbol"`
	Name            string `json:"name"`
	Exchange        string `json:"exchange"`
	Segment         string `json:"segment"`
}

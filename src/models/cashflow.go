package models

import (
	"fmt"
	"time"

	"github.com/strongo/decimal"
)

type CashflowKind string

const (
	KindInterest   CashflowKind = "interest_payment"
	KindRedemption CashflowKind = "redemption"
)

type RedemptionKind string

const (
	RedemptionFull    RedemptionKind = "full"
	RedemptionPartial RedemptionKind = "partial"
)

// CashflowEvent is one dated payment of an instrument's schedule.
type CashflowEvent struct {
	SecurityID        int64               `json:"security_id"`
	RecordDate        time.Time           `json:"record_date"`
	DueDate           time.Time           `json:"due_date"`
	Kind              CashflowKind        `json:"event_type"`
	RedemptionKind    RedemptionKind      `json:"redemption_kind,omitempty"`
	Amount            decimal.Decimal64p2 `json:"amount"`
	CouponRate        float64             `json:"coupon"`
	Frequency         int                 `json:"frequency"`
	OutstandingBefore decimal.Decimal64p2 `json:"face_value"`
	OutstandingAfter  decimal.Decimal64p2 `json:"face_value_after"`
}

// NewCashflowEvent returns an event with the record date not after the due date.
func NewCashflowEvent(securityID int64, recordDate, dueDate time.Time, kind CashflowKind) (CashflowEvent, error) {
	if recordDate.After(dueDate) {
		return CashflowEvent{}, fmt.Errorf("%w: record date %s after due date %s",
			ErrDataInconsistency, recordDate.Format(time.DateOnly), dueDate.Format(time.DateOnly))
	}
	return CashflowEvent{
		SecurityID: securityID,
		RecordDate: recordDate,
		DueDate:    dueDate,
		Kind:       kind,
	}, nil
}

func (e CashflowEvent) IsRedemption() bool { return e.Kind == KindRedemption }

// RedemptionRecord is one scheduled return of principal.
type RedemptionRecord struct {
	DueDate    time.Time           `json:"due_date"`
	RecordDate time.Time           `json:"record_date"`
	Amount     decimal.Decimal64p2 `json:"amount"`
	Kind       RedemptionKind      `json:"kind"`
}

// FaceValuePoint is the outstanding principal around one redemption.
type FaceValuePoint struct {
	DueDate time.Time           `json:"due_date"`
	Before  decimal.Decimal64p2 `json:"before"`
	After   decimal.Decimal64p2 `json:"after"`
}

// InterestPeriod is the record/due date pair of one coupon payment.
type InterestPeriod struct {
	RecordDate time.Time `json:"record_date"`
	DueDate    time.Time `json:"due_date"`
}

// Schedule is the full ordered cashflow projection of one instrument.
// Events are sorted by due date; on equal due dates interest precedes redemption.
type Schedule struct {
	SecurityID        int64               `json:"security_id"`
	ISIN              string              `json:"isin"`
	OriginalFaceValue decimal.Decimal64p2 `json:"original_face_value"`
	Events            []CashflowEvent     `json:"events"`
	GeneratedAt       time.Time           `json:"generated_at"`
}

// UpcomingCashflow is a stored event joined with the instrument it belongs to.
type UpcomingCashflow struct {
	CashflowEvent
	ISIN          string `json:"isin"`
	TradingSymbol string `json:"trading_symbol"`
	IssuerName    string `json:"issuer_name"`
}

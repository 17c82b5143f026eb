package nsdl

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/username/bondflow/src/logger"
	"github.com/username/bondflow/src/models"
	"github.com/username/bondflow/src/parsers"
	"github.com/username/bondflow/src/utils"
)

// noRecordMessage is what the depository answers for an unknown ISIN.
const noRecordMessage = "No Record Found"

// --- JSON Data Structures ---

type isinResponse struct {
	Message    string `json:"message"`
	ISIN       string `json:"isin"`
	IssuerName string `json:"issuerName"`
	Sector     string `json:"sector"`
	Industry   string `json:"industry"`
}

type instrumentsResponse struct {
	Message       string `json:"message"`
	InstrumentsVo struct {
		Instruments struct {
			Message        string            `json:"message"`
			AllotmentDate  string            `json:"allotmentDate"`
			RedemptionDate string            `json:"redemptionDate"`
			FaceValue      parsers.FlexFloat `json:"faceValue"`
		} `json:"instruments"`
	} `json:"instrumentsVo"`
}

type couponDetailResponse struct {
	Message   string `json:"message"`
	CoupensVo struct {
		CouponDetails struct {
			CouponRate               string `json:"couponRate"`
			InterestPaymentFrequency string `json:"interestPaymentFrequency"`
			CouponBasis              string `json:"couponBasis"`
		} `json:"couponDetails"`
		CashFlowScheduleDetails struct {
			CashFlowSchedule []cashFlowRow `json:"cashFlowSchedule"`
		} `json:"cashFlowScheduleDetails"`
	} `json:"coupensVo"`
}

type cashFlowRow struct {
	RecordDate     string            `json:"recordDate"`
	DueDate        string            `json:"dueDate"`
	PaymentDate    string            `json:"paymentDate"`
	AmountPayable  parsers.FlexFloat `json:"amountPayable"`
	CashFlowsEvent string            `json:"cashFlowsEvent"`
}

type redemptionsResponse struct {
	Message        string `json:"message"`
	RedemptionType string `json:"redemptionType"`
	Redemption     []struct {
		PartialRedemptionDates string            `json:"partialRedemptionDates"`
		QuantityRedeemed       parsers.FlexFloat `json:"quantityRedeemed"`
		ValueRedeemed          parsers.FlexFloat `json:"valueRedeemed"`
	} `json:"redemption"`
}

// ISINDetails is the issuer classification of an ISIN.
type ISINDetails struct {
	ISIN       string
	IssuerName string
	Sector     string
	Industry   string
}

// InstrumentTerms are the issue-level dates and face value.
type InstrumentTerms struct {
	IssueDate    time.Time
	MaturityDate time.Time
	FaceValue    float64
}

func decode(r io.Reader, v any, what string) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("%w: nsdl %s: %v", parsers.ErrParsingFailed, what, err)
	}
	return nil
}

func notFound(message string) bool {
	return strings.EqualFold(strings.TrimSpace(message), noRecordMessage)
}

// ParseISINDetails reads the isins endpoint.
func ParseISINDetails(r io.Reader) (ISINDetails, error) {
	var resp isinResponse
	if err := decode(r, &resp, "isin details"); err != nil {
		return ISINDetails{}, err
	}
	if notFound(resp.Message) || resp.ISIN == "" {
		return ISINDetails{}, fmt.Errorf("%w: isin details", models.ErrNotFound)
	}
	return ISINDetails{
		ISIN:       strings.TrimSpace(resp.ISIN),
		IssuerName: utils.CleanText(resp.IssuerName),
		Sector:     utils.CleanText(resp.Sector),
		Industry:   utils.CleanText(resp.Industry),
	}, nil
}

// ParseInstrument reads the instruments endpoint. Allotment and redemption
// dates are required.
func ParseInstrument(r io.Reader) (InstrumentTerms, error) {
	var resp instrumentsResponse
	if err := decode(r, &resp, "instrument"); err != nil {
		return InstrumentTerms{}, err
	}
	inst := resp.InstrumentsVo.Instruments
	if notFound(resp.Message) || notFound(inst.Message) || (inst.AllotmentDate == "" && inst.RedemptionDate == "") {
		return InstrumentTerms{}, fmt.Errorf("%w: instrument terms", models.ErrNotFound)
	}
	issue, err := parsers.RequiredDate("allotmentDate", inst.AllotmentDate)
	if err != nil {
		return InstrumentTerms{}, err
	}
	maturity, err := parsers.RequiredDate("redemptionDate", inst.RedemptionDate)
	if err != nil {
		return InstrumentTerms{}, err
	}
	return InstrumentTerms{IssueDate: issue, MaturityDate: maturity, FaceValue: inst.FaceValue.Float64()}, nil
}

// ParseCouponDetail reads the coupondetail endpoint. Rows with an unreadable
// due date are dropped with a warning, the rest of the table is kept.
func ParseCouponDetail(r io.Reader, isin string) (models.CouponDetail, error) {
	var resp couponDetailResponse
	if err := decode(r, &resp, "coupon detail"); err != nil {
		return models.CouponDetail{}, err
	}
	if notFound(resp.Message) {
		return models.CouponDetail{}, fmt.Errorf("%w: coupon detail of %s", models.ErrNotFound, isin)
	}
	cd := resp.CoupensVo.CouponDetails
	rate, basis, err := parseCouponRate(cd.CouponRate, strings.TrimSpace(cd.CouponBasis))
	if err != nil {
		return models.CouponDetail{}, fmt.Errorf("couponRate of %s: %w", isin, err)
	}

	detail := models.CouponDetail{
		ISIN:          isin,
		CouponRate:    rate,
		FrequencyText: utils.CleanText(cd.InterestPaymentFrequency),
		CouponBasis:   basis,
	}
	for i, row := range resp.CoupensVo.CashFlowScheduleDetails.CashFlowSchedule {
		cf, err := parseCashFlowRow(row)
		if err != nil {
			logger.OrDefault(nil).Warn("Skipping cashflow row", "isin", isin, "row", i, "error", err)
			continue
		}
		detail.Cashflows = append(detail.Cashflows, cf)
	}
	return detail, nil
}

var (
	zeroCouponLabels     = []string{"ZERO", "DISCOUNT", "ZCB"}
	variableCouponLabels = []string{"FLOAT", "VARIABLE", "STEP", "LINKED", "MIBOR", "REPO", "BENCHMARK"}
)

// parseCouponRate reads a numeric rate, or maps a descriptive label: zero
// coupon and discount labels give rate 0, floating and step labels give rate
// 0 with the variable coupon basis.
func parseCouponRate(raw, basis string) (float64, string, error) {
	rate, err := parsers.ParseNumber(raw)
	if err == nil {
		return rate, basis, nil
	}
	label := strings.ToUpper(utils.CleanText(raw))
	for _, l := range zeroCouponLabels {
		if strings.Contains(label, l) {
			return 0, basis, nil
		}
	}
	for _, l := range variableCouponLabels {
		if strings.Contains(label, l) {
			return 0, models.VariableCouponBasis, nil
		}
	}
	return 0, basis, err
}

func parseCashFlowRow(row cashFlowRow) (models.CouponCashflow, error) {
	due, err := parsers.OptionalDate(row.DueDate)
	if err != nil {
		return models.CouponCashflow{}, fmt.Errorf("dueDate: %w", err)
	}
	payment, err := parsers.OptionalDate(row.PaymentDate)
	if err != nil {
		return models.CouponCashflow{}, fmt.Errorf("paymentDate: %w", err)
	}
	if due.IsZero() {
		due = payment
	}
	if due.IsZero() {
		return models.CouponCashflow{}, fmt.Errorf("%w: row has neither due nor payment date", parsers.ErrParsingFailed)
	}
	record, err := parsers.OptionalDate(row.RecordDate)
	if err != nil {
		return models.CouponCashflow{}, fmt.Errorf("recordDate: %w", err)
	}
	return models.CouponCashflow{
		RecordDate:  record,
		DueDate:     due,
		PaymentDate: payment,
		Amount:      utils.ToAmount(row.AmountPayable.Float64()),
		Event:       utils.CleanText(row.CashFlowsEvent),
	}, nil
}

// ParseRedemption reads the redemptions endpoint.
func ParseRedemption(r io.Reader, isin string) (models.RedemptionDisclosure, error) {
	var resp redemptionsResponse
	if err := decode(r, &resp, "redemptions"); err != nil {
		return models.RedemptionDisclosure{}, err
	}
	if notFound(resp.Message) || strings.TrimSpace(resp.RedemptionType) == "" {
		return models.RedemptionDisclosure{}, fmt.Errorf("%w: redemption disclosure of %s", models.ErrNotFound, isin)
	}
	out := models.RedemptionDisclosure{ISIN: isin, Type: strings.TrimSpace(resp.RedemptionType)}
	for _, entry := range resp.Redemption {
		date, err := parsers.OptionalDate(entry.PartialRedemptionDates)
		if err != nil {
			return models.RedemptionDisclosure{}, fmt.Errorf("partialRedemptionDates of %s: %w", isin, err)
		}
		out.Entries = append(out.Entries, models.RedemptionEntry{
			Date:             date,
			QuantityRedeemed: utils.ToAmount(entry.QuantityRedeemed.Float64()),
			ValueRedeemed:    utils.ToAmount(entry.ValueRedeemed.Float64()),
		})
	}
	return out, nil
}

// RedemptionEvents keeps the rows of a coupon table labelled as redemptions.
// The payment date is the due date of such events.
func RedemptionEvents(detail models.CouponDetail) []models.RedemptionRecord {
	var out []models.RedemptionRecord
	for _, c := range detail.Cashflows {
		if !c.IsRedemption() {
			continue
		}
		due := c.PaymentDate
		if due.IsZero() {
			due = c.DueDate
		}
		out = append(out, models.RedemptionRecord{
			DueDate:    due,
			RecordDate: c.RecordDate,
			Amount:     c.Amount,
			Kind:       models.RedemptionPartial,
		})
	}
	return out
}

// BuildInstrument combines the three depository views of an ISIN.
func BuildInstrument(securityID int64, symbol string, details ISINDetails, terms InstrumentTerms, coupon models.CouponDetail) models.Instrument {
	return models.Instrument{
		SecurityID:    securityID,
		ISIN:          details.ISIN,
		TradingSymbol: symbol,
		IssueDate:     terms.IssueDate,
		MaturityDate:  terms.MaturityDate,
		CouponRate:    coupon.CouponRate,
		FrequencyText: coupon.FrequencyText,
		CouponBasis:   coupon.CouponBasis,
		FaceValue:     utils.ToAmount(terms.FaceValue),
		IssuerName:    details.IssuerName,
		Sector:        details.Sector,
		Industry:      details.Industry,
	}
}

package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/strongo/decimal"
	"github.com/username/bondflow/src/logger"
	"github.com/username/bondflow/src/models"
	"github.com/username/bondflow/src/utils"
)

type CashflowReader interface {
	UpcomingCashflows(ctx context.Context, from, to time.Time) ([]models.UpcomingCashflow, error)
}

type CashflowHandler struct {
	store CashflowReader
	now   func() time.Time
}

func NewCashflowHandler(store CashflowReader) *CashflowHandler {
	return &CashflowHandler{store: store, now: time.Now}
}

type upcomingCashflowsResponse struct {
	Year            int                       `json:"year"`
	Month           int                       `json:"month"`
	InterestTotal   decimal.Decimal64p2       `json:"interest_total"`
	RedemptionTotal decimal.Decimal64p2       `json:"redemption_total"`
	Cashflows       []models.UpcomingCashflow `json:"cashflows"`
}

// HandleGetUpcomingCashflows lists every stored event due in the requested
// calendar month (current month by default).
func (h *CashflowHandler) HandleGetUpcomingCashflows(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	year, month := now.Year(), int(now.Month())

	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1900 || y > 2200 {
			utils.SendJSONError(w, "invalid year", http.StatusBadRequest)
			return
		}
		year = y
	}
	if v := r.URL.Query().Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			utils.SendJSONError(w, "invalid month, expected 1-12", http.StatusBadRequest)
			return
		}
		month = m
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	cashflows, err := h.store.UpcomingCashflows(r.Context(), from, to)
	if err != nil {
		logger.FromContext(r.Context()).Error("Error loading upcoming cashflows", "year", year, "month", month, "error", err)
		utils.SendJSONError(w, "failed to load cashflows", http.StatusInternalServerError)
		return
	}

	resp := upcomingCashflowsResponse{Year: year, Month: month, Cashflows: cashflows}
	if resp.Cashflows == nil {
		resp.Cashflows = []models.UpcomingCashflow{}
	}
	for _, c := range cashflows {
		if c.IsRedemption() {
			resp.RedemptionTotal += c.Amount
		} else {
			resp.InterestTotal += c.Amount
		}
	}
	writeJSONWithETag(w, r, resp)
}

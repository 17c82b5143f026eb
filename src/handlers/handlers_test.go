package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/strongo/decimal"
	"github.com/username/bondflow/src/models"
	"golang.org/x/time/rate"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

type fakeStore struct {
	cashflows  []models.UpcomingCashflow
	from, to   time.Time
	schedules  map[int64]models.Schedule
	yields     []models.YieldQuote
	yieldCalls int
	failYields bool
	pingErr    error
}

func (f *fakeStore) UpcomingCashflows(_ context.Context, from, to time.Time) ([]models.UpcomingCashflow, error) {
	f.from, f.to = from, to
	return f.cashflows, nil
}

func (f *fakeStore) GetSchedule(_ context.Context, id int64) (models.Schedule, error) {
	s, ok := f.schedules[id]
	if !ok {
		return s, fmt.Errorf("%w: security %d", models.ErrNotFound, id)
	}
	return s, nil
}

func (f *fakeStore) LatestYields(context.Context) ([]models.YieldQuote, error) {
	f.yieldCalls++
	if f.failYields {
		return nil, errors.New("disk I/O error")
	}
	return f.yields, nil
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func newTestRouter(store *fakeStore) (http.Handler, *YieldHandler) {
	cashflows := NewCashflowHandler(store)
	cashflows.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	yields := NewYieldHandler(store, time.Minute)
	return NewRouter(RouterDeps{
		Cashflows: cashflows,
		Schedules: NewScheduleHandler(store),
		Yields:    yields,
		Health:    store,
		Limiter:   rate.NewLimiter(rate.Inf, 1),
	}), yields
}

func face(v int64) decimal.Decimal64p2 { return decimal.NewDecimal64p2(v, 0) }

func sampleStore() *fakeStore {
	return &fakeStore{
		cashflows: []models.UpcomingCashflow{
			{CashflowEvent: models.CashflowEvent{SecurityID: 1, DueDate: day(2026, 3, 1), Kind: models.KindInterest, Amount: face(100)}, ISIN: "INE657N07431", TradingSymbol: "10EFL26"},
			{CashflowEvent: models.CashflowEvent{SecurityID: 1, DueDate: day(2026, 3, 1), Kind: models.KindRedemption, Amount: face(1000)}, ISIN: "INE657N07431", TradingSymbol: "10EFL26"},
		},
		schedules: map[int64]models.Schedule{
			1: {SecurityID: 1, ISIN: "INE657N07431", OriginalFaceValue: face(1000), Events: []models.CashflowEvent{
				{SecurityID: 1, DueDate: day(2026, 3, 1), Kind: models.KindInterest, Amount: face(100), OutstandingBefore: face(1000), OutstandingAfter: face(1000)},
				{SecurityID: 1, DueDate: day(2026, 3, 1), Kind: models.KindRedemption, Amount: face(1000), OutstandingBefore: face(1000)},
			}},
		},
		yields: []models.YieldQuote{{SecurityID: 1, TradingSymbol: "10EFL26", Price: 1000, YieldPercent: 10, Available: true}},
	}
}

func jsonOf(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func get(h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestUpcomingCashflows(t *testing.T) {
	is := is.New(t)
	store := sampleStore()
	h, _ := newTestRouter(store)

	rec := get(h, "/api/cashflows")
	is.Equal(rec.Code, http.StatusOK)
	is.Equal(store.from, day(2026, 3, 1)) // defaults to the current month
	is.Equal(store.to, day(2026, 4, 1))

	var body struct {
		Year            int             `json:"year"`
		Month           int             `json:"month"`
		InterestTotal   json.RawMessage `json:"interest_total"`
		RedemptionTotal json.RawMessage `json:"redemption_total"`
		Cashflows       []struct {
			TradingSymbol string `json:"trading_symbol"`
		} `json:"cashflows"`
	}
	is.NoErr(json.NewDecoder(rec.Body).Decode(&body))
	is.Equal(body.Year, 2026)
	is.Equal(body.Month, 3)
	is.Equal(len(body.Cashflows), 2)
	is.Equal(string(body.InterestTotal), jsonOf(t, face(100)))
	is.Equal(string(body.RedemptionTotal), jsonOf(t, face(1000)))
	is.Equal(body.Cashflows[0].TradingSymbol, "10EFL26")

	rec = get(h, "/api/cashflows?year=2027&month=12")
	is.Equal(rec.Code, http.StatusOK)
	is.Equal(store.from, day(2027, 12, 1))
	is.Equal(store.to, day(2028, 1, 1))
}

func TestUpcomingCashflowsBadQuery(t *testing.T) {
	h, _ := newTestRouter(sampleStore())
	for _, target := range []string{"/api/cashflows?month=13", "/api/cashflows?month=x", "/api/cashflows?year=20x6"} {
		t.Run(target, func(t *testing.T) {
			is := is.New(t)
			rec := get(h, target)
			is.Equal(rec.Code, http.StatusBadRequest)
		})
	}
}

func TestGetSchedule(t *testing.T) {
	is := is.New(t)
	h, _ := newTestRouter(sampleStore())

	rec := get(h, "/api/securities/1/schedule")
	is.Equal(rec.Code, http.StatusOK)
	var body struct {
		ISIN       string            `json:"isin"`
		Events     []json.RawMessage `json:"events"`
		Trajectory []struct {
			Before json.RawMessage `json:"before"`
			After  json.RawMessage `json:"after"`
		} `json:"face_value_trajectory"`
	}
	is.NoErr(json.NewDecoder(rec.Body).Decode(&body))
	is.Equal(body.ISIN, "INE657N07431")
	is.Equal(len(body.Events), 2)
	is.Equal(len(body.Trajectory), 1)
	is.Equal(string(body.Trajectory[0].Before), jsonOf(t, face(1000)))
	is.Equal(string(body.Trajectory[0].After), jsonOf(t, face(0)))

	etag := rec.Header().Get("ETag")
	is.True(etag != "")
	rec = get(h, "/api/securities/1/schedule", "If-None-Match", etag)
	is.Equal(rec.Code, http.StatusNotModified)

	is.Equal(get(h, "/api/securities/2/schedule").Code, http.StatusNotFound)
	is.Equal(get(h, "/api/securities/abc/schedule").Code, http.StatusBadRequest)
}

func TestLatestYieldsCached(t *testing.T) {
	is := is.New(t)
	store := sampleStore()
	h, yields := newTestRouter(store)

	rec := get(h, "/api/yields/latest")
	is.Equal(rec.Code, http.StatusOK)
	var body []struct {
		TradingSymbol string  `json:"trading_symbol"`
		YieldPercent  float64 `json:"yield_percent"`
	}
	is.NoErr(json.NewDecoder(rec.Body).Decode(&body))
	is.Equal(len(body), 1)
	is.Equal(body[0].TradingSymbol, "10EFL26")
	is.Equal(body[0].YieldPercent, 10.0)

	get(h, "/api/yields/latest")
	is.Equal(store.yieldCalls, 1)

	yields.Invalidate()
	get(h, "/api/yields/latest")
	is.Equal(store.yieldCalls, 2)
}

func TestLatestYieldsError(t *testing.T) {
	is := is.New(t)
	store := sampleStore()
	store.failYields = true
	h, _ := newTestRouter(store)

	rec := get(h, "/api/yields/latest")
	is.Equal(rec.Code, http.StatusInternalServerError)
	var body map[string]string
	is.NoErr(json.NewDecoder(rec.Body).Decode(&body))
	is.Equal(body["error"], "failed to load yields")
}

func TestHealthAndRoot(t *testing.T) {
	is := is.New(t)
	store := sampleStore()
	h, _ := newTestRouter(store)

	is.Equal(get(h, "/api/health").Code, http.StatusOK)
	is.Equal(get(h, "/").Code, http.StatusOK)
	is.Equal(get(h, "/nope").Code, http.StatusNotFound)

	store.pingErr = errors.New("database is closed")
	is.Equal(get(h, "/api/health").Code, http.StatusServiceUnavailable)
}

func TestMiddleware(t *testing.T) {
	is := is.New(t)
	limited := NewRouter(RouterDeps{
		Cashflows:      NewCashflowHandler(sampleStore()),
		Schedules:      NewScheduleHandler(sampleStore()),
		Yields:         NewYieldHandler(sampleStore(), time.Minute),
		Limiter:        rate.NewLimiter(rate.Every(time.Hour), 1),
		AllowedOrigins: []string{"http://localhost:3000"},
	})

	rec := get(limited, "/api/health", "Origin", "http://localhost:3000")
	is.Equal(rec.Code, http.StatusOK)
	is.Equal(rec.Header().Get("Access-Control-Allow-Origin"), "http://localhost:3000")
	is.True(rec.Header().Get("X-Request-ID") != "")

	rec = get(limited, "/api/health")
	is.Equal(rec.Code, http.StatusTooManyRequests)
}

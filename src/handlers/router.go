package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/username/bondflow/src/logger"
	"github.com/username/bondflow/src/utils"
	"golang.org/x/time/rate"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps are the handlers and checks mounted by NewRouter.
type RouterDeps struct {
	Cashflows      *CashflowHandler
	Schedules      *ScheduleHandler
	Yields         *YieldHandler
	Health         Pinger
	Limiter        *rate.Limiter
	AllowedOrigins []string
}

func NewRouter(deps RouterDeps) http.Handler {
	apiRouter := http.NewServeMux()
	apiRouter.HandleFunc("GET /api/cashflows", deps.Cashflows.HandleGetUpcomingCashflows)
	apiRouter.HandleFunc("GET /api/securities/{secID}/schedule", deps.Schedules.HandleGetSchedule)
	apiRouter.HandleFunc("GET /api/yields/latest", deps.Yields.HandleGetLatestYields)
	apiRouter.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if deps.Health != nil {
			if err := deps.Health.Ping(r.Context()); err != nil {
				logger.FromContext(r.Context()).Error("Health check failed", "error", err)
				status, code = "unavailable", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	})

	rootMux := http.NewServeMux()
	rootMux.Handle("/api/", apiRouter)
	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" || r.Method != http.MethodGet {
			logger.FromContext(r.Context()).Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		utils.SendJSON(w, map[string]string{"message": "bondflow API is running"})
	})

	limiter := deps.Limiter
	if limiter == nil {
		limiter = NewAPILimiter()
	}
	return RequestLogMiddleware(EnableCORS(deps.AllowedOrigins...)(RateLimitMiddleware(limiter)(rootMux)))
}

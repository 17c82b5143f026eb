package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/bondflow/src/logger"
	"github.com/username/bondflow/src/models"
	"github.com/username/bondflow/src/utils"
)

const latestYieldsKey = "latest_yields"

type YieldReader interface {
	LatestYields(ctx context.Context) ([]models.YieldQuote, error)
}

// YieldHandler serves the latest stored yields from a short-lived cache.
type YieldHandler struct {
	store YieldReader
	cache *cache.Cache
}

func NewYieldHandler(store YieldReader, ttl time.Duration) *YieldHandler {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &YieldHandler{store: store, cache: cache.New(ttl, 2*ttl)}
}

// Invalidate drops the cached answer; called after a yield batch stores new quotes.
func (h *YieldHandler) Invalidate() {
	h.cache.Delete(latestYieldsKey)
}

func (h *YieldHandler) HandleGetLatestYields(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	if cached, found := h.cache.Get(latestYieldsKey); found {
		log.Debug("Serving latest yields from cache")
		writeJSONWithETag(w, r, cached)
		return
	}

	quotes, err := h.store.LatestYields(r.Context())
	if err != nil {
		log.Error("Error loading latest yields", "error", err)
		utils.SendJSONError(w, "failed to load yields", http.StatusInternalServerError)
		return
	}
	if quotes == nil {
		quotes = []models.YieldQuote{}
	}
	h.cache.Set(latestYieldsKey, quotes, cache.DefaultExpiration)
	writeJSONWithETag(w, r, quotes)
}

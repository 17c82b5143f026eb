package services

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/username/bondflow/src/logger"
	"github.com/username/bondflow/src/models"
	"github.com/username/bondflow/src/parsers/kite"
)

const quoteExchange = "BSE"

// QuoteService reads best asks and the tradable instrument list from the broker API.
type QuoteService struct {
	baseURL        string
	instrumentsURL string
	batchSize      int
	client         *sourceClient
	now            func() time.Time
}

func NewQuoteService(baseURL, instrumentsURL, apiKey, accessToken string, batchSize int, opts ClientOptions) *QuoteService {
	if batchSize < 1 {
		batchSize = 200
	}
	return &QuoteService{
		baseURL:        strings.TrimRight(baseURL, "/"),
		instrumentsURL: instrumentsURL,
		batchSize:      batchSize,
		client: newSourceClient("kite", opts, map[string]string{
			"X-Kite-Version": "3",
			"Authorization":  fmt.Sprintf("token %s:%s", apiKey, accessToken),
		}),
		now: time.Now,
	}
}

// GetBestAsks returns the best ask per symbol. Symbols with no ask are absent
// from the result.
func (s *QuoteService) GetBestAsks(ctx context.Context, symbols []string) (map[string]models.Quote, error) {
	out := make(map[string]models.Quote, len(symbols))
	for start := 0; start < len(symbols); start += s.batchSize {
		end := start + s.batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[start:end]

		q := url.Values{}
		for _, sym := range batch {
			q.Add("i", kite.QuoteKey(quoteExchange, sym))
		}
		body, err := s.client.get(ctx, s.baseURL+"/quote?"+q.Encode())
		if err != nil {
			return out, fmt.Errorf("quotes for batch starting at %d: %w", start, err)
		}
		quotes, err := kite.ParseQuotes(bytes.NewReader(body), s.now())
		if err != nil {
			return out, fmt.Errorf("%w: %v", models.ErrExternalSource, err)
		}
		for _, quote := range quotes {
			out[quote.Symbol] = quote
		}
		logger.FromContext(ctx).Debug("Fetched quote batch", "requested", len(batch), "withAsk", len(quotes))
	}
	return out, nil
}

func (s *QuoteService) GetBestAsk(ctx context.Context, symbol string) (models.Quote, error) {
	quotes, err := s.GetBestAsks(ctx, []string{symbol})
	if err != nil {
		return models.Quote{}, err
	}
	q, ok := quotes[symbol]
	if !ok {
		return models.Quote{}, fmt.Errorf("%w: no ask for %s", models.ErrPriceUnavailable, symbol)
	}
	return q, nil
}

// ListInstruments downloads the instrument dump and keeps the exchange's listings.
func (s *QuoteService) ListInstruments(ctx context.Context) ([]models.ListedInstrument, error) {
	body, err := s.client.get(ctx, s.instrumentsURL)
	if err != nil {
		return nil, err
	}
	instruments, err := kite.ParseInstruments(bytes.NewReader(body), quoteExchange)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrExternalSource, err)
	}
	return instruments, nil
}

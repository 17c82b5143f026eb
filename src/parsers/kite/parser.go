package kite

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/username/bondflow/src/logger"
	"github.com/username/bondflow/src/models"
	"github.com/username/bondflow/src/parsers"
)

// --- Quote API Structures ---

type depthLevel struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
	Orders   int64   `json:"orders"`
}

type quoteEntry struct {
	InstrumentToken int64   `json:"instrument_token"`
	LastPrice       float64 `json:"last_price"`
	Depth           struct {
		Buy  []depthLevel `json:"buy"`
		Sell []depthLevel `json:"sell"`
	} `json:"depth"`
}

type quoteResponse struct {
	Status    string                `json:"status"`
	Message   string                `json:"message"`
	ErrorType string                `json:"error_type"`
	Data      map[string]quoteEntry `json:"data"`
}

// ErrAPI is returned when the broker answers with status "error".
var ErrAPI = errors.New("kite api error")

// ParseQuotes reads a quote response and returns the best ask per key
// ("BSE:SYMBOL"). Keys without a positive ask are left out.
func ParseQuotes(r io.Reader, at time.Time) (map[string]models.Quote, error) {
	var resp quoteResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: kite quote: %v", parsers.ErrParsingFailed, err)
	}
	if resp.Status != "" && resp.Status != "success" {
		return nil, fmt.Errorf("%w: %s: %s", ErrAPI, resp.ErrorType, resp.Message)
	}
	out := make(map[string]models.Quote, len(resp.Data))
	for key, q := range resp.Data {
		if len(q.Depth.Sell) == 0 || q.Depth.Sell[0].Price <= 0 {
			continue
		}
		best := q.Depth.Sell[0]
		out[key] = models.Quote{
			Symbol:    SymbolFromKey(key),
			Price:     best.Price,
			Quantity:  best.Quantity,
			Timestamp: at,
		}
	}
	return out, nil
}

// QuoteKey is the exchange-qualified instrument key used by the quote API.
func QuoteKey(exchange, symbol string) string {
	return strings.ToUpper(exchange) + ":" + symbol
}

func SymbolFromKey(key string) string {
	if i := strings.Index(key, ":"); i >= 0 {
		return key[i+1:]
	}
	return key
}

// --- Instruments Dump ---

var requiredColumns = []string{"instrument_token", "exchange_token", "tradingsymbol", "exchange"}

// ParseInstruments reads the instruments CSV dump and keeps the rows listed on
// exchange (case-insensitive). An empty exchange keeps every row.
func ParseInstruments(r io.Reader, exchange string) ([]models.ListedInstrument, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: kite instruments header: %v", parsers.ErrParsingFailed, err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := col[c]; !ok {
			return nil, fmt.Errorf("%w: kite instruments missing column %q", parsers.ErrParsingFailed, c)
		}
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []models.ListedInstrument
	line := 1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			logger.OrDefault(nil).Warn("Skipping malformed instruments row", "line", line, "error", err)
			continue
		}
		inst := models.ListedInstrument{
			InstrumentToken: field(rec, "instrument_token"),
			ExchangeToken:   field(rec, "exchange_token"),
			TradingSymbol:   field(rec, "tradingsymbol"),
			Name:            field(rec, "name"),
			Exchange:        field(rec, "exchange"),
			Segment:         field(rec, "segment"),
		}
		if exchange != "" && !strings.EqualFold(inst.Exchange, exchange) {
			continue
		}
		if inst.TradingSymbol == "" || inst.ExchangeToken == "" {
			continue
		}
		out = append(out, inst)
	}
	return out, nil
}

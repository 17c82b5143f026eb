package models

import "time"

// Quote is the best ask of one listed symbol.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Quantity  int64     `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

// YieldQuote is an XIRR computed from an observed ask and the projected cashflows.
type YieldQuote struct {
	SecurityID    int64     `json:"security_id"`
	TradingSymbol string    `json:"trading_symbol"`
	ISIN          string    `json:"isin,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Price         float64   `json:"price"`
	Quantity      int64     `json:"quantity"`
	YieldPercent  float64   `json:"yield_percent"`
	Available     bool      `json:"available"`
	Reason        string    `json:"reason,omitempty"`
}

// Persistable reports whether the quote carries a usable price and yield.
func (q YieldQuote) Persistable() bool {
	return q.Available && q.Price > 0 && q.YieldPercent > 0
}

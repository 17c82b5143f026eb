package database

import (
	"context"
	"fmt"
	"time"

	"github.com/username/bondflow/src/models"
)

// SaveYieldQuotes appends the persistable quotes and returns how many were written.
func (s *Store) SaveYieldQuotes(ctx context.Context, quotes []models.YieldQuote) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	written := 0
	for _, q := range quotes {
		if !q.Persistable() {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bond_yield_quotes (sec_id, trading_symbol, quoted_at, price, quantity, yield_percent)
			VALUES (?, ?, ?, ?, ?, ?)`,
			q.SecurityID, q.TradingSymbol, q.Timestamp.UTC().Format(timestampLayout), q.Price, q.Quantity, q.YieldPercent)
		if err != nil {
			return 0, fmt.Errorf("saving yield quote for %s: %w", q.TradingSymbol, err)
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}

// LatestYields returns the most recent stored quote of each security, highest yield first.
func (s *Store) LatestYields(ctx context.Context) ([]models.YieldQuote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.sec_id, q.trading_symbol, COALESCE(m.isin, ''), q.quoted_at, q.price,
		       COALESCE(q.quantity, 0), q.yield_percent
		FROM bond_yield_quotes q
		JOIN (SELECT sec_id, MAX(quoted_at) AS quoted_at FROM bond_yield_quotes GROUP BY sec_id) latest
		  ON latest.sec_id = q.sec_id AND latest.quoted_at = q.quoted_at
		LEFT JOIN bond_metadata m ON m.sec_id = q.sec_id
		GROUP BY q.sec_id
		ORDER BY q.yield_percent DESC, q.sec_id`)
	if err != nil {
		return nil, fmt.Errorf("loading latest yields: %w", err)
	}
	defer rows.Close()

	var out []models.YieldQuote
	for rows.Next() {
		var q models.YieldQuote
		var ts string
		if err := rows.Scan(&q.SecurityID, &q.TradingSymbol, &q.ISIN, &ts, &q.Price, &q.Quantity, &q.YieldPercent); err != nil {
			return nil, fmt.Errorf("scanning yield quote: %w", err)
		}
		q.Timestamp, _ = time.Parse(timestampLayout, ts)
		q.Available = true
		out = append(out, q)
	}
	return out, rows.Err()
}

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/strongo/decimal"
	"github.com/username/bondflow/src/models"
)

// SaveSchedule replaces the stored events of one security in a single transaction.
func (s *Store) SaveSchedule(ctx context.Context, schedule models.Schedule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bond_cashflows WHERE sec_id = ?`, schedule.SecurityID); err != nil {
		return fmt.Errorf("clearing schedule of security %d: %w", schedule.SecurityID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bond_cashflows (sec_id, seq, record_date, due_date, event_type, redemption_kind,
			amount, coupon, frequency, face_value, face_value_after, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing cashflow insert: %w", err)
	}
	defer stmt.Close()

	generated := schedule.GeneratedAt.UTC().Format(timestampLayout)
	for i, e := range schedule.Events {
		_, err := stmt.ExecContext(ctx, schedule.SecurityID, i, formatStoredDate(e.RecordDate),
			formatStoredDate(e.DueDate), string(e.Kind), string(e.RedemptionKind), int64(e.Amount),
			e.CouponRate, e.Frequency, int64(e.OutstandingBefore), int64(e.OutstandingAfter), generated)
		if err != nil {
			return fmt.Errorf("inserting cashflow %d of security %d: %w", i, schedule.SecurityID, err)
		}
	}
	return tx.Commit()
}

const cashflowColumns = `c.sec_id, c.record_date, c.due_date, c.event_type, COALESCE(c.redemption_kind, ''),
	c.amount, COALESCE(c.coupon, 0), COALESCE(c.frequency, 0), COALESCE(c.face_value, 0),
	COALESCE(c.face_value_after, 0)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCashflow(row rowScanner, extra ...any) (models.CashflowEvent, error) {
	var e models.CashflowEvent
	var record, due, kind, redemptionKind string
	var amount, before, after int64
	dest := append([]any{&e.SecurityID, &record, &due, &kind, &redemptionKind, &amount,
		&e.CouponRate, &e.Frequency, &before, &after}, extra...)
	if err := row.Scan(dest...); err != nil {
		return e, err
	}
	var err error
	if e.RecordDate, err = parseStoredDate(record); err != nil {
		return e, err
	}
	if e.DueDate, err = parseStoredDate(due); err != nil {
		return e, err
	}
	e.Kind = models.CashflowKind(kind)
	e.RedemptionKind = models.RedemptionKind(redemptionKind)
	e.Amount = decimal.Decimal64p2(amount)
	e.OutstandingBefore = decimal.Decimal64p2(before)
	e.OutstandingAfter = decimal.Decimal64p2(after)
	return e, nil
}

// GetSchedule loads the stored schedule of one security in stored order.
func (s *Store) GetSchedule(ctx context.Context, securityID int64) (models.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cashflowColumns+`, COALESCE(c.generated_at, ''), COALESCE(m.isin, '')
		FROM bond_cashflows c
		LEFT JOIN bond_metadata m ON m.sec_id = c.sec_id
		WHERE c.sec_id = ?
		ORDER BY c.due_date, c.seq`, securityID)
	if err != nil {
		return models.Schedule{}, fmt.Errorf("loading schedule of security %d: %w", securityID, err)
	}
	defer rows.Close()

	schedule := models.Schedule{SecurityID: securityID}
	for rows.Next() {
		var generated, isin string
		e, err := scanCashflow(rows, &generated, &isin)
		if err != nil {
			return models.Schedule{}, fmt.Errorf("scanning cashflow of security %d: %w", securityID, err)
		}
		schedule.ISIN = isin
		if t, err := time.Parse(timestampLayout, generated); err == nil {
			schedule.GeneratedAt = t
		}
		schedule.Events = append(schedule.Events, e)
	}
	if err := rows.Err(); err != nil {
		return models.Schedule{}, err
	}
	if len(schedule.Events) == 0 {
		return models.Schedule{}, fmt.Errorf("%w: no schedule for security %d", models.ErrNotFound, securityID)
	}
	schedule.OriginalFaceValue = schedule.Events[0].OutstandingBefore
	return schedule, nil
}

// FutureCashflows returns the events of a security whose record date is after cutoff.
func (s *Store) FutureCashflows(ctx context.Context, securityID int64, cutoff time.Time) ([]models.CashflowEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cashflowColumns+`
		FROM bond_cashflows c
		WHERE c.sec_id = ? AND c.record_date > ?
		ORDER BY c.due_date, c.seq`, securityID, formatStoredDate(cutoff))
	if err != nil {
		return nil, fmt.Errorf("loading future cashflows of security %d: %w", securityID, err)
	}
	defer rows.Close()

	var out []models.CashflowEvent
	for rows.Next() {
		e, err := scanCashflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpcomingCashflows lists every event due in [from, to) with its listing details.
func (s *Store) UpcomingCashflows(ctx context.Context, from, to time.Time) ([]models.UpcomingCashflow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cashflowColumns+`, COALESCE(m.isin, ''), COALESCE(i.trading_symbol, ''), COALESCE(m.issuer_name, '')
		FROM bond_cashflows c
		LEFT JOIN bond_metadata m ON m.sec_id = c.sec_id
		LEFT JOIN security_ids i ON i.sec_id = c.sec_id
		WHERE c.due_date >= ? AND c.due_date < ?
		ORDER BY c.due_date, c.sec_id, c.seq`, formatStoredDate(from), formatStoredDate(to))
	if err != nil {
		return nil, fmt.Errorf("loading upcoming cashflows: %w", err)
	}
	defer rows.Close()

	var out []models.UpcomingCashflow
	for rows.Next() {
		var u models.UpcomingCashflow
		e, err := scanCashflow(rows, &u.ISIN, &u.TradingSymbol, &u.IssuerName)
		if err != nil {
			return nil, err
		}
		u.CashflowEvent = e
		out = append(out, u)
	}
	return out, rows.Err()
}

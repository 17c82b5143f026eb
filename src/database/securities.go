package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/strongo/decimal"
	"github.com/username/bondflow/src/models"
)

// GetInstrument loads the metadata of one security.
func (s *Store) GetInstrument(ctx context.Context, securityID int64) (models.Instrument, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT m.sec_id, m.isin, COALESCE(i.trading_symbol, ''), COALESCE(m.issue_date, ''),
		       COALESCE(m.maturity_date, ''), COALESCE(m.coupon_rate, 0), COALESCE(m.frequency_text, ''),
		       COALESCE(m.coupon_basis, ''), COALESCE(m.face_value, 0), COALESCE(m.issuer_name, ''),
		       COALESCE(m.sector, ''), COALESCE(m.industry, '')
		FROM bond_metadata m
		LEFT JOIN security_ids i ON i.sec_id = m.sec_id
		WHERE m.sec_id = ?`, securityID)

	var inst models.Instrument
	var issue, maturity string
	var face int64
	err := row.Scan(&inst.SecurityID, &inst.ISIN, &inst.TradingSymbol, &issue, &maturity,
		&inst.CouponRate, &inst.FrequencyText, &inst.CouponBasis, &face, &inst.IssuerName,
		&inst.Sector, &inst.Industry)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Instrument{}, fmt.Errorf("%w: security %d has no metadata", models.ErrNotFound, securityID)
	}
	if err != nil {
		return models.Instrument{}, fmt.Errorf("loading metadata for security %d: %w", securityID, err)
	}
	inst.FaceValue = decimal.Decimal64p2(face)
	if inst.IssueDate, err = parseStoredDate(issue); err != nil {
		return models.Instrument{}, fmt.Errorf("%w: security %d issue date: %v", models.ErrDataInconsistency, securityID, err)
	}
	if inst.MaturityDate, err = parseStoredDate(maturity); err != nil {
		return models.Instrument{}, fmt.Errorf("%w: security %d maturity date: %v", models.ErrDataInconsistency, securityID, err)
	}
	return inst, nil
}

// ListSecurities returns every known listing ordered by security id.
func (s *Store) ListSecurities(ctx context.Context) ([]models.Security, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sec_id, trading_symbol, COALESCE(scrip_code, ''), isin, captured_at
		FROM security_ids ORDER BY sec_id`)
	if err != nil {
		return nil, fmt.Errorf("listing securities: %w", err)
	}
	defer rows.Close()

	var out []models.Security
	for rows.Next() {
		var sec models.Security
		var captured string
		if err := rows.Scan(&sec.SecurityID, &sec.TradingSymbol, &sec.ScripCode, &sec.ISIN, &captured); err != nil {
			return nil, fmt.Errorf("scanning security: %w", err)
		}
		sec.CapturedAt, _ = time.Parse(timestampLayout, captured)
		out = append(out, sec)
	}
	return out, rows.Err()
}

// SecurityIDsWithMetadata lists the securities a schedule can be built for.
func (s *Store) SecurityIDsWithMetadata(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT sec_id FROM bond_metadata ORDER BY sec_id`)
	if err != nil {
		return nil, fmt.Errorf("listing metadata ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// NextSecurityID returns one past the highest id in use, starting at 1.
func (s *Store) NextSecurityID(ctx context.Context) (int64, error) {
	var maxID sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(sec_id) FROM security_ids`).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("reading max security id: %w", err)
	}
	return maxID.Int64 + 1, nil
}

// SaveInstrument stores a listing and its metadata together.
func (s *Store) SaveInstrument(ctx context.Context, sec models.Security, inst models.Instrument) error {
	if sec.SecurityID == 0 || sec.SecurityID != inst.SecurityID {
		return fmt.Errorf("%w: security id mismatch (%d vs %d)", models.ErrDataInconsistency, sec.SecurityID, inst.SecurityID)
	}
	captured := sec.CapturedAt
	if captured.IsZero() {
		captured = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO security_ids (sec_id, trading_symbol, scrip_code, isin, captured_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(sec_id) DO UPDATE SET trading_symbol = excluded.trading_symbol,
			scrip_code = excluded.scrip_code, isin = excluded.isin`,
		sec.SecurityID, sec.TradingSymbol, sec.ScripCode, sec.ISIN, captured.UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("saving security %d: %w", sec.SecurityID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bond_metadata (sec_id, isin, issue_date, maturity_date, coupon_rate, frequency_text,
			coupon_basis, face_value, issuer_name, sector, industry)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sec_id) DO UPDATE SET isin = excluded.isin, issue_date = excluded.issue_date,
			maturity_date = excluded.maturity_date, coupon_rate = excluded.coupon_rate,
			frequency_text = excluded.frequency_text, coupon_basis = excluded.coupon_basis,
			face_value = excluded.face_value, issuer_name = excluded.issuer_name,
			sector = excluded.sector, industry = excluded.industry`,
		inst.SecurityID, inst.ISIN, formatStoredDate(inst.IssueDate), formatStoredDate(inst.MaturityDate),
		inst.CouponRate, inst.FrequencyText, inst.CouponBasis, int64(inst.FaceValue), inst.IssuerName,
		inst.Sector, inst.Industry)
	if err != nil {
		return fmt.Errorf("saving metadata for security %d: %w", sec.SecurityID, err)
	}
	return tx.Commit()
}

// MarkBadSymbol records a symbol that could not be resolved so discovery skips it.
func (s *Store) MarkBadSymbol(ctx context.Context, symbol, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bad_symbols (trading_symbol, reason, captured_at) VALUES (?, ?, ?)
		ON CONFLICT(trading_symbol) DO UPDATE SET reason = excluded.reason, captured_at = excluded.captured_at`,
		strings.ToUpper(symbol), reason, time.Now().UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("marking bad symbol %s: %w", symbol, err)
	}
	return nil
}

// KnownSymbols returns the upper-cased symbols already stored or marked bad.
func (s *Store) KnownSymbols(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trading_symbol FROM security_ids
		UNION
		SELECT trading_symbol FROM bad_symbols`)
	if err != nil {
		return nil, fmt.Errorf("listing known symbols: %w", err)
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		known[strings.ToUpper(sym)] = true
	}
	return known, rows.Err()
}

func formatStoredDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func parseStoredDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

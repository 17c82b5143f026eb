package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/username/bondflow/src/logger"
	_ "modernc.org/sqlite"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05Z07:00"
)

// Store persists securities, instrument metadata, cashflow schedules and yield
// quotes in a single sqlite file.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and brings the schema up to date.
func Open(databasePath string) (*Store, error) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", databasePath, err)
	}
	// sqlite serialises writers; one connection avoids SQLITE_BUSY between workers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	logger.OrDefault(nil).Info("Checking database migrations", "databasePath", databasePath)
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrateCashflowTable(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrateMetadataTable(); err != nil {
		db.Close()
		return nil, err
	}
	logger.OrDefault(nil).Info("Database tables ensured/created.")
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping checks the connection; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) createTables() error {
	createTableStatement := `
	CREATE TABLE IF NOT EXISTS security_ids (
		sec_id INTEGER PRIMARY KEY,
		trading_symbol TEXT NOT NULL UNIQUE,
		scrip_code TEXT,
		isin TEXT NOT NULL,
		captured_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bond_metadata (
		sec_id INTEGER PRIMARY KEY,
		isin TEXT NOT NULL,
		issue_date TEXT,
		maturity_date TEXT,
		coupon_rate REAL,
		frequency_text TEXT,
		coupon_basis TEXT,
		face_value INTEGER,
		issuer_name TEXT,
		FOREIGN KEY(sec_id) REFERENCES security_ids(sec_id)
	);

	CREATE TABLE IF NOT EXISTS bad_symbols (
		trading_symbol TEXT PRIMARY KEY,
		reason TEXT,
		captured_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bond_cashflows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sec_id INTEGER NOT NULL,
		record_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		event_type TEXT NOT NULL,
		amount INTEGER NOT NULL,
		coupon REAL,
		frequency INTEGER,
		face_value INTEGER,
		FOREIGN KEY(sec_id) REFERENCES security_ids(sec_id)
	);

	CREATE INDEX IF NOT EXISTS idx_bond_cashflows_sec_id ON bond_cashflows(sec_id);
	CREATE INDEX IF NOT EXISTS idx_bond_cashflows_due_date ON bond_cashflows(due_date);

	CREATE TABLE IF NOT EXISTS bond_yield_quotes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sec_id INTEGER NOT NULL,
		trading_symbol TEXT NOT NULL,
		quoted_at TEXT NOT NULL,
		price REAL NOT NULL,
		quantity INTEGER,
		yield_percent REAL NOT NULL,
		FOREIGN KEY(sec_id) REFERENCES security_ids(sec_id)
	);

	CREATE INDEX IF NOT EXISTS idx_bond_yield_quotes_sec_ts ON bond_yield_quotes(sec_id, quoted_at);
	`
	if _, err := s.db.Exec(createTableStatement); err != nil {
		logger.OrDefault(nil).Error("failed to create tables", "error", err)
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// migrateCashflowTable adds the columns introduced after the first schema.
func (s *Store) migrateCashflowTable() error {
	return s.addMissingColumns("bond_cashflows", []columnMigration{
		{name: "seq", ddl: "ALTER TABLE bond_cashflows ADD COLUMN seq INTEGER NOT NULL DEFAULT 0"},
		{name: "redemption_kind", ddl: "ALTER TABLE bond_cashflows ADD COLUMN redemption_kind TEXT"},
		{
			name: "face_value_after",
			ddl:  "ALTER TABLE bond_cashflows ADD COLUMN face_value_after INTEGER",
			backfill: `UPDATE bond_cashflows SET face_value_after =
				CASE WHEN event_type = 'redemption' THEN face_value - amount ELSE face_value END
				WHERE face_value_after IS NULL`,
		},
		{name: "generated_at", ddl: "ALTER TABLE bond_cashflows ADD COLUMN generated_at TEXT"},
	})
}

func (s *Store) migrateMetadataTable() error {
	return s.addMissingColumns("bond_metadata", []columnMigration{
		{name: "sector", ddl: "ALTER TABLE bond_metadata ADD COLUMN sector TEXT"},
		{name: "industry", ddl: "ALTER TABLE bond_metadata ADD COLUMN industry TEXT"},
	})
}

type columnMigration struct {
	name     string
	ddl      string
	backfill string
}

func (s *Store) addMissingColumns(table string, migrations []columnMigration) error {
	columnExists, err := s.tableColumns(table)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if columnExists[m.name] {
			continue
		}
		if _, err := s.db.Exec(m.ddl); err != nil {
			logger.OrDefault(nil).Error("Error adding column", "table", table, "column", m.name, "error", err)
			return fmt.Errorf("adding column %s.%s: %w", table, m.name, err)
		}
		logger.OrDefault(nil).Info("Added column", "table", table, "column", m.name)
		if m.backfill != "" {
			if _, err := s.db.Exec(m.backfill); err != nil {
				logger.OrDefault(nil).Error("Error backfilling column", "table", table, "column", m.name, "error", err)
			}
		}
	}
	return nil
}

func (s *Store) tableColumns(table string) (map[string]bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("querying table schema for %s: %w", table, err)
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scanning column info for %s: %w", table, err)
		}
		columnExists[name] = true
	}
	return columnExists, rows.Err()
}

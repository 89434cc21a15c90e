// Package sqlsettings stores settings in a SQL table, on SQLite or
// PostgreSQL. The schema is managed with embedded goose migrations.
package sqlsettings

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/sellcomet/eddlicense/internal/cmn/logger"
	"github.com/sellcomet/eddlicense/internal/cmn/logger/tag"
	"github.com/sellcomet/eddlicense/internal/license"
)

//go:embed migrations
var embeddedMigrations embed.FS

// Dialect selects the database flavour.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Dialect) gooseDialect() goose.Dialect {
	if d == DialectPostgres {
		return goose.DialectPostgres
	}
	return goose.DialectSQLite3
}

// Store implements license.SettingsStore on database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect

	getQuery    string
	setQuery    string
	deleteQuery string
}

var _ license.SettingsStore = (*Store)(nil)

// Open connects to dsn, applies pending migrations and returns the store.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	if dialect != DialectSQLite && dialect != DialectPostgres {
		return nil, fmt.Errorf("sqlsettings: unsupported dialect %q", dialect)
	}
	if dsn == "" {
		return nil, errors.New("sqlsettings: dsn cannot be empty")
	}

	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlsettings: failed to open database: %w", err)
	}
	if dialect == DialectSQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlsettings: failed to connect: %w", err)
	}

	s, err := New(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and migrates it.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	s.buildQueries()
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) buildQueries() {
	if s.dialect == DialectPostgres {
		s.getQuery = "SELECT value FROM settings WHERE namespace = $1 AND field = $2"
		s.setQuery = `INSERT INTO settings (namespace, field, value, updated_at) VALUES ($1, $2, $3, now())
ON CONFLICT (namespace, field) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
		s.deleteQuery = "DELETE FROM settings WHERE namespace = $1 AND field = $2"
		return
	}
	s.getQuery = "SELECT value FROM settings WHERE namespace = ? AND field = ?"
	s.setQuery = `INSERT INTO settings (namespace, field, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (namespace, field) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	s.deleteQuery = "DELETE FROM settings WHERE namespace = ? AND field = ?"
}

func (s *Store) migrate(ctx context.Context) error {
	migrations, err := fs.Sub(embeddedMigrations, "migrations/"+string(s.dialect))
	if err != nil {
		return fmt.Errorf("sqlsettings: failed to read migrations: %w", err)
	}
	provider, err := goose.NewProvider(s.dialect.gooseDialect(), s.db, migrations)
	if err != nil {
		return fmt.Errorf("sqlsettings: failed to create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("sqlsettings: failed to run migrations: %w", err)
	}
	for _, r := range results {
		logger.Debug(ctx, "Applied settings migration",
			tag.File(r.Source.Path),
			tag.Duration(r.Duration),
		)
	}
	return nil
}

// Get implements license.SettingsStore.
func (s *Store) Get(ctx context.Context, namespace, field string) (json.RawMessage, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.getQuery, namespace, field).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlsettings: failed to read %s.%s: %w", namespace, field, err)
	}
	return json.RawMessage(value), true, nil
}

// Set implements license.SettingsStore.
func (s *Store) Set(ctx context.Context, namespace, field string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("sqlsettings: value of %s.%s is not valid JSON", namespace, field)
	}
	if _, err := s.db.ExecContext(ctx, s.setQuery, namespace, field, string(value)); err != nil {
		return fmt.Errorf("sqlsettings: failed to write %s.%s: %w", namespace, field, err)
	}
	return nil
}

// Delete implements license.SettingsStore.
func (s *Store) Delete(ctx context.Context, namespace, field string) error {
	if _, err := s.db.ExecContext(ctx, s.deleteQuery, namespace, field); err != nil {
		return fmt.Errorf("sqlsettings: failed to delete %s.%s: %w", namespace, field, err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

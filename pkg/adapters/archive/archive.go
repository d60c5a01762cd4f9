// Package archive stores the summaries of ended calls in SQL databases.
//
// SQLite (mattn/go-sqlite3) suits a single simulator process; PostgreSQL
// (lib/pq) lets several replicas share one history.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "embed"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/praveen131106/ivr-modern/internal/logging"
	"github.com/praveen131106/ivr-modern/pkg/domain"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// DefaultDirPermissions is used for the SQLite database directory.
const DefaultDirPermissions = 0o755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

//go:embed migrations_postgres.sql
var postgresMigrations string

// SQLArchive implements ports.SummaryArchive on database/sql.
type SQLArchive struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// Option configures the archive.
type Option func(*SQLArchive)

// WithLogger configures a logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *SQLArchive) { a.logger = l }
}

// Open connects to the database and applies the migrations.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLArchive, error) {
	a := &SQLArchive{driver: driver, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	if dsn == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	var migrations string
	switch driver {
	case DriverSQLite:
		migrations = sqliteMigrations
		if dir := filepath.Dir(dsn); !strings.HasPrefix(dsn, "file:") && dir != "." {
			if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	case DriverPostgres:
		migrations = postgresMigrations
	default:
		return nil, fmt.Errorf("unsupported archive driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s archive: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach %s archive: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	a.db = db
	a.logger.Debug("Archive opened", "driver", driver)
	return a, nil
}

// rebind rewrites ? placeholders for PostgreSQL.
func (a *SQLArchive) rebind(query string) string {
	if a.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Save inserts or replaces a summary.
func (a *SQLArchive) Save(ctx context.Context, s *domain.Summary) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	_, err = a.db.ExecContext(ctx, a.rebind(`
		INSERT INTO call_summaries
			(session_id, started_at, ended_at, total_exchanges, final_flow, final_state, terminated, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			total_exchanges = excluded.total_exchanges,
			final_flow = excluded.final_flow,
			final_state = excluded.final_state,
			terminated = excluded.terminated,
			payload = excluded.payload`),
		s.SessionID, s.StartedAt.UnixNano(), s.EndedAt.UnixNano(), s.TotalExchanges,
		s.FinalFlow, s.FinalState, s.Terminated, string(payload),
	)
	if err != nil {
		a.logger.Error("Archive save failed", "session_id", s.SessionID, "err", err)
		return fmt.Errorf("failed to archive session %s: %w", s.SessionID, err)
	}
	return nil
}

// Get returns the summary of one call.
func (a *SQLArchive) Get(ctx context.Context, sessionID string) (*domain.Summary, error) {
	var payload string
	err := a.db.QueryRowContext(ctx, a.rebind(`SELECT payload FROM call_summaries WHERE session_id = ?`), sessionID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session %s: %w", sessionID, err)
	}
	return decode(payload)
}

// List returns the most recently ended calls first.
func (a *SQLArchive) List(ctx context.Context, limit int) ([]*domain.Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx, a.rebind(`SELECT payload FROM call_summaries ORDER BY ended_at DESC, session_id LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var out []*domain.Summary
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		s, err := decode(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate summary rows: %w", err)
	}
	return out, nil
}

// Close releases the database handle.
func (a *SQLArchive) Close() error {
	return a.db.Close()
}

func decode(payload string) (*domain.Summary, error) {
	var s domain.Summary
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}
	return &s, nil
}

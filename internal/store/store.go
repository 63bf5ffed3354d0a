// Package store persists tasks in a SQL database. SQLite is the default
// backend; PostgreSQL is reached through pgx's database/sql driver.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"solstice/internal/backoff"
	"solstice/internal/observability/jsonlog"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Options struct {
	Driver string
	DSN    string

	// MaxOpenConns applies to PostgreSQL only; SQLite always uses one connection.
	MaxOpenConns int

	// ConnectAttempts bounds how many pings Open makes before giving up.
	ConnectAttempts int
	Backoff         backoff.Config

	Now    func() time.Time
	Logger *jsonlog.Logger
}

type TaskStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// Open connects to the database described by opts and waits for it to answer a ping.
// It does not create the schema; call Migrate for that.
func Open(ctx context.Context, opts Options) (*TaskStore, error) {
	if opts.Logger == nil {
		opts.Logger = jsonlog.Discard()
	}
	if opts.ConnectAttempts <= 0 {
		opts.ConnectAttempts = 1
	}

	var (
		db  *sql.DB
		err error
	)
	switch opts.Driver {
	case DriverSQLite, "":
		db, err = openSQLite(opts.DSN)
		opts.Driver = DriverSQLite
	case DriverPostgres:
		db, err = sql.Open("pgx", opts.DSN)
		if err == nil && opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
			db.SetMaxIdleConns(opts.MaxOpenConns)
		}
	default:
		return nil, fmt.Errorf("unsupported driver %q", opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}

	if err := waitForDB(ctx, db, opts); err != nil {
		_ = db.Close()
		return nil, err
	}

	s, err := New(db, opts.Driver, opts.Now)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if s.dialect == sqliteDialect {
		if err := s.configurePragmas(ctx, opts.DSN); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// New wraps an already opened pool. driver selects the SQL dialect.
func New(db *sql.DB, driver string, now func() time.Time) (*TaskStore, error) {
	var d dialect
	switch driver {
	case DriverSQLite:
		d = sqliteDialect
	case DriverPostgres:
		d = postgresDialect
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &TaskStore{db: db, dialect: d, now: now}, nil
}

func (s *TaskStore) DB() *sql.DB {
	return s.db
}

func (s *TaskStore) Close() error {
	return s.db.Close()
}

func (s *TaskStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the tasks table if it does not exist yet.
func (s *TaskStore) Migrate(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	completed  INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func openSQLite(dsn string) (*sql.DB, error) {
	dsn = sqliteDSN(dsn)
	if path := sqlitePath(dsn); path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// One writer at a time; the busy timeout covers readers from other processes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// sqliteDSN accepts the sqlite:// URL form as well as a plain path.
func sqliteDSN(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "sqlite://")
	if dsn == "" {
		dsn = "data.db"
	}
	if !strings.Contains(dsn, "_busy_timeout") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_busy_timeout=5000"
	}
	return dsn
}

// sqlitePath returns the file behind dsn, or "" for in-memory databases.
func sqlitePath(dsn string) string {
	path, _, _ := strings.Cut(dsn, "?")
	path = strings.TrimPrefix(path, "file:")
	if path == "" || path == ":memory:" || strings.Contains(dsn, "mode=memory") {
		return ""
	}
	return path
}

func (s *TaskStore) configurePragmas(ctx context.Context, dsn string) error {
	if sqlitePath(sqliteDSN(dsn)) == "" {
		return nil
	}
	const q = "PRAGMA journal_mode=WAL;"
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("set pragma %q: %w", q, err)
	}
	return nil
}

func waitForDB(ctx context.Context, db *sql.DB, opts Options) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var err error
	for attempt := 1; attempt <= opts.ConnectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt == opts.ConnectAttempts {
			break
		}
		delay := backoff.Delay(attempt, opts.Backoff, rng)
		opts.Logger.Warn("database not ready", map[string]any{
			"driver":  opts.Driver,
			"attempt": attempt,
			"retry":   delay.String(),
			"error":   err,
		})
		if serr := backoff.Sleep(ctx, delay); serr != nil {
			return fmt.Errorf("db ping: %w", serr)
		}
	}
	return fmt.Errorf("db ping after %d attempts: %w", opts.ConnectAttempts, err)
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"     // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver for local runs and tests
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute

	readyTimeout  = 30 * time.Second
	readyInterval = time.Second
)

// DB is a connection pool together with the SQL dialect it speaks.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open creates a connection pool for driver ("postgres" or "sqlite") and waits until the
// database answers, giving up after readyTimeout or when ctx is done.
func Open(ctx context.Context, driver, dataSourceName string) (*DB, error) {
	var (
		dialect Dialect
		dsn     = dataSourceName
	)
	switch driver {
	case "postgres":
		dialect = Postgres
	case "sqlite":
		dialect = SQLite
		dsn = sqliteDSN(dataSourceName)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if dialect == SQLite {
		// SQLite serialises writers; one connection avoids SQLITE_BUSY under the dispatch worker pool.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(defaultMaxOpenConns)
		conn.SetMaxIdleConns(defaultMaxIdleConns)
		conn.SetConnMaxLifetime(defaultConnMaxLifetime)
		conn.SetConnMaxIdleTime(defaultConnMaxIdleTime)
	}

	db := &DB{DB: conn, Dialect: dialect}
	if err = WaitReady(ctx, db, readyTimeout, readyInterval); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// WaitReady pings db until it answers or timeout elapses.
func WaitReady(ctx context.Context, db *DB, timeout, interval time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		if lastErr = db.PingContext(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("database not ready after %s: %w", timeout, lastErr)
		case <-ticker.C:
		}
	}
}

// HealthCheck is a short readiness probe used by the API health endpoint.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (db *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.ExecContext(ctx, db.Dialect.Rebind(query), args...)
}

func (db *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.QueryContext(ctx, db.Dialect.Rebind(query), args...)
}

func (db *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.QueryRowContext(ctx, db.Dialect.Rebind(query), args...)
}

// utc normalises timestamps before they reach the store; sqlite compares them as text.
func utc(t time.Time) time.Time {
	return t.UTC()
}

func nullUTC(t sql.NullTime) sql.NullTime {
	if t.Valid {
		t.Time = t.Time.UTC()
	}
	return t
}

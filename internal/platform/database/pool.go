package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Config holds database connection configuration.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns an embedded SQLite database in the working directory.
func DefaultConfig() Config {
	return Config{
		Driver:          DriverSQLite,
		DSN:             "greenctf.db",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// Pool wraps a *sqlx.DB with health checking capabilities.
type Pool struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the configured database and verifies reachability.
func Open(ctx context.Context, cfg Config) (*Pool, error) {
	var (
		driverName string
		dsn        = cfg.DSN
	)
	switch cfg.Driver {
	case DriverPostgres:
		driverName = "pgx"
	case DriverSQLite, "":
		driverName = "sqlite"
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q; supported: postgres, sqlite", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driverName == "sqlite" {
		// SQLite serializes writers; a single connection avoids SQLITE_BUSY
		// and keeps :memory: databases on one handle.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{db: db, driver: driverOf(driverName)}, nil
}

// NewFromDB wraps an existing handle. Used by tests and tooling.
func NewFromDB(db *sqlx.DB) *Pool {
	return &Pool{db: db, driver: driverOf(db.DriverName())}
}

func driverOf(driverName string) string {
	if driverName == "sqlite" {
		return DriverSQLite
	}
	return DriverPostgres
}

// sqliteDSN enables foreign keys, WAL and a busy timeout unless the caller
// already passed pragmas.
func sqliteDSN(dsn string) string {
	if dsn == "" || strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// DB returns the underlying handle for query operations.
func (p *Pool) DB() *sqlx.DB {
	return p.db
}

// Driver reports DriverPostgres or DriverSQLite.
func (p *Pool) Driver() string {
	return p.driver
}

// Health checks if the database is reachable.
func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("database not configured")
	}
	return p.db.PingContext(ctx)
}

// Close closes the database connection pool.
func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// Stats returns database connection pool statistics.
func (p *Pool) Stats() sql.DBStats {
	if p == nil || p.db == nil {
		return sql.DBStats{}
	}
	return p.db.Stats()
}

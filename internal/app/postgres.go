package app

import (
	"database/sql"
	"fmt"

	"github.com/guttosm/volforecast/config"

	_ "github.com/lib/pq"  // PostgreSQL driver for database/sql
	_ "modernc.org/sqlite" // pure-Go SQLite driver for database/sql
)

// sqlOpener is an indirection for unit testing; defaults to sql.Open
var sqlOpener = sql.Open

// InitDB opens the price store selected by cfg.Database.Driver and verifies
// connectivity.
//
// Returns:
//   - *sql.DB: an open database connection pool (safe for concurrent use).
//   - error: if the driver is unknown or opening/pinging fails.
func InitDB(cfg config.Config) (*sql.DB, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return InitPostgres(cfg)
	case "sqlite", "":
		return InitSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// InitPostgres initializes a PostgreSQL connection using the provided configuration.
//
// Parameters:
//   - cfg (config.Config): The application configuration object containing Postgres settings.
//
// Behavior:
//   - Constructs a DSN (Data Source Name) using values from cfg.Postgres.
//   - Opens a database handle with sql.Open.
//   - Immediately pings the database to validate connectivity.
//   - Returns the live connection if successful.
//
// Example usage:
//
//	db, err := app.InitPostgres(cfg)
//	if err != nil {
//	    log.Fatalf("❌ failed to connect: %v", err)
//	}
//	defer db.Close()
func InitPostgres(cfg config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)

	// Initialize database handle (does not establish a real connection yet)
	db, err := sqlOpener("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}

	// Verify connectivity by pinging the database
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return db, nil
}

// InitSQLite opens the SQLite file at cfg.Database.SQLitePath, creating it if
// needed. Writers wait on a busy timeout instead of failing with SQLITE_BUSY.
func InitSQLite(cfg config.Config) (*sql.DB, error) {
	if cfg.Database.SQLitePath == "" {
		return nil, fmt.Errorf("failed to open sqlite: empty path")
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.Database.SQLitePath)

	db, err := sqlOpener("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}
	return db, nil
}

// dbOpener is an indirection used by InitializeApp; overridden in tests to avoid real connections.
var dbOpener = InitDB

package app

import (
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/guttosm/volforecast/config"
)

func pgConfig() config.Config {
	return config.Config{
		Database: config.DatabaseConfig{Driver: "postgres"},
		Postgres: config.PostgresConfig{User: "u", Password: "p", Host: "h", Port: 5432, DBName: "d", SSLMode: "disable"},
	}
}

func TestInitPostgres_OpenError(t *testing.T) {
	old := sqlOpener
	sqlOpener = func(driverName, dataSourceName string) (*sql.DB, error) {
		return nil, errors.New("open failed")
	}
	t.Cleanup(func() { sqlOpener = old })

	if _, err := InitPostgres(pgConfig()); err == nil {
		t.Fatalf("expected error from InitPostgres when open fails")
	}
}

func TestInitPostgres_PingError(t *testing.T) {
	old := sqlOpener
	sqlOpener = func(driverName, dataSourceName string) (*sql.DB, error) {
		// Use sqlmock to return a *sql.DB whose Ping fails (enable ping monitoring)
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			t.Fatalf("sqlmock new: %v", err)
		}
		mock.ExpectPing().WillReturnError(errors.New("ping failed"))
		return db, nil
	}
	t.Cleanup(func() { sqlOpener = old })

	if _, err := InitPostgres(pgConfig()); err == nil {
		t.Fatalf("expected ping error from InitPostgres")
	}
}

func TestInitDB_DriverSelection(t *testing.T) {
	var gotDriver, gotDSN string
	old := sqlOpener
	sqlOpener = func(driverName, dataSourceName string) (*sql.DB, error) {
		gotDriver, gotDSN = driverName, dataSourceName
		db, _, err := sqlmock.New()
		return db, err
	}
	t.Cleanup(func() { sqlOpener = old })

	cases := []struct {
		name       string
		cfg        config.Config
		wantDriver string
		wantDSN    string
		wantErr    bool
	}{
		{name: "postgres", cfg: pgConfig(), wantDriver: "postgres", wantDSN: "postgres://u:p@h:5432/d?sslmode=disable"},
		{
			name:       "sqlite",
			cfg:        config.Config{Database: config.DatabaseConfig{Driver: "sqlite", SQLitePath: "stocks.sqlite"}},
			wantDriver: "sqlite",
			wantDSN:    "file:stocks.sqlite?",
		},
		{name: "sqlite without path", cfg: config.Config{Database: config.DatabaseConfig{Driver: "sqlite"}}, wantErr: true},
		{name: "unknown", cfg: config.Config{Database: config.DatabaseConfig{Driver: "mysql"}}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gotDriver, gotDSN = "", ""
			db, err := InitDB(tc.cfg)
			if tc.wantErr {
				if err == nil {
					_ = db.Close()
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer db.Close()
			if gotDriver != tc.wantDriver || !strings.HasPrefix(gotDSN, tc.wantDSN) {
				t.Fatalf("opened %q %q", gotDriver, gotDSN)
			}
		})
	}
}

func TestInitSQLite_RealFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.sqlite")
	db, err := InitSQLite(config.Config{Database: config.DatabaseConfig{Driver: "sqlite", SQLitePath: path}})
	if err != nil {
		t.Fatalf("InitSQLite: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE t (x INTEGER)`); err != nil {
		t.Fatalf("exec: %v", err)
	}
}

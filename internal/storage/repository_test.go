package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/guttosm/volforecast/internal/domain/errs"
	"github.com/guttosm/volforecast/internal/domain/models"
	_ "modernc.org/sqlite"
)

type dummyErr struct{}

func (dummyErr) Error() string { return "dummy" }

func newMockRepo(t *testing.T) (*priceRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	repo := &priceRepository{db: db}
	cleanup := func() { _ = db.Close() }
	return repo, mock, cleanup
}

func day(d int) time.Time { return time.Date(2025, 9, d, 0, 0, 0, 0, time.UTC) }

func observations(closes ...float64) []models.PriceObservation {
	out := make([]models.PriceObservation, len(closes))
	for i, c := range closes {
		out[i] = models.PriceObservation{Ticker: "AAPL", Timestamp: day(1 + i), Close: c}
	}
	return out
}

var insertRegex = regexp.QuoteMeta("INSERT INTO price_observations (ticker, ts, close)")

func TestNewPriceRepository_Construct(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()
	if r := NewPriceRepository(db); r == nil {
		t.Fatalf("expected non-nil repository")
	}
}

func TestInsert_SQLMock(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(insertRegex)
	prep.ExpectExec().WithArgs("AAPL", day(1), 10.0).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("AAPL", day(2), 11.0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := repo.Insert(context.Background(), "AAPL", observations(10, 11))
	if err != nil || n != 2 {
		t.Fatalf("Insert: n=%d err=%v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsert_RowsAffectedUnsupported(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(insertRegex)
	prep.ExpectExec().WithArgs("AAPL", day(1), 10.0).WillReturnResult(sqlmock.NewErrorResult(errors.New("rows affected not supported")))
	prep.ExpectExec().WithArgs("AAPL", day(2), 11.0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := repo.Insert(context.Background(), "AAPL", observations(10, 11))
	if err != nil || n != 2 {
		t.Fatalf("Insert: n=%d err=%v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsert_Empty(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	n, err := repo.Insert(context.Background(), "AAPL", nil)
	if err != nil || n != 0 {
		t.Fatalf("want 0,nil got %d,%v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no statements expected: %v", err)
	}
}

func TestInsert_Errors(t *testing.T) {
	cases := []struct {
		name  string
		setup func(mock sqlmock.Sqlmock)
	}{
		{
			name: "begin",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(dummyErr{})
			},
		},
		{
			name: "prepare",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectPrepare(insertRegex).WillReturnError(dummyErr{})
				mock.ExpectRollback()
			},
		},
		{
			name: "row exec",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				prep := mock.ExpectPrepare(insertRegex)
				prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
				prep.ExpectExec().WillReturnError(dummyErr{})
				mock.ExpectRollback()
			},
		},
		{
			name: "commit",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				prep := mock.ExpectPrepare(insertRegex)
				prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
				prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit().WillReturnError(dummyErr{})
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock, done := newMockRepo(t)
			defer done()
			tc.setup(mock)

			n, err := repo.Insert(context.Background(), "AAPL", observations(10, 11))
			if err == nil || n != 0 {
				t.Fatalf("expected error and 0 rows, got n=%d err=%v", n, err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestRead_SQLMock(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	selectRegex := `SELECT ticker, ts, close\s+FROM price_observations\s+WHERE ticker = \$1\s+ORDER BY ts DESC\s+LIMIT \$2`

	rows := sqlmock.NewRows([]string{"ticker", "ts", "close"}).
		AddRow("AAPL", day(3), 12.0).
		AddRow("AAPL", day(2), 11.0)
	mock.ExpectQuery(selectRegex).WithArgs("AAPL", 2).WillReturnRows(rows)

	got, err := repo.Read(context.Background(), "AAPL", 2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 2 || !got[0].Timestamp.Equal(day(2)) || got[1].Close != 12.0 {
		t.Fatalf("expected ascending order, got %+v", got)
	}

	mock.ExpectQuery(selectRegex).WithArgs("MSFT", 5).
		WillReturnRows(sqlmock.NewRows([]string{"ticker", "ts", "close"}))
	if _, err := repo.Read(context.Background(), "MSFT", 5); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	mock.ExpectQuery(selectRegex).WillReturnError(dummyErr{})
	if _, err := repo.Read(context.Background(), "AAPL", 5); err == nil {
		t.Fatalf("expected query error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRead_InvalidLimit(t *testing.T) {
	repo, _, done := newMockRepo(t)
	defer done()

	for _, limit := range []int{0, -3} {
		if _, err := repo.Read(context.Background(), "AAPL", limit); !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("limit %d: want ErrValidation, got %v", limit, err)
		}
	}
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "prices.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := Migrate(context.Background(), db, "sqlite"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestRepository_SQLiteRoundTrip(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	conn, err := db.Conn(ctx)
	if err != nil {
		t.Fatalf("conn: %v", err)
	}
	defer conn.Close()
	repo := NewPriceRepository(conn)

	if _, err := repo.Read(ctx, "AAPL", 10); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("empty table: want ErrNotFound, got %v", err)
	}

	if n, err := repo.Insert(ctx, "AAPL", observations(10, 11, 12)); err != nil || n != 3 {
		t.Fatalf("insert: n=%d err=%v", n, err)
	}
	// Re-ingesting overlapping days must not duplicate rows.
	if _, err := repo.Insert(ctx, "AAPL", observations(10, 11.5, 12, 13)); err != nil {
		t.Fatalf("re-insert: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM price_observations WHERE ticker = $1", "AAPL").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4 rows after upsert, got %d", count)
	}

	got, err := repo.Read(ctx, "AAPL", 3)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := []float64{11.5, 12, 13}
	for i, obs := range got {
		if obs.Close != want[i] || !obs.Timestamp.Equal(day(2+i)) {
			t.Fatalf("row %d: got %+v want close=%v ts=%v", i, obs, want[i], day(2+i))
		}
	}

	all, err := repo.Read(ctx, "AAPL", 100)
	if err != nil || len(all) != 4 {
		t.Fatalf("read all: len=%d err=%v", len(all), err)
	}
}

func TestDialect(t *testing.T) {
	cases := map[string]string{"postgres": "postgres", "sqlite": "sqlite3", "sqlite3": "sqlite3"}
	for driver, want := range cases {
		got, err := Dialect(driver)
		if err != nil || got != want {
			t.Fatalf("Dialect(%q) = %q, %v; want %q", driver, got, err, want)
		}
	}
	if _, err := Dialect("mysql"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

package sink

import (
	"context"
	"database/sql"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ghalamif/TrendFlow/internal/domain"
)

func archived(seq uint32, numeric float64) *domain.ArchiveRecord {
	st := uint8(2)
	return &domain.ArchiveRecord{
		LogInstance:  7,
		Seq:          seq,
		Timestamp:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Kind:         "real",
		Value:        "21.5",
		Numeric:      &numeric,
		Status:       &st,
		TransformVer: 1,
	}
}

func TestSQLSinkWriteBatchPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	s := NewSQLSink(db, "trend_records", Postgres)
	rec := archived(3, 21.5)

	expectedQuery := regexp.QuoteMeta("INSERT INTO trend_records (log_instance, seq, ts, kind, value, num_value, status, transform_ver) VALUES ($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT (log_instance, seq, ts) DO NOTHING")
	mock.ExpectExec(expectedQuery).
		WithArgs(int64(7), int64(3), rec.Timestamp, "real", "21.5", 21.5, int64(2), int64(1)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := s.WriteBatch([]*domain.ArchiveRecord{rec}); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLSinkWriteBatchSQLitePlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	s := NewSQLSink(db, "trend_records", SQLite)
	status := &domain.ArchiveRecord{LogInstance: 7, Seq: 4, Kind: "status", Value: "buffer-purged"}

	expectedQuery := regexp.QuoteMeta("VALUES (?,?,?,?,?,?,?,?),(?,?,?,?,?,?,?,?) ON CONFLICT")
	mock.ExpectExec(expectedQuery).
		WithArgs(int64(7), int64(3), sqlmock.AnyArg(), "real", "21.5", 21.5, int64(2), int64(1),
			int64(7), int64(4), sqlmock.AnyArg(), "status", "buffer-purged", nil, nil, int64(0)).
		WillReturnResult(sqlmock.NewResult(2, 2))

	if err := s.WriteBatch([]*domain.ArchiveRecord{archived(3, 21.5), status}); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLSinkWriteBatchNoRecords(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	s := NewSQLSink(db, "trend_records", Postgres)
	if err := s.WriteBatch(nil); err != nil {
		t.Fatalf("expected nil error for empty batch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLSinkSQLiteRoundTrip(t *testing.T) {
	db, err := Open(SQLite, filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	s := NewSQLSink(db, "trend_records", SQLite)
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("schema: %v", err)
	}
	batch := []*domain.ArchiveRecord{archived(1, 1), archived(2, 2)}
	if err := s.WriteBatch(batch); err != nil {
		t.Fatalf("write: %v", err)
	}
	// replayed records are ignored
	if err := s.WriteBatch(batch[1:]); err != nil {
		t.Fatalf("replay: %v", err)
	}

	var n int
	var sum sql.NullFloat64
	if err := db.QueryRow("SELECT COUNT(*), SUM(num_value) FROM trend_records").Scan(&n, &sum); err != nil {
		t.Fatalf("query: %v", err)
	}
	if n != 2 || sum.Float64 != 3 {
		t.Fatalf("got %d rows sum %v", n, sum.Float64)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "dsn"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSQLSinkName(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	if got := NewSQLSink(db, "t", Postgres).Name(); got != "postgres" {
		t.Fatalf("expected sink name postgres, got %s", got)
	}
}

package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	// database/sql drivers for the two supported dialects
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/ghalamif/TrendFlow/internal/domain"
	"github.com/ghalamif/TrendFlow/internal/ports"
)

// Dialect selects placeholder style and DDL for a database.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

const columns = "log_instance, seq, ts, kind, value, num_value, status, transform_ver"

const columnCount = 8

// SQLSink writes archive records into one table. Inserts are idempotent on
// (log_instance, seq, ts) so WAL replays never duplicate rows.
type SQLSink struct {
	db      *sql.DB
	table   string
	dialect Dialect
}

var _ ports.Sink = (*SQLSink)(nil)

func NewSQLSink(db *sql.DB, table string, dialect Dialect) *SQLSink {
	return &SQLSink{db: db, table: table, dialect: dialect}
}

// Open connects to dsn with the driver registered for dialect.
func Open(dialect Dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case Postgres, SQLite:
	default:
		return nil, fmt.Errorf("unsupported archive driver %q", dialect)
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == SQLite {
		// one writer; sqlite serializes anyway
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

func (s *SQLSink) Name() string { return string(s.dialect) }

// EnsureSchema creates the archive table when it does not exist.
func (s *SQLSink) EnsureSchema(ctx context.Context) error {
	tsType, numType := "TIMESTAMPTZ", "DOUBLE PRECISION"
	if s.dialect == SQLite {
		tsType, numType = "TIMESTAMP", "REAL"
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	log_instance BIGINT NOT NULL,
	seq BIGINT NOT NULL,
	ts %s NOT NULL,
	kind TEXT NOT NULL,
	value TEXT NOT NULL,
	num_value %s,
	status SMALLINT,
	transform_ver INTEGER NOT NULL,
	PRIMARY KEY (log_instance, seq, ts)
)`, s.table, tsType, numType)
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *SQLSink) placeholder(n int) string {
	if s.dialect == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (s *SQLSink) WriteBatch(records []*domain.ArchiveRecord) error {
	if len(records) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(s.table)
	b.WriteString(" (" + columns + ") VALUES ")

	args := make([]any, 0, len(records)*columnCount)
	for i, r := range records {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for c := 1; c <= columnCount; c++ {
			if c > 1 {
				b.WriteString(",")
			}
			b.WriteString(s.placeholder(len(args) + c))
		}
		b.WriteString(")")

		var numeric, status any
		if r.Numeric != nil {
			numeric = *r.Numeric
		}
		if r.Status != nil {
			status = int64(*r.Status)
		}
		args = append(args,
			int64(r.LogInstance),
			int64(r.Seq),
			r.Timestamp,
			r.Kind,
			r.Value,
			numeric,
			status,
			int64(r.TransformVer),
		)
	}
	b.WriteString(" ON CONFLICT (log_instance, seq, ts) DO NOTHING")

	_, err := s.db.Exec(b.String(), args...)
	return err
}

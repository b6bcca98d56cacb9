package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/pkg/database"
)

// row/rows/conn are the slice of database/sql and pgx both backends expose
type row interface {
	Scan(dest ...any) error
}

type rows interface {
	row
	Next() bool
	Err() error
	Close()
}

type conn interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	QueryRow(ctx context.Context, query string, args ...any) row
	Query(ctx context.Context, query string, args ...any) (rows, error)
}

type tx interface {
	conn
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// backend adapts one driver to the shared SQL store.
// Queries are written with '?' placeholders.
type backend interface {
	conn
	Begin(ctx context.Context) (tx, error)
	Name() string
	Schema() []string
	NoRows(err error) bool
	Transient(err error) bool
	Health(ctx context.Context) database.Health
	Date(t time.Time) any
	Time(t time.Time) any
	Close() error
}

// ===== SQLite (modernc) =====

// timeLayout keeps text timestamps sortable
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type sqliteBackend struct {
	db *database.SQLite
}

type sqlConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type sqlAdapter struct {
	c sqlConn
}

func (a sqlAdapter) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := a.c.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (a sqlAdapter) QueryRow(ctx context.Context, query string, args ...any) row {
	return a.c.QueryRowContext(ctx, query, args...)
}

func (a sqlAdapter) Query(ctx context.Context, query string, args ...any) (rows, error) {
	r, err := a.c.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{r}, nil
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() {
	_ = r.Rows.Close()
}

type sqlTx struct {
	sqlAdapter
	tx *sql.Tx
}

func (t sqlTx) Commit(ctx context.Context) error   { return t.tx.Commit() }
func (t sqlTx) Rollback(ctx context.Context) error { return t.tx.Rollback() }

func (b *sqliteBackend) Exec(ctx context.Context, q string, args ...any) (int64, error) {
	return sqlAdapter{b.db.Conn}.Exec(ctx, q, args...)
}

func (b *sqliteBackend) QueryRow(ctx context.Context, q string, args ...any) row {
	return sqlAdapter{b.db.Conn}.QueryRow(ctx, q, args...)
}

func (b *sqliteBackend) Query(ctx context.Context, q string, args ...any) (rows, error) {
	return sqlAdapter{b.db.Conn}.Query(ctx, q, args...)
}

func (b *sqliteBackend) Begin(ctx context.Context) (tx, error) {
	t, err := b.db.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return sqlTx{sqlAdapter{t}, t}, nil
}

func (b *sqliteBackend) Name() string          { return "sqlite" }
func (b *sqliteBackend) Schema() []string      { return sqliteSchema }
func (b *sqliteBackend) NoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
func (b *sqliteBackend) Close() error          { return b.db.Close() }

func (b *sqliteBackend) Health(ctx context.Context) database.Health { return b.db.Health(ctx) }

func (b *sqliteBackend) Date(t time.Time) any {
	return t.Format(contracts.DateLayout)
}

func (b *sqliteBackend) Time(t time.Time) any {
	return t.UTC().Format(timeLayout)
}

// Transient: busy/locked. full, constraint and schema errors are structural.
func (b *sqliteBackend) Transient(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// ===== Postgres (pgxpool) =====

type pgBackend struct {
	db *database.DB
}

type pgConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type pgAdapter struct {
	c pgConn
}

func (a pgAdapter) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := a.c.Exec(ctx, rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (a pgAdapter) QueryRow(ctx context.Context, query string, args ...any) row {
	return a.c.QueryRow(ctx, rebind(query), args...)
}

func (a pgAdapter) Query(ctx context.Context, query string, args ...any) (rows, error) {
	return a.c.Query(ctx, rebind(query), args...)
}

type pgTx struct {
	pgAdapter
	tx pgx.Tx
}

func (t pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func (b *pgBackend) Exec(ctx context.Context, q string, args ...any) (int64, error) {
	return pgAdapter{b.db.Pool}.Exec(ctx, q, args...)
}

func (b *pgBackend) QueryRow(ctx context.Context, q string, args ...any) row {
	return pgAdapter{b.db.Pool}.QueryRow(ctx, q, args...)
}

func (b *pgBackend) Query(ctx context.Context, q string, args ...any) (rows, error) {
	return pgAdapter{b.db.Pool}.Query(ctx, q, args...)
}

func (b *pgBackend) Begin(ctx context.Context) (tx, error) {
	t, err := b.db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return pgTx{pgAdapter{t}, t}, nil
}

func (b *pgBackend) Name() string          { return "postgres" }
func (b *pgBackend) Schema() []string      { return postgresSchema }
func (b *pgBackend) NoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

func (b *pgBackend) Health(ctx context.Context) database.Health { return b.db.Health(ctx) }

func (b *pgBackend) Close() error {
	b.db.Close()
	return nil
}

func (b *pgBackend) Date(t time.Time) any {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (b *pgBackend) Time(t time.Time) any {
	return t
}

// Transient: connection class (08), serialization/deadlock, admin shutdown, too many connections
func (b *pgBackend) Transient(err error) bool {
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		switch {
		case strings.HasPrefix(pe.Code, "08"),
			pe.Code == "40001", pe.Code == "40P01",
			pe.Code == "57P01", pe.Code == "53300":
			return true
		}
		return false
	}
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}

// rebind turns '?' placeholders into $1..$n
func rebind(query string) string {
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

// ===== Scanners shared by both drivers =====

// dbDate scans DATE (pgx time.Time) and YYYYMMDD text (SQLite)
type dbDate struct {
	t     time.Time
	valid bool
}

func (d *dbDate) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.valid = false
		return nil
	case time.Time:
		d.t, d.valid = v, true
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into date", src)
	}
}

func (d *dbDate) parse(s string) error {
	t, err := time.Parse(contracts.DateLayout, s)
	if err != nil {
		return fmt.Errorf("bad date %q: %w", s, err)
	}
	d.t, d.valid = t, true
	return nil
}

// in returns the calendar day at midnight in loc
func (d dbDate) in(loc *time.Location) time.Time {
	if !d.valid {
		return time.Time{}
	}
	y, m, day := d.t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

// dbTime scans TIMESTAMPTZ (pgx) and fixed-layout text (SQLite)
type dbTime struct {
	t time.Time
}

func (d *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.t = time.Time{}
		return nil
	case time.Time:
		d.t = v
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (d *dbTime) parse(s string) error {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	d.t = t
	return nil
}

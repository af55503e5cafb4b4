package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/syssam/fluxdb/dialect"
)

// validIdentifierRe validates SQL identifiers (alphanumeric, underscores, dots for schema.name).
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// ValidIdentifier reports whether s is a valid SQL identifier.
// Builders reject invalid identifiers before any SQL is compiled.
func ValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// Driver is a dialect.Driver implementation over database/sql.
//
// The embedded engine exposes a single logical connection; the driver
// serializes every statement through a single-slot gate so that concurrent
// callers queue transparently instead of interleaving at the engine boundary.
// A transaction holds the gate for its entire lifetime, since it owns the
// connection until committed or rolled back.
type Driver struct {
	Conn
	dialect string
}

// NewDriver creates a new Driver with the given Conn and dialect.
func NewDriver(dialect string, c Conn) *Driver {
	return &Driver{dialect: dialect, Conn: c}
}

// Open wraps database/sql.Open and returns a gated Driver.
func Open(dialect, source string) (*Driver, error) {
	db, err := sql.Open(dialect, source)
	if err != nil {
		return nil, err
	}
	// The gate is the ordering guarantee; capping the pool at one
	// connection keeps the engine itself single-connection as well.
	db.SetMaxOpenConns(1)
	return NewDriver(dialect, Conn{ExecQuerier: db, gate: semaphore.NewWeighted(1)}), nil
}

// OpenDB wraps an existing database/sql.DB with a gated Driver.
func OpenDB(dialect string, db *sql.DB) *Driver {
	return NewDriver(dialect, Conn{ExecQuerier: db, gate: semaphore.NewWeighted(1)})
}

// DB returns the underlying *sql.DB instance.
func (d Driver) DB() *sql.DB {
	return d.ExecQuerier.(*sql.DB)
}

// Dialect implements the dialect.Dialect method.
func (d Driver) Dialect() string {
	return d.dialect
}

// Tx starts and returns a transaction.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	return d.BeginTx(ctx, nil)
}

// BeginTx starts a transaction with options.
//
// The returned transaction owns the connection gate until Commit or
// Rollback; statements issued on the parent driver block until then.
func (d *Driver) BeginTx(ctx context.Context, opts *TxOptions) (dialect.Tx, error) {
	if d.gate != nil {
		if err := d.gate.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("dialect/sql: begin: %w", err)
		}
	}
	tx, err := d.DB().BeginTx(ctx, opts)
	if err != nil {
		if d.gate != nil {
			d.gate.Release(1)
		}
		return nil, err
	}
	t := &Tx{
		Conn: Conn{ExecQuerier: tx},
		Tx:   tx,
	}
	if d.gate != nil {
		gate := d.gate
		t.release = func() { gate.Release(1) }
	}
	return t, nil
}

// Close closes the underlying connection.
func (d *Driver) Close() error { return d.DB().Close() }

// Tx implements dialect.Tx over *sql.Tx. Its statements bypass the driver
// gate: the transaction acquired it at begin time.
type Tx struct {
	Conn
	driver.Tx
	once    sync.Once
	release func()
}

// Commit commits the transaction and releases the connection gate.
func (tx *Tx) Commit() error {
	err := tx.Tx.Commit()
	tx.done()
	return err
}

// Rollback rolls the transaction back and releases the connection gate.
func (tx *Tx) Rollback() error {
	err := tx.Tx.Rollback()
	tx.done()
	return err
}

func (tx *Tx) done() {
	tx.once.Do(func() {
		if tx.release != nil {
			tx.release()
		}
	})
}

// ExecQuerier wraps the standard Exec and Query methods.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn implements dialect.ExecQuerier given ExecQuerier.
type Conn struct {
	ExecQuerier
	// gate serializes engine access. Nil inside a transaction,
	// where the transaction already holds it.
	gate *semaphore.Weighted
}

// Exec implements the dialect.Exec method.
func (c Conn) Exec(ctx context.Context, query string, args, v any) error {
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
	if c.gate != nil {
		if err := c.gate.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("dialect/sql: exec: %w", err)
		}
		defer c.gate.Release(1)
	}
	switch v := v.(type) {
	case nil:
		if _, err := c.ExecContext(ctx, query, argv...); err != nil {
			return fmt.Errorf("dialect/sql: exec: %w", err)
		}
	case *sql.Result:
		res, err := c.ExecContext(ctx, query, argv...)
		if err != nil {
			return fmt.Errorf("dialect/sql: exec: %w", err)
		}
		*v = res
	default:
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Result", v)
	}
	return nil
}

// Query implements the dialect.Query method. The connection gate is held
// until the returned rows are closed.
func (c Conn) Query(ctx context.Context, query string, args, v any) error {
	vr, ok := v.(*Rows)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Rows", v)
	}
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
	if c.gate != nil {
		if err := c.gate.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("dialect/sql: query: %w", err)
		}
	}
	rows, err := c.QueryContext(ctx, query, argv...)
	if err != nil {
		if c.gate != nil {
			c.gate.Release(1)
		}
		return fmt.Errorf("dialect/sql: query: %w", err)
	}
	*vr = Rows{rows}
	if c.gate != nil {
		gate := c.gate
		vr.ColumnScanner = rowsWithCloser{rows, func() error { gate.Release(1); return nil }}
	}
	return nil
}

var _ dialect.Driver = (*Driver)(nil)

type (
	// Rows wraps the sql.Rows to avoid locks copy.
	Rows struct{ ColumnScanner }
	// Result is an alias to sql.Result.
	Result = sql.Result
	// NullBool is an alias to sql.NullBool.
	NullBool = sql.NullBool
	// NullInt64 is an alias to sql.NullInt64.
	NullInt64 = sql.NullInt64
	// NullString is an alias to sql.NullString.
	NullString = sql.NullString
	// NullFloat64 is an alias to sql.NullFloat64.
	NullFloat64 = sql.NullFloat64
	// NullTime represents a time.Time that may be null.
	NullTime = sql.NullTime
	// TxOptions holds the transaction options to be used in DB.BeginTx.
	TxOptions = sql.TxOptions
)

// ColumnScanner is the interface that wraps the standard
// sql.Rows methods used for scanning database rows.
type ColumnScanner interface {
	Close() error
	ColumnTypes() ([]*sql.ColumnType, error)
	Columns() ([]string, error)
	Err() error
	Next() bool
	NextResultSet() bool
	Scan(dest ...any) error
}

// rowsWithCloser wraps the ColumnScanner interface with a custom Close hook.
type rowsWithCloser struct {
	ColumnScanner
	closer func() error
}

// Close closes the underlying ColumnScanner and calls the custom closer.
func (r rowsWithCloser) Close() error {
	err := r.ColumnScanner.Close()
	return errors.Join(err, r.closer())
}

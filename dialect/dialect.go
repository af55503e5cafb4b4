// Package dialect provides the execution abstraction between the fluxdb
// builders and the underlying embedded SQL engine.
//
// The package defines the Driver interface consumed by the client façade:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// The Tx interface extends ExecQuerier with transaction lifecycle methods,
// and ExecQuerier is the subset shared by drivers and open transactions.
// The only dialect shipped with fluxdb is SQLite (modernc.org/sqlite), but
// the abstraction is kept so wrapper drivers (debug, stats) and test doubles
// compose the same way regardless of the backing engine.
package dialect

import "context"

// SQLite is the dialect name of the embedded engine shipped with fluxdb.
const SQLite = "sqlite"

// ExecQuerier wraps the two basic Exec and Query methods.
//
// Both methods follow the out-parameter convention: args is the positional
// parameter slice ([]any), and v receives the result (*sql.Result for Exec,
// *sql.Rows for Query, or nil when the result is discarded).
type ExecQuerier interface {
	// Exec executes a statement that does not return rows.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a statement that returns rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all database operations.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	// The provided context is used until the transaction is committed or rolled back.
	Tx(ctx context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec and Query operations in a transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

type nopTx struct {
	Driver
}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

// NopTx returns a Tx with a no-op Commit / Rollback operations.
func NopTx(d Driver) Tx {
	return nopTx{d}
}

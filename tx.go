package fluxdb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/syssam/fluxdb/dialect"
)

type txState uint8

const (
	txActive txState = iota
	txCommitted
	txRolledBack
)

func (s txState) String() string {
	switch s {
	case txCommitted:
		return "committed"
	case txRolledBack:
		return "rolled back"
	default:
		return "active"
	}
}

// Tx is a transaction-scoped view of the client: it exposes the same
// builder surface, executing against the open transaction instead of the
// base connection.
//
// A transaction is Active until Commit or Rollback moves it to a terminal
// state. Any builder operation issued afterwards fails with a
// TxStateError. Rollback is idempotent; a second Commit is an error.
// Nested transactions are rejected: the engine exposes a single logical
// connection, so BeginTx fails with ErrTxStarted while another transaction
// on the same client is active.
type Tx struct {
	client *Client
	tx     dialect.Tx

	mu    sync.Mutex
	state txState
}

// querier implements conn over the open transaction.
func (t *Tx) querier(context.Context) (dialect.ExecQuerier, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != txActive {
		return nil, &TxStateError{Op: "exec", State: t.state.String()}
	}
	return t.tx, nil
}

// Query returns a query builder for the given table, scoped to the transaction.
func (t *Tx) Query(table string) *QueryBuilder {
	tb, err := t.client.lookupTable(table)
	return &QueryBuilder{conn: t, table: tb, err: err}
}

// Insert returns an insert builder for the given table, scoped to the transaction.
func (t *Tx) Insert(table string) *InsertBuilder {
	tb, err := t.client.lookupTable(table)
	return &InsertBuilder{conn: t, table: tb, err: err}
}

// Update returns an update builder for the given table, scoped to the transaction.
func (t *Tx) Update(table string) *UpdateBuilder {
	tb, err := t.client.lookupTable(table)
	return &UpdateBuilder{conn: t, table: tb, err: err}
}

// Delete returns a delete builder for the given table, scoped to the transaction.
func (t *Tx) Delete(table string) *DeleteBuilder {
	tb, err := t.client.lookupTable(table)
	return &DeleteBuilder{conn: t, table: tb, err: err}
}

// Exec runs a raw statement inside the transaction.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return execStmt(ctx, t, query, args)
}

// Raw runs a raw query inside the transaction and returns the rows.
func (t *Tx) Raw(ctx context.Context, query string, args ...any) ([]Row, error) {
	return queryRows(ctx, t, query, args)
}

// Commit commits the transaction. A second Commit, or Commit after
// Rollback, returns a TxStateError.
func (t *Tx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != txActive {
		return &TxStateError{Op: "commit", State: t.state.String()}
	}
	err := t.tx.Commit()
	t.state = txCommitted
	t.client.endTx()
	if err != nil {
		return fmt.Errorf("fluxdb: committing transaction: %w", err)
	}
	return nil
}

// Rollback rolls the transaction back. Repeated calls after the first are
// no-ops; Rollback after a successful Commit is a TxStateError.
func (t *Tx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case txRolledBack:
		return nil
	case txCommitted:
		return &TxStateError{Op: "rollback", State: t.state.String()}
	}
	err := t.tx.Rollback()
	t.state = txRolledBack
	t.client.endTx()
	if err != nil {
		return fmt.Errorf("fluxdb: rolling back transaction: %w", err)
	}
	return nil
}

// WithTx runs fn inside a transaction: it commits on a nil return, and
// rolls back and returns the original error otherwise. A panic inside fn
// rolls the transaction back before re-panicking.
//
//	err := client.WithTx(ctx, func(tx *fluxdb.Tx) error {
//	    if _, err := tx.Insert("todos").Values(row).Exec(ctx); err != nil {
//	        return err
//	    }
//	    _, err := tx.Update("users").Where("id", fluxdb.OpEQ, uid).
//	        Set(fluxdb.Row{"todo_count": n + 1}).Exec(ctx)
//	    return err
//	})
func (c *Client) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := c.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
		}
		return err
	}
	return tx.Commit()
}

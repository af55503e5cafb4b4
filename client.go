package fluxdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite" // embedded engine

	"github.com/syssam/fluxdb/dialect"
	sqldialect "github.com/syssam/fluxdb/dialect/sql"
	"github.com/syssam/fluxdb/migrate"
	"github.com/syssam/fluxdb/schema"
)

// Client is the entry point to fluxdb. It composes the typed builders, the
// migration engine, the transaction wrapper, and the change-notification
// bus over a single logical engine connection.
//
// Construction only captures configuration. The engine is touched lazily:
// the first operation that needs the connection ensures the migration
// ledger exists and applies pending migrations. A failed initialization is
// retried by the next operation.
type Client struct {
	drv        dialect.Driver
	log        *slog.Logger
	debug      bool
	tables     map[string]*schema.Table
	migrations []migrate.Migration
	initErr    error

	mu       sync.Mutex
	ready    bool
	closed   bool
	txActive bool
	bus      *notifier
}

// Option configures a Client.
type Option func(*Client)

// WithTables registers table schemas with the client. Builders can only
// target registered tables; payload validation and defaults come from
// these descriptors.
func WithTables(tables ...*schema.Table) Option {
	return func(c *Client) {
		for _, t := range tables {
			if c.initErr != nil {
				return
			}
			if err := t.Err(); err != nil {
				c.initErr = err
				return
			}
			if _, ok := c.tables[t.Name()]; ok {
				c.initErr = fmt.Errorf("fluxdb: table %q registered twice", t.Name())
				return
			}
			c.tables[t.Name()] = t
		}
	}
}

// WithMigrations supplies the versioned migrations applied lazily on first
// engine access. Input order is irrelevant; application is ascending by
// version with already-applied versions skipped.
func WithMigrations(migrations ...migrate.Migration) Option {
	return func(c *Client) {
		c.migrations = append(c.migrations, migrations...)
	}
}

// WithLogger sets the logger used by the debug driver.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// Debug wraps the driver with statement logging.
func Debug() Option {
	return func(c *Client) {
		c.debug = true
	}
}

// Open opens an embedded SQLite database at the given DSN (a file path,
// "file:..." URI, or ":memory:") and returns a client over it.
func Open(dsn string, opts ...Option) (*Client, error) {
	drv, err := sqldialect.Open(dialect.SQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("fluxdb: open %q: %w", dsn, err)
	}
	return NewClient(drv, opts...), nil
}

// NewClient creates a client over an existing driver. Useful for wrapping
// the driver with the stats decorator, or for supplying a test double.
func NewClient(drv dialect.Driver, opts ...Option) *Client {
	c := &Client{
		drv:    drv,
		log:    slog.Default(),
		tables: make(map[string]*schema.Table),
		bus:    newNotifier(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.debug {
		log := c.log
		c.drv = sqldialect.NewDebugDriver(c.drv, sqldialect.DebugWithLog(
			func(_ context.Context, v ...any) { log.Debug(fmt.Sprint(v...)) },
		))
	}
	return c
}

// querier implements conn: it guards the closed flag and runs the lazy
// migration pass before handing out the connection.
func (c *Client) querier(ctx context.Context) (dialect.ExecQuerier, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.initLocked(ctx); err != nil {
		return nil, err
	}
	return c.drv, nil
}

func (c *Client) initLocked(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	if c.initErr != nil {
		return c.initErr
	}
	if !c.ready {
		if _, err := migrate.Run(ctx, c.drv, c.migrations); err != nil {
			return err
		}
		c.ready = true
	}
	return nil
}

func (c *Client) lookupTable(name string) (*schema.Table, error) {
	t, ok := c.tables[name]
	if !ok {
		return nil, NewPreconditionError("table %q is not registered", name)
	}
	return t, nil
}

// Query returns a query builder for the given table.
func (c *Client) Query(table string) *QueryBuilder {
	t, err := c.lookupTable(table)
	return &QueryBuilder{conn: c, table: t, err: err}
}

// Insert returns an insert builder for the given table.
func (c *Client) Insert(table string) *InsertBuilder {
	t, err := c.lookupTable(table)
	return &InsertBuilder{conn: c, table: t, err: err}
}

// Update returns an update builder for the given table.
func (c *Client) Update(table string) *UpdateBuilder {
	t, err := c.lookupTable(table)
	return &UpdateBuilder{conn: c, table: t, err: err}
}

// Delete returns a delete builder for the given table.
func (c *Client) Delete(table string) *DeleteBuilder {
	t, err := c.lookupTable(table)
	return &DeleteBuilder{conn: c, table: t, err: err}
}

// Exec runs a raw statement, bypassing the builders. This escape hatch is
// part of the supported surface, not a backdoor: joins and anything else
// the builders do not model go through here.
func (c *Client) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return execStmt(ctx, c, query, args)
}

// Raw runs a raw query and returns the rows as field-name-keyed maps.
func (c *Client) Raw(ctx context.Context, query string, args ...any) ([]Row, error) {
	return queryRows(ctx, c, query, args)
}

// BeginTx starts a transaction. It fails with ErrTxStarted if another
// transaction is already active on this client: the single logical
// connection does not support nested transactions.
func (c *Client) BeginTx(ctx context.Context) (*Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.initLocked(ctx); err != nil {
		return nil, err
	}
	if c.txActive {
		return nil, ErrTxStarted
	}
	tx, err := c.drv.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("fluxdb: starting transaction: %w", err)
	}
	c.txActive = true
	return &Tx{client: c, tx: tx}, nil
}

func (c *Client) endTx() {
	c.mu.Lock()
	c.txActive = false
	c.mu.Unlock()
}

// Subscribe registers a callback invoked whenever NotifyTable is called
// for the given table, and returns its unsubscribe function.
func (c *Client) Subscribe(table string, fn func()) (func(), error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	return c.bus.subscribe(table, fn), nil
}

// NotifyTable synchronously invokes every subscriber of the table in
// registration order. Mutations never call this automatically; callers
// notify explicitly after mutations they want observed.
func (c *Client) NotifyTable(table string) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	c.bus.notify(table)
	return nil
}

// Close releases the engine connection and clears the notification
// registry. Close is idempotent; every other operation on a closed client
// fails with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.bus.clear()
	if err := c.drv.Close(); err != nil {
		return fmt.Errorf("fluxdb: close: %w", err)
	}
	return nil
}

// IsClosed reports whether the client has been closed.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

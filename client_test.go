package fluxdb_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/fluxdb"
	"github.com/syssam/fluxdb/migrate"
	"github.com/syssam/fluxdb/schema"
	"github.com/syssam/fluxdb/schema/field"
)

func TestClientRaw(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)
	seedTodos(t, client,
		fluxdb.Row{"title": "a", "user_id": "u1"},
		fluxdb.Row{"title": "b", "user_id": "u2"},
	)

	rows, err := client.Raw(ctx, "SELECT title FROM todos WHERE user_id = ? ORDER BY title", "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0]["title"])
}

func TestClientExec(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)
	seedTodos(t, client, fluxdb.Row{"title": "a"})

	res, err := client.Exec(ctx, "UPDATE todos SET completed = 1")
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestClientRawBypassesRegistry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	// Raw statements are not bound to registered tables.
	_, err := client.Exec(ctx, "CREATE TABLE scratch (v INTEGER)")
	require.NoError(t, err)
	_, err = client.Exec(ctx, "INSERT INTO scratch (v) VALUES (?)", 7)
	require.NoError(t, err)
	rows, err := client.Raw(ctx, "SELECT v FROM scratch")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 7, rows[0]["v"])
}

func TestClientUnregisteredTable(t *testing.T) {
	t.Parallel()
	client := newTestClient(t)

	_, err := client.Query("missing").All(context.Background())
	require.Error(t, err)
	assert.True(t, fluxdb.IsPreconditionError(err))

	_, err = client.Insert("missing").Values(fluxdb.Row{"v": 1}).Exec(context.Background())
	assert.True(t, fluxdb.IsPreconditionError(err))
}

func TestClientClose(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)
	seedTodos(t, client, fluxdb.Row{"title": "a"})

	require.NoError(t, client.Close())
	assert.True(t, client.IsClosed())
	assert.NoError(t, client.Close(), "close is idempotent")

	_, err := client.Query("todos").All(ctx)
	assert.ErrorIs(t, err, fluxdb.ErrClosed)
	_, err = client.Insert("todos").Values(fluxdb.Row{"title": "b"}).Exec(ctx)
	assert.ErrorIs(t, err, fluxdb.ErrClosed)
	_, err = client.Exec(ctx, "DELETE FROM todos")
	assert.ErrorIs(t, err, fluxdb.ErrClosed)
	_, err = client.Raw(ctx, "SELECT 1")
	assert.ErrorIs(t, err, fluxdb.ErrClosed)
	_, err = client.BeginTx(ctx)
	assert.ErrorIs(t, err, fluxdb.ErrClosed)
	_, err = client.Subscribe("todos", func() {})
	assert.ErrorIs(t, err, fluxdb.ErrClosed)
	assert.ErrorIs(t, client.NotifyTable("todos"), fluxdb.ErrClosed)
}

func TestClientLazyInit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// Opening never touches the engine; the first operation does.
	client, err := fluxdb.Open(":memory:",
		fluxdb.WithTables(todosTable()),
		fluxdb.WithMigrations(testMigrations()...),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	applied, err := client.Raw(ctx, "SELECT version FROM __migrations__ ORDER BY version")
	require.NoError(t, err)
	assert.Len(t, applied, 2, "migrations ran before the first statement")
}

func TestClientInitFailureRetries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	client, err := fluxdb.Open(":memory:",
		fluxdb.WithTables(todosTable()),
		fluxdb.WithMigrations(migrate.Migration{Version: 1, Name: "bad", SQL: "CREATE SYNTAX ERROR"}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.Query("todos").All(ctx)
	require.Error(t, err, "first operation surfaces the migration failure")

	// The failure is not latched; the next operation retries and fails again.
	_, err = client.Query("todos").All(ctx)
	require.Error(t, err)
	assert.False(t, client.IsClosed())
}

func TestClientDuplicateTable(t *testing.T) {
	t.Parallel()

	client, err := fluxdb.Open(":memory:",
		fluxdb.WithTables(todosTable(), todosTable()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.Query("todos").All(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registered twice")
}

func TestClientBadTableDefinition(t *testing.T) {
	t.Parallel()

	bad := schema.New("", field.String("v"))
	client, err := fluxdb.Open(":memory:", fluxdb.WithTables(bad))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.Raw(context.Background(), "SELECT 1")
	require.Error(t, err, "definition errors surface on first use")
}

func TestClientDebugOption(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, fluxdb.Debug(), fluxdb.WithLogger(slog.Default()))
	seedTodos(t, client, fluxdb.Row{"title": "a"})

	n, err := client.Query("todos").Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

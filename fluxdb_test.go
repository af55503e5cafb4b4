package fluxdb_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syssam/fluxdb"
	"github.com/syssam/fluxdb/migrate"
	"github.com/syssam/fluxdb/schema"
	"github.com/syssam/fluxdb/schema/field"
)

func todosTable() *schema.Table {
	return schema.New("todos",
		field.UUID("id").DefaultNew().Unique(),
		field.String("title").NotEmpty(),
		field.Bool("completed").Default(false),
		field.Enum("priority").Values("low", "medium", "high").Default("medium"),
		field.String("user_id").Optional(),
		field.Text("notes").Nillable(),
		field.Float64("score").Optional(),
	)
}

func ordersTable() *schema.Table {
	return schema.New("orders",
		field.String("user_id"),
		field.Float64("total"),
	)
}

func testMigrations() []migrate.Migration {
	return []migrate.Migration{
		{
			Version: 1,
			Name:    "create_todos",
			SQL: `CREATE TABLE todos (
				id TEXT UNIQUE NOT NULL,
				title TEXT NOT NULL,
				completed INTEGER NOT NULL DEFAULT 0,
				priority TEXT NOT NULL DEFAULT 'medium',
				user_id TEXT,
				notes TEXT,
				score REAL
			)`,
		},
		{
			Version: 2,
			Name:    "create_orders",
			SQL:     "CREATE TABLE orders (user_id TEXT NOT NULL, total REAL NOT NULL)",
		},
	}
}

func newTestClient(t *testing.T, opts ...fluxdb.Option) *fluxdb.Client {
	t.Helper()
	opts = append([]fluxdb.Option{
		fluxdb.WithTables(todosTable(), ordersTable()),
		fluxdb.WithMigrations(testMigrations()...),
	}, opts...)
	client, err := fluxdb.Open(":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func seedTodos(t *testing.T, client *fluxdb.Client, rows ...fluxdb.Row) {
	t.Helper()
	_, err := client.Insert("todos").Values(rows...).Exec(context.Background())
	require.NoError(t, err)
}

func titlesOf(rows []fluxdb.Row) []string {
	titles := make([]string, len(rows))
	for i, r := range rows {
		titles[i], _ = r["title"].(string)
	}
	return titles
}

// Package fluxdb is a typed fluent query-builder layer over an embedded
// SQL engine, with a versioned migration runner and a per-table
// change-notification bus for reactive bindings.
//
// # Overview
//
// A Client composes four concerns over one logical engine connection:
//
//   - Builders: immutable, chainable query and mutation builders that
//     compile to parameterized SQL and validate mutation payloads against
//     registered table schemas.
//   - Migrations: versioned SQL migrations tracked in the __migrations__
//     ledger, applied lazily on first engine access.
//   - Transactions: commit/rollback semantics with a transaction-scoped
//     builder surface; nesting is rejected.
//   - Notifications: explicit per-table pub/sub for observers that re-run
//     queries after mutations.
//
// # Usage
//
//	todos := schema.New("todos",
//	    field.UUID("id").DefaultNew().Unique(),
//	    field.String("title").NotEmpty(),
//	    field.Bool("completed").Default(false),
//	    field.Enum("priority").Values("low", "medium", "high").Default("medium"),
//	)
//
//	client, err := fluxdb.Open("file:app.db",
//	    fluxdb.WithTables(todos),
//	    fluxdb.WithMigrations(migrate.Migration{
//	        Version: 1,
//	        Name:    "create_todos",
//	        SQL:     todos.CreateSQL(false),
//	    }),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	_, err = client.Insert("todos").Values(fluxdb.Row{"title": "write docs"}).Exec(ctx)
//
//	rows, err := client.Query("todos").
//	    Where("completed", fluxdb.OpEQ, false).
//	    OrderBy("title", fluxdb.Asc).
//	    All(ctx)
//
// Builders are values: branching from a shared base builder never mutates
// the base. Chaining is pure and synchronous; only terminal methods reach
// the engine.
package fluxdb

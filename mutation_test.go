package fluxdb_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/fluxdb"
	"github.com/syssam/fluxdb/schema"
)

func TestInsertAppliesDefaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	_, err := client.Insert("todos").Values(fluxdb.Row{"title": "t"}).Exec(ctx)
	require.NoError(t, err)

	row, err := client.Query("todos").First(ctx)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.EqualValues(t, 0, row["completed"])
	assert.Equal(t, "medium", row["priority"])
	assert.NotEmpty(t, row["id"], "uuid default factory should have been applied")
}

func TestInsertValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	// Missing required field.
	_, err := client.Insert("todos").Values(fluxdb.Row{"priority": "low"}).Exec(ctx)
	require.Error(t, err)
	assert.True(t, fluxdb.IsValidationError(err))
	var ve *schema.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "missing required field", ve.Field("title"))

	// Validator rejection.
	_, err = client.Insert("todos").Values(fluxdb.Row{"title": ""}).Exec(ctx)
	assert.True(t, fluxdb.IsValidationError(err))

	// Enum membership.
	_, err = client.Insert("todos").Values(fluxdb.Row{"title": "t", "priority": "urgent"}).Exec(ctx)
	assert.True(t, fluxdb.IsValidationError(err))

	// Unknown column.
	_, err = client.Insert("todos").Values(fluxdb.Row{"title": "t", "nope": 1}).Exec(ctx)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "unknown column", ve.Field("nope"))

	// A failed insert leaves the client usable.
	_, err = client.Insert("todos").Values(fluxdb.Row{"title": "ok"}).Exec(ctx)
	require.NoError(t, err)
	n, err := client.Query("todos").Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestInsertBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	id, err := client.Insert("todos").Values(
		fluxdb.Row{"title": "a"},
		fluxdb.Row{"title": "b"},
		fluxdb.Row{"title": "c"},
	).Exec(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, id, "last insert rowid after three rows")

	n, err := client.Query("todos").Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestInsertEmptyBatch(t *testing.T) {
	t.Parallel()
	client := newTestClient(t)

	id, err := client.Insert("todos").Exec(context.Background())
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestInsertDivergentKeySets(t *testing.T) {
	t.Parallel()
	client := newTestClient(t)

	// user_id is optional with no default, so row key sets diverge after
	// validation; the batch is rejected before reaching the engine.
	_, err := client.Insert("todos").Values(
		fluxdb.Row{"title": "a", "user_id": "u1"},
		fluxdb.Row{"title": "b"},
	).Exec(context.Background())
	require.Error(t, err)
	assert.True(t, fluxdb.IsPreconditionError(err))
}

func TestInsertConstraintViolation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	id := "cd20c40a-8398-46f1-bcd5-cbe0a0ad9413"
	_, err := client.Insert("todos").Values(fluxdb.Row{"id": id, "title": "a"}).Exec(ctx)
	require.NoError(t, err)

	_, err = client.Insert("todos").Values(fluxdb.Row{"id": id, "title": "b"}).Exec(ctx)
	require.Error(t, err)
	var ce *fluxdb.ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, fluxdb.ConstraintUnique, ce.Kind)
	assert.Equal(t, "todos.id", ce.Column)
	// The engine's wording is preserved for substring matching.
	assert.Contains(t, err.Error(), "UNIQUE constraint failed: todos.id")

	// The client stays usable after the failure.
	n, err := client.Query("todos").Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)
	seedTodos(t, client,
		fluxdb.Row{"title": "a", "user_id": "u1"},
		fluxdb.Row{"title": "b", "user_id": "u1"},
		fluxdb.Row{"title": "c", "user_id": "u2"},
	)

	n, err := client.Update("todos").
		Where("user_id", fluxdb.OpEQ, "u1").
		Set(fluxdb.Row{"completed": true}).
		Exec(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	done, err := client.Query("todos").Where("completed", fluxdb.OpEQ, true).All(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, titlesOf(done))
}

func TestUpdateRequiresSet(t *testing.T) {
	t.Parallel()
	client := newTestClient(t)

	_, err := client.Update("todos").Where("user_id", fluxdb.OpEQ, "u1").Exec(context.Background())
	require.Error(t, err)
	assert.True(t, fluxdb.IsPreconditionError(err))
	assert.False(t, fluxdb.IsValidationError(err))
}

func TestUpdateSetReplaces(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)
	seedTodos(t, client, fluxdb.Row{"title": "a"})

	// A second Set replaces the payload; it does not merge.
	_, err := client.Update("todos").
		Set(fluxdb.Row{"completed": true}).
		Set(fluxdb.Row{"priority": "high"}).
		Exec(ctx)
	require.NoError(t, err)

	row, err := client.Query("todos").First(ctx)
	require.NoError(t, err)
	assert.Equal(t, "high", row["priority"])
	assert.EqualValues(t, 0, row["completed"])
}

func TestUpdateValidatesPartially(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)
	seedTodos(t, client, fluxdb.Row{"title": "a"})

	// Partial payloads need not carry required fields...
	n, err := client.Update("todos").Set(fluxdb.Row{"priority": "low"}).Exec(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// ...but presented fields are validated.
	_, err = client.Update("todos").Set(fluxdb.Row{"title": ""}).Exec(ctx)
	assert.True(t, fluxdb.IsValidationError(err))
}

func TestDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)
	seedTodos(t, client,
		fluxdb.Row{"title": "a", "user_id": "u1"},
		fluxdb.Row{"title": "b", "user_id": "u2"},
	)

	n, err := client.Delete("todos").Where("user_id", fluxdb.OpEQ, "u1").Exec(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	rest, err := client.Query("todos").All(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b"}, titlesOf(rest))
}

func TestDeleteWithoutWhereDeletesAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)
	seedTodos(t, client,
		fluxdb.Row{"title": "a"},
		fluxdb.Row{"title": "b"},
	)

	n, err := client.Delete("todos").Exec(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	count, err := client.Query("todos").Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMutationBuilderImmutability(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)
	seedTodos(t, client,
		fluxdb.Row{"title": "a", "user_id": "u1"},
		fluxdb.Row{"title": "b", "user_id": "u2"},
	)

	base := client.Delete("todos")
	scoped := base.Where("user_id", fluxdb.OpEQ, "u1")

	// Branching off base must not leak the predicate back into it.
	n, err := scoped.Exec(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = base.Exec(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "base delete still has no predicates")
}

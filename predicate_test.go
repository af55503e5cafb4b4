package fluxdb

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPredicate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		col     string
		op      Op
		args    []any
		wantErr bool
	}{
		{name: "eq", col: "title", op: OpEQ, args: []any{"x"}},
		{name: "eq missing value", col: "title", op: OpEQ, args: nil, wantErr: true},
		{name: "eq too many values", col: "title", op: OpEQ, args: []any{"x", "y"}, wantErr: true},
		{name: "is null", col: "notes", op: OpIsNull, args: nil},
		{name: "is null with value", col: "notes", op: OpIsNull, args: []any{1}, wantErr: true},
		{name: "between", col: "score", op: OpBetween, args: []any{1, 10}},
		{name: "between slice", col: "score", op: OpBetween, args: []any{[]int{1, 10}}},
		{name: "between one value", col: "score", op: OpBetween, args: []any{1}, wantErr: true},
		{name: "between three values", col: "score", op: OpBetween, args: []any{1, 2, 3}, wantErr: true},
		{name: "in variadic", col: "id", op: OpIn, args: []any{"a", "b"}},
		{name: "in slice", col: "id", op: OpIn, args: []any{[]string{"a", "b"}}},
		{name: "bad identifier", col: "1; DROP TABLE todos", op: OpEQ, args: []any{1}, wantErr: true},
		{name: "unknown operator", col: "title", op: Op("MATCHES"), args: []any{1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := newPredicate(conjAnd, tt.col, tt.op, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsPreconditionError(err))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestFlattenArgs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []any{"a", "b"}, flattenArgs([]any{[]string{"a", "b"}}))
	assert.Equal(t, []any{1, 2}, flattenArgs([]any{[]any{1, 2}}))
	assert.Equal(t, []any{1, 2}, flattenArgs([]any{1, 2}))
	assert.Equal(t, []any{"a"}, flattenArgs([]any{"a"}))
	// []byte is a scalar blob value, not a list.
	assert.Equal(t, []any{[]byte("a")}, flattenArgs([]any{[]byte("a")}))
}

func TestCompilePredicates(t *testing.T) {
	t.Parallel()

	p := func(cj conjunction, col string, op Op, args ...any) predicate {
		pr, err := newPredicate(cj, col, op, args)
		require.NoError(t, err)
		return pr
	}

	tests := []struct {
		name     string
		preds    []predicate
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "single",
			preds:    []predicate{p(conjAnd, "completed", OpEQ, true)},
			wantSQL:  "completed = ?",
			wantArgs: []any{true},
		},
		{
			name: "mixed and or keeps sql precedence",
			preds: []predicate{
				p(conjAnd, "a", OpEQ, 1),
				p(conjOr, "b", OpEQ, 2),
				p(conjAnd, "c", OpEQ, 3),
			},
			wantSQL:  "a = ? OR b = ? AND c = ?",
			wantArgs: []any{1, 2, 3},
		},
		{
			name:     "in expands placeholders",
			preds:    []predicate{p(conjAnd, "id", OpIn, []string{"a", "b", "c"})},
			wantSQL:  "id IN (?, ?, ?)",
			wantArgs: []any{"a", "b", "c"},
		},
		{
			name:     "not in",
			preds:    []predicate{p(conjAnd, "id", OpNotIn, "a", "b")},
			wantSQL:  "id NOT IN (?, ?)",
			wantArgs: []any{"a", "b"},
		},
		{
			name:     "null operators emit no placeholder",
			preds:    []predicate{p(conjAnd, "notes", OpIsNull), p(conjAnd, "title", OpNotNull)},
			wantSQL:  "notes IS NULL AND title IS NOT NULL",
			wantArgs: nil,
		},
		{
			name:     "between",
			preds:    []predicate{p(conjAnd, "score", OpBetween, 1, 10)},
			wantSQL:  "score BETWEEN ? AND ?",
			wantArgs: []any{1, 10},
		},
		{
			name: "group parenthesized",
			preds: []predicate{
				{conj: conjAnd, group: []predicate{
					p(conjAnd, "completed", OpEQ, true),
					p(conjOr, "priority", OpEQ, "high"),
				}},
				p(conjAnd, "user_id", OpEQ, "u1"),
			},
			wantSQL:  "(completed = ? OR priority = ?) AND user_id = ?",
			wantArgs: []any{true, "high", "u1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var (
				b      strings.Builder
				params []any
			)
			compilePredicates(&b, tt.preds, &params)
			assert.Equal(t, tt.wantSQL, b.String())
			assert.Equal(t, tt.wantArgs, params)
		})
	}
}

func TestWrapExecError(t *testing.T) {
	t.Parallel()

	require.NoError(t, wrapExecError("SELECT 1", nil))

	err := wrapExecError("INSERT INTO todos ...", errors.New("constraint failed: UNIQUE constraint failed: todos.id (1555)"))
	var ce *ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ConstraintUnique, ce.Kind)
	assert.Equal(t, "todos.id", ce.Column)
	assert.Contains(t, ce.Error(), "UNIQUE constraint failed: todos.id")

	err = wrapExecError("INSERT ...", errors.New("constraint failed: NOT NULL constraint failed: todos.title (1299)"))
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ConstraintNotNull, ce.Kind)
	assert.Equal(t, "todos.title", ce.Column)

	err = wrapExecError("DELETE ...", errors.New("FOREIGN KEY constraint failed (787)"))
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ConstraintForeignKey, ce.Kind)
	assert.Empty(t, ce.Column)

	err = wrapExecError("SELECT * FROM missing", errors.New("no such table: missing"))
	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "SELECT * FROM missing", ee.SQL)
	assert.True(t, IsEngineError(err))
	assert.False(t, IsConstraintError(err))
}

package fluxdb

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/fluxdb/schema"
)

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	assert.False(t, IsEngineError(nil))
	assert.False(t, IsConstraintError(nil))
	assert.False(t, IsValidationError(nil))
	assert.False(t, IsTxStateError(nil))
	assert.False(t, IsPreconditionError(nil))
	assert.False(t, IsClosed(nil))

	pe := NewPreconditionError("update %s: no data to update", "todos")
	assert.True(t, IsPreconditionError(pe))
	assert.Equal(t, "fluxdb: update todos: no data to update", pe.Error())
	assert.True(t, IsPreconditionError(fmt.Errorf("wrapped: %w", pe)))

	ve := &schema.ValidationError{Table: "todos", Fields: []schema.FieldError{{Field: "title", Message: "value is empty"}}}
	assert.True(t, IsValidationError(ve))
	assert.False(t, IsPreconditionError(ve))
}

func TestTxStateError(t *testing.T) {
	t.Parallel()

	err := &TxStateError{Op: "commit", State: "committed"}
	assert.Equal(t, "fluxdb: commit: transaction already committed", err.Error())
	assert.True(t, IsTxStateError(err))
	assert.ErrorIs(t, err, ErrTxDone)
	assert.True(t, IsTxStateError(ErrTxStarted))
	assert.False(t, IsTxStateError(errors.New("boom")))
}

func TestConstraintColumn(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "todos.id", constraintColumn(": todos.id (1555)"))
	assert.Equal(t, "todos.id", constraintColumn(": todos.id"))
	assert.Equal(t, "", constraintColumn(" (787)"))
	assert.Equal(t, "", constraintColumn(""))
}

func TestEngineErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("no such column: nope")
	err := wrapExecError("SELECT nope FROM todos", cause)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "no such column: nope")
	assert.Contains(t, err.Error(), "SELECT nope FROM todos")
}

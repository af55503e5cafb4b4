package fluxdb

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/fluxdb/schema"
)

// Standard sentinel errors for common operations.
var (
	// ErrClosed is returned for any operation attempted after Close.
	ErrClosed = errors.New("fluxdb: client is closed")

	// ErrTxStarted is returned when attempting to start a new transaction
	// while another one is active on the same client.
	ErrTxStarted = errors.New("fluxdb: cannot start a transaction within a transaction")

	// ErrTxDone is returned for operations attempted on a transaction
	// that has already been committed or rolled back.
	ErrTxDone = errors.New("fluxdb: transaction has already been committed or rolled back")
)

// EngineError is a generic SQL failure reported by the underlying engine.
// It carries the failing SQL text.
type EngineError struct {
	SQL  string
	wrap error
}

// Error returns the error string. The engine's wording is retained so
// callers can pattern-match on substrings.
func (e *EngineError) Error() string {
	return fmt.Sprintf("fluxdb: engine: %v (sql: %s)", e.wrap, e.SQL)
}

// Unwrap returns the underlying error.
func (e *EngineError) Unwrap() error {
	return e.wrap
}

// IsEngineError returns true if the error is an EngineError.
func IsEngineError(err error) bool {
	if err == nil {
		return false
	}
	var e *EngineError
	return errors.As(err, &e)
}

// ConstraintKind classifies a constraint violation.
type ConstraintKind string

// Constraint kinds reported by the engine.
const (
	ConstraintUnique     ConstraintKind = "UNIQUE"
	ConstraintForeignKey ConstraintKind = "FOREIGN KEY"
	ConstraintNotNull    ConstraintKind = "NOT NULL"
	ConstraintCheck      ConstraintKind = "CHECK"
)

// ConstraintError represents a database constraint violation. The engine's
// original wording is preserved in the message; Kind and Column carry the
// parsed structure where available.
type ConstraintError struct {
	Kind   ConstraintKind
	Column string // qualified column ("table.column") where parseable, else ""
	msg    string
	wrap   error
}

// Error returns the error string.
func (e *ConstraintError) Error() string {
	return "fluxdb: constraint failed: " + e.msg
}

// Unwrap returns the underlying error.
func (e *ConstraintError) Unwrap() error {
	return e.wrap
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConstraintError
	return errors.As(err, &e)
}

// ValidationError reports a mutation payload rejected by schema validation.
// It carries the offending field paths and per-field messages.
type ValidationError = schema.ValidationError

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// TxStateError represents an operation attempted on a transaction that is
// no longer active, or an illegal transaction state change.
type TxStateError struct {
	Op    string // operation attempted
	State string // "committed" or "rolled back"
}

// Error returns the error string.
func (e *TxStateError) Error() string {
	return fmt.Sprintf("fluxdb: %s: transaction already %s", e.Op, e.State)
}

// Is reports whether the target error matches ErrTxDone.
func (e *TxStateError) Is(err error) bool {
	return err == ErrTxDone
}

// IsTxStateError returns true if the error is a TxStateError or one of the
// transaction sentinels.
func IsTxStateError(err error) bool {
	if err == nil {
		return false
	}
	var e *TxStateError
	return errors.As(err, &e) || errors.Is(err, ErrTxStarted) || errors.Is(err, ErrTxDone)
}

// PreconditionError represents a builder misuse detected before any SQL is
// sent to the engine, e.g. Exec on an update builder with no prior Set, or
// a malformed BETWEEN payload.
type PreconditionError struct {
	msg string
}

// Error returns the error string.
func (e *PreconditionError) Error() string {
	return "fluxdb: " + e.msg
}

// NewPreconditionError returns a new PreconditionError with the given message.
func NewPreconditionError(format string, args ...any) *PreconditionError {
	return &PreconditionError{msg: fmt.Sprintf(format, args...)}
}

// IsPreconditionError returns true if the error is a PreconditionError.
func IsPreconditionError(err error) bool {
	if err == nil {
		return false
	}
	var e *PreconditionError
	return errors.As(err, &e)
}

// IsClosed returns true if the error indicates an operation on a closed client.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// constraintKinds maps engine message fragments to constraint kinds.
// SQLite reports e.g. "UNIQUE constraint failed: todos.id".
var constraintKinds = []ConstraintKind{
	ConstraintUnique,
	ConstraintForeignKey,
	ConstraintNotNull,
	ConstraintCheck,
}

// wrapExecError classifies an engine failure: constraint violations become
// ConstraintError, everything else an EngineError carrying the SQL text.
func wrapExecError(query string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, kind := range constraintKinds {
		marker := string(kind) + " constraint failed"
		i := strings.Index(msg, marker)
		if i < 0 {
			continue
		}
		return &ConstraintError{
			Kind:   kind,
			Column: constraintColumn(msg[i+len(marker):]),
			msg:    msg[i:],
			wrap:   err,
		}
	}
	return &EngineError{SQL: query, wrap: err}
}

// constraintColumn extracts the qualified column from the remainder of a
// constraint message, e.g. ": todos.id (1555)" -> "todos.id".
func constraintColumn(rest string) string {
	rest = strings.TrimPrefix(rest, ":")
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return ""
	}
	if i := strings.IndexAny(rest, " ("); i > 0 {
		rest = rest[:i]
	}
	if !strings.Contains(rest, ".") {
		return ""
	}
	return rest
}

package schema

import (
	"fmt"
	"strings"
)

// FieldError is a single rejected field in a validation failure.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError reports a rejected mutation payload. It carries every
// offending field with its message so callers can surface per-field errors.
type ValidationError struct {
	Table  string
	Fields []FieldError
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "schema: validation failed for table %q:", e.Table)
	for _, fe := range e.Fields {
		fmt.Fprintf(&b, " %s: %s;", fe.Field, fe.Message)
	}
	return strings.TrimSuffix(b.String(), ";")
}

// Field returns the message for the named field, or "" if it passed.
func (e *ValidationError) Field(name string) string {
	for _, fe := range e.Fields {
		if fe.Field == name {
			return fe.Message
		}
	}
	return ""
}

func (e *ValidationError) add(field string, err error) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: err.Error()})
}

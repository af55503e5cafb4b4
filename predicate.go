package fluxdb

import (
	"reflect"
	"strings"

	sqldialect "github.com/syssam/fluxdb/dialect/sql"
)

// An Op represents a predicate operator.
type Op string

// Predicate operators supported by the builders.
const (
	OpEQ      Op = "="
	OpNEQ     Op = "!="
	OpGT      Op = ">"
	OpGTE     Op = ">="
	OpLT      Op = "<"
	OpLTE     Op = "<="
	OpLike    Op = "LIKE"
	OpIn      Op = "IN"
	OpNotIn   Op = "NOT IN"
	OpIsNull  Op = "IS NULL"
	OpNotNull Op = "IS NOT NULL"
	OpBetween Op = "BETWEEN"
)

// conjunction is the joiner between a predicate and its predecessor.
type conjunction uint8

const (
	conjAnd conjunction = iota
	conjOr
)

func (c conjunction) String() string {
	if c == conjOr {
		return " OR "
	}
	return " AND "
}

// predicate is one WHERE condition plus its conjunction relationship to the
// previous predicate. A non-nil group marks a parenthesized sub-chain
// instead of a single condition.
type predicate struct {
	conj  conjunction
	col   string
	op    Op
	args  []any
	group []predicate
}

// newPredicate validates and normalizes a single condition. Arity errors
// are preconditions: they are reported at the terminal call, never sent to
// the engine.
func newPredicate(conj conjunction, col string, op Op, args []any) (predicate, error) {
	p := predicate{conj: conj, col: col, op: op}
	if !sqldialect.ValidIdentifier(col) {
		return p, NewPreconditionError("invalid column identifier %q", col)
	}
	switch op {
	case OpIsNull, OpNotNull:
		if len(args) != 0 {
			return p, NewPreconditionError("operator %s on %q takes no value", op, col)
		}
	case OpIn, OpNotIn:
		p.args = flattenArgs(args)
	case OpBetween:
		p.args = flattenArgs(args)
		if len(p.args) != 2 {
			return p, NewPreconditionError("operator BETWEEN on %q requires exactly 2 values, got %d", col, len(p.args))
		}
	case OpEQ, OpNEQ, OpGT, OpGTE, OpLT, OpLTE, OpLike:
		if len(args) != 1 {
			return p, NewPreconditionError("operator %s on %q requires exactly 1 value, got %d", op, col, len(args))
		}
		p.args = args
	default:
		return p, NewPreconditionError("unsupported operator %q", string(op))
	}
	return p, nil
}

// flattenArgs expands a single slice argument into its elements, so both
// Where("id", OpIn, ids) and Where("id", OpIn, "a", "b") work.
func flattenArgs(args []any) []any {
	if len(args) != 1 {
		return args
	}
	switch v := args[0].(type) {
	case []any:
		return v
	default:
		rv := reflect.ValueOf(args[0])
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return args
		}
		if _, ok := args[0].([]byte); ok {
			return args
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
}

// compilePredicates stitches a predicate chain into b: first clause
// verbatim, each subsequent clause prefixed by its stored conjunction.
// Mixed AND/OR chains are deliberately left unparenthesized; SQL operator
// precedence applies (AND binds tighter than OR). Callers needing explicit
// grouping use the group-callback form.
func compilePredicates(b *strings.Builder, preds []predicate, params *[]any) {
	for i, p := range preds {
		if i > 0 {
			b.WriteString(p.conj.String())
		}
		if p.group != nil {
			b.WriteByte('(')
			compilePredicates(b, p.group, params)
			b.WriteByte(')')
			continue
		}
		b.WriteString(p.col)
		switch p.op {
		case OpIsNull, OpNotNull:
			b.WriteByte(' ')
			b.WriteString(string(p.op))
		case OpBetween:
			b.WriteString(" BETWEEN ? AND ?")
			*params = append(*params, p.args...)
		case OpIn, OpNotIn:
			b.WriteByte(' ')
			b.WriteString(string(p.op))
			b.WriteString(" (")
			for j := range p.args {
				if j > 0 {
					b.WriteString(", ")
				}
				b.WriteByte('?')
			}
			b.WriteByte(')')
			*params = append(*params, p.args...)
		default:
			b.WriteByte(' ')
			b.WriteString(string(p.op))
			b.WriteString(" ?")
			*params = append(*params, p.args...)
		}
	}
}

package fluxdb

import (
	"context"
	"strings"

	"github.com/syssam/fluxdb/schema"
)

// UpdateBuilder compiles an UPDATE statement for one table.
//
// WHERE predicates accumulate with AND only; OR and grouping are a query
// capability, deliberately not offered on mutations. The pending payload is
// validated partially against the table schema: only the fields being set
// are checked.
type UpdateBuilder struct {
	conn    conn
	table   *schema.Table
	preds   []predicate
	payload Row
	hasSet  bool
	err     error
}

func (b *UpdateBuilder) clone() *UpdateBuilder {
	c := *b
	c.preds = append([]predicate(nil), b.preds...)
	return &c
}

// Where appends a predicate joined with AND. The operator set matches the
// query builder's.
func (b *UpdateBuilder) Where(col string, op Op, args ...any) *UpdateBuilder {
	c := b.clone()
	p, err := newPredicate(conjAnd, col, op, args)
	if err != nil && c.err == nil {
		c.err = err
	}
	c.preds = append(c.preds, p)
	return c
}

// Set stores the pending partial payload. A second call replaces the
// previous payload entirely; payloads are not merged.
func (b *UpdateBuilder) Set(data Row) *UpdateBuilder {
	c := b.clone()
	c.payload = data
	c.hasSet = true
	return c
}

// Exec validates the payload, executes the UPDATE, and returns the number
// of affected rows. Exec without a prior Set is a precondition error, not a
// validation error.
func (b *UpdateBuilder) Exec(ctx context.Context) (int64, error) {
	if b.err != nil {
		return 0, b.err
	}
	if !b.hasSet {
		return 0, NewPreconditionError("update %s: no data to update (Set was not called)", b.table.Name())
	}
	validated, err := b.table.ValidatePartial(b.payload)
	if err != nil {
		return 0, err
	}
	if len(validated) == 0 {
		return 0, NewPreconditionError("update %s: no data to update (payload is empty)", b.table.Name())
	}
	var (
		sb     strings.Builder
		params []any
	)
	sb.WriteString("UPDATE ")
	sb.WriteString(b.table.Name())
	sb.WriteString(" SET ")
	first := true
	for _, name := range b.table.Columns() {
		v, ok := validated[name]
		if !ok {
			continue
		}
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(name)
		sb.WriteString(" = ?")
		params = append(params, v)
	}
	if len(b.preds) > 0 {
		sb.WriteString(" WHERE ")
		compilePredicates(&sb, b.preds, &params)
	}
	res, err := execStmt(ctx, b.conn, sb.String(), params)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapExecError(sb.String(), err)
	}
	return n, nil
}

package fluxdb

import (
	"context"
	"strings"

	"github.com/syssam/fluxdb/schema"
)

// DeleteBuilder compiles a DELETE statement for one table. WHERE predicates
// accumulate with AND only, like UpdateBuilder.
type DeleteBuilder struct {
	conn  conn
	table *schema.Table
	preds []predicate
	err   error
}

func (b *DeleteBuilder) clone() *DeleteBuilder {
	c := *b
	c.preds = append([]predicate(nil), b.preds...)
	return &c
}

// Where appends a predicate joined with AND.
func (b *DeleteBuilder) Where(col string, op Op, args ...any) *DeleteBuilder {
	c := b.clone()
	p, err := newPredicate(conjAnd, col, op, args)
	if err != nil && c.err == nil {
		c.err = err
	}
	c.preds = append(c.preds, p)
	return c
}

// Exec executes the DELETE and returns the number of affected rows.
//
// A builder with no WHERE predicates deletes every row in the table. This
// is the documented behavior, not a guarded error; callers wanting a
// safety net must add their own predicate.
func (b *DeleteBuilder) Exec(ctx context.Context) (int64, error) {
	if b.err != nil {
		return 0, b.err
	}
	var (
		sb     strings.Builder
		params []any
	)
	sb.WriteString("DELETE FROM ")
	sb.WriteString(b.table.Name())
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

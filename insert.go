package fluxdb

import (
	"context"
	"strings"

	"github.com/syssam/fluxdb/schema"
)

// InsertBuilder compiles an INSERT statement for one table.
//
// Every payload row is validated against the table schema before any SQL is
// compiled: required fields must be present unless the schema supplies a
// default, and defaults (including factories) are materialized into the
// inserted row. Like QueryBuilder, the builder is an immutable value.
type InsertBuilder struct {
	conn  conn
	table *schema.Table
	rows  []Row
	err   error
}

func (b *InsertBuilder) clone() *InsertBuilder {
	c := *b
	c.rows = append([]Row(nil), b.rows...)
	return &c
}

// Values appends one or more payload rows to the insert. Passing several
// rows (in one call or across calls) builds a single multi-row INSERT.
func (b *InsertBuilder) Values(rows ...Row) *InsertBuilder {
	c := b.clone()
	c.rows = append(c.rows, rows...)
	return c
}

// Exec validates the payloads, executes the INSERT, and returns the
// engine-reported id of the last inserted row. An empty batch is a no-op
// returning 0.
//
// All rows in a batch must share the same key set after validation; the
// column list is derived from the first validated row and divergent key
// sets are rejected with a precondition error before execution.
func (b *InsertBuilder) Exec(ctx context.Context) (int64, error) {
	if b.err != nil {
		return 0, b.err
	}
	if len(b.rows) == 0 {
		return 0, nil
	}
	validated := make([]map[string]any, len(b.rows))
	for i, row := range b.rows {
		v, err := b.table.ValidateInsert(row)
		if err != nil {
			return 0, err
		}
		validated[i] = v
	}
	// Deterministic column order: table declaration order filtered by the
	// first validated row's key set.
	var cols []string
	for _, name := range b.table.Columns() {
		if _, ok := validated[0][name]; ok {
			cols = append(cols, name)
		}
	}
	for i, v := range validated[1:] {
		if len(v) != len(validated[0]) {
			return 0, NewPreconditionError("insert into %s: row %d has a different column set than row 0", b.table.Name(), i+1)
		}
		for _, c := range cols {
			if _, ok := v[c]; !ok {
				return 0, NewPreconditionError("insert into %s: row %d is missing column %q present in row 0", b.table.Name(), i+1, c)
			}
		}
	}
	var (
		sb     strings.Builder
		params = make([]any, 0, len(cols)*len(validated))
	)
	sb.WriteString("INSERT INTO ")
	sb.WriteString(b.table.Name())
	sb.WriteString(" (")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(") VALUES ")
	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	for i, v := range validated {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(placeholders)
		for _, c := range cols {
			params = append(params, v[c])
		}
	}
	res, err := execStmt(ctx, b.conn, sb.String(), params)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrapExecError(sb.String(), err)
	}
	return id, nil
}

package fluxdb

import (
	"context"

	"github.com/syssam/fluxdb/dialect"
	sqldialect "github.com/syssam/fluxdb/dialect/sql"
)

// Row is a single result row, keyed by column name.
type Row map[string]any

// conn is the execution capability shared by Client and Tx. querier
// performs the closed / transaction-state checks and, on the client, the
// lazy migration run before handing out the engine connection.
type conn interface {
	querier(ctx context.Context) (dialect.ExecQuerier, error)
}

// queryRows runs a SELECT and scans every row into a Row map.
func queryRows(ctx context.Context, c conn, query string, args []any) ([]Row, error) {
	drv, err := c.querier(ctx)
	if err != nil {
		return nil, err
	}
	rows := &sqldialect.Rows{}
	if err := drv.Query(ctx, query, args, rows); err != nil {
		return nil, wrapExecError(query, err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// execStmt runs a mutating statement and returns the engine result.
func execStmt(ctx context.Context, c conn, query string, args []any) (sqldialect.Result, error) {
	drv, err := c.querier(ctx)
	if err != nil {
		return nil, err
	}
	var res sqldialect.Result
	if err := drv.Exec(ctx, query, args, &res); err != nil {
		return nil, wrapExecError(query, err)
	}
	return res, nil
}

// scanRows drains a result set into field-name-keyed maps. TEXT columns
// surfaced as []byte by the engine are normalized to string.
func scanRows(rows *sqldialect.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []Row{}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			switch v := vals[i].(type) {
			case []byte:
				row[col] = string(v)
			default:
				row[col] = v
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

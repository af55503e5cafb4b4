package fluxdb

import (
	"context"
	"strconv"
	"strings"

	sqldialect "github.com/syssam/fluxdb/dialect/sql"
	"github.com/syssam/fluxdb/schema"
)

// OrderDirection is the sort direction of an ORDER BY clause.
type OrderDirection string

// Order directions.
const (
	Asc  OrderDirection = "ASC"
	Desc OrderDirection = "DESC"
)

// An Aggregate is a pending aggregate expression, attached to a query with
// QueryBuilder.Aggregate and commonly combined with GroupBy:
//
//	client.Query("orders").
//	    Select("user_id").
//	    Aggregate(fluxdb.As(fluxdb.Sum("total"), "spent")).
//	    GroupBy("user_id").
//	    All(ctx)
type Aggregate struct {
	fn    string
	col   string
	alias string
	err   error
}

// Sum returns a SUM aggregate on the given column.
func Sum(col string) Aggregate { return newAggregate("SUM", col) }

// Avg returns an AVG aggregate on the given column.
func Avg(col string) Aggregate { return newAggregate("AVG", col) }

// Min returns a MIN aggregate on the given column.
func Min(col string) Aggregate { return newAggregate("MIN", col) }

// Max returns a MAX aggregate on the given column.
func Max(col string) Aggregate { return newAggregate("MAX", col) }

// CountOf returns a COUNT aggregate on the given column. Use "*" to count rows.
func CountOf(col string) Aggregate { return newAggregate("COUNT", col) }

// As renames an aggregate with the given alias.
func As(a Aggregate, alias string) Aggregate {
	if a.err == nil && !sqldialect.ValidIdentifier(alias) {
		a.err = NewPreconditionError("invalid aggregate alias %q", alias)
	}
	a.alias = alias
	return a
}

func newAggregate(fn, col string) Aggregate {
	a := Aggregate{fn: fn, col: col}
	if col != "*" && !sqldialect.ValidIdentifier(col) {
		a.err = NewPreconditionError("invalid column identifier %q", col)
	}
	return a
}

func (a Aggregate) expr() string {
	s := a.fn + "(" + a.col + ")"
	if a.alias != "" {
		s += " AS " + a.alias
	}
	return s
}

type orderSpec struct {
	col string
	dir OrderDirection
}

// QueryBuilder compiles a single SELECT statement for one table.
//
// The builder is an immutable value: every chaining method returns a
// derived builder and never modifies its receiver, so a base builder can be
// aliased and branched from safely:
//
//	base := client.Query("todos").Where("user_id", fluxdb.OpEQ, "u1")
//	done, _ := base.Where("completed", fluxdb.OpEQ, true).All(ctx)
//	all, _ := base.All(ctx) // unaffected by the branch above
//
// Chaining is synchronous and pure; only the terminal methods (All, First,
// Count, aggregate scalars) touch the engine.
type QueryBuilder struct {
	conn   conn
	table  *schema.Table
	err    error
	preds  []predicate
	fields []string
	aggrs  []Aggregate
	groups []string
	order  *orderSpec
	limit  *int
	offset *int
}

func (q *QueryBuilder) clone() *QueryBuilder {
	c := *q
	c.preds = append([]predicate(nil), q.preds...)
	c.fields = append([]string(nil), q.fields...)
	c.aggrs = append([]Aggregate(nil), q.aggrs...)
	c.groups = append([]string(nil), q.groups...)
	if q.order != nil {
		o := *q.order
		c.order = &o
	}
	if q.limit != nil {
		n := *q.limit
		c.limit = &n
	}
	if q.offset != nil {
		n := *q.offset
		c.offset = &n
	}
	return &c
}

func (q *QueryBuilder) fail(err error) *QueryBuilder {
	c := q.clone()
	if c.err == nil {
		c.err = err
	}
	return c
}

// Where appends a predicate joined with AND to all previously accumulated
// predicates. For IN / NOT IN, args may be a single slice or variadic
// values; BETWEEN requires exactly two values; IS NULL / IS NOT NULL take
// none.
func (q *QueryBuilder) Where(col string, op Op, args ...any) *QueryBuilder {
	return q.where(conjAnd, col, op, args)
}

// OrWhere appends a predicate joined with OR to the immediately preceding
// predicate. Conjunctions are stored per boundary, so mixed chains like
// Where(a).OrWhere(b).Where(c) compile to "a OR b AND c" with no implicit
// parentheses; SQL precedence applies. Use WhereGroup for explicit grouping.
func (q *QueryBuilder) OrWhere(col string, op Op, args ...any) *QueryBuilder {
	return q.where(conjOr, col, op, args)
}

func (q *QueryBuilder) where(conj conjunction, col string, op Op, args []any) *QueryBuilder {
	c := q.clone()
	p, err := newPredicate(conj, col, op, args)
	if err != nil && c.err == nil {
		c.err = err
	}
	c.preds = append(c.preds, p)
	return c
}

// WhereGroup passes a fresh sub-builder scoped to the same table to fn;
// the predicates it accumulates are parenthesized as one group and joined
// to the outer chain with AND. This is how "(a OR b) AND c" filters are
// expressed:
//
//	client.Query("todos").
//	    WhereGroup(func(g *fluxdb.QueryBuilder) *fluxdb.QueryBuilder {
//	        return g.Where("completed", fluxdb.OpEQ, true).
//	            OrWhere("priority", fluxdb.OpEQ, "high")
//	    }).
//	    Where("user_id", fluxdb.OpEQ, "u1")
func (q *QueryBuilder) WhereGroup(fn func(*QueryBuilder) *QueryBuilder) *QueryBuilder {
	return q.whereGroup(conjAnd, fn)
}

// OrWhereGroup is WhereGroup with the group joined to the outer chain with OR.
func (q *QueryBuilder) OrWhereGroup(fn func(*QueryBuilder) *QueryBuilder) *QueryBuilder {
	return q.whereGroup(conjOr, fn)
}

func (q *QueryBuilder) whereGroup(conj conjunction, fn func(*QueryBuilder) *QueryBuilder) *QueryBuilder {
	c := q.clone()
	sub := fn(&QueryBuilder{table: q.table})
	if sub == nil || len(sub.preds) == 0 {
		return c
	}
	if sub.err != nil && c.err == nil {
		c.err = sub.err
	}
	c.preds = append(c.preds, predicate{conj: conj, group: sub.preds})
	return c
}

// Select restricts the projection to the named fields. It does not affect
// Count or the WHERE compilation.
func (q *QueryBuilder) Select(fields ...string) *QueryBuilder {
	for _, f := range fields {
		if !sqldialect.ValidIdentifier(f) {
			return q.fail(NewPreconditionError("invalid column identifier %q", f))
		}
	}
	c := q.clone()
	c.fields = append(c.fields, fields...)
	return c
}

// OrderBy sets the single sort key. Calling it again replaces the previous
// sort rather than appending.
func (q *QueryBuilder) OrderBy(col string, dir OrderDirection) *QueryBuilder {
	if !sqldialect.ValidIdentifier(col) {
		return q.fail(NewPreconditionError("invalid column identifier %q", col))
	}
	if dir != Asc && dir != Desc {
		return q.fail(NewPreconditionError("invalid order direction %q", string(dir)))
	}
	c := q.clone()
	c.order = &orderSpec{col: col, dir: dir}
	return c
}

// Limit sets the LIMIT clause.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	c := q.clone()
	c.limit = &n
	return c
}

// Offset sets the OFFSET clause. It may be set independently of Limit.
func (q *QueryBuilder) Offset(n int) *QueryBuilder {
	c := q.clone()
	c.offset = &n
	return c
}

// Aggregate appends aggregate expressions to the projection.
func (q *QueryBuilder) Aggregate(aggrs ...Aggregate) *QueryBuilder {
	c := q.clone()
	for _, a := range aggrs {
		if a.err != nil && c.err == nil {
			c.err = a.err
		}
	}
	c.aggrs = append(c.aggrs, aggrs...)
	return c
}

// GroupBy sets the GROUP BY field list.
func (q *QueryBuilder) GroupBy(fields ...string) *QueryBuilder {
	for _, f := range fields {
		if !sqldialect.ValidIdentifier(f) {
			return q.fail(NewPreconditionError("invalid column identifier %q", f))
		}
	}
	c := q.clone()
	c.groups = append(c.groups, fields...)
	return c
}

// SQL returns the compiled SELECT statement and its positional parameters.
// Beyond identifier and operator-arity preconditions the builder performs
// no SQL validation; semantic errors surface from the engine at execution.
func (q *QueryBuilder) SQL() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	var (
		b      strings.Builder
		params []any
	)
	b.WriteString("SELECT ")
	proj := append([]string(nil), q.fields...)
	for _, a := range q.aggrs {
		proj = append(proj, a.expr())
	}
	if len(proj) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(proj, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(q.table.Name())
	if len(q.preds) > 0 {
		b.WriteString(" WHERE ")
		compilePredicates(&b, q.preds, &params)
	}
	if len(q.groups) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(q.groups, ", "))
	}
	if q.order != nil {
		b.WriteString(" ORDER BY ")
		b.WriteString(q.order.col)
		b.WriteByte(' ')
		b.WriteString(string(q.order.dir))
	}
	if q.limit != nil {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(*q.limit))
	}
	if q.offset != nil {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(*q.offset))
	}
	return b.String(), params, nil
}

// All executes the query and returns every matching row.
func (q *QueryBuilder) All(ctx context.Context) ([]Row, error) {
	query, params, err := q.SQL()
	if err != nil {
		return nil, err
	}
	return queryRows(ctx, q.conn, query, params)
}

// First executes the query with LIMIT 1 and returns the first row, or nil
// if no row matched. The receiver is not modified; reusing it afterwards
// (e.g. calling All) still returns every matching row.
func (q *QueryBuilder) First(ctx context.Context) (Row, error) {
	one := q.clone()
	n := 1
	one.limit = &n
	rows, err := one.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Count executes SELECT COUNT(*) with the accumulated predicates, ignoring
// projection, ordering, limits and aggregates. Returns 0 for no matches.
func (q *QueryBuilder) Count(ctx context.Context) (int64, error) {
	v, err := q.scalar(ctx, "COUNT(*)")
	if err != nil {
		return 0, err
	}
	n, _ := toInt64(v)
	return n, nil
}

// Exist reports whether at least one row matches the accumulated predicates.
func (q *QueryBuilder) Exist(ctx context.Context) (bool, error) {
	n, err := q.Count(ctx)
	return n > 0, err
}

// Sum executes SELECT SUM(col) with the accumulated predicates.
// An empty or all-NULL set yields 0, the additive identity.
func (q *QueryBuilder) Sum(ctx context.Context, col string) (float64, error) {
	return q.numericScalar(ctx, "SUM", col)
}

// Avg executes SELECT AVG(col) with the accumulated predicates.
// An empty or all-NULL set yields 0.
func (q *QueryBuilder) Avg(ctx context.Context, col string) (float64, error) {
	return q.numericScalar(ctx, "AVG", col)
}

// Min executes SELECT MIN(col) with the accumulated predicates. It returns
// nil on an empty or all-NULL set: unlike Sum and Avg there is no
// meaningful identity value.
func (q *QueryBuilder) Min(ctx context.Context, col string) (any, error) {
	a := newAggregate("MIN", col)
	if a.err != nil {
		return nil, a.err
	}
	return q.scalar(ctx, a.expr())
}

// Max executes SELECT MAX(col) with the accumulated predicates. It returns
// nil on an empty or all-NULL set.
func (q *QueryBuilder) Max(ctx context.Context, col string) (any, error) {
	a := newAggregate("MAX", col)
	if a.err != nil {
		return nil, a.err
	}
	return q.scalar(ctx, a.expr())
}

func (q *QueryBuilder) numericScalar(ctx context.Context, fn, col string) (float64, error) {
	a := newAggregate(fn, col)
	if a.err != nil {
		return 0, a.err
	}
	v, err := q.scalar(ctx, a.expr())
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	f, ok := toFloat64(v)
	if !ok {
		return 0, NewPreconditionError("aggregate %s(%s) returned non-numeric %T", fn, col, v)
	}
	return f, nil
}

// scalar issues SELECT <expr> FROM table [WHERE ...], ignoring projection,
// ordering, limits, grouping and pending aggregates.
func (q *QueryBuilder) scalar(ctx context.Context, expr string) (any, error) {
	if q.err != nil {
		return nil, q.err
	}
	var (
		b      strings.Builder
		params []any
	)
	b.WriteString("SELECT ")
	b.WriteString(expr)
	b.WriteString(" FROM ")
	b.WriteString(q.table.Name())
	if len(q.preds) > 0 {
		b.WriteString(" WHERE ")
		compilePredicates(&b, q.preds, &params)
	}
	rows, err := queryRows(ctx, q.conn, b.String(), params)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	for _, v := range rows[0] {
		return v, nil
	}
	return nil, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case string:
		// SQLite may report SUM over TEXT affinity columns as text.
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Package query implements a SQL-like language over the postings of a
// ledger.
//
//	SELECT account, sum(position) WHERE year(date) = 2024 GROUP BY account
//
// Rows are postings. The optional FROM clause filters the entries the
// postings are taken from and can summarize or truncate them with OPEN ON
// and CLOSE ON.
package query

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/filter"
	"github.com/robinvdvleuten/beanledger/inventory"
	"github.com/robinvdvleuten/beanledger/prices"
	"github.com/robinvdvleuten/beanledger/telemetry"
)

var starColumns = []string{"date", "flag", "payee", "narration", "account", "position"}

type compiledTarget struct {
	name   string
	node   node
	hidden bool
}

type orderKey struct {
	index int
	desc  bool
}

// Query is a compiled query. It can be executed any number of times.
type Query struct {
	text       string
	distinct   bool
	targets    []compiledTarget
	from       node
	open       ast.Date
	close      ast.Date
	where      node
	groupBy    []int
	orderBy    []orderKey
	limit      int
	aggregates []*aggregateNode
}

// String returns the query text.
func (q *Query) String() string {
	return q.text
}

// Compile parses and type checks a query.
func Compile(text string) (*Query, error) {
	text = strings.TrimSuffix(strings.TrimSpace(text), ";")
	stmt, err := queryParser.ParseString("", text)
	if err != nil {
		return nil, fromParseError(err)
	}

	q := &Query{text: text, distinct: stmt.Distinct, limit: -1}
	c := &compiler{postings: true, aggregates: &q.aggregates}

	for _, t := range stmt.Targets {
		if t.Star {
			for _, name := range starColumns {
				def, _ := lookupColumn(name, true)
				q.targets = append(q.targets, compiledTarget{name: name, node: &columnNode{name: name, def: def}})
			}
			continue
		}
		n, err := c.or(t.Expr)
		if err != nil {
			return nil, err
		}
		name := t.Alias
		if name == "" {
			name = n.String()
		}
		q.targets = append(q.targets, compiledTarget{name: name, node: n})
	}

	if stmt.From != nil {
		if stmt.From.Expr != nil {
			from, err := (&compiler{}).or(stmt.From.Expr)
			if err != nil {
				return nil, err
			}
			q.from = from
		}
		if q.open, err = fromDate(stmt.From.Open); err != nil {
			return nil, err
		}
		if q.close, err = fromDate(stmt.From.Close); err != nil {
			return nil, err
		}
	}

	if stmt.Where != nil {
		if q.where, err = (&compiler{postings: true}).or(stmt.Where); err != nil {
			return nil, err
		}
	}

	for _, e := range stmt.GroupBy {
		index, err := q.resolve(e, &compiler{postings: true})
		if err != nil {
			return nil, err
		}
		if hasAggregate(q.targets[index].node) {
			return nil, newCompilationError(e.Pos, "cannot group by aggregate %s", q.targets[index].name)
		}
		q.groupBy = append(q.groupBy, index)
	}

	for _, o := range stmt.OrderBy {
		index, err := q.resolve(o.Expr, c)
		if err != nil {
			return nil, err
		}
		q.orderBy = append(q.orderBy, orderKey{index: index, desc: o.Desc})
	}

	if stmt.Limit != nil {
		q.limit = *stmt.Limit
	}

	if q.aggregated() {
		for i, t := range q.targets {
			if !slices.Contains(q.groupBy, i) && hasFreeColumn(t.node) {
				return nil, newCompilationError(stmt.Pos, "column %s must appear in GROUP BY or be used in an aggregate", t.name)
			}
		}
	}
	return q, nil
}

func fromDate(s string) (ast.Date, error) {
	if s == "" {
		return ast.Date{}, nil
	}
	d, err := ast.NewDate(s)
	if err != nil {
		return ast.Date{}, &CompilationError{Message: "invalid date " + s}
	}
	return d, nil
}

// resolve finds the target a GROUP BY or ORDER BY item refers to: a 1-based
// column ordinal, a target alias or an expression equal to a target. Other
// expressions become hidden targets.
func (q *Query) resolve(e *orExpr, c *compiler) (int, error) {
	if p := bare(e); p != nil {
		if p.Number != nil {
			i, err := strconv.Atoi(*p.Number)
			if err != nil || i < 1 || i > q.visible() {
				return 0, newCompilationError(p.Pos, "invalid column ordinal %s", *p.Number)
			}
			return i - 1, nil
		}
		if p.Column != nil {
			for i, t := range q.targets {
				if !t.hidden && strings.EqualFold(t.name, *p.Column) {
					return i, nil
				}
			}
		}
	}
	n, err := c.or(e)
	if err != nil {
		return 0, err
	}
	for i, t := range q.targets {
		if t.node.String() == n.String() {
			return i, nil
		}
	}
	q.targets = append(q.targets, compiledTarget{name: n.String(), node: n, hidden: true})
	return len(q.targets) - 1, nil
}

// bare returns the single primary e consists of, or nil.
func bare(e *orExpr) *primary {
	if len(e.Right) > 0 || len(e.Left.Right) > 0 || e.Left.Left.Not {
		return nil
	}
	cmp := e.Left.Left.Cmp
	if cmp.Op != "" || len(cmp.Left.Right) > 0 || len(cmp.Left.Left.Right) > 0 {
		return nil
	}
	if u := cmp.Left.Left.Left; !u.Neg {
		return u.Value
	}
	return nil
}

func (q *Query) visible() int {
	n := 0
	for _, t := range q.targets {
		if !t.hidden {
			n++
		}
	}
	return n
}

func (q *Query) aggregated() bool {
	return len(q.aggregates) > 0 || len(q.groupBy) > 0
}

// Columns returns the result columns of the query.
func (q *Query) Columns() []Column {
	var out []Column
	for _, t := range q.targets {
		if !t.hidden {
			out = append(out, Column{Name: t.name, Type: t.node.Type()})
		}
	}
	return out
}

// Run compiles and executes text.
func Run(ctx context.Context, text string, entries []ast.Directive, env *Env) (*Result, error) {
	q, err := Compile(text)
	if err != nil {
		return nil, err
	}
	return q.Execute(ctx, entries, env)
}

type group struct {
	row    rowContext
	states []aggregator
}

// Execute runs the query over entries, which must be sorted.
func (q *Query) Execute(ctx context.Context, entries []ast.Directive, env *Env) (*Result, error) {
	timer := telemetry.FromContext(ctx).Start("query.execute")
	defer timer.End()

	var e Env
	if env != nil {
		e = *env
	}
	if e.Options == nil {
		e.Options = ast.DefaultOptions()
	}
	if e.Prices == nil {
		e.Prices = prices.Build(nil)
	}
	env = &e

	entries, err := q.entries(entries, env)
	if err != nil {
		return nil, err
	}

	var (
		rows   [][]any
		groups []*group
		index  = map[string]*group{}
	)
	balance := inventory.New()
	for _, entry := range entries {
		txn, ok := entry.(*ast.Transaction)
		if !ok {
			continue
		}
		for _, p := range txn.Postings {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			row := rowContext{env: env, entry: txn, posting: p, balance: balance}
			if q.where != nil {
				v, err := q.where.Eval(&row)
				if err != nil {
					return nil, err
				}
				if !truthy(v) {
					continue
				}
			}
			if pos, ok := position(p); ok {
				balance.AddPosition(pos.Units, pos.Cost)
			}

			if !q.aggregated() {
				values, err := q.evaluate(&row)
				if err != nil {
					return nil, err
				}
				rows = append(rows, values)
				continue
			}

			key := make([]any, len(q.groupBy))
			for i, g := range q.groupBy {
				if key[i], err = q.targets[g].node.Eval(&row); err != nil {
					return nil, err
				}
			}
			k := rowKey(key)
			g, ok := index[k]
			if !ok {
				row.balance = balance.Clone()
				g = q.newGroup(row)
				index[k] = g
				groups = append(groups, g)
			}
			if err := q.update(g, &row); err != nil {
				return nil, err
			}
		}
	}

	if q.aggregated() {
		if len(groups) == 0 && len(q.groupBy) == 0 {
			groups = append(groups, q.newGroup(rowContext{env: env, balance: inventory.New()}))
		}
		for _, g := range groups {
			g.row.states = g.states
			values, err := q.evaluate(&g.row)
			if err != nil {
				return nil, err
			}
			rows = append(rows, values)
		}
	}

	rows = q.finish(rows)
	return &Result{Columns: q.Columns(), Rows: rows}, nil
}

// entries applies the FROM clause.
func (q *Query) entries(entries []ast.Directive, env *Env) ([]ast.Directive, error) {
	switch {
	case !q.open.IsZero():
		end := q.close
		if end.IsZero() {
			end = ast.NewDateYMD(9999, 12, 31)
		}
		entries = filter.Clamp(entries, q.open, end, env.Options)
	case !q.close.IsZero():
		var out []ast.Directive
		for _, d := range entries {
			if !d.GetDate().Before(q.close) {
				break
			}
			out = append(out, d)
		}
		entries = out
	}
	if q.from == nil {
		return entries, nil
	}
	var out []ast.Directive
	for _, d := range entries {
		v, err := q.from.Eval(&rowContext{env: env, entry: d})
		if err != nil {
			return nil, err
		}
		if truthy(v) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (q *Query) newGroup(row rowContext) *group {
	g := &group{row: row, states: make([]aggregator, len(q.aggregates))}
	for i, a := range q.aggregates {
		g.states[i] = a.state()
	}
	return g
}

func (q *Query) update(g *group, row *rowContext) error {
	for i, a := range q.aggregates {
		if a.arg == nil {
			g.states[i].update(true)
			continue
		}
		v, err := a.arg.Eval(row)
		if err != nil {
			return err
		}
		g.states[i].update(v)
	}
	return nil
}

func (q *Query) evaluate(row *rowContext) ([]any, error) {
	values := make([]any, len(q.targets))
	for i, t := range q.targets {
		v, err := t.node.Eval(row)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// finish applies DISTINCT, ORDER BY and LIMIT and drops hidden columns.
func (q *Query) finish(rows [][]any) [][]any {
	visible := q.visible()
	if q.distinct {
		seen := map[string]bool{}
		out := rows[:0]
		for _, row := range rows {
			k := rowKey(row[:visible])
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, row)
		}
		rows = out
	}

	if len(q.orderBy) > 0 {
		slices.SortStableFunc(rows, func(a, b []any) int {
			for _, o := range q.orderBy {
				c := compareValues(a[o.index], b[o.index])
				if o.desc {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}

	if q.limit >= 0 && len(rows) > q.limit {
		rows = rows[:q.limit]
	}

	if visible < len(q.targets) {
		for i, row := range rows {
			rows[i] = row[:visible]
		}
	}
	return rows
}

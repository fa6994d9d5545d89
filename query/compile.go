package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/inventory"
)

// node is a compiled expression.
type node interface {
	Type() Type
	Eval(c *rowContext) (any, error)
	String() string
}

type constNode struct {
	typ   Type
	value any
	text  string
}

func (n *constNode) Type() Type                  { return n.typ }
func (n *constNode) Eval(*rowContext) (any, error) { return n.value, nil }
func (n *constNode) String() string              { return n.text }

type columnNode struct {
	name string
	def  columnDef
}

func (n *columnNode) Type() Type                      { return n.def.typ }
func (n *columnNode) Eval(c *rowContext) (any, error) { return n.def.get(c), nil }
func (n *columnNode) String() string                  { return n.name }

type funcNode struct {
	pos  lexer.Position
	name string
	sig  signature
	args []node
}

func (n *funcNode) Type() Type { return n.sig.ret }

func (n *funcNode) Eval(c *rowContext) (any, error) {
	values := make([]any, len(n.args))
	for i, a := range n.args {
		v, err := a.Eval(c)
		if err != nil {
			return nil, err
		}
		if v == nil && !(n.sig.optionalLast && i == len(n.sig.args)-1) && n.sig.args[i] != TypeObject {
			return nil, nil
		}
		values[i] = v
	}
	v, err := n.sig.call(c, values)
	if err != nil {
		return nil, newExecutionError(n.pos, "%s: %s", n.name, err)
	}
	return v, nil
}

func (n *funcNode) String() string {
	args := make([]string, len(n.args))
	for i, a := range n.args {
		args[i] = a.String()
	}
	return n.name + "(" + strings.Join(args, ", ") + ")"
}

// aggregateNode reads the state its group accumulated for it.
type aggregateNode struct {
	name  string
	arg   node
	typ   Type
	index int
	state func() aggregator
}

func (n *aggregateNode) Type() Type { return n.typ }

func (n *aggregateNode) Eval(c *rowContext) (any, error) {
	return c.states[n.index].result(), nil
}

func (n *aggregateNode) String() string {
	if n.arg == nil {
		return n.name + "(*)"
	}
	return n.name + "(" + n.arg.String() + ")"
}

type unaryNode struct {
	op    string
	inner node
	pos   lexer.Position
}

func (n *unaryNode) Type() Type { return n.inner.Type() }

func (n *unaryNode) Eval(c *rowContext) (any, error) {
	v, err := n.inner.Eval(c)
	if err != nil || v == nil {
		if n.op == "NOT" && err == nil {
			return true, nil
		}
		return nil, err
	}
	if n.op == "NOT" {
		return !truthy(v), nil
	}
	return negate(v), nil
}

func (n *unaryNode) String() string {
	if n.op == "NOT" {
		return "NOT " + n.inner.String()
	}
	return "-" + n.inner.String()
}

func negate(v any) any {
	switch x := v.(type) {
	case int64:
		return -x
	case decimal.Decimal:
		return x.Neg()
	case ast.Amount:
		return x.Neg()
	case inventory.Position:
		x.Units = x.Units.Neg()
		return x
	case *inventory.Inventory:
		return x.Neg()
	}
	return v
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case decimal.Decimal:
		return !x.IsZero()
	case string:
		return x != ""
	case []string:
		return len(x) > 0
	case *inventory.Inventory:
		return !x.IsEmpty()
	}
	return true
}

type binaryNode struct {
	op          string
	left, right node
	typ         Type
	pos         lexer.Position
	eval        func(a, b any) (any, error)
}

func (n *binaryNode) Type() Type { return n.typ }

func (n *binaryNode) Eval(c *rowContext) (any, error) {
	a, err := n.left.Eval(c)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "AND":
		if !truthy(a) {
			return false, nil
		}
	case "OR":
		if truthy(a) {
			return true, nil
		}
	}
	b, err := n.right.Eval(c)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "AND", "OR":
		return truthy(b), nil
	}
	if a == nil || b == nil {
		if n.typ == TypeBool {
			return false, nil
		}
		return nil, nil
	}
	v, err := n.eval(a, b)
	if err != nil {
		return nil, newExecutionError(n.pos, "%s", err)
	}
	return v, nil
}

func (n *binaryNode) String() string {
	return n.left.String() + " " + n.op + " " + n.right.String()
}

// compiler turns parse trees into nodes. postings selects the posting
// environment; aggregates collects the aggregate nodes of the query when
// they are allowed.
type compiler struct {
	postings   bool
	aggregates *[]*aggregateNode
}

func (c *compiler) or(e *orExpr) (node, error) {
	left, err := c.and(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Right {
		right, err := c.and(r)
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "OR", left: left, right: right, typ: TypeBool, pos: e.Pos}
	}
	return left, nil
}

func (c *compiler) and(e *andExpr) (node, error) {
	left, err := c.not(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Right {
		right, err := c.not(r)
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "AND", left: left, right: right, typ: TypeBool, pos: e.Pos}
	}
	return left, nil
}

func (c *compiler) not(e *notExpr) (node, error) {
	inner, err := c.cmp(e.Cmp)
	if err != nil {
		return nil, err
	}
	if e.Not {
		return &unaryNode{op: "NOT", inner: &boolView{inner}, pos: e.Pos}, nil
	}
	return inner, nil
}

// boolView presents any node as a boolean for NOT.
type boolView struct{ node }

func (b *boolView) Type() Type { return TypeBool }

func (c *compiler) cmp(e *cmpExpr) (node, error) {
	left, err := c.add(e.Left)
	if err != nil {
		return nil, err
	}
	if e.Op == "" {
		return left, nil
	}
	right, err := c.add(e.Right)
	if err != nil {
		return nil, err
	}
	op := strings.ToUpper(e.Op)
	n := &binaryNode{op: op, left: left, right: right, typ: TypeBool, pos: e.Pos}
	switch op {
	case "~":
		if left.Type() != TypeString && left.Type() != TypeObject {
			return nil, newCompilationError(e.Pos, "operator ~ expects a string, got %s", left.Type())
		}
		n.eval = func(a, b any) (any, error) {
			match, err := compileMatch(FormatValue(b))
			if err != nil {
				return nil, err
			}
			return match(FormatValue(a)), nil
		}
	case "IN":
		if right.Type() != TypeSet && right.Type() != TypeObject {
			return nil, newCompilationError(e.Pos, "operator IN expects a set, got %s", right.Type())
		}
		n.eval = func(a, b any) (any, error) {
			set, _ := b.([]string)
			needle := FormatValue(a)
			for _, s := range set {
				if s == needle {
					return true, nil
				}
			}
			return false, nil
		}
	default:
		lt, rt := left.Type(), right.Type()
		if !comparableTypes(lt, rt) {
			return nil, newCompilationError(e.Pos, "cannot compare %s and %s", lt, rt)
		}
		n.eval = func(a, b any) (any, error) {
			a, b = promote(a, b)
			r := compareValues(a, b)
			switch op {
			case "=":
				return r == 0, nil
			case "!=":
				return r != 0, nil
			case "<":
				return r < 0, nil
			case "<=":
				return r <= 0, nil
			case ">":
				return r > 0, nil
			}
			return r >= 0, nil
		}
	}
	return n, nil
}

func numeric(t Type) bool {
	return t == TypeInt || t == TypeDecimal
}

func comparableTypes(a, b Type) bool {
	return a == b || a == TypeObject || b == TypeObject || (numeric(a) && numeric(b))
}

// promote turns a mixed int and decimal pair into two decimals.
func promote(a, b any) (any, any) {
	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	switch {
	case aInt && !bInt:
		if _, ok := b.(decimal.Decimal); ok {
			return decimal.NewFromInt(ai), b
		}
	case bInt && !aInt:
		if _, ok := a.(decimal.Decimal); ok {
			return a, decimal.NewFromInt(bi)
		}
	}
	return a, b
}

func toDecimal(v any) decimal.Decimal {
	if i, ok := v.(int64); ok {
		return decimal.NewFromInt(i)
	}
	return v.(decimal.Decimal)
}

func (c *compiler) add(e *addExpr) (node, error) {
	left, err := c.mul(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Right {
		right, err := c.mul(r.Right)
		if err != nil {
			return nil, err
		}
		left, err = arithmetic(e.Pos, r.Op, left, right)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (c *compiler) mul(e *mulExpr) (node, error) {
	left, err := c.unary(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Right {
		right, err := c.unary(r.Right)
		if err != nil {
			return nil, err
		}
		left, err = arithmetic(e.Pos, r.Op, left, right)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func arithmetic(pos lexer.Position, op string, left, right node) (node, error) {
	lt, rt := left.Type(), right.Type()
	n := &binaryNode{op: op, left: left, right: right, pos: pos}
	switch {
	case lt == TypeInt && rt == TypeInt && op != "/":
		n.typ = TypeInt
		n.eval = func(a, b any) (any, error) {
			x, y := a.(int64), b.(int64)
			switch op {
			case "+":
				return x + y, nil
			case "-":
				return x - y, nil
			}
			return x * y, nil
		}
	case numeric(lt) && numeric(rt):
		n.typ = TypeDecimal
		n.eval = func(a, b any) (any, error) {
			return decimalOp(op, toDecimal(a), toDecimal(b))
		}
	case lt == TypeAmount && numeric(rt) && (op == "*" || op == "/"):
		n.typ = TypeAmount
		n.eval = func(a, b any) (any, error) {
			amount := a.(ast.Amount)
			number, err := decimalOp(op, amount.Number, toDecimal(b))
			if err != nil {
				return nil, err
			}
			return ast.Amount{Number: number.(decimal.Decimal), Currency: amount.Currency}, nil
		}
	case numeric(lt) && rt == TypeAmount && op == "*":
		n.typ = TypeAmount
		n.eval = func(a, b any) (any, error) {
			amount := b.(ast.Amount)
			return ast.Amount{Number: amount.Number.Mul(toDecimal(a)), Currency: amount.Currency}, nil
		}
	case lt == TypeAmount && rt == TypeAmount && (op == "+" || op == "-"):
		n.typ = TypeAmount
		n.eval = func(a, b any) (any, error) {
			x, y := a.(ast.Amount), b.(ast.Amount)
			if x.Currency != y.Currency {
				return nil, fmt.Errorf("cannot combine %s and %s", x.Currency, y.Currency)
			}
			if op == "-" {
				y = y.Neg()
			}
			return ast.Amount{Number: x.Number.Add(y.Number), Currency: x.Currency}, nil
		}
	case lt == TypeInventory && rt == TypeInventory && (op == "+" || op == "-"):
		n.typ = TypeInventory
		n.eval = func(a, b any) (any, error) {
			out := a.(*inventory.Inventory).Clone()
			other := b.(*inventory.Inventory)
			if op == "-" {
				other = other.Neg()
			}
			out.AddInventory(other)
			return out, nil
		}
	case lt == TypeDate && rt == TypeInt && (op == "+" || op == "-"):
		n.typ = TypeDate
		n.eval = func(a, b any) (any, error) {
			days := int(b.(int64))
			if op == "-" {
				days = -days
			}
			return a.(ast.Date).AddDays(days), nil
		}
	case lt == TypeDate && rt == TypeDate && op == "-":
		n.typ = TypeInt
		n.eval = func(a, b any) (any, error) {
			return int64(b.(ast.Date).DaysUntil(a.(ast.Date))), nil
		}
	default:
		return nil, newCompilationError(pos, "operator %s not supported for %s and %s", op, lt, rt)
	}
	return n, nil
}

func decimalOp(op string, x, y decimal.Decimal) (any, error) {
	switch op {
	case "+":
		return x.Add(y), nil
	case "-":
		return x.Sub(y), nil
	case "*":
		return x.Mul(y), nil
	}
	if y.IsZero() {
		return nil, fmt.Errorf("division by zero")
	}
	return x.Div(y), nil
}

func (c *compiler) unary(e *unaryExpr) (node, error) {
	inner, err := c.primary(e.Value)
	if err != nil {
		return nil, err
	}
	if !e.Neg {
		return inner, nil
	}
	switch inner.Type() {
	case TypeInt, TypeDecimal, TypeAmount, TypePosition, TypeInventory, TypeObject:
	default:
		return nil, newCompilationError(e.Pos, "cannot negate %s", inner.Type())
	}
	if k, ok := inner.(*constNode); ok {
		return &constNode{typ: k.typ, value: negate(k.value), text: "-" + k.text}, nil
	}
	return &unaryNode{op: "-", inner: inner, pos: e.Pos}, nil
}

func (c *compiler) primary(e *primary) (node, error) {
	switch {
	case e.Date != nil:
		d, err := ast.NewDate(*e.Date)
		if err != nil {
			return nil, newCompilationError(e.Pos, "invalid date %s", *e.Date)
		}
		return &constNode{typ: TypeDate, value: d, text: *e.Date}, nil
	case e.Number != nil:
		if !strings.Contains(*e.Number, ".") {
			i, err := strconv.ParseInt(*e.Number, 10, 64)
			if err == nil {
				return &constNode{typ: TypeInt, value: i, text: *e.Number}, nil
			}
		}
		d, err := decimal.NewFromString(*e.Number)
		if err != nil {
			return nil, newCompilationError(e.Pos, "invalid number %s", *e.Number)
		}
		return &constNode{typ: TypeDecimal, value: d, text: *e.Number}, nil
	case e.String != nil:
		return &constNode{typ: TypeString, value: *e.String, text: strconv.Quote(*e.String)}, nil
	case e.True:
		return &constNode{typ: TypeBool, value: true, text: "TRUE"}, nil
	case e.False:
		return &constNode{typ: TypeBool, value: false, text: "FALSE"}, nil
	case e.Null:
		return &constNode{typ: TypeObject, value: nil, text: "NULL"}, nil
	case e.Call != nil:
		return c.call(e.Call)
	case e.Column != nil:
		def, ok := lookupColumn(*e.Column, c.postings)
		if !ok {
			return nil, newCompilationError(e.Pos, "unknown column %q", *e.Column)
		}
		return &columnNode{name: strings.ToLower(*e.Column), def: def}, nil
	case e.Sub != nil:
		return c.or(e.Sub)
	}
	set := make([]string, len(e.Set))
	copy(set, e.Set)
	return &constNode{typ: TypeSet, value: set, text: "{" + strings.Join(e.Set, ", ") + "}"}, nil
}

func (c *compiler) call(e *call) (node, error) {
	name := strings.ToLower(e.Name)
	if agg, ok := aggregates[name]; ok {
		return c.aggregate(e, name, agg)
	}
	sigs, ok := functions[name]
	if !ok {
		return nil, newCompilationError(e.Pos, "unknown function %q", e.Name)
	}
	if e.Star {
		return nil, newCompilationError(e.Pos, "%s does not accept *", name)
	}
	args := make([]node, len(e.Args))
	for i, a := range e.Args {
		n, err := c.or(a)
		if err != nil {
			return nil, err
		}
		args[i] = n
	}
	for _, sig := range sigs {
		if sig.postingOnly && !c.postings {
			continue
		}
		if matches(sig, args) {
			return &funcNode{pos: e.Pos, name: name, sig: sig, args: args}, nil
		}
	}
	types := make([]string, len(args))
	for i, a := range args {
		types[i] = a.Type().String()
	}
	return nil, newCompilationError(e.Pos, "no function %s(%s)", name, strings.Join(types, ", "))
}

func matches(sig signature, args []node) bool {
	n := len(sig.args)
	if len(args) != n && !(sig.optionalLast && len(args) == n-1) {
		return false
	}
	for i, a := range args {
		want, got := sig.args[i], a.Type()
		if want != got && want != TypeObject && got != TypeObject && !(want == TypeDecimal && got == TypeInt) {
			return false
		}
	}
	return true
}

func (c *compiler) aggregate(e *call, name string, spec aggregateSpec) (node, error) {
	if c.aggregates == nil {
		return nil, newCompilationError(e.Pos, "aggregate function %s is not allowed here", name)
	}
	n := &aggregateNode{name: name}
	if e.Star {
		if name != "count" {
			return nil, newCompilationError(e.Pos, "%s does not accept *", name)
		}
	} else {
		if len(e.Args) != 1 {
			return nil, newCompilationError(e.Pos, "%s takes exactly one argument", name)
		}
		inner := &compiler{postings: c.postings}
		arg, err := inner.or(e.Args[0])
		if err != nil {
			return nil, err
		}
		n.arg = arg
	}
	argType := TypeObject
	if n.arg != nil {
		argType = n.arg.Type()
	}
	typ, state, err := spec(argType)
	if err != nil {
		return nil, newCompilationError(e.Pos, "%s", err)
	}
	n.typ = typ
	n.state = state
	n.index = len(*c.aggregates)
	*c.aggregates = append(*c.aggregates, n)
	return n, nil
}

// compileMatch builds a case-insensitive search for pattern.
func compileMatch(pattern string) (func(string) bool, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regular expression %q", pattern)
	}
	return re.MatchString, nil
}

// hasAggregate reports whether n contains an aggregate.
func hasAggregate(n node) bool {
	switch x := n.(type) {
	case *aggregateNode:
		return true
	case *funcNode:
		for _, a := range x.args {
			if hasAggregate(a) {
				return true
			}
		}
	case *binaryNode:
		return hasAggregate(x.left) || hasAggregate(x.right)
	case *unaryNode:
		return hasAggregate(x.inner)
	case *boolView:
		return hasAggregate(x.node)
	}
	return false
}

// hasFreeColumn reports whether n reads a column outside of an aggregate.
func hasFreeColumn(n node) bool {
	switch x := n.(type) {
	case *columnNode:
		return true
	case *funcNode:
		for _, a := range x.args {
			if hasFreeColumn(a) {
				return true
			}
		}
	case *binaryNode:
		return hasFreeColumn(x.left) || hasFreeColumn(x.right)
	case *unaryNode:
		return hasFreeColumn(x.inner)
	case *boolView:
		return hasFreeColumn(x.node)
	}
	return false
}

package query

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/conversion"
	"github.com/robinvdvleuten/beanledger/inventory"
	"github.com/robinvdvleuten/beanledger/prices"
)

// Env is what a query runs against besides the entries.
type Env struct {
	Options *ast.Options
	Prices  *prices.PriceMap
}

// rowContext is the row an expression is evaluated on. posting is nil in
// the FROM clause, where rows are entries.
type rowContext struct {
	env     *Env
	entry   ast.Directive
	posting *ast.Posting
	balance *inventory.Inventory
	states  []aggregator
}

func (c *rowContext) txn() *ast.Transaction {
	txn, _ := c.entry.(*ast.Transaction)
	return txn
}

type columnDef struct {
	typ Type
	get func(c *rowContext) any
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func tagStrings(tags []ast.Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	slices.Sort(out)
	return out
}

func linkStrings(links []ast.Link) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = string(l)
	}
	slices.Sort(out)
	return out
}

// entryColumns are available in every clause.
var entryColumns = map[string]columnDef{
	"id":    {TypeString, func(c *rowContext) any { return ast.Hash(c.entry) }},
	"type":  {TypeString, func(c *rowContext) any { return c.entry.Directive() }},
	"date":  {TypeDate, func(c *rowContext) any { return c.entry.GetDate() }},
	"year":  {TypeInt, func(c *rowContext) any { return int64(c.entry.GetDate().Year()) }},
	"month": {TypeInt, func(c *rowContext) any { return int64(c.entry.GetDate().Month()) }},
	"day":   {TypeInt, func(c *rowContext) any { return int64(c.entry.GetDate().Day()) }},
	"filename": {TypeString, func(c *rowContext) any {
		return nullString(c.entry.Position().Filename)
	}},
	"lineno": {TypeInt, func(c *rowContext) any { return int64(c.entry.Position().Line) }},
	"flag": {TypeString, func(c *rowContext) any {
		if txn := c.txn(); txn != nil {
			return txn.Flag
		}
		return nil
	}},
	"payee": {TypeString, func(c *rowContext) any {
		if txn := c.txn(); txn != nil {
			return nullString(txn.Payee)
		}
		return nil
	}},
	"narration": {TypeString, func(c *rowContext) any {
		if txn := c.txn(); txn != nil {
			return txn.Narration
		}
		return nil
	}},
	"description": {TypeString, func(c *rowContext) any {
		txn := c.txn()
		if txn == nil {
			return nil
		}
		if txn.Payee == "" {
			return txn.Narration
		}
		return txn.Payee + " | " + txn.Narration
	}},
	"tags": {TypeSet, func(c *rowContext) any {
		if txn := c.txn(); txn != nil {
			return tagStrings(txn.Tags)
		}
		return []string{}
	}},
	"links": {TypeSet, func(c *rowContext) any {
		if txn := c.txn(); txn != nil {
			return linkStrings(txn.Links)
		}
		return []string{}
	}},
}

func position(p *ast.Posting) (inventory.Position, bool) {
	if p.Units == nil {
		return inventory.Position{}, false
	}
	return inventory.Position{Units: *p.Units, Cost: p.Lot}, true
}

// postingColumns are available in SELECT, WHERE, GROUP BY and ORDER BY.
var postingColumns = map[string]columnDef{
	"account": {TypeString, func(c *rowContext) any { return c.posting.Account }},
	"posting_flag": {TypeString, func(c *rowContext) any {
		return nullString(c.posting.Flag)
	}},
	"other_accounts": {TypeSet, func(c *rowContext) any {
		var out []string
		for _, p := range c.txn().Postings {
			if p != c.posting && !slices.Contains(out, p.Account) {
				out = append(out, p.Account)
			}
		}
		slices.Sort(out)
		return out
	}},
	"position": {TypePosition, func(c *rowContext) any {
		if pos, ok := position(c.posting); ok {
			return pos
		}
		return nil
	}},
	"units": {TypeAmount, func(c *rowContext) any {
		if c.posting.Units == nil {
			return nil
		}
		return *c.posting.Units
	}},
	"number": {TypeDecimal, func(c *rowContext) any {
		if c.posting.Units == nil {
			return nil
		}
		return c.posting.Units.Number
	}},
	"currency": {TypeString, func(c *rowContext) any {
		if c.posting.Units == nil {
			return nil
		}
		return c.posting.Units.Currency
	}},
	"cost": {TypeAmount, func(c *rowContext) any {
		if pos, ok := position(c.posting); ok && pos.Cost != nil {
			return conversion.Cost(pos)
		}
		return nil
	}},
	"cost_number": {TypeDecimal, func(c *rowContext) any {
		if c.posting.Lot == nil {
			return nil
		}
		return c.posting.Lot.Number
	}},
	"cost_currency": {TypeString, func(c *rowContext) any {
		if c.posting.Lot == nil {
			return nil
		}
		return c.posting.Lot.Currency
	}},
	"cost_date": {TypeDate, func(c *rowContext) any {
		if c.posting.Lot == nil || c.posting.Lot.Date.IsZero() {
			return nil
		}
		return c.posting.Lot.Date
	}},
	"cost_label": {TypeString, func(c *rowContext) any {
		if c.posting.Lot == nil {
			return nil
		}
		return nullString(c.posting.Lot.Label)
	}},
	"price": {TypeAmount, func(c *rowContext) any {
		if c.posting.Price == nil {
			return nil
		}
		return *c.posting.Price
	}},
	"weight": {TypeAmount, func(c *rowContext) any {
		if w, ok := ast.Weight(c.posting); ok {
			return w
		}
		return nil
	}},
	"balance": {TypeInventory, func(c *rowContext) any {
		return c.balance.Clone()
	}},
}

func lookupColumn(name string, postings bool) (columnDef, bool) {
	name = strings.ToLower(name)
	if postings {
		if def, ok := postingColumns[name]; ok {
			return def, true
		}
	}
	def, ok := entryColumns[name]
	return def, ok
}

// signature is one overload of a function.
type signature struct {
	args []Type
	// optionalLast allows the last argument to be omitted.
	optionalLast bool
	ret          Type
	call         func(c *rowContext, args []any) (any, error)
	// postingOnly functions cannot be used in FROM.
	postingOnly bool
}

func amountOf(v any) ast.Amount          { return v.(ast.Amount) }
func positionOf(v any) inventory.Position { return v.(inventory.Position) }
func inventoryOf(v any) *inventory.Inventory {
	return v.(*inventory.Inventory)
}

func dateArg(args []any, i int) ast.Date {
	if i < len(args) && args[i] != nil {
		return args[i].(ast.Date)
	}
	return ast.Date{}
}

func convertInventory(c conversion.Conversion, inv *inventory.Inventory, env *Env, date ast.Date) *inventory.Inventory {
	return conversion.Apply(c, inv, env.Prices, date).Inventory()
}

func metaValue(m ast.Metadata, key string) any {
	if v, ok := m.Get(key); ok {
		return v.String()
	}
	return nil
}

// functions lists the scalar functions by name.
var functions = map[string][]signature{
	"year":  {{args: []Type{TypeDate}, ret: TypeInt, call: func(_ *rowContext, a []any) (any, error) { return int64(a[0].(ast.Date).Year()), nil }}},
	"month": {{args: []Type{TypeDate}, ret: TypeInt, call: func(_ *rowContext, a []any) (any, error) { return int64(a[0].(ast.Date).Month()), nil }}},
	"day":   {{args: []Type{TypeDate}, ret: TypeInt, call: func(_ *rowContext, a []any) (any, error) { return int64(a[0].(ast.Date).Day()), nil }}},
	"quarter": {{args: []Type{TypeDate}, ret: TypeString, call: func(_ *rowContext, a []any) (any, error) {
		d := a[0].(ast.Date)
		return d.Format("2006") + "-Q" + string(rune('0'+(int(d.Month())-1)/3+1)), nil
	}}},
	"length": {
		{args: []Type{TypeSet}, ret: TypeInt, call: func(_ *rowContext, a []any) (any, error) { return int64(len(a[0].([]string))), nil }},
		{args: []Type{TypeString}, ret: TypeInt, call: func(_ *rowContext, a []any) (any, error) { return int64(len(a[0].(string))), nil }},
	},
	"lower": {{args: []Type{TypeString}, ret: TypeString, call: func(_ *rowContext, a []any) (any, error) { return strings.ToLower(a[0].(string)), nil }}},
	"upper": {{args: []Type{TypeString}, ret: TypeString, call: func(_ *rowContext, a []any) (any, error) { return strings.ToUpper(a[0].(string)), nil }}},
	"str":   {{args: []Type{TypeObject}, ret: TypeString, call: func(_ *rowContext, a []any) (any, error) { return FormatValue(a[0]), nil }}},
	"joinstr": {{args: []Type{TypeSet}, ret: TypeString, call: func(_ *rowContext, a []any) (any, error) {
		return strings.Join(a[0].([]string), ","), nil
	}}},
	"parent": {{args: []Type{TypeString}, ret: TypeString, call: func(_ *rowContext, a []any) (any, error) { return nullString(ast.Parent(a[0].(string))), nil }}},
	"leaf":   {{args: []Type{TypeString}, ret: TypeString, call: func(_ *rowContext, a []any) (any, error) { return ast.Leaf(a[0].(string)), nil }}},
	"root": {{args: []Type{TypeString, TypeInt}, ret: TypeString, call: func(_ *rowContext, a []any) (any, error) {
		parts := strings.Split(a[0].(string), ast.Sep)
		n := int(a[1].(int64))
		if n < len(parts) {
			parts = parts[:n]
		}
		return strings.Join(parts, ast.Sep), nil
	}}},
	"abs": {
		{args: []Type{TypeDecimal}, ret: TypeDecimal, call: func(_ *rowContext, a []any) (any, error) { return a[0].(decimal.Decimal).Abs(), nil }},
		{args: []Type{TypeInt}, ret: TypeInt, call: func(_ *rowContext, a []any) (any, error) {
			n := a[0].(int64)
			if n < 0 {
				n = -n
			}
			return n, nil
		}},
	},
	"number":   {{args: []Type{TypeAmount}, ret: TypeDecimal, call: func(_ *rowContext, a []any) (any, error) { return amountOf(a[0]).Number, nil }}},
	"currency": {{args: []Type{TypeAmount}, ret: TypeString, call: func(_ *rowContext, a []any) (any, error) { return amountOf(a[0]).Currency, nil }}},
	"units": {
		{args: []Type{TypePosition}, ret: TypeAmount, call: func(_ *rowContext, a []any) (any, error) { return positionOf(a[0]).Units, nil }},
		{args: []Type{TypeInventory}, ret: TypeInventory, call: func(c *rowContext, a []any) (any, error) {
			return convertInventory(conversion.Units, inventoryOf(a[0]), c.env, ast.Date{}), nil
		}},
	},
	"cost": {
		{args: []Type{TypePosition}, ret: TypeAmount, call: func(_ *rowContext, a []any) (any, error) { return conversion.Cost(positionOf(a[0])), nil }},
		{args: []Type{TypeInventory}, ret: TypeInventory, call: func(c *rowContext, a []any) (any, error) {
			return convertInventory(conversion.AtCost, inventoryOf(a[0]), c.env, ast.Date{}), nil
		}},
	},
	"value": {
		{args: []Type{TypePosition, TypeDate}, optionalLast: true, ret: TypeAmount, call: func(c *rowContext, a []any) (any, error) {
			return conversion.Value(positionOf(a[0]), c.env.Prices, dateArg(a, 1)), nil
		}},
		{args: []Type{TypeInventory, TypeDate}, optionalLast: true, ret: TypeInventory, call: func(c *rowContext, a []any) (any, error) {
			return convertInventory(conversion.AtValue, inventoryOf(a[0]), c.env, dateArg(a, 1)), nil
		}},
	},
	"convert": {
		{args: []Type{TypeAmount, TypeString, TypeDate}, optionalLast: true, ret: TypeAmount, call: func(c *rowContext, a []any) (any, error) {
			amount := amountOf(a[0])
			if got, ok := conversion.Convert(inventory.Position{Units: amount}, a[1].(string), c.env.Prices, dateArg(a, 2)); ok {
				return got, nil
			}
			return amount, nil
		}},
		{args: []Type{TypePosition, TypeString, TypeDate}, optionalLast: true, ret: TypeAmount, call: func(c *rowContext, a []any) (any, error) {
			pos := positionOf(a[0])
			if got, ok := conversion.Convert(pos, a[1].(string), c.env.Prices, dateArg(a, 2)); ok {
				return got, nil
			}
			return pos.Units, nil
		}},
		{args: []Type{TypeInventory, TypeString, TypeDate}, optionalLast: true, ret: TypeInventory, call: func(c *rowContext, a []any) (any, error) {
			return convertInventory(conversion.Target{a[1].(string)}, inventoryOf(a[0]), c.env, dateArg(a, 2)), nil
		}},
	},
	"only": {{args: []Type{TypeString, TypeInventory}, ret: TypeAmount, call: func(_ *rowContext, a []any) (any, error) {
		currency := a[0].(string)
		return ast.Amount{Number: inventoryOf(a[1]).Units(currency), Currency: currency}, nil
	}}},
	"getprice": {{args: []Type{TypeString, TypeString, TypeDate}, optionalLast: true, ret: TypeDecimal, call: func(c *rowContext, a []any) (any, error) {
		rate, ok := c.env.Prices.GetPrice(prices.Pair{Base: a[0].(string), Quote: a[1].(string)}, dateArg(a, 2))
		if !ok {
			return nil, nil
		}
		return rate, nil
	}}},
	"meta": {{args: []Type{TypeString}, ret: TypeString, postingOnly: true, call: func(c *rowContext, a []any) (any, error) {
		if v := metaValue(c.posting.Metadata, a[0].(string)); v != nil {
			return v, nil
		}
		return metaValue(c.entry.GetMetadata(), a[0].(string)), nil
	}}},
	"entry_meta": {{args: []Type{TypeString}, ret: TypeString, call: func(c *rowContext, a []any) (any, error) {
		return metaValue(c.entry.GetMetadata(), a[0].(string)), nil
	}}},
	"has_account": {{args: []Type{TypeString}, ret: TypeBool, call: func(c *rowContext, a []any) (any, error) {
		match, err := compileMatch(a[0].(string))
		if err != nil {
			return nil, err
		}
		for _, account := range ast.Accounts(c.entry) {
			if match(account) {
				return true, nil
			}
		}
		return false, nil
	}}},
}

package filter

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/beanledger/ast"
)

// AdvancedFilter keeps entries matching an expression such as
//
//	#trip -#work payee:"^Shop" , any(account:"Food" >100)
//
// Atoms are tags (#tag), links (^link), key:"regex" matches on attributes
// and metadata, key>number comparisons, bare strings matched against
// narration, payee and comment, bare comparisons (>100) against posting
// amounts, and any(...) / all(...) over postings. Juxtaposition is AND, a
// comma is OR and a leading minus is NOT; NOT binds tightest and OR loosest.
type AdvancedFilter struct {
	Value   string
	include predicate
}

// predicate is evaluated against an entry or, inside any() and all(), a
// posting.
type predicate func(obj any) bool

// NewAdvancedFilter parses value.
func NewAdvancedFilter(value string) (*AdvancedFilter, error) {
	tokens, err := lex(value)
	if err != nil {
		return nil, NewFilterError("filter", "%s%s", err.Error(), value)
	}
	p := &filterParser{tokens: tokens}
	include, ok := p.parse()
	if !ok {
		return nil, NewFilterError("filter", "Failed to parse filter: %s", value)
	}
	return &AdvancedFilter{Value: value, include: include}, nil
}

func (f *AdvancedFilter) Apply(entries []ast.Directive) []ast.Directive {
	out := make([]ast.Directive, 0, len(entries))
	for _, d := range entries {
		if f.include(d) {
			out = append(out, d)
		}
	}
	return out
}

func (f *AdvancedFilter) String() string {
	return f.Value
}

type tokenType int

const (
	tokEOF tokenType = iota
	tokLink
	tokTag
	tokAll
	tokAny
	tokKey
	tokEqOp
	tokCmpOp
	tokNumber
	tokString
	tokLiteral
)

type token struct {
	typ   tokenType
	value string
}

type lexRule struct {
	typ tokenType
	re  *regexp.Regexp
}

var lexRules = []lexRule{
	{tokLink, regexp.MustCompile(`^\^[A-Za-z0-9\-_/.]+`)},
	{tokTag, regexp.MustCompile(`^#[A-Za-z0-9\-_/.]+`)},
	{tokAll, regexp.MustCompile(`^all\(`)},
	{tokAny, regexp.MustCompile(`^any\(`)},
	{tokKey, regexp.MustCompile(`^[a-z][a-zA-Z0-9\-_]+`)},
	{tokEqOp, regexp.MustCompile(`^:`)},
	{tokCmpOp, regexp.MustCompile(`^(>=|<=|=|<|>)`)},
	{tokNumber, regexp.MustCompile(`^\d*\.?\d+`)},
	{tokString, regexp.MustCompile(`^(?:\w[-\w]*|"[^"]*"|'[^']*')`)},
}

var keyFollowRe = regexp.MustCompile(`^\s*(:|=|>=|<=|<|>)`)

type illegalCharError struct {
	char byte
}

func (e *illegalCharError) Error() string {
	return `Illegal character "` + string(e.char) + `" in filter: `
}

func lex(s string) ([]token, error) {
	var tokens []token
	pos := 0
	for pos < len(s) {
		c := s[pos]
		if c == ' ' || c == '\t' {
			pos++
			continue
		}
		matched := false
		for _, rule := range lexRules {
			m := rule.re.FindString(s[pos:])
			if m == "" {
				continue
			}
			if rule.typ == tokKey && !keyFollowRe.MatchString(s[pos+len(m):]) {
				continue
			}
			pos += len(m)
			tokens = append(tokens, makeToken(rule.typ, m))
			matched = true
			break
		}
		if matched {
			continue
		}
		if strings.IndexByte("-,()", c) >= 0 {
			tokens = append(tokens, token{typ: tokLiteral, value: string(c)})
			pos++
			continue
		}
		return nil, &illegalCharError{char: c}
	}
	return tokens, nil
}

func makeToken(typ tokenType, value string) token {
	switch typ {
	case tokLink, tokTag:
		value = value[1:]
	case tokString:
		if value[0] == '"' || value[0] == '\'' {
			value = value[1 : len(value)-1]
		}
	}
	return token{typ: typ, value: value}
}

type filterParser struct {
	tokens []token
	pos    int
}

func (p *filterParser) peek() token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return token{typ: tokEOF}
}

func (p *filterParser) next() token {
	t := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *filterParser) literal(s string) bool {
	t := p.peek()
	return t.typ == tokLiteral && t.value == s
}

func (p *filterParser) parse() (predicate, bool) {
	if len(p.tokens) == 0 {
		return nil, false
	}
	expr, ok := p.or()
	if !ok || p.peek().typ != tokEOF {
		return nil, false
	}
	return expr, true
}

func (p *filterParser) or() (predicate, bool) {
	left, ok := p.and()
	if !ok {
		return nil, false
	}
	for p.literal(",") {
		p.next()
		right, ok := p.and()
		if !ok {
			return nil, false
		}
		l := left
		left = func(obj any) bool { return l(obj) || right(obj) }
	}
	return left, true
}

func (p *filterParser) and() (predicate, bool) {
	left, ok := p.unary()
	if !ok {
		return nil, false
	}
	for p.startsExpr() {
		right, ok := p.unary()
		if !ok {
			return nil, false
		}
		l := left
		left = func(obj any) bool { return l(obj) && right(obj) }
	}
	return left, true
}

func (p *filterParser) startsExpr() bool {
	t := p.peek()
	switch t.typ {
	case tokEOF, tokEqOp, tokNumber:
		return false
	case tokLiteral:
		return t.value == "-" || t.value == "("
	}
	return true
}

func (p *filterParser) unary() (predicate, bool) {
	if p.literal("-") {
		p.next()
		inner, ok := p.unary()
		if !ok {
			return nil, false
		}
		return func(obj any) bool { return !inner(obj) }, true
	}
	return p.primary()
}

func (p *filterParser) primary() (predicate, bool) {
	t := p.next()
	switch t.typ {
	case tokLiteral:
		if t.value != "(" {
			return nil, false
		}
		inner, ok := p.or()
		if !ok || !p.literal(")") {
			return nil, false
		}
		p.next()
		return inner, true
	case tokAny, tokAll:
		inner, ok := p.or()
		if !ok || !p.literal(")") {
			return nil, false
		}
		p.next()
		return overPostings(inner, t.typ == tokAll), true
	case tokTag:
		return matchTag(ast.Tag(t.value)), true
	case tokLink:
		return matchLink(ast.Link(t.value)), true
	case tokString:
		return matchText(newMatcher(t.value)), true
	case tokKey:
		op := p.next()
		switch op.typ {
		case tokEqOp:
			value := p.next()
			if value.typ != tokString {
				return nil, false
			}
			return matchKey(t.value, newMatcher(value.value)), true
		case tokCmpOp:
			cmp, ok := p.comparison(op.value)
			if !ok {
				return nil, false
			}
			return matchKeyNumber(t.value, cmp), true
		}
		return nil, false
	case tokCmpOp:
		cmp, ok := p.comparison(t.value)
		if !ok {
			return nil, false
		}
		return matchUnits(cmp), true
	}
	return nil, false
}

func (p *filterParser) comparison(op string) (func(decimal.Decimal) bool, bool) {
	t := p.next()
	if t.typ != tokNumber {
		return nil, false
	}
	value, err := decimal.NewFromString(t.value)
	if err != nil {
		return nil, false
	}
	return func(x decimal.Decimal) bool {
		x = x.Abs()
		switch op {
		case "=":
			return x.Equal(value)
		case ">=":
			return x.GreaterThanOrEqual(value)
		case "<=":
			return x.LessThanOrEqual(value)
		case ">":
			return x.GreaterThan(value)
		}
		return x.LessThan(value)
	}, true
}

func overPostings(inner predicate, all bool) predicate {
	return func(obj any) bool {
		txn, ok := obj.(*ast.Transaction)
		if !ok {
			return all
		}
		for _, posting := range txn.Postings {
			if inner(posting) != all {
				return !all
			}
		}
		return all
	}
}

func tagsAndLinks(obj any) ([]ast.Tag, []ast.Link) {
	switch e := obj.(type) {
	case *ast.Transaction:
		return e.Tags, e.Links
	case *ast.Document:
		return e.Tags, e.Links
	}
	return nil, nil
}

func matchTag(tag ast.Tag) predicate {
	return func(obj any) bool {
		tags, _ := tagsAndLinks(obj)
		for _, t := range tags {
			if t == tag {
				return true
			}
		}
		return false
	}
}

func matchLink(link ast.Link) predicate {
	return func(obj any) bool {
		_, links := tagsAndLinks(obj)
		for _, l := range links {
			if l == link {
				return true
			}
		}
		return false
	}
}

func matchText(match matcher) predicate {
	return func(obj any) bool {
		switch e := obj.(type) {
		case *ast.Transaction:
			return (e.Narration != "" && match(e.Narration)) || (e.Payee != "" && match(e.Payee))
		case *ast.Note:
			return e.Comment != "" && match(e.Comment)
		}
		return false
	}
}

// attribute returns the named field of an entry or posting.
func attribute(obj any, key string) (string, bool) {
	switch e := obj.(type) {
	case *ast.Posting:
		switch key {
		case "account":
			return e.Account, true
		case "flag":
			return e.Flag, true
		case "units":
			if e.Units == nil {
				return "", true
			}
			return e.Units.String(), true
		}
		return "", false
	case *ast.Transaction:
		switch key {
		case "payee":
			return e.Payee, true
		case "narration":
			return e.Narration, true
		case "flag":
			return e.Flag, true
		}
	case *ast.Note:
		if key == "comment" {
			return e.Comment, true
		}
	case *ast.Event:
		switch key {
		case "type":
			return e.Type, true
		case "description":
			return e.Description, true
		}
	case *ast.Document:
		if key == "filename" {
			return e.Filename, true
		}
	}
	if d, ok := obj.(ast.Directive); ok {
		if key == "date" {
			return d.GetDate().String(), true
		}
		if accounts := ast.Accounts(d); key == "account" && len(accounts) == 1 {
			return accounts[0], true
		}
	}
	return "", false
}

func metadata(obj any) ast.Metadata {
	switch e := obj.(type) {
	case *ast.Posting:
		return e.Metadata
	case ast.Directive:
		return e.GetMetadata()
	}
	return ast.Metadata{}
}

func matchKey(key string, match matcher) predicate {
	return func(obj any) bool {
		if v, ok := attribute(obj, key); ok {
			return match(v)
		}
		if v, ok := metadata(obj).Get(key); ok {
			return match(v.String())
		}
		return false
	}
}

func matchKeyNumber(key string, cmp func(decimal.Decimal) bool) predicate {
	return func(obj any) bool {
		if posting, ok := obj.(*ast.Posting); ok && key == "units" {
			return posting.Units != nil && cmp(posting.Units.Number)
		}
		v, ok := metadata(obj).Get(key)
		if !ok {
			return false
		}
		switch v.Kind {
		case ast.MetaNumber:
			return cmp(v.Number)
		case ast.MetaAmount:
			return cmp(v.Amount.Number)
		}
		return false
	}
}

func matchUnits(cmp func(decimal.Decimal) bool) predicate {
	return func(obj any) bool {
		txn, ok := obj.(*ast.Transaction)
		if !ok {
			return false
		}
		for _, p := range txn.Postings {
			if p.Units != nil && cmp(p.Units.Number) {
				return true
			}
		}
		return false
	}
}

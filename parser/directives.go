package parser

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/beanledger/ast"
)

// parseDated parses a directive that begins with a date, including its
// indented metadata (and postings, for transactions).
func (p *Parser) parseDated() error {
	dateTok := p.advance()
	date, err := p.parseDateToken(dateTok)
	if err != nil {
		return err
	}
	pos := p.position(dateTok)

	var d ast.Directive
	kw := p.cur()
	switch kw.Type {
	case OPEN:
		p.advance()
		d, err = p.parseOpen(pos, date)
	case CLOSE:
		p.advance()
		d, err = p.parseClose(pos, date)
	case COMMODITY:
		p.advance()
		d, err = p.parseCommodity(pos, date)
	case BALANCE:
		p.advance()
		d, err = p.parseBalance(pos, date)
	case PAD:
		p.advance()
		d, err = p.parsePad(pos, date)
	case NOTE:
		p.advance()
		d, err = p.parseNote(pos, date)
	case DOCUMENT:
		p.advance()
		d, err = p.parseDocument(pos, date)
	case EVENT:
		p.advance()
		d, err = p.parseEvent(pos, date)
	case QUERY:
		p.advance()
		d, err = p.parseQuery(pos, date)
	case PRICE:
		p.advance()
		d, err = p.parsePrice(pos, date)
	case CUSTOM:
		p.advance()
		d, err = p.parseCustom(pos, date)
	default:
		flag, ok := p.flag(kw)
		if !ok {
			return p.errorAtToken(kw, "expected directive keyword or flag after date, got %s", p.describe(kw))
		}
		p.advance()
		d, err = p.parseTransaction(pos, date, flag)
	}
	if err != nil {
		return err
	}

	p.applyPushedMeta(d)
	p.result.Directives = append(p.result.Directives, d)
	return nil
}

// flag reports whether tok is a transaction or posting flag: '*', '!',
// txn, or a single capital letter.
func (p *Parser) flag(tok Token) (string, bool) {
	switch tok.Type {
	case ASTERISK:
		return ast.FlagOkay, true
	case EXCLAIM:
		return ast.FlagWarning, true
	case TXN:
		return ast.FlagOkay, true
	case IDENT:
		if tok.Len() == 1 {
			if c := p.source[tok.Start]; c >= 'A' && c <= 'Z' {
				return string(c), true
			}
		}
	}
	return "", false
}

func (p *Parser) applyPushedMeta(d ast.Directive) {
	if len(p.meta) == 0 {
		return
	}
	m := metadataOf(d)
	for _, pm := range p.meta {
		if !m.Has(pm.entry.Key) {
			m.Set(pm.entry.Key, pm.entry.Value)
		}
	}
}

// metadataOf returns a pointer to the metadata embedded in d.
func metadataOf(d ast.Directive) *ast.Metadata {
	switch e := d.(type) {
	case *ast.Open:
		return &e.Metadata
	case *ast.Close:
		return &e.Metadata
	case *ast.Commodity:
		return &e.Metadata
	case *ast.Balance:
		return &e.Metadata
	case *ast.Pad:
		return &e.Metadata
	case *ast.Note:
		return &e.Metadata
	case *ast.Document:
		return &e.Metadata
	case *ast.Event:
		return &e.Metadata
	case *ast.Query:
		return &e.Metadata
	case *ast.Price:
		return &e.Metadata
	case *ast.Custom:
		return &e.Metadata
	case *ast.Transaction:
		return &e.Metadata
	}
	return &ast.Metadata{}
}

func (p *Parser) parseOpen(pos ast.Position, date ast.Date) (*ast.Open, error) {
	account, err := p.expectAccount()
	if err != nil {
		return nil, err
	}
	open := &ast.Open{Pos: pos, Date: date, Account: account}

	for p.check(IDENT) {
		open.Currencies = append(open.Currencies, p.internToken(p.advance()))
		if !p.check(COMMA) {
			break
		}
		p.advance()
		if !p.check(IDENT) {
			return nil, p.errorAtToken(p.cur(), "expected currency after ',', got %s", p.describe(p.cur()))
		}
	}

	if p.check(STRING) {
		tok := p.cur()
		s, err := p.expectString()
		if err != nil {
			return nil, err
		}
		method, err := ast.ParseBookingMethod(s)
		if err != nil {
			return nil, p.errorAtToken(tok, "%s", err)
		}
		open.BookingMethod = method
	}

	if err := p.endOfLine(); err != nil {
		return nil, err
	}
	return open, p.parseMetadataBlock(&open.Metadata)
}

func (p *Parser) parseClose(pos ast.Position, date ast.Date) (*ast.Close, error) {
	account, err := p.expectAccount()
	if err != nil {
		return nil, err
	}
	if err := p.endOfLine(); err != nil {
		return nil, err
	}
	c := &ast.Close{Pos: pos, Date: date, Account: account}
	return c, p.parseMetadataBlock(&c.Metadata)
}

func (p *Parser) parseCommodity(pos ast.Position, date ast.Date) (*ast.Commodity, error) {
	tok, err := p.expect(IDENT, "expected currency")
	if err != nil {
		return nil, err
	}
	if err := p.endOfLine(); err != nil {
		return nil, err
	}
	c := &ast.Commodity{Pos: pos, Date: date, Currency: p.internToken(tok)}
	return c, p.parseMetadataBlock(&c.Metadata)
}

// parseBalance parses `ACCOUNT NUMBER [~ TOLERANCE] CURRENCY`.
func (p *Parser) parseBalance(pos ast.Position, date ast.Date) (*ast.Balance, error) {
	account, err := p.expectAccount()
	if err != nil {
		return nil, err
	}
	number, simple, err := p.parseNumberExpr()
	if err != nil {
		return nil, err
	}
	b := &ast.Balance{Pos: pos, Date: date, Account: account}
	if p.check(TILDE) {
		p.advance()
		tol, _, err := p.parseNumberExpr()
		if err != nil {
			return nil, err
		}
		b.Tolerance = &tol
	}
	cur, err := p.expect(IDENT, "expected currency")
	if err != nil {
		return nil, err
	}
	b.Amount = ast.Amount{Number: number, Currency: p.internToken(cur)}
	if simple {
		p.result.DisplayContext.Update(number, b.Amount.Currency)
	}
	if err := p.endOfLine(); err != nil {
		return nil, err
	}
	return b, p.parseMetadataBlock(&b.Metadata)
}

func (p *Parser) parsePad(pos ast.Position, date ast.Date) (*ast.Pad, error) {
	account, err := p.expectAccount()
	if err != nil {
		return nil, err
	}
	source, err := p.expectAccount()
	if err != nil {
		return nil, err
	}
	if err := p.endOfLine(); err != nil {
		return nil, err
	}
	pad := &ast.Pad{Pos: pos, Date: date, Account: account, Source: source}
	return pad, p.parseMetadataBlock(&pad.Metadata)
}

func (p *Parser) parseNote(pos ast.Position, date ast.Date) (*ast.Note, error) {
	account, err := p.expectAccount()
	if err != nil {
		return nil, err
	}
	comment, err := p.expectString()
	if err != nil {
		return nil, err
	}
	// Tags and links on notes are accepted and dropped.
	for p.check(TAG) || p.check(LINK) {
		p.advance()
	}
	if err := p.endOfLine(); err != nil {
		return nil, err
	}
	n := &ast.Note{Pos: pos, Date: date, Account: account, Comment: comment}
	return n, p.parseMetadataBlock(&n.Metadata)
}

func (p *Parser) parseDocument(pos ast.Position, date ast.Date) (*ast.Document, error) {
	account, err := p.expectAccount()
	if err != nil {
		return nil, err
	}
	filename, err := p.expectString()
	if err != nil {
		return nil, err
	}
	doc := &ast.Document{Pos: pos, Date: date, Account: account, Filename: filename}
	doc.Tags, doc.Links = p.parseTagsLinks(doc.Tags, doc.Links)
	if err := p.endOfLine(); err != nil {
		return nil, err
	}
	return doc, p.parseMetadataBlock(&doc.Metadata)
}

func (p *Parser) parseEvent(pos ast.Position, date ast.Date) (*ast.Event, error) {
	typ, err := p.expectString()
	if err != nil {
		return nil, err
	}
	desc, err := p.expectString()
	if err != nil {
		return nil, err
	}
	if err := p.endOfLine(); err != nil {
		return nil, err
	}
	e := &ast.Event{Pos: pos, Date: date, Type: typ, Description: desc}
	return e, p.parseMetadataBlock(&e.Metadata)
}

func (p *Parser) parseQuery(pos ast.Position, date ast.Date) (*ast.Query, error) {
	name, err := p.expectString()
	if err != nil {
		return nil, err
	}
	q, err := p.expectString()
	if err != nil {
		return nil, err
	}
	if err := p.endOfLine(); err != nil {
		return nil, err
	}
	query := &ast.Query{Pos: pos, Date: date, Name: name, QueryString: q}
	return query, p.parseMetadataBlock(&query.Metadata)
}

func (p *Parser) parsePrice(pos ast.Position, date ast.Date) (*ast.Price, error) {
	cur, err := p.expect(IDENT, "expected currency")
	if err != nil {
		return nil, err
	}
	amount, err := p.parseAmount()
	if err != nil {
		return nil, err
	}
	if err := p.endOfLine(); err != nil {
		return nil, err
	}
	price := &ast.Price{Pos: pos, Date: date, Currency: p.internToken(cur), Amount: amount}
	return price, p.parseMetadataBlock(&price.Metadata)
}

// parseCustom parses `"type" VALUE*` where values are strings, dates,
// booleans, accounts, numbers or amounts.
func (p *Parser) parseCustom(pos ast.Position, date ast.Date) (*ast.Custom, error) {
	typ, err := p.expectString()
	if err != nil {
		return nil, err
	}
	c := &ast.Custom{Pos: pos, Date: date, Type: typ}
	for !p.check(EOF) {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		c.Values = append(c.Values, v)
	}
	return c, p.parseMetadataBlock(&c.Metadata)
}

// parseMetadataBlock reads `key: value` lines indented under an entry.
func (p *Parser) parseMetadataBlock(m *ast.Metadata) error {
	for p.nextLine() {
		tok := p.cur()
		entry, ok, err := p.parseMetaEntry()
		if err != nil {
			return err
		}
		if !ok {
			return p.errorAtToken(tok, "expected metadata key, got %s", p.describe(tok))
		}
		if err := p.endOfLine(); err != nil {
			return err
		}
		m.Set(entry.Key, entry.Value)
	}
	return nil
}

// isMetaKey reports whether the current line continues with `key:` where
// key starts with a lowercase letter. Keys may spell keywords.
func (p *Parser) isMetaKey() bool {
	tok := p.cur()
	if tok.Type != IDENT && !tok.Type.IsKeyword() {
		return false
	}
	if c := p.source[tok.Start]; c < 'a' || c > 'z' {
		return false
	}
	next := p.peekAhead(1)
	return next.Type == COLON && next.Start == tok.End
}

// parseMetaEntry parses `key: value`. ok is false when the line does not
// start with a key.
func (p *Parser) parseMetaEntry() (entry ast.MetaEntry, ok bool, err error) {
	if !p.isMetaKey() {
		return entry, false, nil
	}
	entry.Key = p.internToken(p.advance())
	p.advance() // ':'
	if p.check(EOF) {
		entry.Value = ast.StringValue("")
		return entry, true, nil
	}
	entry.Value, err = p.parseValue()
	return entry, true, err
}

// parseValue parses a single typed value.
func (p *Parser) parseValue() (ast.MetaValue, error) {
	tok := p.cur()
	switch tok.Type {
	case STRING:
		s, err := p.expectString()
		return ast.StringValue(s), err
	case DATE:
		p.advance()
		d, err := p.parseDateToken(tok)
		return ast.DateValue(d), err
	case ACCOUNT:
		p.advance()
		return ast.AccountValue(p.internToken(tok)), nil
	case TAG:
		p.advance()
		return ast.MetaValue{Kind: ast.MetaTag, Str: string(p.tagValue(tok))}, nil
	case LINK:
		p.advance()
		return ast.MetaValue{Kind: ast.MetaLink, Str: string(p.tagValue(tok))}, nil
	case IDENT:
		p.advance()
		switch s := tok.String(p.source); s {
		case "TRUE":
			return ast.BoolValue(true), nil
		case "FALSE":
			return ast.BoolValue(false), nil
		default:
			return ast.MetaValue{Kind: ast.MetaCurrency, Str: p.interner.Intern(s)}, nil
		}
	}

	if !p.isExpressionStart() {
		return ast.MetaValue{}, p.errorAtToken(tok, "unexpected %s", p.describe(tok))
	}
	number, simple, err := p.parseNumberExpr()
	if err != nil {
		return ast.MetaValue{}, err
	}
	if p.check(IDENT) {
		a := ast.Amount{Number: number, Currency: p.internToken(p.advance())}
		if simple {
			p.result.DisplayContext.Update(number, a.Currency)
		}
		return ast.AmountValue(a), nil
	}
	return ast.NumberValue(number), nil
}

// parseAmount parses `EXPR CURRENCY` and records the number's precision.
func (p *Parser) parseAmount() (ast.Amount, error) {
	number, simple, err := p.parseNumberExpr()
	if err != nil {
		return ast.Amount{}, err
	}
	cur, err := p.expect(IDENT, "expected currency")
	if err != nil {
		return ast.Amount{}, err
	}
	a := ast.Amount{Number: number, Currency: p.internToken(cur)}
	if simple {
		p.result.DisplayContext.Update(number, a.Currency)
	}
	return a, nil
}

// parseNumberExpr evaluates an arithmetic expression. simple is true when
// the number was written literally (optionally signed), in which case its
// precision is meaningful for display.
func (p *Parser) parseNumberExpr() (d decimal.Decimal, simple bool, err error) {
	if !p.isExpressionStart() {
		tok := p.cur()
		return decimal.Zero, false, p.errorAtToken(tok, "expected number, got %s", p.describe(tok))
	}
	start := p.pos
	d, err = p.parseExpression()
	if err != nil {
		return decimal.Zero, false, err
	}
	n := p.pos - start
	simple = n == 1 || (n == 2 && (p.tokens[start].Type == MINUS || p.tokens[start].Type == PLUS))
	return d, simple, nil
}

func (p *Parser) parseTagsLinks(tags []ast.Tag, links []ast.Link) ([]ast.Tag, []ast.Link) {
	for {
		switch tok := p.cur(); tok.Type {
		case TAG:
			p.advance()
			tags = append(tags, p.tagValue(tok))
		case LINK:
			p.advance()
			links = append(links, ast.Link(p.tagValue(tok)))
		default:
			return tags, links
		}
	}
}

func (p *Parser) expectAccount() (string, error) {
	tok, err := p.expect(ACCOUNT, "expected account")
	if err != nil {
		return "", err
	}
	return p.internToken(tok), nil
}

func (p *Parser) expectString() (string, error) {
	tok, err := p.expect(STRING, "expected string")
	if err != nil {
		return "", err
	}
	raw := tok.String(p.source)
	if !terminated(raw) {
		return "", p.errorAtToken(tok, "unterminated string")
	}
	return unquote(raw[1 : len(raw)-1]), nil
}

// terminated reports whether a STRING token ends with an unescaped quote.
func terminated(raw string) bool {
	if len(raw) < 2 || raw[len(raw)-1] != '"' {
		return false
	}
	backslashes := 0
	for i := len(raw) - 2; i > 0 && raw[i] == '\\'; i-- {
		backslashes++
	}
	return backslashes%2 == 0
}

// unquote resolves backslash escapes.
func unquote(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func (p *Parser) parseDateToken(tok Token) (ast.Date, error) {
	s := tok.String(p.source)
	if s[4] == '/' {
		s = strings.ReplaceAll(s, "/", "-")
	}
	d, err := ast.NewDate(s)
	if err != nil {
		return ast.Date{}, p.errorAtToken(tok, "invalid date %q", tok.String(p.source))
	}
	return d, nil
}

// tagValue strips the leading # or ^.
func (p *Parser) tagValue(tok Token) ast.Tag {
	return ast.Tag(p.interner.InternBytes(p.source[tok.Start+1 : tok.End]))
}

func (p *Parser) internToken(tok Token) string {
	return p.interner.InternBytes(tok.Bytes(p.source))
}

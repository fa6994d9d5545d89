package parser

import (
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/beanledger/ast"
)

// parseTransaction parses the header after the flag:
//
//	[PAYEE] [NARRATION] (#tag | ^link)*
//
// followed by indented metadata and posting lines. With a single string it
// is the narration.
func (p *Parser) parseTransaction(pos ast.Position, date ast.Date, flag string) (*ast.Transaction, error) {
	txn := &ast.Transaction{Pos: pos, Date: date, Flag: flag}

	var strs []string
	for p.check(STRING) {
		tok := p.cur()
		s, err := p.expectString()
		if err != nil {
			return nil, err
		}
		if len(strs) == 2 {
			return nil, p.errorAtToken(tok, "too many strings in transaction header")
		}
		strs = append(strs, s)
	}
	switch len(strs) {
	case 1:
		txn.Narration = strs[0]
	case 2:
		txn.Payee, txn.Narration = strs[0], strs[1]
	}

	txn.Tags, txn.Links = p.parseTagsLinks(txn.Tags, txn.Links)
	if err := p.endOfLine(); err != nil {
		return nil, err
	}
	for _, t := range p.tags {
		if !txn.HasTag(t.tag) {
			txn.Tags = append(txn.Tags, t.tag)
		}
	}

	var last *ast.Posting
	for p.nextLine() {
		tok := p.cur()
		switch {
		case p.isMetaKey():
			entry, _, err := p.parseMetaEntry()
			if err != nil {
				return nil, err
			}
			if last != nil {
				last.Metadata.Set(entry.Key, entry.Value)
			} else {
				txn.Metadata.Set(entry.Key, entry.Value)
			}

		case tok.Type == TAG || tok.Type == LINK:
			txn.Tags, txn.Links = p.parseTagsLinks(txn.Tags, txn.Links)

		default:
			posting, err := p.parsePosting()
			if err != nil {
				return nil, err
			}
			txn.Postings = append(txn.Postings, posting)
			last = posting
		}
		if err := p.endOfLine(); err != nil {
			return nil, err
		}
	}

	return txn, nil
}

// parsePosting parses one posting line:
//
//	[FLAG] ACCOUNT [AMOUNT] [COST] [@ PRICE | @@ TOTAL]
func (p *Parser) parsePosting() (*ast.Posting, error) {
	first := p.cur()
	posting := &ast.Posting{Pos: p.position(first)}

	if flag, ok := p.flag(first); ok && first.Type != TXN {
		p.advance()
		posting.Flag = flag
	}

	tok := p.cur()
	if tok.Type != ACCOUNT {
		return nil, p.errorAtToken(tok, "expected posting account, got %s", p.describe(tok))
	}
	posting.Account = p.internToken(p.advance())

	if p.isExpressionStart() {
		units, err := p.parseAmount()
		if err != nil {
			return nil, err
		}
		posting.Units = &units
	}

	if p.check(LBRACE) || p.check(LDBRACE) {
		cost, err := p.parseCostSpec()
		if err != nil {
			return nil, err
		}
		posting.Cost = cost
	}

	if p.check(AT) || p.check(ATAT) {
		total := p.advance().Type == ATAT
		price, err := p.parseAmount()
		if err != nil {
			return nil, err
		}
		if !total {
			posting.Price = &price
		} else {
			posting.TotalPrice = &price
			if posting.Units != nil && !posting.Units.Number.IsZero() {
				per := ast.Amount{Number: price.Number.Div(posting.Units.Number.Abs()), Currency: price.Currency}
				posting.Price = &per
			}
		}
	}

	return posting, nil
}

// parseCostSpec parses {…} or {{…}}. Components are comma separated and may
// appear in any order: a number with optional currency, a date, a label
// and '*' to merge lots. {PER # TOTAL CUR} combines both forms.
func (p *Parser) parseCostSpec() (*ast.CostSpec, error) {
	open := p.advance()
	total := open.Type == LDBRACE
	closer := RBRACE
	if total {
		closer = RDBRACE
	}

	spec := &ast.CostSpec{}
	for !p.check(closer) {
		tok := p.cur()
		switch {
		case p.isExpressionStart():
			n, _, err := p.parseNumberExpr()
			if err != nil {
				return nil, err
			}
			if total {
				spec.NumberTotal = &n
			} else {
				spec.NumberPer = &n
			}
			if p.check(TAG) && p.cur().Len() == 1 {
				p.advance()
				t, _, err := p.parseNumberExpr()
				if err != nil {
					return nil, err
				}
				spec.NumberTotal = &t
			}
			if p.check(IDENT) {
				spec.Currency = p.internToken(p.advance())
			}
		case tok.Type == IDENT:
			spec.Currency = p.internToken(p.advance())
		case tok.Type == DATE:
			p.advance()
			d, err := p.parseDateToken(tok)
			if err != nil {
				return nil, err
			}
			spec.Date = d
		case tok.Type == STRING:
			s, err := p.expectString()
			if err != nil {
				return nil, err
			}
			spec.Label = s
		case tok.Type == ASTERISK:
			p.advance()
			spec.Merge = true
		default:
			return nil, p.errorAtToken(tok, "unexpected %s in cost", p.describe(tok))
		}

		if p.check(COMMA) {
			p.advance()
			continue
		}
		if !p.check(closer) {
			tok := p.cur()
			return nil, p.errorAtToken(tok, "expected ',' or '%s' in cost, got %s", closer, p.describe(tok))
		}
	}
	p.advance()

	if spec.NumberTotal != nil && spec.NumberTotal.IsNegative() {
		return nil, p.errorAtToken(open, "negative total cost")
	}
	if spec.NumberPer != nil && spec.NumberPer.LessThan(decimal.Zero) {
		return nil, p.errorAtToken(open, "negative per-unit cost")
	}
	return spec, nil
}

package parser

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Arithmetic in amounts.
//
// Operator precedence (low to high):
//  1. + -   addition, subtraction
//  2. * /   multiplication, division
//  3. - ( ) unary minus, grouping
//
// Grammar:
//
//	expression → term (('+' | '-') term)*
//	term       → factor (('*' | '/') factor)*
//	factor     → NUMBER | '-' factor | '+' factor | '(' expression ')'
//
// Examples:
//
//	2 + 3 * 4    → 14
//	(2 + 3) * 4  → 20
//	40.00 / 3    → 13.3333333333333333
//
// An expression never continues onto the next line.

func (p *Parser) parseExpression() (decimal.Decimal, error) {
	left, err := p.parseTerm()
	if err != nil {
		return decimal.Zero, err
	}

	for {
		op := p.cur().Type
		if op != PLUS && op != MINUS {
			return left, nil
		}
		p.advance()

		right, err := p.parseTerm()
		if err != nil {
			return decimal.Zero, err
		}
		if op == PLUS {
			left = left.Add(right)
		} else {
			left = left.Sub(right)
		}
	}
}

func (p *Parser) parseTerm() (decimal.Decimal, error) {
	left, err := p.parseFactor()
	if err != nil {
		return decimal.Zero, err
	}

	for {
		op := p.cur()
		if op.Type != ASTERISK && op.Type != SLASH {
			return left, nil
		}
		p.advance()

		right, err := p.parseFactor()
		if err != nil {
			return decimal.Zero, err
		}
		if op.Type == ASTERISK {
			left = left.Mul(right)
			continue
		}
		if right.IsZero() {
			return decimal.Zero, p.errorAtToken(op, "division by zero")
		}
		left = left.Div(right)
	}
}

func (p *Parser) parseFactor() (decimal.Decimal, error) {
	tok := p.cur()

	switch tok.Type {
	case LPAREN:
		p.advance()
		result, err := p.parseExpression()
		if err != nil {
			return decimal.Zero, err
		}
		if _, err := p.expect(RPAREN, "expected ')' after expression"); err != nil {
			return decimal.Zero, err
		}
		return result, nil

	case NUMBER:
		p.advance()
		return p.parseNumber(tok)

	case MINUS:
		p.advance()
		value, err := p.parseFactor()
		if err != nil {
			return decimal.Zero, err
		}
		return value.Neg(), nil

	case PLUS:
		p.advance()
		return p.parseFactor()
	}

	return decimal.Zero, p.errorAtToken(tok, "expected number, got %s", p.describe(tok))
}

// parseNumber converts a NUMBER token, dropping thousands separators.
func (p *Parser) parseNumber(tok Token) (decimal.Decimal, error) {
	text := tok.String(p.source)
	if strings.IndexByte(text, ',') >= 0 {
		text = strings.ReplaceAll(text, ",", "")
	}
	text = strings.TrimSuffix(text, ".")
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, p.errorAtToken(tok, "invalid number %q", tok.String(p.source))
	}
	return d, nil
}

// isExpressionStart reports whether the current token can begin a number.
func (p *Parser) isExpressionStart() bool {
	switch p.cur().Type {
	case NUMBER, MINUS, PLUS, LPAREN:
		return true
	}
	return false
}

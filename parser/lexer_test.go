package parser

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func scanTypes(src string) []TokenType {
	tokens := NewLexer([]byte(src), "").ScanAll()
	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func TestLexer(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []TokenType
	}{
		{"Date", "2024-01-15", []TokenType{DATE, EOF}},
		{"SlashDate", "2024/01/15", []TokenType{DATE, EOF}},
		{"Number", "1,234.56", []TokenType{NUMBER, EOF}},
		{"NegativeNumber", "-10", []TokenType{MINUS, NUMBER, EOF}},
		{"CurrencyList", "USD,EUR", []TokenType{IDENT, COMMA, IDENT, EOF}},
		{"NotThousands", "1,23", []TokenType{NUMBER, COMMA, NUMBER, EOF}},
		{"Account", "Assets:US:Cash", []TokenType{ACCOUNT, EOF}},
		{"MetaKey", "invoice: \"x\"", []TokenType{IDENT, COLON, STRING, EOF}},
		{"KeywordKey", "price:", []TokenType{PRICE, COLON, EOF}},
		{"UppercaseKeyColon", "Key:", []TokenType{IDENT, COLON, EOF}},
		{"TagLink", " #trip-2024 ^inv/42", []TokenType{TAG, LINK, EOF}},
		{"Braces", "{{ }} { }", []TokenType{LDBRACE, RDBRACE, LBRACE, RBRACE, EOF}},
		{"Prices", "@ @@", []TokenType{AT, ATAT, EOF}},
		{"Operators", "( 1 + 2 ) * 3 / 4 ~", []TokenType{LPAREN, NUMBER, PLUS, NUMBER, RPAREN, ASTERISK, NUMBER, SLASH, NUMBER, TILDE, EOF}},
		{"Comment", "open ; ignored\nclose", []TokenType{OPEN, CLOSE, EOF}},
		{"OutlineHeading", "* Heading\nquery", []TokenType{QUERY, EOF}},
		{"Illegal", "$", []TokenType{ILLEGAL, EOF}},
		{"CurrencyPunctuation", "HOOL.X", []TokenType{IDENT, EOF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scanTypes(tt.input))
		})
	}
}

func TestLexerPositions(t *testing.T) {
	src := []byte("2024-01-01 open Assets:Cash\n  key: 1\n")
	tokens := NewLexer(src, "main.beancount").ScanAll()

	assert.Equal(t, 1, tokens[0].Line)
	assert.Equal(t, 1, tokens[0].Column)
	assert.Equal(t, "Assets:Cash", tokens[2].String(src))
	assert.Equal(t, 17, tokens[2].Column)
	assert.Equal(t, 2, tokens[3].Line)
	assert.Equal(t, 3, tokens[3].Column)
}

func TestInterner(t *testing.T) {
	in := NewInterner(4)
	a := in.InternBytes([]byte("Assets:Cash"))
	b := in.Intern("Assets:Cash")
	assert.Equal(t, a, b)
	assert.Equal(t, 1, in.Size())
}

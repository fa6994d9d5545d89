package parser

// Lexer implements a zero-copy lexer for ledger files.
//
// Tokens store byte offsets into the source buffer rather than strings;
// text is materialized only when the parser needs it. Line and column are
// kept on every token because indentation is significant: postings and
// metadata are the lines that do not start at column 1.

import (
	"bytes"
)

// Lexer tokenizes ledger source code.
type Lexer struct {
	source   []byte
	filename string
	pos      int
	line     int
	column   int
	tokens   []Token
	interner *Interner
}

// NewLexer creates a new lexer for the given source.
func NewLexer(source []byte, filename string) *Lexer {
	// Empirically about one token per 20 bytes.
	estimatedTokens := len(source)/20 + 64

	internerCap := len(source) / 40
	if internerCap < 256 {
		internerCap = 256
	}

	return &Lexer{
		source:   source,
		filename: filename,
		line:     1,
		column:   1,
		tokens:   make([]Token, 0, estimatedTokens),
		interner: NewInterner(internerCap),
	}
}

// Interner returns the string interner shared with the parser.
func (l *Lexer) Interner() *Interner {
	return l.interner
}

// ScanAll lexes the entire source and returns all tokens followed by EOF.
func (l *Lexer) ScanAll() []Token {
	for l.pos < len(l.source) {
		l.skipWhitespace()
		if l.pos >= len(l.source) {
			break
		}

		ch := l.peek()
		if ch == ';' || (l.column == 1 && isLineMarker(ch)) {
			l.skipLine()
			continue
		}

		l.tokens = append(l.tokens, l.scanToken())
	}

	l.tokens = append(l.tokens, Token{
		Type:   EOF,
		Start:  l.pos,
		End:    l.pos,
		Line:   l.line,
		Column: l.column,
	})
	return l.tokens
}

// isLineMarker reports whether ch, found at column 1, starts a line that is
// ignored entirely (org-mode headings and similar outline markers).
func isLineMarker(ch byte) bool {
	switch ch {
	case '*', '#', '!', '&', '?', '%', ':', '|':
		return true
	}
	return false
}

func (l *Lexer) scanToken() Token {
	start := l.pos
	startLine := l.line
	startCol := l.column

	ch := l.advance()

	switch {
	case ch >= '0' && ch <= '9':
		if l.isDatePattern(start) {
			return l.scanDate(start, startLine, startCol)
		}
		return l.scanNumber(start, startLine, startCol)
	case ch == '.' && l.peekIsDigit():
		return l.scanNumber(start, startLine, startCol)

	case ch == '"':
		return l.scanString(start, startLine, startCol)

	case ch == '#':
		return l.scanTagOrLink(TAG, start, startLine, startCol)
	case ch == '^':
		return l.scanTagOrLink(LINK, start, startLine, startCol)

	case ch >= 'A' && ch <= 'Z' || ch >= 0x80:
		return l.scanAccountOrIdent(start, startLine, startCol)
	case ch >= 'a' && ch <= 'z':
		return l.scanKeywordOrIdent(start, startLine, startCol)

	case ch == '*':
		return Token{ASTERISK, start, l.pos, startLine, startCol}
	case ch == '!':
		return Token{EXCLAIM, start, l.pos, startLine, startCol}
	case ch == ':':
		return Token{COLON, start, l.pos, startLine, startCol}
	case ch == ',':
		return Token{COMMA, start, l.pos, startLine, startCol}
	case ch == '-':
		return Token{MINUS, start, l.pos, startLine, startCol}
	case ch == '+':
		return Token{PLUS, start, l.pos, startLine, startCol}
	case ch == '/':
		return Token{SLASH, start, l.pos, startLine, startCol}
	case ch == '(':
		return Token{LPAREN, start, l.pos, startLine, startCol}
	case ch == ')':
		return Token{RPAREN, start, l.pos, startLine, startCol}
	case ch == '~':
		return Token{TILDE, start, l.pos, startLine, startCol}

	case ch == '{':
		if l.peek() == '{' {
			l.advance()
			return Token{LDBRACE, start, l.pos, startLine, startCol}
		}
		return Token{LBRACE, start, l.pos, startLine, startCol}
	case ch == '}':
		if l.peek() == '}' {
			l.advance()
			return Token{RDBRACE, start, l.pos, startLine, startCol}
		}
		return Token{RBRACE, start, l.pos, startLine, startCol}

	case ch == '@':
		if l.peek() == '@' {
			l.advance()
			return Token{ATAT, start, l.pos, startLine, startCol}
		}
		return Token{AT, start, l.pos, startLine, startCol}

	default:
		return Token{ILLEGAL, start, l.pos, startLine, startCol}
	}
}

// isDatePattern checks whether the source at start reads YYYY-MM-DD or
// YYYY/MM/DD.
func (l *Lexer) isDatePattern(start int) bool {
	if start+10 > len(l.source) {
		return false
	}
	src := l.source[start:]
	sep := src[4]
	if sep != '-' && sep != '/' {
		return false
	}
	for _, i := range []int{0, 1, 2, 3, 5, 6, 8, 9} {
		if src[i] < '0' || src[i] > '9' {
			return false
		}
	}
	if src[7] != sep {
		return false
	}
	// 2024-01-011 is not a date.
	return start+10 == len(l.source) || !isDigit(l.source[start+10])
}

func (l *Lexer) scanDate(start, line, col int) Token {
	for i := 0; i < 9; i++ {
		l.advance()
	}
	return Token{DATE, start, l.pos, line, col}
}

// scanNumber scans an unsigned decimal. Commas are accepted as thousands
// separators only when followed by exactly three digits, so that
// "USD,EUR" style lists and "1,2" are not swallowed.
func (l *Lexer) scanNumber(start, line, col int) Token {
	for l.pos < len(l.source) {
		ch := l.source[l.pos]
		if isDigit(ch) {
			l.advance()
			continue
		}
		if ch == ',' && l.isThousandsGroup(l.pos+1) {
			l.advance()
			continue
		}
		break
	}

	if l.pos < len(l.source) && l.source[l.pos] == '.' {
		l.advance()
		for l.pos < len(l.source) && isDigit(l.source[l.pos]) {
			l.advance()
		}
	}

	return Token{NUMBER, start, l.pos, line, col}
}

func (l *Lexer) isThousandsGroup(at int) bool {
	if at+3 > len(l.source) {
		return false
	}
	for i := at; i < at+3; i++ {
		if !isDigit(l.source[i]) {
			return false
		}
	}
	return at+3 == len(l.source) || !isDigit(l.source[at+3])
}

// scanString scans a quoted string. Strings end at the closing quote or,
// when unterminated, at the end of the line; the parser reports the latter.
func (l *Lexer) scanString(start, line, col int) Token {
	for l.pos < len(l.source) {
		ch := l.source[l.pos]
		if ch == '"' {
			l.advance()
			break
		}
		if ch == '\n' {
			break
		}
		if ch == '\\' && l.pos+1 < len(l.source) && l.source[l.pos+1] != '\n' {
			l.advance()
		}
		l.advance()
	}
	return Token{STRING, start, l.pos, line, col}
}

// scanTagOrLink scans #tag or ^link: [A-Za-z0-9_./-]+ after the marker.
func (l *Lexer) scanTagOrLink(typ TokenType, start, line, col int) Token {
	for l.pos < len(l.source) {
		ch := l.source[l.pos]
		if !isWordByte(ch) && ch != '_' && ch != '-' && ch != '.' && ch != '/' {
			break
		}
		l.advance()
	}
	return Token{typ, start, l.pos, line, col}
}

// scanAccountOrIdent scans an account name or an identifier starting with a
// capital letter or a non-ASCII byte. Accounts contain colons; currencies
// such as USD or VBMPX do not. Currencies may also carry the punctuation
// '.', '_' and '\'' when it is followed by another name character.
func (l *Lexer) scanAccountOrIdent(start, line, col int) Token {
	hasColon := false

scan:
	for l.pos < len(l.source) {
		ch := l.source[l.pos]
		switch {
		case isWordByte(ch) || ch >= 0x80 || ch == '-':
		case ch == ':':
			// A trailing colon is a metadata separator, not part of a name.
			if l.pos+1 >= len(l.source) || !isNameStart(l.source[l.pos+1]) {
				break scan
			}
			hasColon = true
		case ch == '.' || ch == '_' || ch == '\'':
			if l.pos+1 >= len(l.source) || !isWordByte(l.source[l.pos+1]) {
				break scan
			}
		default:
			break scan
		}
		l.advance()
	}

	if hasColon {
		return Token{ACCOUNT, start, l.pos, line, col}
	}
	return Token{IDENT, start, l.pos, line, col}
}

// scanKeywordOrIdent scans a keyword or lowercase identifier, such as a
// metadata key.
func (l *Lexer) scanKeywordOrIdent(start, line, col int) Token {
	for l.pos < len(l.source) {
		ch := l.source[l.pos]
		if !isWordByte(ch) && ch != '_' && ch != '-' {
			break
		}
		l.advance()
	}
	return Token{keywordType(l.source[start:l.pos]), start, l.pos, line, col}
}

var keywords = map[string]TokenType{
	"txn":       TXN,
	"balance":   BALANCE,
	"open":      OPEN,
	"close":     CLOSE,
	"commodity": COMMODITY,
	"pad":       PAD,
	"note":      NOTE,
	"document":  DOCUMENT,
	"price":     PRICE,
	"event":     EVENT,
	"query":     QUERY,
	"custom":    CUSTOM,
	"option":    OPTION,
	"include":   INCLUDE,
	"plugin":    PLUGIN,
	"pushtag":   PUSHTAG,
	"poptag":    POPTAG,
	"pushmeta":  PUSHMETA,
	"popmeta":   POPMETA,
}

// keywordType returns the token type for word, or IDENT.
func keywordType(word []byte) TokenType {
	// The compiler does not allocate for map lookups keyed by string(b).
	if t, ok := keywords[string(word)]; ok {
		return t
	}
	return IDENT
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.source) {
		ch := l.source[l.pos]
		if ch != ' ' && ch != '\t' && ch != '\n' && ch != '\r' {
			break
		}
		l.advance()
	}
}

func (l *Lexer) skipLine() {
	if i := bytes.IndexByte(l.source[l.pos:], '\n'); i >= 0 {
		l.pos += i + 1
	} else {
		l.pos = len(l.source)
	}
	l.line++
	l.column = 1
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.source) {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekIsDigit() bool {
	return l.pos < len(l.source) && isDigit(l.source[l.pos])
}

func (l *Lexer) advance() byte {
	if l.pos >= len(l.source) {
		return 0
	}
	ch := l.source[l.pos]
	l.pos++
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return ch
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isWordByte(ch byte) bool {
	return (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') || isDigit(ch)
}

func isNameStart(ch byte) bool {
	return (ch >= 'A' && ch <= 'Z') || isDigit(ch) || ch >= 0x80
}

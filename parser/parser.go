// Package parser turns ledger source text into an ast.AST.
//
// Parsing is total: a syntax error is recorded and the parser resumes at the
// next line that starts in column 1, so a single bad entry never hides the
// rest of a file. Callers receive everything that parsed together with the
// list of errors.
package parser

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/telemetry"
)

// Parser is a recursive-descent parser over the token stream of one file.
type Parser struct {
	source   []byte
	filename string
	tokens   []Token
	pos      int
	// line is the source line of the statement being parsed. Tokens on any
	// other line read as end of line through cur.
	line     int
	interner *Interner

	result *ast.AST
	errors ErrorList
	tags   []pushedTag
	meta   []pushedMeta
}

type pushedTag struct {
	tag ast.Tag
	tok Token
}

type pushedMeta struct {
	entry ast.MetaEntry
	tok   Token
}

// NewParser creates a parser for source. filename is recorded in every
// position and error.
func NewParser(source []byte, filename string) *Parser {
	return &Parser{
		source:   source,
		filename: filename,
		result: &ast.AST{
			DisplayContext: ast.NewDisplayContext(),
		},
	}
}

// Parse parses the whole input. The returned AST is never nil; it holds
// every statement that parsed cleanly.
func (p *Parser) Parse(ctx context.Context) (*ast.AST, ErrorList) {
	timer := telemetry.FromContext(ctx).Start("parser.parse " + filepath.Base(p.filename))
	defer timer.End()

	lexTimer := timer.Child("lex")
	lexer := NewLexer(p.source, p.filename)
	p.tokens = lexer.ScanAll()
	p.interner = lexer.Interner()
	lexTimer.End()

	for n := 0; p.peekRaw().Type != EOF; n++ {
		if n%512 == 0 {
			if err := ctx.Err(); err != nil {
				p.errors = append(p.errors, err)
				return p.result, p.errors
			}
		}

		tok := p.peekRaw()
		p.line = tok.Line
		if tok.Column != 1 {
			p.fail(p.errorAtToken(tok, "unexpected indented line"))
			continue
		}
		if err := p.parseStatement(); err != nil {
			p.fail(err)
		}
	}

	for _, t := range p.tags {
		p.errors = append(p.errors, p.errorAtToken(t.tok, "unbalanced pushed tag #%s", t.tag))
	}
	for _, m := range p.meta {
		p.errors = append(p.errors, p.errorAtToken(m.tok, "unbalanced pushed metadata %q", m.entry.Key))
	}

	return p.result, p.errors
}

// Parse parses data read from filename.
func Parse(ctx context.Context, filename string, data []byte) (*ast.AST, []error) {
	result, errs := NewParser(data, filename).Parse(ctx)
	return result, errs
}

// ParseBytesWithFilename parses data and reports syntax errors as a single
// ErrorList.
func ParseBytesWithFilename(ctx context.Context, filename string, data []byte) (*ast.AST, error) {
	result, errs := NewParser(data, filename).Parse(ctx)
	return result, errs.Err()
}

// ParseBytes parses data without a filename.
func ParseBytes(ctx context.Context, data []byte) (*ast.AST, error) {
	return ParseBytesWithFilename(ctx, "", data)
}

// ParseString parses a string without a filename.
func ParseString(ctx context.Context, s string) (*ast.AST, error) {
	return ParseBytesWithFilename(ctx, "", []byte(s))
}

// fail records err and skips to the next statement.
func (p *Parser) fail(err error) {
	p.errors = append(p.errors, err)
	for {
		tok := p.peekRaw()
		if tok.Type == EOF || (tok.Column == 1 && tok.Line > p.line) {
			return
		}
		p.advance()
	}
}

func (p *Parser) parseStatement() error {
	tok := p.peekRaw()
	switch tok.Type {
	case DATE:
		return p.parseDated()
	case OPTION:
		return p.parseOption()
	case INCLUDE:
		return p.parseInclude()
	case PLUGIN:
		return p.parsePlugin()
	case PUSHTAG:
		return p.parsePushTag()
	case POPTAG:
		return p.parsePopTag()
	case PUSHMETA:
		return p.parsePushMeta()
	case POPMETA:
		return p.parsePopMeta()
	}
	return p.errorAtToken(tok, "unexpected %s at start of line", p.describe(tok))
}

func (p *Parser) parseOption() error {
	tok := p.advance()
	name, err := p.expectString()
	if err != nil {
		return err
	}
	value, err := p.expectString()
	if err != nil {
		return err
	}
	if err := p.endOfLine(); err != nil {
		return err
	}
	p.result.Options = append(p.result.Options, &ast.Option{Pos: p.position(tok), Name: name, Value: value})
	return nil
}

func (p *Parser) parseInclude() error {
	tok := p.advance()
	filename, err := p.expectString()
	if err != nil {
		return err
	}
	if err := p.endOfLine(); err != nil {
		return err
	}
	p.result.Includes = append(p.result.Includes, &ast.Include{Pos: p.position(tok), Filename: filename})
	return nil
}

func (p *Parser) parsePlugin() error {
	tok := p.advance()
	name, err := p.expectString()
	if err != nil {
		return err
	}
	plugin := &ast.Plugin{Pos: p.position(tok), Name: name}
	if p.check(STRING) {
		if plugin.Config, err = p.expectString(); err != nil {
			return err
		}
	}
	if err := p.endOfLine(); err != nil {
		return err
	}
	p.result.Plugins = append(p.result.Plugins, plugin)
	return nil
}

func (p *Parser) parsePushTag() error {
	p.advance()
	tok, err := p.expect(TAG, "expected tag after pushtag")
	if err != nil {
		return err
	}
	p.tags = append(p.tags, pushedTag{tag: p.tagValue(tok), tok: tok})
	return p.endOfLine()
}

func (p *Parser) parsePopTag() error {
	p.advance()
	tok, err := p.expect(TAG, "expected tag after poptag")
	if err != nil {
		return err
	}
	tag := p.tagValue(tok)
	for i := len(p.tags) - 1; i >= 0; i-- {
		if p.tags[i].tag == tag {
			p.tags = append(p.tags[:i], p.tags[i+1:]...)
			return p.endOfLine()
		}
	}
	return p.errorAtToken(tok, "attempting to pop absent tag #%s", tag)
}

func (p *Parser) parsePushMeta() error {
	p.advance()
	keyTok := p.cur()
	entry, ok, err := p.parseMetaEntry()
	if err != nil {
		return err
	}
	if !ok {
		return p.errorAtToken(keyTok, "expected key: value after pushmeta")
	}
	p.meta = append(p.meta, pushedMeta{entry: entry, tok: keyTok})
	return p.endOfLine()
}

func (p *Parser) parsePopMeta() error {
	p.advance()
	keyTok := p.cur()
	if !p.isMetaKey() {
		return p.errorAtToken(keyTok, "expected key: after popmeta")
	}
	key := p.advance().String(p.source)
	p.advance() // ':'
	for i := len(p.meta) - 1; i >= 0; i-- {
		if p.meta[i].entry.Key == key {
			p.meta = append(p.meta[:i], p.meta[i+1:]...)
			return p.endOfLine()
		}
	}
	return p.errorAtToken(keyTok, "attempting to pop absent metadata key %q", key)
}

// Token cursor

// peekRaw returns the next token regardless of line.
func (p *Parser) peekRaw() Token {
	return p.tokens[p.pos]
}

// cur returns the next token if it is on the current line, otherwise an
// EOF token positioned at the end of the line.
func (p *Parser) cur() Token {
	tok := p.tokens[p.pos]
	if tok.Type == EOF || tok.Line == p.line {
		return tok
	}
	end := Token{Type: EOF, Start: tok.Start, End: tok.Start, Line: p.line}
	if p.pos > 0 {
		prev := p.tokens[p.pos-1]
		end.Start, end.End = prev.End, prev.End
		end.Column = prev.Column + prev.Len()
	}
	return end
}

// peekAhead returns the token n positions after the current one on the
// current line.
func (p *Parser) peekAhead(n int) Token {
	i := p.pos + n
	if i >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	tok := p.tokens[i]
	if tok.Line != p.line {
		return Token{Type: EOF, Line: p.line}
	}
	return tok
}

func (p *Parser) advance() Token {
	tok := p.tokens[p.pos]
	if tok.Type != EOF {
		p.pos++
	}
	return tok
}

func (p *Parser) check(typ TokenType) bool {
	return p.cur().Type == typ
}

func (p *Parser) expect(typ TokenType, message string) (Token, error) {
	tok := p.cur()
	if tok.Type != typ {
		return tok, p.errorAtToken(tok, "%s, got %s", message, p.describe(tok))
	}
	return p.advance(), nil
}

// endOfLine fails if anything but a comment remains on the current line.
func (p *Parser) endOfLine() error {
	if tok := p.cur(); tok.Type != EOF {
		return p.errorAtToken(tok, "unexpected %s", p.describe(tok))
	}
	return nil
}

// nextLine moves the statement cursor to the next indented line belonging
// to the current entry. It returns false when the entry has ended.
func (p *Parser) nextLine() bool {
	tok := p.peekRaw()
	if tok.Type == EOF || tok.Column == 1 {
		return false
	}
	p.line = tok.Line
	return true
}

func (p *Parser) position(tok Token) ast.Position {
	return ast.Position{
		Filename: p.filename,
		Offset:   tok.Start,
		Line:     tok.Line,
		Column:   tok.Column,
	}
}

func (p *Parser) errorAtToken(tok Token, format string, args ...any) *ParseError {
	return &ParseError{
		Pos:     p.position(tok),
		Message: fmt.Sprintf(format, args...),
		Span:    ast.Span{Start: tok.Start, End: tok.End},
		Source:  p.source,
	}
}

// describe renders a token for an error message.
func (p *Parser) describe(tok Token) string {
	switch tok.Type {
	case EOF:
		return "end of line"
	case ILLEGAL:
		return fmt.Sprintf("illegal character %q", tok.String(p.source))
	}
	return fmt.Sprintf("%s %q", tok.Type, tok.String(p.source))
}

package query

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// selectStmt is the parse tree of a query.
//
//	SELECT [DISTINCT] target, ... [FROM [expr] [OPEN ON date] [CLOSE ON date]]
//	[WHERE expr] [GROUP BY expr, ...] [ORDER BY expr [ASC|DESC], ...] [LIMIT n]
type selectStmt struct {
	Pos      lexer.Position
	Distinct bool         `parser:"'SELECT' @'DISTINCT'?"`
	Targets  []*target    `parser:"@@ (',' @@)*"`
	From     *fromClause  `parser:"('FROM' @@)?"`
	Where    *orExpr      `parser:"('WHERE' @@)?"`
	GroupBy  []*orExpr    `parser:"('GROUP' 'BY' @@ (',' @@)*)?"`
	OrderBy  []*orderTerm `parser:"('ORDER' 'BY' @@ (',' @@)*)?"`
	Limit    *int         `parser:"('LIMIT' @Number)?"`
}

type target struct {
	Pos   lexer.Position
	Star  bool    `parser:"  @'*'"`
	Expr  *orExpr `parser:"| @@"`
	Alias string  `parser:"  ('AS' @Ident)?"`
}

type fromClause struct {
	Expr  *orExpr `parser:"@@?"`
	Open  string  `parser:"('OPEN' 'ON' @Date)?"`
	Close string  `parser:"('CLOSE' 'ON' @Date)?"`
}

type orderTerm struct {
	Expr *orExpr `parser:"@@"`
	Desc bool    `parser:"(@'DESC' | 'ASC')?"`
}

type orExpr struct {
	Pos   lexer.Position
	Left  *andExpr   `parser:"@@"`
	Right []*andExpr `parser:"('OR' @@)*"`
}

type andExpr struct {
	Pos   lexer.Position
	Left  *notExpr   `parser:"@@"`
	Right []*notExpr `parser:"('AND' @@)*"`
}

type notExpr struct {
	Pos lexer.Position
	Not bool     `parser:"@'NOT'?"`
	Cmp *cmpExpr `parser:"@@"`
}

type cmpExpr struct {
	Pos   lexer.Position
	Left  *addExpr `parser:"@@"`
	Op    string   `parser:"( @('=' | '!=' | '<=' | '>=' | '<' | '>' | '~' | 'IN')"`
	Right *addExpr `parser:"  @@ )?"`
}

type addExpr struct {
	Pos   lexer.Position
	Left  *mulExpr `parser:"@@"`
	Right []*addOp `parser:"@@*"`
}

type addOp struct {
	Op    string   `parser:"@('+' | '-')"`
	Right *mulExpr `parser:"@@"`
}

type mulExpr struct {
	Pos   lexer.Position
	Left  *unaryExpr `parser:"@@"`
	Right []*mulOp   `parser:"@@*"`
}

type mulOp struct {
	Op    string     `parser:"@('*' | '/')"`
	Right *unaryExpr `parser:"@@"`
}

type unaryExpr struct {
	Pos   lexer.Position
	Neg   bool     `parser:"@'-'?"`
	Value *primary `parser:"@@"`
}

type primary struct {
	Pos    lexer.Position
	Date   *string  `parser:"  @Date"`
	Number *string  `parser:"| @Number"`
	String *string  `parser:"| @String"`
	True   bool     `parser:"| @'TRUE'"`
	False  bool     `parser:"| @'FALSE'"`
	Null   bool     `parser:"| @'NULL'"`
	Call   *call    `parser:"| @@"`
	Column *string  `parser:"| @Ident"`
	Sub    *orExpr  `parser:"| '(' @@ ')'"`
	Set    []string `parser:"| '{' (@String (',' @String)*)? '}'"`
}

type call struct {
	Pos  lexer.Position
	Name string    `parser:"@Ident '('"`
	Star bool      `parser:"( @'*'"`
	Args []*orExpr `parser:"| (@@ (',' @@)*)? ) ')'"`
}

var (
	queryLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Keyword", Pattern: `(?i)\b(SELECT|DISTINCT|FROM|WHERE|GROUP|ORDER|BY|ASC|DESC|LIMIT|AND|OR|NOT|AS|IN|TRUE|FALSE|NULL|OPEN|CLOSE|ON)\b`},
		{Name: "Date", Pattern: `\d{4}-\d{2}-\d{2}`},
		{Name: "Number", Pattern: `\d+(\.\d+)?`},
		{Name: "String", Pattern: `"(\\.|[^"\\])*"|'[^']*'`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
		{Name: "Punct", Pattern: `!=|<=|>=|[-+*/=<>~,(){}]`},
		{Name: "Whitespace", Pattern: `[[:space:]]+`},
	})

	queryParser = participle.MustBuild[selectStmt](
		participle.Lexer(queryLexer),
		participle.CaseInsensitive("Keyword"),
		participle.Map(unquote, "String"),
		participle.Elide("Whitespace"),
		participle.UseLookahead(2),
	)
)

// unquote strips single quotes verbatim and unescapes double-quoted strings.
func unquote(t lexer.Token) (lexer.Token, error) {
	if strings.HasPrefix(t.Value, "'") {
		t.Value = t.Value[1 : len(t.Value)-1]
		return t, nil
	}
	v, err := strconv.Unquote(t.Value)
	if err != nil {
		return t, err
	}
	t.Value = v
	return t, nil
}

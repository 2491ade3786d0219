package parser

import (
	"fmt"

	"dspc/pkg/ast"
	"dspc/pkg/diag"
	"dspc/pkg/symbols"
	"dspc/pkg/types"
)

// Parser consumes the flat token slice produced by the Lexer and builds the
// AST of one compilation unit. It is type-directed: declarations are added to
// the symbol registry as soon as they are read, and every identifier is
// resolved to its fully qualified id on the spot, so "a < b" is only read as
// template arguments when a names a template.
//
// Grammar:
//
//	unit        = declaration* EOF
//	declaration = namespace | using | enum | template | class | function | variables
//	namespace   = "namespace" IDENT ( "{" declaration* "}" | "=" name ";" )
//	using       = "using" ( "namespace" name | IDENT "=" type ) ";"
//	enum        = "enum" ["class"] IDENT "{" IDENT ["=" constant] ("," ...)* "}" ";"
//	template    = "template" "<" formal ("," formal)* ">" ( class | function )
//	class       = ("struct" | "class") IDENT "{" member* "}" ";"
//	function    = type IDENT "(" params ")" block
//	variables   = type declarator ("," declarator)* ";"
//	declarator  = IDENT [ "=" (expression | initList) | "(" args ")" | initList ]
//	type        = ["const"] (keyword | name ["<" targs ">"]) ["&"]
//	statement   = block | if | while | for | return | break | continue | variables | exprStmt
//	for         = "for" "(" type IDENT ":" expression ")" statement
//	exprStmt    = expression [assignOp expression] ";"
//	expression  = ternary
//	ternary     = logicalOr ["?" ternary ":" ternary]
//	logicalOr   = logicalAnd ("||" logicalAnd)*
//	logicalAnd  = comparison ("&&" comparison)*
//	comparison  = additive (("==" | "!=" | "<" | "<=" | ">" | ">=") additive)*
//	additive    = multiplicative (("+" | "-") multiplicative)*
//	multiplicative = unary (("*" | "/" | "%") unary)*
//	unary       = ("-" | "+" | "!" | "++" | "--") unary | "(" type ")" unary | postfix
//	postfix     = primary ("[" expression "]" | "." IDENT ["(" args ")"] | "++" | "--")*
//	primary     = literal | "this" | "(" expression ")" | keyword "(" expression ")" | name ["<" targs ">"] ["(" args ")"]
type Parser struct {
	ctx    *ast.CompilationContext
	reg    *symbols.Registry
	tokens []Token
	pos    int
	lines  *LineMap
	unit   *unitState

	class   *classState
	fnDepth int
	// formals are the parameters of the template header being read; while
	// set, their names parse as placeholders.
	formals map[string]types.TemplateParameter
	// self is the class template instance under construction, so the class
	// can name itself.
	self         *types.StructType
	selfTemplate types.ID
}

// unitState is shared by the parser of a unit and the parsers its templates
// fork later.
type unitState struct {
	blocks map[string]int
}

// Parse preprocesses, lexes and parses src, read from file, as the
// compilation unit named unit. The result also becomes ctx.Root. sources
// resolves includes and may be nil.
func Parse(ctx *ast.CompilationContext, unit types.ID, file, src string, sources Sources) (*ast.StatementBlock, error) {
	text, lines, err := Preprocess(src, file, sources)
	if err != nil {
		return nil, err
	}
	tokens, err := Lex(text, lines)
	if err != nil {
		return nil, err
	}
	return ParseTokens(ctx, unit, tokens, lines)
}

// ParseTokens parses an already lexed unit.
func ParseTokens(ctx *ast.CompilationContext, unit types.ID, tokens []Token, lines *LineMap) (*ast.StatementBlock, error) {
	p := &Parser{
		ctx:    ctx,
		reg:    ctx.Registry,
		tokens: tokens,
		lines:  lines,
		unit:   &unitState{blocks: make(map[string]int)},
	}
	return p.parseUnit(unit)
}

func (p *Parser) parseUnit(unit types.ID) (*ast.StatementBlock, error) {
	depth := p.reg.Depth()
	defer p.unwind(depth)

	first := p.peek()
	p.ctx.Unit = unit
	p.ctx.Root = ast.NewStatementBlock(p.loc(first), unit)
	p.reg.PushNamespace(unit, symbols.PlainScope)
	for !p.check(EOF) {
		if err := p.parseDeclaration(); err != nil {
			return nil, err
		}
	}
	p.setLines(unit, first, p.peek())
	return p.ctx.Root, nil
}

// fork returns a parser positioned at start that shares the unit's tokens
// and state but none of the current declaration context.
func (p *Parser) fork(start int) *Parser {
	return &Parser{
		ctx:    p.ctx,
		reg:    p.reg,
		tokens: p.tokens,
		pos:    start,
		lines:  p.lines,
		unit:   p.unit,
	}
}

// unwind pops namespaces left pushed by a failed parse.
func (p *Parser) unwind(depth int) {
	for p.reg.Depth() > depth {
		p.reg.PopNamespace()
	}
}

func (p *Parser) emit(n ast.Node) { ast.Add(p.ctx.Root, n) }

// peek returns the current token without consuming it.
func (p *Parser) peek() Token { return p.peekAt(0) }

// peekAt returns the token at the given offset from the current position.
func (p *Parser) peekAt(offset int) Token { return p.tokenAt(p.pos + offset) }

func (p *Parser) tokenAt(i int) Token {
	if i >= len(p.tokens) {
		if len(p.tokens) > 0 {
			last := p.tokens[len(p.tokens)-1]
			return Token{Type: EOF, Line: last.Line, Col: last.Col}
		}
		return Token{Type: EOF}
	}
	return p.tokens[i]
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) check(tt TokenType) bool { return p.peek().Type == tt }

// accept consumes the current token if it is a tt.
func (p *Parser) accept(tt TokenType) bool {
	if p.check(tt) {
		p.advance()
		return true
	}
	return false
}

// expect consumes the current token if it matches tt, otherwise returns an error.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.peek()
	if tok.Type != tt {
		return tok, p.errorf(tok, "expected %s, got %s", spell(tt), describe(tok))
	}
	return p.advance(), nil
}

func (p *Parser) loc(tok Token) diag.Location {
	return p.lines.Locate(tok.Line, tok.Col)
}

func (p *Parser) errorf(tok Token, format string, args ...any) error {
	return diag.Errorf(p.loc(tok), format, args...)
}

func (p *Parser) debug(tok Token) symbols.DebugInfo {
	return symbols.DebugInfo{Loc: p.loc(tok)}
}

// setLines records the source extent of a namespace for editor queries.
func (p *Parser) setLines(id types.ID, from, to Token) {
	start, end := p.loc(from), p.loc(to)
	if start.File != end.File {
		return
	}
	p.reg.SetLines(id, symbols.LineRange{File: start.File, Start: start.Line, End: end.Line})
}

// nextBlockName names the next anonymous block below the current namespace.
func (p *Parser) nextBlockName() string {
	key := p.reg.Current().String()
	n := p.unit.blocks[key]
	p.unit.blocks[key] = n + 1
	return fmt.Sprintf("{%d}", n)
}

// visibility is the access of a declaration at the current position.
func (p *Parser) visibility() symbols.Visibility {
	if p.class != nil && p.fnDepth == 0 {
		return p.class.access
	}
	return symbols.Public
}

// skipBraces steps over a balanced {...} group starting at the current token.
func (p *Parser) skipBraces() error {
	open, err := p.expect(LBRACE)
	if err != nil {
		return err
	}
	depth := 1
	for depth > 0 {
		switch p.advance().Type {
		case LBRACE:
			depth++
		case RBRACE:
			depth--
		case EOF:
			return p.errorf(open, "unterminated block")
		}
	}
	return nil
}

var spellings = func() map[TokenType]string {
	m := map[TokenType]string{
		EOF:        "end of input",
		IDENTIFIER: "a name",
		INTEGER:    "an integer",
		FLOAT:      "a number",
		DOUBLE:     "a number",
		STRING:     "a string",
		DOT:        `"."`,
		ELLIPSIS:   `"..."`,
		OR_LOGICAL: `"||"`,
	}
	for s, tt := range keywords {
		m[tt] = fmt.Sprintf("%q", s)
	}
	for r, op := range operators {
		m[op.single] = fmt.Sprintf("%q", string(r))
		for r2, tt := range op.next {
			m[tt] = fmt.Sprintf("%q", string([]rune{r, r2}))
		}
	}
	return m
}()

func spell(tt TokenType) string {
	if s, ok := spellings[tt]; ok {
		return s
	}
	return tt.String()
}

func describe(tok Token) string {
	if tok.Type == EOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", tok.Lexeme)
}

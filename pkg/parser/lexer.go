package parser

import (
	"unicode"

	"dspc/pkg/diag"
)

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"int":       INT,
	"float":     FLOAT_KW,
	"double":    DOUBLE_KW,
	"bool":      BOOL,
	"void":      VOID,
	"auto":      AUTO,
	"const":     CONST,
	"static":    STATIC,
	"struct":    STRUCT,
	"class":     CLASS,
	"template":  TEMPLATE,
	"typename":  TYPENAME,
	"namespace": NAMESPACE,
	"using":     USING,
	"enum":      ENUM,
	"return":    RETURN,
	"if":        IF,
	"else":      ELSE,
	"while":     WHILE,
	"for":       FOR,
	"break":     BREAK,
	"continue":  CONTINUE,
	"true":      TRUE,
	"false":     FALSE,
	"public":    PUBLIC,
	"private":   PRIVATE,
	"operator":  OPERATOR,
	"this":      THIS,
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src   []rune
	pos   int
	line  int
	col   int
	lines *LineMap
}

func newLexer(src string, lines *LineMap) *Lexer {
	return &Lexer{src: []rune(src), line: 1, col: 1, lines: lines}
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) errorf(line, col int, format string, args ...any) error {
	return diag.Errorf(l.lines.Locate(line, col), format, args...)
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) && unicode.IsSpace(l.peek()) {
		l.advance()
	}
}

func (l *Lexer) skipLineComment() {
	for l.pos < len(l.src) && l.peek() != '\n' {
		l.advance()
	}
}

// skipBlockComment discards everything up to and including the closing "*/".
// The opening "/*" must already have been consumed.
func (l *Lexer) skipBlockComment(line, col int) error {
	for l.pos < len(l.src) {
		if l.peek() == '*' && l.peek2() == '/' {
			l.advance()
			l.advance()
			return nil
		}
		l.advance()
	}
	return l.errorf(line, col, "unterminated block comment")
}

func (l *Lexer) scanIdent() Token {
	line, col := l.line, l.col
	start := l.pos
	for l.pos < len(l.src) {
		r := l.peek()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		l.advance()
	}
	lexeme := string(l.src[start:l.pos])
	tt := IDENTIFIER
	if kw, ok := keywords[lexeme]; ok {
		tt = kw
	}
	return Token{Type: tt, Lexeme: lexeme, Line: line, Col: col}
}

func isHex(r rune) bool {
	return unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// isFraction reports whether r can follow the decimal point of a number:
// "1.5", "1.f" and "1." are numbers, "1..2" and "1.x" are not.
func isFraction(r rune) bool {
	switch {
	case unicode.IsDigit(r), r == 'f', r == 'F', r == 'e', r == 'E':
		return true
	case unicode.IsLetter(r), r == '_', r == '.':
		return false
	}
	return true
}

// scanNumber collects an integer, float (f suffix) or double literal. The
// suffix is not part of the lexeme.
func (l *Lexer) scanNumber() (Token, error) {
	line, col := l.line, l.col
	start := l.pos

	if l.peek() == '0' && (l.peek2() == 'x' || l.peek2() == 'X') {
		l.advance()
		l.advance()
		if !isHex(l.peek()) {
			return Token{}, l.errorf(line, col, "malformed hex literal")
		}
		for isHex(l.peek()) {
			l.advance()
		}
		return Token{Type: INTEGER, Lexeme: string(l.src[start:l.pos]), Line: line, Col: col}, nil
	}

	for unicode.IsDigit(l.peek()) {
		l.advance()
	}
	tt := INTEGER
	if l.peek() == '.' && isFraction(l.peek2()) {
		tt = DOUBLE
		l.advance()
		for unicode.IsDigit(l.peek()) {
			l.advance()
		}
	}
	if l.peek() == 'e' || l.peek() == 'E' {
		save, saveLine, saveCol := l.pos, l.line, l.col
		l.advance()
		if l.peek() == '+' || l.peek() == '-' {
			l.advance()
		}
		if unicode.IsDigit(l.peek()) {
			tt = DOUBLE
			for unicode.IsDigit(l.peek()) {
				l.advance()
			}
		} else {
			l.pos, l.line, l.col = save, saveLine, saveCol
		}
	}
	end := l.pos
	if l.peek() == 'f' || l.peek() == 'F' {
		l.advance()
		tt = FLOAT
	}
	if r := l.peek(); unicode.IsLetter(r) || r == '_' {
		return Token{}, l.errorf(line, col, "invalid suffix %q on number", r)
	}
	return Token{Type: tt, Lexeme: string(l.src[start:end]), Line: line, Col: col}, nil
}

func (l *Lexer) scanString() (Token, error) {
	line, col := l.line, l.col
	l.advance()
	var val []rune
	for l.pos < len(l.src) {
		r := l.peek()
		if r == '"' {
			break
		}
		if r == '\n' {
			return Token{}, l.errorf(line, col, "unterminated string literal")
		}
		if r == '\\' {
			l.advance()
			next := l.peek()
			switch next {
			case 'n':
				val = append(val, '\n')
			case 't':
				val = append(val, '\t')
			case '"':
				val = append(val, '"')
			case '\\':
				val = append(val, '\\')
			default:
				return Token{}, l.errorf(l.line, l.col, "unknown escape sequence \\%c", next)
			}
			l.advance()
			continue
		}
		val = append(val, r)
		l.advance()
	}
	if l.pos >= len(l.src) {
		return Token{}, l.errorf(line, col, "unterminated string literal")
	}
	l.advance()
	return Token{Type: STRING, Lexeme: string(val), Line: line, Col: col}, nil
}

// twoChar maps an operator character to the tokens it forms alone and when
// followed by each possible second character.
type twoChar struct {
	single TokenType
	next   map[rune]TokenType
}

var operators = map[rune]twoChar{
	'{': {single: LBRACE},
	'}': {single: RBRACE},
	'(': {single: LPAREN},
	')': {single: RPAREN},
	'[': {single: LBRACKET},
	']': {single: RBRACKET},
	';': {single: SEMICOLON},
	',': {single: COMMA},
	'?': {single: QUESTION},
	':': {single: COLON, next: map[rune]TokenType{':': COLON_COLON}},
	'+': {single: PLUS, next: map[rune]TokenType{'+': PLUS_PLUS, '=': PLUS_ASSIGN}},
	'-': {single: MINUS, next: map[rune]TokenType{'-': MINUS_MINUS, '=': MINUS_ASSIGN}},
	'*': {single: STAR, next: map[rune]TokenType{'=': STAR_ASSIGN}},
	'/': {single: SLASH, next: map[rune]TokenType{'=': SLASH_ASSIGN}},
	'%': {single: PERCENT, next: map[rune]TokenType{'=': PERCENT_ASSIGN}},
	'&': {single: AND, next: map[rune]TokenType{'&': AND_LOGICAL}},
	'!': {single: NOT, next: map[rune]TokenType{'=': NOT_EQ}},
	'<': {single: LESS, next: map[rune]TokenType{'=': LESS_EQ}},
	'>': {single: GREATER, next: map[rune]TokenType{'=': GREATER_EQ}},
	'=': {single: ASSIGN, next: map[rune]TokenType{'=': EQUALS}},
}

// nextToken skips whitespace and comments and returns the next Token.
func (l *Lexer) nextToken() (Token, error) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.src) {
			return Token{Type: EOF, Line: l.line, Col: l.col}, nil
		}
		if l.peek() == '/' && l.peek2() == '/' {
			l.skipLineComment()
			continue
		}
		if l.peek() == '/' && l.peek2() == '*' {
			line, col := l.line, l.col
			l.advance()
			l.advance()
			if err := l.skipBlockComment(line, col); err != nil {
				return Token{}, err
			}
			continue
		}
		break
	}

	ch := l.peek()
	line, col := l.line, l.col
	switch {
	case unicode.IsLetter(ch) || ch == '_':
		return l.scanIdent(), nil
	case unicode.IsDigit(ch):
		return l.scanNumber()
	case ch == '"':
		return l.scanString()
	case ch == '.':
		if l.peek2() == '.' {
			l.advance()
			l.advance()
			if l.advance() != '.' {
				return Token{}, l.errorf(line, col, "unexpected \"..\"")
			}
			return Token{Type: ELLIPSIS, Lexeme: "...", Line: line, Col: col}, nil
		}
		l.advance()
		return Token{Type: DOT, Lexeme: ".", Line: line, Col: col}, nil
	case ch == '|':
		if l.peek2() != '|' {
			return Token{}, l.errorf(line, col, "bitwise operators are not supported")
		}
		l.advance()
		l.advance()
		return Token{Type: OR_LOGICAL, Lexeme: "||", Line: line, Col: col}, nil
	}

	op, ok := operators[ch]
	if !ok {
		return Token{}, l.errorf(line, col, "unexpected character %q", ch)
	}
	l.advance()
	if tt, ok := op.next[l.peek()]; ok {
		second := l.advance()
		return Token{Type: tt, Lexeme: string([]rune{ch, second}), Line: line, Col: col}, nil
	}
	return Token{Type: op.single, Lexeme: string(ch), Line: line, Col: col}, nil
}

// Lex tokenises src and returns all tokens including the final EOF token.
// Positions in errors are mapped through lines, which may be nil.
func Lex(src string, lines *LineMap) ([]Token, error) {
	l := newLexer(src, lines)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}

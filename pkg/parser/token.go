package parser

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	// Literals
	IDENTIFIER
	INTEGER // decimal or hex integer literal
	FLOAT   // float literal with an f suffix, e.g. 0.5f
	DOUBLE  // float literal without suffix, e.g. 0.5
	STRING  // string literal "..."

	// Keywords
	INT
	FLOAT_KW
	DOUBLE_KW
	BOOL
	VOID
	AUTO
	CONST
	STATIC
	STRUCT
	CLASS
	TEMPLATE
	TYPENAME
	NAMESPACE
	USING
	ENUM
	RETURN
	IF
	ELSE
	WHILE
	FOR
	BREAK
	CONTINUE
	TRUE
	FALSE
	PUBLIC
	PRIVATE
	OPERATOR
	THIS

	// Paired delimiters
	LBRACE   // {
	RBRACE   // }
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]

	// Punctuation
	DOT         // .
	ELLIPSIS    // ...
	SEMICOLON   // ;
	COMMA       // ,
	COLON       // :
	COLON_COLON // ::
	QUESTION    // ?

	// Arithmetic operators
	PLUS        // +
	MINUS       // -
	STAR        // *
	SLASH       // /
	PERCENT     // %
	AND         // & (reference)
	AND_LOGICAL // &&
	OR_LOGICAL  // ||
	NOT         // !
	PLUS_PLUS   // ++
	MINUS_MINUS // --

	// Assignment / comparison
	ASSIGN         // =
	PLUS_ASSIGN    // +=
	MINUS_ASSIGN   // -=
	STAR_ASSIGN    // *=
	SLASH_ASSIGN   // /=
	PERCENT_ASSIGN // %=
	EQUALS         // ==
	NOT_EQ         // !=
	LESS           // <
	GREATER        // >
	LESS_EQ        // <=
	GREATER_EQ     // >=
)

var tokenNames = [...]string{
	EOF:            "EOF",
	IDENTIFIER:     "IDENTIFIER",
	INTEGER:        "INTEGER",
	FLOAT:          "FLOAT",
	DOUBLE:         "DOUBLE",
	STRING:         "STRING",
	INT:            "INT",
	FLOAT_KW:       "FLOAT_KW",
	DOUBLE_KW:      "DOUBLE_KW",
	BOOL:           "BOOL",
	VOID:           "VOID",
	AUTO:           "AUTO",
	CONST:          "CONST",
	STATIC:         "STATIC",
	STRUCT:         "STRUCT",
	CLASS:          "CLASS",
	TEMPLATE:       "TEMPLATE",
	TYPENAME:       "TYPENAME",
	NAMESPACE:      "NAMESPACE",
	USING:          "USING",
	ENUM:           "ENUM",
	RETURN:         "RETURN",
	IF:             "IF",
	ELSE:           "ELSE",
	WHILE:          "WHILE",
	FOR:            "FOR",
	BREAK:          "BREAK",
	CONTINUE:       "CONTINUE",
	TRUE:           "TRUE",
	FALSE:          "FALSE",
	PUBLIC:         "PUBLIC",
	PRIVATE:        "PRIVATE",
	OPERATOR:       "OPERATOR",
	THIS:           "THIS",
	LBRACE:         "LBRACE",
	RBRACE:         "RBRACE",
	LPAREN:         "LPAREN",
	RPAREN:         "RPAREN",
	LBRACKET:       "LBRACKET",
	RBRACKET:       "RBRACKET",
	DOT:            "DOT",
	ELLIPSIS:       "ELLIPSIS",
	SEMICOLON:      "SEMICOLON",
	COMMA:          "COMMA",
	COLON:          "COLON",
	COLON_COLON:    "COLON_COLON",
	QUESTION:       "QUESTION",
	PLUS:           "PLUS",
	MINUS:          "MINUS",
	STAR:           "STAR",
	SLASH:          "SLASH",
	PERCENT:        "PERCENT",
	AND:            "AND",
	AND_LOGICAL:    "AND_LOGICAL",
	OR_LOGICAL:     "OR_LOGICAL",
	NOT:            "NOT",
	PLUS_PLUS:      "PLUS_PLUS",
	MINUS_MINUS:    "MINUS_MINUS",
	ASSIGN:         "ASSIGN",
	PLUS_ASSIGN:    "PLUS_ASSIGN",
	MINUS_ASSIGN:   "MINUS_ASSIGN",
	STAR_ASSIGN:    "STAR_ASSIGN",
	SLASH_ASSIGN:   "SLASH_ASSIGN",
	PERCENT_ASSIGN: "PERCENT_ASSIGN",
	EQUALS:         "EQUALS",
	NOT_EQ:         "NOT_EQ",
	LESS:           "LESS",
	GREATER:        "GREATER",
	LESS_EQ:        "LESS_EQ",
	GREATER_EQ:     "GREATER_EQ",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Token is a single lexical unit produced by the Lexer. Line and Col refer to
// the preprocessed text; the parser maps them back through the line map.
type Token struct {
	Type   TokenType
	Lexeme string
	Line   int
	Col    int
}

func (t Token) String() string {
	return fmt.Sprintf("%-12s %-14q  %d:%d", t.Type, t.Lexeme, t.Line, t.Col)
}

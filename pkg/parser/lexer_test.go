package parser

import (
	"testing"

	"github.com/nalgeon/be"
)

// kinds strips positions so tables stay readable.
func kinds(tokens []Token) []Token {
	out := make([]Token, len(tokens))
	for i, tok := range tokens {
		out[i] = Token{Type: tok.Type, Lexeme: tok.Lexeme}
	}
	return out
}

func TestLex(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Token
	}{
		{
			name:     "Empty",
			input:    "",
			expected: []Token{{Type: EOF}},
		},
		{
			name:  "Operators",
			input: "+ - * / % = == != < <= > >= && || ! ++ -- += -= *= /= %= :: : ? . ...",
			expected: []Token{
				{Type: PLUS, Lexeme: "+"},
				{Type: MINUS, Lexeme: "-"},
				{Type: STAR, Lexeme: "*"},
				{Type: SLASH, Lexeme: "/"},
				{Type: PERCENT, Lexeme: "%"},
				{Type: ASSIGN, Lexeme: "="},
				{Type: EQUALS, Lexeme: "=="},
				{Type: NOT_EQ, Lexeme: "!="},
				{Type: LESS, Lexeme: "<"},
				{Type: LESS_EQ, Lexeme: "<="},
				{Type: GREATER, Lexeme: ">"},
				{Type: GREATER_EQ, Lexeme: ">="},
				{Type: AND_LOGICAL, Lexeme: "&&"},
				{Type: OR_LOGICAL, Lexeme: "||"},
				{Type: NOT, Lexeme: "!"},
				{Type: PLUS_PLUS, Lexeme: "++"},
				{Type: MINUS_MINUS, Lexeme: "--"},
				{Type: PLUS_ASSIGN, Lexeme: "+="},
				{Type: MINUS_ASSIGN, Lexeme: "-="},
				{Type: STAR_ASSIGN, Lexeme: "*="},
				{Type: SLASH_ASSIGN, Lexeme: "/="},
				{Type: PERCENT_ASSIGN, Lexeme: "%="},
				{Type: COLON_COLON, Lexeme: "::"},
				{Type: COLON, Lexeme: ":"},
				{Type: QUESTION, Lexeme: "?"},
				{Type: DOT, Lexeme: "."},
				{Type: ELLIPSIS, Lexeme: "..."},
				{Type: EOF},
			},
		},
		{
			name:  "Keywords and identifiers",
			input: "float double auto template typename operator this gain _tmp2",
			expected: []Token{
				{Type: FLOAT_KW, Lexeme: "float"},
				{Type: DOUBLE_KW, Lexeme: "double"},
				{Type: AUTO, Lexeme: "auto"},
				{Type: TEMPLATE, Lexeme: "template"},
				{Type: TYPENAME, Lexeme: "typename"},
				{Type: OPERATOR, Lexeme: "operator"},
				{Type: THIS, Lexeme: "this"},
				{Type: IDENTIFIER, Lexeme: "gain"},
				{Type: IDENTIFIER, Lexeme: "_tmp2"},
				{Type: EOF},
			},
		},
		{
			name:  "Numbers",
			input: "42 0x1F 0Xff 1.5 1.5f 2e3 2e-3f 1. 1.f",
			expected: []Token{
				{Type: INTEGER, Lexeme: "42"},
				{Type: INTEGER, Lexeme: "0x1F"},
				{Type: INTEGER, Lexeme: "0Xff"},
				{Type: DOUBLE, Lexeme: "1.5"},
				{Type: FLOAT, Lexeme: "1.5"},
				{Type: DOUBLE, Lexeme: "2e3"},
				{Type: FLOAT, Lexeme: "2e-3"},
				{Type: DOUBLE, Lexeme: "1."},
				{Type: FLOAT, Lexeme: "1."},
				{Type: EOF},
			},
		},
		{
			name:  "Member access after a number is not a fraction",
			input: "a[0].x",
			expected: []Token{
				{Type: IDENTIFIER, Lexeme: "a"},
				{Type: LBRACKET, Lexeme: "["},
				{Type: INTEGER, Lexeme: "0"},
				{Type: RBRACKET, Lexeme: "]"},
				{Type: DOT, Lexeme: "."},
				{Type: IDENTIFIER, Lexeme: "x"},
				{Type: EOF},
			},
		},
		{
			name:  "Strings",
			input: `"hi" "a\tb\n" "say \"x\"" ""`,
			expected: []Token{
				{Type: STRING, Lexeme: "hi"},
				{Type: STRING, Lexeme: "a\tb\n"},
				{Type: STRING, Lexeme: `say "x"`},
				{Type: STRING, Lexeme: ""},
				{Type: EOF},
			},
		},
		{
			name:  "Comments",
			input: "a // rest of line\n/* block\n comment */ b",
			expected: []Token{
				{Type: IDENTIFIER, Lexeme: "a"},
				{Type: IDENTIFIER, Lexeme: "b"},
				{Type: EOF},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Lex(tt.input, nil)
			be.Err(t, err, nil)
			be.Equal(t, kinds(tokens), tt.expected)
		})
	}
}

func TestLex_Positions(t *testing.T) {
	tokens, err := Lex("int a;\n  float b;", nil)
	be.Err(t, err, nil)
	be.Equal(t, len(tokens), 7)

	b := tokens[4]
	be.Equal(t, b.Lexeme, "b")
	be.Equal(t, b.Line, 2)
	be.Equal(t, b.Col, 9)
}

func TestLex_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Bad hex", "0x", "malformed hex literal"},
		{"Bad suffix", "12abc", `invalid suffix 'a' on number`},
		{"Unterminated string", `"abc`, "unterminated string literal"},
		{"Newline in string", "\"ab\ncd\"", "unterminated string literal"},
		{"Unknown escape", `"\q"`, `unknown escape sequence \q`},
		{"Unterminated comment", "a /* b", "unterminated block comment"},
		{"Bitwise or", "a | b", "bitwise operators are not supported"},
		{"Two dots", "a..b", `unexpected ".."`},
		{"Stray character", "a @ b", `unexpected character '@'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lex(tt.input, nil)
			be.Err(t, err, tt.want)
		})
	}
}

func TestLex_ErrorsUseLineMap(t *testing.T) {
	_, lines, err := Preprocess("int a;\nint b = 0x;", "osc.dsp", nil)
	be.Err(t, err, nil)

	_, err = Lex("int a;\nint b = 0x;", lines)
	be.Err(t, err, "osc.dsp:2:9: malformed hex literal")
}

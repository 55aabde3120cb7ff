package compiler

import (
	"errors"
	"reflect"
	"testing"
)

func TestLex(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Token
	}{
		{
			name:     "Empty",
			input:    "",
			expected: nil,
		},
		{
			name:  "Assignment",
			input: "x = 1;",
			expected: []Token{
				{Type: IDENTIFIER, Lexeme: "x", Line: 1},
				{Type: OPERATOR, Lexeme: "=", Line: 1},
				{Type: NUMERIC, Lexeme: "1", Line: 1},
				{Type: SEMICOLON, Lexeme: ";", Line: 1},
			},
		},
		{
			name:  "Two Character Operators",
			input: "a += 2.5 != b && !c",
			expected: []Token{
				{Type: IDENTIFIER, Lexeme: "a", Line: 1},
				{Type: OPERATOR, Lexeme: "+=", Line: 1},
				{Type: NUMERIC, Lexeme: "2.5", Line: 1},
				{Type: OPERATOR, Lexeme: "!=", Line: 1},
				{Type: IDENTIFIER, Lexeme: "b", Line: 1},
				{Type: OPERATOR, Lexeme: "&&", Line: 1},
				{Type: OPERATOR, Lexeme: "!", Line: 1},
				{Type: IDENTIFIER, Lexeme: "c", Line: 1},
			},
		},
		{
			name:  "String Escapes",
			input: `"a\"b\n"`,
			expected: []Token{
				{Type: STRING, Lexeme: "a\"b\n", Line: 1},
			},
		},
		{
			name:  "Groups",
			input: "f(a, b[1])",
			expected: []Token{
				{Type: IDENTIFIER, Lexeme: "f", Line: 1},
				{Type: PAREN_GROUP, Lexeme: "()", Line: 1, Tokens: []Token{
					{Type: IDENTIFIER, Lexeme: "a", Line: 1},
					{Type: OPERATOR, Lexeme: ",", Line: 1},
					{Type: IDENTIFIER, Lexeme: "b", Line: 1},
					{Type: SQUARE_GROUP, Lexeme: "[]", Line: 1, Tokens: []Token{
						{Type: NUMERIC, Lexeme: "1", Line: 1},
					}},
				}},
			},
		},
		{
			name:  "Braces Stay Flat",
			input: "{\n}",
			expected: []Token{
				{Type: STRUCTURE, Lexeme: "{", Line: 1},
				{Type: STRUCTURE, Lexeme: "}", Line: 2},
			},
		},
		{
			name:  "Empty Call",
			input: "g()",
			expected: []Token{
				{Type: IDENTIFIER, Lexeme: "g", Line: 1},
				{Type: PAREN_GROUP, Lexeme: "()", Line: 1},
			},
		},
		{
			name:  "Unknown Characters",
			input: "a @ b",
			expected: []Token{
				{Type: IDENTIFIER, Lexeme: "a", Line: 1},
				{Type: CHAR, Lexeme: "@", Line: 1},
				{Type: IDENTIFIER, Lexeme: "b", Line: 1},
			},
		},
		{
			name:  "Keywords Stay Identifiers",
			input: "while if",
			expected: []Token{
				{Type: IDENTIFIER, Lexeme: "while", Line: 1},
				{Type: IDENTIFIER, Lexeme: "if", Line: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Lex(tt.input)
			if err != nil {
				t.Fatalf("Lex(%q) error = %v", tt.input, err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Lex(%q)\n got  %+v\n want %+v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLexLines(t *testing.T) {
	toks, err := Lex("a\nb\n\n  c")
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	want := []int{1, 2, 4}
	for i, tok := range toks {
		if tok.Line != want[i] {
			t.Errorf("token %s: line %d, want %d", tok, tok.Line, want[i])
		}
	}
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Too Many Decimal Points", "x = 1.2.3;"},
		{"Letters In Number", "x = 12ab;"},
		{"Unterminated String", `print("abc);`},
		{"Dangling Escape", `"abc\`},
		{"Mismatched Bracket", "f(a]"},
		{"Unclosed Paren", "f(a"},
		{"Stray Closer", "a)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lex(tt.input)
			if !errors.Is(err, ErrLex) {
				t.Fatalf("Lex(%q) error = %v, want a LexError", tt.input, err)
			}
		})
	}
}

package compiler

import (
	"fmt"
	"strings"
)

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	CHAR TokenType = iota // any character the lexer has no rule for

	IDENTIFIER // name, or keyword before reclassification
	NUMERIC    // 12, 3.5
	STRING     // "..." (value holds the unescaped interior)
	OPERATOR   // = == + += ! . : , ...
	SEMICOLON  // ;
	STRUCTURE  // { } and, before grouping, ( ) [ ]

	PAREN_GROUP  // ( ... ), interior in Tokens
	SQUARE_GROUP // [ ... ], interior in Tokens

	KEYWORD // reserved identifier, assigned by the semantic analyzer
)

var tokenNames = [...]string{
	CHAR:         "CHAR",
	IDENTIFIER:   "IDENTIFIER",
	NUMERIC:      "NUMERIC",
	STRING:       "STRING",
	OPERATOR:     "OPERATOR",
	SEMICOLON:    "SEMICOLON",
	STRUCTURE:    "STRUCTURE",
	PAREN_GROUP:  "PAREN_GROUP",
	SQUARE_GROUP: "SQUARE_GROUP",
	KEYWORD:      "KEYWORD",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Token is a single lexical unit. Group tokens own their interior.
type Token struct {
	Type   TokenType
	Lexeme string
	Line   int     // 1-based source line
	Tokens []Token // PAREN_GROUP / SQUARE_GROUP only
}

func (t Token) String() string {
	switch t.Type {
	case PAREN_GROUP:
		return "(" + joinTokens(t.Tokens) + ")"
	case SQUARE_GROUP:
		return "[" + joinTokens(t.Tokens) + "]"
	case STRING:
		return fmt.Sprintf("%q", t.Lexeme)
	}
	return t.Lexeme
}

func joinTokens(toks []Token) string {
	parts := make([]string, len(toks))
	for i, tok := range toks {
		parts[i] = tok.String()
	}
	return strings.Join(parts, " ")
}

// is reports whether t is the given type with the given lexeme.
func (t Token) is(tt TokenType, lexeme string) bool {
	return t.Type == tt && t.Lexeme == lexeme
}

// keywords are reclassified from IDENTIFIER to KEYWORD during analysis.
var keywords = map[string]bool{
	"if":        true,
	"else":      true,
	"while":     true,
	"for":       true,
	"foreach":   true,
	"return":    true,
	"break":     true,
	"continue":  true,
	"yield":     true,
	"generator": true,
	"int":       true,
	"bool":      true,
	"static":    true,
	"true":      true,
	"false":     true,
	"in":        true,
}

// isKeywordToken reports whether tok is an identifier spelling kw.
func isKeywordToken(tok Token, kw string) bool {
	return tok.Type == IDENTIFIER && tok.Lexeme == kw && keywords[kw]
}

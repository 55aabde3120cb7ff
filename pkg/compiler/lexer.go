package compiler

import (
	"strings"
	"unicode"
)

// operatorChars are the characters that start an OPERATOR token.
const operatorChars = "=><!+-*^/%.:,&|"

// twoCharOperators are the only operators longer than one character.
var twoCharOperators = map[string]bool{
	"==": true,
	"!=": true,
	"<=": true,
	">=": true,
	"+=": true,
	"-=": true,
	"*=": true,
	"/=": true,
	"&&": true,
	"||": true,
	"++": true,
	"--": true,
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src  []rune
	pos  int // index of the next rune to consume
	line int // current 1-based source line
}

func newLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), pos: 0, line: 1}
}

// peek returns the rune at the current position without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// peek2 returns the rune one position ahead of the current position.
func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
	}
	return r
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// scanWord collects an identifier or numeric run. A run that starts with a
// digit also swallows '.' and must be a well-formed decimal literal.
func (l *Lexer) scanWord() (Token, error) {
	line := l.line
	start := l.pos
	numeric := unicode.IsDigit(l.peek())
	for l.pos < len(l.src) {
		r := l.peek()
		if !isWordRune(r) && !(numeric && r == '.') {
			break
		}
		l.advance()
	}
	lexeme := string(l.src[start:l.pos])
	if !numeric {
		return Token{Type: IDENTIFIER, Lexeme: lexeme, Line: line}, nil
	}
	if strings.Count(lexeme, ".") > 1 {
		return Token{}, lexErrorf(line, "too many decimal points in %q", lexeme)
	}
	for _, r := range lexeme {
		if r != '.' && !unicode.IsDigit(r) {
			return Token{}, lexErrorf(line, "expected numeric literal, got %q", lexeme)
		}
	}
	return Token{Type: NUMERIC, Lexeme: lexeme, Line: line}, nil
}

// scanString collects a string literal "...". A quote preceded by an
// unescaped backslash does not close the literal.
func (l *Lexer) scanString() (Token, error) {
	line := l.line
	l.advance() // consume opening "
	var val []rune

	for l.pos < len(l.src) {
		r := l.advance()
		switch r {
		case '"':
			return Token{Type: STRING, Lexeme: string(val), Line: line}, nil
		case '\\':
			if l.pos >= len(l.src) {
				return Token{}, lexErrorf(line, "unterminated string literal")
			}
			switch next := l.advance(); next {
			case 'n':
				val = append(val, '\n')
			case 't':
				val = append(val, '\t')
			default:
				val = append(val, next)
			}
		default:
			val = append(val, r)
		}
	}
	return Token{}, lexErrorf(line, "unterminated string literal")
}

// scanOperator collects a one or two character operator.
func (l *Lexer) scanOperator() Token {
	line := l.line
	first := l.advance()
	if pair := string([]rune{first, l.peek()}); twoCharOperators[pair] {
		l.advance()
		return Token{Type: OPERATOR, Lexeme: pair, Line: line}
	}
	return Token{Type: OPERATOR, Lexeme: string(first), Line: line}
}

// scan produces the flat token stream with whitespace elided.
func (l *Lexer) scan() ([]Token, error) {
	var tokens []Token
	for l.pos < len(l.src) {
		ch := l.peek()
		line := l.line

		switch {
		case unicode.IsSpace(ch):
			l.advance()
		case isWordRune(ch):
			tok, err := l.scanWord()
			if err != nil {
				return tokens, err
			}
			tokens = append(tokens, tok)
		case ch == '"':
			tok, err := l.scanString()
			if err != nil {
				return tokens, err
			}
			tokens = append(tokens, tok)
		case strings.ContainsRune(operatorChars, ch):
			tokens = append(tokens, l.scanOperator())
		case strings.ContainsRune("{}()[]", ch):
			l.advance()
			tokens = append(tokens, Token{Type: STRUCTURE, Lexeme: string(ch), Line: line})
		case ch == ';':
			l.advance()
			tokens = append(tokens, Token{Type: SEMICOLON, Lexeme: ";", Line: line})
		default:
			l.advance()
			tokens = append(tokens, Token{Type: CHAR, Lexeme: string(ch), Line: line})
		}
	}
	return tokens, nil
}

var closerOf = map[string]string{"(": ")", "[": "]"}

// group folds ( ... ) and [ ... ] runs into PAREN_GROUP / SQUARE_GROUP tokens.
// Braces are left in place for the parser.
func group(flat []Token) ([]Token, error) {
	type frame struct {
		open   Token
		tokens []Token
	}
	stack := []*frame{{}}

	for _, tok := range flat {
		top := stack[len(stack)-1]
		if tok.Type != STRUCTURE {
			top.tokens = append(top.tokens, tok)
			continue
		}
		switch tok.Lexeme {
		case "(", "[":
			stack = append(stack, &frame{open: tok})
		case ")", "]":
			if len(stack) == 1 {
				return nil, lexErrorf(tok.Line, "unexpected %q", tok.Lexeme)
			}
			if closerOf[top.open.Lexeme] != tok.Lexeme {
				return nil, lexErrorf(tok.Line, "mismatched %q closes %q opened on line %d",
					tok.Lexeme, top.open.Lexeme, top.open.Line)
			}
			tt := PAREN_GROUP
			if top.open.Lexeme == "[" {
				tt = SQUARE_GROUP
			}
			stack = stack[:len(stack)-1]
			parent := stack[len(stack)-1]
			parent.tokens = append(parent.tokens, Token{
				Type:   tt,
				Lexeme: top.open.Lexeme + tok.Lexeme,
				Line:   top.open.Line,
				Tokens: top.tokens,
			})
		default:
			top.tokens = append(top.tokens, tok)
		}
	}

	if len(stack) > 1 {
		open := stack[len(stack)-1].open
		return nil, lexErrorf(open.Line, "unterminated %q", open.Lexeme)
	}
	return stack[0].tokens, nil
}

// Lex tokenises src and groups brackets. It returns a LexError on the first
// malformed literal or unbalanced bracket.
func Lex(src string) ([]Token, error) {
	flat, err := newLexer(src).scan()
	if err != nil {
		return nil, err
	}
	return group(flat)
}

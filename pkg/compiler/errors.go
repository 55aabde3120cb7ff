package compiler

import (
	"errors"
	"fmt"
)

// ErrorKind names the compilation phase that rejected the program.
type ErrorKind string

const (
	LexError      ErrorKind = "LexError"
	ParseError    ErrorKind = "ParseError"
	SemanticError ErrorKind = "SemanticError"
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrLex      = errors.New("lex error")
	ErrParse    = errors.New("parse error")
	ErrSemantic = errors.New("semantic error")
)

// Error is a fatal compilation error.
type Error struct {
	Kind    ErrorKind
	Line    int // 0 when unknown
	Message string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", e.Kind, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrLex:
		return e.Kind == LexError
	case ErrParse:
		return e.Kind == ParseError
	case ErrSemantic:
		return e.Kind == SemanticError
	}
	return false
}

func lexErrorf(line int, format string, args ...any) error {
	return &Error{Kind: LexError, Line: line, Message: fmt.Sprintf(format, args...)}
}

func parseErrorf(line int, format string, args ...any) error {
	return &Error{Kind: ParseError, Line: line, Message: fmt.Sprintf(format, args...)}
}

func semanticErrorf(line int, format string, args ...any) error {
	return &Error{Kind: SemanticError, Line: line, Message: fmt.Sprintf(format, args...)}
}

package compiler

import "fmt"

// State is shared by all lowering passes of one compilation.
type State struct {
	temps int
}

// Temp mints a fresh temporary variable name.
func (s *State) Temp() string {
	s.temps++
	return fmt.Sprintf("temp_var_%d", s.temps)
}

func nameBinding(name string) *Binding {
	return &Binding{Segments: []Term{&Atom{Type: IDENTIFIER, Value: name}}}
}

func intAtom(v string) *Atom {
	return &Atom{Type: NUMERIC, Value: v}
}

func exprOf(terms ...Term) *Expression {
	return &Expression{Terms: terms}
}

// declare builds `var name = value`.
func declare(line int, name string, value *Expression) *Assignment {
	return &Assignment{Meta: Meta{Line: line}, Modifiers: []string{"var"}, Target: nameBinding(name), Value: value}
}

// negated builds `! (e)`.
func negated(e *Expression) *Expression {
	return exprOf(&Atom{Type: OPERATOR, Value: "!"}, &Group{Type: PAREN_GROUP, Terms: e.Terms})
}

// breakGuard builds `if (!(cond)) break;`.
func breakGuard(line int, cond *Expression) *IfStmt {
	return &IfStmt{
		Meta: Meta{Line: line},
		Cond: negated(cond),
		Body: []Stmt{&BreakStmt{Meta: Meta{Line: line}}},
	}
}

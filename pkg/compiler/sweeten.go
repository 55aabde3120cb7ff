package compiler

// Sweeten turns a bare declaration such as `int x;` into `int x = 0`.
func Sweeten(prog *Program) error {
	for _, fn := range prog.Functions {
		body, err := sweetenBlock(fn.Body)
		if err != nil {
			return err
		}
		fn.Body = body
	}
	return nil
}

func sweetenBlock(stmts []Stmt) ([]Stmt, error) {
	for i, s := range stmts {
		if b, ok := s.(Block); ok {
			body, err := sweetenBlock(*b.body())
			if err != nil {
				return nil, err
			}
			*b.body() = body
			continue
		}
		e, ok := s.(*ExprStmt)
		if !ok || !isDeclaration(e.Expr.Terms) {
			continue
		}
		terms := e.Expr.Terms
		mods, err := modifierNames(terms[:len(terms)-1], e.Line)
		if err != nil {
			return nil, err
		}
		stmts[i] = &Assignment{
			Meta:      e.Meta,
			Modifiers: mods,
			Target:    terms[len(terms)-1].(*Binding),
			Value:     exprOf(intAtom("0")),
		}
	}
	return stmts, nil
}

// isDeclaration matches one or more modifiers followed by a binding.
func isDeclaration(terms []Term) bool {
	if len(terms) < 2 {
		return false
	}
	if _, ok := terms[len(terms)-1].(*Binding); !ok {
		return false
	}
	for _, t := range terms[:len(terms)-1] {
		if !isModifierTerm(t) {
			return false
		}
	}
	return true
}

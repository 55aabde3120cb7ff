package compiler

// Parameterize splits the raw parenthesis interior of every remaining call
// (call statements and calls that form an assignment's whole value) into
// argument expressions on top-level commas. It must run after Reduce.
func Parameterize(prog *Program) error {
	for _, fn := range prog.Functions {
		if err := walkStmts(fn.Body, parameterizeStmt); err != nil {
			return err
		}
	}
	return nil
}

func parameterizeStmt(s Stmt) error {
	switch s := s.(type) {
	case *CallStmt:
		return splitArgs(s.Call, s.Line)
	case *Assignment:
		if c := soleCall(s.Value); c != nil {
			return splitArgs(c, s.Line)
		}
	}
	return nil
}

// soleCall returns the call when e consists of exactly one call.
func soleCall(e *Expression) *Call {
	if e == nil || len(e.Terms) != 1 {
		return nil
	}
	c, _ := e.Terms[0].(*Call)
	return c
}

func splitArgs(c *Call, line int) error {
	c.Args = []*Argument{}
	if len(c.Raw) == 0 {
		return nil
	}
	var cur []Term
	for _, t := range c.Raw {
		if a, ok := t.(*Atom); ok && a.Type == OPERATOR && a.Value == "," {
			if len(cur) == 0 {
				return semanticErrorf(line, "malformed argument list in call to %s", c.Target)
			}
			c.Args = append(c.Args, &Argument{Expr: &Expression{Terms: cur}})
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	if len(cur) == 0 {
		return semanticErrorf(line, "malformed argument list in call to %s", c.Target)
	}
	c.Args = append(c.Args, &Argument{Expr: &Expression{Terms: cur}})
	return nil
}

// walkStmts visits every statement depth first, parents before bodies.
func walkStmts(stmts []Stmt, visit func(Stmt) error) error {
	for _, s := range stmts {
		if err := visit(s); err != nil {
			return err
		}
		if b, ok := s.(Block); ok {
			if err := walkStmts(*b.body(), visit); err != nil {
				return err
			}
		}
	}
	return nil
}

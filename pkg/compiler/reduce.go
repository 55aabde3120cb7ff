package compiler

// Reduce flattens nested calls so that every call receives only simple
// arguments. The deepest call of a statement is hoisted into a
// `var temp_var_N = call` assignment placed before the statement, and its
// position is taken by the temporary; this repeats until the only call left
// is the whole right-hand side of an assignment or a bare call statement.
// Statements left holding a lone binding are dropped.
func Reduce(prog *Program, st *State) {
	for _, fn := range prog.Functions {
		fn.Body = reduceBlock(fn.Body, st)
	}
}

func reduceBlock(stmts []Stmt, st *State) []Stmt {
	stmts = nestCallingElseIfs(stmts)
	out := make([]Stmt, 0, len(stmts))
	for _, s := range stmts {
		out = append(out, extractCalls(s, st)...)
		if b, ok := s.(Block); ok {
			*b.body() = reduceBlock(*b.body(), st)
		}
		if e, ok := s.(*ExprStmt); ok && len(e.Expr.Terms) == 1 {
			switch t := e.Expr.Terms[0].(type) {
			case *Binding:
				continue
			case *Call:
				s = &CallStmt{Meta: e.Meta, Call: t}
			}
		}
		out = append(out, s)
	}
	return out
}

// nestCallingElseIfs rewrites `else if (g) B <rest of chain>` into
// `else { if (g) B <rest of chain> }` when g contains a call, so the
// temporaries hoisted out of g land inside the chain instead of breaking it.
func nestCallingElseIfs(stmts []Stmt) []Stmt {
	for i := 0; i < len(stmts); i++ {
		e, ok := stmts[i].(*ElseStmt)
		if !ok || e.Cond == nil || !hasCall(e.Cond.Terms) {
			continue
		}
		j := i + 1
		for j < len(stmts) {
			if _, ok := stmts[j].(*ElseStmt); !ok {
				break
			}
			j++
		}
		inner := &IfStmt{Meta: Meta{Line: e.Line}, Cond: e.Cond, Body: e.Body}
		body := append([]Stmt{inner}, stmts[i+1:j]...)
		wrapped := &ElseStmt{Meta: e.Meta, Body: body}

		rest := append([]Stmt{wrapped}, stmts[j:]...)
		stmts = append(stmts[:i:i], rest...)
	}
	return stmts
}

// callSite is a call found inside some term list, with enough context to
// replace it in place.
type callSite struct {
	list  []Term
	index int
	call  *Call
	depth int
}

func findCalls(terms []Term, depth int, found []callSite) []callSite {
	for i, t := range terms {
		switch t := t.(type) {
		case *Call:
			found = append(found, callSite{list: terms, index: i, call: t, depth: depth})
			found = findCalls(t.Raw, depth+1, found)
			found = findCallsInBinding(t.Target, depth+1, found)
		case *Group:
			found = findCalls(t.Terms, depth+1, found)
		case *Binding:
			found = findCallsInBinding(t, depth+1, found)
		}
	}
	return found
}

func findCallsInBinding(b *Binding, depth int, found []callSite) []callSite {
	for _, s := range b.Segments {
		if g, ok := s.(*Group); ok {
			found = findCalls(g.Terms, depth, found)
		}
	}
	return found
}

func hasCall(terms []Term) bool {
	return len(findCalls(terms, 1, nil)) > 0
}

// statementCalls lists every call reachable from s's own expressions (not
// from its body). top is the term list whose single call may stay in place.
func statementCalls(s Stmt) (found []callSite, top []Term) {
	switch s := s.(type) {
	case *Assignment:
		found = findCalls(s.Value.Terms, 1, nil)
		found = findCallsInBinding(s.Target, 1, found)
		top = s.Value.Terms
	case *ExprStmt:
		found = findCalls(s.Expr.Terms, 1, nil)
		top = s.Expr.Terms
	case *CallStmt:
		found = findCalls(s.Call.Raw, 2, nil)
		found = findCallsInBinding(s.Call.Target, 2, found)
	case *IfStmt:
		found = exprCalls(s.Cond)
	case *ElseStmt:
		found = exprCalls(s.Cond)
	case *WhileStmt:
		found = exprCalls(s.Cond)
	case *BreakStmt:
		found = exprCalls(s.Target)
	case *ContinueStmt:
		found = exprCalls(s.Target)
	case *ReturnStmt:
		found = exprCalls(s.Value)
	case *YieldStmt:
		found = exprCalls(s.Value)
	}
	return found, top
}

func exprCalls(e *Expression) []callSite {
	if e == nil {
		return nil
	}
	return findCalls(e.Terms, 1, nil)
}

func extractCalls(s Stmt, st *State) []Stmt {
	var hoisted []Stmt
	for {
		found, top := statementCalls(s)
		if len(found) == 0 {
			break
		}
		if len(found) == 1 && len(top) == 1 && top[0] == Term(found[0].call) {
			break
		}
		deepest := found[0]
		for _, f := range found[1:] {
			if f.depth > deepest.depth {
				deepest = f
			}
		}
		name := st.Temp()
		deepest.list[deepest.index] = nameBinding(name)
		hoisted = append(hoisted, declare(s.meta().Line, name, exprOf(deepest.call)))
	}
	return hoisted
}

package compiler

// Restructure rewrites every loop into the single shape the VM runs: a
// condition-less while whose body begins with its own escape check.
//
//	while (E) B            →  while { if (!(E)) break; B }
//	for (I; E; S) B        →  I; var f = 0; while { if (f) S; f = 1; if (!(E)) break; B }
//	foreach (x in E) B     →  var it = E; var i = 0;
//	                          while { var x = next(it, i); if (finished(it, i)) break; i = i + 1; B }
//
// Blocks are rewritten innermost first.
func Restructure(prog *Program, st *State) {
	for _, fn := range prog.Functions {
		fn.Body = restructureBlock(fn.Body, st)
	}
}

func restructureBlock(stmts []Stmt, st *State) []Stmt {
	out := make([]Stmt, 0, len(stmts))
	for _, s := range stmts {
		if b, ok := s.(Block); ok {
			*b.body() = restructureBlock(*b.body(), st)
		}
		out = append(out, restructureStmt(s, st)...)
	}
	return out
}

func restructureStmt(s Stmt, st *State) []Stmt {
	switch s := s.(type) {
	case *WhileStmt:
		if s.Cond != nil {
			s.Body = append([]Stmt{breakGuard(s.Line, s.Cond)}, s.Body...)
			s.Cond = nil
		}
		return []Stmt{s}
	case *ForStmt:
		return restructureFor(s, st)
	case *ForeachStmt:
		return restructureForeach(s, st)
	}
	return []Stmt{s}
}

func restructureFor(s *ForStmt, st *State) []Stmt {
	var out []Stmt
	if s.Init != nil {
		out = append(out, s.Init)
	}

	loop := &WhileStmt{Meta: s.Meta}
	if s.Step != nil {
		// The step is skipped on the first pass so continue still runs it.
		flag := st.Temp()
		out = append(out, declare(s.Line, flag, exprOf(intAtom("0"))))
		loop.Body = append(loop.Body,
			&IfStmt{Meta: Meta{Line: s.Line}, Cond: exprOf(nameBinding(flag)), Body: []Stmt{s.Step}},
			&Assignment{Meta: Meta{Line: s.Line}, Target: nameBinding(flag), Value: exprOf(intAtom("1"))},
		)
	}
	if s.Cond != nil {
		loop.Body = append(loop.Body, breakGuard(s.Line, s.Cond))
	}
	loop.Body = append(loop.Body, s.Body...)
	return append(out, loop)
}

func restructureForeach(s *ForeachStmt, st *State) []Stmt {
	it, idx := st.Temp(), st.Temp()
	mods := s.Modifiers
	if len(mods) == 0 {
		mods = []string{"var"}
	}

	protocol := func(name string) *Call {
		return &Call{
			Target: nameBinding(name),
			Raw:    []Term{nameBinding(it), &Atom{Type: OPERATOR, Value: ","}, nameBinding(idx)},
		}
	}
	line := s.Line

	loop := &WhileStmt{Meta: s.Meta}
	loop.Body = append([]Stmt{
		&Assignment{Meta: Meta{Line: line}, Modifiers: mods, Target: nameBinding(s.Var), Value: exprOf(protocol("next"))},
		&IfStmt{Meta: Meta{Line: line}, Cond: exprOf(protocol("finished")), Body: []Stmt{&BreakStmt{Meta: Meta{Line: line}}}},
		&Assignment{Meta: Meta{Line: line}, Target: nameBinding(idx), Value: exprOf(nameBinding(idx), &Atom{Type: OPERATOR, Value: "+"}, intAtom("1"))},
	}, s.Body...)

	return []Stmt{
		declare(line, it, s.Iter),
		declare(line, idx, exprOf(intAtom("0"))),
		loop,
	}
}

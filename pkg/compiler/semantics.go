package compiler

// assignOps are the operators that make a statement an assignment.
var assignOps = map[string]bool{"=": true, "+=": true, "-=": true, "*=": true, "/=": true}

// Analyze builds the Program AST from the parse tree. Every top-level
// statement must be a function definition.
func Analyze(root *Node) (*Program, error) {
	prog := &Program{}
	seen := make(map[string]bool)
	for _, n := range root.Children {
		fn, err := analyzeFunction(n)
		if err != nil {
			return nil, err
		}
		if seen[fn.Name] {
			return nil, semanticErrorf(n.Line, "function %s is defined twice", fn.Name)
		}
		seen[fn.Name] = true
		prog.Functions = append(prog.Functions, fn)
	}
	return prog, nil
}

func analyzeFunction(n *Node) (*Function, error) {
	toks := n.Tokens
	if len(toks) < 3 || toks[0].Type != IDENTIFIER || toks[1].Type != IDENTIFIER || toks[2].Type != PAREN_GROUP {
		return nil, semanticErrorf(n.Line, "malformed function header: %s", joinTokens(toks))
	}
	if len(toks) > 3 {
		return nil, semanticErrorf(n.Line, "unexpected tokens after function header: %s", joinTokens(toks[3:]))
	}
	if keywords[toks[1].Lexeme] {
		return nil, semanticErrorf(n.Line, "keyword %s cannot name a function", toks[1].Lexeme)
	}
	if !n.Block {
		return nil, semanticErrorf(n.Line, "function %s has no body", toks[1].Lexeme)
	}

	params, err := analyzeParams(toks[2].Tokens, n.Line)
	if err != nil {
		return nil, err
	}
	body, err := analyzeBlock(n.Children)
	if err != nil {
		return nil, err
	}

	fn := &Function{
		Name:       toks[1].Lexeme,
		ReturnType: toks[0].Lexeme,
		Params:     params,
		Body:       body,
		Line:       n.Line,
	}
	if fn.ReturnType != "generator" {
		if line, found := findYield(body); found {
			return nil, semanticErrorf(line, "yield outside of a generator in %s", fn.Name)
		}
	}
	if fn.ReturnType == "generator" {
		if len(body) == 0 {
			fn.Body = []Stmt{&YieldBreakStmt{Meta: Meta{Line: n.Line}}}
		} else if _, ok := body[len(body)-1].(*YieldBreakStmt); !ok {
			fn.Body = append(fn.Body, &YieldBreakStmt{Meta: Meta{Line: n.Line}})
		}
	}
	return fn, nil
}

// findYield reports the line of the first yield in stmts, searching nested
// blocks.
func findYield(stmts []Stmt) (int, bool) {
	for _, st := range stmts {
		switch st := st.(type) {
		case *YieldStmt:
			return st.Line, true
		case *YieldBreakStmt:
			return st.Line, true
		case Block:
			if line, ok := findYield(*st.body()); ok {
				return line, true
			}
		}
	}
	return 0, false
}

// analyzeParams reads `int a, b` style lists: each comma separated segment
// is a name, optionally preceded by a type.
func analyzeParams(toks []Token, line int) ([]Parameter, error) {
	if len(toks) == 0 {
		return nil, nil
	}
	var params []Parameter
	for _, seg := range splitTokens(toks, func(t Token) bool { return t.is(OPERATOR, ",") }) {
		for _, t := range seg {
			if t.Type != IDENTIFIER {
				return nil, semanticErrorf(line, "invalid parameter definition: %s", joinTokens(seg))
			}
		}
		var p Parameter
		switch len(seg) {
		case 1:
			p.Name = seg[0].Lexeme
		case 2:
			p.Type, p.Name = seg[0].Lexeme, seg[1].Lexeme
		default:
			return nil, semanticErrorf(line, "invalid parameter definition: %s", joinTokens(seg))
		}
		if keywords[p.Name] {
			return nil, semanticErrorf(line, "keyword %s cannot name a parameter", p.Name)
		}
		params = append(params, p)
	}
	return params, nil
}

// splitTokens cuts toks at every separator. Empty segments are kept.
func splitTokens(toks []Token, sep func(Token) bool) [][]Token {
	parts := [][]Token{nil}
	for _, t := range toks {
		if sep(t) {
			parts = append(parts, nil)
			continue
		}
		parts[len(parts)-1] = append(parts[len(parts)-1], t)
	}
	return parts
}

func analyzeBlock(nodes []*Node) ([]Stmt, error) {
	var out []Stmt
	for i := 0; i < len(nodes); {
		stmt, used, err := analyzeStatement(nodes[i], nodes[i+1:])
		if err != nil {
			return nil, err
		}
		if e, ok := stmt.(*ElseStmt); ok && !continuesChain(out) {
			return nil, semanticErrorf(e.Line, "else without a matching if")
		}
		out = append(out, stmt)
		i += 1 + used
	}
	return out, nil
}

func continuesChain(stmts []Stmt) bool {
	if len(stmts) == 0 {
		return false
	}
	switch s := stmts[len(stmts)-1].(type) {
	case *IfStmt:
		return true
	case *ElseStmt:
		return s.Cond != nil
	}
	return false
}

// analyzeStatement builds one statement. It reports how many of the
// following siblings it absorbed (else branches of a brace-less body).
func analyzeStatement(n *Node, siblings []*Node) (Stmt, int, error) {
	toks := n.Tokens
	meta := Meta{Line: n.Line}
	if isLabel(toks) {
		meta.Label = toks[0].Lexeme
		toks = toks[2:]
	}
	if len(toks) == 0 {
		return nil, 0, semanticErrorf(n.Line, "block without a statement")
	}

	kw := ""
	if toks[0].Type == IDENTIFIER && keywords[toks[0].Lexeme] {
		kw = toks[0].Lexeme
	}

	switch kw {
	case "if":
		cond, err := conditionAt(toks, 1, "if")
		if err != nil {
			return nil, 0, err
		}
		body, used, err := analyzeBody(n, toks[2:], siblings)
		if err != nil {
			return nil, 0, err
		}
		return &IfStmt{Meta: meta, Cond: cond, Body: body}, used, nil

	case "else":
		rest := toks[1:]
		var cond *Expression
		if len(rest) > 0 && isKeywordToken(rest[0], "if") {
			c, err := conditionAt(toks, 2, "else if")
			if err != nil {
				return nil, 0, err
			}
			cond, rest = c, toks[3:]
		}
		body, used, err := analyzeBody(n, rest, siblings)
		if err != nil {
			return nil, 0, err
		}
		return &ElseStmt{Meta: meta, Cond: cond, Body: body}, used, nil

	case "while":
		cond, err := conditionAt(toks, 1, "while")
		if err != nil {
			return nil, 0, err
		}
		body, used, err := analyzeBody(n, toks[2:], siblings)
		if err != nil {
			return nil, 0, err
		}
		return &WhileStmt{Meta: meta, Cond: cond, Body: body}, used, nil

	case "for":
		stmt, err := analyzeForHeader(meta, toks)
		if err != nil {
			return nil, 0, err
		}
		body, used, err := analyzeBody(n, toks[2:], siblings)
		if err != nil {
			return nil, 0, err
		}
		stmt.Body = body
		return stmt, used, nil

	case "foreach":
		stmt, err := analyzeForeachHeader(meta, toks)
		if err != nil {
			return nil, 0, err
		}
		body, used, err := analyzeBody(n, toks[2:], siblings)
		if err != nil {
			return nil, 0, err
		}
		stmt.Body = body
		return stmt, used, nil
	}

	if n.Block {
		return nil, 0, semanticErrorf(n.Line, "unexpected block after %s", joinTokens(toks))
	}

	switch kw {
	case "break":
		return &BreakStmt{Meta: meta, Target: optionalExpression(toks[1:])}, 0, nil
	case "continue":
		return &ContinueStmt{Meta: meta, Target: optionalExpression(toks[1:])}, 0, nil
	case "return":
		return &ReturnStmt{Meta: meta, Value: optionalExpression(toks[1:])}, 0, nil
	case "yield":
		if len(toks) > 1 && isKeywordToken(toks[1], "break") {
			if len(toks) > 2 {
				return nil, 0, semanticErrorf(n.Line, "unexpected tokens after yield break: %s", joinTokens(toks[2:]))
			}
			return &YieldBreakStmt{Meta: meta}, 0, nil
		}
		return &YieldStmt{Meta: meta, Value: optionalExpression(toks[1:])}, 0, nil
	}

	stmt, err := analyzeSimple(meta, toks)
	return stmt, 0, err
}

func isLabel(toks []Token) bool {
	return len(toks) >= 2 && toks[0].Type == IDENTIFIER && !keywords[toks[0].Lexeme] && toks[1].is(OPERATOR, ":")
}

// analyzeBody produces the body of a control statement. Without a trailing
// statement the '{ }' block is the body. Otherwise the trailing tokens form a
// one-statement body, which also claims the else branches that follow when
// the nearest open if lives inside it.
func analyzeBody(n *Node, rest []Token, siblings []*Node) ([]Stmt, int, error) {
	if len(rest) == 0 {
		body, err := analyzeBlock(n.Children)
		return body, 0, err
	}

	nodes := []*Node{{Tokens: rest, Children: n.Children, Block: n.Block, Line: rest[0].Line}}
	used := 0
	if danglingIf(rest) {
		for _, s := range siblings {
			if len(s.Tokens) == 0 || !isKeywordToken(s.Tokens[0], "else") {
				break
			}
			nodes = append(nodes, s)
			used++
		}
	}
	body, err := analyzeBlock(nodes)
	return body, used, err
}

// danglingIf reports whether toks, read through any chain of loop headers,
// is an if statement that a following else would bind to.
func danglingIf(toks []Token) bool {
	for {
		if isLabel(toks) {
			toks = toks[2:]
		}
		if len(toks) < 2 || toks[1].Type != PAREN_GROUP {
			return false
		}
		switch {
		case isKeywordToken(toks[0], "if"):
			return true
		case isKeywordToken(toks[0], "while"), isKeywordToken(toks[0], "for"), isKeywordToken(toks[0], "foreach"):
			toks = toks[2:]
		default:
			return false
		}
	}
}

func conditionAt(toks []Token, i int, what string) (*Expression, error) {
	if i >= len(toks) || toks[i].Type != PAREN_GROUP {
		return nil, semanticErrorf(toks[0].Line, "expected (condition) after %s", what)
	}
	if len(toks[i].Tokens) == 0 {
		return nil, semanticErrorf(toks[i].Line, "empty condition after %s", what)
	}
	return expression(toks[i].Tokens), nil
}

func analyzeForHeader(meta Meta, toks []Token) (*ForStmt, error) {
	if len(toks) < 2 || toks[1].Type != PAREN_GROUP {
		return nil, semanticErrorf(meta.Line, "expected (init; condition; step) after for")
	}
	parts := splitTokens(toks[1].Tokens, func(t Token) bool { return t.Type == SEMICOLON })
	if len(parts) != 3 {
		return nil, semanticErrorf(meta.Line, "for header needs exactly init; condition; step")
	}

	stmt := &ForStmt{Meta: meta, Cond: optionalExpression(parts[1])}
	var err error
	if len(parts[0]) > 0 {
		if stmt.Init, err = analyzeSimple(Meta{Line: meta.Line}, parts[0]); err != nil {
			return nil, err
		}
	}
	if len(parts[2]) > 0 {
		if stmt.Step, err = analyzeSimple(Meta{Line: meta.Line}, parts[2]); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func analyzeForeachHeader(meta Meta, toks []Token) (*ForeachStmt, error) {
	if len(toks) < 2 || toks[1].Type != PAREN_GROUP {
		return nil, semanticErrorf(meta.Line, "expected (item in iterable) after foreach")
	}
	inner := toks[1].Tokens
	k := -1
	for i, t := range inner {
		if isKeywordToken(t, "in") {
			k = i
			break
		}
	}
	if k < 1 || k == len(inner)-1 {
		return nil, semanticErrorf(meta.Line, "malformed foreach header: %s", joinTokens(inner))
	}

	name := inner[k-1]
	if name.Type != IDENTIFIER || keywords[name.Lexeme] {
		return nil, semanticErrorf(meta.Line, "foreach variable must be a name, got %s", name)
	}
	var mods []string
	for _, t := range inner[:k-1] {
		if t.Type != IDENTIFIER {
			return nil, semanticErrorf(meta.Line, "malformed foreach header: %s", joinTokens(inner))
		}
		mods = append(mods, t.Lexeme)
	}
	if len(mods) > 1 {
		return nil, semanticErrorf(meta.Line, "only one modifier is supported, got %v", mods)
	}
	return &ForeachStmt{Meta: meta, Modifiers: mods, Var: name.Lexeme, Iter: expression(inner[k+1:])}, nil
}

// analyzeSimple handles everything that is not a control statement:
// assignments, increments and bare expressions.
func analyzeSimple(meta Meta, toks []Token) (Stmt, error) {
	terms := identifyBindings(convert(toks))

	if len(terms) == 2 {
		b, isBinding := terms[0].(*Binding)
		op, isOp := terms[1].(*Atom)
		if isBinding && isOp && op.Type == OPERATOR && (op.Value == "++" || op.Value == "--") {
			identifyCallsInBinding(b)
			value := []Term{b, &Atom{Type: OPERATOR, Value: op.Value[:1]}, &Atom{Type: NUMERIC, Value: "1"}}
			return &Assignment{Meta: meta, Target: b, Value: &Expression{Terms: value}}, nil
		}
	}

	for i, t := range terms {
		if a, ok := t.(*Atom); ok && a.Type == OPERATOR && assignOps[a.Value] {
			return buildAssignment(meta, terms[:i], a.Value, terms[i+1:])
		}
	}
	return &ExprStmt{Meta: meta, Expr: &Expression{Terms: identifyCalls(terms)}}, nil
}

func buildAssignment(meta Meta, lhs []Term, op string, rhs []Term) (Stmt, error) {
	if len(lhs) == 0 {
		return nil, semanticErrorf(meta.Line, "assignment target not a binding")
	}
	target, ok := lhs[len(lhs)-1].(*Binding)
	if !ok {
		return nil, semanticErrorf(meta.Line, "assignment target not a binding: %s", joinTerms(lhs))
	}
	for _, t := range lhs[:len(lhs)-1] {
		if !isModifierTerm(t) {
			return nil, semanticErrorf(meta.Line, "assignment target not a binding: %s", joinTerms(lhs))
		}
	}
	mods, err := modifierNames(lhs[:len(lhs)-1], meta.Line)
	if err != nil {
		return nil, err
	}
	if len(rhs) == 0 {
		return nil, semanticErrorf(meta.Line, "missing value in assignment to %s", target)
	}

	identifyCallsInBinding(target)
	value := identifyCalls(rhs)
	if op != "=" {
		value = []Term{target, &Atom{Type: OPERATOR, Value: op[:1]}, &Group{Type: PAREN_GROUP, Terms: value}}
	}
	return &Assignment{Meta: meta, Modifiers: mods, Target: target, Value: &Expression{Terms: value}}, nil
}

// isModifierTerm reports whether t can be a type qualifier: a keyword or a
// plain single-name binding such as `var` or `list`.
func isModifierTerm(t Term) bool {
	switch t := t.(type) {
	case *Atom:
		return t.Type == KEYWORD
	case *Binding:
		if len(t.Segments) != 1 {
			return false
		}
		a, ok := t.Segments[0].(*Atom)
		return ok && a.Type == IDENTIFIER
	}
	return false
}

func modifierNames(terms []Term, line int) ([]string, error) {
	var mods []string
	for _, t := range terms {
		if !isModifierTerm(t) {
			return nil, semanticErrorf(line, "invalid modifier %s", t)
		}
		mods = append(mods, t.String())
	}
	if len(mods) > 1 {
		return nil, semanticErrorf(line, "only one modifier is supported, got %v", mods)
	}
	return mods, nil
}

func optionalExpression(toks []Token) *Expression {
	if len(toks) == 0 {
		return nil
	}
	return expression(toks)
}

func expression(toks []Token) *Expression {
	return &Expression{Terms: identifyCalls(identifyBindings(convert(toks)))}
}

// convert lifts tokens into terms, reclassifying reserved identifiers.
func convert(toks []Token) []Term {
	terms := make([]Term, 0, len(toks))
	for _, tok := range toks {
		switch tok.Type {
		case PAREN_GROUP, SQUARE_GROUP:
			terms = append(terms, &Group{Type: tok.Type, Terms: convert(tok.Tokens)})
		case IDENTIFIER:
			if keywords[tok.Lexeme] {
				terms = append(terms, &Atom{Type: KEYWORD, Value: tok.Lexeme})
			} else {
				terms = append(terms, &Atom{Type: IDENTIFIER, Value: tok.Lexeme})
			}
		default:
			terms = append(terms, &Atom{Type: tok.Type, Value: tok.Lexeme})
		}
	}
	return terms
}

func isIdentifierAtom(t Term) bool {
	a, ok := t.(*Atom)
	return ok && a.Type == IDENTIFIER
}

func isSquare(t Term) bool {
	g, ok := t.(*Group)
	return ok && g.Type == SQUARE_GROUP
}

func isDot(t Term) bool {
	a, ok := t.(*Atom)
	return ok && a.Type == OPERATOR && a.Value == "."
}

// chains reports whether a may sit directly left of b, or b left of a,
// inside one binding: names and indexers alternate with '.' and indexers.
func chains(a, b Term) bool {
	link := func(x, y Term) bool {
		return (isIdentifierAtom(x) || isSquare(x)) && (isDot(y) || isSquare(y))
	}
	return link(a, b) || link(b, a)
}

// identifyBindings folds identifier/./[...] runs into Binding terms,
// scanning right to left. Bindings never re-merge, so the pass is idempotent.
func identifyBindings(terms []Term) []Term {
	for _, t := range terms {
		if g, ok := t.(*Group); ok {
			g.Terms = identifyBindings(g.Terms)
		}
	}

	var rev []Term
	for i := len(terms) - 1; i >= 0; {
		if !isIdentifierAtom(terms[i]) && !isSquare(terms[i]) {
			rev = append(rev, terms[i])
			i--
			continue
		}
		j := i
		for j > 0 && chains(terms[j-1], terms[j]) {
			j--
		}
		segs := make([]Term, i-j+1)
		copy(segs, terms[j:i+1])
		rev = append(rev, &Binding{Segments: segs})
		i = j - 1
	}
	return reverseTerms(rev)
}

// identifyCalls replaces every Binding followed by a parenthesis group with
// a Call, innermost first.
func identifyCalls(terms []Term) []Term {
	for _, t := range terms {
		switch t := t.(type) {
		case *Group:
			t.Terms = identifyCalls(t.Terms)
		case *Binding:
			identifyCallsInBinding(t)
		}
	}

	var rev []Term
	for i := len(terms) - 1; i >= 0; i-- {
		if g, ok := terms[i].(*Group); ok && g.Type == PAREN_GROUP && i > 0 {
			if b, ok := terms[i-1].(*Binding); ok {
				rev = append(rev, &Call{Target: b, Raw: g.Terms})
				i--
				continue
			}
		}
		rev = append(rev, terms[i])
	}
	return reverseTerms(rev)
}

func identifyCallsInBinding(b *Binding) {
	for _, s := range b.Segments {
		if g, ok := s.(*Group); ok {
			g.Terms = identifyCalls(g.Terms)
		}
	}
}

func reverseTerms(terms []Term) []Term {
	for i, j := 0, len(terms)-1; i < j; i, j = i+1, j-1 {
		terms[i], terms[j] = terms[j], terms[i]
	}
	return terms
}

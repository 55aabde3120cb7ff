package compiler

import (
	"fmt"
	"strings"
)

// Term is one element of an expression.
type Term interface {
	termNode()
	String() string
}

// Atom is a leaf token: literal, operator, keyword or stray character.
type Atom struct {
	Type  TokenType
	Value string
}

// Group is a bracketed sub-sequence, ( ... ) or [ ... ].
type Group struct {
	Type  TokenType // PAREN_GROUP or SQUARE_GROUP
	Terms []Term
}

// Binding is an lvalue-capable chain: an identifier optionally followed by
// .field and [index] segments.
//
//	l[i].x  →  Binding{Segments: [l  [i]  .  x]}
type Binding struct {
	Segments []Term // *Atom IDENTIFIER, *Atom OPERATOR ".", *Group SQUARE_GROUP
}

// Call is an invocation. Raw holds the unsplit parenthesis interior until
// the Parameterizer fills Args.
type Call struct {
	Target *Binding
	Raw    []Term
	Args   []*Argument
}

// Argument is one comma separated call argument.
type Argument struct {
	Expr *Expression
}

// Expression is an ordered term sequence, evaluated by the VM.
type Expression struct {
	Terms []Term
}

func (*Atom) termNode()    {}
func (*Group) termNode()   {}
func (*Binding) termNode() {}
func (*Call) termNode()    {}

func (a *Atom) String() string {
	if a.Type == STRING {
		return fmt.Sprintf("%q", a.Value)
	}
	return a.Value
}

func (g *Group) String() string {
	if g.Type == SQUARE_GROUP {
		return "[" + joinTerms(g.Terms) + "]"
	}
	return "(" + joinTerms(g.Terms) + ")"
}

func (b *Binding) String() string {
	var sb strings.Builder
	for _, s := range b.Segments {
		sb.WriteString(s.String())
	}
	return sb.String()
}

// Name is the identifier text of the binding up to its first indexer.
func (b *Binding) Name() string {
	var sb strings.Builder
	for _, s := range b.Segments {
		if _, ok := s.(*Group); ok {
			break
		}
		sb.WriteString(s.String())
	}
	return sb.String()
}

func (c *Call) String() string {
	if c.Args == nil {
		return c.Target.String() + "(" + joinTerms(c.Raw) + ")"
	}
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.Expr.String()
	}
	return c.Target.String() + "(" + strings.Join(parts, ", ") + ")"
}

func (e *Expression) String() string {
	if e == nil {
		return ""
	}
	return joinTerms(e.Terms)
}

func joinTerms(terms []Term) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}

// Meta is carried by every statement.
type Meta struct {
	Label string // "outer" for `outer: while (...)`
	Line  int
}

func (m *Meta) meta() *Meta { return m }

// Stmt is one instruction of a function body.
type Stmt interface {
	stmtNode()
	meta() *Meta
	String() string
}

// Block is a statement that owns a body.
type Block interface {
	Stmt
	body() *[]Stmt
}

// CallStmt is a call whose result is discarded: print(x);
type CallStmt struct {
	Meta
	Call *Call
}

// Assignment covers declarations and stores: int x = e; l[i] = e;
type Assignment struct {
	Meta
	Modifiers []string
	Target    *Binding
	Value     *Expression
}

// IfStmt opens a conditional chain.
type IfStmt struct {
	Meta
	Cond *Expression
	Body []Stmt
}

// ElseStmt continues a chain; Cond is nil for a final else.
type ElseStmt struct {
	Meta
	Cond *Expression
	Body []Stmt
}

// WhileStmt repeats its body. After restructuring Cond is nil and the body
// starts with its own break guard.
type WhileStmt struct {
	Meta
	Cond *Expression
	Body []Stmt
}

// ForStmt is for (Init; Cond; Step) Body. Any part may be nil.
type ForStmt struct {
	Meta
	Init Stmt
	Cond *Expression
	Step Stmt
	Body []Stmt
}

// ForeachStmt is foreach (Modifiers Var in Iter) Body.
type ForeachStmt struct {
	Meta
	Modifiers []string
	Var       string
	Iter      *Expression
	Body      []Stmt
}

// BreakStmt leaves a loop; Target is empty, a label, or a loop count.
type BreakStmt struct {
	Meta
	Target *Expression
}

// ContinueStmt repeats a loop; Target as for BreakStmt.
type ContinueStmt struct {
	Meta
	Target *Expression
}

type ReturnStmt struct {
	Meta
	Value *Expression
}

type YieldStmt struct {
	Meta
	Value *Expression
}

type YieldBreakStmt struct {
	Meta
}

// ExprStmt is a bare expression. The lowering passes turn most of these into
// calls or assignments, or drop them.
type ExprStmt struct {
	Meta
	Expr *Expression
}

func (*CallStmt) stmtNode()       {}
func (*Assignment) stmtNode()     {}
func (*IfStmt) stmtNode()         {}
func (*ElseStmt) stmtNode()       {}
func (*WhileStmt) stmtNode()      {}
func (*ForStmt) stmtNode()        {}
func (*ForeachStmt) stmtNode()    {}
func (*BreakStmt) stmtNode()      {}
func (*ContinueStmt) stmtNode()   {}
func (*ReturnStmt) stmtNode()     {}
func (*YieldStmt) stmtNode()      {}
func (*YieldBreakStmt) stmtNode() {}
func (*ExprStmt) stmtNode()       {}

func (s *IfStmt) body() *[]Stmt      { return &s.Body }
func (s *ElseStmt) body() *[]Stmt    { return &s.Body }
func (s *WhileStmt) body() *[]Stmt   { return &s.Body }
func (s *ForStmt) body() *[]Stmt     { return &s.Body }
func (s *ForeachStmt) body() *[]Stmt { return &s.Body }

func withLabel(m Meta, s string) string {
	if m.Label != "" {
		return m.Label + ": " + s
	}
	return s
}

func withValue(kw string, e *Expression) string {
	if e == nil || len(e.Terms) == 0 {
		return kw
	}
	return kw + " " + e.String()
}

func (s *CallStmt) String() string { return withLabel(s.Meta, s.Call.String()) }

func (s *Assignment) String() string {
	lhs := s.Target.String()
	if len(s.Modifiers) > 0 {
		lhs = strings.Join(s.Modifiers, " ") + " " + lhs
	}
	return withLabel(s.Meta, lhs+" = "+s.Value.String())
}

func (s *IfStmt) String() string { return withLabel(s.Meta, "if ("+s.Cond.String()+")") }

func (s *ElseStmt) String() string {
	if s.Cond == nil {
		return withLabel(s.Meta, "else")
	}
	return withLabel(s.Meta, "else if ("+s.Cond.String()+")")
}

func (s *WhileStmt) String() string {
	if s.Cond == nil {
		return withLabel(s.Meta, "while")
	}
	return withLabel(s.Meta, "while ("+s.Cond.String()+")")
}

func (s *ForStmt) String() string {
	part := func(st Stmt) string {
		if st == nil {
			return ""
		}
		return st.String()
	}
	return withLabel(s.Meta, fmt.Sprintf("for (%s; %s; %s)", part(s.Init), s.Cond.String(), part(s.Step)))
}

func (s *ForeachStmt) String() string {
	v := s.Var
	if len(s.Modifiers) > 0 {
		v = strings.Join(s.Modifiers, " ") + " " + v
	}
	return withLabel(s.Meta, "foreach ("+v+" in "+s.Iter.String()+")")
}

func (s *BreakStmt) String() string     { return withLabel(s.Meta, withValue("break", s.Target)) }
func (s *ContinueStmt) String() string  { return withLabel(s.Meta, withValue("continue", s.Target)) }
func (s *ReturnStmt) String() string    { return withLabel(s.Meta, withValue("return", s.Value)) }
func (s *YieldStmt) String() string     { return withLabel(s.Meta, withValue("yield", s.Value)) }
func (s *YieldBreakStmt) String() string { return withLabel(s.Meta, "yield break") }
func (s *ExprStmt) String() string      { return withLabel(s.Meta, s.Expr.String()) }

// Parameter is one formal parameter. Type is empty when the source omits it.
type Parameter struct {
	Name string
	Type string
}

type Function struct {
	Name       string
	ReturnType string
	Params     []Parameter
	Body       []Stmt
	Line       int
}

type Program struct {
	Functions []*Function
}

func (f *Function) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = strings.TrimSpace(p.Type + " " + p.Name)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s(%s)\n", f.ReturnType, f.Name, strings.Join(params, ", "))
	writeBlock(&sb, f.Body, 1)
	return sb.String()
}

// String renders every function with one statement per line, bodies
// indented under their owner.
func (p *Program) String() string {
	var sb strings.Builder
	for _, f := range p.Functions {
		sb.WriteString(f.String())
	}
	return sb.String()
}

func writeBlock(sb *strings.Builder, stmts []Stmt, depth int) {
	for _, s := range stmts {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(s.String())
		sb.WriteByte('\n')
		if b, ok := s.(Block); ok {
			writeBlock(sb, *b.body(), depth+1)
		}
	}
}

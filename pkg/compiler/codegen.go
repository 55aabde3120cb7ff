package compiler

import (
	"fmt"

	"glacia/pkg/dbil"
)

// CodeGen accumulates the image while walking the lowered AST.
type CodeGen struct {
	img    *dbil.Image
	nextID int
}

// Generate linearizes a fully lowered program. Each function's body is
// walked depth first: a record is emitted, chained to its predecessor in the
// same block, then its own body is emitted beneath it.
func Generate(prog *Program) (*dbil.Image, error) {
	g := &CodeGen{img: &dbil.Image{}}
	for i, fn := range prog.Functions {
		f := dbil.Function{ID: i + 1, Label: fn.Name, ReturnType: fn.ReturnType, Arguments: []dbil.Argument{}}
		for _, p := range fn.Params {
			f.Arguments = append(f.Arguments, dbil.Argument{Name: p.Name, Type: p.Type})
		}
		g.img.Functions = append(g.img.Functions, f)
		if err := g.genBlock(f.ID, 0, fn.Body); err != nil {
			return nil, fmt.Errorf("%s: %w", fn.Name, err)
		}
	}
	return g.img, nil
}

func (g *CodeGen) genBlock(fnID, parent int, stmts []Stmt) error {
	prev := 0
	for _, s := range stmts {
		code, err := encodeStmt(s)
		if err != nil {
			return err
		}
		g.nextID++
		rec := dbil.Instruction{
			ID:       g.nextID,
			Function: fnID,
			Parent:   parent,
			Previous: prev,
			Label:    s.meta().Label,
			Code:     code,
		}
		g.img.Instructions = append(g.img.Instructions, rec)
		if b, ok := s.(Block); ok {
			if err := g.genBlock(fnID, rec.ID, *b.body()); err != nil {
				return err
			}
		}
		prev = rec.ID
	}
	return nil
}

func encodeStmt(s Stmt) (dbil.Code, error) {
	var err error
	switch s := s.(type) {
	case *CallStmt:
		code := dbil.Code{Kind: dbil.KindCall}
		err = encodeCall(&code, s.Call)
		return code, err

	case *Assignment:
		code := dbil.Code{Kind: dbil.KindAssignment, Modifiers: s.Modifiers}
		if code.Binding, err = encodeBinding(s.Target); err != nil {
			return code, err
		}
		if c := soleCall(s.Value); c != nil {
			err = encodeCall(&code, c)
			return code, err
		}
		code.Expression, err = encodeExpr(s.Value)
		return code, err

	case *IfStmt:
		return exprCode(dbil.KindIf, s.Cond)
	case *ElseStmt:
		return exprCode(dbil.KindElse, s.Cond)
	case *WhileStmt:
		if s.Cond != nil {
			return dbil.Code{}, semanticErrorf(s.Line, "while loop was not restructured")
		}
		return dbil.Code{Kind: dbil.KindWhile}, nil
	case *BreakStmt:
		return exprCode(dbil.KindBreak, s.Target)
	case *ContinueStmt:
		return exprCode(dbil.KindContinue, s.Target)
	case *ReturnStmt:
		return exprCode(dbil.KindReturn, s.Value)
	case *YieldStmt:
		return exprCode(dbil.KindYield, s.Value)
	case *YieldBreakStmt:
		return dbil.Code{Kind: dbil.KindYieldBreak}, nil
	case *ExprStmt:
		return exprCode(dbil.KindExpression, s.Expr)
	}
	return dbil.Code{}, semanticErrorf(s.meta().Line, "%T cannot be linearized", s)
}

func exprCode(kind dbil.Kind, e *Expression) (dbil.Code, error) {
	nodes, err := encodeExpr(e)
	return dbil.Code{Kind: kind, Expression: nodes}, err
}

func encodeCall(code *dbil.Code, c *Call) error {
	if c.Args == nil {
		return fmt.Errorf("call to %s was not parameterized", c.Target)
	}
	target, err := encodeBinding(c.Target)
	if err != nil {
		return err
	}
	code.Target = target
	code.Params = make([][]dbil.Node, len(c.Args))
	for i, a := range c.Args {
		if code.Params[i], err = encodeExpr(a.Expr); err != nil {
			return err
		}
	}
	return nil
}

func encodeExpr(e *Expression) ([]dbil.Node, error) {
	if e == nil {
		return nil, nil
	}
	return encodeTerms(e.Terms)
}

func encodeTerms(terms []Term) ([]dbil.Node, error) {
	nodes := make([]dbil.Node, 0, len(terms))
	for _, t := range terms {
		n, err := encodeTerm(t)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func encodeBinding(b *Binding) (*dbil.Node, error) {
	segs, err := encodeTerms(b.Segments)
	if err != nil {
		return nil, err
	}
	return &dbil.Node{Class: dbil.ClassBinding, Tokens: segs}, nil
}

var atomClasses = map[TokenType]string{
	NUMERIC:    dbil.ClassNumeric,
	STRING:     dbil.ClassString,
	OPERATOR:   dbil.ClassOperator,
	KEYWORD:    dbil.ClassKeyword,
	IDENTIFIER: dbil.ClassIdentifier,
}

func encodeTerm(t Term) (dbil.Node, error) {
	switch t := t.(type) {
	case *Atom:
		class, ok := atomClasses[t.Type]
		if !ok {
			class = dbil.ClassChar
		}
		return dbil.Node{Class: class, Val: t.Value}, nil
	case *Group:
		class := dbil.ClassParen
		if t.Type == SQUARE_GROUP {
			class = dbil.ClassSquare
		}
		inner, err := encodeTerms(t.Terms)
		return dbil.Node{Class: class, Tokens: inner}, err
	case *Binding:
		b, err := encodeBinding(t)
		if err != nil {
			return dbil.Node{}, err
		}
		return *b, nil
	case *Call:
		return dbil.Node{}, fmt.Errorf("call to %s left inside an expression", t.Target)
	}
	return dbil.Node{}, fmt.Errorf("unknown term %T", t)
}

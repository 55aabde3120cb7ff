package vm

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"glacia/pkg/dbil"
	"glacia/pkg/store"
)

// operand is one slot of the flattened expression: a value or an operator.
type operand struct {
	op    string
	value Value
}

func (o operand) isOp() bool { return o.op != "" }

// Binary operator passes in evaluation order.
var precedence = [][]string{
	{"^"},
	{"*", "/", "%"},
	{"+", "-"},
	{"==", "!=", "<", ">", "<=", ">="},
	{"&&"},
	{"||"},
}

// eval evaluates an expression in the frame. Sub-expressions and bindings
// are resolved first, then unary operators right to left, then each
// precedence pass left to right.
func (ex *exec) eval(frame *store.Call, nodes []dbil.Node) (Value, error) {
	if len(nodes) == 0 {
		return Value{}, runtimeErrorf("empty expression")
	}
	for i := 1; i < len(nodes); i++ {
		if isName(nodes[i-1]) && isName(nodes[i]) {
			return Value{}, runtimeErrorf("two identifiers adjacent in binding %s %s",
				renderNodes(nodes[i-1:i]), renderNodes(nodes[i:i+1]))
		}
	}
	ops := make([]operand, 0, len(nodes))
	for _, n := range nodes {
		o, err := ex.term(frame, n)
		if err != nil {
			return Value{}, err
		}
		ops = append(ops, o)
	}

	ops, err := unary(ops)
	if err != nil {
		return Value{}, err
	}
	for i, o := range ops {
		if o.isOp() != (i%2 == 1) {
			return Value{}, runtimeErrorf("malformed expression %s", renderNodes(nodes))
		}
	}
	if len(ops)%2 == 0 {
		return Value{}, runtimeErrorf("expression %s ends with an operator", renderNodes(nodes))
	}

	for _, level := range precedence {
		for i := 1; i < len(ops); {
			if !slices.Contains(level, ops[i].op) {
				i += 2
				continue
			}
			v, err := binary(ops[i].op, ops[i-1].value, ops[i+1].value)
			if err != nil {
				return Value{}, err
			}
			ops = slices.Replace(ops, i-1, i+2, operand{value: v})
		}
	}
	if len(ops) != 1 {
		return Value{}, runtimeErrorf("unsupported operator in %s", renderNodes(nodes))
	}
	return ops[0].value, nil
}

// isName reports whether n reads a variable.
func isName(n dbil.Node) bool {
	return n.Class == dbil.ClassBinding || n.Class == dbil.ClassIdentifier
}

func (ex *exec) term(frame *store.Call, n dbil.Node) (operand, error) {
	switch n.Class {
	case dbil.ClassNumeric:
		v, err := parseNumber(n.Val)
		return operand{value: v}, err
	case dbil.ClassString:
		return operand{value: stringValue(n.Val)}, nil
	case dbil.ClassKeyword:
		switch n.Val {
		case "true":
			return operand{value: boolValue(true)}, nil
		case "false":
			return operand{value: boolValue(false)}, nil
		}
		return operand{}, runtimeErrorf("unexpected keyword %q in expression", n.Val)
	case dbil.ClassOperator:
		return operand{op: n.Val}, nil
	case dbil.ClassParen:
		v, err := ex.eval(frame, n.Tokens)
		return operand{value: v}, err
	case dbil.ClassBinding:
		v, err := ex.read(frame, n)
		return operand{value: v}, err
	case dbil.ClassIdentifier:
		v, err := ex.read(frame, dbil.Node{Class: dbil.ClassBinding, Tokens: []dbil.Node{n}})
		return operand{value: v}, err
	case dbil.ClassSquare:
		return operand{}, runtimeErrorf("indexer not preceded by an identifier")
	}
	return operand{}, runtimeErrorf("unrecognized expression term %s %q", n.Class, n.Val)
}

func parseNumber(s string) (Value, error) {
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, runtimeErrorf("malformed number %q", s)
		}
		return floatValue(f), nil
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Value{}, runtimeErrorf("malformed number %q", s)
	}
	return intValue(i), nil
}

// unary folds '!' and prefix '-' into their right operand.
func unary(ops []operand) ([]operand, error) {
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i].op
		prefix := op == "!" || (op == "-" && (i == 0 || ops[i-1].isOp()))
		if !prefix {
			continue
		}
		if i+1 >= len(ops) || ops[i+1].isOp() {
			return nil, runtimeErrorf("operator %s has no operand", op)
		}
		v, err := applyUnary(op, ops[i+1].value)
		if err != nil {
			return nil, err
		}
		ops = slices.Replace(ops, i, i+2, operand{value: v})
	}
	return ops, nil
}

func applyUnary(op string, v Value) (Value, error) {
	switch {
	case op == "!" && (v.Kind == KindBool || v.Kind == KindInt):
		t, _ := truthy(v)
		return boolValue(!t), nil
	case op == "-" && v.Kind == KindInt:
		return intValue(-v.I), nil
	case op == "-" && v.Kind == KindFloat:
		return floatValue(-v.F), nil
	}
	return Value{}, runtimeErrorf("unsupported operand for %s: %s", op, v.Kind)
}

func binary(op string, a, b Value) (Value, error) {
	switch op {
	case "&&", "||":
		if (a.Kind == KindInt || a.Kind == KindBool) && (b.Kind == KindInt || b.Kind == KindBool) {
			x, _ := truthy(a)
			y, _ := truthy(b)
			if op == "&&" {
				return boolValue(x && y), nil
			}
			return boolValue(x || y), nil
		}
	case "==", "!=", "<", ">", "<=", ">=":
		if c, ok := compare(a, b); ok {
			return boolValue(compareResult(op, c)), nil
		}
		if a.Kind == KindBool && b.Kind == KindBool && (op == "==" || op == "!=") {
			return boolValue((a.B == b.B) == (op == "==")), nil
		}
	default:
		if a.Kind == KindInt && b.Kind == KindInt {
			return intArith(op, a.I, b.I)
		}
		if a.isNumeric() && b.isNumeric() && op != "%" {
			return floatArith(op, a.float(), b.float())
		}
		if a.Kind == KindString && b.Kind == KindString && op == "+" {
			return stringValue(a.S + b.S), nil
		}
	}
	return Value{}, runtimeErrorf("unsupported operand types: %s %s %s", a.Kind, op, b.Kind)
}

// compare orders two numbers or two strings.
func compare(a, b Value) (int, bool) {
	switch {
	case a.Kind == KindInt && b.Kind == KindInt:
		return cmpOrdered(a.I, b.I), true
	case a.isNumeric() && b.isNumeric():
		return cmpOrdered(a.float(), b.float()), true
	case a.Kind == KindString && b.Kind == KindString:
		return strings.Compare(a.S, b.S), true
	}
	return 0, false
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareResult(op string, c int) bool {
	switch op {
	case "==":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case ">":
		return c > 0
	case "<=":
		return c <= 0
	}
	return c >= 0
}

func intArith(op string, a, b int64) (Value, error) {
	switch op {
	case "+":
		return intValue(a + b), nil
	case "-":
		return intValue(a - b), nil
	case "*":
		return intValue(a * b), nil
	case "/", "%":
		if b == 0 {
			return Value{}, runtimeErrorf("division by zero")
		}
		if op == "/" {
			return intValue(a / b), nil
		}
		return intValue(a % b), nil
	case "^":
		if b < 0 {
			return Value{}, runtimeErrorf("negative exponent %d", b)
		}
		r := int64(1)
		for ; b > 0; b-- {
			r *= a
		}
		return intValue(r), nil
	}
	return Value{}, runtimeErrorf("unsupported operator %s", op)
}

func floatArith(op string, a, b float64) (Value, error) {
	switch op {
	case "+":
		return floatValue(a + b), nil
	case "-":
		return floatValue(a - b), nil
	case "*":
		return floatValue(a * b), nil
	case "/":
		return floatValue(a / b), nil
	case "^":
		return floatValue(math.Pow(a, b)), nil
	}
	return Value{}, runtimeErrorf("unsupported operator %s", op)
}

// path is a parsed binding: a flat name plus zero or more index
// expressions.
type path struct {
	name    string
	indexes [][]dbil.Node
}

func parseBinding(b *dbil.Node) (path, error) {
	var p path
	if b == nil || len(b.Tokens) == 0 {
		return p, runtimeErrorf("empty binding")
	}
	segs := b.Tokens
	if segs[0].Class == dbil.ClassSquare {
		return p, runtimeErrorf("indexer not preceded by an identifier")
	}
	if segs[0].Class != dbil.ClassIdentifier {
		return p, runtimeErrorf("binding must start with an identifier, got %s", segs[0].Class)
	}
	p.name = segs[0].Val
	prevIdent := true
	for i := 1; i < len(segs); i++ {
		s := segs[i]
		switch {
		case s.Class == dbil.ClassIdentifier && prevIdent:
			return p, runtimeErrorf("two identifiers adjacent in binding %s", renderNodes(segs))
		case s.Class == dbil.ClassOperator && s.Val == ".":
			if len(p.indexes) > 0 {
				return p, runtimeErrorf("field access on a list item is not supported: %s", renderNodes(segs))
			}
			if i+1 >= len(segs) || segs[i+1].Class != dbil.ClassIdentifier {
				return p, runtimeErrorf("'.' must be followed by a name in %s", renderNodes(segs))
			}
			p.name += "." + segs[i+1].Val
			i++
			prevIdent = true
			continue
		case s.Class == dbil.ClassSquare:
			p.indexes = append(p.indexes, s.Tokens)
		default:
			return p, runtimeErrorf("unexpected %s in binding %s", s.Class, renderNodes(segs))
		}
		prevIdent = false
	}
	return p, nil
}

// read resolves a binding to its current value.
func (ex *exec) read(frame *store.Call, b dbil.Node) (Value, error) {
	p, err := parseBinding(&b)
	if err != nil {
		return Value{}, err
	}
	l, err := ex.findLocal(frame.ID, p.name)
	if err != nil {
		return Value{}, err
	}
	if l == nil {
		return Value{}, runtimeErrorf("undefined variable %s", p.name)
	}
	v, err := ex.load(l.AddressID)
	if err != nil {
		return Value{}, err
	}
	for _, idx := range p.indexes {
		if v.Kind != KindList {
			return Value{}, runtimeErrorf("cannot index %s %s", v.Kind, p.name)
		}
		i, err := ex.index(frame, idx)
		if err != nil {
			return Value{}, err
		}
		it, err := ex.item(v, i)
		if err != nil {
			return Value{}, err
		}
		if v, err = ex.load(it.AddressID); err != nil {
			return Value{}, err
		}
	}
	return v, nil
}

func (ex *exec) index(frame *store.Call, nodes []dbil.Node) (int, error) {
	v, err := ex.eval(frame, nodes)
	if err != nil {
		return 0, err
	}
	if v.Kind != KindInt {
		return 0, runtimeErrorf("list index must be int, got %s", v.Kind)
	}
	return int(v.I), nil
}

// assign writes v through a binding. A plain name is rebound, declaring it
// on first use; an indexed binding writes the list slot.
func (ex *exec) assign(frame *store.Call, b *dbil.Node, v Value) error {
	p, err := parseBinding(b)
	if err != nil {
		return err
	}
	if len(p.indexes) == 0 {
		addr, err := ex.materialize(v)
		if err != nil {
			return err
		}
		return ex.bindLocal(frame.ID, p.name, addr)
	}

	l, err := ex.findLocal(frame.ID, p.name)
	if err != nil {
		return err
	}
	if l == nil {
		return runtimeErrorf("undefined variable %s", p.name)
	}
	container, err := ex.load(l.AddressID)
	if err != nil {
		return err
	}
	last := len(p.indexes) - 1
	for _, idx := range p.indexes[:last] {
		if container.Kind != KindList {
			return runtimeErrorf("cannot index %s %s", container.Kind, p.name)
		}
		i, err := ex.index(frame, idx)
		if err != nil {
			return err
		}
		it, err := ex.item(container, i)
		if err != nil {
			return err
		}
		if container, err = ex.load(it.AddressID); err != nil {
			return err
		}
	}
	list, err := ex.asList(container)
	if err != nil {
		return err
	}
	i, err := ex.index(frame, p.indexes[last])
	if err != nil {
		return err
	}
	return ex.setItem(list, i, v)
}

func renderNodes(nodes []dbil.Node) string {
	var sb strings.Builder
	for _, n := range nodes {
		switch n.Class {
		case dbil.ClassParen:
			sb.WriteString("(" + renderNodes(n.Tokens) + ")")
		case dbil.ClassSquare:
			sb.WriteString("[" + renderNodes(n.Tokens) + "]")
		case dbil.ClassBinding:
			sb.WriteString(renderNodes(n.Tokens))
		case dbil.ClassString:
			sb.WriteString(strconv.Quote(n.Val))
		case dbil.ClassOperator:
			switch n.Val {
			case ".", "!":
				sb.WriteString(n.Val)
			case ",":
				sb.WriteString(", ")
			default:
				sb.WriteString(" " + n.Val + " ")
			}
		default:
			sb.WriteString(n.Val)
		}
	}
	return sb.String()
}

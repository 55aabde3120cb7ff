package vm

import (
	"sort"

	"glacia/pkg/dbil"
	"glacia/pkg/store"
)

// Frame is a read-only view of one call frame.
type Frame struct {
	CallID      string
	Function    string
	Depth       int
	Status      store.CallStatus
	Instruction string
	Kind        dbil.Kind
	Locals      []Variable
}

// Variable is a local as print would show it.
type Variable struct {
	Name  string
	Type  Kind
	Value string
}

// Inspect returns the thread's frames, top of stack first, followed by its
// suspended generators.
func (m *Machine) Inspect(thread string) ([]Frame, error) {
	ex, err := m.begin(thread)
	if err != nil {
		return nil, err
	}
	defer ex.tx.Rollback()

	calls, err := store.Query(ex.tx, store.Calls, func(c *store.Call) bool { return c.ThreadID == thread })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(calls, func(i, j int) bool {
		a, b := calls[i], calls[j]
		if a.OnStack() != b.OnStack() {
			return a.OnStack()
		}
		return a.Depth > b.Depth
	})

	frames := make([]Frame, 0, len(calls))
	for _, c := range calls {
		f := Frame{
			CallID:      c.ID,
			Function:    ex.prog.function(c),
			Depth:       c.Depth,
			Status:      c.Status,
			Instruction: c.InstructionID,
		}
		if in := ex.prog.instrs[c.InstructionID]; in != nil {
			f.Kind = in.Code.Kind
		}
		locals, err := ex.locals(c.ID)
		if err != nil {
			return nil, err
		}
		for _, l := range locals {
			v, err := ex.load(l.AddressID)
			if err != nil {
				return nil, err
			}
			text, err := ex.render(v)
			if err != nil {
				return nil, err
			}
			f.Locals = append(f.Locals, Variable{Name: l.Label, Type: v.Kind, Value: text})
		}
		sort.Slice(f.Locals, func(i, j int) bool { return f.Locals[i].Name < f.Locals[j].Name })
		frames = append(frames, f)
	}
	return frames, nil
}

// Describe renders the instruction a frame is about to run.
func (m *Machine) Describe(instructionID string) string {
	if m.prog == nil {
		return ""
	}
	in := m.prog.instrs[instructionID]
	if in == nil {
		return ""
	}
	return describe(in.Code)
}

func describe(c dbil.Code) string {
	var s string
	switch c.Kind {
	case dbil.KindAssignment:
		s = renderNodes(c.Binding.Tokens) + " = "
		if c.HasCall() {
			s += callText(c)
		} else {
			s += renderNodes(c.Expression)
		}
		return s
	case dbil.KindCall:
		return callText(c)
	case dbil.KindYieldBreak:
		return "yield break"
	case dbil.KindExpression:
		return renderNodes(c.Expression)
	}
	s = string(c.Kind)
	if len(c.Expression) > 0 {
		s += " " + renderNodes(c.Expression)
	}
	return s
}

func callText(c dbil.Code) string {
	s := renderNodes(c.Target.Tokens) + "("
	for i, p := range c.Params {
		if i > 0 {
			s += ", "
		}
		s += renderNodes(p)
	}
	return s + ")"
}

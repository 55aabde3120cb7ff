package vm

import (
	"glacia/pkg/dbil"
	"glacia/pkg/store"
)

// program indexes the loaded image for stepping. The image tables do not
// change between loads, so one index serves every step.
type program struct {
	instrs     map[string]*store.Instruction
	next       map[string]string // instruction → following sibling
	firstChild map[string]string // block instruction → first child
	entry      map[string]string // function id → first instruction
	funcs      map[string]*store.Function
	funcByID   map[string]*store.Function
}

func readProgram(tx store.Tx) (*program, error) {
	fns, err := store.Query[store.Function](tx, store.Functions, nil)
	if err != nil {
		return nil, err
	}
	ins, err := store.Query[store.Instruction](tx, store.Instructions, nil)
	if err != nil {
		return nil, err
	}

	p := &program{
		instrs:     make(map[string]*store.Instruction, len(ins)),
		next:       make(map[string]string),
		firstChild: make(map[string]string),
		entry:      make(map[string]string),
		funcs:      make(map[string]*store.Function, len(fns)),
		funcByID:   make(map[string]*store.Function, len(fns)),
	}
	for _, f := range fns {
		p.funcs[f.Label] = f
		p.funcByID[f.ID] = f
	}
	for _, in := range ins {
		p.instrs[in.ID] = in
		switch {
		case in.PreviousID != "":
			p.next[in.PreviousID] = in.ID
		case in.ParentID != "":
			p.firstChild[in.ParentID] = in.ID
		default:
			p.entry[in.FunctionID] = in.ID
		}
	}
	return p, nil
}

func (p *program) function(c *store.Call) string {
	if f := p.funcByID[c.FunctionID]; f != nil {
		return f.Label
	}
	return "?"
}

func isChain(in *store.Instruction) bool {
	return in.Code.Kind == dbil.KindIf || in.Code.Kind == dbil.KindElse
}

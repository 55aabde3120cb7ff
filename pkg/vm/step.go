package vm

import (
	"errors"
	"strconv"
	"time"

	"glacia/pkg/dbil"
	"glacia/pkg/store"
)

// exec is the state of one step: the open transaction and the thread it
// is running.
type exec struct {
	m       *Machine
	tx      store.Tx
	prog    *program
	thread  string
	printed []string
}

// control tells step what to do with the instruction pointer afterwards.
type control int

const (
	advance control = iota // move past the instruction
	jumped                 // the handler already placed the pointer
	removed                // the frame left the stack
)

func (ex *exec) start(threadIDs store.IDSource) error {
	main := ex.prog.funcs["main"]
	if main == nil {
		return runtimeErrorf("program has no main function")
	}
	th := &store.Thread{Created: time.Now().UTC()}
	id, err := store.Create(ex.tx, store.Threads, threadIDs, th)
	if err != nil {
		return err
	}
	ex.thread = id
	return ex.invoke(nil, &store.Instruction{}, main, nil)
}

// step pops finished frames, then executes the top frame's instruction.
func (ex *exec) step() (bool, error) {
	if _, err := store.Get[store.Thread](ex.tx, store.Threads, ex.thread); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, ErrUnknownThread
		}
		return false, err
	}

	var frame *store.Call
	for {
		top, err := ex.top()
		if err != nil {
			return false, err
		}
		if top == nil {
			return false, ex.collect()
		}
		if top.Status == store.StatusActive {
			frame = top
			break
		}
		if err := ex.removeFrame(top); err != nil {
			return false, err
		}
	}

	instr := ex.prog.instrs[frame.InstructionID]
	if instr == nil {
		return false, runtimeErrorf("frame %s points at unknown instruction %s", frame.ID, frame.InstructionID)
	}
	ex.m.log.Debug("step", "thread", ex.thread, "frame", frame.ID, "function", ex.prog.function(frame),
		"depth", frame.Depth, "instruction", instr.ID, "kind", instr.Code.Kind)

	ctl, err := ex.execute(frame, instr)
	if err != nil {
		var rerr *Error
		if errors.As(err, &rerr) && rerr.InstructionID == "" {
			rerr.InstructionID = instr.ID
		}
		return false, err
	}
	if ctl == advance {
		if err := ex.advance(frame, instr); err != nil {
			return false, err
		}
	}
	return true, ex.collect()
}

func (ex *exec) execute(frame *store.Call, instr *store.Instruction) (control, error) {
	code := instr.Code
	switch code.Kind {
	case dbil.KindCall:
		return advance, ex.call(frame, instr)

	case dbil.KindAssignment:
		if code.HasCall() {
			return advance, ex.call(frame, instr)
		}
		v, err := ex.eval(frame, code.Expression)
		if err != nil {
			return advance, err
		}
		return advance, ex.assign(frame, code.Binding, v)

	case dbil.KindExpression:
		_, err := ex.eval(frame, code.Expression)
		return advance, err

	case dbil.KindIf:
		c, err := ex.pushConditional(frame)
		if err != nil {
			return advance, err
		}
		return ex.branch(frame, instr, c)

	case dbil.KindElse:
		c, err := ex.topConditional(frame)
		if err != nil {
			return advance, err
		}
		if c == nil {
			return advance, runtimeErrorf("else without a matching if")
		}
		if c.Satisfied {
			return advance, nil
		}
		return ex.branch(frame, instr, c)

	case dbil.KindWhile:
		if child := ex.prog.firstChild[instr.ID]; child != "" {
			return jumped, ex.jump(frame, child)
		}
		return jumped, nil

	case dbil.KindBreak, dbil.KindContinue:
		loop, err := ex.loopTarget(frame, instr)
		if err != nil {
			return advance, err
		}
		if code.Kind == dbil.KindContinue {
			return jumped, ex.jump(frame, loop.ID)
		}
		return jumped, ex.advance(frame, loop)

	case dbil.KindReturn:
		if len(code.Expression) > 0 {
			v, err := ex.eval(frame, code.Expression)
			if err != nil {
				return advance, err
			}
			if err := ex.deliver(frame, v); err != nil {
				return advance, err
			}
		}
		return removed, ex.removeFrame(frame)

	case dbil.KindYield:
		if len(code.Expression) > 0 {
			v, err := ex.eval(frame, code.Expression)
			if err != nil {
				return advance, err
			}
			if err := ex.deliver(frame, v); err != nil {
				return advance, err
			}
		}
		return removed, ex.suspend(frame, instr)

	case dbil.KindYieldBreak:
		return removed, ex.removeFrame(frame)
	}
	return advance, runtimeErrorf("unrecognized instruction kind %q", code.Kind)
}

// branch evaluates an if or else guard and enters the body when it holds.
func (ex *exec) branch(frame *store.Call, instr *store.Instruction, c *store.Conditional) (control, error) {
	if len(instr.Code.Expression) > 0 {
		v, err := ex.eval(frame, instr.Code.Expression)
		if err != nil {
			return advance, err
		}
		ok, err := truthy(v)
		if err != nil || !ok {
			return advance, err
		}
	}
	c.Satisfied = true
	if err := ex.tx.Put(store.Conditionals, c.Key(), c); err != nil {
		return advance, err
	}
	if child := ex.prog.firstChild[instr.ID]; child != "" {
		return jumped, ex.jump(frame, child)
	}
	return advance, nil
}

func (ex *exec) jump(frame *store.Call, id string) error {
	frame.InstructionID = id
	return ex.tx.Put(store.Calls, frame.ID, frame)
}

// advance moves the frame past instr. A frame with nowhere left to go is
// marked completed and popped before the thread runs again.
func (ex *exec) advance(frame *store.Call, instr *store.Instruction) error {
	next, err := ex.following(frame, instr)
	if err != nil {
		return err
	}
	if next == "" {
		frame.Status = store.StatusCompleted
	}
	frame.InstructionID = next
	return ex.tx.Put(store.Calls, frame.ID, frame)
}

// following finds the instruction that runs after x: its next sibling, or
// the nearest enclosing loop header, or the successor of the enclosing
// block. Leaving an if/else chain pops its conditional.
func (ex *exec) following(frame *store.Call, x *store.Instruction) (string, error) {
	for {
		if n := ex.prog.next[x.ID]; n != "" {
			if isChain(x) && ex.prog.instrs[n].Code.Kind != dbil.KindElse {
				if err := ex.popConditional(frame); err != nil {
					return "", err
				}
			}
			return n, nil
		}
		if isChain(x) {
			if err := ex.popConditional(frame); err != nil {
				return "", err
			}
		}
		if x.ParentID == "" {
			return "", nil
		}
		parent := ex.prog.instrs[x.ParentID]
		if parent.Code.Kind == dbil.KindWhile {
			return parent.ID, nil
		}
		x = parent
	}
}

// loopTarget walks out to the loop a break or continue refers to: the
// innermost loop by default, the Nth for a count, or the one carrying a
// label.
func (ex *exec) loopTarget(frame *store.Call, instr *store.Instruction) (*store.Instruction, error) {
	label, count, err := jumpTarget(instr.Code.Expression)
	if err != nil {
		return nil, err
	}
	for x := instr; x.ParentID != ""; {
		p := ex.prog.instrs[x.ParentID]
		if isChain(p) {
			if err := ex.popConditional(frame); err != nil {
				return nil, err
			}
		}
		if p.Code.Kind == dbil.KindWhile {
			if label != "" && p.Label == label {
				return p, nil
			}
			if label == "" {
				if count--; count == 0 {
					return p, nil
				}
			}
		}
		x = p
	}
	if label != "" {
		return nil, runtimeErrorf("%s: no enclosing loop labeled %s", instr.Code.Kind, label)
	}
	return nil, runtimeErrorf("%s outside of a loop", instr.Code.Kind)
}

func jumpTarget(nodes []dbil.Node) (string, int, error) {
	if len(nodes) == 0 {
		return "", 1, nil
	}
	if len(nodes) == 1 {
		n := nodes[0]
		switch {
		case n.Class == dbil.ClassBinding && len(n.Tokens) == 1 && n.Tokens[0].Class == dbil.ClassIdentifier:
			return n.Tokens[0].Val, 0, nil
		case n.Class == dbil.ClassIdentifier:
			return n.Val, 0, nil
		case n.Class == dbil.ClassNumeric:
			if c, err := strconv.Atoi(n.Val); err == nil && c > 0 {
				return "", c, nil
			}
		}
	}
	return "", 0, runtimeErrorf("invalid loop target %s", renderNodes(nodes))
}

// suspend parks a generator frame on the instruction after the yield. A
// generator with nothing left to run is removed instead.
func (ex *exec) suspend(frame *store.Call, instr *store.Instruction) error {
	next, err := ex.following(frame, instr)
	if err != nil {
		return err
	}
	if next == "" {
		return ex.removeFrame(frame)
	}
	frame.Status = store.StatusSuspended
	frame.Depth = 0
	frame.InstructionID = next
	frame.CallingInstructionID = ""
	return ex.tx.Put(store.Calls, frame.ID, frame)
}

// stack returns the thread's frames that occupy a depth slot.
func (ex *exec) stack() ([]*store.Call, error) {
	return store.Query(ex.tx, store.Calls, func(c *store.Call) bool {
		return c.ThreadID == ex.thread && c.OnStack()
	})
}

func (ex *exec) top() (*store.Call, error) {
	frames, err := ex.stack()
	if err != nil {
		return nil, err
	}
	var top *store.Call
	for _, c := range frames {
		if top == nil || c.Depth > top.Depth {
			top = c
		}
	}
	return top, nil
}

func (ex *exec) nextDepth() (int, error) {
	top, err := ex.top()
	if err != nil || top == nil {
		return 0, err
	}
	return top.Depth + 1, nil
}

func (ex *exec) frameAt(depth int) (*store.Call, error) {
	frames, err := ex.stack()
	if err != nil {
		return nil, err
	}
	for _, c := range frames {
		if c.Depth == depth {
			return c, nil
		}
	}
	return nil, nil
}

// removeFrame deletes a call with its locals and conditionals. The memory
// they referenced is left for the collector.
func (ex *exec) removeFrame(c *store.Call) error {
	ls, err := ex.locals(c.ID)
	if err != nil {
		return err
	}
	for _, l := range ls {
		if err := ex.tx.Delete(store.Locals, l.ID); err != nil {
			return err
		}
	}
	cs, err := ex.conditionals(c.ID)
	if err != nil {
		return err
	}
	for _, cond := range cs {
		if err := ex.tx.Delete(store.Conditionals, cond.Key()); err != nil {
			return err
		}
	}
	return ex.tx.Delete(store.Calls, c.ID)
}

func (ex *exec) conditionals(callID string) ([]*store.Conditional, error) {
	return store.Query(ex.tx, store.Conditionals, func(c *store.Conditional) bool { return c.CallID == callID })
}

func (ex *exec) topConditional(frame *store.Call) (*store.Conditional, error) {
	cs, err := ex.conditionals(frame.ID)
	if err != nil || len(cs) == 0 {
		return nil, err
	}
	// Keys order by depth.
	return cs[len(cs)-1], nil
}

func (ex *exec) pushConditional(frame *store.Call) (*store.Conditional, error) {
	top, err := ex.topConditional(frame)
	if err != nil {
		return nil, err
	}
	c := &store.Conditional{CallID: frame.ID, Depth: 1}
	if top != nil {
		c.Depth = top.Depth + 1
	}
	return c, ex.tx.Put(store.Conditionals, c.Key(), c)
}

func (ex *exec) popConditional(frame *store.Call) error {
	top, err := ex.topConditional(frame)
	if err != nil || top == nil {
		return err
	}
	return ex.tx.Delete(store.Conditionals, top.Key())
}

package vm

import (
	"errors"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"glacia/pkg/store"
)

type builtin func(ex *exec, frame *store.Call, instr *store.Instruction, args []Value) (*Value, error)

var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"print":    builtinPrint,
		"len":      builtinLen,
		"push":     builtinPush,
		"pop":      builtinPop,
		"next":     builtinNext,
		"finished": builtinFinished,
	}
}

// call evaluates the arguments in the caller's frame and either runs a
// built-in or pushes a frame for a program function. A returned value is
// assigned through the instruction's binding when it has one.
func (ex *exec) call(frame *store.Call, instr *store.Instruction) error {
	code := instr.Code
	p, err := parseBinding(code.Target)
	if err != nil {
		return err
	}
	if len(p.indexes) > 0 {
		return runtimeErrorf("cannot call indexed binding %s", renderNodes(code.Target.Tokens))
	}

	args := make([]Value, len(code.Params))
	for i, param := range code.Params {
		if args[i], err = ex.eval(frame, param); err != nil {
			return err
		}
	}

	if fn, ok := builtins[p.name]; ok {
		v, err := fn(ex, frame, instr, args)
		if err != nil {
			return err
		}
		if v != nil && code.Binding != nil {
			return ex.assign(frame, code.Binding, *v)
		}
		return nil
	}

	fn := ex.prog.funcs[p.name]
	if fn == nil {
		return ex.unknownFunction(p.name)
	}
	return ex.invoke(frame, instr, fn, args)
}

func (ex *exec) unknownFunction(name string) error {
	candidates := make([]string, 0, len(ex.prog.funcs)+len(builtins))
	for label := range ex.prog.funcs {
		candidates = append(candidates, label)
	}
	for label := range builtins {
		candidates = append(candidates, label)
	}
	sort.Strings(candidates)
	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) > 0 {
		sort.Stable(ranks)
		return runtimeErrorf("unknown function %s (did you mean %s?)", name, ranks[0].Target)
	}
	return runtimeErrorf("unknown function %s", name)
}

// invoke pushes a frame for fn and binds its parameters. Generator
// functions get a suspended frame and the caller receives the generator
// value at once.
func (ex *exec) invoke(frame *store.Call, instr *store.Instruction, fn *store.Function, args []Value) error {
	if len(args) != len(fn.Arguments) {
		return runtimeErrorf("%s expects %d arguments, got %d", fn.Label, len(fn.Arguments), len(args))
	}

	callee := &store.Call{
		ThreadID:      ex.thread,
		FunctionID:    fn.ID,
		InstructionID: ex.prog.entry[fn.ID],
	}
	generator := fn.ReturnType == "generator"
	switch {
	case generator:
		callee.Status = store.StatusSuspended
	default:
		depth, err := ex.nextDepth()
		if err != nil {
			return err
		}
		callee.Status = store.StatusActive
		callee.Depth = depth
		callee.CallingInstructionID = instr.ID
		if callee.InstructionID == "" {
			callee.Status = store.StatusCompleted
		}
	}
	if _, err := store.Create(ex.tx, store.Calls, ex.m.ids, callee); err != nil {
		return err
	}

	for i, a := range fn.Arguments {
		addr, err := ex.materialize(args[i])
		if err != nil {
			return err
		}
		if err := ex.bindLocal(callee.ID, a.Name, addr); err != nil {
			return err
		}
	}

	if generator && instr.Code.Binding != nil {
		addr, err := ex.newAddress(KindGenerator, callee.ID)
		if err != nil {
			return err
		}
		return ex.assign(frame, instr.Code.Binding, Value{Kind: KindGenerator, S: callee.ID, Addr: addr})
	}
	return nil
}

// deliver hands a returned or yielded value to the frame below, through
// the binding of the instruction that made the call.
func (ex *exec) deliver(frame *store.Call, v Value) error {
	if frame.CallingInstructionID == "" {
		return nil
	}
	caller, err := ex.frameAt(frame.Depth - 1)
	if err != nil || caller == nil {
		return err
	}
	in := ex.prog.instrs[frame.CallingInstructionID]
	if in == nil || in.Code.Binding == nil {
		return nil
	}
	return ex.assign(caller, in.Code.Binding, v)
}

func arity(name string, args []Value, counts ...int) error {
	for _, n := range counts {
		if len(args) == n {
			return nil
		}
	}
	return runtimeErrorf("%s expects %d arguments, got %d", name, counts[0], len(args))
}

func builtinPrint(ex *exec, _ *store.Call, _ *store.Instruction, args []Value) (*Value, error) {
	if err := arity("print", args, 1); err != nil {
		return nil, err
	}
	s, err := ex.render(args[0])
	if err != nil {
		return nil, err
	}
	ex.printed = append(ex.printed, s)
	return nil, nil
}

func builtinLen(ex *exec, _ *store.Call, _ *store.Instruction, args []Value) (*Value, error) {
	if err := arity("len", args, 1); err != nil {
		return nil, err
	}
	if args[0].Kind == KindString {
		v := intValue(int64(len(args[0].S)))
		return &v, nil
	}
	list, err := ex.asList(args[0])
	if err != nil {
		return nil, err
	}
	n, err := ex.listLen(list)
	if err != nil {
		return nil, err
	}
	v := intValue(int64(n))
	return &v, nil
}

func builtinPush(ex *exec, _ *store.Call, _ *store.Instruction, args []Value) (*Value, error) {
	if err := arity("push", args, 2); err != nil {
		return nil, err
	}
	list, err := ex.asList(args[0])
	if err != nil {
		return nil, err
	}
	n, err := ex.listLen(list)
	if err != nil {
		return nil, err
	}
	return nil, ex.setItem(list, n, args[1])
}

func builtinPop(ex *exec, _ *store.Call, _ *store.Instruction, args []Value) (*Value, error) {
	if err := arity("pop", args, 1); err != nil {
		return nil, err
	}
	list, err := ex.asList(args[0])
	if err != nil {
		return nil, err
	}
	n, err := ex.listLen(list)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, runtimeErrorf("pop from an empty list")
	}
	it, err := ex.item(list, n-1)
	if err != nil {
		return nil, err
	}
	v, err := ex.load(it.AddressID)
	if err != nil {
		return nil, err
	}
	return &v, ex.resize(list, n-1)
}

// builtinNext takes the next element. Lists are read at the optional
// index; generators are resumed and deliver their value when they yield.
func builtinNext(ex *exec, frame *store.Call, instr *store.Instruction, args []Value) (*Value, error) {
	if err := arity("next", args, 1, 2); err != nil {
		return nil, err
	}
	if args[0].Kind == KindGenerator {
		return nil, ex.resume(args[0], instr)
	}
	list, err := ex.asList(args[0])
	if err != nil {
		return nil, err
	}
	i, err := optionalIndex(args)
	if err != nil {
		return nil, err
	}
	n, err := ex.listLen(list)
	if err != nil || i >= n {
		return nil, err
	}
	it, err := ex.item(list, i)
	if err != nil {
		return nil, err
	}
	v, err := ex.load(it.AddressID)
	return &v, err
}

func builtinFinished(ex *exec, _ *store.Call, _ *store.Instruction, args []Value) (*Value, error) {
	if err := arity("finished", args, 1, 2); err != nil {
		return nil, err
	}
	if args[0].Kind == KindGenerator {
		g, err := ex.generatorFrame(args[0])
		if err != nil {
			return nil, err
		}
		v := boolValue(g == nil)
		return &v, nil
	}
	list, err := ex.asList(args[0])
	if err != nil {
		return nil, err
	}
	i, err := optionalIndex(args)
	if err != nil {
		return nil, err
	}
	n, err := ex.listLen(list)
	if err != nil {
		return nil, err
	}
	v := boolValue(i >= n)
	return &v, nil
}

func optionalIndex(args []Value) (int, error) {
	if len(args) < 2 {
		return 0, nil
	}
	if args[1].Kind != KindInt {
		return 0, runtimeErrorf("index must be int, got %s", args[1].Kind)
	}
	return int(args[1].I), nil
}

func (ex *exec) generatorFrame(g Value) (*store.Call, error) {
	a, err := ex.address(g.Addr)
	if err != nil {
		return nil, err
	}
	c, err := store.Get[store.Call](ex.tx, store.Calls, a.Value)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return c, err
}

// resume threads a suspended generator frame back onto the stack above the
// caller. An exhausted generator resumes to nothing.
func (ex *exec) resume(g Value, instr *store.Instruction) error {
	c, err := ex.generatorFrame(g)
	if err != nil || c == nil {
		return err
	}
	if c.Status != store.StatusSuspended {
		return runtimeErrorf("generator %s is already running", c.ID)
	}
	depth, err := ex.nextDepth()
	if err != nil {
		return err
	}
	c.ThreadID = ex.thread
	c.Status = store.StatusActive
	c.Depth = depth
	c.CallingInstructionID = instr.ID
	return ex.tx.Put(store.Calls, c.ID, c)
}

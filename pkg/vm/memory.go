package vm

import (
	"errors"
	"strconv"

	"glacia/pkg/store"
)

func (ex *exec) newAddress(kind Kind, value string) (string, error) {
	return store.Create(ex.tx, store.Addresses, ex.m.ids, &store.Address{Type: string(kind), Value: value})
}

// materialize returns an Address holding v. Reference values share their
// existing Address; primitives are copied into a fresh one.
func (ex *exec) materialize(v Value) (string, error) {
	if IsReferenceType(v.Kind) {
		if v.Addr == "" {
			return "", runtimeErrorf("%s value has no address", v.Kind)
		}
		return v.Addr, nil
	}
	return ex.newAddress(v.Kind, v.encode())
}

func (ex *exec) address(id string) (*store.Address, error) {
	a, err := store.Get[store.Address](ex.tx, store.Addresses, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, runtimeErrorf("dangling address %s", id)
	}
	return a, err
}

func (ex *exec) load(id string) (Value, error) {
	a, err := ex.address(id)
	if err != nil {
		return Value{}, err
	}
	return decode(a)
}

func (ex *exec) locals(callID string) ([]*store.Local, error) {
	return store.Query(ex.tx, store.Locals, func(l *store.Local) bool { return l.CallID == callID })
}

func (ex *exec) findLocal(callID, name string) (*store.Local, error) {
	ls, err := store.Query(ex.tx, store.Locals, func(l *store.Local) bool {
		return l.CallID == callID && l.Label == name
	})
	if err != nil || len(ls) == 0 {
		return nil, err
	}
	return ls[0], nil
}

// bindLocal points name at addr in the frame, declaring it if needed.
func (ex *exec) bindLocal(callID, name, addr string) error {
	l, err := ex.findLocal(callID, name)
	if err != nil {
		return err
	}
	if l == nil {
		_, err = store.Create(ex.tx, store.Locals, ex.m.ids, &store.Local{CallID: callID, Label: name, AddressID: addr})
		return err
	}
	l.AddressID = addr
	return ex.tx.Put(store.Locals, l.ID, l)
}

// asList returns v as a list. An int cell still holding 0 is adopted as an
// empty list in place.
func (ex *exec) asList(v Value) (Value, error) {
	switch {
	case v.Kind == KindList:
		return v, nil
	case v.Kind == KindInt && v.I == 0 && v.Addr != "":
		err := ex.tx.Put(store.Addresses, v.Addr, &store.Address{ID: v.Addr, Type: string(KindList), Value: "0"})
		return Value{Kind: KindList, S: "0", Addr: v.Addr}, err
	}
	return Value{}, runtimeErrorf("%s is not a list", v.Kind)
}

func (ex *exec) listLen(list Value) (int, error) {
	a, err := ex.address(list.Addr)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(a.Value)
	if err != nil {
		return 0, runtimeErrorf("list %s has malformed length %q", a.ID, a.Value)
	}
	return n, nil
}

// resize grows the list with zero-valued slots or drops trailing slots, then
// records the new length. Every list mutation goes through here.
func (ex *exec) resize(list Value, n int) error {
	cur, err := ex.listLen(list)
	if err != nil {
		return err
	}
	for i := cur; i < n; i++ {
		addr, err := ex.newAddress(KindInt, "0")
		if err != nil {
			return err
		}
		it := &store.Item{ListID: list.Addr, Ordinal: i, AddressID: addr}
		if err := ex.tx.Put(store.Items, it.Key(), it); err != nil {
			return err
		}
	}
	for i := cur - 1; i >= n; i-- {
		if err := ex.tx.Delete(store.Items, store.ItemKey(list.Addr, i)); err != nil {
			return err
		}
	}
	return ex.tx.Put(store.Addresses, list.Addr, &store.Address{ID: list.Addr, Type: string(KindList), Value: strconv.Itoa(n)})
}

func (ex *exec) item(list Value, i int) (*store.Item, error) {
	n, err := ex.listLen(list)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= n {
		return nil, runtimeErrorf("index %d out of range for list of length %d", i, n)
	}
	return store.Get[store.Item](ex.tx, store.Items, store.ItemKey(list.Addr, i))
}

func (ex *exec) listValues(list Value) ([]Value, error) {
	n, err := ex.listLen(list)
	if err != nil {
		return nil, err
	}
	out := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		it, err := ex.item(list, i)
		if err != nil {
			return nil, err
		}
		v, err := ex.load(it.AddressID)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// setItem stores v at index i, growing the list if i is past the end.
func (ex *exec) setItem(list Value, i int, v Value) error {
	if i < 0 {
		return runtimeErrorf("negative list index %d", i)
	}
	n, err := ex.listLen(list)
	if err != nil {
		return err
	}
	if i >= n {
		if err := ex.resize(list, i+1); err != nil {
			return err
		}
	}
	addr, err := ex.materialize(v)
	if err != nil {
		return err
	}
	it := &store.Item{ListID: list.Addr, Ordinal: i, AddressID: addr}
	return ex.tx.Put(store.Items, it.Key(), it)
}

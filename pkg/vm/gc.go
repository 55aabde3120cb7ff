package vm

import "glacia/pkg/store"

// collect sweeps memory no longer reachable from any local or list slot.
// Dropping an address can orphan list slots and suspended generator frames,
// and dropping those can orphan more addresses, so the sweep repeats until
// nothing changes.
func (ex *exec) collect() error {
	for {
		n, err := ex.sweep()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		ex.m.log.Debug("gc", "thread", ex.thread, "collected", n)
	}
}

func (ex *exec) sweep() (int, error) {
	refs := make(map[string]bool)
	locals, err := store.Query[store.Local](ex.tx, store.Locals, nil)
	if err != nil {
		return 0, err
	}
	for _, l := range locals {
		refs[l.AddressID] = true
	}
	items, err := store.Query[store.Item](ex.tx, store.Items, nil)
	if err != nil {
		return 0, err
	}
	for _, it := range items {
		refs[it.AddressID] = true
	}

	removed := 0
	live := make(map[string]bool)
	generators := make(map[string]bool)
	addrs, err := store.Query[store.Address](ex.tx, store.Addresses, nil)
	if err != nil {
		return 0, err
	}
	for _, a := range addrs {
		if !refs[a.ID] {
			if err := ex.tx.Delete(store.Addresses, a.ID); err != nil {
				return 0, err
			}
			removed++
			continue
		}
		live[a.ID] = true
		if a.Type == string(KindGenerator) {
			generators[a.Value] = true
		}
	}

	for _, it := range items {
		if !live[it.ListID] {
			if err := ex.tx.Delete(store.Items, it.Key()); err != nil {
				return 0, err
			}
			removed++
		}
	}

	calls, err := store.Query(ex.tx, store.Calls, func(c *store.Call) bool {
		return c.Status == store.StatusSuspended && !generators[c.ID]
	})
	if err != nil {
		return 0, err
	}
	for _, c := range calls {
		if err := ex.removeFrame(c); err != nil {
			return 0, err
		}
		removed++
	}
	return removed, nil
}

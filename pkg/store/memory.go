package store

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
)

type tableData map[Table]map[string][]byte

// Memory is the in-process backend: each table is a map of id to encoded
// record. A transaction holds the store lock from Begin until it ends and
// buffers its writes so Rollback discards them.
type Memory struct {
	mu     sync.Mutex
	tables tableData

	// persist, when set, runs after every successful commit with the lock
	// still held.
	persist func(tableData) error
}

func NewMemory() *Memory {
	m := &Memory{tables: make(tableData)}
	for _, t := range AllTables {
		m.tables[t] = make(map[string][]byte)
	}
	return m
}

func (m *Memory) Begin() (Tx, error) {
	m.mu.Lock()
	return &memTx{
		m:       m,
		writes:  make(map[Table]map[string][]byte),
		cleared: make(map[Table]bool),
	}, nil
}

func (m *Memory) Close() error { return nil }

// Len reports how many records t holds outside any transaction.
func (m *Memory) Len(t Table) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[t])
}

type memTx struct {
	m       *Memory
	writes  map[Table]map[string][]byte // nil value marks a delete
	cleared map[Table]bool
	done    bool
}

func (tx *memTx) check(t Table) error {
	if tx.done {
		return ErrTxDone
	}
	if _, ok := tx.m.tables[t]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, t)
	}
	return nil
}

func (tx *memTx) lookup(t Table, id string) ([]byte, bool) {
	if w, ok := tx.writes[t][id]; ok {
		return w, w != nil
	}
	if tx.cleared[t] {
		return nil, false
	}
	raw, ok := tx.m.tables[t][id]
	return raw, ok
}

func (tx *memTx) Get(t Table, id string, v any) error {
	if err := tx.check(t); err != nil {
		return err
	}
	raw, ok := tx.lookup(t, id)
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, t, id)
	}
	return json.Unmarshal(raw, v)
}

func (tx *memTx) Insert(t Table, id string, v any) error {
	if err := tx.check(t); err != nil {
		return err
	}
	if _, ok := tx.lookup(t, id); ok {
		return fmt.Errorf("%w: %s/%s", ErrDuplicate, t, id)
	}
	return tx.Put(t, id, v)
}

func (tx *memTx) Put(t Table, id string, v any) error {
	if err := tx.check(t); err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", t, id, err)
	}
	tx.write(t, id, raw)
	return nil
}

func (tx *memTx) Delete(t Table, id string) error {
	if err := tx.check(t); err != nil {
		return err
	}
	tx.write(t, id, nil)
	return nil
}

func (tx *memTx) write(t Table, id string, raw []byte) {
	w := tx.writes[t]
	if w == nil {
		w = make(map[string][]byte)
		tx.writes[t] = w
	}
	w[id] = raw
}

func (tx *memTx) Scan(t Table, fn func(id string, raw []byte) error) error {
	if err := tx.check(t); err != nil {
		return err
	}
	var ids []string
	if !tx.cleared[t] {
		for id := range tx.m.tables[t] {
			if _, shadowed := tx.writes[t][id]; !shadowed {
				ids = append(ids, id)
			}
		}
	}
	for id, raw := range tx.writes[t] {
		if raw != nil {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	for _, id := range ids {
		raw, _ := tx.lookup(t, id)
		if err := fn(id, raw); err != nil {
			return err
		}
	}
	return nil
}

func (tx *memTx) Clear(t Table) error {
	if err := tx.check(t); err != nil {
		return err
	}
	tx.cleared[t] = true
	delete(tx.writes, t)
	return nil
}

func (tx *memTx) Commit() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	defer tx.m.mu.Unlock()

	for t := range tx.cleared {
		tx.m.tables[t] = make(map[string][]byte)
	}
	for t, w := range tx.writes {
		dst := tx.m.tables[t]
		for id, raw := range w {
			if raw == nil {
				delete(dst, id)
			} else {
				dst[id] = raw
			}
		}
	}
	if tx.m.persist != nil {
		return tx.m.persist(tx.m.tables)
	}
	return nil
}

func (tx *memTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.m.mu.Unlock()
	return nil
}

// Package store is the transactional record store that holds both the
// loaded program image and all runtime state of the VM.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Table names a record collection.
type Table string

const (
	Functions    Table = "functions"
	Instructions Table = "instructions"
	Threads      Table = "threads"
	Calls        Table = "calls"
	Locals       Table = "locals"
	Addresses    Table = "addresses"
	Items        Table = "items"
	Conditionals Table = "conditionals"
)

// AllTables lists every table, program image first.
var AllTables = []Table{Functions, Instructions, Threads, Calls, Locals, Addresses, Items, Conditionals}

var (
	ErrNotFound     = errors.New("store: record not found")
	ErrDuplicate    = errors.New("store: duplicate id")
	ErrIDExhausted  = errors.New("store: id space exhausted")
	ErrTxDone       = errors.New("store: transaction already finished")
	ErrUnknownTable = errors.New("store: unknown table")
)

// Tx is one unit of work. Records are JSON documents keyed by id; Scan
// visits them in ascending id order. A Tx must end with Commit or Rollback.
type Tx interface {
	Get(t Table, id string, v any) error
	Insert(t Table, id string, v any) error // ErrDuplicate if id exists
	Put(t Table, id string, v any) error    // insert or replace
	Delete(t Table, id string) error
	Scan(t Table, fn func(id string, raw []byte) error) error
	Clear(t Table) error
	Commit() error
	Rollback() error
}

// Store hands out transactions. At most one writable transaction is open
// at a time.
type Store interface {
	Begin() (Tx, error)
	Close() error
}

// Get loads one record.
func Get[T any](tx Tx, t Table, id string) (*T, error) {
	var v T
	if err := tx.Get(t, id, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Query returns every record of t accepted by match, in id order. A nil
// match accepts everything.
func Query[T any](tx Tx, t Table, match func(*T) bool) ([]*T, error) {
	var out []*T
	err := tx.Scan(t, func(id string, raw []byte) error {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("decode %s/%s: %w", t, id, err)
		}
		if match == nil || match(&v) {
			out = append(out, &v)
		}
		return nil
	})
	return out, err
}

// Record is a row whose id is allocated by Create.
type Record interface {
	setID(id string)
}

// Create inserts rec under a fresh id from ids, retrying on collision up to
// MaxIDAttempts times before failing with ErrIDExhausted.
func Create(tx Tx, t Table, ids IDSource, rec Record) (string, error) {
	for attempt := 0; attempt < MaxIDAttempts; attempt++ {
		id := ids()
		rec.setID(id)
		err := tx.Insert(t, id, rec)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrDuplicate) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %d attempts in %s", ErrIDExhausted, MaxIDAttempts, t)
}

// ClearAll empties every table.
func ClearAll(tx Tx) error {
	for _, t := range AllTables {
		if err := tx.Clear(t); err != nil {
			return err
		}
	}
	return nil
}

// Update runs fn inside a transaction, committing on success and rolling
// back on error.
func Update(s Store, fn func(Tx) error) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

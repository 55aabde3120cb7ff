package store

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	snap, err := OpenSnapshot(filepath.Join(dir, "state.zip"))
	if err != nil {
		t.Fatalf("OpenSnapshot: %v", err)
	}
	db, err := OpenBolt(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("OpenBolt: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return map[string]Store{
		"memory":   NewMemory(),
		"snapshot": snap,
		"bolt":     db,
	}
}

func mustBegin(t *testing.T, s Store) Tx {
	t.Helper()
	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	return tx
}

func TestCommitAndRollback(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			tx := mustBegin(t, s)
			if err := tx.Put(Addresses, "a1", &Address{ID: "a1", Type: "int", Value: "5"}); err != nil {
				t.Fatalf("Put: %v", err)
			}
			tx.Rollback()

			tx = mustBegin(t, s)
			var a Address
			if err := tx.Get(Addresses, "a1", &a); !errors.Is(err, ErrNotFound) {
				t.Fatalf("after rollback: got err %v, want ErrNotFound", err)
			}
			if err := tx.Put(Addresses, "a1", &Address{ID: "a1", Type: "int", Value: "7"}); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := tx.Commit(); err != nil {
				t.Fatalf("Commit: %v", err)
			}

			tx = mustBegin(t, s)
			defer tx.Rollback()
			got, err := Get[Address](tx, Addresses, "a1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Value != "7" {
				t.Errorf("value: got %q, want %q", got.Value, "7")
			}
		})
	}
}

func TestInsertDuplicate(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			tx := mustBegin(t, s)
			defer tx.Rollback()
			if err := tx.Insert(Threads, "t1", &Thread{ID: "t1"}); err != nil {
				t.Fatalf("first Insert: %v", err)
			}
			if err := tx.Insert(Threads, "t1", &Thread{ID: "t1"}); !errors.Is(err, ErrDuplicate) {
				t.Fatalf("second Insert: got %v, want ErrDuplicate", err)
			}
		})
	}
}

func TestScanSeesPendingWrites(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := Update(s, func(tx Tx) error {
				for _, id := range []string{"b", "d", "a"} {
					if err := tx.Put(Locals, id, &Local{ID: id, CallID: "c"}); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				t.Fatalf("Update: %v", err)
			}

			tx := mustBegin(t, s)
			defer tx.Rollback()
			tx.Delete(Locals, "b")
			tx.Put(Locals, "c", &Local{ID: "c", CallID: "other"})

			rows, err := Query[Local](tx, Locals, nil)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			var ids []string
			for _, r := range rows {
				ids = append(ids, r.ID)
			}
			if got, want := strings.Join(ids, ","), "a,c,d"; got != want {
				t.Errorf("scan order: got %s, want %s", got, want)
			}

			mine, _ := Query(tx, Locals, func(l *Local) bool { return l.CallID == "c" })
			if len(mine) != 2 {
				t.Errorf("filtered: got %d rows, want 2", len(mine))
			}
		})
	}
}

func TestClearAll(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := Update(s, func(tx Tx) error {
				tx.Put(Functions, "f", &Function{ID: "f", Label: "main"})
				return tx.Put(Calls, "c", &Call{ID: "c", Status: StatusActive})
			})
			if err != nil {
				t.Fatalf("Update: %v", err)
			}
			if err := Update(s, ClearAll); err != nil {
				t.Fatalf("ClearAll: %v", err)
			}
			tx := mustBegin(t, s)
			defer tx.Rollback()
			for _, tbl := range AllTables {
				rows, _ := Query[map[string]any](tx, tbl, nil)
				if len(rows) != 0 {
					t.Errorf("%s: got %d rows after clear", tbl, len(rows))
				}
			}
		})
	}
}

func sequence(ids ...string) IDSource {
	i := 0
	return func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
}

func TestCreateRetries(t *testing.T) {
	s := NewMemory()
	tx := mustBegin(t, s)
	defer tx.Rollback()

	id, err := Create(tx, Addresses, sequence("x"), &Address{Type: "int", Value: "0"})
	if err != nil || id != "x" {
		t.Fatalf("first Create: got (%q, %v)", id, err)
	}

	id, err = Create(tx, Addresses, sequence("x", "x", "y"), &Address{Type: "int", Value: "1"})
	if err != nil || id != "y" {
		t.Fatalf("retrying Create: got (%q, %v), want y", id, err)
	}
	a, _ := Get[Address](tx, Addresses, "y")
	if a.ID != "y" || a.Value != "1" {
		t.Errorf("stored record: got %+v", a)
	}

	calls := 0
	always := func() string { calls++; return "x" }
	if _, err := Create(tx, Addresses, always, &Address{}); !errors.Is(err, ErrIDExhausted) {
		t.Fatalf("exhausted Create: got %v, want ErrIDExhausted", err)
	}
	if calls != MaxIDAttempts {
		t.Errorf("attempts: got %d, want %d", calls, MaxIDAttempts)
	}
}

func TestSnapshotReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.zip")
	s, err := OpenSnapshot(path)
	if err != nil {
		t.Fatalf("OpenSnapshot: %v", err)
	}
	err = Update(s, func(tx Tx) error {
		return tx.Put(Items, ItemKey("l", 0), &Item{ListID: "l", Ordinal: 0, AddressID: "a"})
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	again, err := OpenSnapshot(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := again.Len(Items); got != 1 {
		t.Fatalf("items after reopen: got %d, want 1", got)
	}
	tx := mustBegin(t, again)
	defer tx.Rollback()
	it, err := Get[Item](tx, Items, "l/00000000")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if it.AddressID != "a" {
		t.Errorf("address: got %q, want a", it.AddressID)
	}
}

func TestRestoreRejectsGarbage(t *testing.T) {
	if err := NewMemory().RestoreFrom([]byte("not a zip")); err == nil {
		t.Fatal("expected error restoring garbage")
	}
}

func TestBoltReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(BackendBolt, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	err = Update(s, func(tx Tx) error {
		return tx.Put(Conditionals, ConditionalKey("c", 1), &Conditional{CallID: "c", Depth: 1, Satisfied: true})
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	s.Close()

	s, err = Open(BackendBolt, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	tx := mustBegin(t, s)
	defer tx.Rollback()
	c, err := Get[Conditional](tx, Conditionals, "c/0001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !c.Satisfied {
		t.Errorf("satisfied: got false, want true")
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("postgres", ""); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if _, err := Open(BackendSnapshot, ""); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestIDs(t *testing.T) {
	id := ShortID()
	if len(id) != idLength {
		t.Fatalf("ShortID length: got %d, want %d", len(id), idLength)
	}
	for _, r := range id {
		if !strings.ContainsRune(idAlphabet, r) {
			t.Errorf("ShortID %q contains %q", id, r)
		}
	}
	a, b := ThreadID(), ThreadID()
	if len(a) != 26 || a == b {
		t.Errorf("ThreadID: got %q and %q", a, b)
	}
}

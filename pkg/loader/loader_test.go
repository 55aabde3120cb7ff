package loader

import (
	"testing"

	"glacia/pkg/compiler"
	"glacia/pkg/store"
)

const src = `
int helper(int x) { return x + 1; }
int main() {
	int i = 0;
	while (i < 2) { i = helper(i); }
	print(i);
}
`

func TestLoadIsDestructive(t *testing.T) {
	img, err := compiler.Compile(src, "")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	st := store.NewMemory()
	err = store.Update(st, func(tx store.Tx) error {
		tx.Put(store.Threads, "old", &store.Thread{ID: "old"})
		tx.Put(store.Addresses, "stale", &store.Address{ID: "stale", Type: "int", Value: "1"})
		return tx.Put(store.Functions, "gone", &store.Function{ID: "gone", Label: "gone"})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := Load(st, img, nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := st.Len(store.Threads); got != 0 {
		t.Errorf("threads: got %d, want 0", got)
	}
	if got := st.Len(store.Addresses); got != 0 {
		t.Errorf("addresses: got %d, want 0", got)
	}
	if got, want := st.Len(store.Functions), len(img.Functions); got != want {
		t.Errorf("functions: got %d, want %d", got, want)
	}
	if got, want := st.Len(store.Instructions), len(img.Instructions); got != want {
		t.Errorf("instructions: got %d, want %d", got, want)
	}
}

func TestLoadPreservesThreading(t *testing.T) {
	img, err := compiler.Compile(src, "")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	st := store.NewMemory()
	if err := Load(st, img, nil); err != nil {
		t.Fatalf("Load: %v", err)
	}

	tx, _ := st.Begin()
	defer tx.Rollback()
	funcs, _ := store.Query[store.Function](tx, store.Functions, nil)
	instrs, _ := store.Query[store.Instruction](tx, store.Instructions, nil)

	byID := make(map[string]*store.Instruction)
	for _, in := range instrs {
		byID[in.ID] = in
	}
	for _, f := range funcs {
		heads := 0
		for _, in := range instrs {
			if in.FunctionID == f.ID && in.ParentID == "" && in.PreviousID == "" {
				heads++
			}
		}
		if heads != 1 {
			t.Errorf("%s: got %d top-level heads, want 1", f.Label, heads)
		}
	}
	for _, in := range instrs {
		if in.PreviousID != "" {
			p := byID[in.PreviousID]
			if p == nil || p.ParentID != in.ParentID || p.FunctionID != in.FunctionID {
				t.Errorf("instruction %s: previous %s is not a sibling", in.ID, in.PreviousID)
			}
		}
	}
}

func TestLoadRejectsBrokenImage(t *testing.T) {
	img, err := compiler.Compile(src, "")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	// Second record of main also claims to start the block.
	img.Instructions[2].Previous = 0
	if err := Load(store.NewMemory(), img, nil); err == nil {
		t.Fatal("expected validation error")
	}
}

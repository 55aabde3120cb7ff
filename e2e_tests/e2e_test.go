package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"testing"

	"glacia/pkg/compiler"
	"glacia/pkg/loader"
	"glacia/pkg/store"
	"glacia/pkg/vm"
)

func TestCompilerAndVM(t *testing.T) {
	// 1. Define glacia source
	source := `
#define LIMIT 6

int fib(int n) {
    if (n < 2) { return n; }
    return fib(n - 1) + fib(n - 2);
}

generator upto(int n) {
    int i = 0;
    while (i < n) { yield i; i++; }
}

int main() {
    list seen;
    foreach (int k in upto(LIMIT)) {
        push(seen, fib(k));
    }
    print(seen);
    print(len(seen));
}
`

	// 2. Preprocess, lex and parse
	processed, err := compiler.Preprocess(source, ".")
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	tokens, err := compiler.Lex(processed)
	if err != nil {
		t.Fatalf("Lexing failed: %v", err)
	}
	root, err := compiler.Parse(tokens)
	if err != nil {
		t.Fatalf("Parsing failed: %v", err)
	}

	// 3. Analyze and lower
	prog, err := compiler.Analyze(root)
	if err != nil {
		t.Fatalf("Analysis failed: %v", err)
	}
	if err := compiler.Lower(prog); err != nil {
		t.Fatalf("Lowering failed: %v", err)
	}
	t.Logf("Lowered program:\n%s", prog)

	// 4. Linearize
	img, err := compiler.Generate(prog)
	if err != nil {
		t.Fatalf("Code generation failed: %v", err)
	}
	if err := img.Validate(); err != nil {
		t.Fatalf("Image failed validation: %v", err)
	}

	// 5. Load into a bolt store
	st, err := store.OpenBolt(filepath.Join(t.TempDir(), "e2e.db"))
	if err != nil {
		t.Fatalf("OpenBolt failed: %v", err)
	}
	defer st.Close()
	if err := loader.Load(st, img, nil); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// 6. Run
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := vm.New(st, vm.WithCapture(), vm.WithLogger(quiet))
	ctx := context.Background()
	thread, err := m.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	steps, err := m.Run(ctx, thread)
	if err != nil {
		t.Fatalf("Run failed after %d steps: %v", steps, err)
	}

	// 7. Assertions

	// fib(0..5) = 0 1 1 2 3 5
	want := []string{"[0, 1, 1, 2, 3, 5]", "6"}
	if got := m.Output(); !slices.Equal(got, want) {
		t.Errorf("Expected output %q, got %q", want, got)
	}

	// Every frame has unwound and the collector left nothing behind.
	for _, table := range []store.Table{store.Calls, store.Locals, store.Addresses, store.Items, store.Conditionals} {
		err := store.Update(st, func(tx store.Tx) error {
			n := 0
			if err := tx.Scan(table, func(string, []byte) error { n++; return nil }); err != nil {
				return err
			}
			if n != 0 {
				t.Errorf("Expected table %s to be empty after the run, found %d records", table, n)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Scan %s: %v", table, err)
		}
	}
}

package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"glacia/pkg/compiler"
	"glacia/pkg/store"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type scenario struct {
	Name   string   `yaml:"name"`
	Source string   `yaml:"source"`
	Output []string `yaml:"output"`
	Error  string   `yaml:"error"`
}

func loadScenarios(t *testing.T) []scenario {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "scenarios.yaml"))
	if err != nil {
		t.Fatalf("read scenarios: %v", err)
	}
	var out []scenario
	if err := yaml.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode scenarios: %v", err)
	}
	return out
}

func TestScenarios(t *testing.T) {
	for _, sc := range loadScenarios(t) {
		t.Run(sc.Name, func(t *testing.T) {
			res, err := Run(context.Background(), WithSource(sc.Source), WithCapture(), WithLogger(quiet))
			if sc.Error != "" {
				if err == nil || !strings.Contains(err.Error(), sc.Error) {
					t.Fatalf("error: got %v, want one mentioning %q", err, sc.Error)
				}
			} else if err != nil {
				t.Fatalf("Run: %v", err)
			}
			var got []string
			if res != nil {
				got = res.Output
			}
			if !slices.Equal(got, sc.Output) {
				t.Errorf("output: got %q, want %q", got, sc.Output)
			}
		})
	}
}

func TestSourceConflict(t *testing.T) {
	img, err := compiler.Compile(`int main(){ print(1); }`, "")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	tests := []struct {
		name string
		opts []Option
	}{
		{"path and source", []Option{WithPath("a.gl"), WithSource("int main(){}")}},
		{"image and source", []Option{WithImage(img), WithSource("int main(){}")}},
		{"image and path", []Option{WithImage(img), WithPath("a.gl")}},
		{"thread and source", []Option{WithThread("t1"), WithSource("int main(){}")}},
		{"thread and image", []Option{WithThread("t1"), WithImage(img)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), append(tt.opts, WithLogger(quiet))...)
			if !errors.Is(err, ErrSourceConflict) {
				t.Fatalf("got %v, want ErrSourceConflict", err)
			}
		})
	}
}

func TestNoSource(t *testing.T) {
	if _, err := Run(context.Background(), WithLogger(quiet)); !errors.Is(err, ErrNoSource) {
		t.Fatalf("got %v, want ErrNoSource", err)
	}
}

func TestCompileErrorsKeepTheirKind(t *testing.T) {
	_, err := Run(context.Background(), WithSource("int main(){ x = 1.2.3; }"), WithLogger(quiet))
	if !errors.Is(err, compiler.ErrLex) {
		t.Fatalf("got %v, want a lex error", err)
	}
}

func TestRunFromPathWithInclude(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("lib.gl", `int twice(int x){ return x * 2; }`)
	write("main.gl", "#include \"lib.gl\"\nint main(){ print(twice(21)); }\n")

	res, err := Run(context.Background(), WithPath(filepath.Join(dir, "main.gl")), WithCapture(), WithLogger(quiet))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []string{"42"}; !slices.Equal(res.Output, want) {
		t.Errorf("output: got %q, want %q", res.Output, want)
	}
	if !res.Done {
		t.Errorf("Done: got false, want true")
	}
}

func TestExecLines(t *testing.T) {
	src := `int main(){ print(1); print(2); print(3); }`
	st := store.NewMemory()
	ctx := context.Background()

	res, err := Run(ctx, WithSource(src), WithExecLines(LoadOnly), WithStore(st), WithCapture(), WithLogger(quiet))
	if err != nil {
		t.Fatalf("load only: %v", err)
	}
	if res.ThreadID != "" || len(res.Output) != 0 {
		t.Errorf("load only started something: %+v", res)
	}
	if st.Len(store.Instructions) != 3 {
		t.Errorf("instructions loaded: got %d, want 3", st.Len(store.Instructions))
	}

	res, err = Run(ctx, WithSource(src), WithExecLines(2), WithStore(st), WithCapture(), WithLogger(quiet))
	if err != nil {
		t.Fatalf("two lines: %v", err)
	}
	if want := []string{"1", "2"}; !slices.Equal(res.Output, want) || res.Steps != 2 || res.Done {
		t.Errorf("two lines: got %+v", res)
	}

	rest, err := Run(ctx, WithThread(res.ThreadID), WithStore(st), WithCapture(), WithLogger(quiet))
	if err != nil {
		t.Fatalf("reattach: %v", err)
	}
	if want := []string{"3"}; !slices.Equal(rest.Output, want) || !rest.Done {
		t.Errorf("reattach: got %+v", rest)
	}
}

func TestUncapturedOutput(t *testing.T) {
	var buf bytes.Buffer
	res, err := Run(context.Background(), WithSource(`int main(){ print("hi"); }`), WithOutput(&buf), WithLogger(quiet))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if buf.String() != "hi\n" {
		t.Errorf("written output: got %q, want %q", buf.String(), "hi\n")
	}
	if len(res.Output) != 0 {
		t.Errorf("captured output: got %q, want none", res.Output)
	}
}

package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPreprocess(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "Line Comment",
			input: "x = 1; // set x\ny = 2;",
			want:  "x = 1; \ny = 2;",
		},
		{
			name:  "Block Comment Keeps Lines",
			input: "a /* one\ntwo */ b",
			want:  "a \n  b",
		},
		{
			name:  "Comment Markers In Strings",
			input: `print("// not a comment /* either */");`,
			want:  `print("// not a comment /* either */");`,
		},
		{
			name:  "Simple Define",
			input: "#define LIMIT 10\nwhile (i < LIMIT) {}",
			want:  "\nwhile (i < 10) {}",
		},
		{
			name:  "Define Respects Word Boundaries",
			input: "#define N 3\nx = N + NN + N_1;",
			want:  "\nx = 3 + NN + N_1;",
		},
		{
			name:  "Define Skips Strings",
			input: "#define N 3\nprint(\"N\", N);",
			want:  "\nprint(\"N\", 3);",
		},
		{
			name:  "Function Like Define",
			input: "#define SQ(a) ((a) * (a))\nx = SQ(y + 1);",
			want:  "\nx = ((y + 1) * (y + 1));",
		},
		{
			name:  "Nested Defines",
			input: "#define A 2\n#define B A + A\nx = B;",
			want:  "\n\nx = 2 + 2;",
		},
		{
			name:  "Arguments Are Not Rewritten By Later Parameters",
			input: "#define PAIR(a, b) a - b\nx = PAIR(b, a);",
			want:  "\nx = b - a;",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Preprocess(tt.input, "")
			if err != nil {
				t.Fatalf("Preprocess: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPreprocessUnterminatedComment(t *testing.T) {
	_, err := Preprocess("int main() { /* never closed", "")
	if !errors.Is(err, ErrLex) {
		t.Fatalf("error = %v, want a LexError", err)
	}
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestPreprocessInclude(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"lib/math.gl": "#define TWO 2\nint twice(x) {\n  return x * TWO;\n}",
		"lib/all.gl":  "#include \"math.gl\"",
	})
	src := "#include \"lib/all.gl\"\n#include \"lib/math.gl\"\nint main() { print(twice(TWO)); }"
	got, err := Preprocess(src, dir)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("included text changed the line count: %q", got)
	}
	if !strings.Contains(lines[0], "return x * 2;") {
		t.Errorf("include not spliced: %q", lines[0])
	}
	if strings.TrimSpace(lines[1]) != "" {
		t.Errorf("second include of the same file: got %q, want nothing", lines[1])
	}
	if lines[2] != "int main() { print(twice(2)); }" {
		t.Errorf("define from include not applied: %q", lines[2])
	}
}

func TestPreprocessIncludeErrors(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.gl": "#include \"b.gl\"",
		"b.gl": "#include \"a.gl\"",
	})
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{"Circular", "#include \"a.gl\"", "circular include"},
		{"Missing", "#include \"nope.gl\"", "failed to read"},
		{"Malformed", "#include <a.gl>", "invalid include"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Preprocess(tt.src, dir)
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("error = %v, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

package compiler

import (
	"errors"
	"strings"
	"testing"
)

func analyzeSource(t *testing.T, src string) (*Program, error) {
	t.Helper()
	root, err := parseSource(t, src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return Analyze(root)
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "Declaration And Call",
			input: "int main() { int x = 1 + 2; print(x); }",
			want:  "int main()\n  int x = 1 + 2\n  print(x)\n",
		},
		{
			name:  "Parameters",
			input: "int add(int a, b) { return a + b; }",
			want:  "int add(int a, b)\n  return a + b\n",
		},
		{
			name:  "Increment And Compound",
			input: "int main() { x++; y -= 2; }",
			want:  "int main()\n  x = x + 1\n  y = y - (2)\n",
		},
		{
			name:  "Indexed Binding",
			input: "int main() { l[i + 1] = l[i]; }",
			want:  "int main()\n  l[i + 1] = l[i]\n",
		},
		{
			name:  "Labeled Loop",
			input: "int main() { outer: while (i < 3) { break outer; } }",
			want:  "int main()\n  outer: while (i < 3)\n    break outer\n",
		},
		{
			name:  "Else Chain",
			input: "int main() { if (a) { x = 1; } else if (b) { x = 2; } else { x = 3; } }",
			want:  "int main()\n  if (a)\n    x = 1\n  else if (b)\n    x = 2\n  else\n    x = 3\n",
		},
		{
			name:  "Braceless Bodies",
			input: "int main() { if (a) x = 1; else x = 2; }",
			want:  "int main()\n  if (a)\n    x = 1\n  else\n    x = 2\n",
		},
		{
			name:  "Generator Gets Yield Break",
			input: "generator g() { yield 1; }",
			want:  "generator g()\n  yield 1\n  yield break\n",
		},
		{
			name:  "Empty Generator",
			input: "generator g() {}",
			want:  "generator g()\n  yield break\n",
		},
		{
			name:  "For Header",
			input: "int main() { for (int i = 0; i < 2; i++) { print(i); } }",
			want:  "int main()\n  for (int i = 0; i < 2; i = i + 1)\n    print(i)\n",
		},
		{
			name:  "Foreach Header",
			input: "int main() { foreach (int x in squares(3)) { print(x); } }",
			want:  "int main()\n  foreach (int x in squares(3))\n    print(x)\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := analyzeSource(t, tt.input)
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if got := prog.String(); got != tt.want {
				t.Errorf("got\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestAnalyzeIdentifiesCalls(t *testing.T) {
	prog, err := analyzeSource(t, "int main() { x = f(g(1), 2) + 3; }")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	a, ok := prog.Functions[0].Body[0].(*Assignment)
	if !ok {
		t.Fatalf("got %T, want *Assignment", prog.Functions[0].Body[0])
	}
	outer, ok := a.Value.Terms[0].(*Call)
	if !ok || outer.Target.Name() != "f" {
		t.Fatalf("first term: got %v, want call to f", a.Value.Terms[0])
	}
	if inner, ok := outer.Raw[0].(*Call); !ok || inner.Target.Name() != "g" {
		t.Errorf("first argument: got %v, want call to g", outer.Raw[0])
	}
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{"Statement At Top Level", "x = 1;", "malformed function header"},
		{"Duplicate Function", "int f() {} int f() {}", "defined twice"},
		{"Keyword Function Name", "int while() {}", "keyword"},
		{"Bad Parameter", "int f(1) {}", "invalid parameter"},
		{"Dangling Else", "int main() { else { x = 1; } }", "else without a matching if"},
		{"Else After Else", "int main() { if (a) {} else {} else {} }", "else without a matching if"},
		{"Missing Target", "int main() { = 3; }", "not a binding"},
		{"Literal Target", "int main() { 3 = 4; }", "assignment target not a binding"},
		{"Expression Target", "int main() { x + 1 = 2; }", "assignment target not a binding"},
		{"Call Target", "int main() { f() = 2; }", "assignment target not a binding"},
		{"Missing Value", "int main() { x = ; }", "missing value"},
		{"Yield Outside Generator", "int main() { yield 1; }", "yield outside of a generator"},
		{"Nested Yield Outside Generator", "int f() { while (true) { yield; } }", "yield outside of a generator"},
		{"Two Modifiers", "int main() { static int x = 1; }", "only one modifier"},
		{"Short For Header", "int main() { for (i = 0; i < 3) {} }", "init; condition; step"},
		{"Foreach Without In", "int main() { foreach (x) {} }", "malformed foreach"},
		{"Empty Condition", "int main() { if () {} }", "empty condition"},
		{"Block After Statement", "int main() { x = 1 { } }", "unexpected block"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := analyzeSource(t, tt.input)
			if !errors.Is(err, ErrSemantic) {
				t.Fatalf("error = %v, want a SemanticError", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

package dbil

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

// sample is main() { while { if { break } x = 1 } print(x) } threaded by hand.
func sample() *Image {
	bind := &Node{Class: ClassBinding, Tokens: []Node{{Class: ClassIdentifier, Val: "x"}}}
	return &Image{
		Functions: []Function{{ID: 1, Label: "main", ReturnType: "int", Arguments: []Argument{}}},
		Instructions: []Instruction{
			{ID: 1, Function: 1, Code: Code{Kind: KindWhile}},
			{ID: 2, Function: 1, Parent: 1, Code: Code{Kind: KindIf, Expression: []Node{{Class: ClassNumeric, Val: "1"}}}},
			{ID: 3, Function: 1, Parent: 2, Code: Code{Kind: KindBreak}},
			{ID: 4, Function: 1, Parent: 1, Previous: 2, Code: Code{Kind: KindAssignment, Binding: bind, Expression: []Node{{Class: ClassNumeric, Val: "1"}}}},
			{ID: 5, Function: 1, Previous: 1, Code: Code{Kind: KindCall, Target: &Node{Class: ClassBinding, Tokens: []Node{{Class: ClassIdentifier, Val: "print"}}}, Params: [][]Node{{*bind}}}},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Image)
		wantErr string
	}{
		{name: "valid", mutate: func(*Image) {}},
		{
			name:    "duplicate function id",
			mutate:  func(img *Image) { img.Functions = append(img.Functions, Function{ID: 1, Label: "other"}) },
			wantErr: "duplicate function id",
		},
		{
			name:    "duplicate function label",
			mutate:  func(img *Image) { img.Functions = append(img.Functions, Function{ID: 2, Label: "main"}) },
			wantErr: "defined twice",
		},
		{
			name:    "unknown function",
			mutate:  func(img *Image) { img.Instructions[4].Function = 9 },
			wantErr: "unknown function",
		},
		{
			name:    "parent is not a block",
			mutate:  func(img *Image) { img.Instructions[3].Parent = 3 },
			wantErr: "invalid parent",
		},
		{
			name:    "two heads",
			mutate:  func(img *Image) { img.Instructions[4].Previous = 0 },
			wantErr: "two first records",
		},
		{
			name:    "previous in another block",
			mutate:  func(img *Image) { img.Instructions[4].Previous = 2 },
			wantErr: "invalid previous",
		},
		{
			name: "two successors",
			mutate: func(img *Image) {
				img.Instructions = append(img.Instructions, Instruction{ID: 6, Function: 1, Previous: 1, Code: Code{Kind: KindBreak}})
			},
			wantErr: "two successors",
		},
		{
			name: "cycle",
			mutate: func(img *Image) {
				img.Instructions[0].Previous = 5
			},
			wantErr: "unreachable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := sample()
			tt.mutate(img)
			err := img.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestWriteRead(t *testing.T) {
	var buf bytes.Buffer
	if err := sample().Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(buf.String(), `"kind": "while"`) {
		t.Errorf("encoded image does not tag kinds:\n%s", buf.String())
	}
	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(got, sample()) {
		t.Errorf("round trip changed the image:\n got  %+v\n want %+v", got, sample())
	}
}

func TestReadRejects(t *testing.T) {
	if _, err := Read(strings.NewReader("{")); err == nil || !strings.Contains(err.Error(), "decode") {
		t.Errorf("truncated JSON: got %v", err)
	}
	broken := `{"functions":[{"id":1,"label":"main","return_type":"int","arguments":[]}],
		"instructions":[{"id":1,"function_id":1,"code":{"kind":"call"}},{"id":2,"function_id":1,"code":{"kind":"call"}}]}`
	if _, err := Read(strings.NewReader(broken)); err == nil || !strings.Contains(err.Error(), "two first records") {
		t.Errorf("broken threading: got %v", err)
	}
}

func TestHasCall(t *testing.T) {
	img := sample()
	if img.Instructions[3].Code.HasCall() {
		t.Errorf("assignment without target reports a call")
	}
	if !img.Instructions[4].Code.HasCall() {
		t.Errorf("call instruction reports no call")
	}
}

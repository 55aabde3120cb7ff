// Package dbil defines the program image: functions plus threaded
// instruction records, as produced by the compiler and executed by the VM.
package dbil

import (
	"encoding/json"
	"fmt"
	"io"
)

// Kind tags the shape of one instruction.
type Kind string

const (
	KindCall       Kind = "call"
	KindAssignment Kind = "assignment"
	KindIf         Kind = "if"
	KindElse       Kind = "else"
	KindWhile      Kind = "while"
	KindBreak      Kind = "break"
	KindContinue   Kind = "continue"
	KindReturn     Kind = "return"
	KindYield      Kind = "yield"
	KindYieldBreak Kind = "yield_break"
	KindExpression Kind = "expression"
)

// Term classes of a serialized expression Node.
const (
	ClassNumeric    = "numeric"
	ClassString     = "string"
	ClassOperator   = "operator"
	ClassKeyword    = "keyword"
	ClassIdentifier = "identifier"
	ClassChar       = "char"
	ClassBinding    = "binding"
	ClassParen      = "parenthesis"
	ClassSquare     = "square"
	ClassCall       = "call"
)

// Node is one serialized expression term. Groups and bindings carry their
// elements in Tokens.
type Node struct {
	Class  string `json:"cls"`
	Val    string `json:"val,omitempty"`
	Tokens []Node `json:"tokens,omitempty"`
}

// Code is the shallow shape of one instruction; bodies are separate records.
type Code struct {
	Kind       Kind     `json:"kind"`
	Binding    *Node    `json:"binding,omitempty"`    // assignment target
	Modifiers  []string `json:"modifiers,omitempty"`  // assignment type qualifiers
	Expression []Node   `json:"expression,omitempty"` // value, guard, or break target
	Target     *Node    `json:"target,omitempty"`     // callee binding
	Params     [][]Node `json:"params,omitempty"`     // callee arguments
}

// HasCall reports whether the instruction invokes Target.
func (c Code) HasCall() bool { return c.Target != nil }

// IsBlock reports whether instructions of kind k own a body.
func IsBlock(k Kind) bool {
	return k == KindIf || k == KindElse || k == KindWhile
}

type Argument struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

type Function struct {
	ID         int        `json:"id"`
	Label      string     `json:"label"`
	ReturnType string     `json:"return_type"`
	Arguments  []Argument `json:"arguments"`
}

// Instruction is one threaded record. Parent and Previous are 0 at the top
// level of a function and for the first record of a block respectively.
type Instruction struct {
	ID       int    `json:"id"`
	Function int    `json:"function_id"`
	Parent   int    `json:"parent_id,omitempty"`
	Previous int    `json:"previous_id,omitempty"`
	Label    string `json:"label,omitempty"`
	Code     Code   `json:"code"`
}

type Image struct {
	Functions    []Function    `json:"functions"`
	Instructions []Instruction `json:"instructions"`
}

// Write encodes the image as indented JSON.
func (img *Image) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(img)
}

// Read decodes and validates an image written by Write.
func Read(r io.Reader) (*Image, error) {
	var img Image
	if err := json.NewDecoder(r).Decode(&img); err != nil {
		return nil, fmt.Errorf("dbil: decode image: %w", err)
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return &img, nil
}

type blockKey struct {
	function, parent int
}

// Validate checks the threading invariant: within every block exactly one
// record starts the chain, and following Previous links from it and
// descending into Parent children reaches every record exactly once.
func (img *Image) Validate() error {
	funcs := make(map[int]bool, len(img.Functions))
	labels := make(map[string]bool, len(img.Functions))
	for _, f := range img.Functions {
		if f.ID <= 0 || funcs[f.ID] {
			return fmt.Errorf("dbil: bad or duplicate function id %d", f.ID)
		}
		if labels[f.Label] {
			return fmt.Errorf("dbil: function %s defined twice", f.Label)
		}
		funcs[f.ID], labels[f.Label] = true, true
	}

	byID := make(map[int]*Instruction, len(img.Instructions))
	for i := range img.Instructions {
		in := &img.Instructions[i]
		if in.ID <= 0 || byID[in.ID] != nil {
			return fmt.Errorf("dbil: bad or duplicate instruction id %d", in.ID)
		}
		if !funcs[in.Function] {
			return fmt.Errorf("dbil: instruction %d belongs to unknown function %d", in.ID, in.Function)
		}
		byID[in.ID] = in
	}

	heads := make(map[blockKey]int)
	next := make(map[int]int) // previous id → id
	for _, in := range img.Instructions {
		if in.Parent != 0 {
			p := byID[in.Parent]
			if p == nil || p.Function != in.Function || !IsBlock(p.Code.Kind) {
				return fmt.Errorf("dbil: instruction %d has invalid parent %d", in.ID, in.Parent)
			}
		}
		if in.Previous == 0 {
			k := blockKey{in.Function, in.Parent}
			if heads[k] != 0 {
				return fmt.Errorf("dbil: block %d/%d has two first records (%d, %d)", k.function, k.parent, heads[k], in.ID)
			}
			heads[k] = in.ID
			continue
		}
		p := byID[in.Previous]
		if p == nil || p.Function != in.Function || p.Parent != in.Parent {
			return fmt.Errorf("dbil: instruction %d has invalid previous %d", in.ID, in.Previous)
		}
		if next[in.Previous] != 0 {
			return fmt.Errorf("dbil: instruction %d has two successors", in.Previous)
		}
		next[in.Previous] = in.ID
	}

	visited := make(map[int]bool, len(img.Instructions))
	var walk func(head int) error
	walk = func(head int) error {
		for id := head; id != 0; id = next[id] {
			if visited[id] {
				return fmt.Errorf("dbil: instruction %d reached twice", id)
			}
			visited[id] = true
			in := byID[id]
			if child := heads[blockKey{in.Function, id}]; child != 0 {
				if err := walk(child); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for _, f := range img.Functions {
		if err := walk(heads[blockKey{f.ID, 0}]); err != nil {
			return err
		}
	}
	if len(visited) != len(img.Instructions) {
		return fmt.Errorf("dbil: %d of %d instructions are unreachable", len(img.Instructions)-len(visited), len(img.Instructions))
	}
	return nil
}

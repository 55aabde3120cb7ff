package store

import (
	"fmt"
	"time"

	"glacia/pkg/dbil"
)

// Function is a loaded function of the program image.
type Function struct {
	ID         string          `json:"id"`
	Label      string          `json:"label"`
	ReturnType string          `json:"return_type"`
	Arguments  []dbil.Argument `json:"arguments"`
}

// Instruction is a loaded threaded instruction record. ParentID and
// PreviousID are empty where the image has none.
type Instruction struct {
	ID         string    `json:"id"`
	FunctionID string    `json:"function_id"`
	ParentID   string    `json:"parent_id,omitempty"`
	PreviousID string    `json:"previous_id,omitempty"`
	Label      string    `json:"label,omitempty"`
	Code       dbil.Code `json:"code"`
}

type Thread struct {
	ID      string    `json:"id"`
	Created time.Time `json:"created"`
}

// CallStatus is the lifecycle state of a call frame.
type CallStatus string

const (
	// StatusActive frames are on their thread's stack at Depth.
	StatusActive CallStatus = "active"
	// StatusSuspended frames are generators waiting for next().
	StatusSuspended CallStatus = "suspended"
	// StatusCompleted frames ran off their last instruction and are popped
	// before the thread executes again.
	StatusCompleted CallStatus = "completed"
)

// Call is one call frame.
type Call struct {
	ID                   string     `json:"id"`
	ThreadID             string     `json:"thread_id"`
	FunctionID           string     `json:"function_id"`
	Status               CallStatus `json:"status"`
	Depth                int        `json:"depth"` // meaningful unless suspended
	InstructionID        string     `json:"instruction_id,omitempty"`
	CallingInstructionID string     `json:"calling_instruction_id,omitempty"`
}

// OnStack reports whether the frame occupies a depth slot.
func (c *Call) OnStack() bool {
	return c.Status == StatusActive || c.Status == StatusCompleted
}

type Local struct {
	ID        string `json:"id"`
	CallID    string `json:"call_id"`
	Label     string `json:"label"`
	AddressID string `json:"address_id"`
}

// Address is one memory cell. Value is the text form of the cell's
// content; for lists it is the element count.
type Address struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Item is list slot Ordinal of the list stored at ListID.
type Item struct {
	ListID    string `json:"list_id"`
	Ordinal   int    `json:"ordinal"`
	AddressID string `json:"address_id"`
}

// Key is the item's id in the Items table.
func (it *Item) Key() string { return ItemKey(it.ListID, it.Ordinal) }

func ItemKey(listID string, ordinal int) string {
	return fmt.Sprintf("%s/%08d", listID, ordinal)
}

// Conditional is one open if/else chain of a call.
type Conditional struct {
	CallID    string `json:"call_id"`
	Depth     int    `json:"depth"`
	Satisfied bool   `json:"satisfied"`
}

func (c *Conditional) Key() string { return ConditionalKey(c.CallID, c.Depth) }

func ConditionalKey(callID string, depth int) string {
	return fmt.Sprintf("%s/%04d", callID, depth)
}

func (f *Function) setID(id string)    { f.ID = id }
func (i *Instruction) setID(id string) { i.ID = id }
func (t *Thread) setID(id string)      { t.ID = id }
func (c *Call) setID(id string)        { c.ID = id }
func (l *Local) setID(id string)       { l.ID = id }
func (a *Address) setID(id string)     { a.ID = id }

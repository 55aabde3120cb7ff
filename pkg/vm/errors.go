package vm

import (
	"errors"
	"fmt"
)

// ErrRuntime matches every *Error.
var ErrRuntime = errors.New("runtime error")

// ErrUnknownThread is returned when stepping a thread id the store does not
// hold.
var ErrUnknownThread = errors.New("vm: unknown thread")

// Error is a fatal RuntimeError raised while executing an instruction.
type Error struct {
	InstructionID string
	Message       string
}

func (e *Error) Error() string {
	if e.InstructionID == "" {
		return "RuntimeError: " + e.Message
	}
	return fmt.Sprintf("RuntimeError: instruction %s: %s", e.InstructionID, e.Message)
}

func (e *Error) Is(target error) bool { return target == ErrRuntime }

func runtimeErrorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

package errors

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// maxStackLines keeps panic details small enough for a DLQ message.
const maxStackLines = 40

// FromPanic turns a recovered value into a fatal ErrInternal carrying the
// goroutine stack. A nil value yields nil.
func FromPanic(r interface{}) *Error {
	if r == nil {
		return nil
	}

	var cause error
	switch v := r.(type) {
	case error:
		cause = v
	default:
		cause = fmt.Errorf("panic: %v", v)
	}

	lines := strings.Split(strings.TrimSpace(string(debug.Stack())), "\n")
	if len(lines) > maxStackLines {
		lines = lines[:maxStackLines]
	}

	return ErrInternal.
		WithCause(cause).
		WithDetail("panic", true).
		WithDetail("stack_trace", strings.Join(lines, "\n")).
		AsFatal()
}

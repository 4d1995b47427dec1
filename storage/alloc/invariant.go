package alloc

import "fmt"

// invariantError marks a failure surfaced only by Verify (a consistency walk
// meant for tests); it is never returned from normal allocator operations.
type invariantError struct{ msg string }

func (e *invariantError) Error() string { return "alloc: invariant violated: " + e.msg }

func errInvariant(format string, args ...interface{}) error {
	return &invariantError{msg: fmt.Sprintf(format, args...)}
}

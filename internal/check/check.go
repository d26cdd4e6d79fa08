// Package check provides a single assertion helper for states that
// invariants rule out but the type system can't.
package check

import "fmt"

// Assertf panics with a formatted message when cond is false. Use it for
// "this branch is unreachable given the invariants" conditions, not for
// validating external input.
func Assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("assertion failed: "+format, args...))
	}
}

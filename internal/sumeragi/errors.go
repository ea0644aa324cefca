package sumeragi

import "fmt"

// FatalHaltError signals an invariant breach severe enough that this node
// must stop participating in consensus rather than attempt to continue in a
// possibly-inconsistent state (spec.md §7/§9: disjoint-signer commit
// messages at the same height). internal/node treats this as a fatal-abort
// signal (exit code 3), not an ordinary error to log and retry past.
type FatalHaltError struct {
	Reason string
}

func (e FatalHaltError) Error() string { return fmt.Sprintf("sumeragi: fatal halt: %s", e.Reason) }

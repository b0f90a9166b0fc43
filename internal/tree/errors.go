package tree

import (
	"errors"
	"fmt"
)

var (
	// ErrPanic wraps the value recovered from a panicking callback.
	ErrPanic = errors.New("callback panicked")
	// ErrCancelled is reported by an async action whose context was cancelled.
	ErrCancelled = errors.New("execution cancelled")
	// ErrFrozen is returned when appending to a composite after Freeze.
	ErrFrozen = errors.New("composite is frozen")
	// ErrNilChild rejects a nil node in a child list.
	ErrNilChild = errors.New("nil child node")
	// ErrCycle rejects a composite that is its own descendant.
	ErrCycle = errors.New("cycle in tree")
	// ErrSharedNode rejects a node instance owned by more than one parent.
	ErrSharedNode = errors.New("node appears more than once in tree")
	// ErrBlackboardMismatch rejects a leaf bound to a different blackboard
	// than the one the tree runs against.
	ErrBlackboardMismatch = errors.New("leaf bound to a different blackboard")
)

// CallbackError reports a fault raised by a leaf callback, either as a
// returned error or as a recovered panic.
type CallbackError struct {
	// Node is the name of the faulting leaf.
	Node string
	// Kind is "condition" or "action".
	Kind string
	Err  error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("%s %q: callback fault: %v", e.Kind, e.Node, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

// invoke calls fn, converting a returned error or a panic into a
// *CallbackError. On fault the zero value of T is returned.
func invoke[T any](kind, name string, fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v = zero
			err = &CallbackError{Node: name, Kind: kind, Err: fmt.Errorf("%w: %v", ErrPanic, r)}
		}
	}()
	v, err = fn()
	if err != nil {
		var zero T
		v = zero
		err = &CallbackError{Node: name, Kind: kind, Err: err}
	}
	return v, err
}

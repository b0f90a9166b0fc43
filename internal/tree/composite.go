package tree

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// composite holds the child list shared by Sequence and Fallback. Each
// composite allocates its own slice.
type composite struct {
	name     string
	children []Node
	frozen   atomic.Bool
}

func newComposite(name string, children []Node) composite {
	owned := make([]Node, len(children))
	copy(owned, children)
	return composite{name: name, children: owned}
}

// Name implements Node.
func (c *composite) Name() string { return c.name }

// Children implements Composite.
func (c *composite) Children() []Node {
	out := make([]Node, len(c.children))
	copy(out, c.children)
	return out
}

// Append adds children to the end of the list. It fails once the composite
// has been frozen, or if any child is nil, in which case nothing is added.
func (c *composite) Append(children ...Node) error {
	if c.frozen.Load() {
		return fmt.Errorf("composite %q: %w", c.name, ErrFrozen)
	}
	for i, child := range children {
		if child == nil {
			return fmt.Errorf("composite %q: child %d: %w", c.name, i, ErrNilChild)
		}
	}
	c.children = append(c.children, children...)
	return nil
}

func (c *composite) freeze() { c.frozen.Store(true) }

// Frozen reports whether the child list can no longer change.
func (c *composite) Frozen() bool { return c.frozen.Load() }

// Sequence ticks its children in order and succeeds only if all succeed.
type Sequence struct {
	composite
}

// NewSequence returns a Sequence owning a copy of children.
func NewSequence(children ...Node) *Sequence {
	return &Sequence{composite: newComposite("sequence", children)}
}

// Named sets the node name and returns s.
func (s *Sequence) Named(name string) *Sequence {
	s.name = name
	return s
}

// Tick implements Node.
//
// A Busy child stops iteration and the sequence reports Busy with the outcome
// folded so far. The first false outcome stops iteration with (false, Ready).
func (s *Sequence) Tick() (bool, Status, error) {
	outcome := true
	var errs []error
	for _, child := range s.children {
		o, st, err := child.Tick()
		if err != nil {
			errs = append(errs, err)
		}
		if st == Busy {
			return outcome, Busy, errors.Join(errs...)
		}
		outcome = outcome && o
		if !outcome {
			return false, Ready, errors.Join(errs...)
		}
	}
	return true, Ready, errors.Join(errs...)
}

func (*Sequence) node() {}

// Fallback ticks its children in order until one succeeds.
type Fallback struct {
	composite
}

// NewFallback returns a Fallback owning a copy of children.
func NewFallback(children ...Node) *Fallback {
	return &Fallback{composite: newComposite("fallback", children)}
}

// Named sets the node name and returns f.
func (f *Fallback) Named(name string) *Fallback {
	f.name = name
	return f
}

// Tick implements Node.
//
// A Busy child stops iteration and the fallback reports Busy with the outcome
// folded so far. The first true outcome stops iteration with (true, Ready);
// (false, Ready) is reported only once every child completed false.
func (f *Fallback) Tick() (bool, Status, error) {
	outcome := false
	var errs []error
	for _, child := range f.children {
		o, st, err := child.Tick()
		if err != nil {
			errs = append(errs, err)
		}
		if st == Busy {
			return outcome, Busy, errors.Join(errs...)
		}
		outcome = outcome || o
		if outcome {
			return true, Ready, errors.Join(errs...)
		}
	}
	return false, Ready, errors.Join(errs...)
}

func (*Fallback) node() {}

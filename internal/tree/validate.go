package tree

import (
	"fmt"
	"strings"

	"github.com/joeycumines/reactree/internal/blackboard"
)

// bound is implemented by leaves, which capture the blackboard they read.
type bound interface {
	blackboard() *blackboard.Blackboard
}

type freezer interface {
	freeze()
}

// Validate checks a forest of top-level nodes before it is ticked. It
// rejects nil nodes, cycles, node instances reachable from more than one
// parent, and, when bb is non-nil, leaves bound to another blackboard.
func Validate(bb *blackboard.Blackboard, nodes ...Node) error {
	v := validator{
		bb:      bb,
		seen:    make(map[Node]struct{}),
		onStack: make(map[Node]struct{}),
	}
	for i, n := range nodes {
		if err := v.visit(n, []string{fmt.Sprintf("[%d]", i)}); err != nil {
			return err
		}
	}
	return nil
}

type validator struct {
	bb      *blackboard.Blackboard
	seen    map[Node]struct{}
	onStack map[Node]struct{}
}

func (v *validator) visit(n Node, path []string) error {
	if isNil(n) {
		return fmt.Errorf("%s: %w", strings.Join(path, "/"), ErrNilChild)
	}
	path = append(path, n.Name())
	at := strings.Join(path, "/")
	if _, ok := v.onStack[n]; ok {
		return fmt.Errorf("%s: %w", at, ErrCycle)
	}
	if _, ok := v.seen[n]; ok {
		return fmt.Errorf("%s: %w", at, ErrSharedNode)
	}
	v.seen[n] = struct{}{}

	if leaf, ok := n.(bound); ok && v.bb != nil && leaf.blackboard() != v.bb {
		return fmt.Errorf("%s: %w", at, ErrBlackboardMismatch)
	}

	if c, ok := n.(Composite); ok {
		v.onStack[n] = struct{}{}
		for i, child := range c.Children() {
			if err := v.visit(child, append(path, fmt.Sprintf("[%d]", i))); err != nil {
				return err
			}
		}
		delete(v.onStack, n)
	}
	return nil
}

func isNil(n Node) bool {
	switch n := n.(type) {
	case nil:
		return true
	case *Condition:
		return n == nil
	case *Action:
		return n == nil
	case *Sequence:
		return n == nil
	case *Fallback:
		return n == nil
	default:
		return false
	}
}

// Freeze marks every composite reachable from nodes as frozen. It should be
// called after Validate succeeded.
func Freeze(nodes ...Node) {
	Walk(func(n Node) {
		if f, ok := n.(freezer); ok {
			f.freeze()
		}
	}, nodes...)
}

// Walk calls fn for every node reachable from nodes, depth first, in
// declared order. The tree must not contain cycles.
func Walk(fn func(Node), nodes ...Node) {
	for _, n := range nodes {
		if isNil(n) {
			continue
		}
		fn(n)
		if c, ok := n.(Composite); ok {
			Walk(fn, c.Children()...)
		}
	}
}

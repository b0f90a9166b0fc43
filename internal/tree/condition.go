package tree

import (
	"github.com/joeycumines/reactree/internal/blackboard"
)

// Predicate tests the blackboard.
type Predicate func(bb *blackboard.Blackboard) (bool, error)

// Check adapts an infallible test into a Predicate.
func Check(fn func(bb *blackboard.Blackboard) bool) Predicate {
	if fn == nil {
		return nil
	}
	return func(bb *blackboard.Blackboard) (bool, error) {
		return fn(bb), nil
	}
}

// Condition is a leaf that evaluates a Predicate on every tick. It holds no
// state across ticks and is never Busy.
type Condition struct {
	name string
	bb   *blackboard.Blackboard
	pred Predicate
}

// NewCondition returns a Condition evaluating pred against bb.
// A nil pred always evaluates to false.
func NewCondition(bb *blackboard.Blackboard, pred Predicate, opts ...Option) *Condition {
	o := applyOptions("condition", opts)
	return &Condition{
		name: o.name,
		bb:   bb,
		pred: pred,
	}
}

// Name implements Node.
func (c *Condition) Name() string { return c.name }

// Evaluate runs the predicate. Faults are returned as *CallbackError with a
// false result.
func (c *Condition) Evaluate() (bool, error) {
	if c.pred == nil {
		return false, nil
	}
	return invoke("condition", c.name, func() (bool, error) {
		return c.pred(c.bb)
	})
}

// Tick implements Node.
func (c *Condition) Tick() (bool, Status, error) {
	outcome, err := c.Evaluate()
	return outcome, Ready, err
}

func (c *Condition) blackboard() *blackboard.Blackboard { return c.bb }

func (*Condition) node() {}

package planner

import (
	bt "github.com/joeycumines/go-behaviortree"
	pabtpkg "github.com/joeycumines/go-pabt"
	"github.com/joeycumines/reactree/internal/btinterop"
	"github.com/joeycumines/reactree/internal/tree"
)

// Condition matches the value of one blackboard key.
type Condition struct {
	key   string
	match func(value any) bool
}

var _ pabtpkg.Condition = (*Condition)(nil)

// Cond returns a condition on key using match. A nil match never holds.
func Cond(key string, match func(value any) bool) *Condition {
	return &Condition{key: key, match: match}
}

// Equals holds when the value of key equals want.
func Equals(key string, want any) *Condition {
	return Cond(key, func(value any) bool { return value == want })
}

// NotNil holds when key is present with a non-nil value.
func NotNil(key string) *Condition {
	return Cond(key, func(value any) bool { return value != nil })
}

// IsNil holds when key is absent or nil.
func IsNil(key string) *Condition {
	return Cond(key, func(value any) bool { return value == nil })
}

func (c *Condition) Key() any { return c.key }

func (c *Condition) Match(value any) bool {
	if c.match == nil {
		return false
	}
	return c.match(value)
}

// Effect is a blackboard write an action is expected to make.
type Effect struct {
	key   string
	value any
}

var _ pabtpkg.Effect = (*Effect)(nil)

func (e *Effect) Key() any   { return e.key }
func (e *Effect) Value() any { return e.value }

// Action is a planning step: preconditions, expected effects, and the tree
// node that performs it.
type Action struct {
	name       string
	conditions []pabtpkg.IConditions
	effects    pabtpkg.Effects
	node       bt.Node
}

var _ pabtpkg.IAction = (*Action)(nil)

// NewAction returns an action performed by node. A nil node fails when
// ticked.
func NewAction(name string, node tree.Node) *Action {
	a := &Action{
		name:       name,
		conditions: []pabtpkg.IConditions{},
		effects:    pabtpkg.Effects{},
	}
	if node != nil {
		a.node = btinterop.ToBT(node)
	} else {
		a.node = bt.New(func([]bt.Node) (bt.Status, error) { return bt.Failure, nil })
	}
	return a
}

func (a *Action) Name() string { return a.name }

// Requires adds a precondition group. Conditions within a group must hold
// together; separate groups are alternatives.
func (a *Action) Requires(conds ...pabtpkg.Condition) *Action {
	a.conditions = append(a.conditions, conds)
	return a
}

// Sets declares that the action writes value to key.
func (a *Action) Sets(key string, value any) *Action {
	a.effects = append(a.effects, &Effect{key: key, value: value})
	return a
}

func (a *Action) Conditions() []pabtpkg.IConditions { return a.conditions }
func (a *Action) Effects() pabtpkg.Effects          { return a.effects }
func (a *Action) Node() bt.Node                     { return a.node }

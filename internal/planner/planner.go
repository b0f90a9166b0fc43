// Package planner synthesises behaviour from goals using the PA-BT
// (Planning and Acting using Behavior Trees) algorithm.
//
// A State exposes the blackboard and a set of registered actions to the
// planner. New turns a goal into a polling tree.Action: each tick advances
// the plan, expanding it on demand until the goal holds or no action can
// make progress.
package planner

import (
	"errors"
	"fmt"
	"sync"

	pabtpkg "github.com/joeycumines/go-pabt"
	"github.com/joeycumines/reactree/internal/blackboard"
	"github.com/joeycumines/reactree/internal/btinterop"
	"github.com/joeycumines/reactree/internal/tree"
)

var (
	// ErrNoGoal is returned when a plan is requested for an empty goal.
	ErrNoGoal = errors.New("planner: goal has no conditions")
	// ErrDuplicateAction is returned when registering a name twice.
	ErrDuplicateAction = errors.New("planner: duplicate action")
)

// Generator produces actions for a failed condition at planning time.
type Generator func(failed pabtpkg.Condition) ([]*Action, error)

// State implements the go-pabt state over a blackboard.
type State struct {
	bb *blackboard.Blackboard

	mu        sync.RWMutex
	actions   []*Action
	names     map[string]struct{}
	generator Generator
}

var _ pabtpkg.IState = (*State)(nil)

func NewState(bb *blackboard.Blackboard) *State {
	return &State{bb: bb, names: make(map[string]struct{})}
}

func (s *State) Blackboard() *blackboard.Blackboard { return s.bb }

// Register adds actions in order. Registration order is the order the
// planner considers them in.
func (s *State) Register(actions ...*Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range actions {
		if a == nil {
			return fmt.Errorf("planner: nil action")
		}
		if _, ok := s.names[a.name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateAction, a.name)
		}
		s.names[a.name] = struct{}{}
		s.actions = append(s.actions, a)
	}
	return nil
}

// SetGenerator installs a generator. When it returns any actions for a
// condition, the registered actions are not consulted for that condition.
func (s *State) SetGenerator(g Generator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generator = g
}

// Variable returns the blackboard value for key, or nil when absent.
func (s *State) Variable(key any) (any, error) {
	switch k := key.(type) {
	case string:
		return s.bb.Get(k), nil
	case fmt.Stringer:
		return s.bb.Get(k.String()), nil
	default:
		return nil, fmt.Errorf("planner: unsupported key type %T", key)
	}
}

// Actions returns the actions with an effect satisfying failed. A nil
// condition returns every registered action.
func (s *State) Actions(failed pabtpkg.Condition) ([]pabtpkg.IAction, error) {
	s.mu.RLock()
	registered := append([]*Action(nil), s.actions...)
	generator := s.generator
	s.mu.RUnlock()

	if failed == nil {
		out := make([]pabtpkg.IAction, len(registered))
		for i, a := range registered {
			out[i] = a
		}
		return out, nil
	}

	candidates := registered
	if generator != nil {
		generated, err := generator(failed)
		if err != nil {
			return nil, fmt.Errorf("planner: generate actions for %v: %w", failed.Key(), err)
		}
		if len(generated) > 0 {
			candidates = generated
		}
	}

	var relevant []pabtpkg.IAction
	for _, a := range candidates {
		if a != nil && satisfies(a, failed) {
			relevant = append(relevant, a)
		}
	}
	return relevant, nil
}

func satisfies(a *Action, failed pabtpkg.Condition) bool {
	for _, e := range a.effects {
		if e.Key() == failed.Key() && failed.Match(e.Value()) {
			return true
		}
	}
	return false
}

// New plans for goal and returns the plan as a polling action bound to the
// state's blackboard. Goal groups are alternatives; the conditions within a
// group must hold together. The default name is "plan".
func New(state *State, goal []pabtpkg.IConditions, opts ...tree.Option) (*tree.Action, error) {
	if len(goal) == 0 {
		return nil, ErrNoGoal
	}
	for _, group := range goal {
		if len(group) == 0 {
			return nil, ErrNoGoal
		}
	}
	plan, err := pabtpkg.INew(state, goal)
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	action := btinterop.FromBT(state.bb, plan.Node(), append([]tree.Option{tree.WithName("plan")}, opts...)...)
	action.Logger().Debug("plan created", "node", action.Name(), "alternatives", len(goal))
	return action, nil
}

// Goal is shorthand for a goal with a single group of conditions.
func Goal(conds ...pabtpkg.Condition) []pabtpkg.IConditions {
	return []pabtpkg.IConditions{conds}
}

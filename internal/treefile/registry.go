package treefile

import (
	"fmt"
	"sort"
	"sync"

	"github.com/joeycumines/reactree/internal/tree"
)

// Registry maps names used in tree files to Go callbacks.
type Registry struct {
	mu         sync.RWMutex
	predicates map[string]tree.Predicate
	actions    map[string]registeredAction
}

type registeredAction struct {
	mode  tree.Mode
	work  tree.Work
	start tree.AsyncWork
	poll  tree.Poll
}

func NewRegistry() *Registry {
	return &Registry{
		predicates: make(map[string]tree.Predicate),
		actions:    make(map[string]registeredAction),
	}
}

// Condition registers a predicate for condition nodes.
func (r *Registry) Condition(name string, pred tree.Predicate) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predicates[name] = pred
	return r
}

// Action registers synchronous work for action nodes.
func (r *Registry) Action(name string, work tree.Work) *Registry {
	return r.action(name, registeredAction{mode: tree.ModeSync, work: work})
}

// AsyncAction registers tick-spanning work for action nodes.
func (r *Registry) AsyncAction(name string, start tree.AsyncWork) *Registry {
	return r.action(name, registeredAction{mode: tree.ModeAsync, start: start})
}

// PollingAction registers a stepwise callback for action nodes.
func (r *Registry) PollingAction(name string, poll tree.Poll) *Registry {
	return r.action(name, registeredAction{mode: tree.ModePolling, poll: poll})
}

func (r *Registry) action(name string, a registeredAction) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = a
	return r
}

func (r *Registry) predicate(name string) (tree.Predicate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pred, ok := r.predicates[name]
	if !ok {
		return nil, fmt.Errorf("%w: condition %q", ErrUnknownCall, name)
	}
	return pred, nil
}

func (r *Registry) lookupAction(name string) (registeredAction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	if !ok {
		return registeredAction{}, fmt.Errorf("%w: action %q", ErrUnknownCall, name)
	}
	return a, nil
}

// Names lists the registered condition and action names, sorted.
func (r *Registry) Names() (conditions, actions []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name := range r.predicates {
		conditions = append(conditions, name)
	}
	for name := range r.actions {
		actions = append(actions, name)
	}
	sort.Strings(conditions)
	sort.Strings(actions)
	return conditions, actions
}

// Package btinterop converts between reactree nodes and go-behaviortree
// nodes.
//
// Status mapping:
//
//	Ready, true   <-> bt.Success
//	Ready, false  <-> bt.Failure
//	Busy          <-> bt.Running
//
// A fault on either side maps to a failure carrying the error.
package btinterop

import (
	"fmt"

	bt "github.com/joeycumines/go-behaviortree"
	"github.com/joeycumines/reactree/internal/blackboard"
	"github.com/joeycumines/reactree/internal/tree"
)

// ToStatus maps a reactree result to a go-behaviortree status.
func ToStatus(outcome bool, status tree.Status) bt.Status {
	switch {
	case status == tree.Busy:
		return bt.Running
	case outcome:
		return bt.Success
	default:
		return bt.Failure
	}
}

// FromStatus maps a go-behaviortree status to a reactree result. Unknown
// statuses are treated as failures.
func FromStatus(status bt.Status) (outcome bool, s tree.Status) {
	switch status {
	case bt.Running:
		return false, tree.Busy
	case bt.Success:
		return true, tree.Ready
	default:
		return false, tree.Ready
	}
}

// ToBT wraps n as a go-behaviortree leaf. Each bt tick ticks n once.
func ToBT(n tree.Node) bt.Node {
	return bt.New(func([]bt.Node) (bt.Status, error) {
		outcome, status, err := n.Tick()
		if err != nil {
			return bt.Failure, err
		}
		return ToStatus(outcome, status), nil
	})
}

// FromBT wraps a go-behaviortree node as a polling action bound to bb. A
// running node keeps the action busy; the node decides for itself whether
// to resume or restart on the next tick. The default name is "bt".
func FromBT(bb *blackboard.Blackboard, node bt.Node, opts ...tree.Option) *tree.Action {
	var poll tree.Poll
	if node != nil {
		poll = func(*blackboard.Blackboard) (tree.Status, bool, error) {
			status, err := node.Tick()
			if err != nil {
				return tree.Ready, false, err
			}
			outcome, s := FromStatus(status)
			return s, outcome, nil
		}
	}
	return tree.NewPollingAction(bb, poll, append([]tree.Option{tree.WithName("bt")}, opts...)...)
}

// StatusString renders a go-behaviortree status using the reactree
// vocabulary, for logging.
func StatusString(status bt.Status) string {
	outcome, s := FromStatus(status)
	if s == tree.Busy {
		return s.String()
	}
	return fmt.Sprintf("%s(%t)", s, outcome)
}

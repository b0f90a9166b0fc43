/*
Package tree implements the node model of a reactive behaviour tree.

# Nodes

Every node implements Node, whose Tick method returns an outcome, a Status and
an error. The set of node types is closed: Condition and Action are leaves,
Sequence and Fallback are composites. Node carries an unexported method so no
other package can add variants.

Status is either Ready or Busy. Busy means the node's work did not finish
during this tick and the node must be ticked again. The outcome is only
meaningful when the status is Ready; while Busy it holds the result of the
previous completed cycle.

# Leaves

A Condition wraps a Predicate evaluated against the blackboard. It is never
Busy.

An Action wraps a unit of work and runs in one of three explicit modes:

  - ModeSync: the Work callback runs to completion inside the tick.
  - ModeAsync: the AsyncWork callback is started once, the action reports Busy
    on the starting tick and on every later tick until the Done signal has
    been received, and the tick after that reports Ready with the fresh
    outcome. The work is never restarted while Busy.
  - ModePolling: the Poll callback is called on every tick and itself reports
    whether the work is still Busy.

# Composites

Sequence is an AND over its children, Fallback an OR. Both evaluate children
strictly in declared order, stop at the first Busy child (reporting Busy
themselves), and short-circuit on the first false (Sequence) or true
(Fallback) outcome.

# Faults

A callback that returns an error or panics produces a *CallbackError. The leaf
reports (false, Ready, err); composites fold it as a false outcome, carry on
under the normal folding rules and return every fault they saw, joined, next
to their own result.

# Construction

Trees are assembled with the New* constructors or a Builder bound to a
blackboard, then checked with Validate and frozen with Freeze before the
first tick. A frozen composite rejects Append with ErrFrozen.
*/
package tree

package tree

import (
	"github.com/joeycumines/reactree/internal/blackboard"
)

// Builder constructs nodes bound to a single blackboard.
type Builder struct {
	bb   *blackboard.Blackboard
	opts []Option
}

// NewBuilder returns a Builder whose leaves read and write bb. opts are
// applied to every leaf before the per-call options.
func NewBuilder(bb *blackboard.Blackboard, opts ...Option) *Builder {
	return &Builder{bb: bb, opts: opts}
}

// Blackboard returns the blackboard leaves are bound to.
func (b *Builder) Blackboard() *blackboard.Blackboard { return b.bb }

func (b *Builder) with(opts []Option) []Option {
	if len(b.opts) == 0 {
		return opts
	}
	return append(append(make([]Option, 0, len(b.opts)+len(opts)), b.opts...), opts...)
}

// Condition returns a Condition evaluating pred.
func (b *Builder) Condition(pred Predicate, opts ...Option) *Condition {
	return NewCondition(b.bb, pred, b.with(opts)...)
}

// Check returns a Condition evaluating an infallible test.
func (b *Builder) Check(fn func(bb *blackboard.Blackboard) bool, opts ...Option) *Condition {
	return NewCondition(b.bb, Check(fn), b.with(opts)...)
}

// Expr returns a Condition evaluating an expr-lang expression.
func (b *Builder) Expr(expression string, opts ...Option) (*Condition, error) {
	return NewExprCondition(b.bb, expression, b.with(opts)...)
}

// Action returns a synchronous Action.
func (b *Builder) Action(work Work, opts ...Option) *Action {
	return NewAction(b.bb, work, b.with(opts)...)
}

// AsyncAction returns an Action spanning ticks until its work signals done.
func (b *Builder) AsyncAction(start AsyncWork, opts ...Option) *Action {
	return NewAsyncAction(b.bb, start, b.with(opts)...)
}

// PollingAction returns an Action driven by poll.
func (b *Builder) PollingAction(poll Poll, opts ...Option) *Action {
	return NewPollingAction(b.bb, poll, b.with(opts)...)
}

// Sequence returns a Sequence of children.
func (b *Builder) Sequence(children ...Node) *Sequence {
	return NewSequence(children...)
}

// Fallback returns a Fallback of children.
func (b *Builder) Fallback(children ...Node) *Fallback {
	return NewFallback(children...)
}

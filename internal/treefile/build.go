package treefile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joeycumines/reactree/internal/blackboard"
	"github.com/joeycumines/reactree/internal/script"
	"github.com/joeycumines/reactree/internal/tree"
)

// BuildOption configures Build.
type BuildOption func(*builder)

// WithLogger sets the logger used by built leaves and script engines.
func WithLogger(logger *slog.Logger) BuildOption {
	return func(b *builder) { b.logger = logger }
}

// WithScriptTimeout bounds each script evaluation.
func WithScriptTimeout(d time.Duration) BuildOption {
	return func(b *builder) { b.scriptTimeout = d }
}

// WithContext sets the context of async actions. Cancelling it also stops
// the event loop of async script actions.
func WithContext(ctx context.Context) BuildOption {
	return func(b *builder) { b.ctx = ctx }
}

type builder struct {
	bb            *blackboard.Blackboard
	reg           *Registry
	logger        *slog.Logger
	ctx           context.Context
	scriptTimeout time.Duration
	engine        *script.Engine
}

// Build constructs the top-level children bound to bb. Calls are resolved
// against reg, which may be nil for documents without calls. The result has
// passed tree.Validate.
func (d *Document) Build(bb *blackboard.Blackboard, reg *Registry, opts ...BuildOption) ([]tree.Node, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		reg = NewRegistry()
	}
	b := &builder{bb: bb, reg: reg, logger: slog.Default(), ctx: context.Background()}
	for _, opt := range opts {
		opt(b)
	}

	nodes := make([]tree.Node, 0, len(d.Tree))
	for i := range d.Tree {
		n, err := b.build(&d.Tree[i], fmt.Sprintf("tree[%d]", i))
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := tree.Validate(bb, nodes...); err != nil {
		return nil, err
	}
	return nodes, nil
}

// NewBlackboard returns a blackboard seeded with the document's initial
// values.
func (d *Document) NewBlackboard() *blackboard.Blackboard {
	return blackboard.New(d.Blackboard)
}

// scripts returns the engine shared by every script leaf of the document.
// Its event loop is stopped when the build context is done.
func (b *builder) scripts() *script.Engine {
	if b.engine == nil {
		b.engine = script.New(b.bb, script.WithLogger(b.logger), script.WithTimeout(b.scriptTimeout))
		engine := b.engine
		context.AfterFunc(b.ctx, func() { _ = engine.Close() })
	}
	return b.engine
}

func (b *builder) options(n *Node, defaultName string) []tree.Option {
	name := n.Name
	if name == "" {
		name = defaultName
	}
	opts := []tree.Option{tree.WithLogger(b.logger), tree.WithContext(b.ctx)}
	if name != "" {
		opts = append(opts, tree.WithName(name))
	}
	return opts
}

func (b *builder) build(n *Node, path string) (tree.Node, error) {
	var (
		node tree.Node
		err  error
	)
	switch n.Type {
	case TypeSequence, TypeFallback:
		return b.composite(n, path)
	case TypeCondition:
		node, err = b.condition(n)
	case TypeAction:
		node, err = b.action(n)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return node, nil
}

func (b *builder) composite(n *Node, path string) (tree.Node, error) {
	children := make([]tree.Node, 0, len(n.Children))
	for i := range n.Children {
		child, err := b.build(&n.Children[i], fmt.Sprintf("%s/children[%d]", path, i))
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if n.Type == TypeSequence {
		s := tree.NewSequence(children...)
		if n.Name != "" {
			s.Named(n.Name)
		}
		return s, nil
	}
	f := tree.NewFallback(children...)
	if n.Name != "" {
		f.Named(n.Name)
	}
	return f, nil
}

func (b *builder) condition(n *Node) (tree.Node, error) {
	switch {
	case n.Expr != "":
		return tree.NewExprCondition(b.bb, n.Expr, b.options(n, "")...)
	case n.Script != "":
		return b.scripts().Condition(n.Script, b.options(n, "")...)
	default:
		pred, err := b.reg.predicate(n.Call)
		if err != nil {
			return nil, err
		}
		return tree.NewCondition(b.bb, pred, b.options(n, n.Call)...), nil
	}
}

func (b *builder) action(n *Node) (tree.Node, error) {
	set := n.Set
	switch {
	case n.Script != "":
		name := n.Name
		if name == "" {
			name = "action"
		}
		if n.Async {
			start, err := b.scripts().AsyncWork(name, n.Script)
			if err != nil {
				return nil, err
			}
			return tree.NewAsyncAction(b.bb, withSetAsync(start, set), b.options(n, "script")...), nil
		}
		work, err := b.scripts().Work(name, n.Script)
		if err != nil {
			return nil, err
		}
		return tree.NewAction(b.bb, withSetWork(work, set), b.options(n, "script")...), nil

	case n.Call != "":
		a, err := b.reg.lookupAction(n.Call)
		if err != nil {
			return nil, err
		}
		opts := b.options(n, n.Call)
		switch a.mode {
		case tree.ModeAsync:
			return tree.NewAsyncAction(b.bb, withSetAsync(a.start, set), opts...), nil
		case tree.ModePolling:
			return tree.NewPollingAction(b.bb, withSetPoll(a.poll, set), opts...), nil
		default:
			return tree.NewAction(b.bb, withSetWork(a.work, set), opts...), nil
		}

	default:
		return tree.NewAction(b.bb, func(bb *blackboard.Blackboard) (bool, error) {
			bb.SetAll(set)
			return true, nil
		}, b.options(n, "set")...), nil
	}
}

func withSetWork(work tree.Work, set map[string]any) tree.Work {
	if work == nil || len(set) == 0 {
		return work
	}
	return func(bb *blackboard.Blackboard) (bool, error) {
		ok, err := work(bb)
		if ok && err == nil {
			bb.SetAll(set)
		}
		return ok, err
	}
}

func withSetAsync(start tree.AsyncWork, set map[string]any) tree.AsyncWork {
	if start == nil || len(set) == 0 {
		return start
	}
	return func(ctx context.Context, bb *blackboard.Blackboard, done tree.Done) {
		start(ctx, bb, func(ok bool, err error) {
			if ok && err == nil && ctx.Err() == nil {
				bb.SetAll(set)
			}
			done(ok, err)
		})
	}
}

func withSetPoll(poll tree.Poll, set map[string]any) tree.Poll {
	if poll == nil || len(set) == 0 {
		return poll
	}
	return func(bb *blackboard.Blackboard) (tree.Status, bool, error) {
		status, ok, err := poll(bb)
		if status == tree.Ready && ok && err == nil {
			bb.SetAll(set)
		}
		return status, ok, err
	}
}

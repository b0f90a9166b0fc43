package tree

import (
	"context"
	"log/slog"
)

// Status reports whether a node's work finished during the last tick.
type Status int

const (
	// Ready means the node is idle or just finished; its outcome is fresh.
	Ready Status = iota
	// Busy means the node needs further ticks; its outcome is stale.
	Busy
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case Ready:
		return "READY"
	case Busy:
		return "BUSY"
	default:
		return "UNKNOWN"
	}
}

// Node is a behaviour tree node.
//
// Tick evaluates the node once. The outcome is only meaningful when status
// is Ready. A non-nil error reports callback faults encountered during the
// tick; it never changes how the status must be interpreted.
type Node interface {
	Tick() (outcome bool, status Status, err error)
	// Name identifies the node in logs and errors.
	Name() string

	node()
}

// Composite is a node with ordered children.
type Composite interface {
	Node
	// Children returns a copy of the child list.
	Children() []Node
}

var (
	_ Node      = (*Condition)(nil)
	_ Node      = (*Action)(nil)
	_ Composite = (*Sequence)(nil)
	_ Composite = (*Fallback)(nil)
)

// Option configures a leaf node.
type Option func(*leafOptions)

type leafOptions struct {
	name   string
	ctx    context.Context
	logger *slog.Logger
}

// WithName sets the name reported in logs and errors.
func WithName(name string) Option {
	return func(o *leafOptions) {
		o.name = name
	}
}

// WithContext sets the context handed to async work. Cancelling it stops a
// Busy async action at its next tick. Defaults to context.Background().
func WithContext(ctx context.Context) Option {
	return func(o *leafOptions) {
		o.ctx = ctx
	}
}

// WithLogger sets the logger used by the node. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *leafOptions) {
		o.logger = logger
	}
}

func applyOptions(defaultName string, opts []Option) leafOptions {
	o := leafOptions{name: defaultName}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.name == "" {
		o.name = defaultName
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.ctx == nil {
		o.ctx = context.Background()
	}
	return o
}

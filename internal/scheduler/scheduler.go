// Package scheduler drives the top-level children of a behaviour tree at a
// fixed rate.
//
// Each period the scheduler ticks every top-level child once, in declared
// order, measures how long the pass took, and sleeps for the remainder of
// the period. A pass that exceeds its period is reported to the Observer
// and the next pass starts immediately. A pass in progress is never
// abandoned: stop requests are checked before each pass and wake the sleep.
//
// A Scheduler satisfies the go-behaviortree Ticker interface, so several
// schedulers may be aggregated under a bt.Manager.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	bt "github.com/joeycumines/go-behaviortree"
	"github.com/joeycumines/reactree/internal/blackboard"
	"github.com/joeycumines/reactree/internal/tree"
)

var (
	// ErrInvalidRate is returned for a rate that is not a finite positive
	// number of ticks per second.
	ErrInvalidRate = errors.New("scheduler: rate must be a finite positive number")
	// ErrNilBlackboard is returned when no blackboard is supplied.
	ErrNilBlackboard = errors.New("scheduler: nil blackboard")
	// ErrRunning is returned by operations that require a scheduler which
	// has not been started.
	ErrRunning = errors.New("scheduler: already started")
)

var _ bt.Ticker = (*Scheduler)(nil)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithName sets the scheduler name used in logs and metrics. The default
// is "root".
func WithName(name string) Option {
	return func(s *Scheduler) { s.name = name }
}

// WithClock replaces the system clock.
func WithClock(clock Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithObserver adds an observer. Observers are notified in the order they
// were added, after the scheduler's own log observer.
func WithObserver(observer Observer) Option {
	return func(s *Scheduler) { s.observers = append(s.observers, observer) }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// Scheduler owns a blackboard and the top-level children of a tree.
type Scheduler struct {
	name      string
	id        uuid.UUID
	bb        *blackboard.Blackboard
	rate      float64
	period    time.Duration
	clock     Clock
	logger    *slog.Logger
	observers Observers
	observer  Observer

	index atomic.Uint64

	mu       sync.Mutex
	children []tree.Node
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	err      error
	done     chan struct{}
}

// New returns a scheduler ticking rate times per second against bb.
func New(bb *blackboard.Blackboard, rate float64, opts ...Option) (*Scheduler, error) {
	if bb == nil {
		return nil, ErrNilBlackboard
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}
	period := time.Duration(float64(time.Second) / rate)
	if period <= 0 {
		return nil, fmt.Errorf("%w: %v exceeds clock resolution", ErrInvalidRate, rate)
	}

	s := &Scheduler{
		name:   "root",
		id:     uuid.New(),
		bb:     bb,
		rate:   rate,
		period: period,
		clock:  SystemClock{},
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("scheduler", s.name, "run", s.id.String())
	s.observer = append(Observers{LogObserver{Logger: s.logger}}, s.observers...)
	return s, nil
}

func (s *Scheduler) Name() string                       { return s.name }
func (s *Scheduler) ID() uuid.UUID                      { return s.id }
func (s *Scheduler) Rate() float64                      { return s.rate }
func (s *Scheduler) Period() time.Duration              { return s.period }
func (s *Scheduler) Blackboard() *blackboard.Blackboard { return s.bb }

// Builder returns a node builder bound to the scheduler's blackboard.
func (s *Scheduler) Builder(opts ...tree.Option) *tree.Builder {
	return tree.NewBuilder(s.bb, opts...)
}

// Ticks returns the index of the most recent tick, or 0 before the first.
func (s *Scheduler) Ticks() uint64 {
	return s.index.Load()
}

// SetTree replaces the top-level children. The nodes are validated against
// the scheduler's blackboard, and again when the scheduler starts, at which
// point they are frozen.
func (s *Scheduler) SetTree(children ...tree.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrRunning
	}
	if err := tree.Validate(s.bb, children...); err != nil {
		return err
	}
	s.children = append([]tree.Node(nil), children...)
	return nil
}

// Children returns a copy of the top-level children.
func (s *Scheduler) Children() []tree.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tree.Node(nil), s.children...)
}

// TickOnce performs a single pass without sleeping. It fails with
// ErrRunning once the loop has started, or with the validation error of a
// tree modified since SetTree.
func (s *Scheduler) TickOnce() (TickReport, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return TickReport{}, ErrRunning
	}
	children := s.children
	s.mu.Unlock()
	if err := tree.Validate(s.bb, children...); err != nil {
		return TickReport{}, err
	}
	return s.tick(children), nil
}

// Run executes the loop on the calling goroutine until Stop is called or
// ctx is done. It returns nil after Stop and ctx.Err() after cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	runCtx, children, err := s.begin(ctx)
	if err != nil {
		return err
	}
	err = s.loop(ctx, runCtx, children)
	s.finish(err)
	return err
}

// Start executes the loop on a new goroutine. Completion is signalled via
// Done and Err.
func (s *Scheduler) Start(ctx context.Context) error {
	runCtx, children, err := s.begin(ctx)
	if err != nil {
		return err
	}
	go func() {
		s.finish(s.loop(ctx, runCtx, children))
	}()
	return nil
}

// Stop requests a cooperative stop. The current pass completes and no
// further pass starts. Stop does not block and may be called more than
// once, including before the scheduler starts.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
}

// Done is closed once the loop has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Err returns the reason the loop exited: nil after Stop, the context error
// after cancellation. It is only meaningful once Done is closed.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Scheduler) begin(ctx context.Context) (context.Context, []tree.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil, nil, ErrRunning
	}
	// composites stay appendable until now
	if err := tree.Validate(s.bb, s.children...); err != nil {
		return nil, nil, err
	}
	s.started = true
	tree.Freeze(s.children...)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	if s.stopped {
		cancel()
	}
	return runCtx, s.children, nil
}

func (s *Scheduler) finish(err error) {
	s.mu.Lock()
	s.err = err
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	close(s.done)
}

func (s *Scheduler) loop(ctx, runCtx context.Context, children []tree.Node) error {
	s.logger.Info("scheduler started",
		"rate", s.rate,
		"period", s.period,
		"children", len(children))

	for runCtx.Err() == nil {
		report := s.tick(children)
		if report.Overran() {
			s.observer.OnOverrun(Overrun{
				Tick:    report.Index,
				Elapsed: report.Elapsed,
				Period:  report.Period,
			})
			continue
		}
		// woken early by stop or cancellation; the loop condition decides
		_ = s.clock.Sleep(runCtx, s.period-report.Elapsed)
	}

	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()

	var err error
	if !stopped {
		err = ctx.Err()
	}
	s.logger.Info("scheduler stopped", "ticks", s.index.Load(), "error", err)
	return err
}

func (s *Scheduler) tick(children []tree.Node) TickReport {
	index := s.index.Add(1)
	start := s.clock.Now()

	results := make([]Result, len(children))
	for i, child := range children {
		outcome, status, err := child.Tick()
		results[i] = Result{
			Node:    child.Name(),
			Outcome: outcome,
			Status:  status,
			Err:     err,
		}
		if err != nil {
			s.observer.OnFault(Fault{
				Tick:  index,
				Child: i,
				Node:  child.Name(),
				Err:   err,
			})
		}
	}

	report := TickReport{
		Index:   index,
		Start:   start,
		Elapsed: s.clock.Now().Sub(start),
		Period:  s.period,
		Results: results,
	}
	s.observer.OnTick(report)
	return report
}

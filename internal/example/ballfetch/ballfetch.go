// Package ballfetch is a small demo agent that fetches a ball, walks to a
// wall and plays, occasionally losing the ball and starting over.
//
// The agent only supplies callbacks; the same behaviour is available as a
// hand-built tree, as a goal-directed plan and through a treefile Registry.
package ballfetch

import (
	"log/slog"
	"math/rand/v2"

	"github.com/joeycumines/reactree/internal/blackboard"
	"github.com/joeycumines/reactree/internal/planner"
	"github.com/joeycumines/reactree/internal/tree"
	"github.com/joeycumines/reactree/internal/treefile"
)

// Blackboard keys.
const (
	HasBall = "HAS_BALL"
	AtWall  = "AT_WALL"
)

// DefaultLoseChance is the probability of losing the ball on each play.
const DefaultLoseChance = 0.3

// Option configures an Agent.
type Option func(*Agent)

// WithRand replaces the random source. fn must return values in [0, 1).
func WithRand(fn func() float64) Option {
	return func(a *Agent) { a.rand = fn }
}

// WithLoseChance sets the probability of losing the ball while playing.
func WithLoseChance(p float64) Option {
	return func(a *Agent) { a.loseChance = p }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// Agent holds the demo callbacks.
type Agent struct {
	rand       func() float64
	loseChance float64
	logger     *slog.Logger
}

func New(opts ...Option) *Agent {
	a := &Agent{
		rand:       rand.Float64,
		loseChance: DefaultLoseChance,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// InitialState is the starting blackboard: no ball, away from the wall.
func InitialState() map[string]any {
	return map[string]any{
		HasBall: false,
		AtWall:  false,
	}
}

func (a *Agent) HasBall(bb *blackboard.Blackboard) (bool, error) {
	return bb.Get(HasBall) == true, nil
}

func (a *Agent) AtWall(bb *blackboard.Blackboard) (bool, error) {
	return bb.Get(AtWall) == true, nil
}

// GetBall picks up the ball, which always means leaving the wall.
func (a *Agent) GetBall(bb *blackboard.Blackboard) (bool, error) {
	a.logger.Info("getting ball")
	bb.SetAll(map[string]any{
		HasBall: true,
		AtWall:  false,
	})
	return true, nil
}

func (a *Agent) MoveToWall(bb *blackboard.Blackboard) (bool, error) {
	a.logger.Info("moving to wall")
	bb.Set(AtWall, true)
	return true, nil
}

// Play always succeeds, but may lose the ball.
func (a *Agent) Play(bb *blackboard.Blackboard) (bool, error) {
	a.logger.Info("playing")
	if a.rand() < a.loseChance {
		a.logger.Info("lost ball")
		bb.Set(HasBall, false)
	}
	return true, nil
}

// Tree builds the demo as a single top-level sequence:
//
//	ballfetch: sequence
//	  ensureBall: fallback(hasBall, getBall)
//	  ensureWall: fallback(atWall, moveToWall)
//	  play
func (a *Agent) Tree(bb *blackboard.Blackboard) *tree.Sequence {
	b := tree.NewBuilder(bb)
	return b.Sequence(
		b.Fallback(
			b.Condition(a.HasBall, tree.WithName("hasBall")),
			b.Action(a.GetBall, tree.WithName("getBall")),
		).Named("ensureBall"),
		b.Fallback(
			b.Condition(a.AtWall, tree.WithName("atWall")),
			b.Action(a.MoveToWall, tree.WithName("moveToWall")),
		).Named("ensureWall"),
		b.Action(a.Play, tree.WithName("play")),
	).Named("ballfetch")
}

// PlannedTree builds the same behaviour with the ball and wall subtrees
// replaced by a plan for the goal HAS_BALL && AT_WALL. Moving to the wall is
// declared to need the ball, so the planner fetches it first.
func (a *Agent) PlannedTree(bb *blackboard.Blackboard) (*tree.Sequence, error) {
	b := tree.NewBuilder(bb)
	state := planner.NewState(bb)
	err := state.Register(
		planner.NewAction("getBall", b.Action(a.GetBall, tree.WithName("getBall"))).
			Sets(HasBall, true),
		planner.NewAction("moveToWall", b.Action(a.MoveToWall, tree.WithName("moveToWall"))).
			Requires(planner.Equals(HasBall, true)).
			Sets(AtWall, true),
	)
	if err != nil {
		return nil, err
	}
	plan, err := planner.New(state,
		planner.Goal(planner.Equals(HasBall, true), planner.Equals(AtWall, true)),
		tree.WithName("fetch"))
	if err != nil {
		return nil, err
	}
	return b.Sequence(plan, b.Action(a.Play, tree.WithName("play"))).Named("ballfetch"), nil
}

// Register exposes the callbacks to tree files as the conditions hasBall
// and atWall and the actions getBall, moveToWall and play.
func (a *Agent) Register(reg *treefile.Registry) *treefile.Registry {
	return reg.
		Condition("hasBall", a.HasBall).
		Condition("atWall", a.AtWall).
		Action("getBall", a.GetBall).
		Action("moveToWall", a.MoveToWall).
		Action("play", a.Play)
}

package scheduler

import (
	"log/slog"
	"time"

	"github.com/joeycumines/reactree/internal/tree"
)

// Result is the outcome of ticking one top-level child.
type Result struct {
	Node    string
	Outcome bool
	Status  tree.Status
	Err     error
}

// TickReport describes one completed pass over the top-level children.
type TickReport struct {
	// Index increases by one for every tick, starting at 1.
	Index   uint64
	Start   time.Time
	Elapsed time.Duration
	Period  time.Duration
	Results []Result
}

// Overran reports whether the tick exceeded its period.
func (r TickReport) Overran() bool {
	return r.Elapsed > r.Period
}

// Overrun reports a tick that exceeded its period. The loop continues
// without sleeping.
type Overrun struct {
	Tick    uint64
	Elapsed time.Duration
	Period  time.Duration
}

// Fault reports a callback fault surfaced by a top-level child.
type Fault struct {
	Tick  uint64
	Child int
	Node  string
	Err   error
}

// Observer receives scheduler notifications. All methods are called on the
// scheduler goroutine and must not block.
type Observer interface {
	OnTick(TickReport)
	OnOverrun(Overrun)
	OnFault(Fault)
}

// Observers fans notifications out to each element in order.
type Observers []Observer

func (o Observers) OnTick(r TickReport) {
	for _, v := range o {
		v.OnTick(r)
	}
}

func (o Observers) OnOverrun(r Overrun) {
	for _, v := range o {
		v.OnOverrun(r)
	}
}

func (o Observers) OnFault(f Fault) {
	for _, v := range o {
		v.OnFault(f)
	}
}

// ObserverFuncs adapts optional functions into an Observer.
type ObserverFuncs struct {
	Tick    func(TickReport)
	Overrun func(Overrun)
	Fault   func(Fault)
}

func (o ObserverFuncs) OnTick(r TickReport) {
	if o.Tick != nil {
		o.Tick(r)
	}
}

func (o ObserverFuncs) OnOverrun(r Overrun) {
	if o.Overrun != nil {
		o.Overrun(r)
	}
}

func (o ObserverFuncs) OnFault(f Fault) {
	if o.Fault != nil {
		o.Fault(f)
	}
}

// LogObserver writes notifications to a structured logger: ticks at debug,
// overruns at warn and faults at error.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) OnTick(r TickReport) {
	o.Logger.Debug("tick",
		"tick", r.Index,
		"elapsed", r.Elapsed,
		"period", r.Period)
}

func (o LogObserver) OnOverrun(r Overrun) {
	o.Logger.Warn("tick overran its period",
		"tick", r.Tick,
		"elapsed", r.Elapsed,
		"period", r.Period,
		"over", r.Elapsed-r.Period)
}

func (o LogObserver) OnFault(f Fault) {
	o.Logger.Error("callback fault",
		"tick", f.Tick,
		"child", f.Child,
		"node", f.Node,
		"error", f.Err)
}

package script

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/joeycumines/reactree/internal/blackboard"
	"github.com/joeycumines/reactree/internal/tree"
)

// eventLoop starts the loop on first use. It returns nil once the engine
// is closed.
func (e *Engine) eventLoop() *eventloop.EventLoop {
	e.loopOnce.Do(func() {
		if e.closed.Load() {
			return
		}
		e.loop = eventloop.NewEventLoop(eventloop.WithRegistry(e.registry))
		e.loop.Start()
		e.loop.RunOnLoop(e.install)
	})
	return e.loop
}

// AsyncWork compiles src into work that runs on the engine's event loop.
// The outcome is the truthiness of the completion value or, if that is a
// promise, of its resolved value. A rejection is a fault wrapping
// ErrRejected. A script still running when ctx ends is interrupted with
// ErrCancelled, freeing the loop for other work.
func (e *Engine) AsyncWork(name, src string) (tree.AsyncWork, error) {
	program, err := Compile(name, src)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, _ *blackboard.Blackboard, done tree.Done) {
		loop := e.eventLoop()
		if e.closed.Load() || loop == nil || !loop.RunOnLoop(func(vm *goja.Runtime) {
			e.settle(ctx, vm, program, done)
		}) {
			done(false, ErrClosed)
		}
	}, nil
}

// AsyncAction returns an async action leaf running src. The default name
// is "script".
func (e *Engine) AsyncAction(src string, opts ...tree.Option) (*tree.Action, error) {
	start, err := e.AsyncWork("action", src)
	if err != nil {
		return nil, err
	}
	return tree.NewAsyncAction(e.bb, start, append([]tree.Option{tree.WithName("script")}, opts...)...), nil
}

func (e *Engine) settle(ctx context.Context, vm *goja.Runtime, program *goja.Program, done tree.Done) {
	if ctx.Err() != nil {
		done(false, ErrCancelled)
		return
	}
	v, err := e.runProgram(ctx, vm, program)
	if err != nil {
		done(false, err)
		return
	}
	if obj, ok := v.(*goja.Object); ok {
		if then, ok := goja.AssertFunction(obj.Get("then")); ok {
			_, err := then(obj,
				vm.ToValue(func(result goja.Value) { done(truthy(result), nil) }),
				vm.ToValue(func(reason goja.Value) { done(false, fmt.Errorf("%w: %s", ErrRejected, reason)) }),
			)
			if err != nil {
				done(false, err)
			}
			return
		}
	}
	done(truthy(v), nil)
}

// Close stops the event loop, if it was started. Pending async work is
// abandoned; work started afterwards fails with ErrClosed.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.loopOnce.Do(func() {})
	if e.loop != nil {
		e.loop.Stop()
	}
	return nil
}

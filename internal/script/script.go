// Package script provides condition and action leaves written in
// JavaScript, evaluated with goja.
//
// Scripts run synchronously on the ticking goroutine. The completion value
// of a script is its outcome, converted with JavaScript truthiness; a
// thrown exception is a callback fault. Each Engine owns one runtime and
// exposes its blackboard as the global "blackboard":
//
//	blackboard.get("key")
//	blackboard.set("key", value)
//	blackboard.has("key")
//	blackboard.delete("key")
//	blackboard.keys()
//	blackboard.len()
//
// and a logger as the global "log" with debug, info, warn and error
// methods taking a message followed by key/value pairs.
//
// The same objects are available as CommonJS modules, so scripts may write
//
//	const bb = require("reactree:blackboard");
//
// Additional native modules are registered with WithModule. Loading modules
// from the filesystem is disabled.
//
// JavaScript integers read back from the blackboard are int64, other
// numbers float64.
//
// Async actions run on a separate event loop owned by the engine, started
// on first use and stopped by Close. Their completion value may be a
// promise; the action stays Busy until it settles.
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/reactree/internal/blackboard"
	"github.com/joeycumines/reactree/internal/tree"
)

var (
	// ErrTimeout is the interrupt value of a script stopped by the engine
	// timeout.
	ErrTimeout = errors.New("script: timeout")
	// ErrRejected wraps the reason of a rejected promise.
	ErrRejected = errors.New("script: promise rejected")
	// ErrClosed is reported by async work started after Close.
	ErrClosed = errors.New("script: engine closed")
	// ErrCancelled is the interrupt value of async work whose context ended
	// while its script was running.
	ErrCancelled = errors.New("script: cancelled")
)

// ModulePrefix prefixes the names of the built-in native modules.
const ModulePrefix = "reactree:"

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger behind the "log" global.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithTimeout interrupts any single script evaluation running longer than
// d. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithModule registers a native module that scripts load with require.
func WithModule(name string, loader require.ModuleLoader) Option {
	return func(e *Engine) { e.modules[name] = loader }
}

// Engine evaluates scripts against one blackboard.
type Engine struct {
	bb      *blackboard.Blackboard
	logger  *slog.Logger
	timeout time.Duration
	modules map[string]require.ModuleLoader

	registry *require.Registry

	mu sync.Mutex
	vm *goja.Runtime

	loopOnce sync.Once
	loop     *eventloop.EventLoop
	closed   atomic.Bool
}

// New returns an engine bound to bb.
func New(bb *blackboard.Blackboard, opts ...Option) *Engine {
	e := &Engine{
		bb:      bb,
		logger:  slog.Default(),
		vm:      goja.New(),
		modules: make(map[string]require.ModuleLoader),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.registry = require.NewRegistry(require.WithLoader(func(path string) ([]byte, error) {
		return nil, require.ModuleFileDoesNotExistError
	}))
	e.registry.RegisterNativeModule(ModulePrefix+"blackboard", func(vm *goja.Runtime, module *goja.Object) {
		_ = module.Set("exports", e.exposeBlackboard(vm))
	})
	e.registry.RegisterNativeModule(ModulePrefix+"log", func(vm *goja.Runtime, module *goja.Object) {
		_ = module.Set("exports", e.exposeLogger(vm))
	})
	for name, loader := range e.modules {
		e.registry.RegisterNativeModule(name, loader)
	}

	e.install(e.vm)
	e.registry.Enable(e.vm)
	return e
}

func (e *Engine) Blackboard() *blackboard.Blackboard { return e.bb }

func (e *Engine) install(vm *goja.Runtime) {
	_ = vm.Set("blackboard", e.exposeBlackboard(vm))
	_ = vm.Set("log", e.exposeLogger(vm))
}

func (e *Engine) exposeBlackboard(vm *goja.Runtime) *goja.Object {
	obj := vm.NewObject()
	_ = obj.Set("get", e.bb.Get)
	_ = obj.Set("set", e.bb.Set)
	_ = obj.Set("has", e.bb.Has)
	_ = obj.Set("delete", e.bb.Delete)
	_ = obj.Set("keys", e.bb.Keys)
	_ = obj.Set("len", e.bb.Len)
	return obj
}

func (e *Engine) exposeLogger(vm *goja.Runtime) *goja.Object {
	obj := vm.NewObject()
	_ = obj.Set("debug", func(msg string, args ...any) { e.logger.Debug(msg, args...) })
	_ = obj.Set("info", func(msg string, args ...any) { e.logger.Info(msg, args...) })
	_ = obj.Set("warn", func(msg string, args ...any) { e.logger.Warn(msg, args...) })
	_ = obj.Set("error", func(msg string, args ...any) { e.logger.Error(msg, args...) })
	return obj
}

// Compile parses src. Syntax errors are reported here, never at tick time.
func Compile(name, src string) (*goja.Program, error) {
	if src == "" {
		return nil, fmt.Errorf("script %q: empty source", name)
	}
	program, err := goja.Compile(name, src, true)
	if err != nil {
		return nil, fmt.Errorf("script %q: %w", name, err)
	}
	return program, nil
}

// Run evaluates program and returns the truthiness of its completion
// value.
func (e *Engine) Run(program *goja.Program) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.runProgram(context.Background(), e.vm, program)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

// runProgram runs program on vm, interrupting it on timeout or once ctx is
// done.
func (e *Engine) runProgram(ctx context.Context, vm *goja.Runtime, program *goja.Program) (goja.Value, error) {
	if ctx.Done() != nil {
		fired := make(chan struct{})
		stop := context.AfterFunc(ctx, func() {
			defer close(fired)
			vm.Interrupt(ErrCancelled)
		})
		defer func() {
			if !stop() {
				<-fired
			}
			vm.ClearInterrupt()
		}()
	}
	if e.timeout > 0 {
		timer := time.AfterFunc(e.timeout, func() { vm.Interrupt(ErrTimeout) })
		defer func() {
			timer.Stop()
			vm.ClearInterrupt()
		}()
	}
	return vm.RunProgram(program)
}

func truthy(v goja.Value) bool {
	return v != nil && v.ToBoolean()
}

// Predicate compiles src into a condition predicate.
func (e *Engine) Predicate(name, src string) (tree.Predicate, error) {
	program, err := Compile(name, src)
	if err != nil {
		return nil, err
	}
	return func(*blackboard.Blackboard) (bool, error) { return e.Run(program) }, nil
}

// Work compiles src into synchronous action work.
func (e *Engine) Work(name, src string) (tree.Work, error) {
	program, err := Compile(name, src)
	if err != nil {
		return nil, err
	}
	return func(*blackboard.Blackboard) (bool, error) { return e.Run(program) }, nil
}

// Condition returns a condition leaf evaluating src. The default name is
// "script".
func (e *Engine) Condition(src string, opts ...tree.Option) (*tree.Condition, error) {
	pred, err := e.Predicate("condition", src)
	if err != nil {
		return nil, err
	}
	return tree.NewCondition(e.bb, pred, append([]tree.Option{tree.WithName("script")}, opts...)...), nil
}

// Action returns a synchronous action leaf running src. The default name
// is "script".
func (e *Engine) Action(src string, opts ...tree.Option) (*tree.Action, error) {
	work, err := e.Work("action", src)
	if err != nil {
		return nil, err
	}
	return tree.NewAction(e.bb, work, append([]tree.Option{tree.WithName("script")}, opts...)...), nil
}

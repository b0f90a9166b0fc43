package tree

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/joeycumines/reactree/internal/blackboard"
)

// DefaultExprCacheSize bounds the number of compiled expressions kept by the
// package-level cache.
const DefaultExprCacheSize = 256

var exprCache = newProgramCache(DefaultExprCacheSize)

// CompileExpr compiles a boolean expr-lang expression whose identifiers are
// blackboard keys. Unknown keys evaluate to nil. Compiled programs are
// cached by source text.
//
// Examples:
//
//	HAS_BALL == true
//	battery > 20 && !charging
//	target != nil
func CompileExpr(expression string) (*vm.Program, error) {
	if expression == "" {
		return nil, fmt.Errorf("empty expression")
	}
	if program, ok := exprCache.get(expression); ok {
		return program, nil
	}
	program, err := expr.Compile(expression,
		expr.Env(map[string]any{}),
		expr.AsBool(),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}
	exprCache.put(expression, program)
	return program, nil
}

// ExprPredicate returns a Predicate running program against a snapshot of
// the blackboard.
func ExprPredicate(program *vm.Program) Predicate {
	return func(bb *blackboard.Blackboard) (bool, error) {
		out, err := expr.Run(program, bb.Snapshot())
		if err != nil {
			return false, err
		}
		b, ok := out.(bool)
		if !ok {
			return false, fmt.Errorf("expression returned non-boolean result: %T", out)
		}
		return b, nil
	}
}

// NewExprCondition compiles expression and returns a Condition evaluating
// it. Compilation errors are returned here, never at tick time. The default
// node name is the expression itself.
func NewExprCondition(bb *blackboard.Blackboard, expression string, opts ...Option) (*Condition, error) {
	program, err := CompileExpr(expression)
	if err != nil {
		return nil, err
	}
	return NewCondition(bb, ExprPredicate(program), append([]Option{WithName(expression)}, opts...)...), nil
}

// programCache is a thread-safe LRU cache of compiled programs.
type programCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
	maxSize int
}

type cacheEntry struct {
	expression string
	program    *vm.Program
}

func newProgramCache(maxSize int) *programCache {
	if maxSize < 1 {
		maxSize = DefaultExprCacheSize
	}
	return &programCache{
		entries: make(map[string]*list.Element, maxSize),
		lru:     list.New(),
		maxSize: maxSize,
	}
}

func (c *programCache) get(expression string) (*vm.Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[expression]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return elem.Value.(*cacheEntry).program, true
}

func (c *programCache) put(expression string, program *vm.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[expression]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).program = program
		return
	}
	c.entries[expression] = c.lru.PushFront(&cacheEntry{expression: expression, program: program})
	for c.lru.Len() > c.maxSize {
		oldest := c.lru.Back()
		delete(c.entries, oldest.Value.(*cacheEntry).expression)
		c.lru.Remove(oldest)
	}
}

func (c *programCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

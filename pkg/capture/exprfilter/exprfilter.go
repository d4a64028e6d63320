// Package exprfilter evaluates expr-lang predicates against trace records,
// powering the --where flag and the inspect API's where parameter.
//
// Expressions see a flat environment per record:
//
//	method      string  (e.g. "GET")
//	url         string
//	status      int     (0 when no response arrived)
//	duration_ms int     (-1 while unsettled, never observed in practice)
//	has_error   bool
//	error       string
//	transport   string  ("http", "eventhttp", "grpc")
//
// Example: `method == "POST" && status >= 500 && !has_error`.
package exprfilter

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/gettapd/tapd/pkg/tracelog"
)

// Engine compiles and caches record predicates. The zero value is not
// usable; construct with NewEngine. Safe for concurrent use.
type Engine struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewEngine creates an empty predicate engine.
func NewEngine() *Engine {
	return &Engine{cache: make(map[string]*vm.Program)}
}

// Compile validates an expression without evaluating it, warming the cache.
func (e *Engine) Compile(expression string) error {
	_, err := e.program(expression)
	return err
}

// Match evaluates the expression against one record.
func (e *Engine) Match(expression string, rec *tracelog.Record) (bool, error) {
	program, err := e.program(expression)
	if err != nil {
		return false, err
	}

	result, err := expr.Run(program, recordEnv(rec))
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", expression, err)
	}
	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("eval %q: result is %T, not bool", expression, result)
	}
	return matched, nil
}

// Select returns the records matching the expression, preserving input
// order. An empty expression selects everything.
func (e *Engine) Select(expression string, records []*tracelog.Record) ([]*tracelog.Record, error) {
	if expression == "" {
		return records, nil
	}
	if err := e.Compile(expression); err != nil {
		return nil, err
	}

	out := make([]*tracelog.Record, 0, len(records))
	for _, rec := range records {
		matched, err := e.Match(expression, rec)
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (e *Engine) program(expression string) (*vm.Program, error) {
	e.mu.RLock()
	if program, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return program, nil
	}
	e.mu.RUnlock()

	program, err := expr.Compile(expression, expr.Env(recordEnv(nil)), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}

	e.mu.Lock()
	// Double-check in case another goroutine compiled the same expression.
	if existing, ok := e.cache[expression]; ok {
		e.mu.Unlock()
		return existing, nil
	}
	e.cache[expression] = program
	e.mu.Unlock()

	return program, nil
}

// recordEnv flattens a record into the expression environment. A nil record
// produces the empty env used for compile-time type checking.
func recordEnv(rec *tracelog.Record) map[string]any {
	env := map[string]any{
		"method":      "",
		"url":         "",
		"status":      0,
		"duration_ms": 0,
		"has_error":   false,
		"error":       "",
		"transport":   "",
	}
	if rec == nil {
		return env
	}
	env["method"] = rec.Method
	env["url"] = rec.URL
	env["status"] = rec.ResponseStatus
	env["duration_ms"] = int(rec.DurationMs)
	env["has_error"] = rec.Error != ""
	env["error"] = rec.Error
	env["transport"] = rec.Transport
	return env
}

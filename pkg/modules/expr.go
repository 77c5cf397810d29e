package modules

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Evaluator compiles and caches readiness expressions. Answers are exposed
// both as top-level variables and under "answers".
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewEvaluator returns an empty evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{cache: make(map[string]*vm.Program)}
}

// Compile checks an expression without running it.
func (e *Evaluator) Compile(expression string) error {
	_, err := e.program(expression)
	return err
}

// Holds evaluates expression over answers. A non-boolean result counts as false.
func (e *Evaluator) Holds(expression string, answers map[string]any) (bool, error) {
	prg, err := e.program(expression)
	if err != nil {
		return false, err
	}

	env := make(map[string]any, len(answers)+1)
	for k, v := range answers {
		env[k] = v
	}
	env["answers"] = answers

	out, err := vm.Run(prg, env)
	if err != nil {
		return false, fmt.Errorf("evaluating %q: %w", expression, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

func (e *Evaluator) program(expression string) (*vm.Program, error) {
	e.mu.RLock()
	prg, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, ok := e.cache[expression]; ok {
		return prg, nil
	}

	prg, err := expr.Compile(expression,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("compiling %q: %w", expression, err)
	}
	e.cache[expression] = prg
	return prg, nil
}

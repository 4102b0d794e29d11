// Package exprleaf provides condition leaves written as expr-lang
// expressions over the blackboard, evaluated natively in Go.
//
// Blackboard keys are top-level variables, with values from inner scopes
// shadowing outer ones:
//
//	battery > 20 && !docked
//	mode == "patrol" ? "RUNNING" : "SUCCESS"
//
// A boolean result maps to Success or Failure, a string is a status name and
// an integer is a status code. Every variable an expression reads must be
// present on the blackboard when it is evaluated; a missing one fails the
// leaf with an error wrapping bt.ErrKeyNotFound.
package exprleaf

import (
	"errors"
	"fmt"
	"slices"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"

	"github.com/joeycumines/bte/internal/bt"
	"github.com/joeycumines/bte/internal/factory"
)

// ErrEmptyExpression is returned when compiling an empty expression.
var ErrEmptyExpression = errors.New("exprleaf: empty expression")

// Compile compiles expression once and returns a leaf callable evaluating it
// against the flattened blackboard on every tick.
func Compile(expression string) (bt.LeafFunc, error) {
	program, err := compile(expression)
	if err != nil {
		return nil, err
	}
	vars := Variables(program)
	return func(bb *bt.Blackboard) (bt.Result, error) {
		for _, key := range vars {
			if !bb.Has(key) {
				return bt.Result{}, fmt.Errorf("exprleaf: evaluate %q: %w: %q", expression, bt.ErrKeyNotFound, key)
			}
		}
		out, err := expr.Run(program, bb.Flatten())
		if err != nil {
			return bt.Result{}, fmt.Errorf("exprleaf: evaluate %q: %w", expression, err)
		}
		return bt.Of(out), nil
	}, nil
}

// Register compiles expression and registers it with f as a condition.
func Register(f *factory.Factory, name, expression string) error {
	fn, err := Compile(expression)
	if err != nil {
		return fmt.Errorf("exprleaf: condition %q: %w", name, err)
	}
	return f.RegisterSimpleCondition(name, fn)
}

func compile(expression string) (*vm.Program, error) {
	if expression == "" {
		return nil, ErrEmptyExpression
	}
	program, err := expr.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("exprleaf: compile %q: %w", expression, err)
	}
	return program, nil
}

// Variables returns the sorted names of the free variables program reads,
// excluding function names and let bindings.
func Variables(program *vm.Program) []string {
	node := program.Node()
	v := &variableCollector{
		idents: make(map[string]struct{}),
		bound:  make(map[string]struct{}),
	}
	ast.Walk(&node, v)
	names := make([]string, 0, len(v.idents))
	for name := range v.idents {
		if _, ok := v.bound[name]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

type variableCollector struct {
	idents map[string]struct{}
	bound  map[string]struct{}
}

func (v *variableCollector) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		if n.Value != "$env" {
			v.idents[n.Value] = struct{}{}
		}
	case *ast.CallNode:
		if callee, ok := n.Callee.(*ast.IdentifierNode); ok {
			v.bound[callee.Value] = struct{}{}
		}
	case *ast.VariableDeclaratorNode:
		v.bound[n.Name] = struct{}{}
	}
}

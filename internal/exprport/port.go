package exprport

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/formflow/internal/evalctx"
	"github.com/zclconf/go-cty/cty"
)

// Port evaluates user-authored source text against an evaluation context
// and lists the free variables of a piece of source without evaluating it.
type Port interface {
	// EvaluateExpr evaluates an expression (condition syntax) and returns
	// its typed value.
	EvaluateExpr(ctx context.Context, src string, scope *evalctx.Context) (cty.Value, error)
	// EvaluateTemplate evaluates a template ("text ${var} text") and
	// returns its typed value. A template consisting of a single
	// interpolation keeps the interpolated value's native type.
	EvaluateTemplate(ctx context.Context, src string, scope *evalctx.Context) (cty.Value, error)
	// ExprVariables lists the free variable names of an expression.
	ExprVariables(src string) ([]string, error)
	// TemplateVariables lists the free variable names of a template.
	TemplateVariables(src string) ([]string, error)
}

// EvalError is the recoverable failure mode of the Port: a parse error,
// an undefined variable, or a type mismatch. Callers degrade to a safe
// default (hidden / empty) instead of aborting the request.
type EvalError struct {
	Source string
	Detail string
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	return fmt.Sprintf("expression error in %q: %s", e.Source, e.Detail)
}

// ErrUnresolved marks a field whose expressions were poisoned by a
// schema-level cycle; it resolves to its safe default forever.
var ErrUnresolved = errors.New("expression permanently unresolved")

// IsEvalError reports whether err is a recoverable expression failure.
func IsEvalError(err error) bool {
	var ee *EvalError
	return errors.As(err, &ee)
}

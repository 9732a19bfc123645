package exprport

import (
	"context"
	"sync"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/formflow/internal/evalctx"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// HCL is the default Port implementation, backed by hclsyntax. Parsed
// expressions are memoized per source string; the cache is owned by the
// instance, never process-global.
type HCL struct {
	templates sync.Map // source string -> parseResult
	exprs     sync.Map // source string -> parseResult
	funcs     map[string]function.Function
}

type parseResult struct {
	expr hcl.Expression
	err  error
}

// NewHCL creates a Port with the engine's function table.
func NewHCL() *HCL {
	return &HCL{
		funcs: map[string]function.Function{
			"upper":   stdlib.UpperFunc,
			"lower":   stdlib.LowerFunc,
			"format":  stdlib.FormatFunc,
			"length":  stdlib.LengthFunc,
			"sum":     sumFunc,
			"getlist": getlistFunc,
		},
	}
}

// EvaluateExpr implements Port.
func (h *HCL) EvaluateExpr(ctx context.Context, src string, scope *evalctx.Context) (cty.Value, error) {
	expr, err := h.parseExpr(src)
	if err != nil {
		return cty.NilVal, err
	}
	return h.evaluate(expr, src, scope)
}

// EvaluateTemplate implements Port.
func (h *HCL) EvaluateTemplate(ctx context.Context, src string, scope *evalctx.Context) (cty.Value, error) {
	expr, err := h.parseTemplate(src)
	if err != nil {
		return cty.NilVal, err
	}
	return h.evaluate(expr, src, scope)
}

// ExprVariables implements Port.
func (h *HCL) ExprVariables(src string) ([]string, error) {
	expr, err := h.parseExpr(src)
	if err != nil {
		return nil, err
	}
	return rootNames(expr), nil
}

// TemplateVariables implements Port.
func (h *HCL) TemplateVariables(src string) ([]string, error) {
	expr, err := h.parseTemplate(src)
	if err != nil {
		return nil, err
	}
	return rootNames(expr), nil
}

func (h *HCL) evaluate(expr hcl.Expression, src string, scope *evalctx.Context) (cty.Value, error) {
	ectx := &hcl.EvalContext{
		Variables: scope.Variables(),
		Functions: h.funcs,
	}
	v, diags := expr.Value(ectx)
	if diags.HasErrors() {
		return cty.NilVal, &EvalError{Source: src, Detail: diags.Error()}
	}
	if !v.IsWhollyKnown() {
		return cty.NilVal, &EvalError{Source: src, Detail: "result is not fully known"}
	}
	return v, nil
}

func (h *HCL) parseExpr(src string) (hcl.Expression, error) {
	if cached, ok := h.exprs.Load(src); ok {
		res := cached.(parseResult)
		return res.expr, res.err
	}
	expr, diags := hclsyntax.ParseExpression([]byte(src), "condition", hcl.InitialPos)
	res := parseResult{expr: expr}
	if diags.HasErrors() {
		res = parseResult{err: &EvalError{Source: src, Detail: diags.Error()}}
	}
	h.exprs.Store(src, res)
	return res.expr, res.err
}

func (h *HCL) parseTemplate(src string) (hcl.Expression, error) {
	if cached, ok := h.templates.Load(src); ok {
		res := cached.(parseResult)
		return res.expr, res.err
	}
	expr, diags := hclsyntax.ParseTemplate([]byte(src), "template", hcl.InitialPos)
	res := parseResult{expr: expr}
	if diags.HasErrors() {
		res = parseResult{err: &EvalError{Source: src, Detail: diags.Error()}}
	}
	h.templates.Store(src, res)
	return res.expr, res.err
}

// rootNames extracts deduplicated root variable names, in source order.
func rootNames(expr hcl.Expression) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, traversal := range expr.Variables() {
		name := traversal.RootName()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

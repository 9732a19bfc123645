// Package resolver implements the per-field resolvers driven by the
// cascade: visibility conditions and prefilled content. Both are pure
// functions of (field, context, prior state); they keep no state of
// their own between calls.
package resolver

import (
	"context"

	"github.com/vk/formflow/internal/ctxlog"
	"github.com/vk/formflow/internal/evalctx"
	"github.com/vk/formflow/internal/exprport"
	"github.com/vk/formflow/internal/schema"
)

// Visibility resolves a field's condition to a boolean.
type Visibility struct {
	Port exprport.Port
}

// Resolve evaluates the field's condition against the current context.
// No condition means visible. A falsy, erroring, or undefined-variable
// result means hidden; the error is returned alongside so the caller can
// record it, but it never escalates.
func (v *Visibility) Resolve(ctx context.Context, f *schema.Field, scope *evalctx.Context) (bool, error) {
	if f.Condition == "" {
		return true, nil
	}
	val, err := v.Port.EvaluateExpr(ctx, f.Condition, scope)
	if err != nil {
		ctxlog.FromContext(ctx).Debug("Condition evaluation failed, hiding field.",
			"field", f.ID, "error", err)
		return false, err
	}
	return exprport.Truthy(val), nil
}

package resolver

import (
	"context"

	"github.com/vk/formflow/internal/evalctx"
	"github.com/vk/formflow/internal/exprport"
	"github.com/vk/formflow/internal/schema"
	"github.com/vk/formflow/internal/state"
	"github.com/zclconf/go-cty/cty"
)

// Prefill computes a field's auto-filled content.
type Prefill struct {
	Port exprport.Port
}

// Resolve returns (value, computed, err). computed is false when the
// field has no prefill or the rules below suppress recomputation; in
// that case value carries the retained prior value, if any.
//
// Priority order:
//  1. no prefill configured: nothing to do.
//  2. locked: always recompute; the computed value wins over user edits.
//  3. freeze-once with a prior value: keep the prior value, do not
//     re-run the expression (re-entering a draft must not change a
//     committed answer computed from a volatile source).
//  4. otherwise recompute only while the user has never edited the field.
func (p *Prefill) Resolve(ctx context.Context, f *schema.Field, scope *evalctx.Context, prior *state.FieldState) (cty.Value, bool, error) {
	if !f.Prefillable() {
		return cty.NilVal, false, nil
	}
	spec := f.Prefill

	if !spec.Locked {
		if spec.FreezeOnce && prior.HasValue() {
			return prior.Value, false, nil
		}
		if !spec.FreezeOnce && prior.UserEdited {
			return cty.NilVal, false, nil
		}
	}

	val, err := p.Port.EvaluateTemplate(ctx, spec.Expr, scope)
	if err != nil {
		return cty.NilVal, false, err
	}
	return val, true, nil
}

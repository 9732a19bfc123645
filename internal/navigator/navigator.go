package navigator

import (
	"context"
	"fmt"

	"github.com/vk/formflow/internal/ctxlog"
	"github.com/vk/formflow/internal/evalctx"
	"github.com/vk/formflow/internal/exprport"
	"github.com/vk/formflow/internal/instance"
	"github.com/vk/formflow/internal/schema"
	"github.com/vk/formflow/internal/state"
	"github.com/zclconf/go-cty/cty"
)

// Outcome is the result of one validation pass over a page.
type Outcome struct {
	Advance     bool              `json:"advance"`
	FieldErrors map[string]string `json:"field_errors,omitzero"`
	PageErrors  []string          `json:"page_errors,omitzero"`
}

// Navigator validates page turns against the resolved field states.
type Navigator struct {
	Port exprport.Port
}

// New creates a navigator over the given expression port.
func New(port exprport.Port) *Navigator {
	return &Navigator{Port: port}
}

// Forward validates the page at pageIndex for forward navigation.
// Validation needs the states the engine resolved for the current
// values plus the scope those values were evaluated in; rowCounts maps
// block field ids to their current row counts.
func (n *Navigator) Forward(ctx context.Context, def *schema.FormDefinition, pageIndex int, states *state.Set, scope *evalctx.Context, rowCounts map[string]int) Outcome {
	if pageIndex < 0 || pageIndex >= len(def.Pages) {
		return Outcome{Advance: false, PageErrors: []string{fmt.Sprintf("no page at index %d", pageIndex)}}
	}
	return n.checkPage(ctx, def, def.Pages[pageIndex], states, scope, rowCounts)
}

// Backward returns the previous visible page index. No validation is
// performed when navigating back.
func (n *Navigator) Backward(ctx context.Context, def *schema.FormDefinition, pageIndex int, scope *evalctx.Context) int {
	for i := pageIndex - 1; i >= 0; i-- {
		if n.pageVisible(ctx, def.Pages[i], scope) {
			return i
		}
	}
	return 0
}

// NextVisible returns the index of the next visible page after
// pageIndex, or -1 when the current page is the last one.
func (n *Navigator) NextVisible(ctx context.Context, def *schema.FormDefinition, pageIndex int, scope *evalctx.Context) int {
	for i := pageIndex + 1; i < len(def.Pages); i++ {
		if n.pageVisible(ctx, def.Pages[i], scope) {
			return i
		}
	}
	return -1
}

// Submit re-validates every visible page. It is idempotent: running it
// twice over the same states yields the same outcome, which lets the
// host guard against duplicate concurrent submissions with an external
// at-most-once commit.
func (n *Navigator) Submit(ctx context.Context, def *schema.FormDefinition, states *state.Set, scope *evalctx.Context, rowCounts map[string]int) Outcome {
	combined := Outcome{Advance: true}
	for _, page := range def.Pages {
		if !n.pageVisible(ctx, page, scope) {
			continue
		}
		out := n.checkPage(ctx, def, page, states, scope, rowCounts)
		if !out.Advance {
			combined.Advance = false
		}
		for id, msg := range out.FieldErrors {
			if combined.FieldErrors == nil {
				combined.FieldErrors = map[string]string{}
			}
			combined.FieldErrors[id] = msg
		}
		combined.PageErrors = append(combined.PageErrors, out.PageErrors...)
	}
	return combined
}

func (n *Navigator) pageVisible(ctx context.Context, page *schema.Page, scope *evalctx.Context) bool {
	if page.Condition == "" {
		return true
	}
	v, err := n.Port.EvaluateExpr(ctx, page.Condition, scope)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Page condition failed to evaluate, hiding page.",
			"page", page.ID, "error", err)
		return false
	}
	return exprport.Truthy(v)
}

func (n *Navigator) checkPage(ctx context.Context, def *schema.FormDefinition, page *schema.Page, states *state.Set, scope *evalctx.Context, rowCounts map[string]int) Outcome {
	out := Outcome{Advance: true}

	for _, f := range page.Fields {
		if f.Kind == schema.KindBlock {
			blk := def.BlockFor(f)
			if blk == nil {
				continue
			}
			for row := 0; row < rowCounts[f.ID]; row++ {
				for _, sub := range blk.Fields {
					id := instance.InRow(f.ID, sub.ID, row)
					if msg, ok := n.checkRequired(sub, states, id); !ok {
						out.Advance = false
						if out.FieldErrors == nil {
							out.FieldErrors = map[string]string{}
						}
						out.FieldErrors[id.String()] = msg
					}
				}
			}
			continue
		}
		id := instance.Top(f.ID)
		if msg, ok := n.checkRequired(f, states, id); !ok {
			out.Advance = false
			if out.FieldErrors == nil {
				out.FieldErrors = map[string]string{}
			}
			out.FieldErrors[id.String()] = msg
		}
	}

	for _, pc := range page.PostConditions {
		if msg, ok := n.checkPostCondition(ctx, pc, scope); !ok {
			out.Advance = false
			out.PageErrors = append(out.PageErrors, msg)
		}
	}
	return out
}

// checkRequired passes unless the field is required, currently visible,
// and has no value. Hidden fields never block navigation, whatever
// their required flag says.
func (n *Navigator) checkRequired(f *schema.Field, states *state.Set, id instance.ID) (string, bool) {
	if !f.Required || f.Kind == schema.KindComment {
		return "", true
	}
	st, ok := states.Lookup(id)
	if ok && !st.Visible {
		return "", true
	}
	if ok && st.HasValue() {
		return "", true
	}
	return fmt.Sprintf("%s is required", f.Label), false
}

// checkPostCondition evaluates a page gate. A condition that errors
// blocks navigation the same way a false one does; the error message
// template is rendered against the current scope, falling back to the
// raw template text when rendering itself fails.
func (n *Navigator) checkPostCondition(ctx context.Context, pc *schema.PostCondition, scope *evalctx.Context) (string, bool) {
	v, err := n.Port.EvaluateExpr(ctx, pc.Condition, scope)
	if err == nil && exprport.Truthy(v) {
		return "", true
	}
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Post-condition failed to evaluate.", "error", err)
	}
	msg, renderErr := n.Port.EvaluateTemplate(ctx, pc.ErrorMessage, scope)
	if renderErr != nil || msg.IsNull() || !msg.IsKnown() || msg.Type() != cty.String {
		return pc.ErrorMessage, false
	}
	return msg.AsString(), false
}

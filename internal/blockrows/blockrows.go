// Package blockrows materializes the per-row evaluation contexts of a
// repeatable block and aggregates row values into the list-typed
// variables visible to fields declared after the block.
//
// Row identity is positional: adding or removing a row re-derives
// everything from the current submitted row set, and no persistent row
// ids are assumed.
package blockrows

import (
	"context"

	"github.com/vk/formflow/internal/ctxlog"
	"github.com/vk/formflow/internal/evalctx"
	"github.com/vk/formflow/internal/exprport"
	"github.com/vk/formflow/internal/schema"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// hardRowCap bounds row expansion regardless of what a max_items
// template evaluates to.
const hardRowCap = 30

// Expander derives row counts and row-scoped contexts for block fields.
type Expander struct {
	Port exprport.Port
}

// EffectiveRowCount reconciles the observed row count (from the submitted
// values) with the block field's min/max settings. max_items may itself
// be a template evaluated against the outer context; a failing or
// nonsensical result falls back to the hard cap.
func (e *Expander) EffectiveRowCount(ctx context.Context, f *schema.Field, observed int, scope *evalctx.Context) int {
	count := observed
	if count == 0 {
		count = f.DefaultItemsCount
	}
	if f.MinItems > 0 && count < f.MinItems {
		count = f.MinItems
	}

	max := hardRowCap
	if f.MaxItems != "" {
		if v, err := e.Port.EvaluateTemplate(ctx, f.MaxItems, scope); err == nil {
			if num, convErr := convert.Convert(v, cty.Number); convErr == nil && !num.IsNull() {
				if parsed, acc := num.AsBigFloat().Int64(); acc == 0 && parsed > 0 {
					max = int(parsed)
				}
			}
		} else {
			ctxlog.FromContext(ctx).Debug("max_items template failed, using cap.",
				"field", f.ID, "error", err)
		}
	}
	if max > hardRowCap {
		max = hardRowCap
	}
	if count > max {
		count = max
	}
	return count
}

// Aggregate builds the block's own list value: one object per currently
// present row, with every declared sub-field varname as an attribute
// (null when the row has no value for it). Rows that were removed simply
// do not contribute.
func Aggregate(blk *schema.Block, rows []map[string]cty.Value) cty.Value {
	if len(rows) == 0 {
		return cty.EmptyTupleVal
	}
	elems := make([]cty.Value, len(rows))
	for i, rowVars := range rows {
		attrs := make(map[string]cty.Value)
		for _, sub := range blk.Fields {
			if sub.Varname == "" {
				continue
			}
			if v, ok := rowVars[sub.Varname]; ok && v != cty.NilVal {
				attrs[sub.Varname] = v
			} else {
				attrs[sub.Varname] = cty.NullVal(cty.DynamicPseudoType)
			}
		}
		if len(attrs) == 0 {
			elems[i] = cty.EmptyObjectVal
		} else {
			elems[i] = cty.ObjectVal(attrs)
		}
	}
	return cty.TupleVal(elems)
}

// SubAggregates builds the per-varname aggregate lists (`x` meaning "x
// across all rows") exposed to fields outside the block.
func SubAggregates(blk *schema.Block, rows []map[string]cty.Value) map[string]cty.Value {
	out := make(map[string]cty.Value)
	for _, sub := range blk.Fields {
		if sub.Varname == "" {
			continue
		}
		elems := make([]cty.Value, len(rows))
		for i, rowVars := range rows {
			if v, ok := rowVars[sub.Varname]; ok && v != cty.NilVal {
				elems[i] = v
			} else {
				elems[i] = cty.NullVal(cty.DynamicPseudoType)
			}
		}
		if len(elems) == 0 {
			out[sub.Varname] = cty.EmptyTupleVal
		} else {
			out[sub.Varname] = cty.TupleVal(elems)
		}
	}
	return out
}

package exprport

import (
	"math/big"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
)

// getlistFunc projects one attribute out of a collection of objects,
// yielding a tuple. Elements without the attribute contribute null, so
// positions stay aligned with the source rows.
var getlistFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "collection", Type: cty.DynamicPseudoType, AllowDynamicType: true, AllowNull: true},
		{Name: "attribute", Type: cty.String},
	},
	Type: func(args []cty.Value) (cty.Type, error) {
		return cty.DynamicPseudoType, nil
	},
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		coll := args[0]
		attr := args[1].AsString()
		if coll.IsNull() || !coll.CanIterateElements() {
			return cty.EmptyTupleVal, nil
		}
		var out []cty.Value
		for it := coll.ElementIterator(); it.Next(); {
			_, el := it.Element()
			if !el.IsNull() && el.Type().IsObjectType() && el.Type().HasAttribute(attr) {
				out = append(out, el.GetAttr(attr))
			} else {
				out = append(out, cty.NullVal(cty.DynamicPseudoType))
			}
		}
		if len(out) == 0 {
			return cty.EmptyTupleVal, nil
		}
		return cty.TupleVal(out), nil
	},
})

// sumFunc adds the numeric elements of a collection. Nulls and values
// that cannot convert to a number are skipped rather than failing, so a
// partially-filled block still produces a total.
var sumFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "collection", Type: cty.DynamicPseudoType, AllowDynamicType: true, AllowNull: true},
	},
	Type: function.StaticReturnType(cty.Number),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		coll := args[0]
		total := new(big.Float)
		if coll.IsNull() || !coll.CanIterateElements() {
			return cty.NumberVal(total), nil
		}
		for it := coll.ElementIterator(); it.Next(); {
			_, el := it.Element()
			if el.IsNull() {
				continue
			}
			num, err := convert.Convert(el, cty.Number)
			if err != nil || num.IsNull() {
				continue
			}
			total.Add(total, num.AsBigFloat())
		}
		return cty.NumberVal(total), nil
	},
})

package exprport

import (
	"github.com/zclconf/go-cty/cty"
)

// Truthy maps a typed value onto the boolean semantics used by
// conditions: null and unknown are false, empty strings and zero are
// false, empty collections are false, everything else is true.
func Truthy(v cty.Value) bool {
	if v == cty.NilVal || v.IsNull() || !v.IsKnown() {
		return false
	}
	ty := v.Type()
	switch {
	case ty == cty.Bool:
		return v.True()
	case ty == cty.String:
		return v.AsString() != ""
	case ty == cty.Number:
		return v.AsBigFloat().Sign() != 0
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType() || ty.IsMapType():
		return v.LengthInt() > 0
	}
	return true
}

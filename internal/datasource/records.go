package datasource

import (
	"context"
	"fmt"
	"strconv"

	"github.com/vk/formflow/internal/schema"
	"github.com/zclconf/go-cty/cty"
)

// Record is one entry of a structured record store.
type Record struct {
	ID         string
	Text       string
	Disabled   bool
	Attributes map[string]any
}

// RecordStore is the Data Source Port for record-backed sources. The
// engine filters the returned set itself; the store only enumerates.
type RecordStore interface {
	Records(ctx context.Context, set string) ([]Record, error)
}

// MemoryRecordStore is an in-memory RecordStore, used by tests and by
// hosts that preload their record sets.
type MemoryRecordStore struct {
	Sets map[string][]Record
}

// Records implements RecordStore.
func (s *MemoryRecordStore) Records(ctx context.Context, set string) ([]Record, error) {
	records, ok := s.Sets[set]
	if !ok {
		return nil, fmt.Errorf("unknown record set %q", set)
	}
	return records, nil
}

// matchFilter applies one already-evaluated predicate to a record.
func matchFilter(rec Record, flt *schema.RecordFilter, operand cty.Value) bool {
	switch flt.Op {
	case schema.FilterInternalID:
		return rec.ID == NormalizeID(ctyToComparable(operand))
	case schema.FilterEqual:
		return NormalizeID(rec.Attributes[flt.Attribute]) == NormalizeID(ctyToComparable(operand))
	case schema.FilterIn:
		if operand.IsNull() || !operand.CanIterateElements() {
			return false
		}
		want := NormalizeID(rec.Attributes[flt.Attribute])
		for it := operand.ElementIterator(); it.Next(); {
			_, el := it.Element()
			if NormalizeID(ctyToComparable(el)) == want {
				return true
			}
		}
		return false
	case schema.FilterBetween:
		if operand.IsNull() || !operand.CanIterateElements() || operand.LengthInt() != 2 {
			return false
		}
		val, err := numericAttribute(rec, flt.Attribute)
		if err != nil {
			return false
		}
		var bounds []float64
		for it := operand.ElementIterator(); it.Next(); {
			_, el := it.Element()
			f, ok := ctyToFloat(el)
			if !ok {
				return false
			}
			bounds = append(bounds, f)
		}
		return val >= bounds[0] && val < bounds[1]
	}
	return false
}

func numericAttribute(rec Record, attr string) (float64, error) {
	switch v := rec.Attributes[attr].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	}
	return 0, fmt.Errorf("attribute %q is not numeric", attr)
}

func ctyToComparable(v cty.Value) any {
	if v == cty.NilVal || v.IsNull() || !v.IsKnown() {
		return nil
	}
	switch v.Type() {
	case cty.String:
		return v.AsString()
	case cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return f
	case cty.Bool:
		return v.True()
	}
	return nil
}

func ctyToFloat(v cty.Value) (float64, bool) {
	if v.IsNull() || !v.IsKnown() {
		return 0, false
	}
	switch v.Type() {
	case cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return f, true
	case cty.String:
		f, err := strconv.ParseFloat(v.AsString(), 64)
		return f, err == nil
	}
	return 0, false
}

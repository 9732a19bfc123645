package schema

import (
	"fmt"
)

// Validate applies the structural rules the JSON Schema cannot express:
// id/varname uniqueness per scope, block reference integrity, and kind
// constraints.
func Validate(def *FormDefinition) error {
	topIDs := make(map[string]struct{})
	topVars := make(map[string]struct{})

	for _, page := range def.Pages {
		for _, f := range page.Fields {
			if _, dup := topIDs[f.ID]; dup {
				return fmt.Errorf("duplicate field id %q", f.ID)
			}
			topIDs[f.ID] = struct{}{}

			if f.Varname != "" {
				if _, dup := topVars[f.Varname]; dup {
					return fmt.Errorf("duplicate varname %q", f.Varname)
				}
				topVars[f.Varname] = struct{}{}
			}

			if f.Kind == KindBlock {
				if f.BlockRef == "" {
					return fmt.Errorf("block field %q has no block reference", f.ID)
				}
				if _, ok := def.Blocks[f.BlockRef]; !ok {
					return fmt.Errorf("block field %q references unknown block %q", f.ID, f.BlockRef)
				}
			}
			if f.Kind == KindComputed && !f.Prefillable() {
				return fmt.Errorf("computed field %q has no expression", f.ID)
			}
		}
	}

	for slug, blk := range def.Blocks {
		subIDs := make(map[string]struct{})
		subVars := make(map[string]struct{})
		for _, f := range blk.Fields {
			if _, dup := subIDs[f.ID]; dup {
				return fmt.Errorf("duplicate field id %q in block %q", f.ID, slug)
			}
			subIDs[f.ID] = struct{}{}

			if f.Varname != "" {
				if _, dup := subVars[f.Varname]; dup {
					return fmt.Errorf("duplicate varname %q in block %q", f.Varname, slug)
				}
				subVars[f.Varname] = struct{}{}
			}
			// Blocks do not nest.
			if f.Kind == KindBlock {
				return fmt.Errorf("block %q contains nested block field %q", slug, f.ID)
			}
		}
	}

	return nil
}

package instance

import (
	"fmt"
	"regexp"
	"strconv"
)

// ID addresses a single field instance: either a top-level field, or one
// sub-field occurrence inside a block row.
type ID struct {
	// Field is the field id (top-level) or the sub-field id (inside a block).
	Field string
	// Block is the owning block field id, empty for top-level fields.
	Block string
	// Row is the 0-based row index inside the block, -1 for top-level fields.
	Row int
}

// Top returns the ID of a top-level field.
func Top(fieldID string) ID {
	return ID{Field: fieldID, Row: -1}
}

// InRow returns the ID of a sub-field occurrence inside a block row.
func InRow(blockID, fieldID string, row int) ID {
	return ID{Field: fieldID, Block: blockID, Row: row}
}

// InBlock reports whether the instance lives inside a block row.
func (id ID) InBlock() bool {
	return id.Block != ""
}

// String serializes the ID into its canonical wire representation.
func (id ID) String() string {
	if !id.InBlock() {
		return id.Field
	}
	return fmt.Sprintf("%s-%s-%d", id.Block, id.Field, id.Row)
}

// compositeRegex parses the composite wire form `block-sub-row`. Plain ids
// never contain '-' (enforced at schema load), so a match is authoritative.
var compositeRegex = regexp.MustCompile(`^([A-Za-z0-9_]+)-([A-Za-z0-9_]+)-(\d+)$`)

// plainRegex parses a top-level field id.
var plainRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Parse converts a wire identifier back into an ID.
func Parse(s string) (ID, error) {
	if m := compositeRegex.FindStringSubmatch(s); m != nil {
		row, err := strconv.Atoi(m[3])
		if err != nil {
			return ID{}, fmt.Errorf("invalid row index in %q: %w", s, err)
		}
		return InRow(m[1], m[2], row), nil
	}
	if plainRegex.MatchString(s) {
		return Top(s), nil
	}
	return ID{}, fmt.Errorf("malformed field instance id %q", s)
}

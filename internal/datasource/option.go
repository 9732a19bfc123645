package datasource

import (
	"fmt"
	"strconv"
	"strings"
)

// OptionRecord is one selectable option offered by a data source.
type OptionRecord struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	// Disabled entries are kept in the list but flagged non-selectable,
	// unless the source configuration drops them entirely.
	Disabled   bool           `json:"disabled,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// NormalizeID canonicalizes an option identifier so numeric and string
// spellings of the same id compare equal ("3", 3 and 3.0 all map to "3").
func NormalizeID(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(v)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return formatNumericID(f)
		}
		return s
	case float64:
		return formatNumericID(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return strings.TrimSpace(fmt.Sprint(raw))
}

func formatNumericID(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// normalize canonicalizes ids, collapses duplicate ids to their first
// occurrence, and applies the disabled-record policy.
func normalize(records []OptionRecord, dropDisabled bool) []OptionRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]OptionRecord, 0, len(records))
	for _, rec := range records {
		rec.ID = NormalizeID(rec.ID)
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		if rec.Disabled && dropDisabled {
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// IDByText maps an option's display text back to its id; prefill values
// authored as the visible label select the matching option.
func IDByText(records []OptionRecord, text string) (string, bool) {
	for _, rec := range records {
		if rec.Text == text {
			return rec.ID, true
		}
	}
	return "", false
}

// HasID reports whether the list offers the given (normalized) id.
func HasID(records []OptionRecord, id string) bool {
	want := NormalizeID(id)
	for _, rec := range records {
		if rec.ID == want {
			return true
		}
	}
	return false
}

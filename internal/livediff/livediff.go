package livediff

import (
	"github.com/vk/formflow/internal/datasource"
)

// ResultSuccess and ResultError are the two top-level outcomes of a
// live evaluation call.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Request is one live evaluation call. Values are keyed by field
// instance id: a plain id for top-level fields, "{block}-{sub}-{row}"
// for block subfields. Changed lists the instance ids the user just
// edited; the pseudo-id "init" requests a full initial evaluation.
// Prefilled lists instances whose current value came from the engine
// rather than the user.
type Request struct {
	Values    map[string]any `json:"current_values"`
	Changed   []string       `json:"changed_field_ids"`
	Prefilled []string       `json:"prefilled_flags,omitempty"`
	Extra     map[string]any `json:"extra_vars,omitempty"`
}

// InitChange is the pseudo change id a client sends on first render.
const InitChange = "init"

// IsInit reports whether the request asks for a full initial pass.
func (r *Request) IsInit() bool {
	for _, id := range r.Changed {
		if id == InitChange {
			return true
		}
	}
	return false
}

// PrefilledSet returns the prefilled flags as a lookup set.
func (r *Request) PrefilledSet() map[string]bool {
	set := make(map[string]bool, len(r.Prefilled))
	for _, id := range r.Prefilled {
		set[id] = true
	}
	return set
}

// PatchEntry is the per-instance slice of a patch. Pointer fields
// distinguish "unchanged, omitted" from a genuine change to the zero
// value (a field becoming hidden, content clearing to "").
type PatchEntry struct {
	Visible   *bool                     `json:"visible,omitempty"`
	Locked    *bool                     `json:"locked,omitempty"`
	Content   *string                   `json:"content,omitempty"`
	Items     []datasource.OptionRecord `json:"items,omitempty"`
	SourceURL *string                   `json:"source_url,omitempty"`
	Error     string                    `json:"error,omitempty"`
}

// Empty reports whether the entry carries no observable change.
func (e *PatchEntry) Empty() bool {
	return e.Visible == nil && e.Locked == nil && e.Content == nil &&
		e.Items == nil && e.SourceURL == nil && e.Error == ""
}

// Response is the top-level result of a live evaluation call. On
// success Patch holds the minimal set of changed entries; on error
// Reason carries the operator-facing diagnostic and Patch is absent.
type Response struct {
	Result         string                 `json:"result"`
	Reason         string                 `json:"reason,omitempty"`
	Patch          map[string]*PatchEntry `json:"patch,omitzero"`
	BudgetExceeded bool                   `json:"budget_exceeded,omitempty"`
}

// Success wraps a patch in a success response.
func Success(patch map[string]*PatchEntry, budgetExceeded bool) *Response {
	if patch == nil {
		patch = map[string]*PatchEntry{}
	}
	return &Response{Result: ResultSuccess, Patch: patch, BudgetExceeded: budgetExceeded}
}

// Failure builds the top-level error response that replaces a patch.
func Failure(reason string) *Response {
	return &Response{Result: ResultError, Reason: reason}
}

// Projection is the externally observable slice of one field instance.
// The engine captures a projection before and after the cascade and
// diffs the two; everything else about FieldState is internal.
type Projection struct {
	Visible bool
	// ReportVisible forces the visibility flag into the entry even when
	// it matches the before state. Conditional fields set it: a client
	// cannot tell "still hidden" from "became visible" off an omitted
	// flag, because it never knows the engine's baseline.
	ReportVisible bool
	Locked        bool
	Content    string
	HasContent bool
	Items      []datasource.OptionRecord
	HasItems   bool
	SourceURL  string
	Error      string
}

// Diff compares two projections and returns the patch entry describing
// what changed, or nil when nothing observable did. Error markers are
// always emitted when present so clients can surface them even if the
// rest of the projection is stable.
func Diff(before, after Projection) *PatchEntry {
	entry := &PatchEntry{}
	if after.ReportVisible || before.Visible != after.Visible {
		v := after.Visible
		entry.Visible = &v
	}
	if before.Locked != after.Locked {
		v := after.Locked
		entry.Locked = &v
	}
	if after.HasContent && (!before.HasContent || before.Content != after.Content) {
		v := after.Content
		entry.Content = &v
	}
	if after.HasItems && (!before.HasItems || !sameItems(before.Items, after.Items)) {
		entry.Items = after.Items
		if entry.Items == nil {
			entry.Items = []datasource.OptionRecord{}
		}
	}
	if after.SourceURL != "" && before.SourceURL != after.SourceURL {
		v := after.SourceURL
		entry.SourceURL = &v
	}
	entry.Error = after.Error
	if entry.Empty() {
		return nil
	}
	return entry
}

func sameItems(a, b []datasource.OptionRecord) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Text != b[i].Text || a[i].Disabled != b[i].Disabled {
			return false
		}
	}
	return true
}

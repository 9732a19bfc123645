// Package state holds the per-invocation, mutable evaluation state of
// every field instance. A Set is constructed fresh for each live call
// from the client-submitted values and flags, mutated during the cascade,
// and discarded afterwards; the engine itself is stateless between calls.
package state

import (
	"github.com/vk/formflow/internal/instance"
	"github.com/zclconf/go-cty/cty"
)

// FieldState is the mutable evaluation state of one field instance.
type FieldState struct {
	// Value is the current typed value, cty.NilVal when absent.
	Value cty.Value
	// Content is the rendered display content for comment fields.
	Content string
	Visible bool
	Locked  bool
	// UserEdited is client-reported: true once the user has manually
	// changed an unlocked field, which suppresses prefill recomputation.
	UserEdited bool
	// Err is the recoverable evaluation error recorded by the scheduler,
	// nil when the last evaluation succeeded.
	Err error
}

// HasValue reports whether a usable value is present. An empty string
// counts as absent: a required text field holding "" is not filled.
func (s *FieldState) HasValue() bool {
	if s.Value == cty.NilVal || s.Value.IsNull() || !s.Value.IsKnown() {
		return false
	}
	if s.Value.Type() == cty.String && s.Value.AsString() == "" {
		return false
	}
	return true
}

// Set maps field instances to their state for one invocation. It is not
// safe for concurrent use; one live call is single-threaded by design.
type Set struct {
	states map[string]*FieldState
}

// NewSet creates an empty state set.
func NewSet() *Set {
	return &Set{states: make(map[string]*FieldState)}
}

// Get returns the state for an instance, creating a default (visible,
// valueless) entry on first access.
func (s *Set) Get(id instance.ID) *FieldState {
	key := id.String()
	if st, ok := s.states[key]; ok {
		return st
	}
	st := &FieldState{Value: cty.NilVal, Visible: true}
	s.states[key] = st
	return st
}

// Lookup returns the state for an instance without creating it.
func (s *Set) Lookup(id instance.ID) (*FieldState, bool) {
	st, ok := s.states[id.String()]
	return st, ok
}

// Len returns the number of tracked instances.
func (s *Set) Len() int {
	return len(s.states)
}

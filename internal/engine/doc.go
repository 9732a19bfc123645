// Package engine orchestrates one client round trip: it reconciles the
// submitted values against the form definition, builds the dependency
// graph for the current row counts, runs the cascade over the dirty
// closure, and assembles the minimal patch (or page-turn verdict) to
// send back.
//
// An Engine is constructed once per form definition and is safe for
// concurrent use: every call owns a private evaluation session, and the
// only shared mutable state is the TTL-bounded option cache.
package engine

// Package livediff defines the wire contract of a live evaluation round
// trip and the projection diffing that keeps patches minimal: a field
// only appears in the patch when something a client can observe about
// it actually changed.
package livediff

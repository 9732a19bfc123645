// Package navigator implements the page-turn validation gate: forward
// navigation requires every visible required field on the current page
// to hold a value and every page post-condition to evaluate truthy.
// Backward navigation is unconditional. Submission re-runs the full
// validation once more, idempotently.
package navigator

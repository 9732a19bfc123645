// Package app encapsulates the service's dependencies, configuration,
// and lifecycle: it loads the form definition, wires the evaluation
// engine, and serves the live-evaluation and page-turn endpoints.
package app

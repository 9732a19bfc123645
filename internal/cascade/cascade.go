// Package cascade schedules the re-evaluation of field instances after a
// change. Given the dirty set, it walks the dependency graph's downstream
// closure in topological order, hands each node to the caller's
// evaluator, and recovers from per-node evaluation errors so that one bad
// expression never aborts the whole request.
package cascade

import (
	"context"
	"time"

	"github.com/vk/formflow/internal/ctxlog"
	"github.com/vk/formflow/internal/depgraph"
	"github.com/vk/formflow/internal/exprport"
	"github.com/vk/formflow/internal/instance"
)

// Evaluator resolves one node: visibility, prefill, options, whatever the
// node's kind calls for. It must be free of hidden state across calls so
// that identical inputs yield identical outputs.
type Evaluator func(ctx context.Context, node *depgraph.Node) error

// Scheduler orders and drives one cascade pass.
type Scheduler struct {
	Graph *depgraph.Graph
	// Budget is the soft wall-clock allowance for one pass. Exceeding it
	// is a diagnostic, never a truncation: the pass still completes.
	Budget time.Duration
}

// Outcome reports what one pass touched.
type Outcome struct {
	// Order lists every evaluated node in evaluation order.
	Order []instance.ID
	// Errors maps instance ids to the recoverable error recorded there.
	Errors map[string]error
	// BudgetExceeded is set when the pass ran past the soft budget.
	BudgetExceeded bool
}

// Run evaluates the downstream closure of the dirty set. Nodes poisoned
// by a schema cycle are skipped and recorded as unresolved; nodes whose
// evaluation fails recoverably are recorded and their dependents keep
// going with absent inputs.
func (s *Scheduler) Run(ctx context.Context, dirty []instance.ID, eval Evaluator) *Outcome {
	logger := ctxlog.FromContext(ctx)
	start := time.Now()
	out := &Outcome{Errors: make(map[string]error)}

	closure := s.Graph.Closure(dirty)
	logger.Debug("Cascade closure computed.", "dirty", len(dirty), "closure", len(closure))

	for _, node := range closure {
		key := node.ID.String()

		if s.Budget > 0 && !out.BudgetExceeded && time.Since(start) > s.Budget {
			out.BudgetExceeded = true
			logger.Warn("Evaluation is taking too long.",
				"budget", s.Budget, "elapsed", time.Since(start))
		}

		if node.Unresolved {
			out.Errors[key] = exprport.ErrUnresolved
			out.Order = append(out.Order, node.ID)
			continue
		}

		if err := eval(ctx, node); err != nil {
			logger.Debug("Node evaluation failed, continuing cascade.",
				"node", key, "error", err)
			out.Errors[key] = err
		}
		out.Order = append(out.Order, node.ID)
	}

	return out
}

package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vk/formflow/internal/cascade"
	"github.com/vk/formflow/internal/ctxlog"
	"github.com/vk/formflow/internal/instance"
)

// Directions a page-turn request can take.
const (
	DirForward  = "forward"
	DirBackward = "backward"
	DirSubmit   = "submit"
)

// PageTurnRequest carries the current page's submitted values and the
// requested navigation.
type PageTurnRequest struct {
	Values    map[string]any `json:"current_values"`
	Prefilled []string       `json:"prefilled_flags,omitempty"`
	Extra     map[string]any `json:"extra_vars,omitempty"`
	Page      int            `json:"page_index"`
	Direction string         `json:"direction"`
}

// PageTurnResponse is the navigation verdict. Page is the index the
// client should display next; on a blocked forward turn it equals the
// requested page.
type PageTurnResponse struct {
	Result      string            `json:"result"`
	Reason      string            `json:"reason,omitempty"`
	Advance     bool              `json:"advance"`
	Page        int               `json:"page_index"`
	FieldErrors map[string]string `json:"field_errors,omitzero"`
	PageErrors  []string          `json:"page_errors,omitzero"`
}

// PageTurn validates a navigation request. Forward turns require every
// visible required field on the page to hold a value and every page
// post-condition to pass; backward turns never validate. Submit re-runs
// the full validation over all visible pages, idempotently.
func (e *Engine) PageTurn(ctx context.Context, req *PageTurnRequest) *PageTurnResponse {
	logger := ctxlog.FromContext(ctx).With("request_id", uuid.NewString(), "form", e.def.Slug)
	ctx = ctxlog.WithLogger(ctx, logger)

	prefilled := make(map[string]bool, len(req.Prefilled))
	for _, id := range req.Prefilled {
		prefilled[id] = true
	}
	s, err := e.newSession(ctx, req.Values, prefilled, req.Extra)
	if err != nil {
		logger.Warn("Page turn rejected.", "error", err)
		return &PageTurnResponse{Result: "error", Reason: err.Error(), Page: req.Page}
	}

	// Resolve visibility and prefills over the whole graph so required
	// checks see the same state a live call would produce.
	all := make([]instance.ID, 0, len(s.graph.Nodes()))
	for _, n := range s.graph.Nodes() {
		all = append(all, n.ID)
	}
	sched := &cascade.Scheduler{Graph: s.graph, Budget: e.budget}
	sched.Run(ctx, all, s.evaluate)

	switch req.Direction {
	case DirBackward:
		return &PageTurnResponse{
			Result:  "success",
			Advance: true,
			Page:    e.nav.Backward(ctx, e.def, req.Page, s.scope),
		}
	case DirSubmit:
		out := e.nav.Submit(ctx, e.def, s.states, s.scope, s.rowCounts)
		return &PageTurnResponse{
			Result:      "success",
			Advance:     out.Advance,
			Page:        req.Page,
			FieldErrors: out.FieldErrors,
			PageErrors:  out.PageErrors,
		}
	case DirForward, "":
		out := e.nav.Forward(ctx, e.def, req.Page, s.states, s.scope, s.rowCounts)
		resp := &PageTurnResponse{
			Result:      "success",
			Advance:     out.Advance,
			Page:        req.Page,
			FieldErrors: out.FieldErrors,
			PageErrors:  out.PageErrors,
		}
		if out.Advance {
			if next := e.nav.NextVisible(ctx, e.def, req.Page, s.scope); next >= 0 {
				resp.Page = next
			}
		}
		return resp
	}
	return &PageTurnResponse{
		Result: "error",
		Reason: fmt.Sprintf("unknown direction %q", req.Direction),
		Page:   req.Page,
	}
}

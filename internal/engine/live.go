package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vk/formflow/internal/cascade"
	"github.com/vk/formflow/internal/ctxlog"
	"github.com/vk/formflow/internal/depgraph"
	"github.com/vk/formflow/internal/exprport"
	"github.com/vk/formflow/internal/instance"
	"github.com/vk/formflow/internal/livediff"
	"github.com/vk/formflow/internal/schema"
)

// Live processes one live evaluation call and returns the minimal patch
// of observable changes, or a top-level error when the submitted values
// cannot be reconciled.
func (e *Engine) Live(ctx context.Context, req *livediff.Request) *livediff.Response {
	logger := ctxlog.FromContext(ctx).With("request_id", uuid.NewString(), "form", e.def.Slug)
	ctx = ctxlog.WithLogger(ctx, logger)

	s, err := e.newSession(ctx, req.Values, req.PrefilledSet(), req.Extra)
	if err != nil {
		logger.Warn("Live call rejected.", "error", err)
		return livediff.Failure(err.Error())
	}

	dirty := s.dirtySet(ctx, req)
	if len(dirty) == 0 {
		return livediff.Success(nil, false)
	}

	before := make(map[string]livediff.Projection, len(s.graph.Nodes()))
	for _, node := range s.graph.Nodes() {
		before[node.ID.String()] = s.projection(node)
	}

	sched := &cascade.Scheduler{Graph: s.graph, Budget: e.budget}
	outcome := sched.Run(ctx, dirty, s.evaluate)

	patch := make(map[string]*livediff.PatchEntry)
	for _, id := range outcome.Order {
		key := id.String()
		node := s.graph.Node(id)
		after := s.projection(node)
		if err, ok := outcome.Errors[key]; ok {
			after.Error = errorMarker(err)
		}
		if entry := livediff.Diff(before[key], after); entry != nil {
			patch[key] = entry
		}
	}

	logger.Debug("Live call complete.",
		"dirty", len(dirty), "evaluated", len(outcome.Order), "patched", len(patch))
	return livediff.Success(patch, outcome.BudgetExceeded)
}

// dirtySet translates the client's changed-field hints into graph node
// ids. The "init" pseudo-change marks every node dirty for a full first
// render; unknown ids are ignored, not errors, since a client may
// report edits to fields another schema revision removed.
func (s *session) dirtySet(ctx context.Context, req *livediff.Request) []instance.ID {
	if req.IsInit() {
		nodes := s.graph.Nodes()
		out := make([]instance.ID, 0, len(nodes))
		for _, n := range nodes {
			out = append(out, n.ID)
		}
		return out
	}
	var out []instance.ID
	for _, raw := range req.Changed {
		id, err := instance.Parse(raw)
		if err != nil {
			ctxlog.FromContext(ctx).Debug("Ignoring malformed changed id.", "id", raw)
			continue
		}
		if s.graph.Node(id) == nil {
			ctxlog.FromContext(ctx).Debug("Ignoring unknown changed id.", "id", raw)
			continue
		}
		out = append(out, id)
	}
	return out
}

// projection captures the externally observable state of one node.
func (s *session) projection(node *depgraph.Node) livediff.Projection {
	key := node.ID.String()
	f := node.Field
	p := livediff.Projection{Visible: true, ReportVisible: f.Condition != ""}
	p.Locked = f.Prefillable() && f.Prefill.Locked
	st, ok := s.states.Lookup(node.ID)
	if ok {
		p.Visible = st.Visible
		p.Locked = st.Locked
	}

	switch {
	case f.Kind == schema.KindComment:
		if ok && st.Content != "" {
			p.HasContent = true
			p.Content = st.Content
		}
	case f.Prefillable():
		if ok && (!st.UserEdited || st.Locked) {
			p.HasContent = true
			p.Content = stringify(st.Value)
		}
	}

	if f.SourceBacked() {
		if f.Autocomplete() {
			p.SourceURL = s.sourceURLs[key]
		} else if items, resolved := s.items[key]; resolved {
			p.HasItems = true
			p.Items = items
		}
	}
	return p
}

// errorMarker renders a recoverable per-field error for the client.
// Expression failures stay a terse marker: the raw diagnostic quotes
// the authored source and belongs in the log, not on the wire.
func errorMarker(err error) string {
	if errors.Is(err, exprport.ErrUnresolved) {
		return "unresolved"
	}
	if exprport.IsEvalError(err) {
		return "expression error"
	}
	return err.Error()
}

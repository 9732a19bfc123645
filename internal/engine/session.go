package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vk/formflow/internal/blockrows"
	"github.com/vk/formflow/internal/ctxlog"
	"github.com/vk/formflow/internal/datasource"
	"github.com/vk/formflow/internal/depgraph"
	"github.com/vk/formflow/internal/evalctx"
	"github.com/vk/formflow/internal/exprport"
	"github.com/vk/formflow/internal/instance"
	"github.com/vk/formflow/internal/schema"
	"github.com/vk/formflow/internal/state"
	"github.com/zclconf/go-cty/cty"
)

// DeserializationError means the submitted values cannot be reconciled
// against the form definition: an unknown instance id, an unconvertible
// value, or a selected option id that no longer exists. It aborts the
// whole call with a top-level error; a partial patch over inconsistent
// state would be worse than refusing it.
type DeserializationError struct {
	Key   string
	Cause error
}

// Error implements the error interface.
func (e *DeserializationError) Error() string {
	return fmt.Sprintf("cannot reconcile submitted value %q: %v", e.Key, e.Cause)
}

// Unwrap exposes the underlying cause.
func (e *DeserializationError) Unwrap() error {
	return e.Cause
}

// session is the private evaluation state of one invocation. Nothing in
// it is shared across calls.
type session struct {
	eng    *Engine
	states *state.Set
	scope  *evalctx.Context
	graph  *depgraph.Graph

	// rowValues holds the current varname -> value map of every block row,
	// kept in sync with states as the cascade rewrites row sub-fields.
	rowValues map[string][]map[string]cty.Value
	rowCounts map[string]int

	// items and sourceURLs collect per-instance option results during the
	// cascade, keyed by wire instance id.
	items      map[string][]datasource.OptionRecord
	sourceURLs map[string]string
}

func (e *Engine) newSession(ctx context.Context, values map[string]any, prefilled map[string]bool, extra map[string]any) (*session, error) {
	logger := ctxlog.FromContext(ctx)
	s := &session{
		eng:        e,
		states:     state.NewSet(),
		rowValues:  make(map[string][]map[string]cty.Value),
		rowCounts:  make(map[string]int),
		items:      make(map[string][]datasource.OptionRecord),
		sourceURLs: make(map[string]string),
	}

	observed := make(map[string]int)
	for key, raw := range values {
		id, err := instance.Parse(key)
		if err != nil {
			return nil, &DeserializationError{Key: key, Cause: err}
		}
		f, err := e.fieldFor(id)
		if err != nil {
			return nil, &DeserializationError{Key: key, Cause: err}
		}
		val, err := exprport.FromWire(raw)
		if err != nil {
			return nil, &DeserializationError{Key: key, Cause: err}
		}
		if err := checkSelection(f, val); err != nil {
			return nil, &DeserializationError{Key: key, Cause: err}
		}

		st := s.states.Get(id)
		st.Value = val
		if f.Prefillable() {
			st.Locked = f.Prefill.Locked
		}
		st.UserEdited = st.HasValue() && !st.Locked && !prefilled[key]

		if id.InBlock() && id.Row+1 > observed[id.Block] {
			observed[id.Block] = id.Row + 1
		}
	}

	// Block fields start from their observed row counts; the effective
	// count (min/max reconciliation) needs a scope and is settled below.
	for _, f := range e.def.TopFields() {
		if f.Kind != schema.KindBlock || e.def.BlockFor(f) == nil {
			continue
		}
		s.rowCounts[f.ID] = observed[f.ID]
		s.syncRows(f)
	}
	s.rebuildScope(ctx, extra)

	adjusted := false
	for _, f := range e.def.TopFields() {
		if f.Kind != schema.KindBlock || e.def.BlockFor(f) == nil {
			continue
		}
		effective := e.expander.EffectiveRowCount(ctx, f, observed[f.ID], s.scope)
		if effective != s.rowCounts[f.ID] {
			s.rowCounts[f.ID] = effective
			s.syncRows(f)
			adjusted = true
		}
	}
	if adjusted {
		s.rebuildScope(ctx, extra)
	}

	s.graph = e.builder.Build(ctx, e.def, s.rowCounts)
	logger.Debug("Session reconciled.",
		"states", s.states.Len(), "nodes", len(s.graph.Nodes()), "cycles", len(s.graph.Cycles))
	return s, nil
}

// fieldFor resolves an instance id against the definition.
func (e *Engine) fieldFor(id instance.ID) (*schema.Field, error) {
	if !id.InBlock() {
		if f := e.def.FieldByID(id.Field); f != nil {
			return f, nil
		}
		return nil, fmt.Errorf("unknown field %q", id.Field)
	}
	owner := e.def.FieldByID(id.Block)
	if owner == nil || owner.Kind != schema.KindBlock {
		return nil, fmt.Errorf("unknown block %q", id.Block)
	}
	blk := e.def.BlockFor(owner)
	if blk == nil {
		return nil, fmt.Errorf("block %q references undefined block %q", id.Block, owner.BlockRef)
	}
	if sub := blk.SubFieldByID(id.Field); sub != nil {
		return sub, nil
	}
	return nil, fmt.Errorf("unknown sub-field %q in block %q", id.Field, id.Block)
}

// checkSelection rejects a static-source selection whose id is no
// longer offered. Remote and record sources are validated during the
// cascade instead, where their option lists are actually resolved.
func checkSelection(f *schema.Field, val cty.Value) error {
	ds := f.DataSource
	if ds == nil || ds.Type != schema.SourceStatic || !f.SourceBacked() {
		return nil
	}
	offered := make(map[string]bool, len(ds.Options))
	for _, opt := range ds.Options {
		offered[datasource.NormalizeID(opt.ID)] = true
	}
	check := func(v cty.Value) error {
		if v.IsNull() || !v.IsKnown() {
			return nil
		}
		id := stringify(v)
		if id == "" {
			return nil
		}
		if !offered[datasource.NormalizeID(id)] {
			return fmt.Errorf("selected option %q no longer exists", id)
		}
		return nil
	}
	if val.CanIterateElements() && f.Kind == schema.KindItems {
		for it := val.ElementIterator(); it.Next(); {
			_, el := it.Element()
			if err := check(el); err != nil {
				return err
			}
		}
		return nil
	}
	return check(val)
}

// syncRows resizes a block's row value maps to its current row count
// and refreshes them from the state set. Every declared sub-field
// varname is present in every row map, never-submitted ones as "", so
// a sibling's expression always resolves the row-local value and not
// an aggregate or top-level name of the same spelling.
func (s *session) syncRows(f *schema.Field) {
	blk := s.eng.def.BlockFor(f)
	count := s.rowCounts[f.ID]
	rows := make([]map[string]cty.Value, count)
	for row := 0; row < count; row++ {
		vars := make(map[string]cty.Value)
		for _, sub := range blk.Fields {
			if sub.Varname == "" {
				continue
			}
			if st, ok := s.states.Lookup(instance.InRow(f.ID, sub.ID, row)); ok && st.Value != cty.NilVal {
				vars[sub.Varname] = st.Value
			} else {
				vars[sub.Varname] = cty.StringVal("")
			}
		}
		rows[row] = vars
	}
	s.rowValues[f.ID] = rows
}

// rebuildScope reseeds the top-level scope: host extras first, block
// aggregates next, top-level varnames last so they always win. Absent
// scalar values seed as "" so conditions like `x == ""` and templates
// over unfilled upstream fields evaluate instead of erroring.
func (s *session) rebuildScope(ctx context.Context, extra map[string]any) {
	logger := ctxlog.FromContext(ctx)
	scope := evalctx.New()

	for name, raw := range extra {
		v, err := exprport.FromWire(raw)
		if err != nil {
			logger.Debug("Skipping unconvertible extra variable.", "name", name, "error", err)
			continue
		}
		scope.Set(name, v)
	}

	for _, f := range s.eng.def.TopFields() {
		if f.Kind != schema.KindBlock {
			continue
		}
		blk := s.eng.def.BlockFor(f)
		if blk == nil {
			continue
		}
		rows := s.rowValues[f.ID]
		for name, v := range blockrows.SubAggregates(blk, rows) {
			if !s.eng.topVarnames[name] {
				scope.Set(name, v)
			}
		}
		if f.Varname != "" {
			scope.Set(f.Varname, blockrows.Aggregate(blk, rows))
		}
	}

	for _, f := range s.eng.def.TopFields() {
		if f.Varname == "" || f.Kind == schema.KindBlock {
			continue
		}
		st, ok := s.states.Lookup(instance.Top(f.ID))
		if ok && st.Value != cty.NilVal && !st.Value.IsNull() {
			scope.Set(f.Varname, st.Value)
		} else {
			scope.Set(f.Varname, cty.StringVal(""))
		}
	}

	s.scope = scope
}

// publish pushes a freshly computed value back into the scope so
// downstream nodes in the same cascade observe it.
func (s *session) publish(node *depgraph.Node, val cty.Value) {
	if node.Field.Varname == "" {
		return
	}
	if node.ID.InBlock() {
		rows := s.rowValues[node.ID.Block]
		if node.ID.Row < len(rows) {
			rows[node.ID.Row][node.Field.Varname] = val
		}
		return
	}
	if val == cty.NilVal {
		val = cty.StringVal("")
	}
	s.scope.Set(node.Field.Varname, val)
}

// evaluate resolves one node of the cascade closure.
func (s *session) evaluate(ctx context.Context, node *depgraph.Node) error {
	if node.Field.Kind == schema.KindBlock {
		return s.evaluateBlock(ctx, node)
	}

	f := node.Field
	scope := s.scope
	if node.ID.InBlock() {
		rows := s.rowValues[node.ID.Block]
		if node.ID.Row >= len(rows) {
			return nil
		}
		scope = s.scope.EnterRow(rows[node.ID.Row], node.ID.Row)
	}
	st := s.states.Get(node.ID)
	var errs []error

	visible, err := s.eng.vis.Resolve(ctx, f, scope)
	st.Visible = visible
	if err != nil {
		errs = append(errs, err)
	}

	if f.Prefillable() {
		val, computed, err := s.eng.prefill.Resolve(ctx, f, scope, st)
		if err != nil {
			errs = append(errs, err)
		} else if computed {
			st.Value = val
			st.Locked = f.Prefill.Locked
			s.publish(node, val)
		}
	}

	if f.Kind == schema.KindComment && f.Template != "" {
		rendered, err := s.eng.port.EvaluateTemplate(ctx, f.Template, scope)
		if err != nil {
			errs = append(errs, err)
		} else {
			st.Content = wrapComment(stringify(rendered))
		}
	}

	if f.SourceBacked() {
		if err := s.resolveSource(ctx, node, f, scope, st); err != nil {
			errs = append(errs, err)
		}
	}

	st.Err = errors.Join(errs...)
	return st.Err
}

func (s *session) resolveSource(ctx context.Context, node *depgraph.Node, f *schema.Field, scope *evalctx.Context, st *state.FieldState) error {
	if f.Autocomplete() {
		url, err := s.eng.sources.RenderURL(ctx, f.DataSource, scope)
		if err != nil {
			return err
		}
		s.sourceURLs[node.ID.String()] = url
		return nil
	}

	records, err := s.eng.sources.Resolve(ctx, f.DataSource, scope)
	if err != nil {
		s.items[node.ID.String()] = []datasource.OptionRecord{}
		return err
	}
	if records == nil {
		records = []datasource.OptionRecord{}
	}
	s.items[node.ID.String()] = records

	// A prefill authored as the option's visible label selects the
	// matching option id. A selection matching neither an id nor a label
	// vanished from the source; options only become known here, mid
	// cascade, so unlike the static check at reconcile time this records
	// the error on the field instead of aborting the call. An empty
	// option list is left alone: it usually means an upstream dependency
	// of the query has no value yet.
	if len(records) == 0 || !st.HasValue() {
		return nil
	}
	if st.Value.Type() == cty.String {
		current := st.Value.AsString()
		if !datasource.HasID(records, current) {
			id, ok := datasource.IDByText(records, current)
			if !ok {
				return fmt.Errorf("selected option %q no longer exists", current)
			}
			st.Value = cty.StringVal(id)
			s.publish(node, st.Value)
		}
		return nil
	}
	if f.Kind == schema.KindItems && st.Value.CanIterateElements() {
		for it := st.Value.ElementIterator(); it.Next(); {
			_, el := it.Element()
			if id := stringify(el); id != "" && !datasource.HasID(records, id) {
				return fmt.Errorf("selected option %q no longer exists", id)
			}
		}
	}
	return nil
}

func (s *session) evaluateBlock(ctx context.Context, node *depgraph.Node) error {
	f := node.Field
	blk := node.Block
	st := s.states.Get(node.ID)
	var errs []error

	visible, err := s.eng.vis.Resolve(ctx, f, s.scope)
	st.Visible = visible
	if err != nil {
		errs = append(errs, err)
	}

	if f.Prefillable() {
		if err := s.prefillBlock(ctx, node, st); err != nil {
			errs = append(errs, err)
		}
	}

	rows := s.rowValues[f.ID]
	for name, v := range blockrows.SubAggregates(blk, rows) {
		if !s.eng.topVarnames[name] {
			s.scope.Set(name, v)
		}
	}
	if f.Varname != "" {
		s.scope.Set(f.Varname, blockrows.Aggregate(blk, rows))
	}

	st.Err = errors.Join(errs...)
	return st.Err
}

// prefillBlock applies a block-level prefill: the expression must yield
// a list, one element per row, each an object keyed by sub-field
// varname. Rows the user already edited keep their values; row counts
// are not restructured mid-cascade, so surplus elements are dropped.
func (s *session) prefillBlock(ctx context.Context, node *depgraph.Node, st *state.FieldState) error {
	f := node.Field
	val, computed, err := s.eng.prefill.Resolve(ctx, f, s.scope, st)
	if err != nil || !computed {
		return err
	}
	if val.IsNull() || !val.CanIterateElements() {
		return &exprport.EvalError{Source: f.Prefill.Expr, Detail: "block prefill must produce a list"}
	}
	st.Value = val

	rows := s.rowValues[f.ID]
	idx := 0
	for it := val.ElementIterator(); it.Next() && idx < len(rows); idx++ {
		_, elem := it.Element()
		if elem.IsNull() || !elem.Type().IsObjectType() {
			continue
		}
		for _, sub := range node.Block.Fields {
			if sub.Varname == "" || !elem.Type().HasAttribute(sub.Varname) {
				continue
			}
			target := s.states.Get(instance.InRow(f.ID, sub.ID, idx))
			if target.UserEdited {
				continue
			}
			target.Value = elem.GetAttr(sub.Varname)
			rows[idx][sub.Varname] = target.Value
		}
	}
	return nil
}

// stringify renders a value the way it appears in displayed content.
func stringify(v cty.Value) string {
	if v == cty.NilVal || v.IsNull() || !v.IsKnown() {
		return ""
	}
	switch v.Type() {
	case cty.String:
		return v.AsString()
	case cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return strconv.FormatFloat(f, 'f', -1, 64)
	case cty.Bool:
		return strconv.FormatBool(v.True())
	}
	return ""
}

// wrapComment ensures rendered comment content is valid display HTML:
// plain text gets a paragraph wrapper, markup passes through.
func wrapComment(content string) string {
	if content == "" {
		return ""
	}
	if strings.HasPrefix(strings.TrimSpace(content), "<") {
		return content
	}
	return "<p>" + content + "</p>"
}

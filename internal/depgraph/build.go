package depgraph

import (
	"context"

	"github.com/vk/formflow/internal/ctxlog"
	"github.com/vk/formflow/internal/exprport"
	"github.com/vk/formflow/internal/instance"
	"github.com/vk/formflow/internal/schema"
)

// Builder constructs the dependency graph for one (schema, row counts)
// pair. Row counts vary per request; the schema does not.
type Builder struct {
	Port exprport.Port
}

// exprSource is one piece of user-authored source text attached to a field.
type exprSource struct {
	src      string
	template bool
}

// sources lists every expression a field carries.
func sources(f *schema.Field) []exprSource {
	var out []exprSource
	if f.Condition != "" {
		out = append(out, exprSource{src: f.Condition})
	}
	if f.Prefillable() {
		out = append(out, exprSource{src: f.Prefill.Expr, template: true})
	}
	if f.Kind == schema.KindComment && f.Template != "" {
		out = append(out, exprSource{src: f.Template, template: true})
	}
	if f.Kind == schema.KindBlock && f.MaxItems != "" {
		out = append(out, exprSource{src: f.MaxItems, template: true})
	}
	if ds := f.DataSource; ds != nil {
		if ds.URL != "" {
			out = append(out, exprSource{src: ds.URL, template: true})
		}
		if ds.Query != "" {
			out = append(out, exprSource{src: ds.Query, template: true})
		}
		for _, flt := range ds.Filters {
			if flt.Value != "" {
				out = append(out, exprSource{src: flt.Value, template: true})
			}
		}
	}
	return out
}

// Build scans every field instance's expressions for referenced variable
// names and produces the directed graph. It never fails hard: expressions
// that do not parse contribute no edges (their EvalError surfaces at
// evaluation time), and cycles are recorded as diagnostics with the
// implicated nodes marked unresolved.
func (b *Builder) Build(ctx context.Context, def *schema.FormDefinition, rowCounts map[string]int) *Graph {
	logger := ctxlog.FromContext(ctx)
	g := newGraph()

	// First pass: nodes, plus block aggregation edges (every row sub-field
	// with a varname feeds its block node).
	type rowScope struct {
		blockID string
		row     int
		byVar   map[string]*Node
	}
	var rowScopes []*rowScope
	for _, f := range def.TopFields() {
		if f.Kind != schema.KindBlock {
			g.addNode(instance.Top(f.ID), f, nil)
			continue
		}
		blk := def.BlockFor(f)
		if blk == nil {
			continue
		}
		rows, ok := rowCounts[f.ID]
		if !ok {
			rows = f.DefaultItemsCount
		}
		blockNode := g.addNode(instance.Top(f.ID), f, blk)
		for row := 0; row < rows; row++ {
			scope := &rowScope{blockID: f.ID, row: row, byVar: make(map[string]*Node)}
			for _, sub := range blk.Fields {
				n := g.addNode(instance.InRow(f.ID, sub.ID, row), sub, blk)
				if sub.Varname != "" {
					scope.byVar[sub.Varname] = n
					if err := g.addEdge(n, blockNode); err != nil {
						logger.Debug("Skipping aggregation edge.", "error", err)
					}
				}
			}
			rowScopes = append(rowScopes, scope)
		}
	}

	// Producer maps. A top-level varname wins over a block sub-field
	// aggregate of the same spelling.
	topProducers := make(map[string]*Node)
	aggregateProducers := make(map[string]*Node)
	for _, f := range def.TopFields() {
		if f.Varname == "" {
			continue
		}
		if n := g.Node(instance.Top(f.ID)); n != nil {
			topProducers[f.Varname] = n
		}
	}
	for _, f := range def.TopFields() {
		if f.Kind != schema.KindBlock {
			continue
		}
		blk := def.BlockFor(f)
		blockNode := g.Node(instance.Top(f.ID))
		if blk == nil || blockNode == nil {
			continue
		}
		for _, sub := range blk.Fields {
			if sub.Varname == "" {
				continue
			}
			if _, taken := aggregateProducers[sub.Varname]; !taken {
				aggregateProducers[sub.Varname] = blockNode
			}
		}
	}

	resolveTop := func(name string) *Node {
		if n, ok := topProducers[name]; ok {
			return n
		}
		return aggregateProducers[name]
	}

	// Second pass: edges from free variables.
	link := func(consumer *Node, resolve func(string) *Node) {
		for _, s := range sources(consumer.Field) {
			names, err := b.freeVariables(s)
			if err != nil {
				logger.Debug("Expression not parseable during graph build.",
					"node", consumer.ID.String(), "error", err)
				continue
			}
			for _, name := range names {
				producer := resolve(name)
				if producer == nil || producer == consumer {
					continue
				}
				if _, exists := consumer.Deps[producer.ID.String()]; exists {
					continue
				}
				logger.Debug("Linking implicit dependency.",
					"from", producer.ID.String(), "to", consumer.ID.String())
				if err := g.addEdge(producer, consumer); err != nil {
					logger.Debug("Skipping edge.", "error", err)
				}
			}
		}
	}

	for _, n := range g.Nodes() {
		if n.ID.InBlock() {
			continue
		}
		link(n, resolveTop)
	}
	for _, scope := range rowScopes {
		byVar := scope.byVar
		resolveRow := func(name string) *Node {
			if n, ok := byVar[name]; ok {
				return n
			}
			return resolveTop(name)
		}
		for _, n := range byVar {
			link(n, resolveRow)
		}
		// Row sub-fields without a varname still consume variables.
		for _, n := range g.Nodes() {
			if n.ID.Block == scope.blockID && n.ID.Row == scope.row && n.Field.Varname == "" {
				link(n, resolveRow)
			}
		}
	}

	g.detectCycles()
	if len(g.Cycles) > 0 {
		logger.Warn("Dependency cycles detected in form definition.",
			"count", len(g.Cycles), "first", g.Cycles[0])
	}
	return g
}

func (b *Builder) freeVariables(s exprSource) ([]string, error) {
	if s.template {
		return b.Port.TemplateVariables(s.src)
	}
	return b.Port.ExprVariables(s.src)
}

package engine

import (
	"context"
	"time"

	"github.com/vk/formflow/internal/blockrows"
	"github.com/vk/formflow/internal/datasource"
	"github.com/vk/formflow/internal/depgraph"
	"github.com/vk/formflow/internal/exprport"
	"github.com/vk/formflow/internal/navigator"
	"github.com/vk/formflow/internal/resolver"
	"github.com/vk/formflow/internal/schema"
)

const (
	// defaultBudget is the soft wall-clock allowance for one invocation.
	defaultBudget = 300 * time.Millisecond
	// defaultFetchTimeout is the hard timeout on remote option fetches.
	defaultFetchTimeout = 5 * time.Second
	// defaultCacheTTL bounds how long a rendered query's options are reused.
	defaultCacheTTL = time.Minute
)

// Options configures the external ports of an Engine. Zero values fall
// back to sensible defaults; a nil Fetcher gets an HTTP client with the
// default hard timeout.
type Options struct {
	Fetcher      datasource.Fetcher
	Records      datasource.RecordStore
	Budget       time.Duration
	FetchTimeout time.Duration
	CacheTTL     time.Duration
}

// Engine evaluates live calls and page turns against one form definition.
type Engine struct {
	def      *schema.FormDefinition
	port     exprport.Port
	builder  *depgraph.Builder
	expander *blockrows.Expander
	vis      *resolver.Visibility
	prefill  *resolver.Prefill
	sources  *datasource.Resolver
	nav      *navigator.Navigator
	budget   time.Duration

	// topVarnames lists varnames produced by top-level fields; a block
	// sub-aggregate never shadows one of these.
	topVarnames map[string]bool
}

// New wires an engine for the given definition.
func New(def *schema.FormDefinition, opts Options) *Engine {
	port := exprport.NewHCL()

	if opts.Budget == 0 {
		opts.Budget = defaultBudget
	}
	if opts.FetchTimeout == 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.Fetcher == nil {
		opts.Fetcher = datasource.NewHTTPFetcher(opts.FetchTimeout)
	}

	topVarnames := make(map[string]bool)
	for _, f := range def.TopFields() {
		if f.Varname != "" {
			topVarnames[f.Varname] = true
		}
	}

	return &Engine{
		def:      def,
		port:     port,
		builder:  &depgraph.Builder{Port: port},
		expander: &blockrows.Expander{Port: port},
		vis:      &resolver.Visibility{Port: port},
		prefill:  &resolver.Prefill{Port: port},
		sources: &datasource.Resolver{
			Port:    port,
			Fetcher: opts.Fetcher,
			Records: opts.Records,
			Cache:   datasource.NewCache(opts.CacheTTL),
		},
		nav:         navigator.New(port),
		budget:      opts.Budget,
		topVarnames: topVarnames,
	}
}

// Diagnostics builds the dependency graph at default row counts and
// returns its cycle diagnostics. The authoring subsystem calls this
// once at schema load time; implicated fields stay permanently
// unresolved at runtime.
func (e *Engine) Diagnostics(ctx context.Context) []string {
	g := e.builder.Build(ctx, e.def, nil)
	return g.Diagnostics()
}

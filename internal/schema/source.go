package schema

// SourceType discriminates the three data-source shapes.
type SourceType string

const (
	// SourceStatic is a literal option list authored in the schema.
	SourceStatic SourceType = "static"
	// SourceRemote is a templated URL fetched over HTTP.
	SourceRemote SourceType = "remote"
	// SourceRecords filters a structured record store with templated
	// predicates.
	SourceRecords SourceType = "records"
)

// SourceSpec describes where a field's selectable options come from.
type SourceSpec struct {
	Type SourceType `mapstructure:"type"`

	// Static options.
	Options []*StaticOption `mapstructure:"options"`

	// Remote query: URL and optional query fragment are templates
	// evaluated against the current context.
	URL   string `mapstructure:"url"`
	Query string `mapstructure:"query"`

	// Record-store query.
	RecordSet string          `mapstructure:"record_set"`
	Filters   []*RecordFilter `mapstructure:"filters"`

	// DropDisabled removes disabled records entirely instead of keeping
	// them flagged non-selectable.
	DropDisabled bool `mapstructure:"drop_disabled"`
}

// StaticOption is one literal entry of a static source.
type StaticOption struct {
	ID         string         `mapstructure:"id"`
	Text       string         `mapstructure:"text"`
	Disabled   bool           `mapstructure:"disabled"`
	Attributes map[string]any `mapstructure:"attributes"`
}

// FilterOp is the predicate operator of a record-store filter.
type FilterOp string

const (
	FilterEqual      FilterOp = "eq"
	FilterIn         FilterOp = "in"
	FilterBetween    FilterOp = "between"
	FilterInternalID FilterOp = "internal_id"
)

// RecordFilter is one templated predicate applied to a record set. The
// operand is evaluated against the current context before matching.
type RecordFilter struct {
	Attribute string   `mapstructure:"attribute"`
	Op        FilterOp `mapstructure:"op"`
	Value     string   `mapstructure:"value"`
}

package schema

// Kind is the closed set of field type variants. Behavior differences are
// dispatched through capability checks (Prefillable, SourceBacked, ...)
// rather than per-kind subtypes.
type Kind string

const (
	KindString   Kind = "string"
	KindText     Kind = "text"
	KindEmail    Kind = "email"
	KindBool     Kind = "bool"
	KindDate     Kind = "date"
	KindItem     Kind = "item"
	KindItems    Kind = "items"
	KindFile     Kind = "file"
	KindComputed Kind = "computed"
	KindBlock    Kind = "block"
	KindComment  Kind = "comment"
)

// FormDefinition is the root of the static form model.
type FormDefinition struct {
	Slug   string            `mapstructure:"slug"`
	Name   string            `mapstructure:"name"`
	Pages  []*Page           `mapstructure:"pages"`
	Blocks map[string]*Block `mapstructure:"blocks"`
}

// Page is an ordered group of fields plus its navigation gates.
type Page struct {
	ID             string           `mapstructure:"id"`
	Label          string           `mapstructure:"label"`
	Condition      string           `mapstructure:"condition"`
	Fields         []*Field         `mapstructure:"fields"`
	PostConditions []*PostCondition `mapstructure:"post_conditions"`
}

// PostCondition is a page-level boolean gate checked on forward
// navigation. ErrorMessage is itself a template.
type PostCondition struct {
	Condition    string `mapstructure:"condition"`
	ErrorMessage string `mapstructure:"error_message"`
}

// PrefillSpec configures a field's auto-computed content.
type PrefillSpec struct {
	Expr string `mapstructure:"expr"`
	// Locked makes the computed value always win over user input.
	Locked bool `mapstructure:"locked"`
	// FreezeOnce computes the value at first render only, so re-entering
	// a draft later never changes a committed answer.
	FreezeOnce bool `mapstructure:"freeze_once"`
}

// Field describes one form field, top-level or inside a block.
type Field struct {
	ID          string       `mapstructure:"id"`
	Label       string       `mapstructure:"label"`
	Varname     string       `mapstructure:"varname"`
	Kind        Kind         `mapstructure:"kind"`
	Condition   string       `mapstructure:"condition"`
	Prefill     *PrefillSpec `mapstructure:"prefill"`
	DataSource  *SourceSpec  `mapstructure:"data_source"`
	Required    bool         `mapstructure:"required"`
	DisplayMode string       `mapstructure:"display_mode"`
	// Template is the displayed content of comment fields.
	Template string `mapstructure:"template"`

	// Block settings, meaningful only for KindBlock.
	BlockRef          string `mapstructure:"block"`
	MinItems          int    `mapstructure:"min_items"`
	MaxItems          string `mapstructure:"max_items"` // may be a template
	DefaultItemsCount int    `mapstructure:"default_items_count"`
}

// Block is a named, reusable sub-schema instantiated as repeatable rows.
type Block struct {
	Slug   string   `mapstructure:"slug"`
	Name   string   `mapstructure:"name"`
	Fields []*Field `mapstructure:"fields"`
}

// Prefillable reports whether the field carries auto-computed content.
func (f *Field) Prefillable() bool {
	return f.Prefill != nil && f.Prefill.Expr != ""
}

// SourceBacked reports whether the field offers selectable options.
func (f *Field) SourceBacked() bool {
	return (f.Kind == KindItem || f.Kind == KindItems) && f.DataSource != nil
}

// Autocomplete reports whether options are fetched client-side through a
// query-parameterized URL rather than delivered inline.
func (f *Field) Autocomplete() bool {
	return f.Kind == KindItem && f.DisplayMode == "autocomplete"
}

// Fields yields every top-level field in declaration order, across pages.
func (d *FormDefinition) TopFields() []*Field {
	var out []*Field
	for _, page := range d.Pages {
		out = append(out, page.Fields...)
	}
	return out
}

// FieldByID finds a top-level field.
func (d *FormDefinition) FieldByID(id string) *Field {
	for _, f := range d.TopFields() {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// BlockFor resolves the block referenced by a block field.
func (d *FormDefinition) BlockFor(f *Field) *Block {
	if f == nil || f.Kind != KindBlock {
		return nil
	}
	return d.Blocks[f.BlockRef]
}

// SubFieldByID finds a field inside a block.
func (b *Block) SubFieldByID(id string) *Field {
	for _, f := range b.Fields {
		if f.ID == id {
			return f
		}
	}
	return nil
}

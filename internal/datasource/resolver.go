package datasource

import (
	"context"

	"github.com/vk/formflow/internal/ctxlog"
	"github.com/vk/formflow/internal/evalctx"
	"github.com/vk/formflow/internal/exprport"
	"github.com/vk/formflow/internal/schema"
	"github.com/zclconf/go-cty/cty"
)

// Resolver turns a SourceSpec into the ordered option list it currently
// offers, rendering any templated parts against the evaluation context.
type Resolver struct {
	Port    exprport.Port
	Fetcher Fetcher
	Records RecordStore
	Cache   *Cache
}

// Resolve returns the options a source currently offers. Template
// failures come back as *exprport.EvalError; remote/record failures as
// *SourceError. Both are recorded per field by the caller and never
// abort the request.
func (r *Resolver) Resolve(ctx context.Context, spec *schema.SourceSpec, scope *evalctx.Context) ([]OptionRecord, error) {
	switch spec.Type {
	case schema.SourceStatic:
		return r.resolveStatic(spec), nil
	case schema.SourceRemote:
		return r.resolveRemote(ctx, spec, scope)
	case schema.SourceRecords:
		return r.resolveRecords(ctx, spec, scope)
	}
	return nil, nil
}

// RenderURL renders the source URL template without fetching; used for
// autocomplete fields whose client pulls options itself.
func (r *Resolver) RenderURL(ctx context.Context, spec *schema.SourceSpec, scope *evalctx.Context) (string, error) {
	v, err := r.Port.EvaluateTemplate(ctx, spec.URL, scope)
	if err != nil {
		return "", err
	}
	return stringValue(v), nil
}

func (r *Resolver) resolveStatic(spec *schema.SourceSpec) []OptionRecord {
	records := make([]OptionRecord, 0, len(spec.Options))
	for _, opt := range spec.Options {
		records = append(records, OptionRecord{
			ID:         opt.ID,
			Text:       opt.Text,
			Disabled:   opt.Disabled,
			Attributes: opt.Attributes,
		})
	}
	return normalize(records, spec.DropDisabled)
}

func (r *Resolver) resolveRemote(ctx context.Context, spec *schema.SourceSpec, scope *evalctx.Context) ([]OptionRecord, error) {
	logger := ctxlog.FromContext(ctx)

	url, err := r.Port.EvaluateTemplate(ctx, spec.URL, scope)
	if err != nil {
		return nil, err
	}
	q := SourceQuery{URL: stringValue(url)}
	if spec.Query != "" {
		qv, err := r.Port.EvaluateTemplate(ctx, spec.Query, scope)
		if err != nil {
			return nil, err
		}
		q.Query = stringValue(qv)
	}

	// An upstream field that is still empty renders an empty query; no
	// remote call is made in that case.
	if q.URL == "" || (spec.Query != "" && q.Query == "") {
		logger.Debug("Source query rendered empty, skipping remote call.")
		return nil, nil
	}

	if cached, ok := r.Cache.Get(q.CacheKey()); ok {
		return cached, nil
	}

	records, err := r.Fetcher.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	records = normalize(records, spec.DropDisabled)
	r.Cache.Put(q.CacheKey(), records)
	return records, nil
}

func (r *Resolver) resolveRecords(ctx context.Context, spec *schema.SourceSpec, scope *evalctx.Context) ([]OptionRecord, error) {
	// Evaluate operands first so a template failure surfaces before any
	// store access.
	operands := make([]cty.Value, len(spec.Filters))
	for i, flt := range spec.Filters {
		v, err := r.Port.EvaluateTemplate(ctx, flt.Value, scope)
		if err != nil {
			return nil, err
		}
		operands[i] = v
	}

	all, err := r.Records.Records(ctx, spec.RecordSet)
	if err != nil {
		return nil, &SourceError{Query: SourceQuery{URL: "records:" + spec.RecordSet}, Cause: err}
	}

	records := make([]OptionRecord, 0, len(all))
	for _, rec := range all {
		matched := true
		for i, flt := range spec.Filters {
			if !matchFilter(rec, flt, operands[i]) {
				matched = false
				break
			}
		}
		if matched {
			records = append(records, OptionRecord{
				ID:         rec.ID,
				Text:       rec.Text,
				Disabled:   rec.Disabled,
				Attributes: rec.Attributes,
			})
		}
	}
	return normalize(records, spec.DropDisabled), nil
}

func stringValue(v cty.Value) string {
	if v == cty.NilVal || v.IsNull() || !v.IsKnown() || v.Type() != cty.String {
		return ""
	}
	return v.AsString()
}

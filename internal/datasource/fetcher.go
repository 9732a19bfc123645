package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"resty.dev/v3"
)

// SourceQuery is a fully-rendered remote query, ready to dispatch.
type SourceQuery struct {
	URL   string
	Query string
}

// CacheKey is the canonical cache identity of the query.
func (q SourceQuery) CacheKey() string {
	if q.Query == "" {
		return q.URL
	}
	return q.URL + "?q=" + q.Query
}

// SourceError wraps a remote or record-store failure: timeout, non-2xx
// status, malformed payload. It is recorded per field and never aborts
// the surrounding request.
type SourceError struct {
	Query SourceQuery
	Cause error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	return fmt.Sprintf("data source failure for %q: %v", e.Query.URL, e.Cause)
}

// Unwrap exposes the underlying cause.
func (e *SourceError) Unwrap() error {
	return e.Cause
}

// Fetcher is the Data Source Port for remote queries.
type Fetcher interface {
	Fetch(ctx context.Context, q SourceQuery) ([]OptionRecord, error)
}

// HTTPFetcher fetches option payloads over HTTP with a hard timeout.
// The expected payload shape is `{"data": [{"id": ..., "text": ...}]}`;
// ids may arrive as numbers or strings.
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher creates a fetcher with the given hard timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

// Close releases the underlying client resources.
func (f *HTTPFetcher) Close() error {
	return f.client.Close()
}

type remotePayload struct {
	Data []remoteRecord `json:"data"`
}

type remoteRecord struct {
	ID         any            `json:"id"`
	Text       string         `json:"text"`
	Disabled   bool           `json:"disabled"`
	Attributes map[string]any `json:"attributes"`
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, q SourceQuery) ([]OptionRecord, error) {
	req := f.client.R().SetContext(ctx)
	if q.Query != "" {
		req.SetQueryParam("q", q.Query)
	}
	resp, err := req.Get(q.URL)
	if err != nil {
		return nil, &SourceError{Query: q, Cause: err}
	}
	if !resp.IsSuccess() {
		return nil, &SourceError{Query: q, Cause: fmt.Errorf("unexpected status %s", resp.Status())}
	}

	var payload remotePayload
	if err := json.Unmarshal(resp.Bytes(), &payload); err != nil {
		return nil, &SourceError{Query: q, Cause: fmt.Errorf("malformed payload: %w", err)}
	}

	records := make([]OptionRecord, 0, len(payload.Data))
	for _, rec := range payload.Data {
		records = append(records, OptionRecord{
			ID:         NormalizeID(rec.ID),
			Text:       rec.Text,
			Disabled:   rec.Disabled,
			Attributes: rec.Attributes,
		})
	}
	return records, nil
}

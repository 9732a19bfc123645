package datasource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/formflow/internal/evalctx"
	"github.com/vk/formflow/internal/exprport"
	"github.com/vk/formflow/internal/schema"
	"github.com/zclconf/go-cty/cty"
)

func newResolver(fetcher Fetcher, store RecordStore, cache *Cache) *Resolver {
	return &Resolver{
		Port:    exprport.NewHCL(),
		Fetcher: fetcher,
		Records: store,
		Cache:   cache,
	}
}

func TestResolve_Static(t *testing.T) {
	spec := &schema.SourceSpec{
		Type: schema.SourceStatic,
		Options: []*schema.StaticOption{
			{ID: "1", Text: "One"},
			{ID: "01", Text: "Duplicate of one"}, // same normalized id
			{ID: "2", Text: "Two", Disabled: true},
		},
	}
	r := newResolver(nil, nil, nil)

	records, err := r.Resolve(context.Background(), spec, evalctx.New())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "One", records[0].Text)
	assert.True(t, records[1].Disabled, "disabled entries are kept, flagged")

	spec.DropDisabled = true
	records, err = r.Resolve(context.Background(), spec, evalctx.New())
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestResolve_Remote(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":3,"text":"Three"},{"id":"3","text":"Dup"},{"id":"4","text":"Four"}]}`))
	}))
	defer srv.Close()

	scope := evalctx.New()
	scope.Set("country", cty.StringVal("fr"))
	spec := &schema.SourceSpec{Type: schema.SourceRemote, URL: srv.URL + "/cities/${country}"}
	r := newResolver(NewHTTPFetcher(time.Second), nil, NewCache(time.Minute))

	records, err := r.Resolve(context.Background(), spec, scope)
	require.NoError(t, err)
	require.Len(t, records, 2, "numeric and string spellings of the same id collapse")
	assert.Equal(t, "3", records[0].ID)
	assert.Equal(t, "Three", records[0].Text)

	// Second resolution is served from the cache.
	_, err = r.Resolve(context.Background(), spec, scope)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestResolve_EmptyQuerySkipsRemoteCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		t.Fatal("no remote call expected")
	}))
	defer srv.Close()

	scope := evalctx.New()
	scope.Set("country", cty.StringVal("")) // upstream not yet filled
	spec := &schema.SourceSpec{Type: schema.SourceRemote, URL: srv.URL, Query: "${country}"}
	r := newResolver(NewHTTPFetcher(time.Second), nil, nil)

	records, err := r.Resolve(context.Background(), spec, scope)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestResolve_RemoteFailures(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		spec := &schema.SourceSpec{Type: schema.SourceRemote, URL: srv.URL}
		r := newResolver(NewHTTPFetcher(time.Second), nil, nil)
		_, err := r.Resolve(context.Background(), spec, evalctx.New())
		var srcErr *SourceError
		require.ErrorAs(t, err, &srcErr)
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		spec := &schema.SourceSpec{Type: schema.SourceRemote, URL: srv.URL}
		r := newResolver(NewHTTPFetcher(20*time.Millisecond), nil, nil)
		_, err := r.Resolve(context.Background(), spec, evalctx.New())
		var srcErr *SourceError
		require.ErrorAs(t, err, &srcErr)
	})

	t.Run("malformed payload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		defer srv.Close()

		spec := &schema.SourceSpec{Type: schema.SourceRemote, URL: srv.URL}
		r := newResolver(NewHTTPFetcher(time.Second), nil, nil)
		_, err := r.Resolve(context.Background(), spec, evalctx.New())
		var srcErr *SourceError
		require.ErrorAs(t, err, &srcErr)
	})
}

func TestResolve_Records(t *testing.T) {
	store := &MemoryRecordStore{Sets: map[string][]Record{
		"cities": {
			{ID: "1", Text: "Lyon", Attributes: map[string]any{"country": "fr", "pop": 500000.0}},
			{ID: "2", Text: "Paris", Attributes: map[string]any{"country": "fr", "pop": 2000000.0}},
			{ID: "3", Text: "Berlin", Attributes: map[string]any{"country": "de", "pop": 3600000.0}},
		},
	}}
	r := newResolver(nil, store, nil)
	scope := evalctx.New()
	scope.Set("country", cty.StringVal("fr"))

	t.Run("equality filter with templated operand", func(t *testing.T) {
		spec := &schema.SourceSpec{
			Type: schema.SourceRecords, RecordSet: "cities",
			Filters: []*schema.RecordFilter{
				{Attribute: "country", Op: schema.FilterEqual, Value: "${country}"},
			},
		}
		records, err := r.Resolve(context.Background(), spec, scope)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "Lyon", records[0].Text)
	})

	t.Run("between filter", func(t *testing.T) {
		spec := &schema.SourceSpec{
			Type: schema.SourceRecords, RecordSet: "cities",
			Filters: []*schema.RecordFilter{
				{Attribute: "pop", Op: schema.FilterBetween, Value: `${[1000000, 4000000]}`},
			},
		}
		records, err := r.Resolve(context.Background(), spec, scope)
		require.NoError(t, err)
		require.Len(t, records, 2)
	})

	t.Run("internal id filter", func(t *testing.T) {
		spec := &schema.SourceSpec{
			Type: schema.SourceRecords, RecordSet: "cities",
			Filters: []*schema.RecordFilter{
				{Op: schema.FilterInternalID, Value: "2"},
			},
		}
		records, err := r.Resolve(context.Background(), spec, scope)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "Paris", records[0].Text)
	})

	t.Run("unknown set is a SourceError", func(t *testing.T) {
		spec := &schema.SourceSpec{Type: schema.SourceRecords, RecordSet: "nope"}
		_, err := r.Resolve(context.Background(), spec, scope)
		var srcErr *SourceError
		require.ErrorAs(t, err, &srcErr)
	})
}

func TestCache_TTL(t *testing.T) {
	c := NewCache(time.Minute)
	base := time.Now()
	c.now = func() time.Time { return base }

	c.Put("k", []OptionRecord{{ID: "1", Text: "One"}})
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Len(t, got, 1)

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestIDByText(t *testing.T) {
	records := []OptionRecord{{ID: "1", Text: "One"}, {ID: "2", Text: "Two"}}
	id, ok := IDByText(records, "Two")
	require.True(t, ok)
	assert.Equal(t, "2", id)

	_, ok = IDByText(records, "Three")
	assert.False(t, ok)
}

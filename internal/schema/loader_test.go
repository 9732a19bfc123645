package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "slug": "expenses",
  "name": "Expense report",
  "pages": [
    {
      "id": "p1",
      "label": "Details",
      "fields": [
        {"id": "who", "varname": "who", "kind": "string", "required": true},
        {"id": "greeting", "varname": "greeting", "kind": "computed",
         "prefill": {"expr": "Hello ${who}"}},
        {"id": "trips", "varname": "trips", "kind": "block", "block": "trip",
         "max_items": "3"},
        {"id": "note", "kind": "comment", "template": "${greeting}"}
      ],
      "post_conditions": [
        {"condition": "who != \"\"", "error_message": "who is required"}
      ]
    }
  ],
  "blocks": {
    "trip": {
      "name": "Trip",
      "fields": [
        {"id": "destination", "varname": "destination", "kind": "string"},
        {"id": "amount", "varname": "amount", "kind": "string"}
      ]
    }
  }
}`

func TestParseJSON(t *testing.T) {
	def, err := ParseJSON([]byte(sampleJSON))
	require.NoError(t, err)

	assert.Equal(t, "expenses", def.Slug)
	require.Len(t, def.Pages, 1)
	require.Len(t, def.Pages[0].Fields, 4)

	greeting := def.FieldByID("greeting")
	require.NotNil(t, greeting)
	assert.Equal(t, KindComputed, greeting.Kind)
	require.True(t, greeting.Prefillable())
	// Computed fields are forced to locked during normalization.
	assert.True(t, greeting.Prefill.Locked)

	trips := def.FieldByID("trips")
	require.NotNil(t, trips)
	blk := def.BlockFor(trips)
	require.NotNil(t, blk)
	assert.Equal(t, "trip", blk.Slug)
	assert.NotNil(t, blk.SubFieldByID("amount"))
	assert.Equal(t, 1, trips.DefaultItemsCount)
}

func TestParseYAML(t *testing.T) {
	doc := `
slug: simple
pages:
  - id: p1
    fields:
      - id: a
        varname: a
        kind: string
`
	def, err := ParseYAML([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "simple", def.Slug)
	assert.NotNil(t, def.FieldByID("a"))
}

func TestParse_SchemaViolations(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
	}{
		{"missing pages", `{"slug": "x"}`},
		{"bad field id", `{"slug":"x","pages":[{"id":"p1","fields":[{"id":"a-b","kind":"string"}]}]}`},
		{"unknown kind", `{"slug":"x","pages":[{"id":"p1","fields":[{"id":"a","kind":"wat"}]}]}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseJSON([]byte(tc.doc))
			assert.Error(t, err)
		})
	}
}

func TestValidate_StructuralRules(t *testing.T) {
	t.Run("duplicate ids", func(t *testing.T) {
		doc := `{"slug":"x","pages":[{"id":"p1","fields":[
			{"id":"a","kind":"string"},{"id":"a","kind":"string"}]}]}`
		_, err := ParseJSON([]byte(doc))
		assert.ErrorContains(t, err, "duplicate field id")
	})

	t.Run("unknown block reference", func(t *testing.T) {
		doc := `{"slug":"x","pages":[{"id":"p1","fields":[
			{"id":"b","kind":"block","block":"nope"}]}]}`
		_, err := ParseJSON([]byte(doc))
		assert.ErrorContains(t, err, "unknown block")
	})

	t.Run("nested blocks rejected", func(t *testing.T) {
		doc := `{"slug":"x",
			"pages":[{"id":"p1","fields":[{"id":"b","kind":"block","block":"blk"}]}],
			"blocks":{"blk":{"fields":[{"id":"inner","kind":"block","block":"blk"}]}}}`
		_, err := ParseJSON([]byte(doc))
		assert.ErrorContains(t, err, "nested block")
	})
}

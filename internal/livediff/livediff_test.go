package livediff

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/formflow/internal/datasource"
)

func TestDiff(t *testing.T) {
	t.Run("identical projections produce no entry", func(t *testing.T) {
		p := Projection{Visible: true, HasContent: true, Content: "hello"}
		assert.Nil(t, Diff(p, p))
	})

	t.Run("conditional fields always report visibility", func(t *testing.T) {
		p := Projection{Visible: true, ReportVisible: true}
		entry := Diff(p, p)
		require.NotNil(t, entry)
		require.NotNil(t, entry.Visible)
		assert.True(t, *entry.Visible)
	})

	t.Run("visibility flip", func(t *testing.T) {
		entry := Diff(Projection{Visible: true}, Projection{Visible: false})
		require.NotNil(t, entry)
		require.NotNil(t, entry.Visible)
		assert.False(t, *entry.Visible)
		assert.Nil(t, entry.Content)
	})

	t.Run("content clearing to empty string is still a change", func(t *testing.T) {
		before := Projection{Visible: true, HasContent: true, Content: "x"}
		after := Projection{Visible: true, HasContent: true, Content: ""}
		entry := Diff(before, after)
		require.NotNil(t, entry)
		require.NotNil(t, entry.Content)
		assert.Equal(t, "", *entry.Content)

		raw, err := json.Marshal(entry)
		require.NoError(t, err)
		assert.JSONEq(t, `{"content": ""}`, string(raw))
	})

	t.Run("items compared by id, text, disabled", func(t *testing.T) {
		before := Projection{Visible: true, HasItems: true,
			Items: []datasource.OptionRecord{{ID: "1", Text: "One"}}}
		same := Projection{Visible: true, HasItems: true,
			Items: []datasource.OptionRecord{{ID: "1", Text: "One"}}}
		assert.Nil(t, Diff(before, same))

		changed := Projection{Visible: true, HasItems: true,
			Items: []datasource.OptionRecord{{ID: "1", Text: "One"}, {ID: "2", Text: "Two"}}}
		entry := Diff(before, changed)
		require.NotNil(t, entry)
		assert.Len(t, entry.Items, 2)
	})

	t.Run("options emptying out is a change", func(t *testing.T) {
		before := Projection{Visible: true, HasItems: true,
			Items: []datasource.OptionRecord{{ID: "1", Text: "One"}}}
		after := Projection{Visible: true, HasItems: true}
		entry := Diff(before, after)
		require.NotNil(t, entry)
		require.NotNil(t, entry.Items)
		assert.Empty(t, entry.Items)
	})

	t.Run("error marker always surfaces", func(t *testing.T) {
		p := Projection{Visible: true}
		failed := Projection{Visible: true, Error: "data source failure"}
		entry := Diff(p, failed)
		require.NotNil(t, entry)
		assert.Equal(t, "data source failure", entry.Error)
	})
}

func TestRequest(t *testing.T) {
	var req Request
	raw := `{
		"current_values": {"name": "Ada", "city": 3},
		"changed_field_ids": ["init"],
		"prefilled_flags": ["city"]
	}`
	require.NoError(t, json.Unmarshal([]byte(raw), &req))
	assert.True(t, req.IsInit())
	assert.Equal(t, map[string]bool{"city": true}, req.PrefilledSet())
	assert.Equal(t, "Ada", req.Values["name"])
}

func TestResponseShape(t *testing.T) {
	resp := Failure("schema mismatch")
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"result": "error", "reason": "schema mismatch"}`, string(raw))

	ok := Success(nil, false)
	raw, err = json.Marshal(ok)
	require.NoError(t, err)
	assert.JSONEq(t, `{"result": "success", "patch": {}}`, string(raw))
}

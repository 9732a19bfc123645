package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSchema(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "form.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid definition", func(t *testing.T) {
		path := writeSchema(t, `{
			"slug": "ok_form",
			"pages": [{"id": "p1", "fields": [
				{"id": "a", "varname": "a", "kind": "string"}
			]}]
		}`)

		var out bytes.Buffer
		cmd := newRootCmd(&out)
		cmd.SetArgs([]string{"validate", "--schema", path})
		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "ok_form: ok")
	})

	t.Run("cyclic definition fails with diagnostics", func(t *testing.T) {
		path := writeSchema(t, `{
			"slug": "cyclic",
			"pages": [{"id": "p1", "fields": [
				{"id": "a", "varname": "av", "kind": "computed", "prefill": {"expr": "${bv}"}},
				{"id": "b", "varname": "bv", "kind": "computed", "prefill": {"expr": "${av}"}}
			]}]
		}`)

		var out bytes.Buffer
		cmd := newRootCmd(&out)
		cmd.SetArgs([]string{"validate", "--schema", path})
		require.Error(t, cmd.Execute())
		assert.Contains(t, out.String(), "dependency cycle")
	})

	t.Run("unparseable definition", func(t *testing.T) {
		path := writeSchema(t, `{"slug": "broken"}`)

		cmd := newRootCmd(bytes.NewBuffer(nil))
		cmd.SetArgs([]string{"validate", "--schema", path})
		assert.Error(t, cmd.Execute())
	})
}

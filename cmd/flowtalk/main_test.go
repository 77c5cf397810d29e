package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const survey = `
vertices:
  start:
    kind: entry
    text: Ready?
    props:
      module: confirm
  yes:
    props:
      module: message
edges:
  - start: start
    end: "yes"
    text: Sure
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "survey.yaml"), []byte(survey), 0o644))

	t.Run("Version", func(t *testing.T) {
		out, err := execute(t, "version")
		require.NoError(t, err)
		assert.Contains(t, out, "flowtalk version v")
	})

	t.Run("Graph", func(t *testing.T) {
		out, err := execute(t, "graph", "survey", "--dir", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "graph TD")
		assert.Contains(t, out, `start(["Ready?"])`)
		assert.Contains(t, out, `-- "Sure" -->`)
	})

	t.Run("Validate", func(t *testing.T) {
		out, err := execute(t, "validate", "--dir", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "✓ survey")
	})

	t.Run("Journal Requires Flag", func(t *testing.T) {
		_, err := execute(t, "journal", "ls", "--dir", dir)
		assert.ErrorIs(t, err, errNoJournal)
	})
}

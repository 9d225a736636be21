package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { configPath = "" })
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestCheck(t *testing.T) {
	out, _, err := execute(t, "check", `genre "horror" or tag "slasher" and not watched`)
	require.NoError(t, err)
	assert.Equal(t, "GENRE \"horror\" OR TAG \"slasher\" AND NOT WATCHED\n", out)

	_, errOut, err := execute(t, "check", `GENRE AND`)
	require.Error(t, err)
	assert.Contains(t, errOut, "position 0")
}

func TestImportThenRun(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	snapPath := filepath.Join(dir, "snapshot.yaml")

	require.NoError(t, os.WriteFile(cfgPath, []byte(`
database:
  path: `+filepath.Join(dir, "db.sqlite")+`
logging:
  level: disabled
collections:
  definitions:
    - name: Heists
      match:
        tags: [heist]
`), 0644))
	require.NoError(t, os.WriteFile(snapPath, []byte(`
items:
  - {id: heat, kind: movie, title: Heat, year: 1995, tags: [heist]}
  - {id: alien, kind: movie, title: Alien, year: 1979}
`), 0644))

	out, _, err := execute(t, "--config", cfgPath, "import", snapPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"entities": 2`)

	out, _, err = execute(t, "--config", cfgPath, "run")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "Heists"`)
	assert.Contains(t, out, `"status": "reconciled"`)
	assert.Contains(t, out, `"added": 1`)
}

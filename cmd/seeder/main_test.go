package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSeedData_DevFixtures(t *testing.T) {
	files, err := resolveFiles("", "../../seed")
	require.NoError(t, err)

	data, err := loadSeedData(files)
	require.NoError(t, err)

	assert.Len(t, data.Users, 7)
	assert.Len(t, data.Requests, 3)
	assert.NoError(t, validateSeedData(data))
}

func TestValidateSeedData_ReportsBadReferences(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
users:
  - email: a@example.org
    role: janitor
requests:
  - title: Blankets
    requester_email: nobody@example.org
    history:
      - to: archived
        by: a@example.org
`), 0o644))

	data, err := loadSeedData([]string{path})
	require.NoError(t, err)

	err = validateSeedData(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown role "janitor"`)
	assert.Contains(t, err.Error(), "requester nobody@example.org not found")
	assert.Contains(t, err.Error(), `unknown status "archived"`)
}

func TestResolveFiles(t *testing.T) {
	_, err := resolveFiles("", "")
	assert.EqualError(t, err, "must specify either --file or --dir")

	_, err = resolveFiles("a.yaml", "dir")
	assert.EqualError(t, err, "cannot specify both --file and --dir")

	files, err := resolveFiles("a.yaml", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.yaml"}, files)
}

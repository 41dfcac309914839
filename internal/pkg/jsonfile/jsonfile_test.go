package jsonfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func TestLoad_MissingFile(t *testing.T) {
	var d doc
	found, err := Load(filepath.Join(t.TempDir(), "absent.json"), &d)

	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, doc{}, d)
}

func TestLoad_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	var d doc
	found, err := Load(path, &d)

	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	var d doc
	_, err := Load(path, &d)

	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")

	require.NoError(t, Save(path, doc{Name: "a", Items: []string{"x", "y"}}, 0o600))

	var d doc
	found, err := Load(path, &d)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, doc{Name: "a", Items: []string{"x", "y"}}, d)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSave_ReplacesWholeDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")

	require.NoError(t, Save(path, doc{Name: "first", Items: []string{"1", "2", "3"}}, 0o600))
	require.NoError(t, Save(path, doc{Name: "second"}, 0o600))

	var d doc
	_, err := Load(path, &d)
	require.NoError(t, err)
	assert.Equal(t, doc{Name: "second"}, d)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, Save(path, doc{}, 0o600))

	require.NoError(t, Remove(path))
	require.NoError(t, Remove(path), "removing a missing file is not an error")

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

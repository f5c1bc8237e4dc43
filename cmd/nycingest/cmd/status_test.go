package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingesterr "github.com/Aman-CERP/nycingest/internal/errors"
)

func TestStatusCmd_NotCreated(t *testing.T) {
	// Given: an empty data directory
	dir := testEnv(t)
	writeProjectConfig(t, dir, "http://127.0.0.1:1", "bleve")

	// When: showing status
	stdout, _, err := executeCmd(t, "status")

	// Then: the index is reported as absent
	require.NoError(t, err)
	assert.Contains(t, stdout, "Index Status: nycproject")
	assert.Contains(t, stdout, "not created")
	assert.Contains(t, stdout, filepath.Join(dir, "data", "nycproject.bleve"))
}

func TestStatusCmd_JSONFlagsOverrideConfig(t *testing.T) {
	dir := testEnv(t)
	writeProjectConfig(t, dir, "http://127.0.0.1:1", "bleve")

	stdout, _, err := executeCmd(t, "status", "--json", "--backend", "sqlite", "--index", "tickets")

	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, "tickets", info["index_name"])
	assert.Equal(t, "sqlite", info["backend"])
	assert.Equal(t, false, info["exists"])
}

func TestStatusCmd_UnknownBackend(t *testing.T) {
	testEnv(t)

	_, _, err := executeCmd(t, "status", "--backend", "elasticsearch")

	require.Error(t, err)
	assert.Equal(t, ingesterr.ErrCodeConfigInvalid, ingesterr.GetCode(err))
}

func TestStorageSize(t *testing.T) {
	// Given: a database file with a WAL sibling and a directory index
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.db"), make([]byte, 100), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.db-wal"), make([]byte, 50), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "b.bleve", "store"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.bleve", "store", "x"), make([]byte, 30), 0644))

	// Then: sizes include siblings and nested files
	assert.Equal(t, int64(150), storageSize(filepath.Join(dir, "a.db")))
	assert.Equal(t, int64(30), storageSize(filepath.Join(dir, "b.bleve")))
	assert.Zero(t, storageSize(filepath.Join(dir, "missing")))
}

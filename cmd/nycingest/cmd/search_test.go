package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingesterr "github.com/Aman-CERP/nycingest/internal/errors"
)

func TestSearchCmd_NoIndex(t *testing.T) {
	// Given: nothing has been pushed
	dir := testEnv(t)
	writeProjectConfig(t, dir, "http://127.0.0.1:1", "sqlite")

	// When: searching
	_, _, err := executeCmd(t, "search", "anything")

	// Then: the user is told to push first
	require.Error(t, err)
	assert.Equal(t, ingesterr.ErrCodeIndexOpen, ingesterr.GetCode(err))
	assert.NoFileExists(t, filepath.Join(dir, "data", "nycproject.db"), "search must not create the index")
}

func TestSearchCmd_TextOutput(t *testing.T) {
	// Given: pushed records
	dir := testEnv(t)
	_, srv := newFakeSODA(t, 3)
	writeProjectConfig(t, dir, srv.URL, "sqlite")
	t.Setenv("APP_KEY", "k")
	_, _, err := executeCmd(t, "fetch", "--page-size", "5", "--num-pages", "1",
		"--output", filepath.Join(dir, "o.txt"), "--push-index", "--no-tui")
	require.NoError(t, err)

	// When: searching in text mode
	stdout, _, err := executeCmd(t, "search", "PLT3")

	// Then: the hit and its fields are listed
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 results for \"PLT3\"")
	assert.Contains(t, stdout, "1. 1003")
	assert.Contains(t, stdout, "fine_amount: 63.5")
	assert.Contains(t, stdout, "issue_date: 2024-01-03")

	// And: a miss says so
	stdout, _, err = executeCmd(t, "search", "NOPE")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No results")
}

func TestSearchCmd_InvalidFormat(t *testing.T) {
	testEnv(t)

	_, _, err := executeCmd(t, "search", "x", "--format", "xml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestHitLines(t *testing.T) {
	lines := hitLines(map[string]any{
		"plate":       "ABC",
		"fine_amount": 65.0,
		"empty":       "",
		"violation":   nil,
	})

	assert.Equal(t, []string{"fine_amount: 65", "plate: ABC"}, lines)
}

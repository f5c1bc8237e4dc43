package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogsCmd_TailAndFilter(t *testing.T) {
	// Given: a log file with mixed levels
	testEnv(t)
	path := filepath.Join(t.TempDir(), "nycingest.log")
	content := strings.Join([]string{
		`{"time":"2024-01-15T10:00:00.000Z","level":"INFO","msg":"fetch_started","rows":5}`,
		`{"time":"2024-01-15T10:00:01.000Z","level":"DEBUG","msg":"page_fetched","page":1}`,
		`{"time":"2024-01-15T10:00:02.000Z","level":"ERROR","msg":"fetch_failed"}`,
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	// When: showing warn and above
	stdout, stderr, err := executeCmd(t, "logs", "--file", path, "--level", "warn")

	// Then: only the error line is printed
	require.NoError(t, err)
	assert.Contains(t, stderr, path)
	assert.Contains(t, stdout, "fetch_failed")
	assert.NotContains(t, stdout, "fetch_started")

	// When: filtering by pattern with the last two lines only
	stdout, _, err = executeCmd(t, "logs", "--file", path, "-n", "2", "--filter", "page")

	// Then: only the matching line of the tail is printed
	require.NoError(t, err)
	assert.Contains(t, stdout, "page_fetched")
	assert.NotContains(t, stdout, "fetch_failed")
}

func TestLogsCmd_MissingFile(t *testing.T) {
	testEnv(t)

	_, _, err := executeCmd(t, "logs", "--file", filepath.Join(t.TempDir(), "none.log"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "log file not found")
}

func TestLogsCmd_BadPattern(t *testing.T) {
	testEnv(t)
	path := filepath.Join(t.TempDir(), "x.log")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

	_, _, err := executeCmd(t, "logs", "--file", path, "--filter", "(")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

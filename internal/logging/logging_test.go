package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_StderrOnly(t *testing.T) {
	// Given: no log file and a captured stderr
	buf := &bytes.Buffer{}
	cfg := DefaultConfig()
	cfg.Level = "info"
	cfg.Stderr = buf

	// When: logging through the configured logger
	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	defer cleanup()
	logger.Info("fetch_started", slog.Int("rows", 5))
	logger.Debug("hidden")

	// Then: one JSON line at info level
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "fetch_started", entry["msg"])
	assert.Equal(t, 5.0, entry["rows"])
}

func TestSetup_FileOnly(t *testing.T) {
	// Given: a debug config pointing at a temp file
	path := filepath.Join(t.TempDir(), "logs", "nycingest.log")
	stderr := &bytes.Buffer{}
	cfg := DebugConfig()
	cfg.FilePath = path
	cfg.Stderr = stderr

	// When: logging
	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	logger.Debug("page_fetched", slog.Int("page", 1))
	cleanup()

	// Then: the file holds the entry and stderr stays quiet
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"page_fetched"`)
	assert.Empty(t, stderr.String())
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, LevelFromString(in), in)
	}
}

func TestDefaultLogPath(t *testing.T) {
	assert.Equal(t, "nycingest.log", filepath.Base(DefaultLogPath()))
	assert.Equal(t, DefaultLogDir(), filepath.Dir(DefaultLogPath()))
}

func TestFindLogFile_Explicit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.log")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))

	got, err := FindLogFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = FindLogFile(path + ".missing")
	assert.Error(t, err)
}

func TestRotatingWriter_Rotates(t *testing.T) {
	// Given: a writer with a tiny size limit
	path := filepath.Join(t.TempDir(), "nycingest.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	w.maxSize = 10

	// When: writing four lines, each past the limit
	for _, line := range []string{"first-line\n", "second-line\n", "third-line\n", "fourth-line\n"} {
		_, err := w.Write([]byte(line))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	// Then: the current file holds the newest line and at most 2 backups exist
	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fourth-line\n", string(current))

	backup1, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "third-line\n", string(backup1))

	backup2, err := os.ReadFile(path + ".2")
	require.NoError(t, err)
	assert.Equal(t, "second-line\n", string(backup2))

	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err))
}

func TestViewer_TailFilters(t *testing.T) {
	// Given: a log file with mixed levels and one garbage line
	path := filepath.Join(t.TempDir(), "nycingest.log")
	content := strings.Join([]string{
		`{"time":"2024-01-15T10:00:00.000Z","level":"DEBUG","msg":"page_fetched","page":1}`,
		`{"time":"2024-01-15T10:00:01.000Z","level":"INFO","msg":"fetch_complete","pages":3}`,
		`not json`,
		`{"time":"2024-01-15T10:00:02.000Z","level":"ERROR","msg":"fetch_failed"}`,
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	// When: tailing at info level
	v := NewViewer(ViewerConfig{Level: "info", NoColor: true}, &bytes.Buffer{})
	entries, err := v.Tail(path, 0)

	// Then: debug is dropped, unparseable lines pass through
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "fetch_complete", entries[0].Msg)
	assert.False(t, entries[1].IsValid)
	assert.Equal(t, "fetch_failed", entries[2].Msg)
}

func TestViewer_TailLastN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nycingest.log")
	content := `{"level":"INFO","msg":"a"}` + "\n" + `{"level":"INFO","msg":"b"}` + "\n" + `{"level":"INFO","msg":"c"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := NewViewer(ViewerConfig{Pattern: regexp.MustCompile(`"msg":"[bc]"`), NoColor: true}, &bytes.Buffer{})
	entries, err := v.Tail(path, 2)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Msg)
	assert.Equal(t, "c", entries[1].Msg)
}

func TestViewer_FormatEntry(t *testing.T) {
	// Given: a parsed entry with attributes
	buf := &bytes.Buffer{}
	v := NewViewer(ViewerConfig{NoColor: true}, buf)
	entry := parseLine(`{"time":"2024-01-15T10:00:01.5Z","level":"INFO","msg":"page_fetched","records":2,"offset":4}`)

	// When: printing
	v.Print([]LogEntry{entry})

	// Then: time, padded level, message and sorted attributes
	assert.Equal(t, "10:00:01.500 INFO  page_fetched offset=4 records=2\n", buf.String())
}

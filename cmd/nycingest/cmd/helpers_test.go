package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/nycingest/internal/config"
)

// testEnv isolates a command run: temp HOME, empty user config, a temp
// working directory and no NYCINGEST_* or APP_KEY variables. It returns the
// working directory.
func testEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("NO_COLOR", "1")
	for _, k := range []string{
		config.EnvDomain, config.EnvDataset, config.EnvIndexName, config.EnvIndexBackend,
		config.EnvDataDir, config.EnvLogLevel, config.EnvTimeout, config.EnvAppKey,
	} {
		t.Setenv(k, "")
	}
	_ = os.Unsetenv(config.EnvAppKey)

	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

// writeProjectConfig points the project config at endpoint and keeps the
// index under dir.
func writeProjectConfig(t *testing.T, dir, endpoint, backend string) string {
	t.Helper()
	dataDir := filepath.Join(dir, "data")
	content := fmt.Sprintf(`source:
  endpoint: %s
index:
  backend: %s
  data_dir: %s
`, endpoint, backend, dataDir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ProjectFileName), []byte(content), 0644))
	return dataDir
}

// executeCmd runs the root command with args and returns stdout and stderr.
func executeCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// fakeSODA serves a fixed set of parking summons rows.
type fakeSODA struct {
	mu       sync.Mutex
	rows     []map[string]string
	requests []string
	tokens   []string
	failAt   int // offset that answers 500, -1 for none
}

func newFakeSODA(t *testing.T, n int) (*fakeSODA, *httptest.Server) {
	t.Helper()
	f := &fakeSODA{failAt: -1}
	for i := 1; i <= n; i++ {
		f.rows = append(f.rows, map[string]string{
			"summons_number": fmt.Sprintf("10%02d", i),
			"plate":          fmt.Sprintf("PLT%d", i),
			"fine_amount":    fmt.Sprintf("%d.5", 60+i),
			"issue_date":     fmt.Sprintf("01/%02d/2024", i),
		})
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeSODA) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := r.URL.Query()
	f.requests = append(f.requests, q.Encode())
	f.tokens = append(f.tokens, r.Header.Get("X-App-Token"))

	if q.Get("$select") != "" {
		_, _ = fmt.Fprintf(w, `[{"COUNT":"%d"}]`, len(f.rows))
		return
	}

	limit, _ := strconv.Atoi(q.Get("$limit"))
	offset, _ := strconv.Atoi(q.Get("$offset"))
	if offset == f.failAt {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":true,"message":"boom"}`))
		return
	}

	// Encode objects by hand to keep field order stable
	page := []byte("[")
	for i := offset; i < offset+limit && i < len(f.rows); i++ {
		if i > offset {
			page = append(page, ',')
		}
		row := f.rows[i]
		obj := "{"
		for j, k := range []string{"summons_number", "plate", "fine_amount", "issue_date"} {
			if j > 0 {
				obj += ","
			}
			v, _ := json.Marshal(row[k])
			obj += fmt.Sprintf("%q:%s", k, v)
		}
		page = append(page, obj+"}"...)
	}
	page = append(page, ']')
	_, _ = w.Write(page)
}

func (f *fakeSODA) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

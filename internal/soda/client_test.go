package soda

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingesterr "github.com/Aman-CERP/nycingest/internal/errors"
)

// fakeSODA records the queries it receives and answers with canned bodies.
type fakeSODA struct {
	mu      sync.Mutex
	queries []map[string]string
	tokens  []string
	handler func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeSODA) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	q := map[string]string{"path": r.URL.Path}
	for k := range r.URL.Query() {
		q[k] = r.URL.Query().Get(k)
	}
	f.queries = append(f.queries, q)
	f.tokens = append(f.tokens, r.Header.Get(AppTokenHeader))
	f.mu.Unlock()

	f.handler(w, r)
}

func newTestClient(t *testing.T, f *fakeSODA, appKey string) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, AppKey: appKey, Timeout: 5 * time.Second})
}

func TestClient_Count(t *testing.T) {
	// Given: a server answering the count projection
	f := &fakeSODA{handler: func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"COUNT":"12345"}]`))
	}}
	c := newTestClient(t, f, "token-123")

	// When: counting rows
	n, err := c.Count(context.Background())

	// Then: the integer is parsed and the query is a COUNT(*) select
	require.NoError(t, err)
	assert.Equal(t, 12345, n)
	require.Len(t, f.queries, 1)
	assert.Equal(t, "/resource/nc67-uf89.json", f.queries[0]["path"])
	assert.Equal(t, "COUNT(*)", f.queries[0]["$select"])
	assert.Equal(t, "token-123", f.tokens[0])
}

func TestClient_Count_AliasedColumn(t *testing.T) {
	f := &fakeSODA{handler: func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"count_1":7}]`))
	}}
	c := newTestClient(t, f, "")

	n, err := c.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, "", f.tokens[0], "no token header without an app key")
}

func TestClient_Count_MalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty array", `[]`},
		{"not json", `<html>oops</html>`},
		{"non integer", `[{"COUNT":"many"}]`},
		{"negative", `[{"COUNT":"-5"}]`},
		{"ambiguous columns", `[{"a":"1","b":"2"}]`},
		{"object count", `[{"COUNT":{"n":1}}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeSODA{handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}}
			c := newTestClient(t, f, "")

			_, err := c.Count(context.Background())
			require.Error(t, err)
			assert.Equal(t, ingesterr.ErrCodeBadResponse, ingesterr.GetCode(err))
		})
	}
}

func TestClient_Page(t *testing.T) {
	// Given: a server returning two rows
	f := &fakeSODA{handler: func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"summons_number":"1","fine_amount":"65"},{"summons_number":"2","fine_amount":"115"}]`))
	}}
	c := newTestClient(t, f, "")

	// When: fetching a page
	page, err := c.Page(context.Background(), 2, 40)

	// Then: limit and offset are sent and the rows decode in order
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "2", f.queries[0]["$limit"])
	assert.Equal(t, "40", f.queries[0]["$offset"])
	id, _ := page[1].Get("summons_number")
	assert.Equal(t, "2", id)
}

func TestClient_Page_EmptyPastEnd(t *testing.T) {
	f := &fakeSODA{handler: func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}}
	c := newTestClient(t, f, "")

	page, err := c.Page(context.Background(), 100, 1000000)
	require.NoError(t, err)
	assert.NotNil(t, page)
	assert.Empty(t, page)
}

func TestClient_Page_UpstreamError(t *testing.T) {
	// Given: SODA rejecting the token
	f := &fakeSODA{handler: func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":"invalid_app_token","error":true,"message":"Invalid app_token specified"}`))
	}}
	c := newTestClient(t, f, "bad")

	// When: fetching
	_, err := c.Page(context.Background(), 10, 0)

	// Then: the status and SODA's message surface with a hint
	require.Error(t, err)
	var ie *ingesterr.IngestError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, ingesterr.ErrCodeUpstreamStatus, ie.Code)
	assert.Contains(t, ie.Message, "403")
	assert.Contains(t, ie.Message, "Invalid app_token specified")
	assert.NotEmpty(t, ie.Suggestion)
}

func TestClient_NetworkFailure(t *testing.T) {
	// Given: a server that is already gone
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(Config{BaseURL: srv.URL})

	// When: counting
	_, err := c.Count(context.Background())

	// Then: it is a network error
	require.Error(t, err)
	assert.Equal(t, ingesterr.ErrCodeNetworkUnavailable, ingesterr.GetCode(err))
}

func TestClient_ContextCancelled(t *testing.T) {
	f := &fakeSODA{handler: func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}}
	c := newTestClient(t, f, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Page(ctx, 1, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestConfig_Defaults(t *testing.T) {
	c := NewClient(Config{})
	assert.Equal(t, DefaultDataset, c.Dataset())
	assert.Equal(t, "https://data.cityofnewyork.us", c.config.BaseURL)
	assert.Equal(t,
		"https://data.cityofnewyork.us/resource/nc67-uf89.json?%24limit=5",
		c.resourceURL(map[string][]string{"$limit": {"5"}}))
}

func TestClient_UserAgent(t *testing.T) {
	// Given: a client configured with a user agent
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)
	c := NewClient(Config{BaseURL: srv.URL, UserAgent: "nycingest/test"})

	// When: fetching a page
	_, err := c.Page(context.Background(), 1, 0)

	// Then: the header is sent
	require.NoError(t, err)
	assert.Equal(t, "nycingest/test", got)
}

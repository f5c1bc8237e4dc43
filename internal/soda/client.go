package soda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	ingesterr "github.com/Aman-CERP/nycingest/internal/errors"
	"github.com/Aman-CERP/nycingest/internal/record"
)

// maxErrorBody caps how much of a failed response body is read.
const maxErrorBody = 4096

// Client queries one SODA dataset.
type Client struct {
	http   *http.Client
	config Config
}

// NewClient creates a client for cfg.Dataset on cfg.Domain.
func NewClient(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		http:   &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}
}

// Dataset returns the dataset id this client reads.
func (c *Client) Dataset() string {
	return c.config.Dataset
}

// Count returns the dataset's total row count.
func (c *Client) Count(ctx context.Context) (int, error) {
	q := url.Values{}
	q.Set("$select", countSelect)

	var rows record.Page
	if err := c.get(ctx, q, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, ingesterr.New(ingesterr.ErrCodeBadResponse, "count query returned no rows", nil)
	}

	raw, ok := countValue(rows[0])
	if !ok {
		return 0, ingesterr.New(ingesterr.ErrCodeBadResponse, "count query returned no COUNT column", nil)
	}
	s, ok := raw.(string)
	if !ok {
		return 0, ingesterr.New(ingesterr.ErrCodeBadResponse,
			fmt.Sprintf("count value has unexpected type %T", raw), nil)
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, ingesterr.New(ingesterr.ErrCodeBadResponse,
			fmt.Sprintf("count value %q is not an integer", s), err)
	}
	if n < 0 {
		return 0, ingesterr.New(ingesterr.ErrCodeBadResponse,
			fmt.Sprintf("count value %q is negative", s), nil)
	}

	slog.Debug("soda_count", slog.String("dataset", c.config.Dataset), slog.Int("rows", n))
	return n, nil
}

// countValue finds the COUNT column in the count query's single row.
func countValue(r record.Record) (any, bool) {
	for _, name := range []string{"COUNT", "count"} {
		if v, ok := r.Get(name); ok {
			return v, true
		}
	}
	// Some deployments alias the projection; a single column is unambiguous.
	if r.Len() == 1 {
		return r.Values()[0], true
	}
	return nil, false
}

// Page fetches up to limit rows starting at offset. An offset past the end
// of the dataset yields an empty page, not an error.
func (c *Client) Page(ctx context.Context, limit, offset int) (record.Page, error) {
	q := url.Values{}
	q.Set("$limit", strconv.Itoa(limit))
	q.Set("$offset", strconv.Itoa(offset))

	var page record.Page
	if err := c.get(ctx, q, &page); err != nil {
		return nil, err
	}
	if page == nil {
		page = record.Page{}
	}

	slog.Debug("soda_page",
		slog.String("dataset", c.config.Dataset),
		slog.Int("limit", limit),
		slog.Int("offset", offset),
		slog.Int("rows", len(page)))
	return page, nil
}

// resourceURL returns the JSON resource endpoint with query q.
func (c *Client) resourceURL(q url.Values) string {
	return fmt.Sprintf("%s/resource/%s.json?%s",
		strings.TrimRight(c.config.BaseURL, "/"), c.config.Dataset, q.Encode())
}

// get performs one GET against the resource endpoint and decodes the body into out.
func (c *Client) get(ctx context.Context, q url.Values, out any) error {
	u := c.resourceURL(q)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return ingesterr.InternalError("failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.AppKey != "" {
		req.Header.Set(AppTokenHeader, c.config.AppKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return ingesterr.NetworkError("request to "+c.config.Domain+" failed", err).
			WithDetail("url", u)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp, u)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return ingesterr.New(ingesterr.ErrCodeBadResponse, "failed to decode response", err).
			WithDetail("url", u)
	}
	return nil
}

// statusError builds an error from a non-2xx response, using SODA's error
// message when the body carries one.
func statusError(resp *http.Response, u string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := strings.TrimSpace(string(body))
	var ae apiError
	if err := json.Unmarshal(body, &ae); err == nil && ae.Message != "" {
		msg = ae.Message
	}

	e := ingesterr.New(ingesterr.ErrCodeUpstreamStatus,
		fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, msg), nil).
		WithDetail("status", strconv.Itoa(resp.StatusCode)).
		WithDetail("url", u)
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		e = e.WithSuggestion("check that APP_KEY holds a valid Socrata application token")
	}
	return e
}

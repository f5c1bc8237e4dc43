// Package soda is a minimal client for the Socrata Open Data API (SODA)
// resource endpoint: one row-count query and limit/offset paging.
package soda

import "time"

// API defaults for the NYC parking-summons dataset.
const (
	// DefaultDomain is the NYC open-data portal.
	DefaultDomain = "data.cityofnewyork.us"

	// DefaultDataset is the "Open Parking and Camera Violations" dataset id.
	DefaultDataset = "nc67-uf89"

	// AppTokenHeader carries the application token.
	AppTokenHeader = "X-App-Token"

	// countSelect is the SoQL projection for the row count.
	countSelect = "COUNT(*)"
)

// Config configures the SODA client.
type Config struct {
	// Domain is the Socrata host (default: data.cityofnewyork.us).
	Domain string

	// Dataset is the four-by-four dataset id (default: nc67-uf89).
	Dataset string

	// AppKey is the application token. Empty sends anonymous requests.
	AppKey string

	// Timeout bounds each HTTP round trip. Zero means no client timeout.
	Timeout time.Duration

	// BaseURL overrides "https://<Domain>" (used by tests).
	BaseURL string

	// UserAgent is sent as the User-Agent header when non-empty.
	UserAgent string
}

// applyDefaults fills zero values.
func (c *Config) applyDefaults() {
	if c.Domain == "" {
		c.Domain = DefaultDomain
	}
	if c.Dataset == "" {
		c.Dataset = DefaultDataset
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://" + c.Domain
	}
}

// apiError is the error body SODA returns with 4xx/5xx responses.
type apiError struct {
	Code    string `json:"code"`
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

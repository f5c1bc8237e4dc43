package ui

import (
	"encoding/json"
	"fmt"
	"io"
)

// StatusInfo describes the local search index.
type StatusInfo struct {
	IndexName string `json:"index_name"`
	Backend   string `json:"backend"`
	Path      string `json:"path"`
	Exists    bool   `json:"exists"`
	Documents uint64 `json:"documents"`
	SizeBytes int64  `json:"size_bytes"`

	// Source the index is filled from
	Domain  string `json:"domain"`
	Dataset string `json:"dataset"`
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status: "+info.IndexName))

	_, _ = fmt.Fprintf(r.out, "  Backend:   %s\n", info.Backend)
	_, _ = fmt.Fprintf(r.out, "  Path:      %s\n", info.Path)
	if !info.Exists {
		_, _ = fmt.Fprintf(r.out, "  State:     %s\n", r.styles.Warning.Render("not created"))
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "  Run `nycingest fetch --push-index` to create it.")
		return nil
	}
	_, _ = fmt.Fprintf(r.out, "  State:     %s\n", r.styles.Success.Render("ready"))
	_, _ = fmt.Fprintf(r.out, "  Documents: %d\n", info.Documents)
	_, _ = fmt.Fprintf(r.out, "  Size:      %s\n", FormatBytes(info.SizeBytes))
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Source:")
	_, _ = fmt.Fprintf(r.out, "    Domain:  %s\n", info.Domain)
	_, _ = fmt.Fprintf(r.out, "    Dataset: %s\n", info.Dataset)
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	ingesterr "github.com/Aman-CERP/nycingest/internal/errors"
	"github.com/Aman-CERP/nycingest/internal/record"
)

// Format selects how fetched pages are laid out in the output file.
type Format string

const (
	// FormatValues writes every field value on its own line, in page, record
	// and field order, with no header and no record delimiter.
	FormatValues Format = "values"

	// FormatRecords writes one JSON object per record per line.
	FormatRecords Format = "records"
)

// ParseFormat validates a format name. Empty selects FormatValues.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatValues:
		return FormatValues, nil
	case FormatRecords:
		return FormatRecords, nil
	default:
		return "", ingesterr.ConfigError(
			fmt.Sprintf("unknown output format: %s (valid options: values, records)", s), nil)
	}
}

// WriteResults writes pages to w in the given format and returns the number
// of lines written.
func WriteResults(w io.Writer, pages []record.Page, format Format) (int, error) {
	bw := bufio.NewWriter(w)
	lines := 0

	for _, page := range pages {
		for _, rec := range page {
			switch format {
			case FormatRecords:
				data, err := json.Marshal(rec)
				if err != nil {
					return lines, fmt.Errorf("encode record: %w", err)
				}
				if _, err := bw.Write(append(data, '\n')); err != nil {
					return lines, err
				}
				lines++
			default:
				for _, v := range rec.Values() {
					if _, err := bw.WriteString(record.Text(v) + "\n"); err != nil {
						return lines, err
					}
					lines++
				}
			}
		}
	}

	return lines, bw.Flush()
}

// WriteFile writes pages to path, replacing any existing file. The file is
// written next to its final name and renamed into place, so a failed write
// leaves no partial output.
func WriteFile(path string, pages []record.Page, format Format) (int, error) {
	if path == "" {
		return 0, ingesterr.ConfigError("output path is required", nil).
			WithSuggestion("Pass --output PATH")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, writeError(path, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	lines, err := WriteResults(tmp, pages, format)
	if err != nil {
		_ = tmp.Close()
		return 0, writeError(path, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, writeError(path, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return 0, writeError(path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return 0, writeError(path, err)
	}
	return lines, nil
}

func writeError(path string, err error) error {
	return ingesterr.New(ingesterr.ErrCodeOutputWrite, "failed to write output file", err).
		WithDetail("path", path).
		WithSuggestion("Check that the output directory exists and is writable")
}

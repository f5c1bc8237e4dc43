// Package errors provides structured error handling for nycingest.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (output file, index storage)
//   - 3XX: Network errors (SODA API)
//   - 4XX: Data errors (records that cannot be indexed)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and index storage errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates errors talking to the data API.
	CategoryNetwork Category = "NETWORK"
	// CategoryData indicates records that violate an indexing precondition.
	CategoryData Category = "DATA"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates the run must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid     = "ERR_101_CONFIG_INVALID"
	ErrCodeMissingCredential = "ERR_102_MISSING_CREDENTIAL"
	ErrCodeInvalidPageSize   = "ERR_103_INVALID_PAGE_SIZE"
	ErrCodeInvalidPageCount  = "ERR_104_INVALID_PAGE_COUNT"

	// IO errors (200-299)
	ErrCodeOutputWrite = "ERR_201_OUTPUT_WRITE"
	ErrCodeIndexOpen   = "ERR_202_INDEX_OPEN"
	ErrCodeIndexLocked = "ERR_203_INDEX_LOCKED"
	ErrCodeIndexWrite  = "ERR_204_INDEX_WRITE"

	// Network errors (300-399)
	ErrCodeNetworkUnavailable = "ERR_301_NETWORK_UNAVAILABLE"
	ErrCodeBadResponse        = "ERR_302_BAD_RESPONSE"
	ErrCodeUpstreamStatus     = "ERR_303_UPSTREAM_STATUS"

	// Data errors (400-499)
	ErrCodeMissingField  = "ERR_401_MISSING_FIELD"
	ErrCodeInvalidAmount = "ERR_402_INVALID_AMOUNT"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "101" from "ERR_101_CONFIG_INVALID"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryData
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
// The ingestion loop has no retry or partial-result path, so every coded
// failure aborts the run.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeInternal:
		return SeverityError
	default:
		return SeverityFatal
	}
}

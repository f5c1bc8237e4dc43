// Package version provides build and version information for nycingest.
package version

import (
	"fmt"
	"runtime"
)

// Version is stamped with -X github.com/Aman-CERP/nycingest/pkg/version.Version.
var Version = "dev"

// Build information set via ldflags at build time.
var (
	// Commit is the git commit hash.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"

	// GoVersion is the Go version used to build the binary (set at runtime).
	GoVersion = runtime.Version()
)

// BuildInfo is structured version information for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	UserAgent string `json:"user_agent"`
}

// String returns a formatted version string with all build info.
func String() string {
	return fmt.Sprintf("nycingest %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, GoVersion)
}

// Short returns just the version string.
func Short() string {
	return Version
}

// UserAgent is sent with every SODA request, so upstream request logs can
// be matched to a release.
func UserAgent() string {
	return fmt.Sprintf("nycingest/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}

// GetInfo returns structured version information.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		UserAgent: UserAgent(),
	}
}

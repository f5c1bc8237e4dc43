// Package logging sets up structured slog logging for nycingest.
//
// By default logs go to stderr at the configured level. With --debug,
// JSON logs are also written to ~/.nycingest/logs/nycingest.log with
// size-based rotation, and can be read back with `nycingest logs`.
package logging

// Package configs provides the embedded configuration template written by
// `nycingest config init`.
//
// The template is embedded at build time so it ships with every binary.
// Edit config.example.yaml and rebuild to change it.
package configs

import _ "embed"

// ConfigTemplate is the template for the user configuration file
// (~/.config/nycingest/config.yaml).
//
//go:embed config.example.yaml
var ConfigTemplate string

// Package sources provides embedded default source descriptor definitions.
// YAML files in this directory use the descriptor format documented in
// internal/source.
package sources

import _ "embed"

//go:embed defaults.yaml
var defaultsYAML []byte

// DefaultsYAML returns the embedded default source descriptors.
func DefaultsYAML() []byte { return defaultsYAML }

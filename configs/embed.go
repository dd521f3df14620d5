// Package configs provides the embedded default configuration template for
// riftindex.
//
// Configuration precedence (see internal/config/config.go Load()):
//  1. Hardcoded defaults (internal/config.NewConfig())
//  2. Project config (.riftindex.yaml in the project root)
//  3. Environment variables (RIFTINDEX_*)
package configs

import _ "embed"

// DefaultConfigTemplate is written by `riftindex init` to create a
// starter .riftindex.yaml in a project root.
//
//go:embed riftindex.example.yaml
var DefaultConfigTemplate string

// Package config loads, normalizes, and validates bagfuse configuration.
//
// Values are layered: repository defaults, then the TOML file, then
// BAGFUSE_* environment variables, then command-line overrides applied by the
// caller. Paths are expanded (including ~) and validated once so the rest of
// the program receives canonical values.
package config

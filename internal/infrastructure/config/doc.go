// Package config loads service configuration.
//
// Values come from three layers, later ones winning: Default(), an optional
// YAML or TOML file named by CONFIG_FILE, and environment variables.
// cmd/server applies command-line flags on top.
package config

// Package main is the entry point for the staging filesystem server.
//
// The server exposes each authenticated user's home directory below the
// storage root for listing, search, upload and delete.
//
// Configuration:
//   - Defaults
//   - Config file (-config or CONFIG_FILE, YAML or TOML)
//   - Environment variables
//   - CLI flags (override everything above)
//
// Usage:
//
//	# Production mode
//	./server -config /etc/stagingfs.yaml
//
//	# Local development against a token file
//	AUTH_DEV_USER=alice ./server -auth dev -root ./data -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main

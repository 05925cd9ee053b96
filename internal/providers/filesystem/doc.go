// Package filesystem provides the storage contract shared by every file
// service component.
//
// This package is organized into small modules:
//   - types: the FS contract consumed by the walker, search and upload code
//   - afero: FS implementations over spf13/afero (OS rooted, in-memory)
//   - errors: error kinds every implementation maps its failures onto
//   - metadata: single-entry description with MIME sniffing
//   - scan: parallel discovery of stale upload temp files on disk
//
// All paths handed to an FS are slash separated and absolute relative to the
// sandbox root ("/alice/docs/report.tsv"). Implementations never follow
// symbolic links when listing: a link is reported as a plain entry and is
// never descended into.
//
// Example Usage:
//
//	fsys := filesystem.NewOS("/srv/staging")
//	infos, err := fsys.ReadDir(ctx, "/alice/")
//	if errors.Is(err, filesystem.ErrNotFound) {
//		// home not provisioned yet
//	}
package filesystem

package filesystem

import (
	"context"
	"io"
	"os"
)

// FS is the filesystem contract used by the walker, the search engine and the
// upload publisher. Every method may block and honours ctx cancellation
// before touching storage.
type FS interface {
	// ReadDir returns the immediate children of dir without following links.
	ReadDir(ctx context.Context, dir string) ([]os.FileInfo, error)
	// Stat describes name without following a trailing link.
	Stat(ctx context.Context, name string) (os.FileInfo, error)
	// Rename atomically moves oldname to newname on the same filesystem.
	Rename(ctx context.Context, oldname, newname string) error
	Exists(ctx context.Context, name string) (bool, error)
	MkdirAll(ctx context.Context, dir string) error
	// Create opens a new file for writing and fails if it already exists.
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	WriteFile(ctx context.Context, name string, data []byte) error
	Remove(ctx context.Context, name string) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

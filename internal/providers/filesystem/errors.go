package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// Error kinds. Implementations wrap the underlying error so that both the
// kind and the original cause are reachable through errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrAccessDenied = errors.New("access denied")
	ErrExists       = errors.New("already exists")
	ErrIsDirectory  = errors.New("is a directory")
	ErrNotDirectory = errors.New("not a directory")
)

// Kind returns the error kind of err, or nil when err carries none.
func Kind(err error) error {
	for _, kind := range []error{ErrNotFound, ErrAccessDenied, ErrExists, ErrIsDirectory, ErrNotDirectory} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// classify tags an OS/afero error with its kind.
func classify(op, name string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != nil {
		return err
	}

	var kind error
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		kind = ErrAccessDenied
	case errors.Is(err, fs.ErrExist):
		kind = ErrExists
	case errors.Is(err, syscall.EISDIR):
		kind = ErrIsDirectory
	case errors.Is(err, syscall.ENOTDIR):
		kind = ErrNotDirectory
	default:
		return fmt.Errorf("%s %s: %w", op, name, err)
	}
	return fmt.Errorf("%s %s: %w: %w", op, name, kind, err)
}

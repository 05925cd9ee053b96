// Package sandbox turns user supplied paths into paths confined to the
// caller's home directory.
//
// Every filesystem touching handler resolves its input here first. A resolved
// SandboxedPath is the only value the walker, search engine and upload
// publisher accept as a location.
package sandbox

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ErrForbiddenPath marks a path that escapes the sandbox or names a home
// other than the caller's.
var ErrForbiddenPath = errors.New("forbidden path")

// ForbiddenError carries the message shown to clients for a rejected path.
type ForbiddenError struct {
	User string
	Path string
	// Escape is set when the path climbs above the sandbox root rather than
	// naming another user's home.
	Escape bool
}

func (e *ForbiddenError) Error() string {
	if e.Escape {
		return fmt.Sprintf("Unallowed path: %s", e.Path)
	}
	return fmt.Sprintf("User (%s) does not have permission to access: %s", e.User, e.Path)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbiddenPath }

// Mode selects the separator convention of the resolved path.
type Mode int

const (
	// Directory resolves with a trailing "/" so child names concatenate cleanly.
	Directory Mode = iota
	// File resolves without a trailing separator.
	File
)

// SandboxedPath is a validated location inside one user's home.
type SandboxedPath struct {
	// Requested is the path as the client sent it.
	Requested string
	// Home is the declared home segment, equal to the caller's username.
	Home string
	// Rel is the slash separated path below the sandbox root, always
	// starting with "/<home>".
	Rel string
	// Abs is Rel joined to the sandbox root on the local disk.
	Abs string
	// Mode records how Rel was terminated.
	Mode Mode
}

// HomeRel returns the sandbox relative path of the home directory.
func (p SandboxedPath) HomeRel() string {
	return "/" + p.Home + "/"
}

// Join resolves a single child name below a directory path. Names containing
// separators or dot segments are rejected.
func (p SandboxedPath) Join(name string, mode Mode) (SandboxedPath, error) {
	if !ValidName(name) {
		return SandboxedPath{}, &ForbiddenError{User: p.Home, Path: path.Join(p.Requested, name), Escape: true}
	}
	rel := strings.TrimSuffix(p.Rel, "/") + "/" + name
	if mode == Directory {
		rel += "/"
	}
	out := p
	out.Requested = strings.TrimSuffix(p.Requested, "/") + "/" + name
	out.Rel = rel
	out.Abs = filepath.Join(strings.TrimSuffix(p.Abs, string(filepath.Separator)), name)
	if mode == Directory {
		out.Abs += string(filepath.Separator)
	}
	out.Mode = mode
	return out, nil
}

// ValidName reports whether name is usable as a single path segment.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

// Resolver validates paths against the sandbox root.
type Resolver struct {
	root string
}

// NewResolver creates a resolver for homes stored below root.
func NewResolver(root string) *Resolver {
	return &Resolver{root: filepath.Clean(root)}
}

// Resolve validates requested for username. The first non-empty segment of
// the normalized path must equal username.
func (r *Resolver) Resolve(username, requested string, mode Mode) (SandboxedPath, error) {
	if username == "" || !ValidName(username) {
		return SandboxedPath{}, &ForbiddenError{User: username, Path: requested}
	}

	normalized, err := Normalize(requested)
	if err != nil {
		return SandboxedPath{}, err
	}

	segments := splitSegments(normalized)
	if len(segments) == 0 || segments[0] != username {
		return SandboxedPath{}, &ForbiddenError{User: username, Path: requested}
	}

	rel := "/" + strings.Join(segments, "/")
	if mode == Directory {
		rel += "/"
	}

	abs := filepath.Join(r.root, filepath.FromSlash(rel))
	if !within(r.root, abs) {
		return SandboxedPath{}, &ForbiddenError{User: username, Path: requested, Escape: true}
	}
	if mode == Directory {
		abs += string(filepath.Separator)
	}

	return SandboxedPath{
		Requested: requested,
		Home:      segments[0],
		Rel:       rel,
		Abs:       abs,
		Mode:      mode,
	}, nil
}

// Home resolves the caller's home directory.
func (r *Resolver) Home(username string) (SandboxedPath, error) {
	return r.Resolve(username, "/"+username, Directory)
}

// Normalize lexically cleans p, treating it as relative to the sandbox root.
// A path that still climbs above the root after cleaning is rejected.
func Normalize(p string) (string, error) {
	if strings.ContainsRune(p, '\x00') {
		return "", &ForbiddenError{Path: p, Escape: true}
	}
	slashed := strings.ReplaceAll(p, "\\", "/")
	trimmed := strings.TrimLeft(slashed, "/")
	if trimmed == "" {
		return ".", nil
	}
	cleaned := path.Clean(trimmed)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", &ForbiddenError{Path: p, Escape: true}
	}
	return cleaned, nil
}

func splitSegments(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s == "" || s == "." {
			continue
		}
		out = append(out, s)
	}
	return out
}

func within(root, abs string) bool {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

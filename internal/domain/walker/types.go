package walker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidType is returned by ParseType for an unknown value.
var ErrInvalidType = errors.New("unknown entry type")

// Type filters which kinds of entries a listing reports.
type Type int

const (
	TypeAny Type = iota
	TypeFile
	TypeFolder
)

// ParseType maps the query parameter value onto a Type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return TypeAny, nil
	case "file":
		return TypeFile, nil
	case "folder":
		return TypeFolder, nil
	default:
		return TypeAny, fmt.Errorf("%w %q, expected file or folder", ErrInvalidType, s)
	}
}

func (t Type) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeFolder:
		return "folder"
	default:
		return "any"
	}
}

func (t Type) accepts(isFolder bool) bool {
	switch t {
	case TypeFile:
		return !isFolder
	case TypeFolder:
		return isFolder
	default:
		return true
	}
}

// Entry is one file or folder observed during a walk.
type Entry struct {
	Name string `json:"name"`
	// Path is slash separated below the sandbox root, e.g. "/alice/sub/c.txt".
	Path string `json:"path"`
	// ModifiedAt is in unix milliseconds.
	ModifiedAt int64 `json:"mtime"`
	Size       int64 `json:"size"`
	IsFolder   bool  `json:"isFolder"`
}

// ListOptions controls a single List call.
type ListOptions struct {
	Type Type
	Deep bool
	// Query keeps only entries whose path relative to RootPath contains it.
	Query string
	// RootPath anchors Query matching. Defaults to the listed directory.
	RootPath string
}

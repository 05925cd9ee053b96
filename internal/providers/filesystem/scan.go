package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
)

// DefaultPartPattern matches upload temp files anywhere under the root.
const DefaultPartPattern = "**/*.part"

// Stale is an upload temp file left behind by a failed publish.
type Stale struct {
	Path       string
	Size       int64
	ModifiedAt time.Time
}

// ScanOptions controls ScanParts.
type ScanOptions struct {
	Pattern   string
	OlderThan time.Duration
	Now       time.Time
}

// ScanParts walks the on-disk root in parallel and returns regular files
// matching the pattern whose modification time is older than the threshold.
// Results are sorted by path.
func ScanParts(ctx context.Context, root string, opts ScanOptions) ([]Stale, error) {
	if opts.Pattern == "" {
		opts.Pattern = DefaultPartPattern
	}
	if !doublestar.ValidatePattern(opts.Pattern) {
		return nil, fmt.Errorf("invalid pattern %q", opts.Pattern)
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	cutoff := opts.Now.Add(-opts.OlderThan)

	var (
		mu    sync.Mutex
		found []Stale
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return nil
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		ok, err := doublestar.Match(opts.Pattern, filepath.ToSlash(rel))
		if err != nil || !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}

		mu.Lock()
		found = append(found, Stale{Path: p, Size: info.Size(), ModifiedAt: info.ModTime()})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, classify("scan", root, err)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
	return found, nil
}

// RemoveStale deletes the given files, continuing past individual failures.
func RemoveStale(ctx context.Context, stale []Stale) (int, error) {
	var (
		removed int
		errs    []error
	)
	for _, s := range stale {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, classify("remove", s.Path, err))
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

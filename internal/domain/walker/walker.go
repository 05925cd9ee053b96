// Package walker lists directory contents as structured entries, optionally
// recursing through every subdirectory in parallel.
package walker

import (
	"context"
	"errors"
	"os"
	"path"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/GriffinCanCode/stagingfs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/stagingfs/internal/providers/filesystem"
)

// DefaultConcurrency bounds simultaneous directory reads across one walk.
const DefaultConcurrency = 16

// DefaultMarkerName is the identity marker file hidden from every listing.
const DefaultMarkerName = ".globus_id"

// Errors returned by List. Both wrap the filesystem kind they came from.
var (
	ErrNotFound     = filesystem.ErrNotFound
	ErrAccessDenied = filesystem.ErrAccessDenied
)

// Options configures a Walker.
type Options struct {
	Concurrency int
	MarkerName  string
}

// Option customises a Walker.
type Option func(*Walker)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Walker) { w.logger = logger }
}

// WithMetrics records walk durations and sizes.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(w *Walker) { w.metrics = m }
}

// Walker reads directory trees through a filesystem.FS.
type Walker struct {
	fs      filesystem.FS
	sem     *semaphore.Weighted
	marker  string
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// New creates a walker over fsys.
func New(fsys filesystem.FS, opts Options, options ...Option) *Walker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MarkerName == "" {
		opts.MarkerName = DefaultMarkerName
	}

	w := &Walker{
		fs:     fsys,
		sem:    semaphore.NewWeighted(int64(opts.Concurrency)),
		marker: opts.MarkerName,
		logger: zap.NewNop(),
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

// List returns the entries of dir filtered by opts. With opts.Deep every
// subdirectory is descended into regardless of whether it is itself
// reported. A missing or unreadable dir fails with ErrNotFound or
// ErrAccessDenied. Entry order is unspecified.
func (w *Walker) List(ctx context.Context, dir string, opts ListOptions) ([]Entry, error) {
	start := time.Now()
	dir = asDir(dir)
	if opts.RootPath == "" {
		opts.RootPath = dir
	}
	opts.RootPath = asDir(opts.RootPath)

	entries, err := w.walk(ctx, dir, opts, true)

	w.metrics.ObserveWalk(mode(opts.Deep), len(entries), time.Since(start), outcome(err))
	if err != nil {
		w.logger.Debug("walk failed",
			zap.String("dir", dir),
			zap.Bool("deep", opts.Deep),
			zap.Error(err),
		)
		return nil, err
	}
	return entries, nil
}

func (w *Walker) walk(ctx context.Context, dir string, opts ListOptions, root bool) ([]Entry, error) {
	infos, err := w.readDir(ctx, dir)
	if err != nil {
		// A subdirectory removed between its parent's read and its own is
		// simply gone from the result.
		if !root && errors.Is(err, filesystem.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var (
		entries []Entry
		subdirs []string
	)
	for _, info := range infos {
		if info.Name() == w.marker {
			continue
		}

		p := dir + info.Name()
		isFolder := info.IsDir()
		if isFolder {
			subdirs = append(subdirs, p+"/")
		}
		if !opts.Type.accepts(isFolder) {
			continue
		}
		if opts.Query != "" && !strings.Contains(relative(opts.RootPath, p), opts.Query) {
			continue
		}
		entries = append(entries, newEntry(p, info))
	}

	if !opts.Deep || len(subdirs) == 0 {
		return entries, nil
	}

	p := pool.NewWithResults[[]Entry]().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for _, sub := range subdirs {
		p.Go(func(ctx context.Context) ([]Entry, error) {
			return w.walk(ctx, sub, opts, false)
		})
	}

	children, err := p.Wait()
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		entries = append(entries, c...)
	}
	return entries, nil
}

// readDir holds one unit of the walk's I/O budget for the duration of the read.
func (w *Walker) readDir(ctx context.Context, dir string) ([]os.FileInfo, error) {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer w.sem.Release(1)

	return w.fs.ReadDir(ctx, dir)
}

func newEntry(p string, info os.FileInfo) Entry {
	return Entry{
		Name:       info.Name(),
		Path:       p,
		ModifiedAt: info.ModTime().UnixMilli(),
		Size:       info.Size(),
		IsFolder:   info.IsDir(),
	}
}

func asDir(p string) string {
	p = path.Clean("/" + p)
	if p == "/" {
		return p
	}
	return p + "/"
}

func relative(root, p string) string {
	return strings.TrimPrefix(p, root)
}

func mode(deep bool) string {
	if deep {
		return "deep"
	}
	return "shallow"
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, filesystem.ErrNotFound):
		return "not_found"
	case errors.Is(err, filesystem.ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// Package search performs recursive substring searches beneath a root and
// returns the matches in a deterministic order.
//
// Search never fails outward. A root that does not exist yet is the normal
// "nothing to search" case and yields an empty result; any other failure
// also yields an empty result but is reported through Result.Degraded, the
// log and the stagingfs_search_degraded_total metric.
package search

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/stagingfs/internal/domain/walker"
	"github.com/GriffinCanCode/stagingfs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/stagingfs/internal/providers/filesystem"
)

// Degradation reasons.
const (
	DegradedAccessDenied = "access_denied"
	DegradedCanceled     = "canceled"
	DegradedInternal     = "internal"
)

// Lister is the part of the Tree Walker the engine depends on.
type Lister interface {
	List(ctx context.Context, dir string, opts walker.ListOptions) ([]walker.Entry, error)
}

// Query is an immutable search request.
type Query struct {
	Root           string
	Text           string
	IncludeFolders bool
}

// Result is the outcome of a search. Entries is never nil.
type Result struct {
	Entries []walker.Entry
	// Degraded is empty unless an internal failure was hidden.
	Degraded string
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics records search outcomes.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine runs searches on top of a Lister.
type Engine struct {
	lister  Lister
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// New creates a search engine.
func New(lister Lister, opts ...Option) *Engine {
	e := &Engine{lister: lister, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search lists every entry below q.Root whose root-relative path contains
// q.Text, folders included only when q.IncludeFolders is set, newest first.
func (e *Engine) Search(ctx context.Context, q Query) Result {
	opts := walker.ListOptions{
		Type:     walker.TypeFile,
		Deep:     true,
		Query:    q.Text,
		RootPath: q.Root,
	}
	if q.IncludeFolders {
		opts.Type = walker.TypeAny
	}

	entries, err := e.lister.List(ctx, q.Root, opts)
	if err != nil {
		reason := degradation(err)
		if reason == "" {
			e.metrics.RecordSearch("no_root")
			return Result{Entries: []walker.Entry{}}
		}

		e.metrics.RecordSearch("degraded")
		e.metrics.IncSearchDegraded(reason)
		e.logger.Warn("search degraded to empty result",
			zap.String("root", q.Root),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return Result{Entries: []walker.Entry{}, Degraded: reason}
	}

	if entries == nil {
		entries = []walker.Entry{}
	}
	Sort(entries)
	e.metrics.RecordSearch("ok")
	return Result{Entries: entries}
}

// Sort orders entries by modification time, newest first, then by path.
func Sort(entries []walker.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.ModifiedAt != b.ModifiedAt {
			return a.ModifiedAt > b.ModifiedAt
		}
		return a.Path < b.Path
	})
}

func degradation(err error) string {
	switch {
	case errors.Is(err, filesystem.ErrNotFound), errors.Is(err, filesystem.ErrNotDirectory):
		return ""
	case errors.Is(err, filesystem.ErrAccessDenied):
		return DegradedAccessDenied
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return DegradedCanceled
	default:
		return DegradedInternal
	}
}

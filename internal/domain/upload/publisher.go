// Package upload receives files into private temp files beside their
// destination and publishes them with an atomic rename.
//
// A batch is not a transaction. Every task settles independently and a
// failed publish leaves its temp file on disk for inspection or retry;
// stale temp files are collected by the sweeper command. Concurrent uploads
// to the same destination are last writer wins.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/stagingfs/internal/domain/sandbox"
	"github.com/GriffinCanCode/stagingfs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/stagingfs/internal/providers/filesystem"
	"github.com/GriffinCanCode/stagingfs/internal/shared/id"
)

// DefaultMaxFiles is the largest number of files accepted in one batch.
const DefaultMaxFiles = 12

var (
	ErrTooManyFiles           = errors.New("too many files")
	ErrInvalidName            = errors.New("invalid file name")
	ErrTooLarge               = errors.New("file too large")
	ErrReceiveFailed          = errors.New("receive failed")
	ErrDestinationIsDirectory = errors.New("destination is a directory")
	ErrPublishFailed          = errors.New("publish failed")
)

// Options configures a Publisher.
type Options struct {
	MarkerName string
	MaxFiles   int
	// MaxFileBytes limits a single file; zero means unlimited.
	MaxFileBytes int64
}

// Option customises a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithMetrics records upload outcomes.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// WithIDs overrides upload id generation.
func WithIDs(next func() id.UploadID) Option {
	return func(p *Publisher) { p.nextID = next }
}

// Publisher moves uploaded content into users' sandboxes.
type Publisher struct {
	fs       filesystem.FS
	resolver *sandbox.Resolver
	opts     Options
	now      func() time.Time
	nextID   func() id.UploadID
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// NewPublisher creates a publisher writing through fsys.
func NewPublisher(fsys filesystem.FS, resolver *sandbox.Resolver, opts Options, options ...Option) *Publisher {
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultMaxFiles
	}
	if opts.MarkerName == "" {
		opts.MarkerName = ".globus_id"
	}

	p := &Publisher{
		fs:       fsys,
		resolver: resolver,
		opts:     opts,
		now:      time.Now,
		nextID:   id.NewUploadID,
		logger:   zap.NewNop(),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// MaxFiles returns the batch size limit.
func (p *Publisher) MaxFiles() int {
	return p.opts.MaxFiles
}

// CheckBatch rejects batches above the configured size.
func (p *Publisher) CheckBatch(n int) error {
	if n > p.opts.MaxFiles {
		return fmt.Errorf("%w: %d files, at most %d allowed", ErrTooManyFiles, n, p.opts.MaxFiles)
	}
	return nil
}

// ResolveDestination validates destPath for username without touching disk.
func (p *Publisher) ResolveDestination(username, destPath string) (sandbox.SandboxedPath, error) {
	return p.resolver.Resolve(username, destPath, sandbox.Directory)
}

// Prepare computes the temp and final paths of one file. It performs no I/O.
func (p *Publisher) Prepare(dir sandbox.SandboxedPath, originalName string) (Task, error) {
	name := baseName(originalName)
	if !sandbox.ValidName(name) || strings.HasSuffix(name, PartSuffix) {
		return Task{}, fmt.Errorf("%w: %q", ErrInvalidName, originalName)
	}

	dest, err := dir.Join(name, sandbox.File)
	if err != nil {
		return Task{}, err
	}

	uid := p.nextID()
	return Task{
		ID:       uid,
		User:     dir.Home,
		Name:     name,
		Dir:      dir,
		TempPath: dir.Rel + name + "." + uid.String() + PartSuffix,
		DestPath: dest.Rel,
	}, nil
}

// Receive streams r into the task's temp file. On failure the partial temp
// file is removed, since nothing was ever published from it.
func (p *Publisher) Receive(ctx context.Context, task Task, r io.Reader) (Task, error) {
	if err := p.fs.MkdirAll(ctx, task.Dir.Rel); err != nil {
		return task, fmt.Errorf("%w: %w", ErrReceiveFailed, err)
	}

	w, err := p.fs.Create(ctx, task.TempPath)
	if err != nil {
		return task, fmt.Errorf("%w: %w", ErrReceiveFailed, err)
	}

	src := r
	if p.opts.MaxFileBytes > 0 {
		src = io.LimitReader(r, p.opts.MaxFileBytes+1)
	}
	n, copyErr := io.Copy(w, &ctxReader{ctx: ctx, r: src})
	closeErr := w.Close()

	switch {
	case copyErr != nil:
		err = fmt.Errorf("%w: %w", ErrReceiveFailed, copyErr)
	case closeErr != nil:
		err = fmt.Errorf("%w: %w", ErrReceiveFailed, closeErr)
	case p.opts.MaxFileBytes > 0 && n > p.opts.MaxFileBytes:
		err = fmt.Errorf("%w: more than %d bytes", ErrTooLarge, p.opts.MaxFileBytes)
	}
	if err != nil {
		if rmErr := p.fs.Remove(context.WithoutCancel(ctx), task.TempPath); rmErr != nil {
			p.logger.Warn("failed to remove partial upload",
				zap.String("upload_id", task.ID.String()),
				zap.String("temp_path", task.TempPath),
				zap.Error(rmErr),
			)
		}
		p.metrics.RecordUpload("receive_failed", 0)
		return task, err
	}

	return task.received(n, p.now()), nil
}

// Publish atomically renames the temp file onto the destination. The temp
// file is left untouched when the rename cannot happen.
func (p *Publisher) Publish(ctx context.Context, task Task) Outcome {
	out := Outcome{Task: task}

	info, err := p.fs.Stat(ctx, task.DestPath)
	switch {
	case err == nil && info.IsDir():
		out.Err = fmt.Errorf("%w: %s", ErrDestinationIsDirectory, task.DestPath)
	case err != nil && !errors.Is(err, filesystem.ErrNotFound):
		out.Err = fmt.Errorf("%w: %w", ErrPublishFailed, err)
	default:
		if err := p.fs.Rename(ctx, task.TempPath, task.DestPath); err != nil {
			if errors.Is(err, filesystem.ErrIsDirectory) || errors.Is(err, filesystem.ErrExists) {
				out.Err = fmt.Errorf("%w: %s: %w", ErrDestinationIsDirectory, task.DestPath, err)
			} else {
				out.Err = fmt.Errorf("%w: %w", ErrPublishFailed, err)
			}
		}
	}

	if out.Err != nil {
		p.metrics.RecordUpload("publish_failed", 0)
		p.logger.Warn("upload publish failed, temp file retained",
			zap.String("upload_id", task.ID.String()),
			zap.String("user", task.User),
			zap.String("temp_path", task.TempPath),
			zap.String("dest_path", task.DestPath),
			zap.Error(out.Err),
		)
		return out
	}

	out.PublishedAt = p.now()
	p.metrics.RecordUpload("ok", task.Size)
	p.logger.Info("upload published",
		zap.String("upload_id", task.ID.String()),
		zap.String("user", task.User),
		zap.String("dest_path", task.DestPath),
		zap.Int64("size", task.Size),
	)
	return out
}

// PublishAll publishes independent tasks concurrently. Outcomes are in task
// order.
func (p *Publisher) PublishAll(ctx context.Context, tasks []Task) []Outcome {
	return iter.Map(tasks, func(t *Task) Outcome {
		return p.Publish(ctx, *t)
	})
}

// EnsureHome creates the user's home and writes the identity marker once.
// Two concurrent first requests may both write the marker; they write the
// same content.
func (p *Publisher) EnsureHome(ctx context.Context, username string, linkedIDs []string) error {
	home, err := p.resolver.Home(username)
	if err != nil {
		return err
	}
	if err := p.fs.MkdirAll(ctx, home.Rel); err != nil {
		return fmt.Errorf("create home: %w", err)
	}

	marker := home.Rel + p.opts.MarkerName
	exists, err := p.fs.Exists(ctx, marker)
	if err != nil {
		p.metrics.IncMarkerWrite("error")
		return fmt.Errorf("check identity marker: %w", err)
	}
	if exists {
		p.metrics.IncMarkerWrite("exists")
		return nil
	}

	if err := p.fs.WriteFile(ctx, marker, markerContent(username, linkedIDs)); err != nil {
		p.metrics.IncMarkerWrite("error")
		return fmt.Errorf("write identity marker: %w", err)
	}
	p.metrics.IncMarkerWrite("written")
	p.logger.Info("initialised home directory",
		zap.String("user", username),
		zap.Int("linked_ids", len(linkedIDs)),
	)
	return nil
}

func markerContent(username string, linkedIDs []string) []byte {
	if len(linkedIDs) == 0 {
		return []byte(username + "\n")
	}
	return []byte(strings.Join(linkedIDs, "\n") + "\n")
}

// baseName strips any client supplied directories from a file name.
func baseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimRight(name, "/")
	if name == "" {
		return ""
	}
	return path.Base(name)
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

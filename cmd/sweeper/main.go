// Command sweeper removes upload temp files that a failed publish left
// behind under the storage root.
//
// Usage:
//
//	./sweeper -root ./data -older-than 24h          # report only
//	./sweeper -root ./data -older-than 24h -delete  # remove them
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/stagingfs/internal/infrastructure/config"
	"github.com/GriffinCanCode/stagingfs/internal/infrastructure/logging"
	"github.com/GriffinCanCode/stagingfs/internal/providers/filesystem"
	"github.com/GriffinCanCode/stagingfs/internal/shared/id"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "sweeper:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("sweeper", flag.ContinueOnError)
	root := fs.String("root", "", "Storage root (defaults to STORAGE_ROOT or the configured root)")
	olderThan := fs.Duration("older-than", 24*time.Hour, "Only consider temp files older than this")
	pattern := fs.String("pattern", filesystem.DefaultPartPattern, "Doublestar pattern relative to the root")
	remove := fs.Bool("delete", false, "Delete matches instead of reporting them")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *root == "" {
		cfg, err := config.Read(os.Getenv("CONFIG_FILE"))
		if err != nil {
			return err
		}
		*root = cfg.Storage.Root
	}

	logger, err := logging.New(logging.DefaultConfig())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stale, err := filesystem.ScanParts(ctx, *root, filesystem.ScanOptions{
		Pattern:   *pattern,
		OlderThan: *olderThan,
	})
	if err != nil {
		return fmt.Errorf("scan %s: %w", *root, err)
	}

	var total int64
	for _, s := range stale {
		total += s.Size
		fields := []zap.Field{
			zap.String("path", s.Path),
			zap.Int64("size", s.Size),
			zap.Time("modified", s.ModifiedAt),
		}
		if uid, ok := id.UploadFromTempName(filepath.Base(s.Path)); ok {
			fields = append(fields, zap.String("upload_id", uid.String()))
			if created, err := uid.Created(); err == nil {
				fields = append(fields, zap.Duration("age", time.Since(created).Round(time.Second)))
			}
		}
		logger.Info("stale upload", fields...)
	}

	if !*remove {
		logger.Info("dry run complete",
			zap.Int("files", len(stale)),
			zap.Int64("bytes", total),
		)
		return nil
	}

	removed, err := filesystem.RemoveStale(ctx, stale)
	logger.Info("sweep complete",
		zap.Int("found", len(stale)),
		zap.Int("removed", removed),
		zap.Int64("bytes", total),
	)
	return err
}

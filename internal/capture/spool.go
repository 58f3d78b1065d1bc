// Package capture hosts the in-process capture channels that feed raw
// payloads into the pipeline. Browser-side channels (DOM polling, mutation
// bridges, network interception) live in external processes and push through
// the HTTP ingest API; this package provides the spool-directory channel for
// file-based producers.
package capture

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SourceSpool is the source label attached to spool-directory payloads.
const SourceSpool = "spool"

// Handler receives one raw payload and runs it to completion.
type Handler interface {
	Handle(ctx context.Context, source, raw string) (int, error)
}

// settleDelay gives writers a moment to finish before a spool file is read.
const settleDelay = 100 * time.Millisecond

// WatchSpool ingests payload files dropped into dir until ctx is cancelled.
// Files already present at startup are processed first. Each file is read,
// handed to the pipeline, and removed; hidden files are ignored. Per-file
// failures are logged and never stop the watch loop.
func WatchSpool(ctx context.Context, dir string, handler Handler, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("spool: watching", slog.String("dir", dir))

	// Drain anything that accumulated while we were not running.
	drainExisting(ctx, dir, handler, logger)

	for {
		select {
		case <-ctx.Done():
			logger.Info("spool: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if strings.HasPrefix(filepath.Base(ev.Name), ".") {
				continue
			}
			if info, statErr := os.Stat(ev.Name); statErr != nil || info.IsDir() {
				continue
			}

			time.Sleep(settleDelay)
			ingestFile(ctx, ev.Name, handler, logger)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("spool: watch error", slog.String("error", watchErr.Error()))
		}
	}
}

func drainExisting(ctx context.Context, dir string, handler Handler, logger *slog.Logger) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		ingestFile(ctx, path, handler, logger)
		return nil
	})
}

// ingestFile reads, handles, and removes one spool file.
func ingestFile(ctx context.Context, path string, handler Handler, logger *slog.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("spool: read failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	if raw := strings.TrimSpace(string(data)); raw != "" {
		committed, err := handler.Handle(ctx, SourceSpool, raw)
		if err != nil {
			logger.Warn("spool: handle aborted", slog.String("path", path), slog.String("error", err.Error()))
			return
		}
		logger.Debug("spool: ingested",
			slog.String("path", path),
			slog.Int("committed", committed))
	}

	if err := os.Remove(path); err != nil {
		logger.Warn("spool: remove failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

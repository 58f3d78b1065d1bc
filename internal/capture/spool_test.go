package capture

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recordingHandler struct {
	mu       sync.Mutex
	payloads []string
	sources  []string
}

func (h *recordingHandler) Handle(ctx context.Context, source, raw string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.payloads = append(h.payloads, raw)
	h.sources = append(h.sources, source)
	return 1, nil
}

func (h *recordingHandler) snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.payloads...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestWatchSpool_DrainsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "backlog.txt"), []byte("记笔记，买牛奶"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := &recordingHandler{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = WatchSpool(ctx, dir, h, discardLogger())
	}()

	waitFor(t, func() bool { return len(h.snapshot()) == 1 })
	got := h.snapshot()
	if got[0] != "记笔记，买牛奶" {
		t.Errorf("payload = %q", got[0])
	}

	// Processed files are removed from the spool.
	waitFor(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "backlog.txt"))
		return os.IsNotExist(err)
	})

	cancel()
	<-done
}

func TestWatchSpool_IngestsDroppedFile(t *testing.T) {
	dir := t.TempDir()
	h := &recordingHandler{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = WatchSpool(ctx, dir, h, discardLogger())
	}()

	// Give the watcher time to register before dropping the file.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "payload.txt"), []byte("豆包豆包，记任务，预约牙医"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(h.snapshot()) == 1 })
	if got := h.snapshot()[0]; got != "豆包豆包，记任务，预约牙医" {
		t.Errorf("payload = %q", got)
	}

	h.mu.Lock()
	source := h.sources[0]
	h.mu.Unlock()
	if source != SourceSpool {
		t.Errorf("source = %q, want %q", source, SourceSpool)
	}

	cancel()
	<-done
}

func TestWatchSpool_SkipsHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".partial"), []byte("记笔记，隐藏"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := &recordingHandler{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = WatchSpool(ctx, dir, h, discardLogger())
	}()

	time.Sleep(300 * time.Millisecond)
	if got := h.snapshot(); len(got) != 0 {
		t.Errorf("hidden file ingested: %v", got)
	}

	cancel()
	<-done
}

func TestWatchSpool_MissingDirFails(t *testing.T) {
	err := WatchSpool(context.Background(), filepath.Join(t.TempDir(), "absent"), &recordingHandler{}, discardLogger())
	if err == nil {
		t.Error("missing spool dir accepted")
	}
}

package internal

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func buildTestComponents(t *testing.T) *components {
	t.Helper()
	cfg := NewDefaultConfig()
	dir := t.TempDir()
	cfg.Vault.Path = filepath.Join(dir, "vault")
	cfg.SQLite.Path = filepath.Join(dir, "dedup.db")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	comp, err := build(cfg, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { comp.db.Close() })
	return comp
}

func TestComponents_HorizonFromConfig(t *testing.T) {
	comp := buildTestComponents(t)
	if got := comp.dedup.Horizon(); got != 36*time.Hour {
		t.Errorf("horizon = %v, want 36h", got)
	}
}

func TestComponents_SweepExpired(t *testing.T) {
	comp := buildTestComponents(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// A record two horizons old must be gone after the sweep.
	stale := time.Now().Add(-2 * comp.dedup.Horizon())
	if _, err := comp.db.CheckAndMark("stale", stale, comp.dedup.Horizon()); err != nil {
		t.Fatal(err)
	}

	comp.sweepExpired(logger)

	n, err := comp.db.Sweep(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("sweep left %d expired records behind", n)
	}
}

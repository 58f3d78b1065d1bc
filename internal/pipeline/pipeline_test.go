package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/command"
	"github.com/starford/ansuz/internal/dedup"
	"github.com/starford/ansuz/internal/extract"
	"github.com/starford/ansuz/internal/match"
	"github.com/starford/ansuz/internal/sink"
	"github.com/starford/ansuz/internal/testutil"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type env struct {
	pipe  *Pipeline
	clock *fakeClock
	vault string
	store dedup.Store
}

func newTestEnv(t *testing.T, committer Committer) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := newFakeClock(time.Date(2026, 9, 1, 14, 5, 0, 0, time.Local))

	table := testutil.DefaultTable()
	norm := testutil.DefaultNormalizer()
	matcher := match.New(table, "豆包豆包", logger)
	extractor := extract.New(table, []string{"assistant", "bot", "豆包"})

	store := testutil.TestStore(t)
	dd := dedup.New(store, norm, table, 36*time.Hour, false, logger)

	vault, provider := testutil.TestVault(t)
	if committer == nil {
		committer = sink.New(provider, "notes", "tasks", 5, logger, sink.WithClock(clock.Now))
	}

	pipe := New(extractor, norm, matcher, dd, committer, logger, WithClock(clock.Now))
	return &env{pipe: pipe, clock: clock, vault: vault, store: store}
}

func (e *env) readLog(t *testing.T, dir, date string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(e.vault, dir, date+".md"))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestHandle_FullCommandOneShot(t *testing.T) {
	e := newTestEnv(t, nil)

	n, err := e.pipe.Handle(context.Background(), "test", "豆包豆包，记笔记，买牛奶")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("committed = %d, want 1", n)
	}
	if got := e.readLog(t, "notes", "2026-09-01"); got != "- [14:05] 买牛奶\n" {
		t.Errorf("log = %q", got)
	}
}

func TestHandle_IrrelevantPayload(t *testing.T) {
	e := newTestEnv(t, nil)

	n, err := e.pipe.Handle(context.Background(), "test", "今天天气不错")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("committed = %d, want 0", n)
	}
}

func TestHandle_PendingAssociationWithinWindow(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx := context.Background()

	n, err := e.pipe.Handle(ctx, "test", "记任务")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("keyword-only committed %d commands", n)
	}

	e.clock.Advance(10 * time.Second)
	n, err = e.pipe.Handle(ctx, "test", "预约牙医")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("committed = %d, want 1", n)
	}
	if got := e.readLog(t, "tasks", "2026-09-01"); got != "- [ ] 预约牙医\n" {
		t.Errorf("log = %q", got)
	}
	if merges := e.pipe.Stats().Snapshot().PendingMerges; merges != 1 {
		t.Errorf("pending merges = %d, want 1", merges)
	}
}

func TestHandle_PendingExpires(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := e.pipe.Handle(ctx, "test", "记任务"); err != nil {
		t.Fatal(err)
	}
	e.clock.Advance(31 * time.Second)

	n, err := e.pipe.Handle(ctx, "test", "预约牙医")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("stale association committed %d commands", n)
	}
}

func TestHandle_PendingOverwrittenByNewerKeyword(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := e.pipe.Handle(ctx, "test", "记笔记"); err != nil {
		t.Fatal(err)
	}
	e.clock.Advance(5 * time.Second)
	if _, err := e.pipe.Handle(ctx, "test", "记任务"); err != nil {
		t.Fatal(err)
	}
	e.clock.Advance(5 * time.Second)

	n, err := e.pipe.Handle(ctx, "test", "预约牙医")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("committed = %d, want 1", n)
	}
	if got := e.readLog(t, "tasks", "2026-09-01"); got != "- [ ] 预约牙医\n" {
		t.Errorf("content landed in the wrong log: %q", got)
	}
}

func TestHandle_CrossChannelExactlyOnce(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx := context.Background()
	payload := "豆包豆包，记笔记，买牛奶"

	n1, err := e.pipe.Handle(ctx, "spool", payload)
	if err != nil {
		t.Fatal(err)
	}
	n2, err := e.pipe.Handle(ctx, "http", payload)
	if err != nil {
		t.Fatal(err)
	}
	if n1+n2 != 1 {
		t.Fatalf("committed %d+%d commands, want exactly 1", n1, n2)
	}
	if got := e.readLog(t, "notes", "2026-09-01"); got != "- [14:05] 买牛奶\n" {
		t.Errorf("log = %q", got)
	}
	if dups := e.pipe.Stats().Snapshot().DupMemory; dups != 1 {
		t.Errorf("memory dups = %d, want 1", dups)
	}
}

func TestHandle_DurableWindowSurvivesRestart(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx := context.Background()
	payload := "豆包豆包，记任务，预约牙医"

	if n, err := e.pipe.Handle(ctx, "test", payload); err != nil || n != 1 {
		t.Fatalf("first run: n=%d err=%v", n, err)
	}

	// A fresh pipeline over the same store models a process restart: the
	// recent set is empty but the durable window still holds the signature.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	table := testutil.DefaultTable()
	norm := testutil.DefaultNormalizer()
	dd := dedup.New(e.store, norm, table, 36*time.Hour, false, logger)
	_, provider := testutil.TestVault(t)
	s := sink.New(provider, "notes", "tasks", 5, logger)
	fresh := New(extract.New(table, nil), norm, match.New(table, "豆包豆包", logger),
		dd, s, logger, WithClock(e.clock.Now))

	n, err := fresh.Handle(ctx, "test", payload)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("restarted pipeline committed %d duplicates", n)
	}
	if dups := fresh.Stats().Snapshot().DupDurable; dups != 1 {
		t.Errorf("durable dups = %d, want 1", dups)
	}
}

type failingCommitter struct{ err error }

func (f *failingCommitter) Commit(context.Context, command.Command) error { return f.err }

func TestHandle_SinkFailureDropsCommand(t *testing.T) {
	e := newTestEnv(t, &failingCommitter{err: errors.New("disk full")})

	n, err := e.pipe.Handle(context.Background(), "test", "豆包豆包，记笔记，买牛奶")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("committed = %d, want 0", n)
	}
	snap := e.pipe.Stats().Snapshot()
	if snap.SinkErrors != 1 {
		t.Errorf("sink errors = %d, want 1", snap.SinkErrors)
	}
	if snap.Committed != 0 {
		t.Errorf("committed counter = %d, want 0", snap.Committed)
	}
}

func TestHandle_ContextCancellation(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.pipe.Handle(ctx, "test", "豆包豆包，记笔记，买牛奶")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestHandle_OnCommitHook(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	table := testutil.DefaultTable()
	norm := testutil.DefaultNormalizer()
	store := testutil.TestStore(t)
	dd := dedup.New(store, norm, table, 36*time.Hour, false, logger)
	_, provider := testutil.TestVault(t)
	s := sink.New(provider, "notes", "tasks", 5, logger)

	var got []command.Command
	pipe := New(extract.New(table, nil), norm, match.New(table, "豆包豆包", logger),
		dd, s, logger, WithOnCommit(func(cmd command.Command) { got = append(got, cmd) }))

	if _, err := pipe.Handle(context.Background(), "test", "豆包豆包，记笔记，买牛奶"); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Kind != command.Note || got[0].Content != "买牛奶" {
		t.Errorf("hook saw %v", got)
	}
}

// Package pipeline wires extraction, normalization, matching, pending
// association, deduplication, and the sink into the single entry point
// capture channels call.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/ansuz/internal/command"
	"github.com/starford/ansuz/internal/dedup"
	"github.com/starford/ansuz/internal/extract"
	"github.com/starford/ansuz/internal/match"
	"github.com/starford/ansuz/internal/textnorm"
)

// Committer is the sink surface the pipeline commits through.
type Committer interface {
	Commit(ctx context.Context, cmd command.Command) error
}

// Pipeline turns raw capture payloads into exactly-once committed commands.
//
// The pending-command slot and the tier-1 recent set are process-wide mutable
// state owned by one Pipeline instance and guarded by a single mutex, so
// concurrent payloads cannot cross-associate keyword/content pairs or
// interleave tier-1 lookups. Extraction, normalization, and matching are pure
// and run outside the lock; tier-2 lookups and sink appends run after it.
type Pipeline struct {
	extractor *extract.Extractor
	norm      *textnorm.Normalizer
	matcher   *match.Matcher
	dedup     *dedup.Deduplicator
	sink      Committer
	logger    *slog.Logger

	expiry   time.Duration
	now      func() time.Time
	onCommit func(command.Command)

	mu      sync.Mutex
	recent  *dedup.RecentSet
	pending pendingSlot

	stats Stats
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithPendingExpiry overrides the keyword-only association window.
func WithPendingExpiry(d time.Duration) Option {
	return func(p *Pipeline) { p.expiry = d }
}

// WithRecentCapacity sets the tier-1 recent-set bound.
func WithRecentCapacity(n int) Option {
	return func(p *Pipeline) { p.recent = dedup.NewRecentSet(n) }
}

// WithOnCommit registers a hook invoked after every successful commit.
func WithOnCommit(fn func(command.Command)) Option {
	return func(p *Pipeline) { p.onCommit = fn }
}

// New assembles a Pipeline.
func New(extractor *extract.Extractor, norm *textnorm.Normalizer, matcher *match.Matcher,
	dd *dedup.Deduplicator, sink Committer, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		extractor: extractor,
		norm:      norm,
		matcher:   matcher,
		dedup:     dd,
		sink:      sink,
		logger:    logger,
		expiry:    DefaultPendingExpiry,
		now:       time.Now,
		recent:    dedup.NewRecentSet(dedup.DefaultRecentCapacity),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stats returns the pipeline counters.
func (p *Pipeline) Stats() *Stats {
	return &p.stats
}

// accepted is a command that cleared classification and tier-1 dedup and
// still has to pass the durable window and the sink.
type accepted struct {
	cmd command.Command
}

// Handle runs the full pipeline for one raw payload and returns the number
// of commands committed. It blocks until every accepted command has been
// written or dropped, so a capture loop can rate-limit on back-pressure from
// the sink's admission gate. Failures past classification affect single
// commands only and are logged, never propagated; the returned error is
// non-nil only when ctx is cancelled mid-payload.
func (p *Pipeline) Handle(ctx context.Context, source, raw string) (int, error) {
	p.stats.payloads.Add(1)

	candidates := p.extractor.Extract(raw)
	if len(candidates) == 0 {
		return 0, nil
	}
	p.stats.candidates.Add(int64(len(candidates)))

	batch := p.classify(source, candidates)

	committed := 0
	for _, a := range batch {
		if err := ctx.Err(); err != nil {
			return committed, err
		}
		if p.commitOne(ctx, source, a.cmd) {
			committed++
		}
	}
	return committed, nil
}

// classify walks every candidate line in extraction order under the state
// lock: matching feeds the pending slot, and survivors pass tier-1 dedup.
func (p *Pipeline) classify(source string, candidates []command.Candidate) []accepted {
	p.mu.Lock()
	defer p.mu.Unlock()

	var batch []accepted
	for _, cand := range candidates {
		normalized := p.norm.Normalize(cand.Text)
		if normalized == "" {
			continue
		}

		for line := range strings.SplitSeq(normalized, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			now := p.now()
			p.pending.expireIfStale(now, p.expiry)

			parsed := p.matcher.Classify(line)
			switch parsed.Class {
			case command.KeywordOnly:
				p.pending.arm(parsed.Kind, now)
				p.logger.Debug("pipeline: armed pending",
					slog.String("source", source),
					slog.String("kind", parsed.Kind.String()))
				continue

			case command.Content:
				kind, ok := p.pending.take(now, p.expiry)
				if !ok {
					continue
				}
				parsed = command.ParsedLine{Class: command.FullCommand, Kind: kind, Content: parsed.Content}
				p.stats.pendingMerges.Add(1)

			case command.FullCommand:
				// Committed independently; an armed slot is left untouched.

			default:
				continue
			}

			p.stats.commands.Add(1)

			if p.recent.Seen(p.dedup.MemoryKey(line)) {
				p.stats.dupMemory.Add(1)
				p.logger.Debug("pipeline: suppressed by recent set",
					slog.String("source", source),
					slog.String("content", parsed.Content))
				continue
			}

			batch = append(batch, accepted{cmd: command.Command{
				Kind:      parsed.Kind,
				Content:   parsed.Content,
				Timestamp: cand.Timestamp,
			}})
		}
	}
	return batch
}

// commitOne runs tier-2 dedup and the sink for one accepted command.
// The durable mark happens before the append: a failed append after a
// successful mark is a lost command, the accepted trade-off favoring
// no-duplicate over no-loss.
func (p *Pipeline) commitOne(ctx context.Context, source string, cmd command.Command) bool {
	dup, drop := p.dedup.CheckDurable(cmd.Kind, cmd.Content, p.now())
	if drop {
		p.stats.storeDropped.Add(1)
		return false
	}
	if dup {
		p.stats.dupDurable.Add(1)
		p.logger.Debug("pipeline: suppressed by durable window",
			slog.String("source", source),
			slog.String("content", cmd.Content))
		return false
	}

	if err := p.sink.Commit(ctx, cmd); err != nil {
		p.stats.sinkErrors.Add(1)
		p.logger.Error("pipeline: commit failed, command lost",
			slog.String("source", source),
			slog.String("kind", cmd.Kind.String()),
			slog.String("error", err.Error()))
		return false
	}

	p.stats.committed.Add(1)
	if p.onCommit != nil {
		p.onCommit(cmd)
	}
	return true
}

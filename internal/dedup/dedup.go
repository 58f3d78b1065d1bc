package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/starford/ansuz/internal/command"
	"github.com/starford/ansuz/internal/textnorm"
)

// Deduplicator owns the durable tier of duplicate suppression and the
// signature scheme shared by both tiers.
type Deduplicator struct {
	store    Store
	norm     *textnorm.Normalizer
	table    *command.VariantTable
	horizon  time.Duration
	failOpen bool
	logger   *slog.Logger
}

// New builds a Deduplicator over the given store. When failOpen is true a
// store failure mid-run admits the command as "not a duplicate"; otherwise
// the command is dropped.
func New(store Store, norm *textnorm.Normalizer, table *command.VariantTable,
	horizon time.Duration, failOpen bool, logger *slog.Logger) *Deduplicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{
		store:    store,
		norm:     norm,
		table:    table,
		horizon:  horizon,
		failOpen: failOpen,
		logger:   logger,
	}
}

// MemoryKey computes the tier-1 signature of one normalized line. Lines that
// still contain a canonical keyword hash strictly, so distinct keyword
// utterances sharing trivial punctuation differences are not over-suppressed;
// plain content hashes in denoised form.
func (d *Deduplicator) MemoryKey(line string) string {
	if d.table.ContainsCanonical(line) {
		return hashKey(line)
	}
	return hashKey(d.norm.Denoise(line))
}

// DurableKey computes the tier-2 signature of a would-be command.
func (d *Deduplicator) DurableKey(kind command.Kind, content string) string {
	return hashKey(kind.String() + "|" + d.norm.Denoise(content))
}

// CheckDurable consults the sliding window for a would-be command, marking
// its signature seen. It returns whether the command is a duplicate and
// whether it must be dropped because the store failed and the policy is
// fail-closed.
func (d *Deduplicator) CheckDurable(kind command.Kind, content string, now time.Time) (duplicate, drop bool) {
	key := d.DurableKey(kind, content)
	dup, err := d.store.CheckAndMark(key, now, d.horizon)
	if err != nil {
		d.logger.Error("dedup: store check failed",
			slog.String("error", err.Error()),
			slog.Bool("fail_open", d.failOpen))
		return false, !d.failOpen
	}
	return dup, false
}

// Horizon returns the configured sliding-window duration.
func (d *Deduplicator) Horizon() time.Duration {
	return d.horizon
}

func hashKey(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

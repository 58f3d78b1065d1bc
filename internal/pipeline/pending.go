package pipeline

import (
	"time"

	"github.com/starford/ansuz/internal/command"
)

// DefaultPendingExpiry is how long a keyword-only utterance stays armed
// waiting for its content line.
const DefaultPendingExpiry = 30 * time.Second

// pendingSlot is the single-slot state machine that associates a keyword-only
// utterance with the next content line. Not a queue: a second keyword-only
// utterance overwrites the first. Expiry is lazy, applied when the slot is
// read. Guarded by the pipeline mutex.
type pendingSlot struct {
	armed     bool
	kind      command.Kind
	createdAt time.Time
}

// arm records a keyword-only utterance, overwriting any previous one.
func (p *pendingSlot) arm(kind command.Kind, now time.Time) {
	p.armed = true
	p.kind = kind
	p.createdAt = now
}

// expireIfStale clears an armed slot whose age exceeds ttl.
func (p *pendingSlot) expireIfStale(now time.Time, ttl time.Duration) {
	if p.armed && now.Sub(p.createdAt) > ttl {
		p.armed = false
	}
}

// take consumes the slot if it is armed and unexpired at now.
func (p *pendingSlot) take(now time.Time, ttl time.Duration) (command.Kind, bool) {
	p.expireIfStale(now, ttl)
	if !p.armed {
		return 0, false
	}
	p.armed = false
	return p.kind, true
}

// Package command defines the domain types for Ansuz: command kinds,
// extraction candidates, classification results, and the variant table.
package command

// Kind identifies the type of a captured command.
type Kind int

// Command kinds.
const (
	Note Kind = iota
	Task
)

// String returns the stable identifier used in dedup keys and logs.
func (k Kind) String() string {
	switch k {
	case Note:
		return "note"
	case Task:
		return "task"
	}
	return "unknown"
}

// ParseKind maps a stable identifier back to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "note":
		return Note, true
	case "task":
		return Task, true
	}
	return Note, false
}

// Candidate is a might-be-relevant text fragment produced by extraction.
// Timestamp is epoch seconds carried over from the payload, 0 when unknown.
type Candidate struct {
	Text      string
	Timestamp int64
}

// Command is an accepted (kind, content, timestamp) triple bound for the sink.
// Timestamp is the epoch-seconds time of record, 0 when only the commit time
// is known.
type Command struct {
	Kind      Kind
	Content   string
	Timestamp int64
}

// Class is the classification of one normalized line.
type Class int

// Line classifications.
const (
	// Irrelevant lines are dropped: empty, or ambiguous partial keyword usage.
	Irrelevant Class = iota
	// FullCommand carries a keyword and content in one line.
	FullCommand
	// KeywordOnly is a bare trigger utterance; content is expected to follow.
	KeywordOnly
	// Content is a plain line with no keyword, a candidate for merging with
	// a pending keyword-only utterance.
	Content
)

// ParsedLine is the result of classifying one normalized line.
// Kind is meaningful for FullCommand and KeywordOnly; Content holds the
// command content for FullCommand and the whole line for Content.
type ParsedLine struct {
	Class   Class
	Kind    Kind
	Content string
}

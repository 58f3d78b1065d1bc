// Package extract turns raw capture payloads (free text or JSON) into
// candidate text fragments for classification.
package extract

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/command"
)

// maxCandidates caps extraction output to protect against pathological
// payloads.
const maxCandidates = 50

// textKeys are the JSON keys that commonly carry message text. They are
// visited before the rest of a mapping so the most likely fragments win the
// candidate cap.
var textKeys = []string{"text", "content", "message", "delta", "display_text"}

// timestampKeys are the JSON keys scanned for epoch timestamps.
var timestampKeys = []string{"timestamp", "create_time", "created_at", "ts", "time"}

var fallbackRe = regexp.MustCompile(`"(?:text|content|message|delta|display_text)"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// Extractor produces candidates from raw payloads. Pure: no side effects,
// safe for concurrent use.
type Extractor struct {
	table        *command.VariantTable
	otherSenders map[string]struct{}
}

// New builds an Extractor. otherSenders lists sender identifiers that mark a
// JSON subtree as written by the other party; text under such nodes is never
// a command from the user and is skipped.
func New(table *command.VariantTable, otherSenders []string) *Extractor {
	m := make(map[string]struct{}, len(otherSenders))
	for _, s := range otherSenders {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			m[s] = struct{}{}
		}
	}
	return &Extractor{table: table, otherSenders: m}
}

// walkCtx is the immutable visitor context threaded through the JSON walk.
type walkCtx struct {
	userMessage bool
	timestamp   int64
}

// Extract returns the candidate fragments of one raw payload.
//
// JSON-shaped payloads are parsed and walked; only string leaves inside
// user-authored subtrees that contain a keyword variant are kept, each paired
// with the nearest enclosing timestamp. If parsing fails, a regex scan for
// "key": "value" fragments is used instead. Non-JSON payloads are yielded
// verbatim.
func (e *Extractor) Extract(raw string) []command.Candidate {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}

	if jsonShaped(text) {
		var obj any
		if err := json.Unmarshal([]byte(text), &obj); err == nil {
			w := &walker{e: e}
			w.visit(obj, walkCtx{userMessage: true})
			if len(w.out) > 0 || w.suppressed {
				return w.out
			}
			// Parsed fine but nothing in it was message-shaped; fall through
			// to the raw scan.
		}
		// The raw scan keeps every text-key match, keyword or not: a
		// content-only fragment arriving in a malformed chunk must still be
		// able to merge with a pending keyword-only utterance.
		if matches := fallbackRe.FindAllStringSubmatch(text, -1); len(matches) > 0 {
			out := make([]command.Candidate, 0, len(matches))
			for _, m := range matches {
				out = append(out, command.Candidate{Text: unescape(m[1])})
				if len(out) == maxCandidates {
					break
				}
			}
			return out
		}
		return nil
	}

	return []command.Candidate{{Text: text}}
}

func jsonShaped(s string) bool {
	return (strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) ||
		(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"))
}

// walker accumulates candidates during the recursive JSON visit.
type walker struct {
	e   *Extractor
	out []command.Candidate
	// suppressed records that at least one keyword-bearing leaf was skipped
	// because it belonged to the other party; the raw-scan fallback must not
	// resurrect it.
	suppressed bool
}

func (w *walker) visit(node any, ctx walkCtx) {
	if len(w.out) >= maxCandidates {
		return
	}

	switch v := node.(type) {
	case string:
		if !w.e.table.ContainsVariant(v) {
			return
		}
		if !ctx.userMessage {
			w.suppressed = true
			return
		}
		w.out = append(w.out, command.Candidate{Text: v, Timestamp: ctx.timestamp})

	case []any:
		for _, item := range v {
			w.visit(item, ctx)
		}

	case map[string]any:
		next := ctx
		if w.e.otherParty(v) {
			next.userMessage = false
		}
		if ts, ok := timestampOf(v); ok {
			next.timestamp = ts
		}

		visited := make(map[string]struct{}, len(textKeys))
		for _, key := range textKeys {
			if item, ok := v[key]; ok {
				w.visit(item, next)
				visited[key] = struct{}{}
			}
		}

		// Remaining values in sorted key order for deterministic output.
		rest := make([]string, 0, len(v))
		for key := range v {
			if _, done := visited[key]; !done {
				rest = append(rest, key)
			}
		}
		sort.Strings(rest)
		for _, key := range rest {
			w.visit(v[key], next)
		}
	}
}

// otherParty reports whether a mapping carries an explicit other-party
// marker: a non-user role, a false is_user flag, or a known other-party
// sender identifier.
func (e *Extractor) otherParty(m map[string]any) bool {
	if role, ok := m["role"].(string); ok {
		switch strings.ToLower(role) {
		case "assistant", "bot", "system":
			return true
		}
	}
	if isUser, ok := m["is_user"].(bool); ok && !isUser {
		return true
	}
	for _, key := range []string{"sender", "sender_id", "author", "from"} {
		if s, ok := m[key].(string); ok {
			if _, other := e.otherSenders[strings.ToLower(s)]; other {
				return true
			}
		}
	}
	return false
}

// timestampOf returns the epoch-seconds timestamp carried by a mapping, if
// any. Millisecond values are scaled down.
func timestampOf(m map[string]any) (int64, bool) {
	for _, key := range timestampKeys {
		raw, ok := m[key]
		if !ok {
			continue
		}
		var ts int64
		switch v := raw.(type) {
		case float64:
			ts = int64(v)
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				continue
			}
			ts = int64(f)
		default:
			continue
		}
		if ts <= 0 {
			continue
		}
		if ts > 1e12 { // milliseconds
			ts /= 1000
		}
		return ts, true
	}
	return 0, false
}

// unescape resolves the common backslash escapes found in raw-scanned JSON
// string fragments.
var unescaper = strings.NewReplacer(
	`\"`, `"`,
	`\\`, `\`,
	`\/`, `/`,
	`\n`, "\n",
	`\t`, "\t",
	`\r`, "\r",
	`\b`, "\b",
	`\f`, "\f",
)

func unescape(s string) string {
	return unescaper.Replace(s)
}

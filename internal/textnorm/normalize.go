// Package textnorm cleans raw chat lines into a canonical form before
// matching and hashing.
//
// Pipeline order:
//  1. Strip Unicode format characters (zero-width spaces, ZWJ, BOM).
//  2. Drop the decorative share token and unify full stops to commas.
//  3. Collapse a doubled keyword prefix (optionally preceded by the wake
//     phrase) down to a single canonical occurrence.
//  4. Collapse runs of horizontal whitespace to a single space.
//  5. Strip trailing sentence-ending punctuation from the right.
//
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s).
package textnorm

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// shareToken is the decorative marker the chat surface appends to copied text.
const shareToken = "分享"

// trailingPunct are the sentence-ending characters trimmed from the right.
const trailingPunct = "。．!！?？，,.;；:： \t"

var (
	spaceRe   = regexp.MustCompile(`[ \t]+`)
	denoiseRe = regexp.MustCompile(`[分享\s。．·!！?？、,.，:：;；\-]+`)
)

// pool of format-character strippers; transformers carry state and are not
// safe for concurrent reuse.
var stripPool = sync.Pool{
	New: func() any {
		return runes.Remove(runes.In(unicode.Cf))
	},
}

// Normalizer rewrites raw lines into canonical form. Its prefix-collapse
// rules are compiled from the configured keywords and wake phrase, so one
// instance is built at startup and shared; it is safe for concurrent use.
type Normalizer struct {
	notePrefixRe *regexp.Regexp
	taskPrefixRe *regexp.Regexp
	noteKeyword  string
	taskKeyword  string
}

// New builds a Normalizer for the given canonical keywords and wake phrase.
func New(noteKeyword, taskKeyword, wakePhrase string) *Normalizer {
	sep := `[，,:：\s]*`
	wake := ""
	if wakePhrase != "" {
		wake = `(?:` + regexp.QuoteMeta(wakePhrase) + sep + `)?`
	}
	doubled := func(kw string) *regexp.Regexp {
		q := regexp.QuoteMeta(kw)
		return regexp.MustCompile(`^` + wake + q + sep + q + sep)
	}
	return &Normalizer{
		notePrefixRe: doubled(noteKeyword),
		taskPrefixRe: doubled(taskKeyword),
		noteKeyword:  noteKeyword,
		taskKeyword:  taskKeyword,
	}
}

// Normalize returns the canonical form of text.
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}

	tr := stripPool.Get().(transform.Transformer)
	s, _, _ := transform.String(tr, text)
	tr.Reset()
	stripPool.Put(tr)

	s = strings.ReplaceAll(s, shareToken, "")
	s = strings.ReplaceAll(s, "。", "，")

	s = n.notePrefixRe.ReplaceAllString(s, n.noteKeyword+"，")
	s = n.taskPrefixRe.ReplaceAllString(s, n.taskKeyword+"，")

	s = spaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, trailingPunct)
	return s
}

// Denoise normalizes text and then removes punctuation, whitespace, and the
// share token entirely, so near-identical utterances reduce to the same
// string prior to hashing.
func (n *Normalizer) Denoise(text string) string {
	return denoiseRe.ReplaceAllString(n.Normalize(text), "")
}

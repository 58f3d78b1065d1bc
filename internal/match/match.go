// Package match classifies normalized chat lines into command parses using
// patterns compiled once from the configured variant table.
package match

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/starford/ansuz/internal/command"
)

const (
	// sepClass are separators tolerated between the keyword and its content.
	sepClass = `[，,。．:：;；、\s]`
	// politeness particles that may trail a spoken trigger.
	politeAlt = `(?:吧|呀|啊|哈|呢|谢谢)`
	// filler words speech-to-text commonly inserts before the trigger.
	fillerAlt = `(?:呃|嗯|哦|那个|就是|麻烦|请)`
	// helpPrefix is the "do it for me" lead-in tolerated before the keyword.
	helpPrefix = `(?:帮我)?`
)

// Matcher holds the compiled command patterns for one variant table.
// Safe for concurrent use.
type Matcher struct {
	table       *command.VariantTable
	fullRe      *regexp.Regexp
	keywordRe   *regexp.Regexp
	contentTrim *regexp.Regexp
	logger      *slog.Logger
}

// New compiles a Matcher from the variant table and wake phrase. Patterns
// are case-insensitive so latin-alphabet variants match regardless of casing.
func New(table *command.VariantTable, wakePhrase string, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}

	quoted := make([]string, 0, len(table.Variants()))
	for _, v := range table.Variants() {
		quoted = append(quoted, regexp.QuoteMeta(v))
	}
	alt := `(` + strings.Join(quoted, "|") + `)`

	// The wake phrase survives normalization when the keyword is not
	// doubled, so tolerate it here too.
	wake := ""
	if wakePhrase != "" {
		wake = `(?:` + regexp.QuoteMeta(wakePhrase) + sepClass + `*)?`
	}
	prefix := `^(?:` + fillerAlt + sepClass + `*)*` + wake +
		`(?:` + fillerAlt + sepClass + `*)*` + helpPrefix

	tail := `(?:` + sepClass + `|` + politeAlt + `)`

	return &Matcher{
		table:       table,
		fullRe:      regexp.MustCompile(`(?i)` + prefix + alt + tail + `*(.+)$`),
		keywordRe:   regexp.MustCompile(`(?i)` + prefix + alt + tail + `*$`),
		contentTrim: regexp.MustCompile(`(?i)^` + helpPrefix + `(?:` + strings.Join(quoted, "|") + `)` + tail + `*`),
		logger:      logger,
	}
}

// Classify decides what one already-normalized line is.
//
// Order matters: keyword-only is tried before full-command so a bare trigger
// followed by politeness particles is not mistaken for a command whose
// content is the particle.
func (m *Matcher) Classify(line string) command.ParsedLine {
	if line == "" {
		return command.ParsedLine{Class: command.Irrelevant}
	}

	if sm := m.keywordRe.FindStringSubmatch(line); sm != nil {
		if kind, ok := m.resolve(sm[1]); ok {
			return command.ParsedLine{Class: command.KeywordOnly, Kind: kind}
		}
		return m.classifyPlain(line)
	}

	if sm := m.fullRe.FindStringSubmatch(line); sm != nil {
		kind, ok := m.resolve(sm[1])
		if !ok {
			return m.classifyPlain(line)
		}
		content := strings.TrimSpace(m.contentTrim.ReplaceAllString(strings.TrimSpace(sm[2]), ""))
		if content == "" {
			return command.ParsedLine{Class: command.KeywordOnly, Kind: kind}
		}
		return command.ParsedLine{Class: command.FullCommand, Kind: kind, Content: content}
	}

	return m.classifyPlain(line)
}

// classifyPlain applies the content-vs-irrelevant split: a line holding no
// canonical keyword is plain content; one holding a canonical keyword that
// matched neither pattern is ambiguous partial usage and is dropped.
func (m *Matcher) classifyPlain(line string) command.ParsedLine {
	if !m.table.ContainsCanonical(line) {
		return command.ParsedLine{Class: command.Content, Content: line}
	}
	return command.ParsedLine{Class: command.Irrelevant}
}

// resolve maps a matched surface form to its Kind. A miss means the
// alternation and the lookup table disagree; that is an internal
// inconsistency, logged and tolerated.
func (m *Matcher) resolve(matched string) (command.Kind, bool) {
	kind, ok := m.table.KindOf(matched)
	if !ok {
		m.logger.Warn("match: variant missing from kind table",
			slog.String("variant", matched))
	}
	return kind, ok
}

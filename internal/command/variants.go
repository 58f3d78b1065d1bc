package command

import (
	"sort"
	"strings"
)

// VariantTable maps every declared surface form of a trigger keyword back to
// its canonical Kind. Variants cover speech-to-text homophones, colloquial
// padding ("记个笔记"), and truncations. The table is built once from
// configuration and is immutable afterwards.
type VariantTable struct {
	noteKeyword string
	taskKeyword string
	variants    []string        // all variants, longest first
	kindOf      map[string]Kind // lower-cased variant -> kind
}

// NewVariantTable builds a table from the two canonical keywords and their
// extra variants. The canonical keywords are always included as variants of
// themselves; duplicates are dropped.
func NewVariantTable(noteKeyword, taskKeyword string, noteVariants, taskVariants []string) *VariantTable {
	t := &VariantTable{
		noteKeyword: noteKeyword,
		taskKeyword: taskKeyword,
		kindOf:      make(map[string]Kind),
	}

	add := func(v string, k Kind) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		key := strings.ToLower(v)
		if _, dup := t.kindOf[key]; dup {
			return
		}
		t.kindOf[key] = k
		t.variants = append(t.variants, v)
	}

	add(noteKeyword, Note)
	add(taskKeyword, Task)
	for _, v := range noteVariants {
		add(v, Note)
	}
	for _, v := range taskVariants {
		add(v, Task)
	}

	// Longest first so alternation matching prefers the most specific form.
	sort.SliceStable(t.variants, func(i, j int) bool {
		return len(t.variants[i]) > len(t.variants[j])
	})

	return t
}

// NoteKeyword returns the canonical note trigger.
func (t *VariantTable) NoteKeyword() string { return t.noteKeyword }

// TaskKeyword returns the canonical task trigger.
func (t *VariantTable) TaskKeyword() string { return t.taskKeyword }

// Variants returns all declared surface forms, longest first.
func (t *VariantTable) Variants() []string { return t.variants }

// KindOf resolves a matched surface form (case-insensitively) to its Kind.
func (t *VariantTable) KindOf(v string) (Kind, bool) {
	k, ok := t.kindOf[strings.ToLower(v)]
	return k, ok
}

// ContainsCanonical reports whether s contains either canonical keyword as a
// substring. Variants deliberately do not count here: the content/irrelevant
// split in the matcher depends on canonical occurrences only.
func (t *VariantTable) ContainsCanonical(s string) bool {
	return strings.Contains(s, t.noteKeyword) || strings.Contains(s, t.taskKeyword)
}

// ContainsVariant reports whether s contains any declared surface form as a
// substring. Used by the extractor to keep only might-be-relevant fragments.
func (t *VariantTable) ContainsVariant(s string) bool {
	ls := strings.ToLower(s)
	for _, v := range t.variants {
		if strings.Contains(ls, strings.ToLower(v)) {
			return true
		}
	}
	return false
}

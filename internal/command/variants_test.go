package command

import (
	"testing"
)

func testTable() *VariantTable {
	return NewVariantTable("记笔记", "记任务",
		[]string{"记个笔记", "几笔记"},
		[]string{"记个任务", "记人物"})
}

func TestKindString(t *testing.T) {
	if Note.String() != "note" || Task.String() != "task" {
		t.Errorf("kind strings = %q, %q", Note.String(), Task.String())
	}
}

func TestParseKind(t *testing.T) {
	if k, ok := ParseKind("task"); !ok || k != Task {
		t.Errorf("ParseKind(task) = %v, %v", k, ok)
	}
	if _, ok := ParseKind("garbage"); ok {
		t.Error("ParseKind(garbage) should fail")
	}
}

func TestVariantTable_KindOf(t *testing.T) {
	tbl := testTable()
	cases := map[string]Kind{
		"记笔记":  Note,
		"记个笔记": Note,
		"几笔记":  Note,
		"记任务":  Task,
		"记人物":  Task,
	}
	for v, want := range cases {
		got, ok := tbl.KindOf(v)
		if !ok || got != want {
			t.Errorf("KindOf(%q) = %v, %v; want %v", v, got, ok, want)
		}
	}
	if _, ok := tbl.KindOf("没有的词"); ok {
		t.Error("unknown variant should miss")
	}
}

func TestVariantTable_VariantsLongestFirst(t *testing.T) {
	vs := testTable().Variants()
	for i := 1; i < len(vs); i++ {
		if len(vs[i-1]) < len(vs[i]) {
			t.Fatalf("variants not longest-first: %v", vs)
		}
	}
}

func TestVariantTable_DuplicatesDropped(t *testing.T) {
	tbl := NewVariantTable("记笔记", "记任务", []string{"记笔记", "记笔记"}, nil)
	if got := len(tbl.Variants()); got != 2 {
		t.Errorf("len(variants) = %d, want 2", got)
	}
}

func TestVariantTable_ContainsCanonical(t *testing.T) {
	tbl := testTable()
	if !tbl.ContainsCanonical("今天记笔记了吗") {
		t.Error("canonical note keyword should be found")
	}
	// A variant occurrence does not count as canonical.
	if tbl.ContainsCanonical("今天几笔记了吗") {
		t.Error("variant should not count as canonical")
	}
}

func TestVariantTable_ContainsVariant(t *testing.T) {
	tbl := testTable()
	if !tbl.ContainsVariant("请帮我记人物和这事") {
		t.Error("task variant should be found")
	}
	if tbl.ContainsVariant("完全无关的句子") {
		t.Error("unrelated text should not match")
	}
}

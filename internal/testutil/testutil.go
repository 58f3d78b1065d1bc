// Package testutil provides shared test helpers for setting up vaults,
// dedup stores, and pipeline fixtures.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/ansuz/internal/command"
	"github.com/starford/ansuz/internal/dedup"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/textnorm"
)

// TestStore creates a temporary SQLite dedup store that is automatically
// cleaned up.
func TestStore(t *testing.T) *dedup.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := dedup.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// DefaultTable builds the variant table used by most fixtures: the stock
// Chinese keywords plus a homophone variant each.
func DefaultTable() *command.VariantTable {
	return command.NewVariantTable("记笔记", "记任务",
		[]string{"记个笔记", "记一下笔记", "几笔记"},
		[]string{"记个任务", "记一下任务", "记人物"})
}

// DefaultNormalizer builds the normalizer matching DefaultTable.
func DefaultNormalizer() *textnorm.Normalizer {
	return textnorm.New("记笔记", "记任务", "豆包豆包")
}

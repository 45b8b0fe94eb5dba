// Package vaultfs writes and removes vault files in tests. The service only
// ever reads the vault, so these helpers live apart from internal/storage.
package vaultfs

import (
	"os"
	"path/filepath"
	"testing"
)

// TempPattern names in-flight writes. The leading dot keeps the watcher and
// storage.List from treating them as entity files.
const TempPattern = ".tagweave-tmp-*"

// Write replaces rel under root with content through a temp file and a
// rename, so a watcher never sees a partial file.
func Write(t *testing.T, root, rel string, content []byte) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("vaultfs: mkdir %s: %v", dir, err)
	}
	tmp, err := os.CreateTemp(dir, TempPattern)
	if err != nil {
		t.Fatalf("vaultfs: create temp: %v", err)
	}
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		t.Fatalf("vaultfs: write %s: %v", rel, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		t.Fatalf("vaultfs: close %s: %v", rel, err)
	}
	if err := os.Rename(tmp.Name(), abs); err != nil {
		_ = os.Remove(tmp.Name())
		t.Fatalf("vaultfs: rename %s: %v", rel, err)
	}
}

// Remove deletes rel under root.
func Remove(t *testing.T, root, rel string) {
	t.Helper()
	if err := os.Remove(filepath.Join(root, filepath.FromSlash(rel))); err != nil {
		t.Fatalf("vaultfs: remove %s: %v", rel, err)
	}
}

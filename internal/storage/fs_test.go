package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/tagweave/internal/checksum"
	"github.com/starford/tagweave/internal/testutil/vaultfs"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	require.NoError(t, err)
	return fs
}

func TestRead(t *testing.T) {
	s := tempVault(t)
	content := []byte("---\nid: a\n---\n")
	vaultfs.Write(t, s.Root(), "words/a.md", content)

	got, err := s.Read("words/a.md")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	vaultfs.Remove(t, s.Root(), "words/a.md")
	_, err = s.Read("words/a.md")
	assert.Error(t, err)
}

func TestList_EntityFilesOnly(t *testing.T) {
	s := tempVault(t)
	vaultfs.Write(t, s.Root(), "b.md", []byte("b"))
	vaultfs.Write(t, s.Root(), "sub/a.md", []byte("a"))
	vaultfs.Write(t, s.Root(), "readme.txt", []byte("not md"))
	vaultfs.Write(t, s.Root(), ".hidden.md", []byte("hidden"))
	vaultfs.Write(t, s.Root(), ".trash/c.md", []byte("trashed"))

	items, err := s.List("")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b.md", items[0].Path)
	assert.Equal(t, checksum.Sum([]byte("b")), items[0].Checksum)
	assert.Equal(t, filepath.Join("sub", "a.md"), items[1].Path)
}

func TestTraversalBlocked(t *testing.T) {
	s := tempVault(t)
	for _, p := range []string{"../../etc/passwd", "../outside.md", "/etc/shadow"} {
		_, err := s.Read(p)
		assert.Error(t, err, p)
		_, err = s.List(p)
		assert.Error(t, err, p)
	}
}

func TestNewFS_Invalid(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	f, err := os.CreateTemp(t.TempDir(), "file-*")
	require.NoError(t, err)
	_ = f.Close()
	_, err = NewFS(f.Name())
	assert.Error(t, err)
}

func TestIsEntityFile(t *testing.T) {
	assert.True(t, IsEntityFile("a/b/word.md"))
	assert.False(t, IsEntityFile("a/.tagweave-tmp-123"))
	assert.False(t, IsEntityFile(".draft.md"))
	assert.False(t, IsEntityFile("notes.txt"))
}

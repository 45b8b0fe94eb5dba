// Package testutil provides shared test helpers for setting up vaults,
// databases and entity files.
package testutil

import (
	"bytes"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/starford/tagweave/internal/index"
	"github.com/starford/tagweave/internal/models"
	"github.com/starford/tagweave/internal/storage"
	"github.com/starford/tagweave/internal/testutil/vaultfs"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(TestDBPath(t))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDBPath returns a path for a SQLite file inside a per-test directory.
func TestDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "tagweave-test.db")
}

// TestVault creates a temporary vault directory and a reader over it.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

type tagYAML struct {
	Type  string   `yaml:"type"`
	Value string   `yaml:"value"`
	Lat   *float64 `yaml:"lat,omitempty"`
	Lon   *float64 `yaml:"lon,omitempty"`
}

type entityYAML struct {
	ID       string    `yaml:"id"`
	Text     string    `yaml:"text"`
	Phonetic string    `yaml:"phonetic,omitempty"`
	Meaning  string    `yaml:"meaning,omitempty"`
	Tags     []tagYAML `yaml:"tags,omitempty"`
}

// EntityFile renders e as a Markdown entity file with YAML frontmatter.
func EntityFile(t *testing.T, e models.Entity, body string) []byte {
	t.Helper()
	doc := entityYAML{ID: e.ID, Text: e.Text, Phonetic: e.Phonetic, Meaning: e.Meaning}
	for _, tag := range e.Tags {
		doc.Tags = append(doc.Tags, tagYAML{
			Type:  tag.Type.ID(),
			Value: tag.Value,
			Lat:   tag.Latitude,
			Lon:   tag.Longitude,
		})
	}
	fm, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n")
	buf.WriteString(body)
	return buf.Bytes()
}

// WriteEntity writes e as the entity file at path inside the vault root.
func WriteEntity(t *testing.T, root, path string, e models.Entity) {
	t.Helper()
	vaultfs.Write(t, root, path, EntityFile(t, e, ""))
}

// Float returns a pointer to f for coordinate fields.
func Float(f float64) *float64 { return &f }

// Package storage defines the vault that holds entity files.
package storage

import (
	"path/filepath"
	"strings"

	"github.com/starford/tagweave/internal/models"
)

// Provider is read access to the vault. Paths are relative to the vault
// root. tagweave never writes entity files; editors own them.
type Provider interface {
	// List returns metadata for every entity file under dir.
	List(dir string) ([]models.EntityMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
}

// IsEntityFile reports whether p names a file the vault indexes: a
// Markdown file that is not hidden. Hidden files include in-flight writes.
func IsEntityFile(p string) bool {
	base := filepath.Base(p)
	return strings.HasSuffix(base, ".md") && !strings.HasPrefix(base, ".")
}

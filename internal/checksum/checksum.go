// Package checksum computes content digests used to detect changed entity
// files and changed entity sets.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/starford/tagweave/internal/models"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Entities returns a digest of an entity set that does not depend on the
// order of es. Two sets with the same entities, tags included, share a
// digest.
func Entities(es []models.Entity) string {
	sorted := make([]models.Entity, len(es))
	copy(sorted, es)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, e := range sorted {
		// With NaN and Inf cleared every field is encodable.
		e.Tags = models.FiniteCoordinates(e.Tags)
		_ = enc.Encode(e)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Package similarity scores how alike two strings or entities are.
package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/starford/tagweave/internal/models"
)

// Factor weights and the inclusion floor used by DefaultScorer.
const (
	TextWeight     = 3.0
	MeaningWeight  = 2.0
	PhoneticWeight = 1.0
	FactorFloor    = 0.3
)

// String returns the normalized edit-distance similarity of a and b in
// [0,1], compared case-insensitively. Two empty strings are identical.
func String(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(fuzzy.LevenshteinDistance(a, b))/float64(longest)
}

// Scorer combines per-field string similarity into an entity score.
// A factor only counts when its similarity exceeds Floor; weak factors are
// left out rather than weighted at zero.
type Scorer struct {
	TextWeight     float64
	MeaningWeight  float64
	PhoneticWeight float64
	Floor          float64
}

// DefaultScorer returns the scorer with the standard weights.
func DefaultScorer() Scorer {
	return Scorer{
		TextWeight:     TextWeight,
		MeaningWeight:  MeaningWeight,
		PhoneticWeight: PhoneticWeight,
		Floor:          FactorFloor,
	}
}

// Entity scores e1 against e2 in [0,1]. Meaning and phonetic only take part
// when both entities have them.
func (s Scorer) Entity(e1, e2 models.Entity) float64 {
	var sum, weights float64

	add := func(score, weight float64) {
		if score > s.Floor {
			sum += score * weight
			weights += weight
		}
	}

	add(String(e1.Text, e2.Text), s.TextWeight)
	if e1.Meaning != "" && e2.Meaning != "" {
		add(String(e1.Meaning, e2.Meaning), s.MeaningWeight)
	}
	if e1.Phonetic != "" && e2.Phonetic != "" {
		add(String(e1.Phonetic, e2.Phonetic), s.PhoneticWeight)
	}

	if weights == 0 {
		return 0
	}
	return sum / weights
}

// Entity scores two entities with the default scorer.
func Entity(e1, e2 models.Entity) float64 {
	return DefaultScorer().Entity(e1, e2)
}

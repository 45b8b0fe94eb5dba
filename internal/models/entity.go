// Package models defines the domain types for tagweave.
package models

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Entity is a tagged knowledge item, typically a vocabulary word.
// Empty Phonetic or Meaning means the field is absent.
type Entity struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Phonetic string `json:"phonetic,omitempty"`
	Meaning  string `json:"meaning,omitempty"`
	Tags     []Tag  `json:"tags"`
}

// Validate rejects entities the graph builder cannot use.
func (e Entity) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.ID, validation.Required),
		validation.Field(&e.Text, validation.Required, validation.By(notBlank)),
	)
}

// TagTypeIDs returns the set of tag type ids the entity carries.
func (e Entity) TagTypeIDs() map[string]struct{} {
	out := make(map[string]struct{}, len(e.Tags))
	for _, t := range e.Tags {
		out[t.Type.ID()] = struct{}{}
	}
	return out
}

// FirstCoordinate returns the coordinate of the first tag that has one.
func (e Entity) FirstCoordinate() (lat, lon float64, ok bool) {
	for _, t := range e.Tags {
		if lat, lon, ok := t.Coordinate(); ok {
			return lat, lon, true
		}
	}
	return 0, 0, false
}

// EntityMetadata is a lightweight vault listing item.
type EntityMetadata struct {
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
}

func notBlank(v any) error {
	s, _ := v.(string)
	if strings.TrimSpace(s) == "" {
		return validation.NewError("validation_blank", "must not be blank")
	}
	return nil
}

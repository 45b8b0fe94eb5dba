package models

import (
	"math"
	"strings"
)

// TagKind is the closed set of built-in tag kinds. Anything else is custom.
type TagKind string

const (
	TagKindLocation TagKind = "location"
	TagKindPerson   TagKind = "person"
	TagKindTopic    TagKind = "topic"
	TagKindSource   TagKind = "source"
	TagKindLanguage TagKind = "language"
	TagKindCustom   TagKind = "custom"
)

var knownKinds = map[TagKind]struct{}{
	TagKindLocation: {},
	TagKindPerson:   {},
	TagKindTopic:    {},
	TagKindSource:   {},
	TagKindLanguage: {},
}

// TagType identifies what a tag describes. Key is only meaningful for
// TagKindCustom, where it carries the user-defined type name.
type TagType struct {
	Kind TagKind `json:"kind"`
	Key  string  `json:"key,omitempty"`
}

// Custom returns a custom tag type keyed by key.
func Custom(key string) TagType {
	return TagType{Kind: TagKindCustom, Key: key}
}

// ParseTagType maps a type name to a TagType. Known kind names map to their
// kind, everything else becomes a custom type with that key. Names are case
// insensitive, so "Root" and "custom:root" parse to the same type.
func ParseTagType(name string) TagType {
	name = strings.ToLower(strings.TrimSpace(name))
	k := TagKind(name)
	if _, ok := knownKinds[k]; ok {
		return TagType{Kind: k}
	}
	if rest, ok := strings.CutPrefix(name, "custom:"); ok {
		return Custom(strings.TrimSpace(rest))
	}
	return Custom(name)
}

// ID returns a stable identifier for the type: "topic", "custom:root".
func (t TagType) ID() string {
	if t.Kind == TagKindCustom {
		return "custom:" + t.Key
	}
	return string(t.Kind)
}

// IsCustom reports whether t is the custom type keyed by key, ignoring case.
func (t TagType) IsCustom(key string) bool {
	return t.Kind == TagKindCustom && strings.EqualFold(t.Key, key)
}

func (t TagType) String() string { return t.ID() }

// Tag is a typed, valued annotation on an entity.
type Tag struct {
	Type      TagType  `json:"type"`
	Value     string   `json:"value"`
	Latitude  *float64 `json:"lat,omitempty"`
	Longitude *float64 `json:"lon,omitempty"`
}

// Coordinate returns the tag's position. ok is false unless both latitude
// and longitude are present and finite.
func (t Tag) Coordinate() (lat, lon float64, ok bool) {
	if t.Latitude == nil || t.Longitude == nil {
		return 0, 0, false
	}
	lat, lon = *t.Latitude, *t.Longitude
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return 0, 0, false
	}
	return lat, lon, true
}

// FiniteCoordinates returns tags with any NaN or infinite latitude or
// longitude cleared. Such tags keep their type and value and simply have no
// coordinate. tags itself is not modified.
func FiniteCoordinates(tags []Tag) []Tag {
	if tags == nil {
		return nil
	}
	out := make([]Tag, len(tags))
	for i, t := range tags {
		t.Latitude, t.Longitude = finite(t.Latitude), finite(t.Longitude)
		out[i] = t
	}
	return out
}

func finite(p *float64) *float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return nil
	}
	return p
}

// TagNamer resolves display names for tag types.
type TagNamer interface {
	Name(t TagType) string
}

// DefaultTagNamer title-cases built-in kinds and returns custom keys as-is.
type DefaultTagNamer struct{}

// Name implements TagNamer.
func (DefaultTagNamer) Name(t TagType) string {
	if t.Kind == TagKindCustom {
		return t.Key
	}
	s := string(t.Kind)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// MapTagNamer overrides names by TagType.ID and falls back to Fallback
// (DefaultTagNamer when nil).
type MapTagNamer struct {
	Names    map[string]string
	Fallback TagNamer
}

// Name implements TagNamer.
func (m MapTagNamer) Name(t TagType) string {
	if n, ok := m.Names[t.ID()]; ok {
		return n
	}
	if m.Fallback != nil {
		return m.Fallback.Name(t)
	}
	return DefaultTagNamer{}.Name(t)
}

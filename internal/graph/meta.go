package graph

import (
	"encoding/json"
	"strconv"
)

type metaKind uint8

const (
	metaNumber metaKind = iota + 1
	metaText
	metaBool
)

// MetaValue is a number, a string or a bool. The zero value is invalid and
// exports as nil.
type MetaValue struct {
	kind metaKind
	num  float64
	text string
	flag bool
}

// Number wraps f.
func Number(f float64) MetaValue { return MetaValue{kind: metaNumber, num: f} }

// Text wraps s.
func Text(s string) MetaValue { return MetaValue{kind: metaText, text: s} }

// Bool wraps b.
func Bool(b bool) MetaValue { return MetaValue{kind: metaBool, flag: b} }

// Float returns the numeric value and whether v holds one.
func (v MetaValue) Float() (float64, bool) { return v.num, v.kind == metaNumber }

// Str returns the string value and whether v holds one.
func (v MetaValue) Str() (string, bool) { return v.text, v.kind == metaText }

// Flag returns the bool value and whether v holds one.
func (v MetaValue) Flag() (bool, bool) { return v.flag, v.kind == metaBool }

// Primitive returns the value as float64, string or bool.
func (v MetaValue) Primitive() any {
	switch v.kind {
	case metaNumber:
		return v.num
	case metaText:
		return v.text
	case metaBool:
		return v.flag
	}
	return nil
}

func (v MetaValue) String() string {
	switch v.kind {
	case metaNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case metaText:
		return v.text
	case metaBool:
		return strconv.FormatBool(v.flag)
	}
	return ""
}

// MarshalJSON encodes the underlying primitive.
func (v MetaValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Primitive())
}

// Metadata carries explanatory values on an edge. It is for inspection and
// export only.
type Metadata map[string]MetaValue

// Primitives flattens m for serialization.
func (m Metadata) Primitives() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Primitive()
	}
	return out
}

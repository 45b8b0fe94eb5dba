// Package parser turns Markdown entity files into models.Entity values.
//
// An entity file carries YAML frontmatter between leading --- delimiters:
//
//	---
//	id: colour
//	text: colour
//	phonetic: ˈkʌlə
//	meaning: the property of reflecting light
//	tags:
//	  - root:col
//	  - type: location
//	    value: London
//	    lat: 51.5074
//	    lon: -0.1278
//	---
//	Spelling used in #british English.
//
// Inline #hashtags in the body become topic tags.
package parser

import (
	"bytes"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/tagweave/internal/models"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Result holds the output of parsing an entity file.
type Result struct {
	Entity models.Entity
	Body   string
	// HasFrontmatter is false when the file had none or it was not valid YAML.
	HasFrontmatter bool
}

type frontmatter struct {
	ID       string      `yaml:"id"`
	Text     string      `yaml:"text"`
	Title    string      `yaml:"title"`
	Phonetic string      `yaml:"phonetic"`
	Meaning  string      `yaml:"meaning"`
	Tags     []yaml.Node `yaml:"tags"`
}

type tagNode struct {
	Type  string   `yaml:"type"`
	Value string   `yaml:"value"`
	Lat   *float64 `yaml:"lat"`
	Lon   *float64 `yaml:"lon"`
}

// Parse builds an entity from the file at vault-relative path p. The id
// defaults to the path without its .md extension; the text falls back to
// the title, then the first H1, then the file name.
func Parse(p string, data []byte) *Result {
	fm, body, ok := splitFrontmatter(data)

	e := models.Entity{
		ID:       strings.TrimSpace(fm.ID),
		Text:     firstNonEmpty(fm.Text, fm.Title, firstHeading(body)),
		Phonetic: strings.TrimSpace(fm.Phonetic),
		Meaning:  strings.TrimSpace(fm.Meaning),
	}
	if e.ID == "" {
		e.ID = strings.TrimSuffix(filepath.ToSlash(p), ".md")
	}
	if e.Text == "" {
		e.Text = strings.TrimSuffix(path.Base(filepath.ToSlash(p)), ".md")
	}
	e.Tags = append(decodeTags(fm.Tags), inlineTags(body)...)
	e.Tags = models.FiniteCoordinates(dedupeTags(e.Tags))

	return &Result{Entity: e, Body: body, HasFrontmatter: ok}
}

// splitFrontmatter separates YAML frontmatter from the Markdown body. A
// missing closing delimiter or invalid YAML leaves the whole file as body.
func splitFrontmatter(data []byte) (frontmatter, string, bool) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return frontmatter{}, string(data), false
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return frontmatter{}, string(data), false
	}

	block := rest[:idx]
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")

	var fm frontmatter
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return frontmatter{}, string(data), false
	}
	return fm, body, true
}

// decodeTags accepts "kind:value" strings, bare strings (topic tags) and
// {type, value, lat, lon} mappings. Entries that fit none of these are
// skipped. Non-finite coordinates such as .nan are cleared by Parse.
func decodeTags(nodes []yaml.Node) []models.Tag {
	var out []models.Tag
	for i := range nodes {
		n := &nodes[i]
		switch n.Kind {
		case yaml.ScalarNode:
			if t, ok := scalarTag(n.Value); ok {
				out = append(out, t)
			}
		case yaml.MappingNode:
			var tn tagNode
			if err := n.Decode(&tn); err != nil || strings.TrimSpace(tn.Type) == "" {
				continue
			}
			out = append(out, models.Tag{
				Type:      models.ParseTagType(tn.Type),
				Value:     strings.TrimSpace(tn.Value),
				Latitude:  tn.Lat,
				Longitude: tn.Lon,
			})
		}
	}
	return out
}

func scalarTag(s string) (models.Tag, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Tag{}, false
	}
	kind, value, found := strings.Cut(s, ":")
	if !found {
		return models.Tag{Type: models.TagType{Kind: models.TagKindTopic}, Value: s}, true
	}
	return models.Tag{Type: models.ParseTagType(kind), Value: strings.TrimSpace(value)}, true
}

// inlineTags returns #hashtags from the body as topic tags.
func inlineTags(body string) []models.Tag {
	var out []models.Tag
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		out = append(out, models.Tag{Type: models.TagType{Kind: models.TagKindTopic}, Value: m[1]})
	}
	return out
}

// dedupeTags drops repeated topic tags, which inline hashtags often
// duplicate. Other kinds keep their repeats so root multisets survive.
func dedupeTags(tags []models.Tag) []models.Tag {
	seen := make(map[string]struct{}, len(tags))
	out := tags[:0]
	for _, t := range tags {
		if _, _, geo := t.Coordinate(); !geo && t.Type.Kind == models.TagKindTopic {
			key := t.Type.ID() + "\x00" + t.Value
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, t)
	}
	return out
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

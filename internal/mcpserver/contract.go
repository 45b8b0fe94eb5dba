package mcpserver

// EntityFormatContract describes the Markdown entity file format the index
// reads. Graph nodes and edges are derived from these fields.
const EntityFormatContract = `# tagweave Entity Format

Each entity is one Markdown file in the vault. The YAML frontmatter carries
the fields the relation graph is built from; the body is free text.

## Structure

` + "```" + `markdown
---
id: kanji/water            # OPTIONAL - defaults to the path without .md
text: 水                    # REQUIRED - falls back to title, first H1, file name
phonetic: mizu             # OPTIONAL
meaning: water             # OPTIONAL - shown as the node subtitle
tags:
  - topic:nature           # kind:value
  - root:氵                 # unknown kinds become custom tag types
  - type: location         # mapping form, needed for coordinates
    value: Kyoto
    lat: 35.0116
    lon: 135.7681
---

Notes about the entity. Inline #hashtags become topic tags.
` + "```" + `

## Tag kinds

- ` + "`" + `location` + "`" + `, ` + "`" + `person` + "`" + `, ` + "`" + `topic` + "`" + `, ` + "`" + `source` + "`" + `, ` + "`" + `language` + "`" + ` are built in.
- Any other kind is a custom tag type keyed by its name.
- A scalar tag without a colon is a topic tag.

## Relations derived from the file

1. **similarity**: the texts of two entities are close in edit distance.
2. **tag-overlap**: two entities share tags (Jaccard overlap).
3. **shared-root**: two entities carry the same ` + "`" + `root` + "`" + ` custom tag value.
4. **geo-proximity**: two entities have location tags with coordinates
   within the configured distance.

## Rules

1. Frontmatter must start on the first line between ` + "```" + `---` + "```" + ` fences.
2. Entities with an empty id or blank text are skipped.
3. When two files declare the same id, the one with the smaller path wins.
4. Coordinates need both ` + "`" + `lat` + "`" + ` and ` + "`" + `lon` + "`" + `; a lone or non-numeric value is ignored.
`

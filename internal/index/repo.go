package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/tagweave/internal/apperr"
	"github.com/starford/tagweave/internal/models"
)

// UpsertEntity inserts or replaces the entity parsed from meta.Path.
func (db *DB) UpsertEntity(meta models.EntityMetadata, e models.Entity) error {
	tags := models.FiniteCoordinates(e.Tags)
	if tags == nil {
		tags = []models.Tag{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("index: encode tags: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO entities (path, id, checksum, text, phonetic, meaning, tags, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			id         = excluded.id,
			checksum   = excluded.checksum,
			text       = excluded.text,
			phonetic   = excluded.phonetic,
			meaning    = excluded.meaning,
			tags       = excluded.tags,
			updated_at = excluded.updated_at
	`, meta.Path, e.ID, meta.Checksum, e.Text, e.Phonetic, e.Meaning, string(tagsJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: upsert entity: %w", err)
	}
	return nil
}

// DeleteByPath removes the entity stored for path. Unknown paths are not
// an error.
func (db *DB) DeleteByPath(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM entities WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete entity: %w", err)
	}
	return nil
}

// GetChecksum returns the stored checksum for path, or "" if it is not
// indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM entities WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns path -> checksum for every indexed file.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM entities`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Entities returns every indexed entity ordered by path. When two files
// declare the same id, the one with the smaller path comes first.
func (db *DB) Entities(ctx context.Context) ([]models.Entity, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, text, phonetic, meaning, tags FROM entities ORDER BY path
	`)
	if err != nil {
		return nil, fmt.Errorf("index: entities: %w", err)
	}
	defer rows.Close()

	var out []models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// EntityByID returns the entity with the given id, matching the one a
// graph build would keep.
func (db *DB) EntityByID(ctx context.Context, id string) (models.Entity, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, text, phonetic, meaning, tags FROM entities
		WHERE id = ? ORDER BY path LIMIT 1
	`, id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Entity{}, apperr.NotFoundf("entity %q", id)
	}
	return e, err
}

// Count returns the number of indexed files.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM entities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(s scanner) (models.Entity, error) {
	var e models.Entity
	var tagsJSON string
	if err := s.Scan(&e.ID, &e.Text, &e.Phonetic, &e.Meaning, &tagsJSON); err != nil {
		return models.Entity{}, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil {
		return models.Entity{}, fmt.Errorf("index: decode tags of %q: %w", e.ID, err)
	}
	return e, nil
}

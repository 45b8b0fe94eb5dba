package index

import (
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/tagweave/internal/apperr"
	"github.com/starford/tagweave/internal/models"
	"github.com/starford/tagweave/internal/storage"
	"github.com/starford/tagweave/internal/testutil/vaultfs"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fp(v float64) *float64 { return &v }

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	require.NoError(t, db.conn.QueryRow(`SELECT count(*) FROM entities`).Scan(&count))
	assert.Zero(t, count)
}

func TestUpsertRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	e := models.Entity{
		ID:       "colour",
		Text:     "colour",
		Phonetic: "ˈkʌlə",
		Meaning:  "hue",
		Tags: []models.Tag{
			{Type: models.Custom("root"), Value: "col"},
			{Type: models.TagType{Kind: models.TagKindLocation}, Value: "London", Latitude: fp(51.5), Longitude: fp(-0.12)},
		},
	}
	require.NoError(t, db.UpsertEntity(models.EntityMetadata{Path: "colour.md", Checksum: "abc"}, e))

	cs, err := db.GetChecksum("colour.md")
	require.NoError(t, err)
	assert.Equal(t, "abc", cs)

	got, err := db.EntityByID(ctx, "colour")
	require.NoError(t, err)
	assert.Equal(t, e, got)

	all, err := db.Entities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Entity{e}, all)
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertEntity(models.EntityMetadata{Path: "a.md", Checksum: "1"}, models.Entity{ID: "a", Text: "old"}))
	require.NoError(t, db.UpsertEntity(models.EntityMetadata{Path: "a.md", Checksum: "2"}, models.Entity{ID: "a", Text: "new"}))

	n, err := db.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, err := db.EntityByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Text)
	assert.Equal(t, []models.Tag{}, got.Tags)
}

func TestEntities_OrderedByPath(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertEntity(models.EntityMetadata{Path: "z.md"}, models.Entity{ID: "dup", Text: "later"}))
	require.NoError(t, db.UpsertEntity(models.EntityMetadata{Path: "a.md"}, models.Entity{ID: "dup", Text: "first"}))
	require.NoError(t, db.UpsertEntity(models.EntityMetadata{Path: "m.md"}, models.Entity{ID: "m", Text: "middle"}))

	all, err := db.Entities(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "first", all[0].Text)
	assert.Equal(t, "middle", all[1].Text)

	got, err := db.EntityByID(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Text)
}

func TestDeleteAndMissing(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertEntity(models.EntityMetadata{Path: "del.md", Checksum: "x"}, models.Entity{ID: "del", Text: "bye"}))
	require.NoError(t, db.DeleteByPath("del.md"))
	require.NoError(t, db.DeleteByPath("never.md"))

	cs, err := db.GetChecksum("del.md")
	require.NoError(t, err)
	assert.Empty(t, cs)

	_, err = db.EntityByID(ctx, "del")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSync(t *testing.T) {
	db := testDB(t)
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	require.NoError(t, err)

	vaultfs.Write(t, dir, "color.md", []byte("---\nid: color\ntags:\n  - root:col\n---\n"))
	vaultfs.Write(t, dir, "words/colour.md", []byte("# colour\n#british\n"))

	res, err := Sync(db, store, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Indexed: 2}, res)
	assert.True(t, res.Changed())

	all, err := db.Entities(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "color", all[0].ID)
	assert.Equal(t, "color", all[0].Text)
	assert.Equal(t, "words/colour", all[1].ID)
	assert.Equal(t, "british", all[1].Tags[0].Value)

	// Unchanged files are skipped.
	res, err = Sync(db, store, quietLogger())
	require.NoError(t, err)
	assert.False(t, res.Changed())

	vaultfs.Remove(t, dir, "color.md")
	res, err = Sync(db, store, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Removed: 1}, res)
}

func TestSync_NonFiniteCoordinateKeepsEntity(t *testing.T) {
	db := testDB(t)
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	require.NoError(t, err)

	vaultfs.Write(t, dir, "nan.md", []byte("---\nid: nan\ntext: nan\ntags:\n  - type: location\n    value: Nowhere\n    lat: .nan\n    lon: 2\n---\n"))
	vaultfs.Write(t, dir, "inf.md", []byte("---\nid: inf\ntext: inf\ntags:\n  - type: location\n    value: Edge\n    lat: 1\n    lon: .inf\n---\n"))

	res, err := Sync(db, store, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Indexed: 2}, res)

	got, err := db.EntityByID(context.Background(), "nan")
	require.NoError(t, err)
	require.Len(t, got.Tags, 1)
	assert.Equal(t, "Nowhere", got.Tags[0].Value)
	assert.Nil(t, got.Tags[0].Latitude)
	_, _, ok := got.FirstCoordinate()
	assert.False(t, ok)

	got, err = db.EntityByID(context.Background(), "inf")
	require.NoError(t, err)
	assert.Nil(t, got.Tags[0].Longitude)
}

func TestUpsert_ClearsNonFiniteCoordinates(t *testing.T) {
	db := testDB(t)
	e := models.Entity{ID: "x", Text: "x", Tags: []models.Tag{
		{Type: models.TagType{Kind: models.TagKindLocation}, Value: "v", Latitude: fp(math.Inf(1)), Longitude: fp(3)},
	}}
	require.NoError(t, db.UpsertEntity(models.EntityMetadata{Path: "x.md", Checksum: "1"}, e))

	got, err := db.EntityByID(context.Background(), "x")
	require.NoError(t, err)
	assert.Nil(t, got.Tags[0].Latitude)
	assert.Equal(t, 3.0, *got.Tags[0].Longitude)
}

//go:build integration

package db_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/clinicflow/libs/db"
	"github.com/md-rashed-zaman/clinicflow/libs/db/dbtest"
)

func TestMigrateAppliesEachVersionOnce(t *testing.T) {
	base := fstest.MapFS{
		"001_items.up.sql":   {Data: []byte(`CREATE TABLE items (id BIGSERIAL PRIMARY KEY, name TEXT NOT NULL);`)},
		"001_items.down.sql": {Data: []byte(`DROP TABLE items;`)},
	}
	pool := dbtest.Postgres(t, base)
	ctx := context.Background()

	version, err := db.Migrate(ctx, pool, base, db.DefaultMigrationsTable)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	next := fstest.MapFS{
		"001_items.up.sql":   base["001_items.up.sql"],
		"001_items.down.sql": base["001_items.down.sql"],
		"002_items_note.up.sql": {Data: []byte(`
			ALTER TABLE items ADD COLUMN note TEXT NOT NULL DEFAULT '';
			INSERT INTO items (name) VALUES ('seed');
		`)},
	}
	for i := 0; i < 2; i++ {
		version, err = db.Migrate(ctx, pool, next, db.DefaultMigrationsTable)
		require.NoError(t, err)
		assert.Equal(t, uint(2), version)
	}

	var seeded int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM items WHERE name = 'seed'`).Scan(&seeded))
	assert.Equal(t, 1, seeded)
}

func TestMigrateSeparateTables(t *testing.T) {
	fsys := fstest.MapFS{
		"001_a.up.sql": {Data: []byte(`CREATE TABLE a (id INT);`)},
	}
	pool := dbtest.Postgres(t, fsys)
	ctx := context.Background()

	other := fstest.MapFS{
		"001_b.up.sql": {Data: []byte(`CREATE TABLE b (id INT);`)},
	}
	version, err := db.Migrate(ctx, pool, other, "other_schema_migrations")
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var exists bool
	require.NoError(t, pool.QueryRow(ctx, `SELECT to_regclass('public.b') IS NOT NULL`).Scan(&exists))
	assert.True(t, exists)
}

func TestMigrateReportsDirtyVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"001_ok.up.sql":  {Data: []byte(`CREATE TABLE ok (id INT);`)},
		"002_bad.up.sql": {Data: []byte(`ALTER TABLE missing ADD COLUMN x INT;`)},
	}
	pool := dbtest.Postgres(t, fstest.MapFS{"001_ok.up.sql": fsys["001_ok.up.sql"]})
	ctx := context.Background()

	_, err := db.Migrate(ctx, pool, fsys, db.DefaultMigrationsTable)
	require.Error(t, err)

	version, err := db.Migrate(ctx, pool, fsys, db.DefaultMigrationsTable)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dirty database version 2")
	assert.Equal(t, uint(2), version)
}

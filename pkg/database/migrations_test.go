package database

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "data", "test.db"), MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func schemaFS() fstest.MapFS {
	return fstest.MapFS{
		"002_add_notes.sql":   {Data: []byte("ALTER TABLE assignments ADD COLUMN notes TEXT;")},
		"001_assignments.sql": {Data: []byte("CREATE TABLE assignments (id TEXT PRIMARY KEY, status TEXT NOT NULL);")},
		"README.md":           {Data: []byte("not a migration")},
	}
}

func TestMigrator_Up(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	m := NewMigrator(db, zap.NewNop())

	ran, err := m.Up(ctx, schemaFS())
	require.NoError(t, err)
	assert.Equal(t, 2, ran)

	ran, err = m.Up(ctx, schemaFS())
	require.NoError(t, err)
	assert.Zero(t, ran)

	version, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	_, err = db.Exec("INSERT INTO assignments (id, status, notes) VALUES ('asg-1', 'assigned', 'x')")
	assert.NoError(t, err)
}

func TestMigrator_Status(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	m := NewMigrator(db, zap.NewNop())

	fsys := schemaFS()
	pending := fsys["002_add_notes.sql"]
	delete(fsys, "002_add_notes.sql")
	_, err := m.Up(ctx, fsys)
	require.NoError(t, err)

	fsys["002_add_notes.sql"] = pending
	statuses, err := m.Status(ctx, fsys)
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	assert.Equal(t, "assignments", statuses[0].Name)
	assert.True(t, statuses[0].Applied)
	assert.False(t, statuses[0].AppliedAt.IsZero())
	assert.Len(t, statuses[0].Checksum, 64)

	assert.Equal(t, 2, statuses[1].Version)
	assert.False(t, statuses[1].Applied)
}

func TestMigrator_DetectsEditedMigration(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	m := NewMigrator(db, zap.NewNop())

	fsys := schemaFS()
	_, err := m.Up(ctx, fsys)
	require.NoError(t, err)

	fsys["001_assignments.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE assignments (id TEXT PRIMARY KEY);")}
	_, err = m.Up(ctx, fsys)
	assert.ErrorIs(t, err, ErrMigrationDrift)
}

func TestMigrator_FailedMigrationRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"001_broken.sql": {Data: []byte("CREATE TABLE ok (id INTEGER); CREATE TABL broken;")},
	}

	m := NewMigrator(db, zap.NewNop())
	ran, err := m.Up(ctx, fsys)
	require.Error(t, err)
	assert.Zero(t, ran)
	assert.Contains(t, err.Error(), "001_broken")

	version, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Zero(t, version)
}

func TestLoadMigrations_RejectsBadNames(t *testing.T) {
	_, err := loadMigrations(fstest.MapFS{"initial.sql": {Data: []byte("SELECT 1;")}})
	assert.ErrorContains(t, err, "invalid migration filename")

	_, err = loadMigrations(fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"1_b.sql":   {Data: []byte("SELECT 1;")},
	})
	assert.ErrorContains(t, err, "duplicate migration version")
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(Config{}, zap.NewNop())
	assert.Error(t, err)
}

func TestNew_OpensInWALMode(t *testing.T) {
	db := openTestDB(t)

	mode, err := db.JournalMode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestDSN(t *testing.T) {
	got := dsn(Config{Path: "data/app.db", BusyTimeout: 2 * time.Second})
	assert.Equal(t, "file:data/app.db?_busy_timeout=2000&_foreign_keys=on&_journal_mode=WAL", got)

	assert.Contains(t, dsn(Config{Path: "x.db"}), "_busy_timeout=5000")
}

package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapscene/animator/internal/config"
	"github.com/mapscene/animator/internal/model"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.PostgresConfig{
		Host: "db", Port: "5433", Username: "u", Password: "p", Database: "scenes",
	})
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=scenes sslmode=disable", dsn)
}

func TestMemoryDSN_Unique(t *testing.T) {
	a, b := MemoryDSN(), MemoryDSN()
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "mode=memory")
}

func TestGetSqliteDB_MemoryAndSetup(t *testing.T) {
	db, err := GetSqliteDB("", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, Ping(db))

	require.NoError(t, Setup(db, zerolog.Nop()))
	assert.True(t, db.Migrator().HasTable(&model.SceneRecord{}))
	assert.True(t, db.Migrator().HasTable(&model.Performance{}))
}

func TestGetSqliteDB_MemoryIsolated(t *testing.T) {
	a, err := GetSqliteDB("", zerolog.Nop())
	require.NoError(t, err)
	b, err := GetSqliteDB("", zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, Setup(a, zerolog.Nop()))
	assert.False(t, b.Migrator().HasTable(&model.SceneRecord{}))
}

func TestSetup_NilDB(t *testing.T) {
	require.Error(t, Setup(nil, zerolog.Nop()))
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db, err := GetSqliteDB("", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, Setup(db, zerolog.Nop()))
	require.NoError(t, db.Create(&model.SceneRecord{ID: "s1", Name: "dumped"}).Error)

	path := filepath.Join(t.TempDir(), "dump.db")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))
	require.NoError(t, DumpMemoryDBToDisk(db, path))

	disk, err := GetSqliteDB(path, zerolog.Nop())
	require.NoError(t, err)
	var rec model.SceneRecord
	require.NoError(t, disk.First(&rec, "id = ?", "s1").Error)
	assert.Equal(t, "dumped", rec.Name)
}

func TestDumpMemoryDBToDisk_NoPath(t *testing.T) {
	err := DumpMemoryDBToDisk(nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path not set")
}

func TestGetBackupDBPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.db", "b.db", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.db"), 0755))

	paths, err := GetBackupDBPaths(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.db"), filepath.Join(dir, "b.db")}, paths)

	_, err = GetBackupDBPaths(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapscene/animator/internal/database"
	"github.com/mapscene/animator/internal/model"
	"github.com/mapscene/animator/internal/storage"
	"github.com/mapscene/animator/internal/storage/storagetest"
)

func TestBackend(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		b, err := New(Config{}, nil, zerolog.Nop())
		require.NoError(t, err)
		return b
	})
}

func TestClose_WritesFinalDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenes.db")
	b, err := New(Config{DumpPath: path, DumpInterval: time.Hour}, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	require.NoError(t, b.SaveScene(storagetest.Scene("s-1", "harbour")))

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)

	disk, err := database.GetSqliteDB(path, zerolog.Nop())
	require.NoError(t, err)
	var rec model.SceneRecord
	require.NoError(t, disk.First(&rec, "id = ?", "s-1").Error)
	assert.Equal(t, "harbour", rec.Name)
}

func TestDumpLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "periodic.db")
	b, err := New(Config{DumpPath: path, DumpInterval: 20 * time.Millisecond}, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer func() { require.NoError(t, b.Close()) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDump_NoPath(t *testing.T) {
	b, err := New(Config{}, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer func() { require.NoError(t, b.Close()) }()

	require.Error(t, b.Dump())
}

func TestInit_RestoresFromDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenes.db")

	first, err := New(Config{DumpPath: path}, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, first.Init())
	require.NoError(t, first.SaveScene(storagetest.Scene("s-1", "harbour")))
	require.NoError(t, first.SaveScene(storagetest.Scene("s-2", "old town")))
	require.NoError(t, first.Close())

	tests := []struct {
		name      string
		noRestore bool
		want      int
	}{
		{"restore", false, 2},
		{"skip restore", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(Config{DumpPath: path, NoRestore: tt.noRestore}, nil, zerolog.Nop())
			require.NoError(t, err)
			require.NoError(t, b.Init())
			defer func() { require.NoError(t, b.Close()) }()

			list, err := b.ListScenes()
			require.NoError(t, err)
			assert.Len(t, list, tt.want)
		})
	}
}

func TestInit_MissingDumpIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.db")
	b, err := New(Config{DumpPath: path}, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())

	list, err := b.ListScenes()
	require.NoError(t, err)
	assert.Empty(t, list)
	require.NoError(t, b.Close())
}

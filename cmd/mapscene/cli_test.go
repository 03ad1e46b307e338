package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapscene/animator/internal/database"
	gormstorage "github.com/mapscene/animator/internal/storage/gorm"
	"github.com/mapscene/animator/internal/storage/storagetest"
	"github.com/mapscene/animator/pkg/core"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(viper.Reset)
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--no-log-file", "--log-level", "error"))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// seedDB writes scenes into a SQLite file the way a dump would hold them.
func seedDB(t *testing.T, scenes ...core.Scene) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenes.db")
	db, err := database.GetSqliteDB(path, zerolog.Nop())
	require.NoError(t, err)
	b := gormstorage.New(gormstorage.Dependencies{DB: db})
	require.NoError(t, b.Init())
	for _, sc := range scenes {
		require.NoError(t, b.SaveScene(sc))
	}
	require.NoError(t, b.Close())
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	return path
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"run", "sample", "scenes"})
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("log-level"))
}

const authoredScript = `
:SCENE:NEW: harbour 4
:CAPTURE: 0
:CAMERA: 13.41,52.522 15 30
:CAPTURE: 4
:PLAY: 1
wait 2s
:STATUS:
snapshot mid.png
:STOP:
:SEEK: 4
:SCENE:SAVE:
:SCENE:LIST:
`

func TestRun_Virtual(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "tour.txt", authoredScript)
	snapshots := filepath.Join(dir, "frames")

	out, err := execute(t, "run", script, "--virtual", "--snapshot-dir", snapshots, "--logs-dir", dir)
	require.NoError(t, err, out)

	assert.Contains(t, out, ":CAPTURE: 2\n")
	assert.Contains(t, out, `"playing":true`)
	assert.Contains(t, out, "snapshot "+filepath.Join(snapshots, "mid.png"))
	assert.Contains(t, out, `"name":"harbour"`)
	assert.FileExists(t, filepath.Join(snapshots, "mid.png"))
}

func TestRun_StopsOnFailure(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "bad.txt", ":PLAY:\n:SCENE:NEW: after\n")

	out, err := execute(t, "run", script, "--virtual")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
	assert.Contains(t, out, ":PLAY: error:")
	assert.NotContains(t, out, ":SCENE:NEW:")
}

func TestRun_KeepGoing(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "bad.txt", ":PLAY:\n:SCENE:NEW: after\n")

	out, err := execute(t, "run", script, "--virtual", "--keep-going")
	require.ErrorContains(t, err, "1 commands failed")
	assert.Contains(t, out, ":SCENE:NEW: ")
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "run", filepath.Join(dir, "missing.txt"), "--virtual")
	assert.Error(t, err)

	script := writeFile(t, dir, "bad.txt", "jump\n")
	_, err = execute(t, "run", script, "--virtual")
	assert.ErrorContains(t, err, "unknown directive")

	_, err = execute(t, "run")
	assert.Error(t, err)
}

func TestRun_RealLoop(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mapscene.cfg.json", `{"monitor": {"interval": "20ms", "statusFile": "`+filepath.ToSlash(filepath.Join(dir, "status.json"))+`"}}`)
	script := writeFile(t, dir, "tour.txt", ":SCENE:NEW: harbour 4\nwait 100ms\n:STATUS:\n")

	out, err := execute(t, "run", script, "--config", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, ":STATUS: {")
	assert.FileExists(t, filepath.Join(dir, "status.json"))
}

func TestScenes(t *testing.T) {
	sc := storagetest.Scene("s-1", "harbour")
	db := seedDB(t, sc)

	out, err := execute(t, "scenes", "list", "--db", db)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.True(t, strings.HasPrefix(lines[1], "s-1"))
	assert.Contains(t, lines[1], "harbour")

	out, err = execute(t, "scenes", "show", "s-1", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "harbour"`)

	out, err = execute(t, "scenes", "delete", "s-1", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "deleted s-1\n", out)

	_, err = execute(t, "scenes", "show", "s-1", "--db", db)
	assert.Error(t, err)
}

func TestScenesDumps(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.db", "")
	writeFile(t, dir, "notes.txt", "")

	out, err := execute(t, "scenes", "dumps", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.db")+"\n", out)
}

func TestSampleScene(t *testing.T) {
	sc := core.Scene{
		ID:       "s-1",
		Name:     "harbour",
		Duration: 4,
		CameraPath: []core.CameraKeyframe{
			{Time: 0, Position: core.CameraPosition{Lng: 13.4, Lat: 52.52, Zoom: 14}, Target: core.CameraTarget{Lng: 13.4, Lat: 52.52}, FOV: 36},
			{Time: 4, Position: core.CameraPosition{Lng: 13.4, Lat: 52.52, Zoom: 16}, Target: core.CameraTarget{Lng: 13.4, Lat: 52.52}, FOV: 36},
		},
	}
	db := seedDB(t, sc)
	frames := filepath.Join(t.TempDir(), "frames")

	out, err := execute(t, "sample", "scene", "s-1", "--db", db, "--step", "1.5", "--out", frames)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5, out)
	assert.True(t, strings.HasPrefix(lines[1], "0.00 "))
	assert.True(t, strings.HasPrefix(lines[3], "3.00 "))
	assert.True(t, strings.HasPrefix(lines[4], "4.00 "))
	assert.Contains(t, lines[4], "16.00")
	assert.FileExists(t, filepath.Join(frames, "frame_0003.png"))

	_, err = execute(t, "sample", "scene", "s-1", "--db", db, "--step", "0")
	assert.Error(t, err)
}

func TestSampleSky(t *testing.T) {
	out, err := execute(t, "sample", "sky", "--steps", "4")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Contains(t, lines[1], "night")
	assert.Contains(t, lines[3], "day")

	_, err = execute(t, "sample", "sky", "--table", "missing")
	assert.Error(t, err)
}

func TestHTTPToWS(t *testing.T) {
	tests := []struct{ in, want string }{
		{"http://localhost:5000", "ws://localhost:5000"},
		{"https://viewer.example/", "wss://viewer.example"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, httpToWS(tt.in))
	}
}

func TestCreateStorageBackend_Unknown(t *testing.T) {
	t.Cleanup(viper.Reset)
	cmd := &cobra.Command{}
	cmd.SetErr(io.Discard)
	cmd.SetContext(context.Background())
	a, err := newApp(cmd, &rootOptions{noLogFile: true, logLevel: "error"})
	require.NoError(t, err)
	defer a.Close()

	viper.Set("storage.type", "cassette")
	_, err = openStore(a, "")
	assert.ErrorContains(t, err, "unknown storage type")
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load(writeConfig(t, `{}`))
	require.NoError(t, err)

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./logs", viper.GetString("logsDir"))
	assert.Equal(t, "http://localhost:5000", viper.GetString("api.serverUrl"))
	assert.Equal(t, "", viper.GetString("api.apiKey"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "mapscene", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "3m", viper.GetString("storage.sqlite.dumpInterval"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "mapscene", viper.GetString("otel.serviceName"))
	assert.Equal(t, "5s", viper.GetString("otel.batchTimeout"))
	assert.Equal(t, true, viper.GetBool("otel.insecure"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	viper.Set("testInt", 42)
	viper.Set("testBool", true)
	viper.Set("testDuration", "250ms")

	assert.Equal(t, "testValue", GetString("testKey"))
	assert.Equal(t, 42, GetInt("testInt"))
	assert.Equal(t, true, GetBool("testBool"))
	assert.Equal(t, 250*time.Millisecond, GetDuration("testDuration"))
}

func TestGetEngineConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	SetDefaults()

	cfg := GetEngineConfig()
	assert.Equal(t, 16*time.Millisecond, cfg.FrameInterval)
	assert.Equal(t, 800, cfg.CanvasWidth)
	assert.Equal(t, 600, cfg.CanvasHeight)
	assert.Equal(t, 16*time.Millisecond, cfg.PlaybackTick)
	assert.Equal(t, 20.0, cfg.HitRadius)
	assert.Equal(t, 60*time.Second, cfg.CycleDuration)
	assert.Equal(t, 1500*time.Millisecond, cfg.TransitionDuration)
	assert.Equal(t, 90, cfg.TransitionSteps)
	assert.Equal(t, "day", cfg.CycleTable)
	assert.Equal(t, 120*time.Second, cfg.SunCycleDuration)
}

func TestGetEngineConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"engine": { "canvasWidth": 1280, "canvasHeight": 720 },
		"sky": { "cycleDuration": "5m", "transitionSteps": 30, "palettesFile": "palettes.yaml", "defaultPalette": "dusk" },
		"sun": { "cycleDuration": "10m" }
	}`)))

	cfg := GetEngineConfig()
	assert.Equal(t, 1280, cfg.CanvasWidth)
	assert.Equal(t, 720, cfg.CanvasHeight)
	assert.Equal(t, 5*time.Minute, cfg.CycleDuration)
	assert.Equal(t, 30, cfg.TransitionSteps)
	assert.Equal(t, "palettes.yaml", cfg.PalettesFile)
	assert.Equal(t, "dusk", cfg.DefaultPalette)
	assert.Equal(t, 10*time.Minute, cfg.SunCycleDuration)
}

func TestGetRetryConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	SetDefaults()

	cfg := GetRetryConfig()
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, 2*time.Second, cfg.MaxDelay)
	assert.Equal(t, 2.0, cfg.Multiplier)
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStorageConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, 3*time.Minute, cfg.SQLite.DumpInterval)
	assert.Equal(t, "./scenes.db", cfg.SQLite.DumpPath)
	assert.Equal(t, "postgres", cfg.Postgres.Username)
	assert.Equal(t, "", cfg.WebSocket.URL)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"storage": {
			"type": "sqlite",
			"sqlite": { "dumpInterval": "10m", "dumpPath": "/tmp/scenes.db" },
			"websocket": { "url": "ws://viewer:8080/stream", "secret": "s3cret" }
		},
		"db": { "database": "scenes" }
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, 10*time.Minute, sc.SQLite.DumpInterval)
	assert.Equal(t, "/tmp/scenes.db", sc.SQLite.DumpPath)
	assert.Equal(t, "ws://viewer:8080/stream", sc.WebSocket.URL)
	assert.Equal(t, "s3cret", sc.WebSocket.Secret)
	assert.Equal(t, "scenes", sc.Postgres.Database)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetOTelConfig()
	assert.Equal(t, false, cfg.Enabled)
	assert.Equal(t, "mapscene", cfg.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.Equal(t, "", cfg.Endpoint)
	assert.Equal(t, true, cfg.Insecure)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"batchTimeout": "30s",
			"endpoint": "localhost:4317",
			"insecure": false
		}
	}`)))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4317", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}

func TestGetMonitorConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	SetDefaults()
	viper.Set("monitor.statusFile", "status.txt")

	mc := GetMonitorConfig()
	assert.Equal(t, time.Second, mc.Interval)
	assert.Equal(t, "status.txt", mc.StatusFile)
}

func TestGetInfluxConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	SetDefaults()

	ic := GetInfluxConfig()
	assert.False(t, ic.Enabled)
	assert.Equal(t, "mapscene-metrics", ic.Org)
	assert.Equal(t, "http://localhost:8086", ic.URL())

	viper.Set("influx.host", "influx.internal")
	viper.Set("influx.protocol", "https")
	assert.Equal(t, "https://influx.internal:8086", GetInfluxConfig().URL())
}

func TestGetGraylogConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	SetDefaults()

	gc := GetGraylogConfig()
	assert.False(t, gc.Enabled)
	assert.Equal(t, "localhost:12201", gc.Address)
}

package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "mapscene.cfg.json"

// EngineConfig holds the timing and canvas settings of the engines.
type EngineConfig struct {
	FrameInterval      time.Duration `json:"frameInterval" mapstructure:"frameInterval"`
	CanvasWidth        int           `json:"canvasWidth" mapstructure:"canvasWidth"`
	CanvasHeight       int           `json:"canvasHeight" mapstructure:"canvasHeight"`
	PlaybackTick       time.Duration `json:"playbackTick" mapstructure:"playbackTick"`
	HitRadius          float64       `json:"hitRadius" mapstructure:"hitRadius"`
	CycleDuration      time.Duration `json:"cycleDuration" mapstructure:"cycleDuration"`
	TransitionDuration time.Duration `json:"transitionDuration" mapstructure:"transitionDuration"`
	TransitionSteps    int           `json:"transitionSteps" mapstructure:"transitionSteps"`
	PalettesFile       string        `json:"palettesFile" mapstructure:"palettesFile"`
	CycleTable         string        `json:"cycleTable" mapstructure:"cycleTable"`
	DefaultPalette     string        `json:"defaultPalette" mapstructure:"defaultPalette"`
	SunCycleDuration   time.Duration `json:"sunCycleDuration" mapstructure:"sunCycleDuration"`
}

// RetryConfig holds the host readiness retry policy
type RetryConfig struct {
	MaxAttempts  int           `json:"maxAttempts" mapstructure:"maxAttempts"`
	InitialDelay time.Duration `json:"initialDelay" mapstructure:"initialDelay"`
	MaxDelay     time.Duration `json:"maxDelay" mapstructure:"maxDelay"`
	Multiplier   float64       `json:"multiplier" mapstructure:"multiplier"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
}

// PostgresConfig holds the database connection settings
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// WebSocketConfig holds the remote viewer stream settings
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig holds storage backend configuration
type StorageConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	SQLite    SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	Postgres  PostgresConfig  `json:"postgres" mapstructure:"postgres"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds the telemetry writer settings
type InfluxConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	Protocol   string `json:"protocol" mapstructure:"protocol"`
	Host       string `json:"host" mapstructure:"host"`
	Port       string `json:"port" mapstructure:"port"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// URL returns the server address.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// GraylogConfig holds the GELF log shipping settings
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// MonitorConfig holds status reporter settings
type MonitorConfig struct {
	Interval   time.Duration `json:"interval" mapstructure:"interval"`
	StatusFile string        `json:"statusFile" mapstructure:"statusFile"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// SetDefaults registers every default value. Load calls it; commands that
// run without a config file call it directly.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("engine.frameInterval", "16ms")
	viper.SetDefault("engine.canvasWidth", 800)
	viper.SetDefault("engine.canvasHeight", 600)
	viper.SetDefault("playback.tickInterval", "16ms")
	viper.SetDefault("edit.hitRadius", 20)

	viper.SetDefault("sky.cycleDuration", "60s")
	viper.SetDefault("sky.transitionDuration", "1500ms")
	viper.SetDefault("sky.transitionSteps", 90)
	viper.SetDefault("sky.palettesFile", "")
	viper.SetDefault("sky.cycleTable", "day")
	viper.SetDefault("sky.defaultPalette", "")
	viper.SetDefault("sun.cycleDuration", "120s")

	viper.SetDefault("retry.maxAttempts", 5)
	viper.SetDefault("retry.initialDelay", "100ms")
	viper.SetDefault("retry.maxDelay", "2s")
	viper.SetDefault("retry.multiplier", 2.0)

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.timeout", "30s")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "mapscene")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "./scenes.db")
	viper.SetDefault("storage.websocket.url", "")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "mapscene-metrics")
	viper.SetDefault("influx.backupPath", "./logs/influx_backup.log.gz")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "mapscene")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.interval", "1s")
	viper.SetDefault("monitor.statusFile", "")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetEngineConfig returns the engine configuration
func GetEngineConfig() EngineConfig {
	return EngineConfig{
		FrameInterval:      viper.GetDuration("engine.frameInterval"),
		CanvasWidth:        viper.GetInt("engine.canvasWidth"),
		CanvasHeight:       viper.GetInt("engine.canvasHeight"),
		PlaybackTick:       viper.GetDuration("playback.tickInterval"),
		HitRadius:          viper.GetFloat64("edit.hitRadius"),
		CycleDuration:      viper.GetDuration("sky.cycleDuration"),
		TransitionDuration: viper.GetDuration("sky.transitionDuration"),
		TransitionSteps:    viper.GetInt("sky.transitionSteps"),
		PalettesFile:       viper.GetString("sky.palettesFile"),
		CycleTable:         viper.GetString("sky.cycleTable"),
		DefaultPalette:     viper.GetString("sky.defaultPalette"),
		SunCycleDuration:   viper.GetDuration("sun.cycleDuration"),
	}
}

// GetRetryConfig returns the retry policy configuration
func GetRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  viper.GetInt("retry.maxAttempts"),
		InitialDelay: viper.GetDuration("retry.initialDelay"),
		MaxDelay:     viper.GetDuration("retry.maxDelay"),
		Multiplier:   viper.GetFloat64("retry.multiplier"),
	}
}

// GetStorageConfig returns the storage configuration
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry configuration
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetMonitorConfig returns the status reporter configuration
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: viper.GetString("monitor.statusFile"),
	}
}

// GetInfluxConfig returns the InfluxDB configuration
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		Protocol:   viper.GetString("influx.protocol"),
		Host:       viper.GetString("influx.host"),
		Port:       viper.GetString("influx.port"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetGraylogConfig returns the Graylog configuration
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

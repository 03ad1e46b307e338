package main

import (
	"fmt"
	"strings"

	"github.com/mapscene/animator/internal/config"
	"github.com/mapscene/animator/internal/database"
	"github.com/mapscene/animator/internal/storage"
	gormstorage "github.com/mapscene/animator/internal/storage/gorm"
	"github.com/mapscene/animator/internal/storage/memory"
	pgstorage "github.com/mapscene/animator/internal/storage/postgres"
	sqlitestorage "github.com/mapscene/animator/internal/storage/sqlite"
	wsstorage "github.com/mapscene/animator/internal/storage/websocket"
)

func createStorageBackend(a *app, storageCfg config.StorageConfig) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		a.logger.Info("Postgres storage backend selected", "host", storageCfg.Postgres.Host)
		return pgstorage.New(pgstorage.Dependencies{
			Config:   storageCfg.Postgres,
			Logger:   a.logger.With("component", "storage"),
			DBLogger: a.dbLogger,
		}), nil

	case "sqlite":
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     storageCfg.SQLite.DumpPath,
		}, a.logger.With("component", "storage"), a.dbLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		a.logger.Info("SQLite storage backend selected", "dumpPath", storageCfg.SQLite.DumpPath)
		return backend, nil

	case "websocket":
		wsURL := storageCfg.WebSocket.URL
		if wsURL == "" {
			wsURL = httpToWS(config.GetString("api.serverUrl")) + "/api/stream"
		}
		secret := storageCfg.WebSocket.Secret
		if secret == "" {
			secret = config.GetString("api.apiKey")
		}
		a.logger.Info("WebSocket storage backend selected", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:    wsURL,
			Secret: secret,
		}, a.logger.With("component", "storage")), nil

	case "memory", "":
		a.logger.Info("Memory storage backend selected")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

// openStore initializes the configured backend, or a gorm backend over the
// SQLite file at dbPath when one is given.
func openStore(a *app, dbPath string) (storage.Backend, error) {
	var (
		backend storage.Backend
		err     error
	)
	if dbPath != "" {
		db, err := database.GetSqliteDB(dbPath, a.dbLogger)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", dbPath, err)
		}
		backend = gormstorage.New(gormstorage.Dependencies{
			DB:       db,
			Logger:   a.logger.With("component", "storage"),
			DBLogger: a.dbLogger,
		})
	} else {
		backend, err = createStorageBackend(a, config.GetStorageConfig())
		if err != nil {
			return nil, err
		}
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return backend, nil
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}

// Package postgres implements the storage.Backend interface on PostgreSQL.
// It wraps the GORM backend and owns the connection when none is injected.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mapscene/animator/internal/config"
	"github.com/mapscene/animator/internal/database"
	gormstorage "github.com/mapscene/animator/internal/storage/gorm"
)

// MaxOpenConns caps the connection pool of an owned connection.
const MaxOpenConns = 10

// Dependencies holds all dependencies for the Postgres storage backend.
type Dependencies struct {
	// DB is used as is when set; otherwise Init connects with Config.
	DB       *gorm.DB
	Config   config.PostgresConfig
	Logger   *slog.Logger
	DBLogger zerolog.Logger
}

// Backend wraps the GORM backend for Postgres connection handling.
type Backend struct {
	*gormstorage.Backend
	deps Dependencies
}

// New creates a new Postgres storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:       deps.DB,
			Logger:   deps.Logger,
			DBLogger: deps.DBLogger,
		}),
		deps: deps,
	}
}

// Init connects when no DB was injected via Dependencies, then runs schema
// migration and starts the writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.GetPostgresDB(b.deps.Config, b.deps.DBLogger)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := database.Ping(db); err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		sqlDB.SetMaxOpenConns(MaxOpenConns)
		b.deps.DB = db
		b.Backend.SetDB(db)
	}
	return b.Backend.Init()
}

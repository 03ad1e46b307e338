// Package sqlitestorage keeps scenes in an in-memory SQLite database that is
// seeded from the last dump on Init and snapshotted to disk periodically and
// on Close. Queries go through the embedded GORM backend.
package sqlitestorage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mapscene/animator/internal/database"
	"github.com/mapscene/animator/internal/model"
	gormstorage "github.com/mapscene/animator/internal/storage/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	DumpPath     string // Path for periodic VACUUM INTO dumps
	// NoRestore skips seeding from an existing dump at DumpPath.
	NoRestore bool
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db        *gorm.DB
	cfg       Config
	log       *slog.Logger
	dbLog     zerolog.Logger
	stopChan  chan struct{}
	dumpDone  chan struct{}
	closeOnce sync.Once
}

// New creates a new SQLite storage backend.
func New(cfg Config, logger *slog.Logger, dbLogger zerolog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	db, err := database.GetSqliteDB("", dbLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	gormBackend := gormstorage.New(gormstorage.Dependencies{
		DB:       db,
		Logger:   logger,
		DBLogger: dbLogger,
	})

	return &Backend{
		Backend:  gormBackend,
		db:       db,
		cfg:      cfg,
		log:      logger,
		dbLog:    dbLogger,
		stopChan: make(chan struct{}),
	}, nil
}

// Init migrates the schema, restores scenes from the previous dump and
// starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && !b.cfg.NoRestore {
		n, err := b.restore()
		if err != nil {
			_ = b.Backend.Close()
			return fmt.Errorf("failed to restore from %s: %w", b.cfg.DumpPath, err)
		}
		if n > 0 {
			b.log.Info("scenes restored", "path", b.cfg.DumpPath, "count", n)
		}
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.dumpDone = make(chan struct{})
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump goroutine, writes a final dump and closes the
// embedded GORM backend.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.stopChan)
		if b.dumpDone != nil {
			<-b.dumpDone
		}
		if closeErr := b.Backend.Close(); closeErr != nil {
			err = closeErr
			return
		}
		if b.cfg.DumpPath != "" {
			err = b.Dump()
		}
	})
	return err
}

// restore copies every scene from the dump file into memory. A missing
// file restores nothing.
func (b *Backend) restore() (int, error) {
	if _, err := os.Stat(b.cfg.DumpPath); errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	disk, err := database.GetSqliteDB(b.cfg.DumpPath, b.dbLog)
	if err != nil {
		return 0, err
	}
	defer func() {
		if sqlDB, err := disk.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	var records []model.SceneRecord
	if err := disk.Find(&records).Error; err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := b.db.Create(&records).Error; err != nil {
		return 0, err
	}
	return len(records), nil
}

// Dump writes the in-memory database to DumpPath now.
func (b *Backend) Dump() error {
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath); err != nil {
		return err
	}
	b.log.Debug("dumped to disk", "path", b.cfg.DumpPath, "duration", time.Since(start))
	return nil
}

// dumpLoop snapshots the database every DumpInterval. VACUUM INTO is
// consistent on its own, so writers keep running.
func (b *Backend) dumpLoop() {
	defer close(b.dumpDone)
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Dump(); err != nil {
				b.log.Error("dump to disk failed", "error", err)
			}
		}
	}
}

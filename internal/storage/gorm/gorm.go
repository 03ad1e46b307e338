// Package gormstorage implements the storage.Backend interface on any GORM
// dialect. Scene writes are synchronous; status samples go through a queue
// drained by a background writer goroutine.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mapscene/animator/internal/database"
	"github.com/mapscene/animator/internal/model"
	"github.com/mapscene/animator/internal/model/convert"
	"github.com/mapscene/animator/internal/queue"
	"github.com/mapscene/animator/internal/storage"
	"github.com/mapscene/animator/pkg/core"
)

// DefaultFlushInterval is how often queued status samples are written.
const DefaultFlushInterval = 2 * time.Second

// MaxPendingSamples caps status samples held between flushes.
const MaxPendingSamples = 10000

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	DBLogger      zerolog.Logger
	FlushInterval time.Duration
}

// Backend implements storage.Backend using GORM.
type Backend struct {
	deps         Dependencies
	performances *queue.Queue[model.Performance]
	stopChan     chan struct{}
	writerDone   chan struct{}
	closeOnce    sync.Once
}

var (
	_ storage.Backend  = (*Backend)(nil)
	_ storage.Recorder = (*Backend)(nil)
)

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	return &Backend{
		deps:         deps,
		performances: queue.NewBounded[model.Performance](MaxPendingSamples),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// SetDB injects the connection before Init.
func (b *Backend) SetDB(db *gorm.DB) {
	b.deps.DB = db
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend has no DB")
	}
	if err := database.Setup(b.deps.DB, b.deps.DBLogger); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.stopChan = make(chan struct{})
	b.writerDone = make(chan struct{})
	go b.writeLoop()
	return nil
}

// Close stops the DB writer goroutine after a final flush.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		if b.stopChan != nil {
			close(b.stopChan)
			<-b.writerDone
		}
	})
	return nil
}

// SaveScene upserts the scene record.
func (b *Backend) SaveScene(s core.Scene) error {
	if s.ID == "" {
		return errors.New("scene id is empty")
	}
	rec, err := convert.SceneToRecord(s)
	if err != nil {
		return err
	}
	err = b.deps.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save scene %s: %w", s.ID, err)
	}
	b.deps.Logger.Debug("scene saved", "scene", s.ID, "dialect", b.deps.DB.Name())
	return nil
}

// LoadScene reads one scene.
func (b *Backend) LoadScene(id string) (core.Scene, error) {
	var rec model.SceneRecord
	err := b.deps.DB.Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Scene{}, fmt.Errorf("%w: %s", storage.ErrSceneNotFound, id)
	}
	if err != nil {
		return core.Scene{}, fmt.Errorf("failed to load scene %s: %w", id, err)
	}
	return convert.RecordToScene(rec)
}

// ListScenes returns summaries ordered by name, then id.
func (b *Backend) ListScenes() ([]core.SceneSummary, error) {
	var recs []model.SceneRecord
	err := b.deps.DB.
		Select("id", "name", "duration", "length", "keyframes", "actor_count").
		Order("name ASC").Order("id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list scenes: %w", err)
	}
	out := make([]core.SceneSummary, len(recs))
	for i, r := range recs {
		out[i] = convert.RecordToSummary(r)
	}
	return out, nil
}

// DeleteScene removes one scene.
func (b *Backend) DeleteScene(id string) error {
	res := b.deps.DB.Where("id = ?", id).Delete(&model.SceneRecord{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete scene %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", storage.ErrSceneNotFound, id)
	}
	return nil
}

// RecordPerformance queues a status sample for the writer goroutine.
func (b *Backend) RecordPerformance(p model.Performance) error {
	b.performances.Push(p)
	return nil
}

// Pending returns the number of queued status samples.
func (b *Backend) Pending() int {
	return b.performances.Len()
}

// writeLoop periodically drains the queue into the DB.
func (b *Backend) writeLoop() {
	defer close(b.writerDone)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			b.flush()
			return
		case <-ticker.C:
			b.flush()
		}
	}
}

func (b *Backend) flush() {
	items := b.performances.Drain()
	if len(items) == 0 {
		return
	}
	start := time.Now()
	if err := b.deps.DB.CreateInBatches(items, 500).Error; err != nil {
		b.deps.Logger.Error("failed to write performance samples", "count", len(items), "error", err)
		return
	}
	b.deps.Logger.Debug("performance samples written", "count", len(items), "duration", time.Since(start))
}

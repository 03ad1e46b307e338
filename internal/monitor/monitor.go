// Package monitor samples the session status on an interval and fans it out
// to the status file, the storage recorder, InfluxDB and the viewer stream.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mapscene/animator/internal/dispatcher"
	"github.com/mapscene/animator/internal/influx"
	"github.com/mapscene/animator/internal/keyframe"
	"github.com/mapscene/animator/internal/logging"
	"github.com/mapscene/animator/internal/model"
	"github.com/mapscene/animator/internal/render"
	"github.com/mapscene/animator/internal/session"
	"github.com/mapscene/animator/internal/storage"
	"github.com/mapscene/animator/pkg/streaming"
)

// Dependencies holds all dependencies for the monitor service.
// Every sink is optional.
type Dependencies struct {
	Session    *session.Session
	Runner     dispatcher.Runner
	Interval   time.Duration
	StatusFile string
	Recorder   storage.Recorder
	Publisher  storage.Publisher
	Influx     *influx.Manager
	Tags       *logging.Tags
	Logger     *slog.Logger
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	logger    *slog.Logger
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		deps:   deps,
		logger: logger.With("component", "monitor"),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// ObserveFrames forwards playback frames and per-layer frame stats to
// InfluxDB. It must be called on the loop before frames are drawn.
func (s *Service) ObserveFrames() {
	if s.deps.Influx == nil {
		return
	}
	sess := s.deps.Session
	sess.Keyframe.OnFrame(func(f keyframe.Frame) {
		p := influx.FramePoint(sess.Keyframe.Status().SceneID, f, time.Now())
		if err := s.deps.Influx.WritePoint(influx.BucketPlayback, p); err != nil {
			s.logger.Debug("Error writing playback frame", "error", err)
		}
	})
	sess.Render.Observe(func(st render.FrameStats) {
		if err := s.deps.Influx.WritePoint(influx.BucketRender, influx.LayerFramePoint(st, time.Now())); err != nil {
			s.logger.Debug("Error writing layer frame", "error", err)
		}
	})
}

// Sample reads the session status on the loop.
func (s *Service) Sample(ctx context.Context) (streaming.StatusPayload, error) {
	var st streaming.StatusPayload
	err := s.deps.Runner.Do(ctx, func() {
		st = s.deps.Session.Status()
	})
	return st, err
}

// Performance flattens a status snapshot into a storable sample.
func Performance(st streaming.StatusPayload, at time.Time) model.Performance {
	p := model.Performance{
		Time:          at,
		SceneID:       st.Playback.SceneID,
		Playing:       st.Playback.Playing,
		PlaybackTime:  st.Playback.Time,
		CycleProgress: st.Cycle.Progress,
		CycleMode:     string(st.Cycle.Mode),
		Phase:         st.Phase,
	}
	for _, l := range st.Layers {
		if l.State == render.Active.String() {
			p.ActiveLayers++
		}
		p.FramesDrawn += l.Frames
	}
	return p
}

// Report samples once and writes the result to every configured sink.
// Sink failures are logged, not returned.
func (s *Service) Report(ctx context.Context) error {
	st, err := s.Sample(ctx)
	if err != nil {
		return fmt.Errorf("sampling status: %w", err)
	}
	now := time.Now()

	if s.deps.Tags != nil {
		s.deps.Tags.Set(
			slog.String("scene", st.Playback.SceneID),
			slog.Bool("playing", st.Playback.Playing),
		)
	}
	if s.deps.StatusFile != "" {
		if err := writeStatusFile(s.deps.StatusFile, st); err != nil {
			s.logger.Error("Error writing status file", "error", err)
		}
	}
	if s.deps.Recorder != nil {
		if err := s.deps.Recorder.RecordPerformance(Performance(st, now)); err != nil {
			s.logger.Error("Error recording performance", "error", err)
		}
	}
	if s.deps.Influx != nil {
		for bucket, points := range influx.StatusPoints(st, now) {
			for _, p := range points {
				if err := s.deps.Influx.WritePoint(bucket, p); err != nil {
					s.logger.Error("Error writing status point", "bucket", bucket, "error", err)
				}
			}
		}
	}
	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.Publish(streaming.TypeStatus, st); err != nil {
			s.logger.Warn("Error publishing status", "error", err)
		}
	}
	return nil
}

// writeStatusFile replaces the file contents with the indented snapshot.
func writeStatusFile(path string, st streaming.StatusPayload) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Start starts the status monitor goroutine
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if s.deps.Session == nil || s.deps.Runner == nil {
		s.mu.Unlock()
		return fmt.Errorf("monitor needs a session and a runner")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(done)
		}()

		s.logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Report(ctx); err != nil {
					s.logger.Debug("Status sample skipped", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.isRunning = false
	s.mu.Unlock()
	<-done
}

package cycle

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mapscene/animator/internal/host"
	"github.com/mapscene/animator/internal/loop"
	"github.com/mapscene/animator/internal/util"
	"github.com/mapscene/animator/pkg/core"
)

// Paint properties written by the sun cycle.
const (
	PropAtmosphereSun          = "sky-atmosphere-sun"
	PropAtmosphereSunIntensity = "sky-atmosphere-sun-intensity"
	MaxSunIntensity            = 15.0
)

// SunPosition is the sun direction at one cycle progress.
type SunPosition struct {
	Azimuth   float64 `json:"azimuth"`
	Elevation float64 `json:"elevation"`
	Intensity float64 `json:"intensity"`
}

// SunPositionAt maps progress to a sun direction: midnight at 0, sunrise at
// 0.25, noon at 0.5, sunset at 0.75.
func SunPositionAt(progress float64) SunPosition {
	progress = util.Clamp01(progress)
	elevation := math.Sin(2*math.Pi*(progress-0.25)) * 90
	return SunPosition{
		Azimuth:   progress * 360,
		Elevation: elevation,
		Intensity: MaxSunIntensity * util.Clamp01(elevation/90),
	}
}

// SunCycle is a day cycle for the atmosphere sun with its own clock. It runs
// independently of the sky color Engine.
type SunCycle struct {
	adapter  *host.Adapter
	sched    loop.Scheduler
	logger   *slog.Logger
	layerID  string
	interval time.Duration
	duration time.Duration

	token    loop.Token
	origin   time.Time
	progress float64
	running  bool
	last     SunPosition
}

// NewSunCycle creates a stopped sun cycle writing to layerID.
func NewSunCycle(adapter *host.Adapter, sched loop.Scheduler, layerID string, duration, interval time.Duration, logger *slog.Logger) *SunCycle {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if duration <= 0 {
		duration = 120 * time.Second
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &SunCycle{adapter: adapter, sched: sched, logger: logger, layerID: layerID, interval: interval, duration: duration}
}

// Start runs the cycle from its current progress. Starting twice restarts.
func (s *SunCycle) Start() {
	s.Stop()
	s.running = true
	s.origin = s.sched.Now().Add(-time.Duration(s.progress * float64(s.duration)))
	s.tick()
}

// Stop pauses the cycle, keeping its progress.
func (s *SunCycle) Stop() {
	if s.running {
		s.progress = s.currentProgress()
	}
	if s.token != nil {
		s.token.Stop()
		s.token = nil
	}
	s.running = false
}

// SetDuration changes the cycle length without moving the sun.
func (s *SunCycle) SetDuration(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("sun cycle duration must be > 0, got %s", d)
	}
	wasRunning := s.running
	s.Stop()
	s.duration = d
	if wasRunning {
		s.Start()
	}
	return nil
}

func (s *SunCycle) currentProgress() float64 {
	if !s.running {
		return s.progress
	}
	elapsed := s.sched.Now().Sub(s.origin)
	return float64(elapsed%s.duration) / float64(s.duration)
}

func (s *SunCycle) tick() {
	s.token = nil
	if !s.running {
		return
	}
	s.progress = s.currentProgress()
	s.apply(SunPositionAt(s.progress))
	s.token = s.sched.AfterFunc(s.interval, s.tick)
}

func (s *SunCycle) apply(pos SunPosition) {
	s.last = pos
	// azimuthal angle, polar angle
	sun := []float64{pos.Azimuth, 90 - pos.Elevation}
	if err := s.adapter.SetPaint(s.layerID, PropAtmosphereSun, sun); err != nil {
		s.logger.Debug("sun not applied", "error", err)
		return
	}
	if err := s.adapter.SetPaint(s.layerID, PropAtmosphereSunIntensity, pos.Intensity); err != nil {
		s.logger.Debug("sun intensity not applied", "error", err)
	}
}

// Position returns the last applied sun position.
func (s *SunCycle) Position() SunPosition {
	return s.last
}

// Status reports the sun clock.
func (s *SunCycle) Status() core.CycleState {
	st := core.CycleState{
		Duration: float64(s.duration / time.Millisecond),
		Mode:     core.CycleIdle,
		Progress: s.currentProgress(),
	}
	if s.running {
		st.Mode = core.CycleContinuous
		st.Elapsed = float64(s.sched.Now().Sub(s.origin) / time.Millisecond)
	}
	return st
}

// pkg/core/sky.go
package core

// GradientStop is an authored sky snapshot at a cycle progress in [0,1].
type GradientStop struct {
	Progress   float64  `json:"progress" yaml:"progress"`
	Colors     []string `json:"colors" yaml:"colors"`
	Background string   `json:"background" yaml:"background"`
	Phase      string   `json:"phase" yaml:"phase"`
}

// Palette is a named static sky state.
type Palette struct {
	Name       string   `json:"name" yaml:"name"`
	Colors     []string `json:"colors" yaml:"colors"`
	Background string   `json:"background" yaml:"background"`
	Phase      string   `json:"phase" yaml:"phase"`
	Stars      bool     `json:"stars" yaml:"stars"`
}

// CycleMode is the active timer mode of a cycle.
type CycleMode string

const (
	CycleIdle       CycleMode = "idle"
	CycleTransition CycleMode = "discrete-transition"
	CycleContinuous CycleMode = "continuous-cycle"
)

// CycleState reports the elapsed time and mode of a cycle.
type CycleState struct {
	Elapsed  float64   `json:"elapsedMs"`
	Duration float64   `json:"durationMs"`
	Mode     CycleMode `json:"mode"`
	Progress float64   `json:"progress"`
}

// GradientPoint is one on-screen stop of an applied sky gradient.
// Offset 0 is the top of the viewport.
type GradientPoint struct {
	Offset float64 `json:"offset"`
	Color  string  `json:"color"`
}

// SunMarker is the overlay marker derived from cycle progress.
// X and Y are viewport fractions.
type SunMarker struct {
	Visible bool    `json:"visible"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// PlaybackStatus is read back by the UI.
type PlaybackStatus struct {
	SceneID  string  `json:"sceneId"`
	Playing  bool    `json:"playing"`
	Time     float64 `json:"time"`
	Duration float64 `json:"duration"`
	Progress float64 `json:"progress"`
}

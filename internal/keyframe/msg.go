package keyframe

import "github.com/mapscene/animator/pkg/core"

// Msg is an input to Update. Each message carries a full snapshot of what it
// needs; handlers never read state captured earlier.
type Msg interface {
	keyframeMsg()
}

// CaptureMsg appends a keyframe from Camera at Time.
type CaptureMsg struct {
	SceneID string
	Camera  core.CameraState
	Time    float64
}

// PlayMsg starts or restarts playback.
type PlayMsg struct {
	SceneID string
	Speed   float64
}

// StopMsg halts playback.
type StopMsg struct{}

// SeekMsg applies the state at Time without playing.
type SeekMsg struct {
	SceneID string
	Time    float64
}

// EditModeMsg toggles edit mode.
type EditModeMsg struct {
	Enabled bool
}

// PointerMsg is a host pointer event for keyframe editing.
type PointerMsg struct {
	SceneID string
	Index   int
	Event   core.PointerEvent
}

// CameraMovedMsg reports a host camera change.
type CameraMovedMsg struct {
	Camera core.CameraState
}

func (CaptureMsg) keyframeMsg() {}
func (PlayMsg) keyframeMsg() {}
func (StopMsg) keyframeMsg() {}
func (SeekMsg) keyframeMsg() {}
func (EditModeMsg) keyframeMsg() {}
func (PointerMsg) keyframeMsg() {}
func (CameraMovedMsg) keyframeMsg() {}

// Update is the single entry point for engine inputs.
func (e *Engine) Update(msg Msg) error {
	switch m := msg.(type) {
	case CaptureMsg:
		_, err := e.Capture(m.SceneID, m.Camera, m.Time)
		return err
	case PlayMsg:
		return e.Play(m.SceneID, m.Speed)
	case StopMsg:
		e.Stop()
	case SeekMsg:
		return e.Seek(m.SceneID, m.Time)
	case EditModeMsg:
		e.SetEditMode(m.Enabled)
	case PointerMsg:
		if m.SceneID == "" {
			return nil
		}
		return e.EditKeyframe(m.SceneID, m.Index, m.Event)
	case CameraMovedMsg:
		e.lastCamera = m.Camera
	}
	return nil
}

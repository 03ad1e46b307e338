// Package streaming defines the messages exchanged with a remote scene viewer.
package streaming

import (
	"encoding/json"

	"github.com/mapscene/animator/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeHello        = "hello"
	TypeSceneSaved   = "scene_saved"
	TypeSceneDeleted = "scene_deleted"
	TypeStatus       = "status"
	TypeFrame        = "frame"
	TypeCycle        = "cycle"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// HelloPayload opens a session; it is replayed after every reconnect.
type HelloPayload struct {
	Client    string `json:"client"`
	SessionID string `json:"sessionId"`
}

// SceneDeletedPayload names a removed scene.
type SceneDeletedPayload struct {
	ID string `json:"id"`
}

// LayerState is the viewer-facing state of one render layer.
type LayerState struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Frames int    `json:"frames"`
}

// StatusPayload is the periodic status snapshot.
type StatusPayload struct {
	Playback core.PlaybackStatus `json:"playback"`
	Cycle    core.CycleState     `json:"cycle"`
	Sun      core.CycleState     `json:"sun"`
	Phase    string              `json:"phase"`
	Palette  string              `json:"palette,omitempty"`
	Layers   []LayerState        `json:"layers"`
}

// FramePayload is one applied playback frame.
type FramePayload struct {
	SceneID string           `json:"sceneId"`
	Time    float64          `json:"time"`
	Camera  core.CameraState `json:"camera"`
}

// Package storage persists scenes. Every backend satisfies Backend; the
// remote viewer stream additionally satisfies Publisher.
package storage

import (
	"errors"

	"github.com/mapscene/animator/internal/model"
	"github.com/mapscene/animator/pkg/core"
)

var (
	// ErrSceneNotFound is returned by LoadScene and DeleteScene for unknown ids.
	ErrSceneNotFound = errors.New("scene not found")
	// ErrUnsupported is returned by write-only backends for reads.
	ErrUnsupported = errors.New("operation not supported by backend")
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// SaveScene inserts s or replaces the stored scene with the same id.
	SaveScene(s core.Scene) error
	LoadScene(id string) (core.Scene, error)
	// ListScenes returns summaries ordered by name, then id.
	ListScenes() ([]core.SceneSummary, error)
	DeleteScene(id string) error
}

// Publisher is an optional interface for backends that forward live
// status to a remote viewer.
type Publisher interface {
	Publish(msgType string, payload any) error
}

// Recorder is an optional interface for backends that keep status samples.
type Recorder interface {
	RecordPerformance(p model.Performance) error
}

// Package memory keeps scenes in process memory. Nothing survives Close.
package memory

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/mapscene/animator/internal/scene"
	"github.com/mapscene/animator/internal/storage"
	"github.com/mapscene/animator/pkg/core"
)

// Backend stores scenes in a map
type Backend struct {
	scenes map[string]core.Scene
	mu     sync.RWMutex
}

var _ storage.Backend = (*Backend)(nil)

// New creates a new memory backend
func New() *Backend {
	return &Backend{
		scenes: make(map[string]core.Scene),
	}
}

// Init is a no-op
func (b *Backend) Init() error {
	return nil
}

// Close drops every stored scene
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.scenes)
	return nil
}

// SaveScene stores a copy of s
func (b *Backend) SaveScene(s core.Scene) error {
	if s.ID == "" {
		return errors.New("scene id is empty")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scenes[s.ID] = scene.Clone(s)
	return nil
}

// LoadScene returns a copy of the stored scene
func (b *Backend) LoadScene(id string) (core.Scene, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.scenes[id]
	if !ok {
		return core.Scene{}, fmt.Errorf("%w: %s", storage.ErrSceneNotFound, id)
	}
	return scene.Clone(s), nil
}

// ListScenes returns summaries ordered by name, then id
func (b *Backend) ListScenes() ([]core.SceneSummary, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]core.SceneSummary, 0, len(b.scenes))
	for _, s := range b.scenes {
		out = append(out, scene.Summarize(s))
	}
	slices.SortFunc(out, func(a, b core.SceneSummary) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// DeleteScene removes a stored scene
func (b *Backend) DeleteScene(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.scenes[id]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrSceneNotFound, id)
	}
	delete(b.scenes, id)
	return nil
}

// Len returns the number of stored scenes
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.scenes)
}

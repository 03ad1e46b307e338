package scene

import (
	"fmt"
	"slices"
	"sync"

	"github.com/mapscene/animator/pkg/core"
)

// Context holds the scenes known to the session and which one is current.
// At most one scene is current at a time.
type Context struct {
	mu      sync.RWMutex
	scenes  map[string]core.Scene
	order   []string
	current string
}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{
		scenes: make(map[string]core.Scene),
	}
}

// Current returns the current scene.
func (c *Context) Current() (core.Scene, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scenes[c.current]
	return s, ok
}

// CurrentID returns the current scene id, or "".
func (c *Context) CurrentID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Get returns a scene by id.
func (c *Context) Get(id string) (core.Scene, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scenes[id]
	return s, ok
}

// Put stores s, replacing any scene with the same id.
func (c *Context) Put(s core.Scene) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.scenes[s.ID]; !ok {
		c.order = append(c.order, s.ID)
	}
	c.scenes[s.ID] = s
}

// Select makes id the current scene.
func (c *Context) Select(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.scenes[id]; !ok {
		return fmt.Errorf("%w: scene %s", ErrNotFound, id)
	}
	c.current = id
	return nil
}

// Update applies fn to scene id and stores the result.
func (c *Context) Update(id string, fn func(core.Scene) (core.Scene, error)) (core.Scene, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.scenes[id]
	if !ok {
		return core.Scene{}, fmt.Errorf("%w: scene %s", ErrNotFound, id)
	}
	next, err := fn(s)
	if err != nil {
		return s, err
	}
	next.ID = id
	c.scenes[id] = next
	return next, nil
}

// UpdateCurrent applies fn to the current scene.
func (c *Context) UpdateCurrent(fn func(core.Scene) (core.Scene, error)) (core.Scene, error) {
	return c.Update(c.CurrentID(), fn)
}

// Remove drops a scene. Removing the current scene clears the selection.
func (c *Context) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.scenes, id)
	c.order = slices.DeleteFunc(c.order, func(x string) bool { return x == id })
	if c.current == id {
		c.current = ""
	}
}

// List returns summaries in insertion order.
func (c *Context) List() []core.SceneSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.SceneSummary, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, Summarize(c.scenes[id]))
	}
	return out
}

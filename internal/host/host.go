// Package host defines the boundary to the map engine that owns the camera,
// the shared canvas and paint-property storage. Core code talks to the engine
// only through Adapter.
package host

import (
	"errors"

	"github.com/mapscene/animator/pkg/core"
)

var (
	// ErrHostNotReady means host-side resources (style, sources) are not loaded yet.
	ErrHostNotReady = errors.New("host not ready")
	// ErrHostDestroyed is returned by every call after the host has been torn down.
	ErrHostDestroyed = errors.New("host destroyed")
	// ErrLayerNotFound is returned for unknown layer ids.
	ErrLayerNotFound = errors.New("layer not found")
	// ErrLayerExists is returned when adding a layer id twice.
	ErrLayerExists = errors.New("layer already exists")
	// ErrNotVisible is returned when a point projects behind the camera.
	ErrNotVisible = errors.New("point not visible")
)

// Map is the map engine surface consumed by the core.
type Map interface {
	Camera() core.CameraState
	JumpTo(camera core.CameraState)

	// AddLayer inserts layer before the layer with id beforeID, or on top when
	// beforeID is empty. OnAdd is called synchronously.
	AddLayer(layer CustomLayer, beforeID string) error
	// RemoveLayer calls OnRemove and drops the layer.
	RemoveLayer(id string) error
	HasLayer(id string) bool
	// LayerOrder returns layer ids in draw order, bottom first.
	LayerOrder() []string

	SetPaintProperty(layerID, name string, value any) error
	GetPaintProperty(layerID, name string) (any, error)

	IsStyleLoaded() bool
	// TriggerRepaint schedules one more frame. The host is otherwise event driven.
	TriggerRepaint()

	Project(p core.GeodeticPoint) (x, y float64, ok bool)
	Unproject(x, y float64) (core.GeodeticPoint, bool)

	// OnMove subscribes to camera changes. The returned func unsubscribes.
	OnMove(fn func(core.CameraState)) func()
	// OnPointer subscribes to pointer events. The returned func unsubscribes.
	OnPointer(fn func(core.PointerEvent)) func()
}

// CustomLayer is the protocol the host drives for layers that draw into the
// shared surface themselves.
type CustomLayer interface {
	ID() string
	// OnAdd runs once when the layer is added, handing over the shared surface.
	OnAdd(m Map, s Surface)
	// Render runs once per host frame with the host's projection matrix.
	Render(s Surface, matrix [16]float64)
	// OnRemove runs when the layer is removed or the host is destroyed.
	OnRemove(m Map, s Surface)
}

package host

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/mapscene/animator/pkg/core"
)

// HostError is the single error type returned by every Adapter call.
type HostError struct {
	Op    string
	Layer string
	Err   error
}

func (e *HostError) Error() string {
	if e.Layer != "" {
		return fmt.Sprintf("host %s [%s]: %v", e.Op, e.Layer, e.Err)
	}
	return fmt.Sprintf("host %s: %v", e.Op, e.Err)
}

func (e *HostError) Unwrap() error {
	return e.Err
}

// Adapter wraps a Map so that no host failure, including a panic, escapes as
// anything other than a *HostError.
type Adapter struct {
	m      Map
	logger *slog.Logger
}

// NewAdapter wraps m. A nil logger discards.
func NewAdapter(m Map, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{m: m, logger: logger}
}

// Map returns the wrapped host.
func (a *Adapter) Map() Map {
	return a.m
}

func call[T any](a *Adapter, op, layer string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Debug("recovered host panic", "op", op, "layer", layer, "panic", r)
			var zero T
			result = zero
			err = &HostError{Op: op, Layer: layer, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	result, err = fn()
	if err != nil {
		var he *HostError
		if !errors.As(err, &he) {
			err = &HostError{Op: op, Layer: layer, Err: err}
		}
	}
	return result, err
}

func do(a *Adapter, op, layer string, fn func() error) error {
	_, err := call(a, op, layer, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Camera returns the host camera.
func (a *Adapter) Camera() (core.CameraState, error) {
	return call(a, "camera", "", func() (core.CameraState, error) {
		return a.m.Camera(), nil
	})
}

// JumpTo moves the host camera without animation.
func (a *Adapter) JumpTo(camera core.CameraState) error {
	return do(a, "jumpTo", "", func() error {
		a.m.JumpTo(camera)
		return nil
	})
}

// Ready returns ErrHostNotReady until the host style is loaded.
func (a *Adapter) Ready() error {
	return do(a, "ready", "", func() error {
		if !a.m.IsStyleLoaded() {
			return ErrHostNotReady
		}
		return nil
	})
}

// AddLayer adds a custom layer before beforeID.
func (a *Adapter) AddLayer(layer CustomLayer, beforeID string) error {
	return do(a, "addLayer", layer.ID(), func() error {
		return a.m.AddLayer(layer, beforeID)
	})
}

// RemoveLayer removes a layer by id.
func (a *Adapter) RemoveLayer(id string) error {
	return do(a, "removeLayer", id, func() error {
		return a.m.RemoveLayer(id)
	})
}

// HasLayer reports whether the host knows id. Failures read as false.
func (a *Adapter) HasLayer(id string) bool {
	ok, err := call(a, "hasLayer", id, func() (bool, error) {
		return a.m.HasLayer(id), nil
	})
	return err == nil && ok
}

// LayerOrder returns host layer ids bottom first.
func (a *Adapter) LayerOrder() ([]string, error) {
	return call(a, "layerOrder", "", func() ([]string, error) {
		return a.m.LayerOrder(), nil
	})
}

// SetPaint writes a paint property.
func (a *Adapter) SetPaint(layerID, name string, value any) error {
	return do(a, "setPaintProperty", layerID, func() error {
		return a.m.SetPaintProperty(layerID, name, value)
	})
}

// Paint reads a paint property.
func (a *Adapter) Paint(layerID, name string) (any, error) {
	return call(a, "getPaintProperty", layerID, func() (any, error) {
		return a.m.GetPaintProperty(layerID, name)
	})
}

// TriggerRepaint asks the host for another frame.
func (a *Adapter) TriggerRepaint() error {
	return do(a, "triggerRepaint", "", func() error {
		a.m.TriggerRepaint()
		return nil
	})
}

// Project maps a geodetic point to screen pixels.
func (a *Adapter) Project(p core.GeodeticPoint) (x, y float64, err error) {
	type xy struct{ x, y float64 }
	res, err := call(a, "project", "", func() (xy, error) {
		x, y, ok := a.m.Project(p)
		if !ok {
			return xy{}, ErrNotVisible
		}
		return xy{x, y}, nil
	})
	return res.x, res.y, err
}

// Unproject maps screen pixels to a geodetic point.
func (a *Adapter) Unproject(x, y float64) (core.GeodeticPoint, error) {
	return call(a, "unproject", "", func() (core.GeodeticPoint, error) {
		p, ok := a.m.Unproject(x, y)
		if !ok {
			return core.GeodeticPoint{}, ErrNotVisible
		}
		return p, nil
	})
}

// OnMove subscribes to camera moves.
func (a *Adapter) OnMove(fn func(core.CameraState)) (func(), error) {
	return call(a, "onMove", "", func() (func(), error) {
		return a.m.OnMove(fn), nil
	})
}

// OnPointer subscribes to pointer events.
func (a *Adapter) OnPointer(fn func(core.PointerEvent)) (func(), error) {
	return call(a, "onPointer", "", func() (func(), error) {
		return a.m.OnPointer(fn), nil
	})
}

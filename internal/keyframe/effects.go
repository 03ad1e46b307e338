package keyframe

import (
	"log/slog"
	"math"

	"github.com/mapscene/animator/internal/host"
	"github.com/mapscene/animator/pkg/core"
)

// Paint properties written by the built-in effect handlers.
const (
	PropLightIntensity = "effect-light-intensity"
	PropFogDensity     = "fog-density"
)

func param(e core.Effect, key string, def float64) float64 {
	switch v := e.Params[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// envelope rises from 0 to 1 and back over the effect window.
func envelope(progress float64) float64 {
	return math.Sin(math.Pi * progress)
}

// LightHandler writes a pulsing light intensity to layerID.
func LightHandler(a *host.Adapter, layerID string, logger *slog.Logger) EffectHandler {
	return func(e core.Effect, progress float64) {
		v := param(e, "intensity", 1) * envelope(progress)
		if err := a.SetPaint(layerID, PropLightIntensity, v); err != nil {
			logger.Debug("light effect not applied", "effect", e.ID, "error", err)
		}
	}
}

// WeatherHandler writes fog density to layerID.
func WeatherHandler(a *host.Adapter, layerID string, logger *slog.Logger) EffectHandler {
	return func(e core.Effect, progress float64) {
		v := param(e, "density", 0.5) * envelope(progress)
		if err := a.SetPaint(layerID, PropFogDensity, v); err != nil {
			logger.Debug("weather effect not applied", "effect", e.ID, "error", err)
		}
	}
}

// RegisterBuiltinEffects installs the light and weather handlers writing to layerID.
func (e *Engine) RegisterBuiltinEffects(layerID string) {
	e.HandleEffect(core.EffectLight, LightHandler(e.adapter, layerID, e.logger))
	e.HandleEffect(core.EffectWeather, WeatherHandler(e.adapter, layerID, e.logger))
}

package influx

import (
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/mapscene/animator/internal/keyframe"
	"github.com/mapscene/animator/internal/render"
	"github.com/mapscene/animator/pkg/core"
	"github.com/mapscene/animator/pkg/streaming"
)

// FramePoint records one applied playback frame.
func FramePoint(sceneID string, f keyframe.Frame, at time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		"playback_frame",
		map[string]string{"scene": sceneID},
		map[string]any{
			"time":     f.Time,
			"progress": f.Progress,
			"zoom":     f.Camera.Position.Zoom,
			"pitch":    f.Camera.Target.Pitch,
			"bearing":  f.Camera.Bearing,
			"actors":   len(f.Actors),
			"effects":  len(f.Effects),
		},
		at,
	)
}

// LayerFramePoint records one layer draw.
func LayerFramePoint(s render.FrameStats, at time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		"layer_frame",
		map[string]string{"layer": s.Layer},
		map[string]any{
			"number":      s.Number,
			"duration_ms": float64(s.Duration) / float64(time.Millisecond),
			"drawn":       s.Drawn,
		},
		at,
	)
}

// CyclePoint records the sky cycle clock.
func CyclePoint(name string, st core.CycleState, phase string, at time.Time) *influxdb2_write.Point {
	p := influxdb2_write.NewPoint(
		"cycle",
		map[string]string{"cycle": name, "mode": string(st.Mode)},
		map[string]any{
			"progress":    st.Progress,
			"elapsed_ms":  st.Elapsed,
			"duration_ms": st.Duration,
		},
		at,
	)
	if phase != "" {
		p.AddTag("phase", phase)
	}
	return p
}

// StatusPoints splits a status snapshot into one point per bucket.
func StatusPoints(st streaming.StatusPayload, at time.Time) map[string][]*influxdb2_write.Point {
	playback := influxdb2_write.NewPoint(
		"playback_status",
		map[string]string{"scene": st.Playback.SceneID},
		map[string]any{
			"playing":  st.Playback.Playing,
			"time":     st.Playback.Time,
			"progress": st.Playback.Progress,
		},
		at,
	)
	out := map[string][]*influxdb2_write.Point{
		BucketPlayback: {playback},
		BucketSky: {
			CyclePoint("sky", st.Cycle, st.Phase, at),
			CyclePoint("sun", st.Sun, "", at),
		},
	}
	for _, l := range st.Layers {
		out[BucketRender] = append(out[BucketRender], influxdb2_write.NewPoint(
			"layer_status",
			map[string]string{"layer": l.ID, "state": l.State},
			map[string]any{"frames": l.Frames},
			at,
		))
	}
	return out
}

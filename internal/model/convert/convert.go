// Package convert provides functions to convert between GORM records and core models
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/mapscene/animator/internal/model"
	"github.com/mapscene/animator/internal/scene"
	"github.com/mapscene/animator/pkg/core"
	"gorm.io/datatypes"
)

func marshalColumn(name string, v any) (datatypes.JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", name, err)
	}
	return datatypes.JSON(raw), nil
}

func unmarshalColumn(name string, raw datatypes.JSON, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return nil
}

// SceneToRecord converts a core.Scene to a GORM SceneRecord.
// Nil slices are stored as empty JSON arrays.
func SceneToRecord(s core.Scene) (model.SceneRecord, error) {
	rec := model.SceneRecord{
		ID:         s.ID,
		Name:       s.Name,
		Duration:   s.Duration,
		Length:     scene.EffectiveDuration(s),
		Keyframes:  len(s.CameraPath),
		ActorCount: len(s.Actors),
	}
	path := s.CameraPath
	if path == nil {
		path = []core.CameraKeyframe{}
	}
	actors := s.Actors
	if actors == nil {
		actors = []core.Actor{}
	}
	effects := s.Effects
	if effects == nil {
		effects = []core.Effect{}
	}

	var err error
	if rec.CameraPath, err = marshalColumn("camera path", path); err != nil {
		return model.SceneRecord{}, err
	}
	if rec.Actors, err = marshalColumn("actors", actors); err != nil {
		return model.SceneRecord{}, err
	}
	if rec.Effects, err = marshalColumn("effects", effects); err != nil {
		return model.SceneRecord{}, err
	}
	return rec, nil
}

// RecordToScene converts a GORM SceneRecord to a core.Scene.
func RecordToScene(r model.SceneRecord) (core.Scene, error) {
	s := core.Scene{
		ID:       r.ID,
		Name:     r.Name,
		Duration: r.Duration,
	}
	if err := unmarshalColumn("camera path", r.CameraPath, &s.CameraPath); err != nil {
		return core.Scene{}, err
	}
	if err := unmarshalColumn("actors", r.Actors, &s.Actors); err != nil {
		return core.Scene{}, err
	}
	if err := unmarshalColumn("effects", r.Effects, &s.Effects); err != nil {
		return core.Scene{}, err
	}
	return s, nil
}

// RecordToSummary builds the listing view without decoding JSON columns.
func RecordToSummary(r model.SceneRecord) core.SceneSummary {
	return core.SceneSummary{
		ID:        r.ID,
		Name:      r.Name,
		Duration:  r.Length,
		Keyframes: r.Keyframes,
		Actors:    r.ActorCount,
	}
}

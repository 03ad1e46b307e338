package model

import (
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&SceneRecord{},
	&Performance{},
}

// SceneRecord is one stored scene. Nested structure lives in JSON columns;
// the scalar columns exist for listing without decoding.
type SceneRecord struct {
	ID         string         `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt" gorm:"index:idx_scene_updated_at"`
	Name       string         `json:"name" gorm:"size:127;index:idx_scene_name"`
	Duration   float64        `json:"duration"`
	Length     float64        `json:"length"` // effective playback length in seconds
	Keyframes  int            `json:"keyframes"`
	ActorCount int            `json:"actorCount"`
	CameraPath datatypes.JSON `json:"cameraPath"`
	Actors     datatypes.JSON `json:"actors"`
	Effects    datatypes.JSON `json:"effects"`
}

func (*SceneRecord) TableName() string {
	return "scenes"
}

// Performance is one status sample written by the monitor
type Performance struct {
	ID            uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Time          time.Time `json:"time" gorm:"index:idx_performance_time"`
	SceneID       string    `json:"sceneId" gorm:"size:36;index:idx_performance_scene_id"`
	Playing       bool      `json:"playing"`
	PlaybackTime  float64   `json:"playbackTime"`
	CycleProgress float64   `json:"cycleProgress"`
	CycleMode     string    `json:"cycleMode" gorm:"size:32"`
	Phase         string    `json:"phase" gorm:"size:32"`
	ActiveLayers  int       `json:"activeLayers"`
	FramesDrawn   int       `json:"framesDrawn"`
}

func (*Performance) TableName() string {
	return "performances"
}

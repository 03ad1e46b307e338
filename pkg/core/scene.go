// pkg/core/scene.go
package core

// Scene is an animated composition: a camera path plus actors and effects.
type Scene struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Duration   float64          `json:"duration"` // seconds; 0 means "until the last keyframe"
	CameraPath []CameraKeyframe `json:"cameraPath"`
	Actors     []Actor          `json:"actors"`
	Effects    []Effect         `json:"effects"`
}

// SceneSummary is the listing view of a stored scene.
type SceneSummary struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Duration  float64 `json:"duration"`
	Keyframes int     `json:"keyframes"`
	Actors    int     `json:"actors"`
}

// CameraPosition is where the camera sits.
type CameraPosition struct {
	Lng  float64 `json:"lng"`
	Lat  float64 `json:"lat"`
	Zoom float64 `json:"zoom"`
}

// CameraTarget is what the camera looks at.
type CameraTarget struct {
	Lng   float64 `json:"lng"`
	Lat   float64 `json:"lat"`
	Pitch float64 `json:"pitch"`
}

// CameraKeyframe is an authored camera snapshot at Time seconds.
type CameraKeyframe struct {
	Time      float64        `json:"time"`
	Position  CameraPosition `json:"position"`
	Target    CameraTarget   `json:"target"`
	FOV       float64        `json:"fov"`
	Bearing   float64        `json:"bearing"`
	Direction *Vec3          `json:"direction,omitempty"`
}

// ActorKind classifies what an actor renders as.
type ActorKind string

const (
	ActorBuilding ActorKind = "building"
	ActorModel    ActorKind = "model"
	ActorVehicle  ActorKind = "vehicle"
	ActorBridge   ActorKind = "bridge"
)

// Transform is an actor placement. Position is geodetic with altitude.
type Transform struct {
	Position GeodeticPoint      `json:"position"`
	Rotation float64            `json:"rotation"` // degrees clockwise from north
	Scale    float64            `json:"scale"`
	Custom   map[string]float64 `json:"custom,omitempty"`
}

// Actor is a placed model with animations.
type Actor struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Kind       ActorKind   `json:"kind"`
	ModelURL   string      `json:"modelUrl"`
	Base       Transform   `json:"base"`
	Current    Transform   `json:"current"`
	Animations []Animation `json:"animations"`
}

// AnimationKind selects which part of the transform an animation drives.
type AnimationKind string

const (
	AnimationMove   AnimationKind = "move"
	AnimationRotate AnimationKind = "rotate"
	AnimationScale  AnimationKind = "scale"
	AnimationCustom AnimationKind = "custom"
)

// AnimationValue is one raw value snapshot of an animation.
type AnimationValue struct {
	Position *GeodeticPoint     `json:"position,omitempty"`
	Angle    float64            `json:"angle,omitempty"`
	Scale    float64            `json:"scale,omitempty"`
	Values   map[string]float64 `json:"values,omitempty"`
}

// Animation is active while StartTime <= t < StartTime+Duration.
type Animation struct {
	ID        string           `json:"id"`
	StartTime float64          `json:"startTime"`
	Duration  float64          `json:"duration"`
	Kind      AnimationKind    `json:"kind"`
	Keyframes []AnimationValue `json:"keyframes"`
}

// EffectKind classifies an effect.
type EffectKind string

const (
	EffectParticle EffectKind = "particle"
	EffectLight    EffectKind = "light"
	EffectWeather  EffectKind = "weather"
	EffectCustom   EffectKind = "custom"
)

// Effect shares the Animation time-window semantics.
type Effect struct {
	ID        string         `json:"id"`
	StartTime float64        `json:"startTime"`
	Duration  float64        `json:"duration"`
	Kind      EffectKind     `json:"kind"`
	Params    map[string]any `json:"params,omitempty"`
}

// Active reports whether t lies in the animation window.
func (a Animation) Active(t float64) bool {
	return a.Duration > 0 && a.StartTime <= t && t < a.StartTime+a.Duration
}

// Active reports whether t lies in the effect window.
func (e Effect) Active(t float64) bool {
	return e.Duration > 0 && e.StartTime <= t && t < e.StartTime+e.Duration
}

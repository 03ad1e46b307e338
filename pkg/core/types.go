// pkg/core/types.go
package core

// GeodeticPoint is a longitude/latitude pair in degrees with an optional
// altitude in meters above the ground.
type GeodeticPoint struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
	Alt float64 `json:"alt,omitempty"`
}

// WorldPosition is a position in the host's normalized mercator space.
// X and Y are in [0,1]; Z is altitude expressed in the same units.
type WorldPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec3 is a plain 3-component vector.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// CameraState is a snapshot of the host camera.
type CameraState struct {
	Center  GeodeticPoint  `json:"center"`
	Zoom    float64        `json:"zoom"`
	Pitch   float64        `json:"pitch"`
	Bearing float64        `json:"bearing"`
	FOV     float64        `json:"fov"`
	Eye     *GeodeticPoint `json:"eye,omitempty"` // free camera position, when the host exposes one
}

// PointerKind distinguishes pointer event phases.
type PointerKind string

const (
	PointerDown PointerKind = "down"
	PointerMove PointerKind = "move"
	PointerUp   PointerKind = "up"
)

// PointerEvent is a host pointer/click event with both screen and geodetic
// coordinates.
type PointerEvent struct {
	Kind   PointerKind `json:"kind"`
	X      float64     `json:"x"`
	Y      float64     `json:"y"`
	Lng    float64     `json:"lng"`
	Lat    float64     `json:"lat"`
	Ground bool        `json:"ground"` // Lng/Lat hold the ground point under the pointer
}

// Asset is a loaded, positioned and scaled model ready for drawing.
type Asset struct {
	URL       string  `json:"url"`
	Name      string  `json:"name"`
	WidthM    float64 `json:"widthMeters"`
	DepthM    float64 `json:"depthMeters"`
	HeightM   float64 `json:"heightMeters"`
	Color     string  `json:"color"`
	Scale     float64 `json:"scale"`
	Triangles int     `json:"triangles"`
}

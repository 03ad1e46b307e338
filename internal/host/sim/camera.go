package sim

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/mapscene/animator/internal/geo"
	"github.com/mapscene/animator/pkg/core"
)

const (
	// tileSize is the world size in pixels at zoom 0.
	tileSize = 512.0
	// DefaultFOV is the vertical field of view used when the camera has none.
	DefaultFOV = 36.87
	maxPitch   = 85.0
)

// WorldSize returns the world width in pixels at zoom.
func WorldSize(zoom float64) float64 {
	return tileSize * math.Exp2(zoom)
}

// ProjectionMatrix builds the column-major matrix that maps normalized world
// positions to clip space for camera on a width x height viewport.
func ProjectionMatrix(camera core.CameraState, width, height int) (mgl64.Mat4, error) {
	center, err := geo.ToWorld(core.GeodeticPoint{Lng: camera.Center.Lng, Lat: camera.Center.Lat})
	if err != nil {
		return mgl64.Mat4{}, err
	}
	fov := camera.FOV
	if fov <= 0 {
		fov = DefaultFOV
	}
	pitch := math.Max(0, math.Min(maxPitch, camera.Pitch))
	w, h := float64(width), float64(height)
	worldSize := WorldSize(camera.Zoom)

	fovy := mgl64.DegToRad(fov)
	distance := 0.5 / math.Tan(fovy/2) * h
	near := distance / 50
	far := distance * 100

	m := mgl64.Perspective(fovy, w/h, near, far)
	m = m.Mul4(mgl64.Scale3D(1, -1, 1))
	m = m.Mul4(mgl64.Translate3D(0, 0, -distance))
	m = m.Mul4(mgl64.HomogRotate3DX(-mgl64.DegToRad(pitch)))
	m = m.Mul4(mgl64.HomogRotate3DZ(mgl64.DegToRad(camera.Bearing)))
	m = m.Mul4(mgl64.Translate3D(-center.X*worldSize, -center.Y*worldSize, 0))
	m = m.Mul4(mgl64.Scale3D(worldSize, worldSize, worldSize))
	return m, nil
}

// unprojectGround intersects the ray through screen pixel (x, y) with the
// ground plane and returns the normalized world position it hits.
func unprojectGround(m mgl64.Mat4, x, y float64, width, height int) (core.WorldPosition, bool) {
	inv := m.Inv()
	ndcX := x/float64(width)*2 - 1
	ndcY := 1 - y/float64(height)*2

	unproject := func(z float64) (mgl64.Vec3, bool) {
		v := inv.Mul4x1(mgl64.Vec4{ndcX, ndcY, z, 1})
		if v[3] == 0 {
			return mgl64.Vec3{}, false
		}
		return mgl64.Vec3{v[0] / v[3], v[1] / v[3], v[2] / v[3]}, true
	}
	nearPt, ok1 := unproject(-1)
	farPt, ok2 := unproject(1)
	if !ok1 || !ok2 {
		return core.WorldPosition{}, false
	}
	dz := farPt[2] - nearPt[2]
	if dz == 0 {
		return core.WorldPosition{}, false
	}
	t := -nearPt[2] / dz
	if t < 0 {
		return core.WorldPosition{}, false
	}
	hit := nearPt.Add(farPt.Sub(nearPt).Mul(t))
	return core.WorldPosition{X: hit[0], Y: hit[1]}, true
}

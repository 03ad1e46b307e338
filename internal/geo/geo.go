package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/mapscene/animator/internal/util"
	"github.com/mapscene/animator/pkg/core"
)

// World positions use the host's normalized mercator space: EPSG:3857 meters
// shifted and scaled so the whole world spans [0,1] on x and y, y pointing south.

// ErrInvalidCoordinate is returned for NaN, infinite or out-of-range input.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

const (
	// MaxLatitude is the web-mercator latitude limit.
	MaxLatitude = 85.051129
	// mercatorRadius is the sphere radius EPSG:3857 uses.
	mercatorRadius = 6378137.0
	// earthRadius is the mean radius the host uses for altitude scaling.
	earthRadius = 6371008.8
)

var (
	mercatorCircumference = 2 * math.Pi * mercatorRadius

	to3857   = wgs84.EPSG().Transform(4326, 3857)
	from3857 = wgs84.EPSG().Transform(3857, 4326)
)

// Validate rejects points the host projection cannot represent.
func Validate(p core.GeodeticPoint) error {
	if !util.IsFinite(p.Lng, p.Lat, p.Alt) {
		return fmt.Errorf("%w: non-finite value in %+v", ErrInvalidCoordinate, p)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidCoordinate, p.Lng)
	}
	if p.Lat < -MaxLatitude || p.Lat > MaxLatitude {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidCoordinate, p.Lat)
	}
	return nil
}

// MercatorScale returns how many world units one meter spans at lat.
func MercatorScale(lat float64) float64 {
	return 1 / (2 * math.Pi * earthRadius * math.Cos(lat*math.Pi/180))
}

// ToWorld projects a geodetic point into host world space.
func ToWorld(p core.GeodeticPoint) (core.WorldPosition, error) {
	if err := Validate(p); err != nil {
		return core.WorldPosition{}, err
	}
	mx, my, _ := to3857(p.Lng, p.Lat, 0)
	return core.WorldPosition{
		X: (mx + mercatorCircumference/2) / mercatorCircumference,
		Y: (mercatorCircumference/2 - my) / mercatorCircumference,
		Z: p.Alt * MercatorScale(p.Lat),
	}, nil
}

// ToGeodetic inverts ToWorld.
func ToGeodetic(w core.WorldPosition) (core.GeodeticPoint, error) {
	if !util.IsFinite(w.X, w.Y, w.Z) {
		return core.GeodeticPoint{}, fmt.Errorf("%w: non-finite world position %+v", ErrInvalidCoordinate, w)
	}
	mx := w.X*mercatorCircumference - mercatorCircumference/2
	my := mercatorCircumference/2 - w.Y*mercatorCircumference
	lng, lat, _ := from3857(mx, my, 0)
	p := core.GeodeticPoint{Lng: lng, Lat: lat}
	if err := Validate(p); err != nil {
		return core.GeodeticPoint{}, err
	}
	p.Alt = w.Z / MercatorScale(lat)
	return p, nil
}

// ProjectMatrix adopts the host's column-major projection matrix unchanged.
func ProjectMatrix(host [16]float64) (mgl64.Mat4, error) {
	if !util.IsFinite(host[:]...) {
		return mgl64.Mat4{}, fmt.Errorf("%w: non-finite projection matrix", ErrInvalidCoordinate)
	}
	return mgl64.Mat4(host), nil
}

// Viewport is the drawing surface size in pixels.
type Viewport struct {
	Width  float64
	Height float64
}

// Project maps a world position through m to screen pixels. ok is false for
// points behind the camera.
func Project(m mgl64.Mat4, w core.WorldPosition, vp Viewport) (x, y float64, ok bool) {
	clip := m.Mul4x1(mgl64.Vec4{w.X, w.Y, w.Z, 1})
	if clip[3] <= 0 {
		return 0, 0, false
	}
	ndcX := clip[0] / clip[3]
	ndcY := clip[1] / clip[3]
	return (ndcX + 1) / 2 * vp.Width, (1 - ndcY) / 2 * vp.Height, true
}

// ProjectGeodetic is ToWorld followed by Project.
func ProjectGeodetic(m mgl64.Mat4, p core.GeodeticPoint, vp Viewport) (x, y float64, ok bool) {
	w, err := ToWorld(p)
	if err != nil {
		return 0, 0, false
	}
	return Project(m, w, vp)
}

// ParseGeodetic parses "lng,lat" or "lng,lat,alt".
func ParseGeodetic(coords string) (core.GeodeticPoint, error) {
	parts := strings.Split(coords, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return core.GeodeticPoint{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, coords)
	}
	values := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return core.GeodeticPoint{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, coords)
		}
		values[i] = v
	}
	p := core.GeodeticPoint{Lng: values[0], Lat: values[1]}
	if len(values) == 3 {
		p.Alt = values[2]
	}
	if err := Validate(p); err != nil {
		return core.GeodeticPoint{}, err
	}
	return p, nil
}

// PathLineString builds the lng/lat line through the given points.
func PathLineString(points []core.GeodeticPoint) (geom.LineString, error) {
	if len(points) < 2 {
		return geom.LineString{}, fmt.Errorf("path must have at least 2 points, got %d", len(points))
	}
	flat := make([]float64, 0, len(points)*2)
	for i, p := range points {
		if err := Validate(p); err != nil {
			return geom.LineString{}, fmt.Errorf("point %d: %w", i, err)
		}
		flat = append(flat, p.Lng, p.Lat)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY)), nil
}

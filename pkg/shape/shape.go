package shape

import (
	"math"

	"github.com/transitgeo/transitgeo/pkg/transit"
)

const (
	DefaultRotationDegrees = 270.0
	DefaultScaleFactor     = 100.0
)

// outline is the vehicle silhouette as (longitude, latitude) offsets in degrees before
// scaling. The first and last vertex coincide so the ring is closed.
var outline = []transit.Point{
	{Lon: 3e-5, Lat: -1e-5},
	{Lon: 3e-5, Lat: -7.5e-6},
	{Lon: 2e-5, Lat: -7.5e-6},
	{Lon: 2e-5, Lat: 7.5e-6},
	{Lon: 3e-5, Lat: 7.5e-6},
	{Lon: 3e-5, Lat: 1e-5},
	{Lon: 2e-5, Lat: 1e-5},
	{Lon: 2e-5, Lat: 1.5e-5},
	{Lon: 1.5e-5, Lat: 1.5e-5},
	{Lon: 1.5e-5, Lat: 1e-5},
	{Lon: 1e-5, Lat: 1e-5},
	{Lon: 1e-5, Lat: -1e-5},
	{Lon: 1.5e-5, Lat: -1e-5},
	{Lon: 1.5e-5, Lat: -1.5e-5},
	{Lon: 2e-5, Lat: -1.5e-5},
	{Lon: 2e-5, Lat: -1e-5},
	{Lon: 1e-5, Lat: -1e-5},
	{Lon: 1e-5, Lat: -7.5e-6},
	{Lon: 2e-5, Lat: -7.5e-6},
	{Lon: 2e-5, Lat: -1e-5},
	{Lon: 3e-5, Lat: -1e-5},
}

type Synthesizer struct {
	RotationDegrees float64
	ScaleFactor     float64
}

func NewSynthesizer(rotationDegrees float64, scaleFactor float64) *Synthesizer {
	return &Synthesizer{
		RotationDegrees: rotationDegrees,
		ScaleFactor:     scaleFactor,
	}
}

func Default() *Synthesizer {
	return NewSynthesizer(DefaultRotationDegrees, DefaultScaleFactor)
}

// Offsets returns the scaled, unrotated silhouette offsets.
func (s *Synthesizer) Offsets() []transit.Point {
	offsets := make([]transit.Point, len(outline))
	for i, offset := range outline {
		offsets[i] = transit.Point{
			Lon: offset.Lon * s.ScaleFactor,
			Lat: offset.Lat * s.ScaleFactor,
		}
	}
	return offsets
}

// Shape places the silhouette at the vehicle position and rotates every vertex around
// that position.
func (s *Synthesizer) Shape(center transit.Point) transit.ShapePolygon {
	theta := s.RotationDegrees * math.Pi / 180
	sin, cos := math.Sincos(theta)

	offsets := s.Offsets()
	vertices := make([]transit.Point, len(offsets))
	for i, offset := range offsets {
		vertices[i] = Rotate(transit.Point{
			Lon: center.Lon + offset.Lon,
			Lat: center.Lat + offset.Lat,
		}, center, sin, cos)
	}

	return transit.ShapePolygon{
		Center:   center,
		Vertices: vertices,
	}
}

func Rotate(point transit.Point, origin transit.Point, sin float64, cos float64) transit.Point {
	dx := point.Lon - origin.Lon
	dy := point.Lat - origin.Lat

	return transit.Point{
		Lon: dx*cos - dy*sin + origin.Lon,
		Lat: dx*sin + dy*cos + origin.Lat,
	}
}

package transit

import "fmt"

type RouteKey struct {
	LineID  string
	Variant string
}

func (k RouteKey) String() string {
	return fmt.Sprintf("%s;%s", k.LineID, k.Variant)
}

// RouteSegment is one ordinal position of a route variant, referencing the stop served there.
type RouteSegment struct {
	Route   RouteKey
	Ordinal string

	Stop     StopKey
	Distance float64
	StreetID string
	StopType string
}

type Route struct {
	Key    RouteKey
	Points []Point
}

func (r *Route) LineString() string {
	return LineString(r.Points)
}

func (r *Route) GeometryRecord() GeometryRecord {
	return GeometryRecord{
		Key:      r.Key.String(),
		Geometry: r.LineString(),
	}
}

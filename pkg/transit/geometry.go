package transit

// Point is a coordinate pair in WGS84 degrees, longitude first as in WKT.
type Point struct {
	Lon float64
	Lat float64
}

// ShapePolygon is a closed outline drawn around a vehicle position.
type ShapePolygon struct {
	Center   Point
	Vertices []Point
}

func (s *ShapePolygon) Closed() bool {
	n := len(s.Vertices)
	return n > 2 && s.Vertices[0] == s.Vertices[n-1]
}

// GeometryRecord is a single row handed to a geometry sink.
type GeometryRecord struct {
	Key         string `csv:"route" json:"route" bson:"route"`
	Geometry    string `csv:"linestring" json:"linestring" bson:"linestring"`
	Description string `csv:"info,omitempty" json:"info,omitempty" bson:"info,omitempty"`

	Position *VehiclePosition `csv:"-" json:"-" bson:"-"`
}

package transit

import (
	"strconv"
	"strings"
)

type GeometryType string

const (
	GeometryTypeLineString GeometryType = "linestring"
	GeometryTypePolygon    GeometryType = "polygon"
)

func LineString(points []Point) string {
	return "LINESTRING(" + coordinateList(points) + ")"
}

// Polygon writes a single ring polygon. The ring is expected to be closed already.
func Polygon(ring []Point) string {
	return "POLYGON((" + coordinateList(ring) + "))"
}

func (s *ShapePolygon) WKT(geometryType GeometryType) string {
	if geometryType == GeometryTypePolygon {
		return Polygon(s.Vertices)
	}

	return LineString(s.Vertices)
}

func coordinateList(points []Point) string {
	var builder strings.Builder
	builder.Grow(len(points) * 24)

	for i, point := range points {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString(FormatCoordinate(point.Lon))
		builder.WriteByte(' ')
		builder.WriteString(FormatCoordinate(point.Lat))
	}

	return builder.String()
}

// FormatCoordinate prints the shortest representation that round trips, always with a
// decimal part, so 21 becomes "21.0" and 52.248455 stays "52.248455".
func FormatCoordinate(value float64) string {
	formatted := strconv.FormatFloat(value, 'f', -1, 64)
	if !strings.ContainsAny(formatted, ".NI") {
		formatted += ".0"
	}

	return formatted
}

package routes

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/transitgeo/transitgeo/pkg/transit"
	"github.com/transitgeo/transitgeo/pkg/ztmapi"
	"golang.org/x/exp/slices"
)

const DefaultMinRoutePoints = 2

type Assembler struct {
	MinRoutePoints int
}

type Report struct {
	Segments   int
	Unresolved int
	Routes     int
	Built      int
	TooShort   int
	BadOrdinal int
}

// Flatten turns the nested route structure into segments, padding post identifiers so
// they join against the stop table.
func Flatten(structure ztmapi.RouteStructure) []transit.RouteSegment {
	var segments []transit.RouteSegment

	for lineID, variants := range structure {
		for variant, ordinals := range variants {
			routeKey := transit.RouteKey{LineID: lineID, Variant: variant}

			for ordinal, point := range ordinals {
				distance, err := point.Distance.Float()
				if err != nil && point.Distance != "" {
					log.Debug().
						Str("route", routeKey.String()).
						Str("ordinal", ordinal).
						Str("distance", string(point.Distance)).
						Msg("Route point has an unreadable distance")
				}

				segments = append(segments, transit.RouteSegment{
					Route:    routeKey,
					Ordinal:  ordinal,
					Stop:     transit.NewStopKey(string(point.GroupID), string(point.PostID)),
					Distance: distance,
					StreetID: string(point.StreetID),
					StopType: string(point.StopType),
				})
			}
		}
	}

	return segments
}

type orderedPoint struct {
	ordinal int
	raw     string
	point   transit.Point
}

// Assemble joins segments with the stop table and writes one LINESTRING record per route
// variant, sorted by route key. Unresolved segments contribute nothing; a variant with a
// non-numeric ordinal or too few points produces no record.
func (a *Assembler) Assemble(segments []transit.RouteSegment, stops map[transit.StopKey]transit.Stop) ([]transit.GeometryRecord, Report) {
	report := Report{Segments: len(segments)}

	minPoints := a.MinRoutePoints
	if minPoints < DefaultMinRoutePoints {
		minPoints = DefaultMinRoutePoints
	}

	grouped := map[transit.RouteKey][]orderedPoint{}
	badOrdinal := map[transit.RouteKey]bool{}

	for _, segment := range segments {
		stop, exists := stops[segment.Stop]
		if !exists {
			report.Unresolved++
			continue
		}

		ordinal, err := strconv.Atoi(strings.TrimSpace(segment.Ordinal))
		if err != nil {
			badOrdinal[segment.Route] = true
		}

		grouped[segment.Route] = append(grouped[segment.Route], orderedPoint{
			ordinal: ordinal,
			raw:     segment.Ordinal,
			point:   stop.Point(),
		})
	}
	report.Routes = len(grouped)

	var records []transit.GeometryRecord
	for routeKey, points := range grouped {
		if badOrdinal[routeKey] {
			report.BadOrdinal++
			log.Warn().Str("route", routeKey.String()).Msg("Dropping route with non numeric ordinal")
			continue
		}

		if len(points) < minPoints {
			report.TooShort++
			log.Debug().Str("route", routeKey.String()).Int("points", len(points)).Msg("Dropping short route")
			continue
		}

		sort.Slice(points, func(i, j int) bool {
			if points[i].ordinal != points[j].ordinal {
				return points[i].ordinal < points[j].ordinal
			}
			return points[i].raw < points[j].raw
		})

		route := transit.Route{Key: routeKey}
		for _, point := range points {
			route.Points = append(route.Points, point.point)
		}

		records = append(records, route.GeometryRecord())
	}

	slices.SortFunc(records, func(a, b transit.GeometryRecord) int {
		return strings.Compare(a.Key, b.Key)
	})
	report.Built = len(records)

	return records, report
}

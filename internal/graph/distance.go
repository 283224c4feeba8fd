package graph

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/twpayne/go-geom"
)

// EarthRadiusMeters is the mean radius used for all meter/degree conversions.
const EarthRadiusMeters = 6371010.0

// metersPerDegree is the length of one degree of latitude.
const metersPerDegree = EarthRadiusMeters * math.Pi / 180

func toAngle(m float64) s1.Angle { return s1.Angle(m / EarthRadiusMeters) }

func toMeters(a s1.Angle) float64 { return a.Radians() * EarthRadiusMeters }

// MetersToDegrees converts a distance to degrees of latitude.
func MetersToDegrees(m float64) float64 {
	return toAngle(m).Degrees()
}

// MetersToLonDegrees converts a distance to degrees of longitude at lat.
func MetersToLonDegrees(m, lat float64) float64 {
	c := math.Cos((s1.Angle(lat) * s1.Degree).Radians())
	if c < 1e-6 {
		c = 1e-6
	}
	return toAngle(m).Degrees() / c
}

// DistanceToLineString returns the great-circle distance in meters from
// (lon, lat) to the closest point of ls.
func DistanceToLineString(lon, lat float64, ls *geom.LineString) float64 {
	if ls == nil || ls.NumCoords() == 0 {
		return math.Inf(1)
	}
	q := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))

	pts := make([]s2.Point, 0, ls.NumCoords())
	for i := 0; i < ls.NumCoords(); i++ {
		c := ls.Coord(i)
		p := s2.PointFromLatLng(s2.LatLngFromDegrees(c.Y(), c.X()))
		// Repeated vertices make degenerate edges.
		if n := len(pts); n > 0 && pts[n-1].ApproxEqual(p) {
			continue
		}
		pts = append(pts, p)
	}
	if len(pts) == 1 {
		return toMeters(q.Distance(pts[0]))
	}
	line := s2.Polyline(pts)
	closest, _ := line.Project(q)
	return toMeters(q.Distance(closest))
}

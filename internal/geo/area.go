package geo

import (
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// area is a geometry decomposed into XY points, polylines and polygons so
// the buffered "not disjoint" test can run without a full geometry engine:
// an edge intersects the buffer of g exactly when its distance to g is at
// most the buffer width.
type area struct {
	points   []geom.Coord
	lines    [][]float64
	polygons [][][]float64 // exterior ring first, then holes
}

func newArea(g geom.T) (*area, error) {
	a := &area{}
	if err := a.add(g); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *area) empty() bool {
	return len(a.points) == 0 && len(a.lines) == 0 && len(a.polygons) == 0
}

func toXY(layout geom.Layout, flat []float64) []float64 {
	stride := layout.Stride()
	if stride == 2 {
		return flat
	}
	out := make([]float64, 0, len(flat)/stride*2)
	for i := 0; i+1 < len(flat); i += stride {
		out = append(out, flat[i], flat[i+1])
	}
	return out
}

func (a *area) add(g geom.T) error {
	switch t := g.(type) {
	case *geom.Point:
		if len(t.FlatCoords()) >= 2 {
			c := t.Coords()
			a.points = append(a.points, geom.Coord{c.X(), c.Y()})
		}
	case *geom.MultiPoint:
		for i := 0; i < t.NumPoints(); i++ {
			if err := a.add(t.Point(i)); err != nil {
				return err
			}
		}
	case *geom.LineString:
		if t.NumCoords() == 1 {
			c := t.Coord(0)
			a.points = append(a.points, geom.Coord{c.X(), c.Y()})
		} else if t.NumCoords() > 1 {
			a.lines = append(a.lines, toXY(t.Layout(), t.FlatCoords()))
		}
	case *geom.MultiLineString:
		for i := 0; i < t.NumLineStrings(); i++ {
			if err := a.add(t.LineString(i)); err != nil {
				return err
			}
		}
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			return nil
		}
		rings := make([][]float64, 0, t.NumLinearRings())
		for i := 0; i < t.NumLinearRings(); i++ {
			r := t.LinearRing(i)
			rings = append(rings, toXY(r.Layout(), r.FlatCoords()))
		}
		a.polygons = append(a.polygons, rings)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			if err := a.add(t.Polygon(i)); err != nil {
				return err
			}
		}
	case *geom.GeometryCollection:
		for _, child := range t.Geoms() {
			if err := a.add(child); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedGeometry, g)
	}
	return nil
}

func segmentsWithin(a, b []float64, d float64) bool {
	for i := 0; i+3 < len(a); i += 2 {
		a0, a1 := geom.Coord{a[i], a[i+1]}, geom.Coord{a[i+2], a[i+3]}
		for j := 0; j+3 < len(b); j += 2 {
			b0, b1 := geom.Coord{b[j], b[j+1]}, geom.Coord{b[j+2], b[j+3]}
			if xy.DistanceFromLineToLine(a0, a1, b0, b1) <= d {
				return true
			}
		}
	}
	return false
}

func insidePolygon(rings [][]float64, p geom.Coord) bool {
	if !xy.IsPointInRing(geom.XY, p, rings[0]) {
		return false
	}
	for _, hole := range rings[1:] {
		if xy.IsPointInRing(geom.XY, p, hole) {
			return false
		}
	}
	return true
}

// withinDistance reports whether edge lies within d degrees of the area.
func (a *area) withinDistance(edge *geom.LineString, d float64) bool {
	if edge == nil || edge.NumCoords() == 0 {
		return false
	}
	path := toXY(edge.Layout(), edge.FlatCoords())
	single := len(path) == 2

	for _, p := range a.points {
		if single {
			dx, dy := path[0]-p[0], path[1]-p[1]
			if dx*dx+dy*dy <= d*d {
				return true
			}
			continue
		}
		if xy.DistanceFromPointToLineString(geom.XY, p, path) <= d {
			return true
		}
	}

	for _, l := range a.lines {
		if single {
			if xy.DistanceFromPointToLineString(geom.XY, geom.Coord{path[0], path[1]}, l) <= d {
				return true
			}
			continue
		}
		if segmentsWithin(path, l, d) {
			return true
		}
	}

	for _, rings := range a.polygons {
		// An edge fully inside the polygon never comes near its boundary.
		if insidePolygon(rings, geom.Coord{path[0], path[1]}) {
			return true
		}
		for _, ring := range rings {
			if single {
				if xy.DistanceFromPointToLineString(geom.XY, geom.Coord{path[0], path[1]}, ring) <= d {
					return true
				}
				continue
			}
			if segmentsWithin(path, ring, d) {
				return true
			}
		}
	}
	return false
}

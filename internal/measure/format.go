package measure

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/project"
	sf "github.com/peterstace/simplefeatures/geom"
)

// Thresholds at which labels switch to the larger unit.
const (
	maxMetres       = 100.0
	maxSquareMetres = 10000.0
)

// FormatLength formats a length in metres.
func FormatLength(meters float64) string {
	if meters > maxMetres {
		return fmt.Sprintf("%.2f km", meters/1000)
	}
	return fmt.Sprintf("%.2f m", meters)
}

// FormatArea formats an area in square metres. Areas above one hectare
// are shown in km² with the hectare figure appended.
func FormatArea(squareMeters float64) string {
	if squareMeters > maxSquareMetres {
		return fmt.Sprintf("%.2f km² (%.2f ha)", squareMeters/1000000, squareMeters/10000)
	}
	return fmt.Sprintf("%.2f m²", squareMeters)
}

// Label returns the measurement text for a geometry in map projection
// (EPSG:3857). Points have no label.
func Label(g orb.Geometry) (string, bool) {
	switch g := g.(type) {
	case orb.LineString:
		return FormatLength(geo.Length(toWGS84(g))), true
	case orb.Polygon:
		return FormatArea(geo.Area(toWGS84(g))), true
	}
	return "", false
}

// Anchor returns the map coordinate a live tooltip is pinned to.
func Anchor(g orb.Geometry) orb.Point {
	switch g := g.(type) {
	case orb.Point:
		return g
	case orb.LineString:
		if len(g) == 0 {
			return orb.Point{}
		}
		return g[len(g)-1]
	case orb.Polygon:
		return interiorPoint(g)
	}
	if g == nil {
		return orb.Point{}
	}
	return g.Bound().Center()
}

func toWGS84(g orb.Geometry) orb.Geometry {
	return project.Geometry(orb.Clone(g), project.Mercator.ToWGS84)
}

// interiorPoint finds a point guaranteed to lie inside the polygon, which
// the centroid is not for concave shapes. Rings with fewer than three
// points are dropped; an invalid polygon falls back to its bound centre.
func interiorPoint(p orb.Polygon) orb.Point {
	if len(p) == 0 || len(p[0]) < 3 {
		return p.Bound().Center()
	}
	rings := make([]sf.LineString, 0, len(p))
	for _, r := range p {
		if len(r) < 3 {
			continue
		}
		coords := make([]float64, 0, len(r)*2+2)
		for _, pt := range r {
			coords = append(coords, pt[0], pt[1])
		}
		if !r.Closed() {
			coords = append(coords, r[0][0], r[0][1])
		}
		ring, err := sf.NewLineString(sf.NewSequence(coords, sf.DimXY))
		if err != nil {
			return p.Bound().Center()
		}
		rings = append(rings, ring)
	}
	poly, err := sf.NewPolygon(rings)
	if err != nil {
		return p.Bound().Center()
	}
	xy, ok := poly.PointOnSurface().XY()
	if !ok {
		return p.Bound().Center()
	}
	return orb.Point{xy.X, xy.Y}
}

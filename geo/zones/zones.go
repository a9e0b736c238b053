// Package zones maps paths onto S2 cells, the territory units athletes capture.
package zones

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

/*
https://s2geometry.io/resources/s2cell_statistics.html

level  average area  edge length (approx.)
13     1.27 km2      ~1.1 km -- about a kilometer (square)
14     0.32 km2      ~560 m
15     79172 m2      ~280 m
16     19793 m2      ~140 m -- a city block or a small park
17     4948 m2       ~70 m
18     1237 m2       ~35 m
*/

// CellLevel is the S2 cell level, from 0-30.
type CellLevel int

const (
	// CellLevel13 is about a 1/2 section. Recommendations are cached at this level.
	CellLevel13 CellLevel = 13

	// CellLevel16 is approximately 140m on an edge, or an area of about 5 acres.
	// The default capture zone.
	CellLevel16 CellLevel = 16

	// CellLevel18 is about 100ft on a side. Small residential plot.
	CellLevel18 CellLevel = 18

	MaxCellLevel CellLevel = s2.MaxLevel
)

func (l CellLevel) valid() CellLevel {
	if l < 0 {
		return 0
	}
	if l > MaxCellLevel {
		return MaxCellLevel
	}
	return l
}

// CellIDWithLevel returns the cellID truncated to the given level.
// https://docs.s2cell.aliddell.com/en/stable/s2_concepts.html#truncation
func CellIDWithLevel(cellID s2.CellID, level CellLevel) s2.CellID {
	return cellID.Parent(int(level.valid()))
}

// CellIDForPoint returns the cell containing pt at level.
func CellIDForPoint(pt orb.Point, level CellLevel) s2.CellID {
	return CellIDWithLevel(s2.CellIDFromLatLng(s2.LatLngFromDegrees(pt.Lat(), pt.Lon())), level)
}

// Token is the short string form of the cell containing pt at level.
func Token(pt orb.Point, level CellLevel) string {
	return CellIDForPoint(pt, level).ToToken()
}

// CellsForPath returns the distinct tokens of the cells the path passes
// through, in first-visit order. Long segments between sparse fixes are
// sampled at half the average cell edge so crossed cells are not skipped.
func CellsForPath(ls orb.LineString, level CellLevel) []string {
	level = level.valid()
	seen := map[s2.CellID]bool{}
	out := []string{}
	visit := func(p s2.Point) {
		id := CellIDWithLevel(s2.CellIDFromLatLng(s2.LatLngFromPoint(p)), level)
		if seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id.ToToken())
	}

	stepAngle := s2.AvgEdgeMetric.Value(int(level)) / 2
	for i, pt := range ls {
		cur := s2.PointFromLatLng(s2.LatLngFromDegrees(pt.Lat(), pt.Lon()))
		if i > 0 {
			prev := s2.PointFromLatLng(s2.LatLngFromDegrees(ls[i-1].Lat(), ls[i-1].Lon()))
			angle := float64(prev.Distance(cur))
			if n := int(math.Ceil(angle / stepAngle)); n > 1 {
				for k := 1; k < n; k++ {
					visit(s2.Interpolate(float64(k)/float64(n), prev, cur))
				}
			}
		}
		visit(cur)
	}
	return out
}

// CellPolygon returns the outline of the cell with the given token.
func CellPolygon(token string) (orb.Polygon, error) {
	id := s2.CellIDFromToken(token)
	if !id.IsValid() {
		return nil, fmt.Errorf("invalid cell token %q", token)
	}
	return cellPolygon(id), nil
}

// CellPolygonForPoint returns the outline of the cell containing pt at level.
func CellPolygonForPoint(pt orb.Point, level CellLevel) orb.Polygon {
	return cellPolygon(CellIDForPoint(pt, level))
}

func cellPolygon(id s2.CellID) orb.Polygon {
	cell := s2.CellFromCellID(id)
	ring := make(orb.Ring, 0, 5)
	for i := 0; i < 4; i++ {
		ll := s2.LatLngFromPoint(cell.Vertex(i))
		ring = append(ring, orb.Point{ll.Lng.Degrees(), ll.Lat.Degrees()})
	}
	// Close the ring, as GeoJSON wants.
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// EdgeMeters is the average cell edge at level on a sphere of radius meters.
func EdgeMeters(level CellLevel, radius float64) float64 {
	return s2.AvgEdgeMetric.Value(int(level.valid())) * radius
}

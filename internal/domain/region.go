package domain

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Region is an immutable area of interest in lon/lat degrees: either an
// axis-aligned rectangle or a simple polygon.
type Region struct {
	bound   orb.Bound
	polygon orb.Polygon // nil for rectangles
}

// NewRegion validates a bounding box given as (minLon, minLat, maxLon, maxLat).
func NewRegion(minLon, minLat, maxLon, maxLat float64) (Region, error) {
	for _, c := range []float64{minLon, minLat, maxLon, maxLat} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return Region{}, &InvalidRegionError{Reason: "coordinates must be finite"}
		}
	}
	if minLon >= maxLon {
		return Region{}, &InvalidRegionError{Reason: fmt.Sprintf("minLon %g must be less than maxLon %g", minLon, maxLon)}
	}
	if minLat >= maxLat {
		return Region{}, &InvalidRegionError{Reason: fmt.Sprintf("minLat %g must be less than maxLat %g", minLat, maxLat)}
	}
	if err := checkRange(minLon, minLat); err != nil {
		return Region{}, err
	}
	if err := checkRange(maxLon, maxLat); err != nil {
		return Region{}, err
	}
	return Region{bound: orb.Bound{Min: orb.Point{minLon, minLat}, Max: orb.Point{maxLon, maxLat}}}, nil
}

// NewRegionFromBBox accepts the [minLon, minLat, maxLon, maxLat] slice form
// used by request payloads.
func NewRegionFromBBox(coords []float64) (Region, error) {
	if len(coords) != 4 {
		return Region{}, &InvalidRegionError{Reason: fmt.Sprintf("bounding box needs 4 coordinates, got %d", len(coords))}
	}
	return NewRegion(coords[0], coords[1], coords[2], coords[3])
}

// NewPolygonRegion validates a simple polygon given as [lon, lat] vertices.
// The ring is closed automatically and must not cross or touch itself.
func NewPolygonRegion(vertices [][2]float64) (Region, error) {
	ring := make(orb.Ring, 0, len(vertices)+1)
	seen := make(map[orb.Point]struct{}, len(vertices))
	for _, v := range vertices {
		if math.IsNaN(v[0]) || math.IsNaN(v[1]) || math.IsInf(v[0], 0) || math.IsInf(v[1], 0) {
			return Region{}, &InvalidRegionError{Reason: "coordinates must be finite"}
		}
		if err := checkRange(v[0], v[1]); err != nil {
			return Region{}, err
		}
		p := orb.Point{v[0], v[1]}
		if len(ring) > 0 && ring[len(ring)-1] == p {
			continue
		}
		ring = append(ring, p)
		seen[p] = struct{}{}
	}
	if len(seen) < 3 {
		return Region{}, &InvalidRegionError{Reason: "polygon needs at least 3 distinct vertices"}
	}
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}

	poly := orb.Polygon{ring}
	if _, area := planar.CentroidArea(poly); area == 0 {
		return Region{}, &InvalidRegionError{Reason: "polygon has zero area"}
	}
	if i, j, ok := selfIntersection(ring); ok {
		return Region{}, &InvalidRegionError{Reason: fmt.Sprintf("polygon edges %d and %d intersect", i, j)}
	}
	return Region{bound: poly.Bound(), polygon: poly}, nil
}

// selfIntersection reports the first pair of non-adjacent edges of the
// closed ring that cross or touch. Request polygons are small, so every
// pair is checked.
func selfIntersection(ring orb.Ring) (int, int, bool) {
	n := len(ring) - 1
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue // share the closing vertex
			}
			if segmentsIntersect(ring[i], ring[i+1], ring[j], ring[j+1]) {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	o1 := orientation(p1, p2, q1)
	o2 := orientation(p1, p2, q2)
	o3 := orientation(q1, q2, p1)
	o4 := orientation(q1, q2, p2)
	if o1 != o2 && o3 != o4 {
		return true
	}
	return (o1 == 0 && onSegment(p1, q1, p2)) ||
		(o2 == 0 && onSegment(p1, q2, p2)) ||
		(o3 == 0 && onSegment(q1, p1, q2)) ||
		(o4 == 0 && onSegment(q1, p2, q2))
}

// orientation is the sign of the turn a→b→c.
func orientation(a, b, c orb.Point) int {
	v := (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// onSegment reports whether q, collinear with a and b, lies between them.
func onSegment(a, q, b orb.Point) bool {
	return q[0] >= math.Min(a[0], b[0]) && q[0] <= math.Max(a[0], b[0]) &&
		q[1] >= math.Min(a[1], b[1]) && q[1] <= math.Max(a[1], b[1])
}

func checkRange(lon, lat float64) error {
	if lon < -180 || lon > 180 {
		return &InvalidRegionError{Reason: fmt.Sprintf("longitude %g outside [-180, 180]", lon)}
	}
	if lat < -90 || lat > 90 {
		return &InvalidRegionError{Reason: fmt.Sprintf("latitude %g outside [-90, 90]", lat)}
	}
	return nil
}

// Bound returns the region's bounding box.
func (r Region) Bound() orb.Bound { return r.bound }

// IsRectangle reports whether the region was built from a bounding box.
func (r Region) IsRectangle() bool { return r.polygon == nil }

// Polygon returns the region outline. Rectangles are returned as a closed ring.
func (r Region) Polygon() orb.Polygon {
	if r.polygon != nil {
		return r.polygon
	}
	return r.bound.ToPolygon()
}

// BBox returns [minLon, minLat, maxLon, maxLat].
func (r Region) BBox() [4]float64 {
	return [4]float64{r.bound.Min.Lon(), r.bound.Min.Lat(), r.bound.Max.Lon(), r.bound.Max.Lat()}
}

// Vertices returns the polygon ring as [lon, lat] pairs, or nil for rectangles.
func (r Region) Vertices() [][2]float64 {
	if r.polygon == nil {
		return nil
	}
	out := make([][2]float64, 0, len(r.polygon[0]))
	for _, p := range r.polygon[0] {
		out = append(out, [2]float64{p.Lon(), p.Lat()})
	}
	return out
}

// Centroid is the bound center for rectangles and the planar area centroid
// for polygons.
func (r Region) Centroid() Geo {
	if r.polygon == nil {
		c := r.bound.Center()
		return Geo{Lat: c.Lat(), Lon: c.Lon()}
	}
	c, _ := planar.CentroidArea(r.polygon)
	return Geo{Lat: c.Lat(), Lon: c.Lon()}
}

// Contains reports whether a lon/lat point lies inside the region.
func (r Region) Contains(lon, lat float64) bool {
	p := orb.Point{lon, lat}
	if r.polygon == nil {
		return r.bound.Contains(p)
	}
	return planar.PolygonContains(r.polygon, p)
}

// AreaSquareMeters is the geodesic area of the region.
func (r Region) AreaSquareMeters() float64 {
	return math.Abs(geo.Area(r.Polygon()))
}

// EstimatedSamples is the number of pixels a reduction at scaleMeters would
// visit inside the region.
func (r Region) EstimatedSamples(scaleMeters float64) float64 {
	if scaleMeters <= 0 {
		return math.Inf(1)
	}
	return r.AreaSquareMeters() / (scaleMeters * scaleMeters)
}

// Package geo implements the ellipsoidal predicates used to prune and filter
// circular range queries against geohash cells.
package geo

import (
	"fmt"
	"math"
)

const (
	LatMin = -90.0
	LatMax = 90.0
	LonMin = -180.0
	LonMax = 180.0

	// two degree values closer than this are treated as equal
	DegreeResolution = 0.000001
)

type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (l Location) Equal(o Location) bool {
	return math.Abs(l.Lat-o.Lat) < DegreeResolution &&
		math.Abs(l.Lon-o.Lon) < DegreeResolution
}

// Validate checks l against the coordinate domain. Store operations never
// call it; outer surfaces do before handing a location in.
func (l Location) Validate() error {
	if !finite(l.Lat) || l.Lat < LatMin || l.Lat > LatMax {
		return fmt.Errorf("latitude %v out of range [%v, %v]", l.Lat, LatMin, LatMax)
	}
	if !finite(l.Lon) || l.Lon < LonMin || l.Lon > LonMax {
		return fmt.Errorf("longitude %v out of range [%v, %v]", l.Lon, LonMin, LonMax)
	}
	return nil
}

func (l Location) String() string {
	return fmt.Sprintf("%.6f,%.6f", l.Lat, l.Lon)
}

// Circle is a center plus a radius in meters.
type Circle struct {
	Center Location
	Radius float64
}

// Rect is an axis aligned box in degrees. North >= South; the antimeridian is
// not modeled, so West <= East as well.
type Rect struct {
	North, South float64
	East, West   float64
}

// World spans the whole coordinate domain.
func World() Rect {
	return Rect{North: LatMax, South: LatMin, East: LonMax, West: LonMin}
}

// PointInCircle reports whether the WGS84 geodesic distance from p to the
// circle center is within the radius.
func PointInCircle(p Location, c Circle) bool {
	d := Distance(p, c.Center)
	if !finite(d) {
		return false
	}
	return d <= c.Radius
}

func PointInRect(p Location, r Rect) bool {
	return p.Lat <= r.North &&
		p.Lat >= r.South &&
		p.Lon >= r.West &&
		p.Lon <= r.East
}

// CrossesLatitude follows the meridian from the circle center towards lat for
// exactly the radius and reports whether the end point passed the parallel.
func CrossesLatitude(c Circle, lat float64) bool {
	heading := 180.0
	if c.Center.Lat < lat {
		heading = 0
	}
	proj := project(c.Center, heading, c.Radius)
	if !finite(proj.Lat) {
		return false
	}
	return (c.Center.Lat-lat)*(proj.Lat-lat) < 0
}

// CrossesLongitude is the east/west counterpart of CrossesLatitude.
func CrossesLongitude(c Circle, lon float64) bool {
	heading := 270.0
	if c.Center.Lon < lon {
		heading = 90
	}
	proj := project(c.Center, heading, c.Radius)
	if !finite(proj.Lon) {
		return false
	}
	return (c.Center.Lon-lon)*(proj.Lon-lon) < 0
}

// CircleRectOverlap reports true when the center lies inside r or the circle
// crosses one of the rect's edge lines. Edges are tested as infinite
// parallels/meridians, so a crossing outside the finite edge still counts.
// Range queries rely on this exact over-approximation when pruning cells.
func CircleRectOverlap(c Circle, r Rect) bool {
	return PointInRect(c.Center, r) ||
		CrossesLatitude(c, r.North) ||
		CrossesLatitude(c, r.South) ||
		CrossesLongitude(c, r.West) ||
		CrossesLongitude(c, r.East)
}

// RectFromGeoHashBits rebuilds a cell from pre-split latitude and longitude
// bit sequences, most significant bit first. A set bit keeps the upper half.
func RectFromGeoHashBits(latBits, lngBits uint64, bitCount int) Rect {
	r := World()
	for i := bitCount - 1; i >= 0; i-- {
		if (latBits>>uint(i))&1 == 1 {
			r.South = (r.North + r.South) / 2
		} else {
			r.North = (r.North + r.South) / 2
		}

		if (lngBits>>uint(i))&1 == 1 {
			r.West = (r.East + r.West) / 2
		} else {
			r.East = (r.East + r.West) / 2
		}
	}
	return r
}

func CircleBitsOverlap(c Circle, latBits, lngBits uint64, bitCount int) bool {
	return CircleRectOverlap(c, RectFromGeoHashBits(latBits, lngBits, bitCount))
}

// CircleGeoHashOverlap decodes hash into its cell and tests it against c.
func CircleGeoHashOverlap(c Circle, hash string) bool {
	return CircleRectOverlap(c, GeoHashRect(hash))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

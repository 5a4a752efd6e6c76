package geo

import (
	"fmt"

	"github.com/mmcloughlin/geohash"
	"github.com/tidwall/geodesic"
)

// MaxPrecision is the longest geohash the codec produces without losing
// resolution in a 64 bit interleave.
const MaxPrecision = 12

// Distance solves the inverse problem on WGS84 and returns meters.
func Distance(a, b Location) float64 {
	var s12 float64
	geodesic.WGS84.Inverse(a.Lat, a.Lon, b.Lat, b.Lon, &s12, nil, nil)
	return s12
}

// project solves the direct problem: start at from, head azimuth degrees
// clockwise from north and travel meters along the geodesic.
func project(from Location, azimuth, meters float64) Location {
	var lat2, lon2 float64
	geodesic.WGS84.Direct(from.Lat, from.Lon, azimuth, meters, &lat2, &lon2, nil)
	return Location{Lat: lat2, Lon: lon2}
}

func EncodeGeoHash(loc Location, precision uint) string {
	return geohash.EncodeWithPrecision(loc.Lat, loc.Lon, precision)
}

// GeoHashRect decodes hash into the bounds of its cell.
func GeoHashRect(hash string) Rect {
	box := geohash.BoundingBox(hash)
	return Rect{
		North: box.MaxLat,
		South: box.MinLat,
		East:  box.MaxLng,
		West:  box.MinLng,
	}
}

func ValidatePrecision(p int) error {
	if p < 1 || p > MaxPrecision {
		return fmt.Errorf("invalid geohash precision %d (must be 1..%d)", p, MaxPrecision)
	}
	return nil
}

package geo

import (
	"math"
	"testing"
)

func almostEq(t *testing.T, got, want, eps float64) {
	t.Helper()
	if math.Abs(got-want) > eps {
		t.Fatalf("got=%g want=%g (eps=%g)", got, want, eps)
	}
}

func TestPointInCircle_Reflexive(t *testing.T) {
	centers := []Location{
		{Lat: 12.23123, Lon: 88.123434},
		{Lat: -33.8688, Lon: 151.2093},
		{Lat: 0, Lon: 0},
		{Lat: 89.9, Lon: -179.9},
	}
	for _, c := range centers {
		for _, r := range []float64{0, 1, 1000, 5e6} {
			if !PointInCircle(c, Circle{Center: c, Radius: r}) {
				t.Fatalf("center %v not inside its own circle r=%g", c, r)
			}
		}
	}
}

func TestPointInCircle_FarPoint(t *testing.T) {
	c := Circle{Center: Location{Lat: 12.23123, Lon: 88.123434}, Radius: 1000}
	if PointInCircle(Location{Lat: -12.23123, Lon: -88.123434}, c) {
		t.Fatal("antipodal-ish point reported inside a 1km circle")
	}
}

func TestPointInCircle_MonotoneInRadius(t *testing.T) {
	center := Location{Lat: 59.3293, Lon: 18.0686}
	p := Location{Lat: 59.3400, Lon: 18.0900}
	d := Distance(center, p)
	if d <= 0 {
		t.Fatalf("distance=%g want >0", d)
	}

	inside := false
	for _, r := range []float64{d / 4, d / 2, d - 1, d + 1, 2 * d, 10 * d} {
		got := PointInCircle(p, Circle{Center: center, Radius: r})
		if inside && !got {
			t.Fatalf("point left the circle when radius grew to %g", r)
		}
		inside = inside || got
	}
	if !inside {
		t.Fatal("point never entered the circle")
	}
}

func TestCircleRectOverlap_WideAndNarrowCircles(t *testing.T) {
	loc := Location{Lat: 12.23231, Lon: 88.1232}
	rect := Rect{North: 20, South: -20, East: 100, West: 40}
	circle := Circle{Center: loc, Radius: 8000 * 1000}

	if !PointInRect(loc, rect) {
		t.Fatal("PointInRect: want true")
	}
	if !CrossesLatitude(circle, 12) {
		t.Fatal("CrossesLatitude(12): want true")
	}
	if !CrossesLongitude(circle, 88) {
		t.Fatal("CrossesLongitude(88): want true")
	}
	if !CircleRectOverlap(circle, rect) {
		t.Fatal("overlap with center inside: want true")
	}

	circle2 := Circle{Center: Location{Lat: 22, Lon: 80}, Radius: 8000 * 1000}
	if !CircleRectOverlap(circle2, rect) {
		t.Fatal("overlap crossing the north edge: want true")
	}

	circle3 := Circle{Center: Location{Lat: 45, Lon: 80}, Radius: 80 * 1000}
	if CircleRectOverlap(circle3, rect) {
		t.Fatal("small circle north of rect: want false")
	}
}

func TestCrossesLatitude_Direction(t *testing.T) {
	c := Circle{Center: Location{Lat: 10, Lon: 10}, Radius: 50_000}
	// ~0.45 degrees of latitude
	if !CrossesLatitude(c, 10.3) || !CrossesLatitude(c, 9.7) {
		t.Fatal("expected both nearby parallels to be crossed")
	}
	if CrossesLatitude(c, 11) || CrossesLatitude(c, 9) {
		t.Fatal("parallels beyond the radius must not be crossed")
	}
	// a line through the center is never crossed (product is zero)
	if CrossesLatitude(c, 10) || CrossesLongitude(c, 10) {
		t.Fatal("line through the center reported as crossed")
	}
}

func TestRectFromGeoHashBits_FifteenBits(t *testing.T) {
	const bits = 15
	var lat uint64 = 0b101000010000101
	var lng uint64 = 0b001010000100101

	r := RectFromGeoHashBits(lat, lng, bits)
	almostEq(t, r.North, 23.236083984375, 1e-12)
	almostEq(t, r.South, 23.2305908203125, 1e-12)
	almostEq(t, r.East, -123.33251953125, 1e-12)
	almostEq(t, r.West, -123.343505859375, 1e-12)

	circle := Circle{Center: Location{Lat: 23.23234, Lon: -123.34324}, Radius: 1000}
	if !CircleBitsOverlap(circle, lat, lng, bits) {
		t.Fatal("circle must overlap its own cell")
	}
}

func TestRectFromGeoHashBits_ZeroBitsIsWorld(t *testing.T) {
	if got := RectFromGeoHashBits(0, 0, 0); got != World() {
		t.Fatalf("got %+v want world", got)
	}
}

func TestGeoHashRect_MatchesBitDecode(t *testing.T) {
	// 6 chars = 30 bits = 15 longitude bits + 15 latitude bits
	loc := Location{Lat: 23.23234, Lon: -123.34324}
	h := EncodeGeoHash(loc, 6)
	got := GeoHashRect(h)
	want := RectFromGeoHashBits(0b101000010000101, 0b001010000100101, 15)

	almostEq(t, got.North, want.North, 1e-9)
	almostEq(t, got.South, want.South, 1e-9)
	almostEq(t, got.East, want.East, 1e-9)
	almostEq(t, got.West, want.West, 1e-9)

	if !CircleGeoHashOverlap(Circle{Center: loc, Radius: 1000}, h) {
		t.Fatalf("circle must overlap cell %q", h)
	}
}

// Edges are infinite lines: a cell on the same latitude band but on the other
// side of the globe is still reported as overlapping. Range queries depend on
// this behavior, so it is pinned here rather than corrected.
func TestCircleRectOverlap_InfiniteLineCompatibility(t *testing.T) {
	c := Circle{Center: Location{Lat: 0, Lon: 0}, Radius: 10_000}
	far := Rect{North: 0.05, South: 0.04, East: 101, West: 100}

	if PointInCircle(Location{Lat: 0.045, Lon: 100.5}, c) {
		t.Fatal("precondition: cell center is far outside the circle")
	}
	if !CircleRectOverlap(c, far) {
		t.Fatal("infinite-line approximation changed: expected overlap via north/south parallels")
	}
}

func TestNonFiniteInputs_AreNoOverlap(t *testing.T) {
	nan := math.NaN()
	c := Circle{Center: Location{Lat: nan, Lon: nan}, Radius: 1000}
	if CircleRectOverlap(c, World()) {
		t.Fatal("NaN center must not overlap")
	}
	if PointInCircle(Location{Lat: 1, Lon: 1}, Circle{Center: Location{Lat: 1, Lon: 1}, Radius: nan}) {
		t.Fatal("NaN radius must not contain anything")
	}
	if CrossesLatitude(Circle{Center: Location{Lat: 0, Lon: 0}, Radius: nan}, 1) {
		t.Fatal("NaN radius must not cross")
	}
}

func TestLocationEqual_Tolerance(t *testing.T) {
	a := Location{Lat: 10, Lon: 20}
	if !a.Equal(Location{Lat: 10 + 5e-7, Lon: 20 - 5e-7}) {
		t.Fatal("sub-resolution difference must compare equal")
	}
	if a.Equal(Location{Lat: 10 + 2e-6, Lon: 20}) {
		t.Fatal("difference above resolution must not compare equal")
	}
}

func TestValidatePrecision(t *testing.T) {
	for _, p := range []int{1, 8, MaxPrecision} {
		if err := ValidatePrecision(p); err != nil {
			t.Fatalf("precision %d: unexpected err %v", p, err)
		}
	}
	for _, p := range []int{0, -1, MaxPrecision + 1} {
		if err := ValidatePrecision(p); err == nil {
			t.Fatalf("precision %d: expected error", p)
		}
	}
}

func TestLocationValidate(t *testing.T) {
	for _, l := range []Location{{0, 0}, {90, 180}, {-90, -180}} {
		if err := l.Validate(); err != nil {
			t.Fatalf("%v: unexpected err %v", l, err)
		}
	}
	for _, l := range []Location{{90.1, 0}, {0, -180.5}, {math.NaN(), 0}, {0, math.Inf(1)}} {
		if err := l.Validate(); err == nil {
			t.Fatalf("%v: expected error", l)
		}
	}
}

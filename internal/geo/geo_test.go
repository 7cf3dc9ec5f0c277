package geo

import (
	"math"
	"testing"

	"courierd/internal/types"
)

func TestDistanceMiles_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      types.Point
		wantMiles float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         types.Point{Lat: 37.5446, Lng: -77.4485},
			b:         types.Point{Lat: 37.5446, Lng: -77.4485},
			wantMiles: 0,
			tolerance: 1e-9,
		},
		{
			name:      "across downtown Richmond (~0.7mi)",
			a:         types.Point{Lat: 37.5446, Lng: -77.4485},
			b:         types.Point{Lat: 37.5407, Lng: -77.4360},
			wantMiles: 0.73,
			tolerance: 0.05,
		},
		{
			name:      "New York to Los Angeles (~2450mi)",
			a:         types.Point{Lat: 40.7128, Lng: -74.0060},
			b:         types.Point{Lat: 34.0522, Lng: -118.2437},
			wantMiles: 2450,
			tolerance: 30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceMiles(tt.a, tt.b)
			if math.Abs(got-tt.wantMiles) > tt.tolerance {
				t.Errorf("DistanceMiles() = %f, want %f (±%f)", got, tt.wantMiles, tt.tolerance)
			}
		})
	}
}

func TestDistanceMiles_Symmetry(t *testing.T) {
	a := types.Point{Lat: 37.5, Lng: -77.4}
	b := types.Point{Lat: 38.1, Lng: -78.2}
	d1 := DistanceMiles(a, b)
	d2 := DistanceMiles(b, a)
	if math.Abs(d1-d2) > 1e-9 {
		t.Errorf("distance is not symmetric: %f vs %f", d1, d2)
	}
}

func TestWithinRadius(t *testing.T) {
	a := types.Point{Lat: 37.5446, Lng: -77.4485}
	b := types.Point{Lat: 37.5407, Lng: -77.4360}
	if !WithinRadius(a, b, 1.0) {
		t.Error("expected points within 1 mile")
	}
	if WithinRadius(a, b, 0.1) {
		t.Error("expected points outside 0.1 mile")
	}
}

func TestETAMinutes_ZeroDistance(t *testing.T) {
	p := types.Point{Lat: 37.5446, Lng: -77.4485}
	if got := ETAMinutes(p, p, 30); got != 0 {
		t.Errorf("ETAMinutes to self = %f, want 0", got)
	}
}

// A stationary courier must get the floor speed, not a divide-by-zero ETA.
func TestETAMinutes_StationaryCourierUsesFloor(t *testing.T) {
	from := types.Point{Lat: 37.5446, Lng: -77.4485}
	to := types.Point{Lat: 37.5407, Lng: -77.4360}

	got := ETAMinutes(from, to, 0)
	want := DistanceMiles(from, to) / FloorSpeedMph * 60
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("ETAMinutes at 0mph = %f, want floor-speed ETA %f", got, want)
	}
	if math.IsInf(got, 0) || math.IsNaN(got) {
		t.Fatalf("ETA blew up: %f", got)
	}
}

func TestETAMinutes_MonotoneInDistanceAndSpeed(t *testing.T) {
	from := types.Point{Lat: 37.5446, Lng: -77.4485}
	near := types.Point{Lat: 37.5500, Lng: -77.4500}
	far := types.Point{Lat: 37.6500, Lng: -77.5500}

	if ETAMinutes(from, near, 20) > ETAMinutes(from, far, 20) {
		t.Error("ETA should not decrease with distance at fixed speed")
	}
	if ETAMinutes(from, far, 40) > ETAMinutes(from, far, 20) {
		t.Error("ETA should not increase with speed at fixed distance")
	}
}

func TestBearingDegrees(t *testing.T) {
	origin := types.Point{Lat: 0, Lng: 0}
	tests := []struct {
		name string
		to   types.Point
		want float64
	}{
		{"due north", types.Point{Lat: 1, Lng: 0}, 0},
		{"due east", types.Point{Lat: 0, Lng: 1}, 90},
		{"due south", types.Point{Lat: -1, Lng: 0}, 180},
		{"due west", types.Point{Lat: 0, Lng: -1}, 270},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BearingDegrees(origin, tt.to)
			if math.Abs(got-tt.want) > 0.01 {
				t.Errorf("BearingDegrees() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestBandsCrossed(t *testing.T) {
	tests := []struct {
		distance float64
		want     int
	}{
		{2.0, 0},
		{0.9, 1},
		{0.4, 2},
		{0.05, 3},
	}
	for _, tt := range tests {
		if got := BandsCrossed(tt.distance); len(got) != tt.want {
			t.Errorf("BandsCrossed(%f) = %v, want %d bands", tt.distance, got, tt.want)
		}
	}
}

// Package geo contains pure geographic computation helpers.
package geo

import (
	"math"

	"courierd/internal/types"
)

const (
	// EarthRadiusMiles is Earth's radius in miles for the haversine formula.
	EarthRadiusMiles = 3958.7613

	// FloorSpeedMph caps how slow a moving courier is assumed to travel so a
	// stationary GPS fix does not blow the ETA up to infinity.
	FloorSpeedMph = 5.0

	// DefaultCruiseMph is assumed when a courier reports no speed at all.
	DefaultCruiseMph = 22.0

	// MphPerMps converts metres-per-second samples to miles per hour.
	MphPerMps = 2.23694
)

// ProximityBands are the distance thresholds, in miles, at which a delivery
// emits a one-time "courier is close" alert. Ordered outermost first.
var ProximityBands = []float64{1.0, 0.5, 0.1}

// ValidPoint reports whether the point's coordinates are in range.
func ValidPoint(p types.Point) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// DistanceMiles returns the great-circle distance between two points.
func DistanceMiles(a, b types.Point) float64 {
	const degToRad = math.Pi / 180
	dLat := (b.Lat - a.Lat) * degToRad
	dLng := (b.Lng - a.Lng) * degToRad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*degToRad)*math.Cos(b.Lat*degToRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMiles * c
}

// WithinRadius reports whether b lies within radiusMiles of a.
func WithinRadius(a, b types.Point, radiusMiles float64) bool {
	return DistanceMiles(a, b) <= radiusMiles
}

// ETAMinutes estimates travel time from one point to another at the given
// speed. Speeds below the floor (including a reported zero) are clamped to
// FloorSpeedMph; callers with no speed sample at all should pass
// DefaultCruiseMph instead.
func ETAMinutes(from, to types.Point, speedMph float64) float64 {
	if speedMph < FloorSpeedMph {
		speedMph = FloorSpeedMph
	}
	return DistanceMiles(from, to) / speedMph * 60
}

// BearingDegrees returns the initial compass bearing from a to b in the
// range [0, 360).
func BearingDegrees(a, b types.Point) float64 {
	const degToRad = math.Pi / 180
	lat1 := a.Lat * degToRad
	lat2 := b.Lat * degToRad
	dLng := (b.Lng - a.Lng) * degToRad
	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	deg := math.Atan2(y, x) / degToRad
	return math.Mod(deg+360, 360)
}

// BandsCrossed returns the proximity bands the given distance has crossed,
// outermost first. A band counts as crossed once distance is at or inside it.
func BandsCrossed(distanceMiles float64) []float64 {
	var crossed []float64
	for _, band := range ProximityBands {
		if distanceMiles <= band {
			crossed = append(crossed, band)
		}
	}
	return crossed
}

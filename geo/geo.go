// Package geo holds the spherical geometry used by verdicts, hints and zone checks.
package geo

import "math"

const (
	// EarthRadiusMeters is the mean Earth radius used by Distance.
	EarthRadiusMeters = 6371000.0
	// MinRadiusMeters is the smallest uncertainty radius a photo is given.
	MinRadiusMeters = 5.0
)

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ValidPoint reports whether p is a finite coordinate inside the lat/lng ranges.
func ValidPoint(p Point) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Distance returns the great-circle distance between a and b in meters (haversine).
func Distance(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// EffectiveRadius turns a reported GPS accuracy into an overlap radius.
// Missing, negative or NaN accuracy and anything under MinRadiusMeters become MinRadiusMeters.
func EffectiveRadius(accuracy *float64) float64 {
	if accuracy == nil {
		return MinRadiusMeters
	}
	a := *accuracy
	if math.IsNaN(a) || math.IsInf(a, 0) || a < MinRadiusMeters {
		return MinRadiusMeters
	}
	return a
}

// CirclesOverlap reports whether the two circles touch or intersect.
// The boundary distance == radiusA+radiusB counts as overlapping.
func CirclesOverlap(centerA Point, radiusA float64, centerB Point, radiusB float64) bool {
	return Distance(centerA, centerB) <= radiusA+radiusB
}

// IsEntirelyOutsideZone reports whether the whole uncertainty circle around p lies outside the zone.
func IsEntirelyOutsideZone(p Point, accuracy float64, zoneCenter Point, zoneRadius float64) bool {
	if math.IsNaN(accuracy) || accuracy < 0 {
		accuracy = 0
	}
	return Distance(p, zoneCenter) > zoneRadius+accuracy
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

package domain

import "math"

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64
	Lng float64
}

// ValidCoordinate reports whether lat/lng fall within the valid ranges
// (-90..90, -180..180).
func ValidCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// DistanceKm returns the great-circle distance between two coordinates in
// kilometers using the haversine formula. Symmetric; identical points
// yield 0.
func DistanceKm(a, b Coordinate) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

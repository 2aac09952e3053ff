// Package geo provides great-circle distance calculations and lat/long
// grid bucketing for airport sets.
package geo

import "math"

const (
	// EarthRadiusMiles is the mean radius of Earth in miles.
	EarthRadiusMiles = 3958.8
	// EarthRadiusKm is the mean radius of Earth in kilometers.
	EarthRadiusKm = 6371.0
)

// Haversine calculates the great-circle distance between two points
// on Earth given their latitude and longitude in decimal degrees.
// Returns the distance in miles.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	return HaversineWithRadius(lat1, lon1, lat2, lon2, EarthRadiusMiles)
}

// HaversineKm calculates the great-circle distance in kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	return HaversineWithRadius(lat1, lon1, lat2, lon2, EarthRadiusKm)
}

// HaversineWithRadius calculates the great-circle distance using a custom radius.
func HaversineWithRadius(lat1, lon1, lat2, lon2, radius float64) float64 {
	lat1Rad := degreesToRadians(lat1)
	lat2Rad := degreesToRadians(lat2)
	deltaLat := degreesToRadians(lat2 - lat1)
	deltaLon := degreesToRadians(lon2 - lon1)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	// Rounding can push a slightly above 1 for antipodal points.
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return radius * c
}

// EastboundMiles returns the length of a due-east displacement of
// lonDelta degrees along the given latitude, measured as a great circle
// from (lat, 0) to (lat, lonDelta). The result is always non-negative.
func EastboundMiles(lat, lonDelta float64) float64 {
	return Haversine(lat, 0, lat, lonDelta)
}

func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// Coordinates represents a geographic point.
type Coordinates struct {
	Lat float64
	Lon float64
}

// DistanceBetween calculates the distance in miles between two coordinate points.
func DistanceBetween(from, to Coordinates) float64 {
	return Haversine(from.Lat, from.Lon, to.Lat, to.Lon)
}

// IsValid returns true if the coordinates are within valid ranges.
// Latitude must be between -90 and 90, longitude between -180 and 180.
func (c Coordinates) IsValid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// IsZero returns true if both coordinates are zero (likely unset).
func (c Coordinates) IsZero() bool {
	return c.Lat == 0 && c.Lon == 0
}

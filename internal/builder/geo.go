package builder

import "math"

// EarthRadius is the mean Earth radius in meters.
const EarthRadius = 6371000.0

// Haversine returns the great-circle distance in meters between two
// points given in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * EarthRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// proximity maps a distance to a weight in [0,1]: 1 at zero distance, 0 at
// or beyond maxDistance.
func proximity(distance, maxDistance float64) float64 {
	if maxDistance <= 0 {
		return 0
	}
	return 1 - math.Min(distance, maxDistance)/maxDistance
}

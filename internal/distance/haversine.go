package distance

import (
	"math"

	"turf-assistant/internal/models"
)

// EarthRadiusMeters is the mean radius of Earth in meters
const EarthRadiusMeters = 6_371_000.0

// Haversine returns the great-circle distance between two coordinates in meters
func Haversine(a, b models.Coordinate) float64 {
	phi1 := degToRad(a.Lat)
	phi2 := degToRad(b.Lat)
	dPhi := degToRad(b.Lat - a.Lat)
	dLambda := degToRad(b.Lon - a.Lon)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	h := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda

	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}

package geo

import (
	"fmt"
	"math"

	"github.com/twpayne/go-polyline"

	"meetpoint/internal/models"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle distances
const EarthRadiusMeters = 6371000.0

// DefaultGridSteps are the degree offsets used on each axis of the candidate grid
var DefaultGridSteps = []float64{-0.005, -0.003, 0, 0.003, 0.005}

// DistanceMeters calculates great-circle distance between two points using the Haversine formula
func DistanceMeters(a, b models.Coordinates) float64 {
	if a.Lat == b.Lat && a.Lng == b.Lng {
		return 0
	}

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// GridOffsets returns center shifted by every (dLat, dLng) pair of steps.
// Latitude is the outer loop, longitude the inner one, both in steps order.
// The (0, 0) cell is omitted unless includeCenter is set.
func GridOffsets(center models.Coordinates, steps []float64, includeCenter bool) []models.Coordinates {
	points := make([]models.Coordinates, 0, len(steps)*len(steps))
	for _, dLat := range steps {
		for _, dLng := range steps {
			if dLat == 0 && dLng == 0 && !includeCenter {
				continue
			}
			points = append(points, models.Coordinates{
				Lat: center.Lat + dLat,
				Lng: center.Lng + dLng,
			})
		}
	}
	return points
}

// Centroid returns the arithmetic mean of points. It reports false for an empty slice.
func Centroid(points []models.Coordinates) (models.Coordinates, bool) {
	if len(points) == 0 {
		return models.Coordinates{}, false
	}
	var sumLat, sumLng float64
	for _, p := range points {
		sumLat += p.Lat
		sumLng += p.Lng
	}
	n := float64(len(points))
	return models.Coordinates{Lat: sumLat / n, Lng: sumLng / n}, true
}

// DecodePolyline decodes a Google encoded polyline into coordinates
func DecodePolyline(encoded string) ([]models.Coordinates, error) {
	if encoded == "" {
		return nil, nil
	}
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode polyline: %w", err)
	}
	points := make([]models.Coordinates, len(coords))
	for i, c := range coords {
		points[i] = models.Coordinates{Lat: c[0], Lng: c[1]}
	}
	return points, nil
}

// PathLengthMeters sums the segment lengths of path[from:to+1]
func PathLengthMeters(path []models.Coordinates, from, to int) float64 {
	if from < 0 {
		from = 0
	}
	if to > len(path)-1 {
		to = len(path) - 1
	}
	var total float64
	for i := from; i < to; i++ {
		total += DistanceMeters(path[i], path[i+1])
	}
	return total
}

package meetpoint

import (
	"math"

	"meetpoint/internal/geo"
	"meetpoint/internal/models"
)

const (
	// commercialRadiusMeters is where an area's contribution reaches zero
	commercialRadiusMeters = 5000
	// commercialFloor assumes every location has some amenities
	commercialFloor = 20.0
)

// DefaultCommercialAreas are the major Seoul shopping districts and their weights
var DefaultCommercialAreas = []models.CommercialArea{
	{Name: "Gangnam Station", Coordinates: models.Coordinates{Lat: 37.4979, Lng: 127.0276}, Weight: 100},
	{Name: "Hongik University", Coordinates: models.Coordinates{Lat: 37.5563, Lng: 126.9236}, Weight: 95},
	{Name: "Myeongdong", Coordinates: models.Coordinates{Lat: 37.5636, Lng: 126.9834}, Weight: 90},
	{Name: "Sinchon", Coordinates: models.Coordinates{Lat: 37.5559, Lng: 126.9364}, Weight: 85},
	{Name: "Konkuk University", Coordinates: models.Coordinates{Lat: 37.5403, Lng: 127.0695}, Weight: 80},
	{Name: "Itaewon", Coordinates: models.Coordinates{Lat: 37.5339, Lng: 126.9947}, Weight: 75},
	{Name: "Jongno 3-ga", Coordinates: models.Coordinates{Lat: 37.5703, Lng: 126.9910}, Weight: 70},
	{Name: "Sillim", Coordinates: models.Coordinates{Lat: 37.4842, Lng: 126.9292}, Weight: 65},
	{Name: "Jamsil", Coordinates: models.Coordinates{Lat: 37.5133, Lng: 127.1028}, Weight: 75},
	{Name: "Guro Digital Complex", Coordinates: models.Coordinates{Lat: 37.4851, Lng: 126.8977}, Weight: 60},
}

// DefaultRegionBonuses are checked in order; the first box containing the point wins
var DefaultRegionBonuses = []models.RegionBonus{
	{Name: "central", Bounds: models.Bounds{MinLat: 37.52, MaxLat: 37.60, MinLng: 126.95, MaxLng: 127.05}, Bonus: 10},
	{Name: "gangnam", Bounds: models.Bounds{MinLat: 37.47, MaxLat: 37.52, MinLng: 127.02, MaxLng: 127.13}, Bonus: 15},
}

// CommercialScore rates how attractive a point is as a place to meet.
// The result is not capped at 100; a region bonus may push it above.
func CommercialScore(point models.Coordinates, areas []models.CommercialArea, bonuses []models.RegionBonus) float64 {
	best := 0.0
	for _, area := range areas {
		d := geo.DistanceMeters(point, area.Coordinates)
		score := area.Weight * math.Max(0, 1-d/commercialRadiusMeters)
		if score > best {
			best = score
		}
	}
	return math.Max(best, commercialFloor) + RegionBonus(point, bonuses)
}

// RegionBonus returns the bonus of the first region containing point
func RegionBonus(point models.Coordinates, bonuses []models.RegionBonus) float64 {
	for _, r := range bonuses {
		if r.Bounds.Contains(point) {
			return r.Bonus
		}
	}
	return 0
}

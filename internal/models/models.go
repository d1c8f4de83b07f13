package models

import (
	"fmt"
	"math"
	"strings"
)

// Coordinates represents a geographic point
type Coordinates struct {
	Lat float64 `json:"latitude" koanf:"latitude"`
	Lng float64 `json:"longitude" koanf:"longitude"`
}

// Validate reports an InvalidInput error when the point is outside the WGS84 range
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return NewError(KindInvalidInput, "coordinates.validate",
			fmt.Sprintf("coordinate out of range: (%.6f, %.6f)", c.Lat, c.Lng), nil)
	}
	return nil
}

// String formats the point with six decimals, as used in synthetic addresses
func (c Coordinates) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.Lat, c.Lng)
}

// RoundCoordinate rounds to 5 decimal places (~1m), the precision used for cache keys
func RoundCoordinate(v float64) float64 {
	return math.Round(v*100000) / 100000
}

// NamedLocation is a point with an optional resolved address
type NamedLocation struct {
	Coordinates
	Address   string `json:"address"`
	PlaceName string `json:"placeName,omitempty"`
}

// TransportMode is the canonical set of supported travel modes
type TransportMode string

const (
	ModeCar             TransportMode = "CAR"
	ModePublicTransport TransportMode = "PUBLIC_TRANSPORT"
	ModeWalk            TransportMode = "WALK"
)

// TransportModes lists every supported mode in a stable order
var TransportModes = []TransportMode{ModeCar, ModePublicTransport, ModeWalk}

// ParseTransportMode accepts the canonical names case-insensitively.
// SUBWAY and BUS are deliberately not accepted.
func ParseTransportMode(s string) (TransportMode, error) {
	mode := TransportMode(strings.ToUpper(strings.TrimSpace(s)))
	for _, m := range TransportModes {
		if m == mode {
			return m, nil
		}
	}
	return "", NewError(KindInvalidInput, "mode.parse", fmt.Sprintf("unsupported transportation type: %q", s), nil)
}

// TrafficState summarises congestion along a route
type TrafficState string

const (
	TrafficSmooth        TrafficState = "SMOOTH"
	TrafficSlow          TrafficState = "SLOW"
	TrafficDelayed       TrafficState = "DELAYED"
	TrafficCongested     TrafficState = "CONGESTED"
	TrafficUnknown       TrafficState = "UNKNOWN"
	TrafficNotApplicable TrafficState = "NOT_APPLICABLE"
)

// ClassifyCongestion maps the fraction of congested route segments to a traffic state
func ClassifyCongestion(ratio float64) TrafficState {
	switch {
	case ratio >= 0.6:
		return TrafficCongested
	case ratio >= 0.4:
		return TrafficDelayed
	case ratio >= 0.2:
		return TrafficSlow
	default:
		return TrafficSmooth
	}
}

// Route estimate sources
const (
	SourceEstimate = "estimate"
	SourceOSRM     = "osrm"
	SourceGoogle   = "google"
)

// RouteEstimate is the travel cost from one origin to one destination
type RouteEstimate struct {
	DurationMinutes float64      `json:"durationMinutes"`
	DistanceMeters  float64      `json:"distanceMeters"`
	Fare            int          `json:"fare"`
	TollFare        int          `json:"tollFare"`
	TrafficState    TrafficState `json:"trafficState"`
	IsRealTime      bool         `json:"isRealTime"`
	Source          string       `json:"source"`
}

// CandidateLocation is a scored meeting point candidate
type CandidateLocation struct {
	NamedLocation
	AverageTravelTimeMinutes float64         `json:"averageTravelTimeMinutes"`
	CommercialScore          float64         `json:"commercialScore"`
	OverallScore             float64         `json:"overallScore"`
	Routes                   []RouteEstimate `json:"routes,omitempty"`
	// Index is the generation order; the centroid is always 0
	Index int `json:"-"`
}

// CommercialArea is a weighted reference point used for commercial scoring
type CommercialArea struct {
	Name        string      `json:"name" koanf:"name"`
	Coordinates Coordinates `json:"coordinates" koanf:"coordinates"`
	Weight      float64     `json:"weight" koanf:"weight"`
}

// Bounds is an axis-aligned lat/lng box with exclusive edges
type Bounds struct {
	MinLat float64 `json:"minLat" koanf:"min_lat"`
	MaxLat float64 `json:"maxLat" koanf:"max_lat"`
	MinLng float64 `json:"minLng" koanf:"min_lng"`
	MaxLng float64 `json:"maxLng" koanf:"max_lng"`
}

// Contains reports whether c lies strictly inside the box
func (b Bounds) Contains(c Coordinates) bool {
	return c.Lat > b.MinLat && c.Lat < b.MaxLat && c.Lng > b.MinLng && c.Lng < b.MaxLng
}

// RegionBonus is a flat score bonus for points inside a district
type RegionBonus struct {
	Name   string  `json:"name" koanf:"name"`
	Bounds Bounds  `json:"bounds" koanf:"bounds"`
	Bonus  float64 `json:"bonus" koanf:"bonus"`
}

// OriginRequest is one participant's start location as supplied by a caller.
// Coordinates, when both present, bypass geocoding.
type OriginRequest struct {
	Address   string   `json:"address,omitempty"`
	PlaceName string   `json:"placeName,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude were supplied
func (o OriginRequest) HasCoordinates() bool {
	return o.Latitude != nil && o.Longitude != nil
}

// MeetingPointRequest is the transport-agnostic request surface
type MeetingPointRequest struct {
	Origins            []OriginRequest `json:"origins"`
	TransportationType string          `json:"transportationType"`
}

// ResultMeta carries calculation metadata
type ResultMeta struct {
	RequestID        string        `json:"requestId"`
	ParticipantCount int           `json:"participantCount"`
	Mode             TransportMode `json:"transportationType"`
	ElapsedMs        int64         `json:"elapsedMs"`
	Algorithm        string        `json:"algorithm"`
	FairnessScore    float64       `json:"fairnessScore"`
	CandidateCount   int           `json:"candidateCount"`
	RealTimeRoutes   int           `json:"realTimeRoutes"`
	EstimatedRoutes  int           `json:"estimatedRoutes"`
}

// MeetingPointResult is the full output of a meeting point calculation
type MeetingPointResult struct {
	Optimal    CandidateLocation   `json:"optimal"`
	Candidates []CandidateLocation `json:"candidates"`
	Origins    []Coordinates       `json:"origins"`
	Meta       ResultMeta          `json:"meta"`
}

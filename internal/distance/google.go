package distance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"meetpoint/internal/geo"
	"meetpoint/internal/models"
	"meetpoint/internal/resilience"
)

// DefaultGoogleRoutesURL is the Routes API v2 endpoint host
const DefaultGoogleRoutesURL = "https://routes.googleapis.com"

const googleFieldMask = "routes.duration,routes.distanceMeters,routes.polyline.encodedPolyline," +
	"routes.travelAdvisory.speedReadingIntervals,routes.travelAdvisory.tollInfo,routes.travelAdvisory.transitFare"

// HTTPDoer is the subset of *http.Client used by the Google client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// GoogleRoutesEstimator computes traffic-aware routes with the Google Routes API
type GoogleRoutesEstimator struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     *zap.Logger
}

type googleRoutesResponse struct {
	Routes []googleRoute `json:"routes"`
}

type googleRoute struct {
	Duration       string                `json:"duration"`
	DistanceMeters float64               `json:"distanceMeters"`
	Polyline       googlePolyline        `json:"polyline"`
	TravelAdvisory *googleTravelAdvisory `json:"travelAdvisory,omitempty"`
}

type googlePolyline struct {
	EncodedPolyline string `json:"encodedPolyline"`
}

type googleTravelAdvisory struct {
	SpeedReadingIntervals []googleSpeedInterval `json:"speedReadingIntervals"`
	TollInfo              *googleTollInfo       `json:"tollInfo,omitempty"`
	TransitFare           *googleMoney          `json:"transitFare,omitempty"`
}

type googleSpeedInterval struct {
	StartPolylinePointIndex int    `json:"startPolylinePointIndex"`
	EndPolylinePointIndex   int    `json:"endPolylinePointIndex"`
	Speed                   string `json:"speed"` // NORMAL, SLOW, TRAFFIC_JAM
}

type googleTollInfo struct {
	EstimatedPrice []googleMoney `json:"estimatedPrice"`
}

type googleMoney struct {
	CurrencyCode string `json:"currencyCode"`
	Units        string `json:"units"`
	Nanos        int64  `json:"nanos"`
}

// NewGoogleRoutesEstimator creates a client using a default HTTP client
func NewGoogleRoutesEstimator(apiKey string, logger *zap.Logger) *GoogleRoutesEstimator {
	return NewGoogleRoutesEstimatorWithDoer(apiKey, DefaultGoogleRoutesURL, &http.Client{Timeout: 30 * time.Second}, logger)
}

// NewGoogleRoutesEstimatorWithDoer creates a client with a custom transport
func NewGoogleRoutesEstimatorWithDoer(apiKey, baseURL string, doer HTTPDoer, logger *zap.Logger) *GoogleRoutesEstimator {
	if baseURL == "" {
		baseURL = DefaultGoogleRoutesURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleRoutesEstimator{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: doer,
		logger:     logger.Named("google_routes"),
	}
}

func googleTravelMode(mode models.TransportMode) (string, bool) {
	switch mode {
	case models.ModeCar:
		return "DRIVE", true
	case models.ModeWalk:
		return "WALK", true
	case models.ModePublicTransport:
		return "TRANSIT", true
	default:
		return "", false
	}
}

func waypoint(c models.Coordinates) map[string]any {
	return map[string]any{
		"location": map[string]any{
			"latLng": map[string]any{
				"latitude":  c.Lat,
				"longitude": c.Lng,
			},
		},
	}
}

func (c *GoogleRoutesEstimator) Estimate(ctx context.Context, origin, dest models.Coordinates, mode models.TransportMode) (*models.RouteEstimate, error) {
	travelMode, ok := googleTravelMode(mode)
	if !ok {
		return nil, fmt.Errorf("google routes %s: %w", mode, ErrUnsupportedMode)
	}

	requestBody := map[string]any{
		"origin":      waypoint(origin),
		"destination": waypoint(dest),
		"travelMode":  travelMode,
	}
	if mode == models.ModeCar {
		requestBody["routingPreference"] = "TRAFFIC_AWARE"
		requestBody["extraComputations"] = []string{"TRAFFIC_ON_POLYLINE", "TOLLS"}
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/directions/v2:computeRoutes", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", googleFieldMask)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ErrDistanceCalculationFailed{Origin: origin, Dest: dest, Reason: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		statusErr := &resilience.HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
		c.logger.Warn("routes API error", zap.Int("status", resp.StatusCode), zap.String("mode", string(mode)))
		return nil, &ErrDistanceCalculationFailed{Origin: origin, Dest: dest, Reason: statusErr.Error(), Err: statusErr}
	}

	var response googleRoutesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, &ErrDistanceCalculationFailed{Origin: origin, Dest: dest, Reason: "failed to decode response", Err: err}
	}
	if len(response.Routes) == 0 {
		return nil, &ErrDistanceCalculationFailed{Origin: origin, Dest: dest, Reason: "no routes found in response"}
	}

	return c.toEstimate(response.Routes[0], mode)
}

func (c *GoogleRoutesEstimator) toEstimate(route googleRoute, mode models.TransportMode) (*models.RouteEstimate, error) {
	seconds, err := parseDuration(route.Duration)
	if err != nil {
		return nil, fmt.Errorf("failed to parse duration: %w", err)
	}

	est := &models.RouteEstimate{
		DurationMinutes: seconds / 60,
		DistanceMeters:  route.DistanceMeters,
		Fare:            EstimateFare(mode, route.DistanceMeters),
		TrafficState:    trafficForMode(mode, models.TrafficUnknown),
		IsRealTime:      true,
		Source:          models.SourceGoogle,
	}

	if adv := route.TravelAdvisory; adv != nil {
		if mode == models.ModeCar {
			est.TrafficState = c.trafficState(route.Polyline.EncodedPolyline, adv.SpeedReadingIntervals)
		}
		if adv.TollInfo != nil {
			for _, price := range adv.TollInfo.EstimatedPrice {
				est.TollFare += moneyUnits(price)
			}
		}
		if adv.TransitFare != nil && mode == models.ModePublicTransport {
			if fare := moneyUnits(*adv.TransitFare); fare > 0 {
				est.Fare = fare
			}
		}
	}

	return est, nil
}

// trafficState weighs SLOW and TRAFFIC_JAM intervals by their length along the route
func (c *GoogleRoutesEstimator) trafficState(encoded string, intervals []googleSpeedInterval) models.TrafficState {
	if len(intervals) == 0 {
		return models.TrafficUnknown
	}

	path, err := geo.DecodePolyline(encoded)
	if err != nil || len(path) < 2 {
		if err != nil {
			c.logger.Debug("polyline decode failed", zap.Error(err))
		}
		return congestionByCount(intervals)
	}

	var total, congested float64
	for _, iv := range intervals {
		length := geo.PathLengthMeters(path, iv.StartPolylinePointIndex, iv.EndPolylinePointIndex)
		total += length
		if isCongested(iv.Speed) {
			congested += length
		}
	}
	if total == 0 {
		return congestionByCount(intervals)
	}
	return models.ClassifyCongestion(congested / total)
}

func congestionByCount(intervals []googleSpeedInterval) models.TrafficState {
	congested := 0
	for _, iv := range intervals {
		if isCongested(iv.Speed) {
			congested++
		}
	}
	return models.ClassifyCongestion(float64(congested) / float64(len(intervals)))
}

func isCongested(speed string) bool {
	return speed == "SLOW" || speed == "TRAFFIC_JAM"
}

func moneyUnits(m googleMoney) int {
	units, err := strconv.ParseInt(m.Units, 10, 64)
	if err != nil {
		return 0
	}
	return int(units)
}

// parseDuration parses the protobuf JSON duration form, e.g. "450s" or "12.5s"
func parseDuration(durationStr string) (float64, error) {
	if durationStr == "" {
		return 0, fmt.Errorf("empty duration string")
	}
	return strconv.ParseFloat(strings.TrimSuffix(durationStr, "s"), 64)
}

package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"meetpoint/internal/models"
	"meetpoint/internal/resilience"
)

// DefaultOSRMURL is the public OSRM demo server
const DefaultOSRMURL = "https://router.project-osrm.org"

// OSRMEstimator queries the OSRM route service for driving and walking routes.
// OSRM has no transit profile, so PUBLIC_TRANSPORT yields ErrUnsupportedMode.
type OSRMEstimator struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

type osrmRouteResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message,omitempty"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

// NewOSRMEstimator creates an OSRM client; an empty baseURL uses the public server
func NewOSRMEstimator(baseURL string, logger *zap.Logger) *OSRMEstimator {
	if baseURL == "" {
		baseURL = DefaultOSRMURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OSRMEstimator{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.Named("osrm"),
	}
}

func osrmProfile(mode models.TransportMode) (string, bool) {
	switch mode {
	case models.ModeCar:
		return "driving", true
	case models.ModeWalk:
		return "foot", true
	default:
		return "", false
	}
}

func (c *OSRMEstimator) Estimate(ctx context.Context, origin, dest models.Coordinates, mode models.TransportMode) (*models.RouteEstimate, error) {
	profile, ok := osrmProfile(mode)
	if !ok {
		return nil, fmt.Errorf("osrm %s: %w", mode, ErrUnsupportedMode)
	}

	if samePoint(origin, dest) {
		return &models.RouteEstimate{
			TrafficState: trafficForMode(mode, models.TrafficUnknown),
			IsRealTime:   true,
			Source:       models.SourceOSRM,
		}, nil
	}

	queryURL := fmt.Sprintf("%s/route/v1/%s/%.6f,%.6f;%.6f,%.6f?overview=false",
		c.baseURL, profile, origin.Lng, origin.Lat, dest.Lng, dest.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &ErrDistanceCalculationFailed{Origin: origin, Dest: dest, Reason: err.Error(), Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("OSRM API request failed",
			zap.String("origin", origin.String()), zap.String("dest", dest.String()), zap.Error(err))
		return nil, &ErrDistanceCalculationFailed{Origin: origin, Dest: dest, Reason: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		statusErr := &resilience.HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
		c.logger.Warn("OSRM API error", zap.Int("status", resp.StatusCode))
		return nil, &ErrDistanceCalculationFailed{Origin: origin, Dest: dest, Reason: statusErr.Error(), Err: statusErr}
	}

	var osrmResp osrmRouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&osrmResp); err != nil {
		return nil, &ErrDistanceCalculationFailed{Origin: origin, Dest: dest, Reason: "invalid response body", Err: err}
	}

	if osrmResp.Code != "Ok" || len(osrmResp.Routes) == 0 {
		c.logger.Warn("OSRM returned error code", zap.String("code", osrmResp.Code), zap.String("message", osrmResp.Message))
		return nil, &ErrDistanceCalculationFailed{
			Origin: origin,
			Dest:   dest,
			Reason: fmt.Sprintf("OSRM error: %s", osrmResp.Code),
		}
	}

	route := osrmResp.Routes[0]
	c.logger.Debug("route calculated",
		zap.String("origin", origin.String()),
		zap.String("dest", dest.String()),
		zap.String("profile", profile),
		zap.Float64("distance", route.Distance))

	return &models.RouteEstimate{
		DurationMinutes: route.Duration / 60,
		DistanceMeters:  route.Distance,
		Fare:            EstimateFare(mode, route.Distance),
		TrafficState:    trafficForMode(mode, models.TrafficUnknown),
		IsRealTime:      true,
		Source:          models.SourceOSRM,
	}, nil
}

// trafficForMode returns NOT_APPLICABLE for walking and state otherwise
func trafficForMode(mode models.TransportMode, state models.TrafficState) models.TrafficState {
	if mode == models.ModeWalk {
		return models.TrafficNotApplicable
	}
	return state
}

package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"meetpoint/internal/models"
	"meetpoint/internal/resilience"
)

const (
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"
	defaultUserAgent    = "MeetPoint/1.0"
	forwardResultLimit  = 5
)

// NominatimConfig configures the OpenStreetMap Nominatim client
type NominatimConfig struct {
	BaseURL   string
	UserAgent string
	Language  string
	// RateLimit is the minimum interval between requests
	RateLimit time.Duration
}

// NominatimGeocoder talks to a Nominatim instance with client-side rate limiting
type NominatimGeocoder struct {
	baseURL     string
	userAgent   string
	language    string
	httpClient  *http.Client
	rateLimiter *time.Ticker
	logger      *zap.Logger
}

type nominatimResponse struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error,omitempty"`
}

// NewNominatimGeocoder creates a new Nominatim geocoder with rate limiting
func NewNominatimGeocoder(cfg NominatimConfig, logger *zap.Logger) *NominatimGeocoder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultNominatimURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NominatimGeocoder{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		language:  cfg.Language,
		// per-call deadlines come from the guard
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		rateLimiter: time.NewTicker(cfg.RateLimit),
		logger:      logger.Named("nominatim"),
	}
}

// Close stops the rate limiter
func (g *NominatimGeocoder) Close() {
	g.rateLimiter.Stop()
}

func (g *NominatimGeocoder) wait(ctx context.Context) error {
	select {
	case <-g.rateLimiter.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrRateLimitWait, ctx.Err())
	}
}

func (g *NominatimGeocoder) get(ctx context.Context, query, queryURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return &ErrGeocodingFailed{Query: query, Reason: err.Error(), Err: err}
	}
	req.Header.Set("User-Agent", g.userAgent)
	if g.language != "" {
		req.Header.Set("Accept-Language", g.language)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Warn("geocoding request failed", zap.String("query", query), zap.Error(err))
		return &ErrGeocodingFailed{Query: query, Reason: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		statusErr := &resilience.HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
		g.logger.Warn("geocoding API error",
			zap.String("query", query),
			zap.Int("status", resp.StatusCode))
		return &ErrGeocodingFailed{Query: query, Reason: statusErr.Error(), Err: statusErr}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ErrGeocodingFailed{Query: query, Reason: "invalid response body", Err: err}
	}
	return nil
}

func (g *NominatimGeocoder) Forward(ctx context.Context, address string) ([]ForwardResult, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	queryURL := fmt.Sprintf("%s/search?q=%s&format=json&limit=%d", g.baseURL, url.QueryEscape(address), forwardResultLimit)
	g.logger.Debug("geocoding request", zap.String("address", address))

	var results []nominatimResponse
	if err := g.get(ctx, address, queryURL, &results); err != nil {
		return nil, err
	}

	forward := make([]ForwardResult, 0, len(results))
	for _, r := range results {
		lat, errLat := strconv.ParseFloat(r.Lat, 64)
		lng, errLng := strconv.ParseFloat(r.Lon, 64)
		if errLat != nil || errLng != nil {
			g.logger.Warn("invalid coordinate in geocoding response",
				zap.String("address", address), zap.String("lat", r.Lat), zap.String("lng", r.Lon))
			continue
		}
		forward = append(forward, ForwardResult{
			Coords:      models.Coordinates{Lat: lat, Lng: lng},
			DisplayName: r.DisplayName,
		})
	}

	if len(forward) == 0 {
		return nil, notFound("geocoding.forward", address)
	}

	g.logger.Debug("geocoding response",
		zap.String("address", address),
		zap.Float64("lat", forward[0].Coords.Lat),
		zap.Float64("lng", forward[0].Coords.Lng),
		zap.Int("results", len(forward)))
	return forward, nil
}

func (g *NominatimGeocoder) Reverse(ctx context.Context, point models.Coordinates) (*models.NamedLocation, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	query := point.String()
	queryURL := fmt.Sprintf("%s/reverse?lat=%.6f&lon=%.6f&format=json&zoom=18", g.baseURL, point.Lat, point.Lng)

	var result nominatimResponse
	if err := g.get(ctx, query, queryURL, &result); err != nil {
		return nil, err
	}

	if result.Error != "" || result.DisplayName == "" {
		return nil, notFound("geocoding.reverse", query)
	}

	return &models.NamedLocation{
		Coordinates: point,
		Address:     result.DisplayName,
		PlaceName:   result.Name,
	}, nil
}

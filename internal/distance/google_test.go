package distance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"
	"go.uber.org/zap/zaptest"

	"meetpoint/internal/models"
	"meetpoint/internal/resilience"
)

// MockHTTPDoer is a mock implementation of HTTPDoer
type MockHTTPDoer struct {
	mock.Mock
}

func (m *MockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	resp, _ := args.Get(0).(*http.Response)
	return resp, args.Error(1)
}

func createMockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

var (
	gangnam = models.Coordinates{Lat: 37.4979, Lng: 127.0276}
	jamsil  = models.Coordinates{Lat: 37.5133, Lng: 127.1000}
)

func threePointPolyline() string {
	return string(polyline.EncodeCoords([][]float64{
		{37.50, 127.00},
		{37.51, 127.00},
		{37.52, 127.00},
	}))
}

func TestGoogleRoutesDriveWithTraffic(t *testing.T) {
	body := fmt.Sprintf(`{"routes":[{
		"duration":"1200s",
		"distanceMeters":8400,
		"polyline":{"encodedPolyline":%q},
		"travelAdvisory":{
			"speedReadingIntervals":[
				{"startPolylinePointIndex":0,"endPolylinePointIndex":1,"speed":"TRAFFIC_JAM"},
				{"startPolylinePointIndex":1,"endPolylinePointIndex":2,"speed":"NORMAL"}
			],
			"tollInfo":{"estimatedPrice":[{"currencyCode":"KRW","units":"1100"}]}
		}
	}]}`, threePointPolyline())

	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		if req.Method != http.MethodPost || req.URL.Path != "/directions/v2:computeRoutes" {
			return false
		}
		if req.Header.Get("X-Goog-Api-Key") != "test-api-key" || req.Header.Get("X-Goog-FieldMask") == "" {
			return false
		}
		body, err := req.GetBody()
		if err != nil {
			return false
		}
		var payload map[string]any
		if err := json.NewDecoder(body).Decode(&payload); err != nil {
			return false
		}
		return payload["travelMode"] == "DRIVE" && payload["routingPreference"] == "TRAFFIC_AWARE"
	})).Return(createMockResponse(200, body), nil)

	client := NewGoogleRoutesEstimatorWithDoer("test-api-key", "https://routes.googleapis.com", mockHTTP, zaptest.NewLogger(t))

	est, err := client.Estimate(context.Background(), gangnam, jamsil, models.ModeCar)
	require.NoError(t, err)

	assert.Equal(t, 20.0, est.DurationMinutes)
	assert.Equal(t, 8400.0, est.DistanceMeters)
	assert.Equal(t, models.TrafficDelayed, est.TrafficState)
	assert.Equal(t, 1100, est.TollFare)
	assert.Equal(t, EstimateFare(models.ModeCar, 8400), est.Fare)
	assert.True(t, est.IsRealTime)
	assert.Equal(t, models.SourceGoogle, est.Source)

	mockHTTP.AssertExpectations(t)
}

func TestGoogleRoutesDriveWithoutReadingsIsUnknown(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		createMockResponse(200, `{"routes":[{"duration":"600s","distanceMeters":4000}]}`), nil)

	client := NewGoogleRoutesEstimatorWithDoer("k", "", mockHTTP, nil)

	est, err := client.Estimate(context.Background(), gangnam, jamsil, models.ModeCar)
	require.NoError(t, err)
	assert.Equal(t, models.TrafficUnknown, est.TrafficState)
	assert.Equal(t, 10.0, est.DurationMinutes)
}

func TestGoogleRoutesTransitUsesReportedFare(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		createMockResponse(200, `{"routes":[{"duration":"1800s","distanceMeters":12000,
			"travelAdvisory":{"transitFare":{"currencyCode":"KRW","units":"1650"}}}]}`), nil)

	client := NewGoogleRoutesEstimatorWithDoer("k", "", mockHTTP, nil)

	est, err := client.Estimate(context.Background(), gangnam, jamsil, models.ModePublicTransport)
	require.NoError(t, err)
	assert.Equal(t, 1650, est.Fare)
	assert.Equal(t, models.TrafficUnknown, est.TrafficState)
}

func TestGoogleRoutesWalkIsNotApplicable(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		createMockResponse(200, `{"routes":[{"duration":"3000s","distanceMeters":4100}]}`), nil)

	client := NewGoogleRoutesEstimatorWithDoer("k", "", mockHTTP, nil)

	est, err := client.Estimate(context.Background(), gangnam, jamsil, models.ModeWalk)
	require.NoError(t, err)
	assert.Equal(t, models.TrafficNotApplicable, est.TrafficState)
	assert.Equal(t, 0, est.Fare)
}

func TestGoogleRoutesNoRoutes(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		createMockResponse(200, `{"routes": []}`), nil)

	client := NewGoogleRoutesEstimatorWithDoer("k", "", mockHTTP, nil)

	est, err := client.Estimate(context.Background(), gangnam, jamsil, models.ModeCar)
	assert.Error(t, err)
	assert.Nil(t, est)

	var calcErr *ErrDistanceCalculationFailed
	require.True(t, errors.As(err, &calcErr))
	assert.Contains(t, calcErr.Reason, "no routes")
}

func TestGoogleRoutesHTTPErrors(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusForbidden, false},
		{http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			mockHTTP := &MockHTTPDoer{}
			mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
				createMockResponse(tt.status, `{"error":{"message":"nope"}}`), nil)

			client := NewGoogleRoutesEstimatorWithDoer("k", "", mockHTTP, nil)

			_, err := client.Estimate(context.Background(), gangnam, jamsil, models.ModeCar)
			require.Error(t, err)
			assert.Equal(t, tt.retryable, resilience.IsRetryable(err))
		})
	}
}

func TestGoogleRoutesTransportError(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(nil, errors.New("connection refused"))

	client := NewGoogleRoutesEstimatorWithDoer("k", "", mockHTTP, nil)

	_, err := client.Estimate(context.Background(), gangnam, jamsil, models.ModeCar)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestParseDuration(t *testing.T) {
	seconds, err := parseDuration("450s")
	require.NoError(t, err)
	assert.Equal(t, 450.0, seconds)

	seconds, err = parseDuration("12.5s")
	require.NoError(t, err)
	assert.Equal(t, 12.5, seconds)

	_, err = parseDuration("")
	assert.Error(t, err)
}

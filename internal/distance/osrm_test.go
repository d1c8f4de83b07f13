package distance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"meetpoint/internal/models"
	"meetpoint/internal/resilience"
)

func TestOSRMEstimateSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/route/v1/foot/127.000000,37.500000;127.010000,37.510000", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("overview"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(osrmRouteResponse{
			Code:   "Ok",
			Routes: []osrmRoute{{Distance: 1500, Duration: 1080}},
		})
	}))
	defer server.Close()

	estimator := NewOSRMEstimator(server.URL, zaptest.NewLogger(t))

	est, err := estimator.Estimate(context.Background(),
		models.Coordinates{Lat: 37.50, Lng: 127.00},
		models.Coordinates{Lat: 37.51, Lng: 127.01},
		models.ModeWalk)
	require.NoError(t, err)

	assert.Equal(t, 18.0, est.DurationMinutes)
	assert.Equal(t, 1500.0, est.DistanceMeters)
	assert.Equal(t, 0, est.Fare)
	assert.Equal(t, models.TrafficNotApplicable, est.TrafficState)
	assert.True(t, est.IsRealTime)
	assert.Equal(t, models.SourceOSRM, est.Source)
}

func TestOSRMDrivingProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/route/v1/driving/")
		json.NewEncoder(w).Encode(osrmRouteResponse{
			Code:   "Ok",
			Routes: []osrmRoute{{Distance: 10000, Duration: 900}},
		})
	}))
	defer server.Close()

	estimator := NewOSRMEstimator(server.URL, nil)

	est, err := estimator.Estimate(context.Background(), gangnam, jamsil, models.ModeCar)
	require.NoError(t, err)
	assert.Equal(t, 15.0, est.DurationMinutes)
	assert.Equal(t, 8000, est.Fare)
	assert.Equal(t, models.TrafficUnknown, est.TrafficState)
}

func TestOSRMPublicTransportUnsupported(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	estimator := NewOSRMEstimator(server.URL, nil)

	_, err := estimator.Estimate(context.Background(), gangnam, jamsil, models.ModePublicTransport)
	assert.True(t, errors.Is(err, ErrUnsupportedMode))
	assert.Equal(t, int32(0), calls.Load())
}

func TestOSRMSamePointSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	estimator := NewOSRMEstimator(server.URL, nil)

	est, err := estimator.Estimate(context.Background(), gangnam, gangnam, models.ModeCar)
	require.NoError(t, err)
	assert.Equal(t, 0.0, est.DurationMinutes)
	assert.Equal(t, 0.0, est.DistanceMeters)
	assert.Equal(t, int32(0), calls.Load())
}

func TestOSRMErrorCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(osrmRouteResponse{Code: "NoRoute", Message: "Impossible route"})
	}))
	defer server.Close()

	estimator := NewOSRMEstimator(server.URL, nil)

	_, err := estimator.Estimate(context.Background(), gangnam, jamsil, models.ModeCar)
	require.Error(t, err)

	var calcErr *ErrDistanceCalculationFailed
	require.True(t, errors.As(err, &calcErr))
	assert.Contains(t, calcErr.Reason, "NoRoute")
	assert.False(t, resilience.IsRetryable(err))
}

func TestOSRMHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("Bad Gateway"))
	}))
	defer server.Close()

	estimator := NewOSRMEstimator(server.URL, nil)

	_, err := estimator.Estimate(context.Background(), gangnam, jamsil, models.ModeCar)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
	assert.True(t, resilience.IsRetryable(err))
}

func TestOSRMInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	estimator := NewOSRMEstimator(server.URL, nil)

	_, err := estimator.Estimate(context.Background(), gangnam, jamsil, models.ModeWalk)
	require.Error(t, err)
	assert.False(t, resilience.IsRetryable(err))
}

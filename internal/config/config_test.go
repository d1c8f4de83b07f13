package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Engine.TopK)
	assert.Equal(t, []float64{-0.005, -0.003, 0, 0.003, 0.005}, cfg.Engine.GridSteps)
	assert.Equal(t, 5, cfg.Routing.Breaker.FailureThreshold)
	assert.Equal(t, 60*time.Second, cfg.Routing.Breaker.Cooldown)
	assert.Equal(t, 3, cfg.Geocoding.Retry.MaxAttempts)
}

func TestLoadWithoutSourcesReturnsDefaults(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  addr: ":9090"
routing:
  provider: none
  breaker:
    cooldown: 30s
engine:
  top_k: 3
  grid_steps: [-0.01, 0, 0.01]
  region_bonuses:
    - name: test
      bonus: 5
      bounds: {min_lat: 1, max_lat: 2, min_lng: 3, max_lng: 4}
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, ProviderNone, cfg.Routing.Provider)
	assert.Equal(t, 30*time.Second, cfg.Routing.Breaker.Cooldown)
	assert.Equal(t, 5, cfg.Routing.Breaker.FailureThreshold, "unset siblings keep their defaults")
	assert.Equal(t, 3, cfg.Engine.TopK)
	assert.Equal(t, []float64{-0.01, 0, 0.01}, cfg.Engine.GridSteps)
	require.Len(t, cfg.Engine.RegionBonuses, 1)
	assert.Equal(t, 5.0, cfg.Engine.RegionBonuses[0].Bonus)
	assert.Equal(t, 2.0, cfg.Engine.RegionBonuses[0].Bounds.MaxLat)
	assert.Len(t, cfg.Engine.CommercialAreas, 10)
}

func TestLoadCommercialAreas(t *testing.T) {
	path := writeFile(t, "config.yaml", `
engine:
  commercial_areas:
    - name: Seomyeon
      coordinates: {latitude: 35.1577, longitude: 129.0590}
      weight: 90
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)

	require.Len(t, cfg.Engine.CommercialAreas, 1)
	area := cfg.Engine.CommercialAreas[0]
	assert.Equal(t, "Seomyeon", area.Name)
	assert.Equal(t, 35.1577, area.Coordinates.Lat)
	assert.Equal(t, 129.0590, area.Coordinates.Lng)
	assert.Equal(t, 90.0, area.Weight)
	assert.Len(t, cfg.Engine.RegionBonuses, 2, "untouched lists keep their defaults")
}

func TestLoadEnvironmentWinsOverYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", "engine:\n  top_k: 3\n")
	t.Setenv("MEETPOINT_ENGINE__TOP_K", "7")
	t.Setenv("MEETPOINT_GEOCODING__RETRY__MAX_ATTEMPTS", "2")
	t.Setenv("MEETPOINT_ENGINE__GRID_STEPS", "-0.002, 0, 0.002")
	t.Setenv("MEETPOINT_ROUTING__TIMEOUT", "4s")

	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Engine.TopK)
	assert.Equal(t, 2, cfg.Geocoding.Retry.MaxAttempts)
	assert.Equal(t, []float64{-0.002, 0, 0.002}, cfg.Engine.GridSteps)
	assert.Equal(t, 4*time.Second, cfg.Routing.Timeout)
}

func TestLoadDotenv(t *testing.T) {
	// registers cleanup for the variable godotenv is about to set
	t.Setenv("MEETPOINT_LOG__LEVEL", "")
	os.Unsetenv("MEETPOINT_LOG__LEVEL")
	path := writeFile(t, ".env", "MEETPOINT_LOG__LEVEL=debug\n")

	cfg, err := Load("", path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingDotenvIsIgnored(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
}

func TestLoadMissingYAMLFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero threshold", func(c *Config) { c.Routing.Breaker.FailureThreshold = 0 }, "routing.breaker.failure_threshold"},
		{"zero attempts", func(c *Config) { c.Geocoding.Retry.MaxAttempts = 0 }, "geocoding.retry.max_attempts"},
		{"zero top k", func(c *Config) { c.Engine.TopK = 0 }, "engine.top_k"},
		{"negative request timeout", func(c *Config) { c.Engine.RequestTimeout = -time.Second }, "engine.request_timeout"},
		{"unknown routing provider", func(c *Config) { c.Routing.Provider = "tmap" }, "routing.provider"},
		{"unknown geocoding provider", func(c *Config) { c.Geocoding.Provider = "mapbox" }, "geocoding.provider"},
		{"google without key", func(c *Config) { c.Routing.Provider = ProviderGoogle }, "google_api_key"},
		{"no grid", func(c *Config) { c.Engine.GridSteps = nil }, "engine.grid_steps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConversions(t *testing.T) {
	cfg := Default()

	policy := cfg.Routing.Retry.Policy()
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, policy.Delays())

	breaker := cfg.Geocoding.Breaker.Breaker()
	assert.Equal(t, 5, breaker.FailureThreshold)

	engine := cfg.Engine.Meetpoint()
	assert.Equal(t, cfg.Engine.TopK, engine.TopK)
	assert.Len(t, engine.CommercialAreas, 10)
}

func TestDBPath(t *testing.T) {
	path, err := CacheConfig{Path: "/var/lib/meetpoint/cache.db"}.DBPath()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/meetpoint/cache.db", path)

	path, err = CacheConfig{}.DBPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(AppDirName, "meetpoint-cache.db"), filepath.Join(filepath.Base(filepath.Dir(path)), filepath.Base(path)))
}

// Package config loads service configuration from defaults, an optional .env
// file, an optional YAML file and MEETPOINT_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"meetpoint/internal/distance"
	"meetpoint/internal/geo"
	"meetpoint/internal/geocoding"
	"meetpoint/internal/logging"
	"meetpoint/internal/meetpoint"
	"meetpoint/internal/models"
	"meetpoint/internal/observability"
	"meetpoint/internal/resilience"
	"meetpoint/internal/sqlite"
)

const (
	EnvPrefix  = "MEETPOINT_"
	AppDirName = ".meetpoint"
)

// Provider names
const (
	ProviderNone      = "none"
	ProviderNominatim = "nominatim"
	ProviderOSRM      = "osrm"
	ProviderGoogle    = "google"
)

// list-valued keys accept comma separated environment values
var listKeys = []string{"server.cors_origins", "engine.grid_steps"}

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Tracing   TracingConfig   `koanf:"tracing"`
	Geocoding GeocodingConfig `koanf:"geocoding"`
	Routing   RoutingConfig   `koanf:"routing"`
	Cache     CacheConfig     `koanf:"cache"`
	Engine    EngineConfig    `koanf:"engine"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	ServiceName string  `koanf:"service_name"`
	Exporter    string  `koanf:"exporter"`
	Endpoint    string  `koanf:"endpoint"`
	SampleRatio float64 `koanf:"sample_ratio"`
}

// BreakerConfig is the per-dependency circuit breaker setting
type BreakerConfig struct {
	FailureThreshold int           `koanf:"failure_threshold"`
	Cooldown         time.Duration `koanf:"cooldown"`
}

type RetryConfig struct {
	MaxAttempts     int           `koanf:"max_attempts"`
	InitialInterval time.Duration `koanf:"initial_interval"`
	Multiplier      float64       `koanf:"multiplier"`
	MaxInterval     time.Duration `koanf:"max_interval"`
}

type GeocodingConfig struct {
	Provider       string        `koanf:"provider"`
	BaseURL        string        `koanf:"base_url"`
	UserAgent      string        `koanf:"user_agent"`
	Language       string        `koanf:"language"`
	RateLimit      time.Duration `koanf:"rate_limit"`
	ForwardTimeout time.Duration `koanf:"forward_timeout"`
	ReverseTimeout time.Duration `koanf:"reverse_timeout"`
	Breaker        BreakerConfig `koanf:"breaker"`
	Retry          RetryConfig   `koanf:"retry"`
}

type RoutingConfig struct {
	Provider     string        `koanf:"provider"`
	OSRMURL      string        `koanf:"osrm_url"`
	GoogleAPIKey string        `koanf:"google_api_key"`
	GoogleURL    string        `koanf:"google_url"`
	Timeout      time.Duration `koanf:"timeout"`
	Breaker      BreakerConfig `koanf:"breaker"`
	Retry        RetryConfig   `koanf:"retry"`
}

// CacheConfig controls the in-memory tier and the optional SQLite tier
type CacheConfig struct {
	MemoryTTL     time.Duration `koanf:"memory_ttl"`
	Persistent    bool          `koanf:"persistent"`
	PersistentTTL time.Duration `koanf:"persistent_ttl"`
	// Path defaults to ~/.meetpoint/meetpoint-cache.db
	Path string `koanf:"path"`
}

type EngineConfig struct {
	TopK            int                     `koanf:"top_k"`
	GridSteps       []float64               `koanf:"grid_steps"`
	RequestTimeout  time.Duration           `koanf:"request_timeout"`
	MaxConcurrency  int                     `koanf:"max_concurrency"`
	CommercialAreas []models.CommercialArea `koanf:"commercial_areas"`
	RegionBonuses   []models.RegionBonus    `koanf:"region_bonuses"`
}

func defaultRetry() RetryConfig {
	p := resilience.DefaultRetryPolicy()
	return RetryConfig{
		MaxAttempts:     p.MaxAttempts,
		InitialInterval: p.InitialInterval,
		Multiplier:      p.Multiplier,
		MaxInterval:     p.MaxInterval,
	}
}

func defaultBreaker() BreakerConfig {
	b := resilience.DefaultBreakerConfig()
	return BreakerConfig{FailureThreshold: b.FailureThreshold, Cooldown: b.Cooldown}
}

// Default returns the configuration used when nothing overrides it
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			CORSOrigins:     []string{"http://localhost:*", "http://127.0.0.1:*"},
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Tracing: TracingConfig{
			ServiceName: "meetpoint",
			Exporter:    "stdout",
			Endpoint:    "localhost:4317",
			SampleRatio: 1,
		},
		Geocoding: GeocodingConfig{
			Provider:       ProviderNominatim,
			BaseURL:        geocoding.DefaultNominatimURL,
			UserAgent:      "MeetPoint/1.0",
			Language:       "ko",
			RateLimit:      time.Second,
			ForwardTimeout: geocoding.DefaultForwardTimeout,
			ReverseTimeout: geocoding.DefaultReverseTimeout,
			Breaker:        defaultBreaker(),
			Retry:          defaultRetry(),
		},
		Routing: RoutingConfig{
			Provider:  ProviderOSRM,
			OSRMURL:   distance.DefaultOSRMURL,
			GoogleURL: distance.DefaultGoogleRoutesURL,
			Timeout:   distance.DefaultRouteTimeout,
			Breaker:   defaultBreaker(),
			Retry:     defaultRetry(),
		},
		Cache: CacheConfig{
			MemoryTTL:     time.Hour,
			Persistent:    true,
			PersistentTTL: 7 * 24 * time.Hour,
		},
		Engine: EngineConfig{
			TopK:            5,
			GridSteps:       slices.Clone(geo.DefaultGridSteps),
			RequestTimeout:  20 * time.Second,
			MaxConcurrency:  8,
			CommercialAreas: slices.Clone(meetpoint.DefaultCommercialAreas),
			RegionBonuses:   slices.Clone(meetpoint.DefaultRegionBonuses),
		},
	}
}

// Load layers defaults, dotenvPath (if it exists), yamlPath (if non-empty) and
// the environment. Either path may be empty.
func Load(yamlPath, dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", dotenvPath, err)
		}
	}

	k := koanf.New(".")
	if yamlPath != "" {
		if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", yamlPath, err)
		}
	}
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKeyValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := Default()
	// lists are replaced, not merged element by element
	for _, key := range []string{"server.cors_origins", "engine.grid_steps", "engine.commercial_areas", "engine.region_bonuses"} {
		if k.Exists(key) {
			clearList(&cfg, key)
		}
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKeyValue maps MEETPOINT_ROUTING__BREAKER__COOLDOWN to routing.breaker.cooldown
func envKeyValue(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if slices.Contains(listKeys, key) {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return key, parts
	}
	return key, value
}

func clearList(cfg *Config, key string) {
	switch key {
	case "server.cors_origins":
		cfg.Server.CORSOrigins = nil
	case "engine.grid_steps":
		cfg.Engine.GridSteps = nil
	case "engine.commercial_areas":
		cfg.Engine.CommercialAreas = nil
	case "engine.region_bonuses":
		cfg.Engine.RegionBonuses = nil
	}
}

// Validate rejects settings that would make the service misbehave
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Addr != "", "server.addr is required")
	check(c.Server.ShutdownTimeout > 0, "server.shutdown_timeout must be positive")

	check(slices.Contains([]string{ProviderNominatim, ProviderNone}, c.Geocoding.Provider),
		"unknown geocoding.provider %q", c.Geocoding.Provider)
	check(c.Geocoding.ForwardTimeout > 0, "geocoding.forward_timeout must be positive")
	check(c.Geocoding.ReverseTimeout > 0, "geocoding.reverse_timeout must be positive")
	errs = append(errs, c.Geocoding.Breaker.validate("geocoding.breaker")...)
	errs = append(errs, c.Geocoding.Retry.validate("geocoding.retry")...)

	check(slices.Contains([]string{ProviderOSRM, ProviderGoogle, ProviderNone}, c.Routing.Provider),
		"unknown routing.provider %q", c.Routing.Provider)
	check(c.Routing.Provider != ProviderGoogle || c.Routing.GoogleAPIKey != "",
		"routing.google_api_key is required for the google provider")
	check(c.Routing.Timeout > 0, "routing.timeout must be positive")
	errs = append(errs, c.Routing.Breaker.validate("routing.breaker")...)
	errs = append(errs, c.Routing.Retry.validate("routing.retry")...)

	check(c.Cache.MemoryTTL > 0, "cache.memory_ttl must be positive")

	check(c.Engine.TopK > 0, "engine.top_k must be positive")
	check(len(c.Engine.GridSteps) > 0, "engine.grid_steps must not be empty")
	check(c.Engine.RequestTimeout > 0, "engine.request_timeout must be positive")
	check(c.Engine.MaxConcurrency > 0, "engine.max_concurrency must be positive")

	check(slices.Contains([]string{"stdout", "otlp"}, c.Tracing.Exporter),
		"unknown tracing.exporter %q", c.Tracing.Exporter)

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func (b BreakerConfig) validate(prefix string) []error {
	var errs []error
	if b.FailureThreshold <= 0 {
		errs = append(errs, fmt.Errorf("%s.failure_threshold must be positive", prefix))
	}
	if b.Cooldown <= 0 {
		errs = append(errs, fmt.Errorf("%s.cooldown must be positive", prefix))
	}
	return errs
}

func (r RetryConfig) validate(prefix string) []error {
	var errs []error
	if r.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("%s.max_attempts must be positive", prefix))
	}
	if r.InitialInterval < 0 || r.MaxInterval < 0 {
		errs = append(errs, fmt.Errorf("%s intervals must not be negative", prefix))
	}
	if r.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("%s.multiplier must be at least 1", prefix))
	}
	return errs
}

// Breaker converts to the resilience settings
func (b BreakerConfig) Breaker() resilience.BreakerConfig {
	return resilience.BreakerConfig{FailureThreshold: b.FailureThreshold, Cooldown: b.Cooldown}
}

// Policy converts to a retry policy with the default retry classification
func (r RetryConfig) Policy() resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxAttempts:     r.MaxAttempts,
		InitialInterval: r.InitialInterval,
		Multiplier:      r.Multiplier,
		MaxInterval:     r.MaxInterval,
	}
}

func (l LogConfig) Logging() logging.Config {
	return logging.Config{Level: l.Level, Format: l.Format}
}

func (t TracingConfig) Observability() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     t.Enabled,
		ServiceName: t.ServiceName,
		Exporter:    t.Exporter,
		Endpoint:    t.Endpoint,
		SampleRatio: t.SampleRatio,
	}
}

func (g GeocodingConfig) Nominatim() geocoding.NominatimConfig {
	return geocoding.NominatimConfig{
		BaseURL:   g.BaseURL,
		UserAgent: g.UserAgent,
		Language:  g.Language,
		RateLimit: g.RateLimit,
	}
}

func (e EngineConfig) Meetpoint() meetpoint.Config {
	return meetpoint.Config{
		TopK:            e.TopK,
		GridSteps:       e.GridSteps,
		RequestTimeout:  e.RequestTimeout,
		MaxConcurrency:  e.MaxConcurrency,
		CommercialAreas: e.CommercialAreas,
		RegionBonuses:   e.RegionBonuses,
	}
}

// DBPath returns the configured SQLite path or ~/.meetpoint/meetpoint-cache.db
func (c CacheConfig) DBPath() (string, error) {
	path := c.Path
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, AppDirName, sqlite.DefaultDBFileName)
	}
	return path, nil
}

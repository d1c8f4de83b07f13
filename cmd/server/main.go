package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"meetpoint/internal/cache"
	"meetpoint/internal/config"
	"meetpoint/internal/distance"
	"meetpoint/internal/geocoding"
	"meetpoint/internal/logging"
	"meetpoint/internal/meetpoint"
	"meetpoint/internal/models"
	"meetpoint/internal/observability"
	"meetpoint/internal/resilience"
	"meetpoint/internal/server"
	"meetpoint/internal/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	envPath := flag.String("env", ".env", "Path to a .env file, ignored when missing")
	flag.Parse()

	if err := run(*configPath, *envPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envPath string) error {
	cfg, err := config.Load(configPath, envPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Logging())
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing.Observability(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, logger)

	collector, err := observability.NewCollector(nil)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	geoBreaker := resilience.NewCircuitBreaker("geocoding", cfg.Geocoding.Breaker.Breaker(), resilience.WithStateObserver(collector))
	routeBreaker := resilience.NewCircuitBreaker("routing", cfg.Routing.Breaker.Breaker(), resilience.WithStateObserver(collector))

	caches, err := openCaches(ctx, cfg.Cache, collector, logger)
	if err != nil {
		return err
	}
	defer caches.Close()

	geocoder, closeGeocoder := buildGeocoder(cfg.Geocoding, geoBreaker, caches, collector, logger)
	defer closeGeocoder()

	routes := buildRoutes(cfg.Routing, routeBreaker, caches, collector, logger)

	engine := meetpoint.NewEngine(geocoder, routes, cfg.Engine.Meetpoint(),
		meetpoint.WithLogger(logger),
		meetpoint.WithObserver(collector),
	)

	srv, err := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		CORSOrigins:  cfg.Server.CORSOrigins,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Engine:       engine,
		Breakers:     []*resilience.CircuitBreaker{geoBreaker, routeBreaker},
		Checks:       caches.checks,
		Metrics:      collector,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	actualAddr, err := srv.Start()
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	logger.Info("meetpoint ready",
		zap.String("addr", actualAddr),
		zap.String("geocoding", cfg.Geocoding.Provider),
		zap.String("routing", cfg.Routing.Provider))

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-stopCtx.Done()
	logger.Info("received shutdown signal, starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("could not gracefully shutdown the server: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// cacheSet holds the caches in front of every external lookup
type cacheSet struct {
	places    cache.Store[models.NamedLocation]
	addresses cache.Store[[]geocoding.ForwardResult]
	routes    cache.Store[models.RouteEstimate]
	checks    map[string]server.HealthCheck
	closers   []func()
}

func (c *cacheSet) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func openCaches(ctx context.Context, cfg config.CacheConfig, collector *observability.Collector, logger *zap.Logger) (*cacheSet, error) {
	memPlaces := cache.NewMemory[models.NamedLocation](cfg.MemoryTTL)
	memAddresses := cache.NewMemory[[]geocoding.ForwardResult](cfg.MemoryTTL)
	memRoutes := cache.NewMemory[models.RouteEstimate](cfg.MemoryTTL)

	set := &cacheSet{
		checks:  map[string]server.HealthCheck{},
		closers: []func(){memPlaces.Close, memAddresses.Close, memRoutes.Close},
	}

	var slowPlaces cache.Store[models.NamedLocation]
	var slowRoutes cache.Store[models.RouteEstimate]

	if cfg.Persistent {
		path, err := cfg.DBPath()
		if err != nil {
			set.Close()
			return nil, err
		}
		store, err := sqlite.New(path, logger.Named("sqlite"))
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("failed to open cache store: %w", err)
		}
		set.closers = append(set.closers, func() {
			if err := store.Close(); err != nil {
				logger.Warn("failed to close cache store", zap.Error(err))
			}
		})
		set.checks["cache"] = store.HealthCheck

		placeCache := sqlite.NewPlaceCache(store, cfg.PersistentTTL)
		routeCache := sqlite.NewRouteCache(store, cfg.PersistentTTL)
		purgeExpired(ctx, logger, placeCache, routeCache)

		slowPlaces = placeCache
		slowRoutes = routeCache
	}

	set.places = cache.NewLayered[models.NamedLocation]("places", memPlaces, slowPlaces,
		cache.WithLogger[models.NamedLocation](logger), cache.WithObserver[models.NamedLocation](collector))
	set.addresses = cache.NewLayered[[]geocoding.ForwardResult]("addresses", memAddresses, nil,
		cache.WithLogger[[]geocoding.ForwardResult](logger), cache.WithObserver[[]geocoding.ForwardResult](collector))
	set.routes = cache.NewLayered[models.RouteEstimate]("routes", memRoutes, slowRoutes,
		cache.WithLogger[models.RouteEstimate](logger), cache.WithObserver[models.RouteEstimate](collector))

	return set, nil
}

type purger interface {
	Purge(ctx context.Context) (int64, error)
}

func purgeExpired(ctx context.Context, logger *zap.Logger, caches ...purger) {
	var total int64
	for _, c := range caches {
		n, err := c.Purge(ctx)
		if err != nil {
			logger.Warn("failed to purge expired cache entries", zap.Error(err))
			continue
		}
		total += n
	}
	if total > 0 {
		logger.Info("purged expired cache entries", zap.Int64("count", total))
	}
}

func buildGeocoder(cfg config.GeocodingConfig, breaker *resilience.CircuitBreaker, caches *cacheSet, collector *observability.Collector, logger *zap.Logger) (geocoding.Geocoder, func()) {
	if cfg.Provider == config.ProviderNone {
		return geocoding.Disabled{}, func() {}
	}

	nominatim := geocoding.NewNominatimGeocoder(cfg.Nominatim(), logger)
	guarded := geocoding.NewGuarded(nominatim, geocoding.GuardedConfig{
		Breaker:        breaker,
		Retry:          cfg.Retry.Policy(),
		ForwardTimeout: cfg.ForwardTimeout,
		ReverseTimeout: cfg.ReverseTimeout,
		Places:         caches.places,
		Addresses:      caches.addresses,
		Logger:         logger,
		Observer:       collector,
	})
	return guarded, nominatim.Close
}

func buildRoutes(cfg config.RoutingConfig, breaker *resilience.CircuitBreaker, caches *cacheSet, collector *observability.Collector, logger *zap.Logger) distance.RouteEstimator {
	var inner distance.RouteEstimator
	switch cfg.Provider {
	case config.ProviderOSRM:
		inner = distance.NewOSRMEstimator(cfg.OSRMURL, logger)
	case config.ProviderGoogle:
		inner = distance.NewGoogleRoutesEstimatorWithDoer(cfg.GoogleAPIKey, cfg.GoogleURL, &http.Client{Timeout: 30 * time.Second}, logger)
	default:
		return distance.NewFallbackEstimator()
	}

	return distance.NewGuarded(inner, distance.GuardedConfig{
		Breaker:  breaker,
		Retry:    cfg.Retry.Policy(),
		Timeout:  cfg.Timeout,
		Routes:   caches.routes,
		Logger:   logger,
		Observer: collector,
	})
}

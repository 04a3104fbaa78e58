package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/i474232898/weather-lookup/internal/api/http"
	"github.com/i474232898/weather-lookup/internal/apiclient"
	"github.com/i474232898/weather-lookup/internal/config"
	"github.com/i474232898/weather-lookup/internal/retry"
	"github.com/i474232898/weather-lookup/internal/scheduler"
	"github.com/i474232898/weather-lookup/internal/search"
	"github.com/i474232898/weather-lookup/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// One backend client for the whole process.
	client, err := apiclient.New(apiclient.Config{
		BaseURL:         cfg.APIBaseURL,
		Timeout:         cfg.HTTPTimeout,
		BreakerFailures: cfg.BreakerFailures,
	})
	if err != nil {
		log.Fatalf("failed to create api client: %v", err)
	}
	log.Printf("INFO: using backend %s", client.BaseURL())

	// Featured locations shown on the home page before any search.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	sched := scheduler.New(cfg.FeaturedLocations, cfg.FeaturedInterval, client, memStore)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	sessions := httpapi.NewSessions(client, cfg.SessionTTL, cfg.HistoryPageSize,
		retry.Fixed(cfg.HistoryRetryAttempts, cfg.HistoryRetryDelay))

	srv, err := httpapi.NewServer(httpapi.Deps{
		Sessions:           sessions,
		Geolocation:        search.NewGeolocation(newLocator(cfg), cfg.GeolocationTimeout),
		GeolocationTimeout: cfg.GeolocationTimeout,
		Featured:           memStore,
		FeaturedLocations:  sched.Locations(),
	})
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}
	app := httpapi.NewApp(srv)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()
	log.Printf("INFO: listening on :%s", cfg.Port)

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}

// newLocator picks the server-side fallback used when the browser cannot
// provide a position.
func newLocator(cfg *config.AppConfig) search.Locator {
	switch cfg.GeolocationProvider {
	case config.GeoProviderAddress:
		return search.NewAddressLocator(cfg.GeolocationAddress, cfg.GoogleGeocodingKey)
	case config.GeoProviderIP:
		return &search.IPLocator{URL: cfg.GeolocationIPURL, Client: &http.Client{Timeout: cfg.GeolocationTimeout}}
	default:
		return nil
	}
}

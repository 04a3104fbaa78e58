package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Geolocation providers.
const (
	GeoProviderIP      = "ip"
	GeoProviderAddress = "address"
	GeoProviderNone    = "none"
)

type AppConfig struct {
	// APIBaseURL is the REST backend root.
	APIBaseURL string
	// HTTPTimeout for backend calls; 0 means none.
	HTTPTimeout     time.Duration
	BreakerFailures int

	HistoryPageSize      int
	HistoryRetryAttempts int
	HistoryRetryDelay    time.Duration

	GeolocationTimeout  time.Duration
	GeolocationProvider string
	GeolocationAddress  string
	GeolocationIPURL    string
	GoogleGeocodingKey  string

	// FeaturedLocations are shown on the home page before any search.
	FeaturedLocations []string
	FeaturedInterval  time.Duration

	// In-memory featured store retention.
	StoreMaxHistory int           // 0 = unlimited
	StoreMaxAge     time.Duration // 0 = unlimited

	SessionTTL time.Duration

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}
	var err error

	cfg.APIBaseURL = strings.TrimRight(getenvDefault("API_BASE_URL", "http://localhost:8000"), "/")
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "0"); err != nil {
		return nil, err
	}
	cfg.BreakerFailures = getenvInt("BREAKER_FAILURES", 0)

	cfg.HistoryPageSize = getenvInt("HISTORY_PAGE_SIZE", 20)
	cfg.HistoryRetryAttempts = getenvInt("HISTORY_RETRY_ATTEMPTS", 4)
	if cfg.HistoryRetryDelay, err = getenvDuration("HISTORY_RETRY_DELAY", "2s"); err != nil {
		return nil, err
	}

	if cfg.GeolocationTimeout, err = getenvDuration("GEOLOCATION_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	cfg.GeolocationProvider = strings.ToLower(getenvDefault("GEOLOCATION_PROVIDER", GeoProviderIP))
	switch cfg.GeolocationProvider {
	case GeoProviderIP, GeoProviderAddress, GeoProviderNone:
	default:
		return nil, fmt.Errorf("invalid GEOLOCATION_PROVIDER %q", cfg.GeolocationProvider)
	}
	cfg.GeolocationAddress = os.Getenv("GEOLOCATION_ADDRESS")
	cfg.GeolocationIPURL = getenvDefault("GEOLOCATION_IP_URL", "http://ip-api.com/json/")
	cfg.GoogleGeocodingKey = os.Getenv("GOOGLE_GEOCODING_API_KEY")

	cfg.FeaturedLocations = splitList(os.Getenv("FEATURED_LOCATIONS"))
	if cfg.FeaturedInterval, err = getenvDuration("FEATURED_INTERVAL", "15m"); err != nil {
		return nil, err
	}

	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 96) // roughly 24h at 15-minute intervals
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "24h"); err != nil {
		return nil, err
	}

	if cfg.SessionTTL, err = getenvDuration("SESSION_TTL", "30m"); err != nil {
		return nil, err
	}
	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

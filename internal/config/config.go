package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all ETL service settings, populated from environment variables.
type Config struct {
	DatabaseURL string

	WeatherAPIURL   string
	WeatherAPIKey   string
	Cities          []string
	FetchTimeout    time.Duration
	FetchMaxRetries int

	RunInterval     time.Duration
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// APIConfig holds the observation API service settings.
type APIConfig struct {
	Addr            string
	KeysPath        string
	CapitalsPath    string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads ETL configuration from the environment, applying defaults where
// unset. A .env file in the working directory is honored when present,
// without overriding variables already exported.
func Load() (*Config, error) {
	loadDotenv()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	runInterval, err := parseDuration("RUN_INTERVAL", "15m")
	if err != nil {
		return nil, err
	}
	maxRetries, err := parseInt("FETCH_MAX_RETRIES", 3, 0, 10)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:     databaseURLFromEnv(),
		WeatherAPIURL:   envOrDefault("WEATHER_API_URL", "http://weather-api:5000"),
		WeatherAPIKey:   os.Getenv("WEATHER_API_KEY"),
		Cities:          splitList(envOrDefault("CITIES", "London")),
		FetchTimeout:    fetchTimeout,
		FetchMaxRetries: maxRetries,
		RunInterval:     runInterval,
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.WeatherAPIKey == "" {
		return nil, errors.New("WEATHER_API_KEY is required")
	}
	if len(cfg.Cities) == 0 {
		return nil, errors.New("CITIES is required")
	}
	if _, err := url.Parse(cfg.WeatherAPIURL); err != nil {
		return nil, fmt.Errorf("invalid WEATHER_API_URL: %w", err)
	}

	return cfg, nil
}

// LoadAPI reads observation API service configuration from the environment.
func LoadAPI() (*APIConfig, error) {
	loadDotenv()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	cfg := &APIConfig{
		Addr:            envOrDefault("API_ADDR", ":5000"),
		KeysPath:        envOrDefault("API_KEYS_CONFIG", "api_keys_config.json"),
		CapitalsPath:    os.Getenv("CAPITALS_JSON_PATH"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.CapitalsPath == "" {
		return nil, errors.New("CAPITALS_JSON_PATH is required")
	}

	return cfg, nil
}

// databaseURLFromEnv prefers a full DATABASE_URL and otherwise assembles one
// from the discrete DB_* variables used by the rest of the deployment.
func databaseURLFromEnv() string {
	if u := os.Getenv("DATABASE_URL"); u != "" {
		return u
	}
	user := envOrDefault("DB_USER", "weather_user")
	pass := os.Getenv("DB_PASSWORD")
	host := envOrDefault("DB_HOST", "db")
	port := envOrDefault("DB_PORT", "5432")
	name := envOrDefault("DB_NAME", "weather_db")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&timezone=UTC",
		url.QueryEscape(user), url.QueryEscape(pass), host, port, name)
}

func loadDotenv() {
	// Missing .env is the normal case in containers.
	_ = godotenv.Load()
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseInt(key string, def, min, max int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("invalid %s: %q (want %d..%d)", key, s, min, max)
	}
	return n, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

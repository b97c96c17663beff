package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WEATHER_API_KEY", "k-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://weather-api:5000", cfg.WeatherAPIURL)
	assert.Equal(t, []string{"London"}, cfg.Cities)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 3, cfg.FetchMaxRetries)
	assert.Equal(t, 15*time.Minute, cfg.RunInterval)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Contains(t, cfg.DatabaseURL, "weather_user")
	assert.Contains(t, cfg.DatabaseURL, "weather_db")
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("WEATHER_API_KEY", "k-test")
	t.Setenv("WEATHER_API_URL", "http://localhost:5001")
	t.Setenv("CITIES", "Cairo, Lima ,Tokyo")
	t.Setenv("FETCH_TIMEOUT", "5s")
	t.Setenv("FETCH_MAX_RETRIES", "5")
	t.Setenv("RUN_INTERVAL", "1m")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/w")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5001", cfg.WeatherAPIURL)
	assert.Equal(t, []string{"Cairo", "Lima", "Tokyo"}, cfg.Cities)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 5, cfg.FetchMaxRetries)
	assert.Equal(t, time.Minute, cfg.RunInterval)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "postgres://u:p@localhost:5432/w", cfg.DatabaseURL)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEATHER_API_KEY")
}

func TestLoad_InvalidRunInterval(t *testing.T) {
	t.Setenv("WEATHER_API_KEY", "k-test")
	t.Setenv("RUN_INTERVAL", "not-a-duration")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RUN_INTERVAL")
}

func TestLoad_NegativeFetchTimeout(t *testing.T) {
	t.Setenv("WEATHER_API_KEY", "k-test")
	t.Setenv("FETCH_TIMEOUT", "-1s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_TIMEOUT")
}

func TestLoad_RetriesOutOfRange(t *testing.T) {
	t.Setenv("WEATHER_API_KEY", "k-test")
	t.Setenv("FETCH_MAX_RETRIES", "99")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_MAX_RETRIES")
}

func TestLoad_EmptyCities(t *testing.T) {
	t.Setenv("WEATHER_API_KEY", "k-test")
	t.Setenv("CITIES", " , ")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CITIES")
}

func TestLoadAPI_Defaults(t *testing.T) {
	t.Setenv("CAPITALS_JSON_PATH", "/data/capitals.json")

	cfg, err := LoadAPI()
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.Addr)
	assert.Equal(t, "api_keys_config.json", cfg.KeysPath)
	assert.Equal(t, "/data/capitals.json", cfg.CapitalsPath)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoadAPI_MissingCapitalsPath(t *testing.T) {
	_, err := LoadAPI()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CAPITALS_JSON_PATH")
}

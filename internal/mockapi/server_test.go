package mockapi_test

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudbarrow/weather-warehouse-etl/internal/mockapi"
)

type allowKeys struct{ allowed string }

func (a *allowKeys) Validate(key string) bool { return key == a.allowed }

func testCities() map[string]mockapi.CityInfo {
	return map[string]mockapi.CityInfo{
		"London": {Country: "United Kingdom", Region: "City of London", Lat: "51.517", Lon: "-0.106", TimezoneID: "Europe/London"},
		"Cairo":  {Country: "Egypt", Region: "Al Qahirah", Lat: "30.050", Lon: "31.250", TimezoneID: "Africa/Cairo"},
	}
}

func newTestServer(t *testing.T) *mockapi.Server {
	t.Helper()
	gen := mockapi.NewGenerator(
		testCities(),
		rand.New(rand.NewSource(42)), //nolint:gosec // deterministic test data
		clockwork.NewFakeClockAt(time.Date(2025, 12, 3, 12, 0, 0, 0, time.UTC)),
	)
	return mockapi.NewServer(":0", gen, &allowKeys{allowed: "k-good"}, slog.Default())
}

func get(t *testing.T, srv *mockapi.Server, path, key string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWeather_AuthorizedRequest(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/weather?city=Cairo", "k-good")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	location := body["location"].(map[string]any)
	assert.Equal(t, "Cairo", location["name"])
	assert.Equal(t, "Egypt", location["country"])
	assert.Equal(t, "2.0", location["utc_offset"])

	current := body["current"].(map[string]any)
	assert.NotEmpty(t, current["observation_time"])
	assert.NotEmpty(t, current["weather_descriptions"])
}

func TestWeather_MissingKeyUnauthorized(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/weather?city=Cairo", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "unauthorized", errObj["type"])
	assert.Equal(t, float64(401), errObj["code"])
	assert.NotEmpty(t, errObj["info"])
}

func TestWeather_BadKeyForbidden(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/weather?city=Cairo", "k-bad")
	require.Equal(t, http.StatusForbidden, rec.Code)

	body := decode(t, rec)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "forbidden", errObj["type"])
}

func TestWeather_MissingCityParam(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/weather", "k-good")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWeather_PathParameter(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/weather/London", "k-good")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	location := body["location"].(map[string]any)
	assert.Equal(t, "London", location["name"])
}

func TestWeather_CaseInsensitiveCatalogLookup(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/weather?city=cairo", "k-good")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	location := body["location"].(map[string]any)
	assert.Equal(t, "Egypt", location["country"])
}

func TestWeather_UnknownCityFallsBack(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/weather?city=Atlantis&country=Mythos", "k-good")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	location := body["location"].(map[string]any)
	assert.Equal(t, "Atlantis", location["name"])
	assert.Equal(t, "Mythos", location["country"])
	assert.Equal(t, "UTC", location["timezone_id"])
}

func TestHealth_NoAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestIndex_ListsCities(t *testing.T) {
	srv := newTestServer(t)

	rec := get(t, srv, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	cities := body["available_cities"].([]any)
	assert.Equal(t, []any{"Cairo", "London"}, cities)
}

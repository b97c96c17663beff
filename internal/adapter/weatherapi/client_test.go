package weatherapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const responseBody = `{
	"location": {"name": "Cairo", "utc_offset": "2.0"},
	"current": {
		"observation_time": "07:24 AM",
		"temperature": 30,
		"weather_descriptions": ["Sunny"],
		"wind_speed": 5
	}
}`

func newTestClient(t *testing.T, baseURL string, retries int) *Client {
	t.Helper()
	c := NewClient(baseURL, "k-test", 2*time.Second, retries, slog.Default())
	c.SetClock(clockwork.NewFakeClockAt(time.Date(2025, 12, 3, 12, 0, 0, 0, time.UTC)))
	return c
}

func TestFetchCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k-test", r.Header.Get("X-API-Key"))
		assert.Equal(t, "Cairo", r.URL.Query().Get("city"))
		w.Write([]byte(responseBody)) //nolint:errcheck
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0)

	obs, err := client.FetchCurrent(context.Background(), "Cairo")
	require.NoError(t, err)

	assert.Equal(t, "Cairo", obs.City)
	assert.Equal(t, 30.0, *obs.Temperature)
	assert.Equal(t, 5.0, *obs.WindSpeed)
	assert.Equal(t, "Sunny", *obs.Description)
	assert.Equal(t, "2.0", obs.UTCOffset)
	// 07:24 AM combined with today's UTC date.
	assert.Equal(t, time.Date(2025, 12, 3, 7, 24, 0, 0, time.UTC), obs.Timestamp)
}

func TestFetchCurrent_ParsesPMTimes(t *testing.T) {
	body := `{"location":{"name":"Cairo","utc_offset":"2.0"},"current":{"observation_time":"04:05 PM","temperature":30,"weather_descriptions":["Sunny"],"wind_speed":5}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(body)) //nolint:errcheck
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0)

	obs, err := client.FetchCurrent(context.Background(), "Cairo")
	require.NoError(t, err)
	assert.Equal(t, 16, obs.Timestamp.Hour())
	assert.Equal(t, 5, obs.Timestamp.Minute())
}

func TestFetchCurrent_UnauthorizedNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 3)

	_, err := client.FetchCurrent(context.Background(), "Cairo")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int64(1), calls.Load())
}

func TestFetchCurrent_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(responseBody)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k-test", 2*time.Second, 3, slog.Default())

	obs, err := client.FetchCurrent(context.Background(), "Cairo")
	require.NoError(t, err)
	assert.Equal(t, "Cairo", obs.City)
	assert.Equal(t, int64(3), calls.Load())
}

func TestFetchCurrent_ExhaustedRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k-test", 2*time.Second, 1, slog.Default())

	_, err := client.FetchCurrent(context.Background(), "Cairo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestFetchCurrent_MissingLocationName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"location":{},"current":{"observation_time":"07:24 AM"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0)

	_, err := client.FetchCurrent(context.Background(), "Cairo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "location name")
}

func TestFetchCurrent_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "k-test", 2*time.Second, 5, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchCurrent(ctx, "Cairo")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

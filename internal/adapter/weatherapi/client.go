// Package weatherapi is the HTTP client for the observation API service.
package weatherapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/cloudbarrow/weather-warehouse-etl/internal/domain"
)

var (
	// ErrUnauthorized means the API key was missing or rejected. Not retried:
	// a bad key does not heal between attempts.
	ErrUnauthorized = errors.New("weather api: unauthorized")

	errServerError = errors.New("weather api: server error")
	errRateLimited = errors.New("weather api: rate limited")
	errBadRequest  = errors.New("weather api: bad request")
)

// Client fetches current conditions from the observation API. Transient
// failures are retried with exponential backoff behind a circuit breaker, so
// a dead upstream fails fast instead of stalling the whole run.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	logger     *slog.Logger
	clock      clockwork.Clock
}

// NewClient creates an observation API client.
func NewClient(baseURL, apiKey string, timeout time.Duration, maxRetries int, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "weather-api",
		}),
		maxRetries: maxRetries,
		logger:     logger,
		clock:      clockwork.NewRealClock(),
	}
}

// SetClock swaps the time source used to date observation times. Tests
// inject a fake for deterministic timestamps.
func (c *Client) SetClock(clk clockwork.Clock) {
	c.clock = clk
}

// FetchCurrent returns the current-conditions observation for one city.
func (c *Client) FetchCurrent(ctx context.Context, city string) (domain.Observation, error) {
	u := fmt.Sprintf("%s/weather?%s", c.baseURL, url.Values{"city": {city}}.Encode())

	body, err := c.getWithRetry(ctx, u)
	if err != nil {
		return domain.Observation{}, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return domain.Observation{}, fmt.Errorf("decode weather response for %q: %w", city, err)
	}
	return c.toObservation(env)
}

// getWithRetry issues the request through the circuit breaker, retrying rate
// limits, server errors, and transport failures with exponential backoff.
func (c *Client) getWithRetry(ctx context.Context, fullURL string) ([]byte, error) {
	backoff := 500 * time.Millisecond
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying weather api request", "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-c.clock.After(backoff):
			}
			backoff *= 2
		}

		result, err := c.breaker.Execute(func() (any, error) {
			return c.doRequest(ctx, fullURL)
		})
		if err == nil {
			return result.([]byte), nil
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("weather api request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather api request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errRateLimited
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", errServerError, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", errBadRequest, resp.StatusCode, body)
	}

	return io.ReadAll(resp.Body)
}

// retryable reports whether a failed attempt is worth repeating. Auth
// rejections, malformed requests, and context cancellation never are; rate
// limits, server errors, open-breaker trips, and transport failures all may
// clear up between attempts.
func retryable(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, errBadRequest),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// envelope mirrors the observation API's JSON response shape.
type envelope struct {
	Location struct {
		Name      string `json:"name"`
		UTCOffset string `json:"utc_offset"`
	} `json:"location"`
	Current struct {
		ObservationTime     string   `json:"observation_time"`
		Temperature         *float64 `json:"temperature"`
		WeatherDescriptions []string `json:"weather_descriptions"`
		WindSpeed           *float64 `json:"wind_speed"`
	} `json:"current"`
}

// toObservation maps the API envelope into the raw observation shape. The
// upstream reports observation_time as a clock reading ("07:24 AM"); it is
// combined with today's UTC date, matching how the loader has always dated
// readings.
func (c *Client) toObservation(env envelope) (domain.Observation, error) {
	if env.Location.Name == "" {
		return domain.Observation{}, fmt.Errorf("weather response missing location name: %w", domain.ErrMalformedObservation)
	}

	t, err := time.Parse("03:04 PM", env.Current.ObservationTime)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("parse observation_time %q: %w", env.Current.ObservationTime, err)
	}

	today := c.clock.Now().UTC()
	ts := time.Date(today.Year(), today.Month(), today.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)

	var desc *string
	if len(env.Current.WeatherDescriptions) > 0 {
		desc = &env.Current.WeatherDescriptions[0]
	}

	return domain.Observation{
		City:        env.Location.Name,
		Timestamp:   ts,
		Temperature: env.Current.Temperature,
		WindSpeed:   env.Current.WindSpeed,
		Description: desc,
		UTCOffset:   env.Location.UTCOffset,
	}, nil
}

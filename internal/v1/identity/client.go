// Package identity implements the egress HTTP client that resolves a
// bearer token to a user profile against the external identity service,
// grounded on the original fetcher's 5-attempt/1s-fixed-wait retry policy
// and wrapped in a sony/gobreaker circuit breaker — the teacher already
// carries this dependency for its own degraded-downstream handling, and a
// flaky identity service is exactly that scenario for this domain.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rymc/roomserver/internal/v1/metrics"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// UserInfo is the JSON shape the identity service returns: at least an id
// and a name (§6).
type UserInfo struct {
	ID   int32  `json:"id"`
	Name string `json:"name"`
}

// ErrCircuitOpen is returned when the breaker is open and the HTTP call was
// skipped entirely.
var ErrCircuitOpen = errors.New("identity: circuit breaker open")

const (
	maxAttempts = 5
	retryWait   = 1 * time.Second
)

// Client fetches UserInfo from an identity service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// New builds a Client against baseURL (e.g. "https://id.example.com");
// requests go to {baseURL}/me, with or without a trailing slash on baseURL.
func New(baseURL string, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	settings := gobreaker.Settings{
		Name:        "identity",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			log.Warn("circuit breaker state change", zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     log,
	}
}

// Fetch resolves token to a UserInfo, retrying transport errors and non-2xx
// responses up to maxAttempts times with a fixed retryWait between attempts,
// all inside the circuit breaker. An open breaker returns ErrCircuitOpen
// without attempting the HTTP call, and the handler treats that as an
// auth-failure (§4.M).
func (c *Client) Fetch(ctx context.Context, token string) (UserInfo, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.fetchWithRetry(ctx, token)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.IdentityRequestsTotal.WithLabelValues("circuit-open").Inc()
			return UserInfo{}, ErrCircuitOpen
		}
		return UserInfo{}, err
	}
	return result.(UserInfo), nil
}

func (c *Client) fetchWithRetry(ctx context.Context, token string) (UserInfo, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		info, err := c.fetchOnce(ctx, token)
		if err == nil {
			metrics.IdentityRequestsTotal.WithLabelValues("success").Inc()
			return info, nil
		}
		lastErr = err
		c.log.Debug("identity fetch attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt < maxAttempts {
			select {
			case <-time.After(retryWait):
			case <-ctx.Done():
				metrics.IdentityRequestsTotal.WithLabelValues("canceled").Inc()
				return UserInfo{}, ctx.Err()
			}
		}
	}
	metrics.IdentityRequestsTotal.WithLabelValues("failure").Inc()
	return UserInfo{}, fmt.Errorf("identity: fetch failed after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, token string) (UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(c.baseURL, "/")+"/me", nil)
	if err != nil {
		return UserInfo{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return UserInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return UserInfo{}, fmt.Errorf("identity: unexpected status %d", resp.StatusCode)
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return UserInfo{}, fmt.Errorf("identity: decoding response: %w", err)
	}
	return info, nil
}

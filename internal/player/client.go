// Package player runs on a playback device: it polls the backend, keeps an
// offline copy of today's schedule and decides what to play each second.
package player

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"carevoice-backend/config"
	"carevoice-backend/internal/metrics"
	"carevoice-backend/internal/wire"
)

var (
	// ErrCodeNotFound means the pairing code was never issued or already used.
	ErrCodeNotFound = errors.New("pairing code not found")
	// ErrCodeExpired means the pairing code exists but its lifetime has passed.
	ErrCodeExpired = errors.New("pairing code expired")
)

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Code)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Message)
}

// Client talks to the CareVoice backend. Every call goes through a circuit
// breaker; while it is open calls fail immediately and the player works
// from its cache.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	log     *zap.Logger
}

// NewClient creates a backend client for baseURL.
func NewClient(baseURL string, timeout time.Duration, cfg config.BreakerConfig, log *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 3
	}
	breaker := gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        "carevoice-backend",
		MaxRequests: 1,
		Timeout:     time.Duration(cfg.OpenSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A 4xx is a valid answer from a reachable backend.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("backend circuit state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{http: httpClient, breaker: breaker, log: log}
}

// Open reports whether the breaker is currently rejecting calls.
func (c *Client) Open() bool {
	return c.breaker.State() == gobreaker.StateOpen
}

func (c *Client) do(ctx context.Context, call, deviceID string, send func(*resty.Request) (*resty.Response, error)) error {
	_, err := c.breaker.Execute(func() (*resty.Response, error) {
		req := c.http.R().SetContext(ctx).SetError(&wire.ErrorResponse{})
		if deviceID != "" {
			req.SetHeader(wire.DeviceHeader, deviceID)
		}
		resp, err := send(req)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			se := &StatusError{Code: resp.StatusCode()}
			if body, ok := resp.Error().(*wire.ErrorResponse); ok {
				se.Message = body.Error
			}
			return resp, se
		}
		return resp, nil
	})
	if err != nil {
		metrics.PlayerFetchFailures.WithLabelValues(call).Inc()
		return fmt.Errorf("%s: %w", call, err)
	}
	return nil
}

// Schedule fetches today's resolved schedule for deviceID.
func (c *Client) Schedule(ctx context.Context, deviceID string) (*wire.ScheduleResponse, error) {
	var out wire.ScheduleResponse
	err := c.do(ctx, "schedule", deviceID, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParam("deviceId", deviceID).SetResult(&out).Get("/api/player/schedule")
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Emergency fetches the organization's emergency state for deviceID.
func (c *Client) Emergency(ctx context.Context, deviceID string) (*wire.EmergencyResponse, error) {
	var out wire.EmergencyResponse
	err := c.do(ctx, "emergency", deviceID, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParam("deviceId", deviceID).SetResult(&out).Get("/api/player/emergency")
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Heartbeat reports the device as alive.
func (c *Client) Heartbeat(ctx context.Context, deviceID string) error {
	return c.do(ctx, "heartbeat", deviceID, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(wire.HeartbeatRequest{DeviceID: deviceID}).Post("/api/player/heartbeat")
	})
}

// Log records the outcome of one playback attempt.
func (c *Client) Log(ctx context.Context, entry wire.LogRequest) error {
	return c.do(ctx, "log", entry.DeviceID, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(entry).Post("/api/player/log")
	})
}

// Pair exchanges a pairing code for the device identity.
func (c *Client) Pair(ctx context.Context, code string) (*wire.PairResponse, error) {
	var out wire.PairResponse
	err := c.do(ctx, "pair", "", func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(wire.PairRequest{PairingCode: code}).SetResult(&out).Post("/api/pair")
	})

	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusNotFound:
			return nil, ErrCodeNotFound
		case http.StatusGone:
			return nil, ErrCodeExpired
		}
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

package openmeteo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Backoff controls retry spacing.
type Backoff struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (b Backoff) withDefaults() Backoff {
	if b.MaxRetries < 0 {
		b.MaxRetries = 0
	}
	if b.InitialInterval <= 0 {
		b.InitialInterval = 500 * time.Millisecond
	}
	if b.MaxInterval <= 0 {
		b.MaxInterval = 5 * time.Second
	}
	return b
}

func (b Backoff) delay(attempt int) time.Duration {
	d := b.InitialInterval << attempt
	if d <= 0 || d > b.MaxInterval {
		return b.MaxInterval
	}
	return d
}

var (
	errRateLimited = errors.New("rate limited upstream")
	errServer      = errors.New("upstream server error")
	errCircuitOpen = errors.New("circuit breaker open")
)

// statusError is a non-retryable upstream rejection.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status=%d body=%s", e.status, e.body)
}

// do waits for the rate limiter, then executes the request through the
// circuit breaker, retrying throttling, server errors and transport
// failures with exponential backoff.
func (c *Client) do(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}
			payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
			resp.Body.Close()
			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				return nil, errRateLimited
			case resp.StatusCode >= 500:
				return nil, fmt.Errorf("%w: status=%d", errServer, resp.StatusCode)
			default:
				return nil, &statusError{status: resp.StatusCode, body: string(payload)}
			}
		})
		if err == nil {
			return result.(*http.Response), nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		var se *statusError
		if errors.As(err, &se) || attempt >= c.backoff.MaxRetries {
			return nil, err
		}

		timer := time.NewTimer(c.backoff.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"clearway-webhooks/internal/core/ports"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// errServerError marks a 5xx response as a breaker failure. It never leaves Send.
var errServerError = errors.New("server error")

// TransportConfig tunes HTTPTransport.
type TransportConfig struct {
	Timeout            time.Duration
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

// HTTPTransport implements ports.Transport with one circuit breaker per host.
type HTTPTransport struct {
	client HTTPClient
	cfg    TransportConfig
	log    zerolog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[int]
}

// NewHTTPTransport creates a transport. A zero Timeout falls back to 30s and a
// zero BreakerMaxFailures disables tripping.
func NewHTTPTransport(client HTTPClient, cfg TransportConfig, log zerolog.Logger) *HTTPTransport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPTransport{
		client:   client,
		cfg:      cfg,
		log:      log,
		breakers: make(map[string]*gobreaker.CircuitBreaker[int]),
	}
}

// Send performs one POST. Failures come back in SendResult.Err; a response
// with any status code is a successful send at this layer.
func (t *HTTPTransport) Send(ctx context.Context, target string, headers map[string]string, body []byte) ports.SendResult {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return ports.SendResult{Err: fmt.Errorf("invalid endpoint url %q", target)}
	}

	cb := t.breaker(u.Host)
	status, err := cb.Execute(func() (int, error) {
		code, err := t.post(ctx, target, headers, body)
		if err != nil {
			return 0, err
		}
		if code >= http.StatusInternalServerError {
			return code, errServerError
		}
		return code, nil
	})
	if errors.Is(err, errServerError) {
		return ports.SendResult{StatusCode: status}
	}
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			t.log.Warn().Str("host", u.Host).Err(err).Msg("transport: request rejected by circuit breaker")
			return ports.SendResult{Err: fmt.Errorf("circuit breaker for %s: %w", u.Host, err)}
		}
		return ports.SendResult{Err: err}
	}
	return ports.SendResult{StatusCode: status}
}

func (t *HTTPTransport) post(ctx context.Context, target string, headers map[string]string, body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("request timed out after %s", t.cfg.Timeout)
		}
		return 0, err
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused; the body itself is ignored.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.StatusCode, nil
}

func (t *HTTPTransport) breaker(host string) *gobreaker.CircuitBreaker[int] {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cb, ok := t.breakers[host]; ok {
		return cb
	}

	maxFailures := t.cfg.BreakerMaxFailures
	cb := gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     t.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return maxFailures > 0 && counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			t.log.Info().Str("host", name).Str("from", from.String()).Str("to", to.String()).Msg("transport: circuit breaker state change")
		},
	})
	t.breakers[host] = cb
	return cb
}

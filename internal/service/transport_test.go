package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_SendPostsBodyAndHeaders(t *testing.T) {
	var gotBody []byte
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.Client(), TransportConfig{Timeout: time.Second, BreakerMaxFailures: 5}, newTestLogger())
	res := tr.Send(context.Background(), srv.URL, map[string]string{
		"Content-Type":         "application/json",
		"X-Clearway-Signature": "abc",
	}, []byte(`{"a":1}`))

	require.NoError(t, res.Err)
	assert.Equal(t, http.StatusAccepted, res.StatusCode)
	assert.Equal(t, `{"a":1}`, string(gotBody))
	assert.Equal(t, "abc", gotHeader.Get("X-Clearway-Signature"))
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
}

func TestHTTPTransport_ServerErrorIsAResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.Client(), TransportConfig{Timeout: time.Second, BreakerMaxFailures: 5}, newTestLogger())
	res := tr.Send(context.Background(), srv.URL, nil, nil)

	assert.NoError(t, res.Err)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestHTTPTransport_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	tr := NewHTTPTransport(srv.Client(), TransportConfig{Timeout: 50 * time.Millisecond}, newTestLogger())
	start := time.Now()
	res := tr.Send(context.Background(), srv.URL, nil, []byte("{}"))

	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "timed out")
	assert.Zero(t, res.StatusCode)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestHTTPTransport_InvalidURL(t *testing.T) {
	tr := NewHTTPTransport(http.DefaultClient, TransportConfig{}, newTestLogger())

	res := tr.Send(context.Background(), "not a url", nil, nil)
	assert.ErrorContains(t, res.Err, "invalid endpoint url")
}

func TestHTTPTransport_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.Client(), TransportConfig{
		Timeout:            time.Second,
		BreakerMaxFailures: 3,
		BreakerOpenTimeout: time.Hour,
	}, newTestLogger())

	for range 3 {
		res := tr.Send(context.Background(), srv.URL, nil, nil)
		assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	}

	res := tr.Send(context.Background(), srv.URL, nil, nil)
	require.Error(t, res.Err)
	assert.True(t, errors.Is(res.Err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(3), hits.Load(), "open breaker must not reach the server")
}

func TestHTTPTransport_SuccessResetsFailureCount(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.Client(), TransportConfig{Timeout: time.Second, BreakerMaxFailures: 2, BreakerOpenTimeout: time.Hour}, newTestLogger())

	fail.Store(true)
	tr.Send(context.Background(), srv.URL, nil, nil)
	fail.Store(false)
	tr.Send(context.Background(), srv.URL, nil, nil)
	fail.Store(true)
	res := tr.Send(context.Background(), srv.URL, nil, nil)

	assert.NoError(t, res.Err)
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
}

func TestHTTPTransport_ClientErrorsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.Client(), TransportConfig{Timeout: time.Second, BreakerMaxFailures: 1, BreakerOpenTimeout: time.Hour}, newTestLogger())
	for range 3 {
		res := tr.Send(context.Background(), srv.URL, nil, nil)
		assert.NoError(t, res.Err)
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	}
}

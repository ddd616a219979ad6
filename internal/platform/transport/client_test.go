package transport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bs := BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Minute, Interval: time.Minute}
	return NewClient("test_remote", server.URL+"/api/", time.Second, bs, logger, opts...), server
}

func TestClient_Do_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/schedule/", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "value", body["key"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"abc"}`))
	}, WithTokenAuth("secret"))

	var out struct {
		ID string `json:"id"`
	}
	err := client.Do(context.Background(), http.MethodPost, "schedule/", url.Values{"page": {"1"}}, map[string]string{"key": "value"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "abc", out.ID)
}

func TestClient_Do_BasicAuth(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "user", user)
		assert.Equal(t, "pass", pass)
		w.WriteHeader(http.StatusNoContent)
	}, WithBasicAuth("user", "pass"))

	require.NoError(t, client.Do(context.Background(), http.MethodDelete, "message/1/", nil, nil, nil))
}

func TestClient_Do_ClassifiesFailures(t *testing.T) {
	t.Run("ServerErrorIsTransient", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		})
		err := client.Do(context.Background(), http.MethodGet, "x", nil, nil, nil)
		require.Error(t, err)
		assert.True(t, IsTransient(err))
		assert.False(t, IsPermanent(err))
	})

	t.Run("TooManyRequestsIsTransient", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
		err := client.Do(context.Background(), http.MethodGet, "x", nil, nil, nil)
		assert.True(t, IsTransient(err))
	})

	t.Run("ClientErrorIsPermanent", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad input", http.StatusBadRequest)
		})
		err := client.Do(context.Background(), http.MethodGet, "x", nil, nil, nil)
		require.Error(t, err)
		assert.True(t, IsPermanent(err))
		assert.Contains(t, err.Error(), "bad input")
	})

	t.Run("NetworkErrorIsTransient", func(t *testing.T) {
		client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
		server.Close()
		err := client.Do(context.Background(), http.MethodGet, "x", nil, nil, nil)
		assert.True(t, IsTransient(err))
	})
}

func TestClient_Do_PermanentErrorsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})
	for i := 0; i < 4; i++ {
		err := client.Do(context.Background(), http.MethodGet, "x", nil, nil, nil)
		assert.True(t, IsPermanent(err))
	}
	assert.Equal(t, int32(4), calls.Load())
}

func TestClient_Do_BreakerOpensAfterConsecutiveTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 2; i++ {
		_ = client.Do(context.Background(), http.MethodGet, "x", nil, nil, nil)
	}
	err := client.Do(context.Background(), http.MethodGet, "x", nil, nil, nil)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), calls.Load())
}

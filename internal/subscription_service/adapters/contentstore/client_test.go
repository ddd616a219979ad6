package contentstore

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamang/control_services/internal/platform/transport"
	"github.com/mamang/control_services/internal/subscription_service/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	httpClient := transport.NewClient("contentstore", server.URL+"/contentstore/", time.Second,
		transport.BreakerSettings{ConsecutiveFailures: 5, OpenTimeout: time.Minute},
		logger, transport.WithTokenAuth("cs-token"))
	return NewClient(httpClient, logger)
}

func TestClient_GetSchedule(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/contentstore/schedule/1/", r.URL.Path)
		assert.Equal(t, "Token cs-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":1,"minute":"1","hour":"6","day_of_week":"1","day_of_month":"*","month_of_year":"*"}`))
	})

	s, err := c.GetSchedule(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "1 6 * * 1", s.Cron())
}

func TestClient_Resolve(t *testing.T) {
	t.Run("first match", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/contentstore/message/":
				assert.Equal(t, "1", r.URL.Query().Get("messageset"))
				assert.Equal(t, "3", r.URL.Query().Get("sequence_number"))
				assert.Equal(t, "eng_ZA", r.URL.Query().Get("lang"))
				_, _ = w.Write([]byte(`[{"id":7,"messageset":1,"sequence_number":3,"lang":"eng_ZA"},{"id":8}]`))
			case "/contentstore/message/7/content":
				_, _ = w.Write([]byte(`{"id":7,"text_content":"Week 3","binary_content":{"content":"http://cs/media/7.mp3"}}`))
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
				w.WriteHeader(http.StatusNotFound)
			}
		})

		content, err := c.Resolve(context.Background(), 1, 3, "eng_ZA")
		require.NoError(t, err)
		assert.Equal(t, domain.MessageContent{Text: "Week 3", SpeechURL: "http://cs/media/7.mp3"}, content)
	})

	t.Run("no match", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		})

		_, err := c.Resolve(context.Background(), 1, 99, "eng_ZA")
		assert.ErrorIs(t, err, domain.ErrNoContent)
	})

	t.Run("text only", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/contentstore/message/" {
				_, _ = w.Write([]byte(`[{"id":2}]`))
				return
			}
			_, _ = w.Write([]byte(`{"id":2,"text_content":"Hello","binary_content":null}`))
		})

		content, err := c.Resolve(context.Background(), 1, 1, "eng_ZA")
		require.NoError(t, err)
		assert.Equal(t, "Hello", content.Text)
		assert.Empty(t, content.SpeechURL)
	})

	t.Run("server error is transient", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := c.Resolve(context.Background(), 1, 1, "eng_ZA")
		require.Error(t, err)
		assert.True(t, transport.IsTransient(err))
	})
}

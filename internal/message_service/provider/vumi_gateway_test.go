package provider

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamang/control_services/internal/platform/transport"
)

func newTestVumiGateway(t *testing.T, handler http.HandlerFunc) *VumiGateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := transport.NewClient("vumi", VumiBaseURL(server.URL+"/api/v1/go/http_api_nostream/", "conv-key"), time.Second,
		transport.BreakerSettings{ConsecutiveFailures: 5, OpenTimeout: time.Minute},
		logger, transport.WithBasicAuth("acc-key", "conv-token"))
	return NewVumiGateway(client, logger)
}

func TestVumiGateway_SendText_Success(t *testing.T) {
	gw := newTestVumiGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/go/http_api_nostream/conv-key/messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "acc-key", user)
		assert.Equal(t, "conv-token", pass)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "+27123", body["to_addr"])
		assert.Equal(t, "Hello", body["content"])
		assert.NotContains(t, body, "helper_metadata")

		_, _ = w.Write([]byte(`{"message_id":"vumi-1","to_addr":"+27123"}`))
	})

	id, err := gw.SendText(context.Background(), "+27123", "Hello")
	require.NoError(t, err)
	assert.Equal(t, "vumi-1", id)
}

func TestVumiGateway_SendVoice_SetsSpeechURL(t *testing.T) {
	gw := newTestVumiGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ToAddr         string `json:"to_addr"`
			Content        string `json:"content"`
			HelperMetadata struct {
				Voice struct {
					SpeechURL string `json:"speech_url"`
				} `json:"voice"`
			} `json:"helper_metadata"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "http://audio/1.mp3", body.Content)
		assert.Equal(t, "http://audio/1.mp3", body.HelperMetadata.Voice.SpeechURL)

		_, _ = w.Write([]byte(`{"message_id":"vumi-voice-1"}`))
	})

	id, err := gw.SendVoice(context.Background(), "+27123", "http://audio/1.mp3", "http://audio/1.mp3")
	require.NoError(t, err)
	assert.Equal(t, "vumi-voice-1", id)
}

func TestVumiGateway_SendText_Failures(t *testing.T) {
	t.Run("ServerErrorIsTransient", func(t *testing.T) {
		gw := newTestVumiGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		_, err := gw.SendText(context.Background(), "+27123", "Hello")
		assert.True(t, transport.IsTransient(err))
	})

	t.Run("BadRequestIsPermanent", func(t *testing.T) {
		gw := newTestVumiGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})
		_, err := gw.SendText(context.Background(), "+27123", "Hello")
		assert.True(t, transport.IsPermanent(err))
	})

	t.Run("MissingMessageIDIsPermanent", func(t *testing.T) {
		gw := newTestVumiGateway(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		})
		_, err := gw.SendText(context.Background(), "+27123", "Hello")
		assert.True(t, transport.IsPermanent(err))
	})
}

func TestVumiGateway_FireMetric(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		gw := newTestVumiGateway(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/api/v1/go/http_api_nostream/conv-key/metrics.json", r.URL.Path)
			raw, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			assert.JSONEq(t, `[["vumimessage.tries", 1, "sum"]]`, string(raw))
			_, _ = w.Write([]byte(`{"success":true,"reason":"Metrics published"}`))
		})
		require.NoError(t, gw.FireMetric(context.Background(), "vumimessage.tries", 1, "sum"))
	})

	t.Run("Rejected", func(t *testing.T) {
		gw := newTestVumiGateway(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"reason":"bad aggregator"}`))
		})
		err := gw.FireMetric(context.Background(), "vumimessage.tries", 1, "nope")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad aggregator")
	})
}

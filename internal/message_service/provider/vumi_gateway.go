package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mamang/control_services/internal/platform/transport"
)

// VumiGateway talks to the Vumi Go HTTP API of one conversation.
type VumiGateway struct {
	client *transport.Client
	logger *slog.Logger
}

// NewVumiGateway builds a gateway over client, whose base URL must be
// <api_url>/<conversation_key> with basic auth account_key:conversation_token.
func NewVumiGateway(client *transport.Client, logger *slog.Logger) *VumiGateway {
	return &VumiGateway{client: client, logger: logger.With("provider", "vumi")}
}

// VumiBaseURL joins the API root and the conversation key.
func VumiBaseURL(apiURL, conversationKey string) string {
	return strings.TrimRight(apiURL, "/") + "/" + conversationKey
}

type vumiSendRequest struct {
	ToAddr         string              `json:"to_addr"`
	Content        string              `json:"content"`
	HelperMetadata *vumiHelperMetadata `json:"helper_metadata,omitempty"`
}

type vumiHelperMetadata struct {
	Voice vumiVoice `json:"voice"`
}

type vumiVoice struct {
	SpeechURL string `json:"speech_url"`
}

type vumiSendResponse struct {
	MessageID string `json:"message_id"`
}

type vumiMetricResponse struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

func (g *VumiGateway) SendText(ctx context.Context, toAddr, content string) (string, error) {
	return g.send(ctx, vumiSendRequest{ToAddr: toAddr, Content: content})
}

func (g *VumiGateway) SendVoice(ctx context.Context, toAddr, content, speechURL string) (string, error) {
	return g.send(ctx, vumiSendRequest{
		ToAddr:         toAddr,
		Content:        content,
		HelperMetadata: &vumiHelperMetadata{Voice: vumiVoice{SpeechURL: speechURL}},
	})
}

func (g *VumiGateway) send(ctx context.Context, req vumiSendRequest) (string, error) {
	var resp vumiSendResponse
	if err := g.client.Do(ctx, http.MethodPut, "messages.json", nil, req, &resp); err != nil {
		g.logger.ErrorContext(ctx, "Vumi send failed", "error", err, "to_addr", req.ToAddr)
		return "", err
	}
	if resp.MessageID == "" {
		return "", &transport.PermanentError{Service: "vumi", StatusCode: http.StatusOK, Err: fmt.Errorf("response carried no message_id")}
	}
	g.logger.InfoContext(ctx, "Vumi accepted message", "to_addr", req.ToAddr, "gateway_message_id", resp.MessageID, "voice", req.HelperMetadata != nil)
	return resp.MessageID, nil
}

func (g *VumiGateway) FireMetric(ctx context.Context, name string, value float64, agg string) error {
	var resp vumiMetricResponse
	// The metrics endpoint takes a list of [name, value, aggregator] triples.
	body := [][]any{{name, value, agg}}
	if err := g.client.Do(ctx, http.MethodPut, "metrics.json", nil, body, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &transport.PermanentError{Service: "vumi", StatusCode: http.StatusOK, Err: fmt.Errorf("metric %q rejected: %s", name, resp.Reason)}
	}
	return nil
}

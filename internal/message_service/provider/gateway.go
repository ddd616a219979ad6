package provider

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Gateway sends messages through the delivery gateway. Failures are
// transport.TransientError or transport.PermanentError where the remote
// answered.
type Gateway interface {
	SendText(ctx context.Context, toAddr, content string) (string, error)
	SendVoice(ctx context.Context, toAddr, content, speechURL string) (string, error)
	FireMetric(ctx context.Context, name string, value float64, agg string) error
}

// LoggingGateway logs sends instead of delivering them, for local runs
// without gateway credentials.
type LoggingGateway struct {
	logger *slog.Logger
}

func NewLoggingGateway(logger *slog.Logger) *LoggingGateway {
	return &LoggingGateway{logger: logger.With("provider", "logging")}
}

func (g *LoggingGateway) SendText(ctx context.Context, toAddr, content string) (string, error) {
	id := uuid.NewString()
	g.logger.InfoContext(ctx, "Text message", "to_addr", toAddr, "content", content, "gateway_message_id", id)
	return id, nil
}

func (g *LoggingGateway) SendVoice(ctx context.Context, toAddr, content, speechURL string) (string, error) {
	id := uuid.NewString()
	g.logger.InfoContext(ctx, "Voice message", "to_addr", toAddr, "content", content, "speech_url", speechURL, "gateway_message_id", id)
	return id, nil
}

func (g *LoggingGateway) FireMetric(ctx context.Context, name string, value float64, agg string) error {
	g.logger.InfoContext(ctx, "Metric", "name", name, "value", value, "agg", agg)
	return nil
}

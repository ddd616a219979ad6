// Package scheduler creates schedules on, and acknowledges messages to, the
// external scheduler service.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/mamang/control_services/internal/platform/transport"
)

// CreateScheduleRequest registers a recurring callback for a subscription.
type CreateScheduleRequest struct {
	SubscriptionID uuid.UUID `json:"subscriptionId"`
	Frequency      string    `json:"frequency"`
	SendCounter    int       `json:"sendCounter"`
	CronDefinition string    `json:"cronDefinition"`
	Endpoint       string    `json:"endpoint"`
}

type createScheduleResponse struct {
	ID string `json:"id"`
}

// Client is a scheduler API client using basic auth.
type Client struct {
	http   *transport.Client
	logger *slog.Logger
}

func NewClient(http *transport.Client, logger *slog.Logger) *Client {
	return &Client{http: http, logger: logger.With("adapter", "scheduler")}
}

// CreateSchedule returns the scheduler's id for the new schedule.
func (c *Client) CreateSchedule(ctx context.Context, req CreateScheduleRequest) (string, error) {
	var resp createScheduleResponse
	if err := c.http.Do(ctx, http.MethodPost, "schedule/", nil, req, &resp); err != nil {
		return "", fmt.Errorf("failed to create schedule for subscription %s: %w", req.SubscriptionID, err)
	}
	if resp.ID == "" {
		return "", &transport.PermanentError{Service: "scheduler", StatusCode: http.StatusOK, Err: fmt.Errorf("response carried no schedule id")}
	}
	c.logger.InfoContext(ctx, "Created schedule", "schedule_id", resp.ID, "subscription_id", req.SubscriptionID)
	return resp.ID, nil
}

// DeleteMessage acknowledges a scheduled message so the scheduler stops
// retrying it.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	if err := c.http.Do(ctx, http.MethodDelete, "message/"+messageID+"/", nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete scheduler message %s: %w", messageID, err)
	}
	return nil
}

// Package contentstore reads message sets, messages and schedules from the
// messaging content store API.
package contentstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mamang/control_services/internal/platform/transport"
	"github.com/mamang/control_services/internal/subscription_service/domain"
)

// Message is one entry of a message set.
type Message struct {
	ID             int    `json:"id"`
	MessageSet     int    `json:"messageset"`
	SequenceNumber int    `json:"sequence_number"`
	Lang           string `json:"lang"`
}

// MessageContent is the body of a message.
type MessageContent struct {
	ID            int           `json:"id"`
	TextContent   string        `json:"text_content"`
	BinaryContent BinaryContent `json:"binary_content"`
}

// BinaryContent points at an audio file. Content is its URL.
type BinaryContent struct {
	Content string `json:"content"`
}

// Client is a content store API client. The transport client carries the
// "Token" authorization.
type Client struct {
	http   *transport.Client
	logger *slog.Logger
}

func NewClient(http *transport.Client, logger *slog.Logger) *Client {
	return &Client{http: http, logger: logger.With("adapter", "contentstore")}
}

// GetSchedule loads a cron timing template.
func (c *Client) GetSchedule(ctx context.Context, id int) (domain.CronSchedule, error) {
	var s domain.CronSchedule
	if err := c.http.Do(ctx, http.MethodGet, fmt.Sprintf("schedule/%d/", id), nil, nil, &s); err != nil {
		return domain.CronSchedule{}, fmt.Errorf("failed to get schedule %d: %w", id, err)
	}
	return s, nil
}

// GetMessages lists the messages of a message set matching sequence number and language.
func (c *Client) GetMessages(ctx context.Context, messageSetID, sequenceNumber int, lang string) ([]Message, error) {
	query := url.Values{}
	query.Set("messageset", strconv.Itoa(messageSetID))
	query.Set("sequence_number", strconv.Itoa(sequenceNumber))
	query.Set("lang", lang)

	var messages []Message
	if err := c.http.Do(ctx, http.MethodGet, "message/", query, nil, &messages); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

func (c *Client) GetMessageContent(ctx context.Context, messageID int) (MessageContent, error) {
	var content MessageContent
	if err := c.http.Do(ctx, http.MethodGet, fmt.Sprintf("message/%d/content", messageID), nil, nil, &content); err != nil {
		return MessageContent{}, fmt.Errorf("failed to get content of message %d: %w", messageID, err)
	}
	return content, nil
}

// Resolve returns the content for one position of a message set. When the
// store holds several matching messages the first is used; none is
// domain.ErrNoContent.
func (c *Client) Resolve(ctx context.Context, messageSetID, sequenceNumber int, lang string) (domain.MessageContent, error) {
	messages, err := c.GetMessages(ctx, messageSetID, sequenceNumber, lang)
	if err != nil {
		return domain.MessageContent{}, err
	}
	if len(messages) == 0 {
		c.logger.WarnContext(ctx, "No message found", "messageset", messageSetID, "sequence_number", sequenceNumber, "lang", lang)
		return domain.MessageContent{}, domain.ErrNoContent
	}
	if len(messages) > 1 {
		c.logger.WarnContext(ctx, "Several messages match, using the first", "messageset", messageSetID,
			"sequence_number", sequenceNumber, "lang", lang, "count", len(messages))
	}

	content, err := c.GetMessageContent(ctx, messages[0].ID)
	if err != nil {
		return domain.MessageContent{}, err
	}
	return domain.MessageContent{Text: content.TextContent, SpeechURL: content.BinaryContent.Content}, nil
}

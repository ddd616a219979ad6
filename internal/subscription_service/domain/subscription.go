package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionMetadata is the typed form of a subscription's metadata.
type SubscriptionMetadata struct {
	Frequency           string            `json:"frequency,omitempty"`
	SchedulerScheduleID string            `json:"scheduler_schedule_id,omitempty"`
	SchedulerMessageID  string            `json:"scheduler_message_id,omitempty"`
	Source              string            `json:"source,omitempty"`
	Extra               map[string]string `json:"extra,omitempty"`
}

// Subscription enrols a contact in a message set delivered on a schedule.
type Subscription struct {
	ID                 uuid.UUID            `json:"id"`
	ContactID          uuid.UUID            `json:"contact"`
	Version            int                  `json:"version"`
	MessageSetID       int                  `json:"messageset_id"`
	NextSequenceNumber int                  `json:"next_sequence_number"`
	Lang               string               `json:"lang"`
	Active             bool                 `json:"active"`
	Completed          bool                 `json:"completed"`
	Schedule           int                  `json:"schedule"`
	ProcessStatus      int                  `json:"process_status"`
	Metadata           SubscriptionMetadata `json:"metadata"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// NewSubscription creates an active subscription starting at sequence 1.
func NewSubscription(id, contactID uuid.UUID, messageSetID int, lang string, schedule int, metadata SubscriptionMetadata) *Subscription {
	now := time.Now().UTC()
	return &Subscription{
		ID:                 id,
		ContactID:          contactID,
		Version:            1,
		MessageSetID:       messageSetID,
		NextSequenceNumber: 1,
		Lang:               lang,
		Active:             true,
		Schedule:           schedule,
		Metadata:           metadata,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// CronSchedule is a content store timing template.
type CronSchedule struct {
	ID          int    `json:"id"`
	Minute      string `json:"minute"`
	Hour        string `json:"hour"`
	DayOfMonth  string `json:"day_of_month"`
	MonthOfYear string `json:"month_of_year"`
	DayOfWeek   string `json:"day_of_week"`
}

// Cron renders the five-field cron definition
// "minute hour day_of_month month_of_year day_of_week".
func (s CronSchedule) Cron() string {
	return s.Minute + " " + s.Hour + " " + s.DayOfMonth + " " + s.MonthOfYear + " " + s.DayOfWeek
}

// MessageContent is the payload of one message-set entry.
type MessageContent struct {
	Text      string
	SpeechURL string
}

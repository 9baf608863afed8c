package domain

import "time"

// EventType is the kind of event a reminder belongs to.
type EventType string

const (
	EventLecture    EventType = "lecture"
	EventMeeting    EventType = "meeting"
	EventConference EventType = "conference"
)

// Reminder is a scheduled notification sent to an event's audience.
type Reminder struct {
	ID                 string    `json:"id" db:"id"`
	EventID            string    `json:"event_id" db:"event_id"`
	EventType          EventType `json:"event_type" db:"event_type"`
	Recipients         []string  `json:"recipients" db:"recipients"`
	SendToParticipants bool      `json:"send_to_participants" db:"send_to_participants"`
	SendToSpeakers     bool      `json:"send_to_speakers" db:"send_to_speakers"`
	FormIDs            []string  `json:"form_ids,omitempty" db:"form_ids"`
	TagIDs             []string  `json:"tag_ids,omitempty" db:"tag_ids"`
	AllTags            bool      `json:"all_tags" db:"all_tags"`
	Subject            string    `json:"subject" db:"subject"`
	Message            string    `json:"message" db:"message"`
	ReplyToAddress     string    `json:"reply_to_address" db:"reply_to_address"`
	ScheduledAt        time.Time `json:"scheduled_at" db:"scheduled_at"`
	IsSent             bool      `json:"is_sent" db:"is_sent"`
}

// Participant is the slice of a registration that reminders care about.
type Participant struct {
	RegistrationID string   `json:"registration_id"`
	FormID         string   `json:"form_id"`
	Email          string   `json:"email"`
	TagIDs         []string `json:"tag_ids"`
}

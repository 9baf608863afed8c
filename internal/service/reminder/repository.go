package reminder

import (
	"context"

	"github.com/ignite/conference-hub/internal/domain"
)

// SpeakerSource names one of the places speakers are linked from.
type SpeakerSource string

const (
	SpeakerEventPersonLinks SpeakerSource = "event_person_links"
	SpeakerContributions    SpeakerSource = "contributions"
	SpeakerSubContributions SpeakerSource = "sub_contributions"
)

// SpeakerSources lists every source consulted for SendToSpeakers.
var SpeakerSources = []SpeakerSource{SpeakerEventPersonLinks, SpeakerContributions, SpeakerSubContributions}

// SpeakerSourcesFor returns the sources consulted for an event of type t.
// Lectures have no contributions, so only their own speakers count.
func SpeakerSourcesFor(t domain.EventType) []SpeakerSource {
	if t == domain.EventLecture {
		return SpeakerSources[:1]
	}
	return SpeakerSources
}

// Repository defines the data access contract for reminders.
type Repository interface {
	// GetReminder returns ErrNotFound if the reminder doesn't exist.
	GetReminder(ctx context.Context, id string) (*domain.Reminder, error)

	// ListParticipants returns the event's registrations in an active state,
	// leaving out those of deleted forms.
	ListParticipants(ctx context.Context, eventID string) ([]domain.Participant, error)

	// ListSpeakerEmails returns the addresses of speakers linked from source.
	ListSpeakerEmails(ctx context.Context, eventID string, source SpeakerSource) ([]string, error)

	// MarkSent flags the reminder as sent.
	MarkSent(ctx context.Context, id string) error
}

// Renderer renders a user-provided Liquid template.
type Renderer interface {
	RenderString(src string, vars map[string]any) (string, error)
}

// Notifier queues outgoing notifications.
type Notifier interface {
	Enqueue(n domain.Notification)
}

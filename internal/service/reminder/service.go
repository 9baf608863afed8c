package reminder

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ignite/conference-hub/internal/domain"
	"github.com/ignite/conference-hub/internal/pkg/logger"
)

// Service resolves reminder recipients and sends reminders.
type Service struct {
	repo     Repository
	renderer Renderer
	notifier Notifier
	log      *logger.Logger
}

// NewService creates a reminder service.
func NewService(repo Repository, renderer Renderer, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		renderer: renderer,
		notifier: notifier,
		log:      logger.With("component", "reminder"),
	}
}

// Get returns a reminder by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Reminder, error) {
	return s.repo.GetReminder(ctx, id)
}

// Recipients returns the sorted, de-duplicated addresses r goes to.
func (s *Service) Recipients(ctx context.Context, r *domain.Reminder) ([]string, error) {
	set := make(map[string]struct{})
	add := func(addrs ...string) {
		for _, a := range addrs {
			if a = strings.TrimSpace(a); a != "" {
				set[a] = struct{}{}
			}
		}
	}

	add(r.Recipients...)

	if r.SendToParticipants {
		participants, err := s.repo.ListParticipants(ctx, r.EventID)
		if err != nil {
			return nil, fmt.Errorf("list participants: %w", err)
		}
		for _, p := range participants {
			if Selects(r, p) {
				add(p.Email)
			}
		}
	}

	if r.SendToSpeakers {
		for _, src := range SpeakerSourcesFor(r.EventType) {
			emails, err := s.repo.ListSpeakerEmails(ctx, r.EventID, src)
			if err != nil {
				return nil, fmt.Errorf("list speakers from %s: %w", src, err)
			}
			add(emails...)
		}
	}

	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out, nil
}

// Selects reports whether the reminder's form and tag filters admit p.
// Empty filters admit everyone.
func Selects(r *domain.Reminder, p domain.Participant) bool {
	if len(r.FormIDs) > 0 && !contains(r.FormIDs, p.FormID) {
		return false
	}
	if len(r.TagIDs) == 0 {
		return true
	}
	for _, tag := range r.TagIDs {
		has := contains(p.TagIDs, tag)
		if r.AllTags && !has {
			return false
		}
		if !r.AllTags && has {
			return true
		}
	}
	return r.AllTags
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Send renders the reminder for every recipient, queues the messages and
// marks the reminder sent. It returns the number of messages queued.
func (s *Service) Send(ctx context.Context, id string) (int, error) {
	r, err := s.repo.GetReminder(ctx, id)
	if err != nil {
		return 0, err
	}
	if r.IsSent {
		return 0, ErrAlreadySent
	}
	recipients, err := s.Recipients(ctx, r)
	if err != nil {
		return 0, err
	}
	if len(recipients) == 0 {
		return 0, ErrNoRecipient
	}

	msgs := make([]domain.Notification, 0, len(recipients))
	for _, addr := range recipients {
		vars := map[string]any{"email": addr, "event_id": r.EventID}
		subject, err := s.renderer.RenderString(r.Subject, vars)
		if err != nil {
			return 0, fmt.Errorf("render subject: %w", err)
		}
		body, err := s.renderer.RenderString(r.Message, vars)
		if err != nil {
			return 0, fmt.Errorf("render message: %w", err)
		}
		msgs = append(msgs, domain.Notification{
			Recipient: addr,
			Template:  domain.TemplateReminder,
			ReplyTo:   r.ReplyToAddress,
			Context:   map[string]any{"subject": subject, "body": body, "event_id": r.EventID},
		})
	}

	if err := s.repo.MarkSent(ctx, r.ID); err != nil {
		return 0, fmt.Errorf("mark reminder sent: %w", err)
	}
	for _, m := range msgs {
		s.notifier.Enqueue(m)
	}
	s.log.Info("reminder sent", "reminder_id", r.ID, "event_id", r.EventID, "recipients", len(msgs))
	return len(msgs), nil
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/conference-hub/internal/domain"
	"github.com/ignite/conference-hub/internal/service/reminder"
)

var speakerQueries = map[reminder.SpeakerSource]string{
	reminder.SpeakerEventPersonLinks: `
		SELECT email FROM event_person_links
		WHERE event_id = $1`,
	reminder.SpeakerContributions: `
		SELECT pl.email
		FROM contribution_person_links pl
		JOIN contributions c ON c.id = pl.contribution_id
		WHERE c.event_id = $1 AND NOT c.is_deleted AND pl.is_speaker`,
	reminder.SpeakerSubContributions: `
		SELECT pl.email
		FROM subcontribution_person_links pl
		JOIN subcontributions sc ON sc.id = pl.subcontribution_id
		JOIN contributions c ON c.id = sc.contribution_id
		WHERE c.event_id = $1 AND NOT c.is_deleted AND NOT sc.is_deleted AND pl.is_speaker`,
}

// ReminderRepo implements reminder.Repository against PostgreSQL.
type ReminderRepo struct{ db *sql.DB }

// NewReminderRepo creates a Postgres-backed reminder repository.
func NewReminderRepo(db *sql.DB) *ReminderRepo { return &ReminderRepo{db: db} }

func (r *ReminderRepo) GetReminder(ctx context.Context, id string) (*domain.Reminder, error) {
	rem := &domain.Reminder{}
	var recipients, formIDs, tagIDs pq.StringArray
	err := r.db.QueryRowContext(ctx, `
		SELECT r.id, r.event_id, COALESCE(e.type,'conference'), r.recipients,
		       r.send_to_participants, r.send_to_speakers, r.form_ids, r.tag_ids,
		       r.all_tags, r.subject, r.message, COALESCE(r.reply_to_address,''),
		       r.scheduled_at, r.is_sent
		FROM event_reminders r
		LEFT JOIN events e ON e.id = r.event_id
		WHERE r.id = $1
	`, id).Scan(
		&rem.ID, &rem.EventID, &rem.EventType, &recipients, &rem.SendToParticipants, &rem.SendToSpeakers,
		&formIDs, &tagIDs, &rem.AllTags, &rem.Subject, &rem.Message,
		&rem.ReplyToAddress, &rem.ScheduledAt, &rem.IsSent,
	)
	if err == sql.ErrNoRows {
		return nil, reminder.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	rem.Recipients, rem.FormIDs, rem.TagIDs = recipients, formIDs, tagIDs
	return rem, nil
}

func (r *ReminderRepo) ListParticipants(ctx context.Context, eventID string) ([]domain.Participant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.form_id, r.email, r.tag_ids
		FROM registrations r
		JOIN registration_forms f ON f.id = r.form_id
		WHERE r.event_id = $1 AND NOT f.is_deleted AND r.state IN `+activeStates+`
		ORDER BY r.created_at
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		var p domain.Participant
		var tags pq.StringArray
		if err := rows.Scan(&p.RegistrationID, &p.FormID, &p.Email, &tags); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		p.TagIDs = tags
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ReminderRepo) ListSpeakerEmails(ctx context.Context, eventID string, source reminder.SpeakerSource) ([]string, error) {
	q, ok := speakerQueries[source]
	if !ok {
		return nil, fmt.Errorf("unknown speaker source %q", source)
	}
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list %s speakers: %w", source, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan speaker: %w", err)
		}
		out = append(out, email)
	}
	return out, rows.Err()
}

func (r *ReminderRepo) MarkSent(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE event_reminders SET is_sent = TRUE WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return reminder.ErrNotFound
	}
	return nil
}

package domain

import (
	"sort"
	"strings"
	"time"
)

// SubmissionValue is the canonical stored value of one form field.
type SubmissionValue struct {
	FieldID string `json:"field_id" db:"field_id"`
	Data    any    `json:"data" db:"data"`
}

// FieldChange records a stored value transition. OldPresent/NewPresent
// distinguish "no stored value" from a stored nil.
type FieldChange struct {
	Old        any  `json:"old"`
	New        any  `json:"new"`
	OldPresent bool `json:"old_present"`
	NewPresent bool `json:"new_present"`
}

// ResolvedRegistration is the outcome of one resolution pass: the complete
// value set to persist, the per-field changes against the stored values and
// the fields whose stored value must be deleted.
type ResolvedRegistration struct {
	Values  []SubmissionValue      `json:"values"`
	Diff    map[string]FieldChange `json:"diff"`
	Removed []string               `json:"removed,omitempty"`
}

// Lookup returns the resolved value for a field.
func (r *ResolvedRegistration) Lookup(fieldID string) (SubmissionValue, bool) {
	for _, v := range r.Values {
		if v.FieldID == fieldID {
			return v, true
		}
	}
	return SubmissionValue{}, false
}

// DataByField returns the resolved values keyed by field id.
func (r *ResolvedRegistration) DataByField() map[string]any {
	out := make(map[string]any, len(r.Values))
	for _, v := range r.Values {
		out[v.FieldID] = v.Data
	}
	return out
}

// ChangedFields returns the ids present in the diff, sorted.
func (r *ResolvedRegistration) ChangedFields() []string {
	ids := make([]string, 0, len(r.Diff))
	for id := range r.Diff {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RegistrationState enumerates the lifecycle states of a registration.
type RegistrationState string

const (
	RegistrationComplete  RegistrationState = "complete"
	RegistrationPending   RegistrationState = "pending"
	RegistrationUnpaid    RegistrationState = "unpaid"
	RegistrationWithdrawn RegistrationState = "withdrawn"
	RegistrationRejected  RegistrationState = "rejected"
)

// IsActive reports whether the registration still counts as a participant.
func (s RegistrationState) IsActive() bool {
	return s != RegistrationWithdrawn && s != RegistrationRejected
}

// Registration is one person's submission of a registration form.
type Registration struct {
	ID        string            `json:"id" db:"id"`
	FormID    string            `json:"form_id" db:"form_id"`
	EventID   string            `json:"event_id" db:"event_id"`
	UserID    *string           `json:"user_id" db:"user_id"`
	Email     string            `json:"email" db:"email"`
	FirstName string            `json:"first_name" db:"first_name"`
	LastName  string            `json:"last_name" db:"last_name"`
	State     RegistrationState `json:"state" db:"state"`
	TagIDs    []string          `json:"tag_ids,omitempty" db:"tag_ids"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`
}

// FullName returns "First Last".
func (r Registration) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// InvitationState enumerates invitation outcomes.
type InvitationState string

const (
	InvitationPending  InvitationState = "pending"
	InvitationAccepted InvitationState = "accepted"
	InvitationDeclined InvitationState = "declined"
)

// Invitation asks a person to register to a form.
type Invitation struct {
	ID              string          `json:"id" db:"id"`
	UUID            string          `json:"uuid" db:"uuid"`
	FormID          string          `json:"form_id" db:"form_id"`
	Email           string          `json:"email" db:"email"`
	FirstName       string          `json:"first_name" db:"first_name"`
	LastName        string          `json:"last_name" db:"last_name"`
	Affiliation     string          `json:"affiliation" db:"affiliation"`
	SkipModeration  bool            `json:"skip_moderation" db:"skip_moderation"`
	SkipAccessCheck bool            `json:"skip_access_check" db:"skip_access_check"`
	State           InvitationState `json:"state" db:"state"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// User is an account known to the platform.
type User struct {
	ID              string   `json:"id" db:"id"`
	Email           string   `json:"email" db:"email"`
	SecondaryEmails []string `json:"secondary_emails" db:"secondary_emails"`
	FirstName       string   `json:"first_name" db:"first_name"`
	LastName        string   `json:"last_name" db:"last_name"`
	Affiliation     string   `json:"affiliation" db:"affiliation"`
	Phone           string   `json:"phone" db:"phone"`
}

// AllEmails returns the primary and secondary addresses, lower-cased.
func (u User) AllEmails() []string {
	out := make([]string, 0, 1+len(u.SecondaryEmails))
	out = append(out, strings.ToLower(u.Email))
	for _, e := range u.SecondaryEmails {
		out = append(out, strings.ToLower(e))
	}
	return out
}

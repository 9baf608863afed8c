package regform

import (
	"context"

	"github.com/ignite/conference-hub/internal/domain"
)

// FormSource loads registration form definitions.
type FormSource interface {
	// GetForm returns the form with its sections and fields in order.
	// Returns ErrFormNotFound if it doesn't exist.
	GetForm(ctx context.Context, formID string) (*domain.Form, error)
}

// Repository defines the data access contract for registrations.
type Repository interface {
	// GetRegistration returns ErrNotFound if the registration doesn't exist.
	GetRegistration(ctx context.Context, registrationID string) (*domain.Registration, error)

	// GetExistingValues returns the stored field values keyed by field id.
	GetExistingValues(ctx context.Context, registrationID string) (map[string]domain.SubmissionValue, error)

	// CreateRegistration persists a new registration and all its values atomically.
	CreateRegistration(ctx context.Context, reg *domain.Registration, resolved *domain.ResolvedRegistration) error

	// CreateRegistrations persists a batch in a single transaction: either
	// every registration is stored or none is.
	CreateRegistrations(ctx context.Context, batch []*Result) error

	// Apply writes the resolved values of an existing registration atomically:
	// changed values are upserted and removed fields deleted.
	Apply(ctx context.Context, reg *domain.Registration, resolved *domain.ResolvedRegistration) error

	// LookupRegistrationByEmail returns ErrNotFound when no registration of the
	// form uses the email.
	LookupRegistrationByEmail(ctx context.Context, formID, email string) (*domain.Registration, error)

	// LookupRegistrationByUser returns ErrNotFound when the user has no
	// registration in the form.
	LookupRegistrationByUser(ctx context.Context, formID, userID string) (*domain.Registration, error)
}

// UserDirectory resolves platform accounts.
type UserDirectory interface {
	// LookupUserByEmail matches primary and secondary addresses. Returns
	// (nil, nil) when no user owns the address.
	LookupUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

// AuditSink records registration changes.
type AuditSink interface {
	RecordChanges(ctx context.Context, reg *domain.Registration, action string, changes map[string]domain.FieldChange) error
}

// Notifier queues outgoing notifications without waiting for delivery.
type Notifier interface {
	Enqueue(n domain.Notification)
}

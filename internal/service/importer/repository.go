package importer

import (
	"context"

	"github.com/ignite/conference-hub/internal/domain"
	"github.com/ignite/conference-hub/internal/service/regform"
)

// Repository is the storage used by imports.
type Repository interface {
	Index
	// CreateInvitations stores a whole batch in one transaction.
	CreateInvitations(ctx context.Context, invitations []*domain.Invitation) error
}

// Registrar creates registrations; *regform.Service satisfies it.
type Registrar interface {
	// CreateBatch stores all rows or none. A failing row is reported as a
	// *regform.BatchError.
	CreateBatch(ctx context.Context, formID string, rows []map[string]any, opts regform.SubmitOptions) ([]*regform.Result, error)
}

// Locker serializes imports per key; *distlock.Provider satisfies it.
type Locker interface {
	Run(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Notifier queues outgoing notifications.
type Notifier interface {
	Enqueue(n domain.Notification)
}

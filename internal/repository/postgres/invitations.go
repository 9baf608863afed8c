package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/conference-hub/internal/domain"
	"github.com/ignite/conference-hub/internal/service/importer"
)

// InvitationRepo implements importer.Repository against PostgreSQL. The
// registration and user lookups are delegated to the embedded repositories.
type InvitationRepo struct {
	*RegistrationRepo
	*UserRepo
	db *sql.DB
}

// NewInvitationRepo creates the repository used by CSV imports.
func NewInvitationRepo(db *sql.DB) *InvitationRepo {
	return &InvitationRepo{
		RegistrationRepo: NewRegistrationRepo(db),
		UserRepo:         NewUserRepo(db),
		db:               db,
	}
}

func (r *InvitationRepo) LookupInvitationByEmail(ctx context.Context, formID, email string) (*domain.Invitation, error) {
	inv := &domain.Invitation{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, uuid, form_id, email, first_name, last_name, COALESCE(affiliation,''),
		       skip_moderation, skip_access_check, state, created_at
		FROM registration_invitations
		WHERE form_id = $1 AND lower(email) = lower($2)
	`, formID, email).Scan(
		&inv.ID, &inv.UUID, &inv.FormID, &inv.Email, &inv.FirstName, &inv.LastName, &inv.Affiliation,
		&inv.SkipModeration, &inv.SkipAccessCheck, &inv.State, &inv.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, importer.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup invitation by email: %w", err)
	}
	return inv, nil
}

func (r *InvitationRepo) CreateInvitations(ctx context.Context, invitations []*domain.Invitation) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO registration_invitations
				(id, uuid, form_id, email, first_name, last_name, affiliation,
				 skip_moderation, skip_access_check, state, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`)
		if err != nil {
			return fmt.Errorf("prepare invitation insert: %w", err)
		}
		defer stmt.Close()
		for _, inv := range invitations {
			if _, err := stmt.ExecContext(ctx,
				inv.ID, inv.UUID, inv.FormID, inv.Email, inv.FirstName, inv.LastName, inv.Affiliation,
				inv.SkipModeration, inv.SkipAccessCheck, inv.State, inv.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert invitation %s: %w", inv.Email, err)
			}
		}
		return nil
	})
}

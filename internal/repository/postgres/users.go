package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/conference-hub/internal/domain"
)

// UserRepo implements regform.UserDirectory against PostgreSQL.
type UserRepo struct{ db *sql.DB }

// NewUserRepo creates a Postgres-backed user directory.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) LookupUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u := &domain.User{}
	var secondary pq.StringArray
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, secondary_emails, first_name, last_name,
		       COALESCE(affiliation,''), COALESCE(phone,'')
		FROM users
		WHERE NOT is_deleted
		  AND (lower(email) = lower($1) OR lower($1) = ANY(secondary_emails))
		LIMIT 1
	`, email).Scan(&u.ID, &u.Email, &secondary, &u.FirstName, &u.LastName, &u.Affiliation, &u.Phone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}
	u.SecondaryEmails = secondary
	return u, nil
}

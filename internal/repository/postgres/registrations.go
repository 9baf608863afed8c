package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/conference-hub/internal/domain"
	"github.com/ignite/conference-hub/internal/service/regform"
)

// activeStates is the SQL list of states that count as a live registration.
const activeStates = `('complete','pending','unpaid')`

const registrationColumns = `
	id, form_id, event_id, user_id, email, first_name, last_name,
	state, tag_ids, created_at, updated_at`

// RegistrationRepo implements regform.Repository against PostgreSQL.
type RegistrationRepo struct{ db *sql.DB }

// NewRegistrationRepo creates a Postgres-backed registration repository.
func NewRegistrationRepo(db *sql.DB) *RegistrationRepo { return &RegistrationRepo{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(s rowScanner) (*domain.Registration, error) {
	reg := &domain.Registration{}
	var userID sql.NullString
	var tags pq.StringArray
	if err := s.Scan(
		&reg.ID, &reg.FormID, &reg.EventID, &userID, &reg.Email,
		&reg.FirstName, &reg.LastName, &reg.State, &tags,
		&reg.CreatedAt, &reg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if userID.Valid {
		reg.UserID = &userID.String
	}
	reg.TagIDs = tags
	return reg, nil
}

func (r *RegistrationRepo) getOne(ctx context.Context, op, where string, args ...any) (*domain.Registration, error) {
	reg, err := scanRegistration(r.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE `+where, args...))
	if err == sql.ErrNoRows {
		return nil, regform.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return reg, nil
}

func (r *RegistrationRepo) GetRegistration(ctx context.Context, registrationID string) (*domain.Registration, error) {
	return r.getOne(ctx, "get registration", `id = $1`, registrationID)
}

func (r *RegistrationRepo) LookupRegistrationByEmail(ctx context.Context, formID, email string) (*domain.Registration, error) {
	return r.getOne(ctx, "lookup registration by email",
		`form_id = $1 AND lower(email) = lower($2) AND state IN `+activeStates, formID, email)
}

func (r *RegistrationRepo) LookupRegistrationByUser(ctx context.Context, formID, userID string) (*domain.Registration, error) {
	return r.getOne(ctx, "lookup registration by user",
		`form_id = $1 AND user_id = $2 AND state IN `+activeStates, formID, userID)
}

func (r *RegistrationRepo) GetExistingValues(ctx context.Context, registrationID string) (map[string]domain.SubmissionValue, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT field_id, data FROM registration_data WHERE registration_id = $1
	`, registrationID)
	if err != nil {
		return nil, fmt.Errorf("get existing values: %w", err)
	}
	defer rows.Close()

	out := map[string]domain.SubmissionValue{}
	for rows.Next() {
		var (
			v   domain.SubmissionValue
			raw []byte
		)
		if err := rows.Scan(&v.FieldID, &raw); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		if err := decodeJSON(raw, &v.Data); err != nil {
			return nil, fmt.Errorf("decode value of %s: %w", v.FieldID, err)
		}
		out[v.FieldID] = v
	}
	return out, rows.Err()
}

func (r *RegistrationRepo) CreateRegistration(ctx context.Context, reg *domain.Registration, resolved *domain.ResolvedRegistration) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return insertRegistration(ctx, tx, reg, resolved)
	})
}

func (r *RegistrationRepo) CreateRegistrations(ctx context.Context, batch []*regform.Result) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, res := range batch {
			if err := insertRegistration(ctx, tx, res.Registration, res.Resolved); err != nil {
				return fmt.Errorf("%s: %w", res.Registration.Email, err)
			}
		}
		return nil
	})
}

func insertRegistration(ctx context.Context, tx *sql.Tx, reg *domain.Registration, resolved *domain.ResolvedRegistration) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO registrations
			(id, form_id, event_id, user_id, email, first_name, last_name,
			 state, tag_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, reg.ID, reg.FormID, reg.EventID, nullString(reg.UserID), reg.Email,
		reg.FirstName, reg.LastName, reg.State, pq.Array(reg.TagIDs), reg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	for _, v := range resolved.Values {
		if err := upsertValue(ctx, tx, reg.ID, v); err != nil {
			return err
		}
	}
	return nil
}

func (r *RegistrationRepo) Apply(ctx context.Context, reg *domain.Registration, resolved *domain.ResolvedRegistration) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE registrations
			SET email = $2, first_name = $3, last_name = $4, user_id = $5, updated_at = NOW()
			WHERE id = $1
		`, reg.ID, reg.Email, reg.FirstName, reg.LastName, nullString(reg.UserID))
		if err != nil {
			return fmt.Errorf("update registration: %w", err)
		}
		for _, v := range resolved.Values {
			change, ok := resolved.Diff[v.FieldID]
			if !ok || !change.NewPresent {
				continue
			}
			if err := upsertValue(ctx, tx, reg.ID, v); err != nil {
				return err
			}
		}
		if len(resolved.Removed) > 0 {
			_, err := tx.ExecContext(ctx, `
				DELETE FROM registration_data
				WHERE registration_id = $1 AND field_id = ANY($2)
			`, reg.ID, pq.Array(resolved.Removed))
			if err != nil {
				return fmt.Errorf("delete removed values: %w", err)
			}
		}
		return nil
	})
}

func upsertValue(ctx context.Context, tx *sql.Tx, registrationID string, v domain.SubmissionValue) error {
	data, err := json.Marshal(v.Data)
	if err != nil {
		return fmt.Errorf("encode value of %s: %w", v.FieldID, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO registration_data (registration_id, field_id, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (registration_id, field_id) DO UPDATE SET data = EXCLUDED.data
	`, registrationID, v.FieldID, data)
	if err != nil {
		return fmt.Errorf("upsert value of %s: %w", v.FieldID, err)
	}
	return nil
}

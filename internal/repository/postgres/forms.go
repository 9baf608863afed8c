package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ignite/conference-hub/internal/domain"
	"github.com/ignite/conference-hub/internal/service/regform"
)

// FormRepo implements regform.FormSource against PostgreSQL.
type FormRepo struct{ db *sql.DB }

// NewFormRepo creates a Postgres-backed form source.
func NewFormRepo(db *sql.DB) *FormRepo { return &FormRepo{db: db} }

func (r *FormRepo) GetForm(ctx context.Context, formID string) (*domain.Form, error) {
	f := &domain.Form{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, event_id, title FROM registration_forms WHERE id = $1 AND NOT is_deleted
	`, formID).Scan(&f.ID, &f.EventID, &f.Title)
	if err == sql.ErrNoRows {
		return nil, regform.ErrFormNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get form: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, is_manager_only, is_enabled, is_deleted
		FROM registration_form_sections
		WHERE form_id = $1
		ORDER BY position, id
	`, formID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	index := map[string]int{}
	for rows.Next() {
		var s domain.Section
		if err := rows.Scan(&s.ID, &s.Title, &s.IsManagerOnly, &s.IsEnabled, &s.IsDeleted); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan section: %w", err)
		}
		index[s.ID] = len(f.Sections)
		f.Sections = append(f.Sections, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT fl.id, fl.section_id, fl.title, fl.input_type,
		       COALESCE(fl.personal_data_type,''), fl.choices,
		       fl.is_enabled, fl.is_deleted, fl.is_required, fl.is_manager_only,
		       COALESCE(fl.show_if_field_id,''), fl.show_if_field_values, fl.default_value
		FROM registration_form_fields fl
		JOIN registration_form_sections s ON s.id = fl.section_id
		WHERE s.form_id = $1
		ORDER BY s.position, s.id, fl.position, fl.id
	`, formID)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			fd                            domain.FieldDefinition
			choices, showValues, defValue []byte
		)
		if err := rows.Scan(
			&fd.ID, &fd.SectionID, &fd.Title, &fd.InputKind,
			&fd.PersonalDataType, &choices,
			&fd.IsEnabled, &fd.IsDeleted, &fd.IsRequired, &fd.IsManagerOnly,
			&fd.ShowIfFieldID, &showValues, &defValue,
		); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		if err := decodeJSON(choices, &fd.Choices); err != nil {
			return nil, fmt.Errorf("field %s choices: %w", fd.ID, err)
		}
		if err := decodeJSON(showValues, &fd.ShowIfFieldValues); err != nil {
			return nil, fmt.Errorf("field %s show_if values: %w", fd.ID, err)
		}
		if err := decodeJSON(defValue, &fd.DefaultValue); err != nil {
			return nil, fmt.Errorf("field %s default: %w", fd.ID, err)
		}
		i, ok := index[fd.SectionID]
		if !ok {
			continue
		}
		f.Sections[i].Fields = append(f.Sections[i].Fields, fd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	return f, nil
}

// decodeJSON leaves v untouched for NULL columns.
func decodeJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

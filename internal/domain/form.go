package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidForm is returned by Form.Validate when the field layout breaks
// the ordering rules of conditional fields.
var ErrInvalidForm = errors.New("invalid registration form")

// InputKind enumerates the input types a registration form field can have.
type InputKind string

const (
	KindBool         InputKind = "bool"
	KindCheckbox     InputKind = "checkbox"
	KindText         InputKind = "text"
	KindTextarea     InputKind = "textarea"
	KindEmail        InputKind = "email"
	KindNumber       InputKind = "number"
	KindSingleChoice InputKind = "single_choice"
	KindMultiChoice  InputKind = "multi_choice"
)

// AllInputKinds returns every supported input kind. Adding a kind here
// requires a matching coercer in the registration form service.
func AllInputKinds() []InputKind {
	return []InputKind{
		KindBool, KindCheckbox, KindText, KindTextarea,
		KindEmail, KindNumber, KindSingleChoice, KindMultiChoice,
	}
}

// IsChoice reports whether values of this kind are choice-id mappings.
func (k InputKind) IsChoice() bool {
	return k == KindSingleChoice || k == KindMultiChoice
}

// PersonalDataType marks a field as carrying one of the registrant's
// personal details.
type PersonalDataType string

const (
	PersonalEmail       PersonalDataType = "email"
	PersonalFirstName   PersonalDataType = "first_name"
	PersonalLastName    PersonalDataType = "last_name"
	PersonalAffiliation PersonalDataType = "affiliation"
	PersonalPosition    PersonalDataType = "position"
	PersonalPhone       PersonalDataType = "phone"
	PersonalAddress     PersonalDataType = "address"
	PersonalTitle       PersonalDataType = "title"
)

// Choice is one selectable option of a single or multi choice field.
type Choice struct {
	ID        string `json:"id"`
	Caption   string `json:"caption"`
	IsEnabled bool   `json:"is_enabled"`
}

// FieldDefinition describes one input of a registration form.
type FieldDefinition struct {
	ID               string           `json:"id" db:"id"`
	SectionID        string           `json:"section_id" db:"section_id"`
	Title            string           `json:"title" db:"title"`
	InputKind        InputKind        `json:"input_type" db:"input_type"`
	PersonalDataType PersonalDataType `json:"personal_data_type,omitempty" db:"personal_data_type"`
	Choices          []Choice         `json:"choices,omitempty" db:"choices"`
	IsEnabled        bool             `json:"is_enabled" db:"is_enabled"`
	IsDeleted        bool             `json:"is_deleted" db:"is_deleted"`
	IsRequired       bool             `json:"is_required" db:"is_required"`
	IsManagerOnly    bool             `json:"is_manager_only" db:"is_manager_only"`

	// ShowIfFieldID gates visibility on the resolved value of an earlier field.
	ShowIfFieldID     string `json:"show_if_field_id,omitempty" db:"show_if_field_id"`
	ShowIfFieldValues []any  `json:"show_if_field_values,omitempty" db:"show_if_field_values"`

	// DefaultValue may be nil, in which case the kind's own default applies.
	DefaultValue any `json:"default_value,omitempty" db:"default_value"`
}

// IsConditional reports whether the field has a visibility rule.
func (f FieldDefinition) IsConditional() bool {
	return f.ShowIfFieldID != ""
}

// IsPersonalData reports whether the field holds a personal detail.
func (f FieldDefinition) IsPersonalData() bool {
	return f.PersonalDataType != ""
}

// IsActive reports whether the field takes part in new resolution passes.
func (f FieldDefinition) IsActive() bool {
	return f.IsEnabled && !f.IsDeleted
}

// ChoiceByID returns the choice with the given id.
func (f FieldDefinition) ChoiceByID(id string) (Choice, bool) {
	for _, c := range f.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// Section groups fields. Its flags are inherited by every field it holds.
type Section struct {
	ID            string            `json:"id" db:"id"`
	Title         string            `json:"title" db:"title"`
	IsManagerOnly bool              `json:"is_manager_only" db:"is_manager_only"`
	IsEnabled     bool              `json:"is_enabled" db:"is_enabled"`
	IsDeleted     bool              `json:"is_deleted" db:"is_deleted"`
	Fields        []FieldDefinition `json:"fields"`
}

// Form is a registration form definition.
type Form struct {
	ID       string    `json:"id" db:"id"`
	EventID  string    `json:"event_id" db:"event_id"`
	Title    string    `json:"title" db:"title"`
	Sections []Section `json:"sections"`
}

// FieldsInOrder flattens the sections into the static evaluation order.
// Section flags are folded into the returned field copies.
func (f *Form) FieldsInOrder() []FieldDefinition {
	var out []FieldDefinition
	for _, s := range f.Sections {
		for _, fd := range s.Fields {
			fd.SectionID = s.ID
			if s.IsManagerOnly {
				fd.IsManagerOnly = true
			}
			if !s.IsEnabled {
				fd.IsEnabled = false
			}
			if s.IsDeleted {
				fd.IsDeleted = true
			}
			out = append(out, fd)
		}
	}
	return out
}

// ActiveFields returns the enabled, non-deleted fields in evaluation order.
func (f *Form) ActiveFields() []FieldDefinition {
	var out []FieldDefinition
	for _, fd := range f.FieldsInOrder() {
		if fd.IsActive() {
			out = append(out, fd)
		}
	}
	return out
}

// PersonalDataField returns the active field holding the given personal detail.
func (f *Form) PersonalDataField(t PersonalDataType) (FieldDefinition, bool) {
	for _, fd := range f.ActiveFields() {
		if fd.PersonalDataType == t {
			return fd, true
		}
	}
	return FieldDefinition{}, false
}

// Validate checks field id uniqueness and that every visibility rule points
// at a field declared earlier. Deleted fields still count as declared.
func (f *Form) Validate() error {
	fields := f.FieldsInOrder()
	pos := make(map[string]int, len(fields))
	for i, fd := range fields {
		if fd.ID == "" {
			return fmt.Errorf("%w: field at position %d has no id", ErrInvalidForm, i+1)
		}
		if _, dup := pos[fd.ID]; dup {
			return fmt.Errorf("%w: duplicate field id %q", ErrInvalidForm, fd.ID)
		}
		pos[fd.ID] = i
	}
	for i, fd := range fields {
		if !fd.IsConditional() {
			continue
		}
		ref, ok := pos[fd.ShowIfFieldID]
		if !ok {
			return fmt.Errorf("%w: field %q is conditional on unknown field %q", ErrInvalidForm, fd.ID, fd.ShowIfFieldID)
		}
		if ref >= i {
			return fmt.Errorf("%w: field %q is conditional on later field %q", ErrInvalidForm, fd.ID, fd.ShowIfFieldID)
		}
	}
	return nil
}

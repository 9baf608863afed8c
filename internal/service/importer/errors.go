package importer

import (
	"errors"
	"fmt"
)

// ErrImport is wrapped by every row-addressed import failure.
var ErrImport = errors.New("import failed")

// ErrNotFound is returned by invitation lookups with no match.
var ErrNotFound = errors.New("invitation not found")

// ErrLocked means another import for the same form is running.
var ErrLocked = errors.New("an import for this form is already running")

// MalformedRowError is a row whose column count does not match.
type MalformedRowError struct {
	Row      int
	Expected int
	Got      int
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("Row %d: malformed (expected %d columns, got %d)", e.Row, e.Expected, e.Got)
}

func (e *MalformedRowError) Unwrap() error { return ErrImport }

// MissingEmailError is a row without an email address.
type MissingEmailError struct{ Row int }

func (e *MissingEmailError) Error() string { return fmt.Sprintf("Row %d: missing e-mail", e.Row) }

func (e *MissingEmailError) Unwrap() error { return ErrImport }

// InvalidEmailError is a row whose email address is not valid.
type InvalidEmailError struct {
	Row   int
	Email string
}

func (e *InvalidEmailError) Error() string {
	return fmt.Sprintf("Row %d: invalid e-mail (%s)", e.Row, e.Email)
}

func (e *InvalidEmailError) Unwrap() error { return ErrImport }

// MissingFieldError is a row lacking a required column value.
type MissingFieldError struct {
	Row    int
	Column string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("Row %d: missing %s", e.Row, columnLabel(e.Column))
}

func (e *MissingFieldError) Unwrap() error { return ErrImport }

// DuplicateEmailError is an email already used by an earlier row of the batch.
type DuplicateEmailError struct {
	Row      int
	PriorRow int
}

func (e *DuplicateEmailError) Error() string {
	return fmt.Sprintf("Row %d: email address is not unique (see row %d)", e.Row, e.PriorRow)
}

func (e *DuplicateEmailError) Unwrap() error { return ErrImport }

// DuplicateUserError is an email owned by the same user as an earlier row.
type DuplicateUserError struct {
	Row      int
	PriorRow int
}

func (e *DuplicateUserError) Error() string {
	return fmt.Sprintf("Row %d: email address belongs to the same user as in row %d", e.Row, e.PriorRow)
}

func (e *DuplicateUserError) Unwrap() error { return ErrImport }

// DuplicateRegistrationError is a row that would register someone twice.
type DuplicateRegistrationError struct {
	Row    int
	ByUser bool
}

func (e *DuplicateRegistrationError) Error() string {
	if e.ByUser {
		return fmt.Sprintf("Row %d: a registration for this user already exists", e.Row)
	}
	return fmt.Sprintf("Row %d: a registration with this email already exists", e.Row)
}

func (e *DuplicateRegistrationError) Unwrap() error { return ErrImport }

// DuplicateInvitationError is a row whose email was already invited.
type DuplicateInvitationError struct{ Row int }

func (e *DuplicateInvitationError) Error() string {
	return fmt.Sprintf("Row %d: an invitation for this user already exists", e.Row)
}

func (e *DuplicateInvitationError) Unwrap() error { return ErrImport }

func columnLabel(column string) string {
	switch column {
	case ColumnFirstName:
		return "first name"
	case ColumnLastName:
		return "last name"
	}
	return column
}

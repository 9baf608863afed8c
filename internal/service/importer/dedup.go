package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/conference-hub/internal/domain"
	"github.com/ignite/conference-hub/internal/service/regform"
)

// Flavour selects which storage conflicts a batch is checked against.
type Flavour int

const (
	// FlavourUsers only checks the batch against itself.
	FlavourUsers Flavour = iota
	// FlavourRegistrations also rejects people already registered.
	FlavourRegistrations
	// FlavourInvitations also rejects people already invited.
	FlavourInvitations
)

func (f Flavour) String() string {
	switch f {
	case FlavourRegistrations:
		return "registrations"
	case FlavourInvitations:
		return "invitations"
	}
	return "users"
}

// Config controls the handling of rows that clash with stored data.
type Config struct {
	// SkipExisting drops rows matching an existing registration or
	// invitation instead of failing the batch. Duplicates inside the batch
	// always fail it.
	SkipExisting bool `yaml:"skip_existing"`
}

// Index answers the identity and conflict lookups of a batch.
type Index interface {
	// LookupUserByEmail returns (nil, nil) when no user owns the address.
	LookupUserByEmail(ctx context.Context, email string) (*domain.User, error)
	// LookupRegistrationByEmail returns regform.ErrNotFound on no match.
	LookupRegistrationByEmail(ctx context.Context, formID, email string) (*domain.Registration, error)
	// LookupRegistrationByUser returns regform.ErrNotFound on no match.
	LookupRegistrationByUser(ctx context.Context, formID, userID string) (*domain.Registration, error)
	// LookupInvitationByEmail returns ErrNotFound on no match.
	LookupInvitationByEmail(ctx context.Context, formID, email string) (*domain.Invitation, error)
}

// Candidate is a row that passed deduplication.
type Candidate struct {
	Row    int
	Record domain.ImportRecord
	// User is the account owning the row's email, if any.
	User *domain.User
}

// Deduplicator filters a parsed batch against itself and storage.
type Deduplicator struct {
	cfg     Config
	flavour Flavour
	formID  string
}

// NewDeduplicator creates a deduplicator for one batch kind. formID is
// ignored for FlavourUsers.
func NewDeduplicator(cfg Config, flavour Flavour, formID string) *Deduplicator {
	return &Deduplicator{cfg: cfg, flavour: flavour, formID: formID}
}

// Process checks rows in order. It returns the accepted candidates in their
// original order and the number of rows skipped because of SkipExisting.
func (d *Deduplicator) Process(ctx context.Context, rows []domain.ImportRecord, index Index) ([]Candidate, int, error) {
	seenEmail := make(map[string]int, len(rows))
	seenUser := make(map[string]int, len(rows))
	var accepted []Candidate
	skipped := 0

	for i, rec := range rows {
		row := i + 1
		addr := rec.Email()

		if prior, ok := seenEmail[addr]; ok {
			return nil, 0, &DuplicateEmailError{Row: row, PriorRow: prior}
		}
		user, err := index.LookupUserByEmail(ctx, addr)
		if err != nil {
			return nil, 0, fmt.Errorf("row %d: lookup user: %w", row, err)
		}
		if user != nil {
			if prior, ok := seenUser[user.ID]; ok {
				return nil, 0, &DuplicateUserError{Row: row, PriorRow: prior}
			}
		}

		if err := d.checkStorage(ctx, row, addr, user, index); err != nil {
			if !d.cfg.SkipExisting || !errors.Is(err, ErrImport) {
				return nil, 0, err
			}
			skipped++
			continue
		}

		seenEmail[addr] = row
		if user != nil {
			seenUser[user.ID] = row
		}
		accepted = append(accepted, Candidate{Row: row, Record: rec, User: user})
	}
	return accepted, skipped, nil
}

// checkStorage reports a clash with stored data as an ErrImport error. Any
// other error is a failed lookup.
func (d *Deduplicator) checkStorage(ctx context.Context, row int, addr string, user *domain.User, index Index) error {
	if d.flavour == FlavourUsers {
		return nil
	}

	found, err := exists(index.LookupRegistrationByEmail(ctx, d.formID, addr))
	if err != nil {
		return fmt.Errorf("row %d: lookup registration: %w", row, err)
	}
	if found {
		return &DuplicateRegistrationError{Row: row}
	}
	if user != nil {
		found, err := exists(index.LookupRegistrationByUser(ctx, d.formID, user.ID))
		if err != nil {
			return fmt.Errorf("row %d: lookup registration: %w", row, err)
		}
		if found {
			return &DuplicateRegistrationError{Row: row, ByUser: true}
		}
	}

	if d.flavour == FlavourInvitations {
		_, err := index.LookupInvitationByEmail(ctx, d.formID, addr)
		switch {
		case err == nil:
			return &DuplicateInvitationError{Row: row}
		case !errors.Is(err, ErrNotFound):
			return fmt.Errorf("row %d: lookup invitation: %w", row, err)
		}
	}
	return nil
}

func exists(_ *domain.Registration, err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, regform.ErrNotFound):
		return false, nil
	}
	return false, err
}

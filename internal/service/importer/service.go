package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/conference-hub/internal/domain"
	"github.com/ignite/conference-hub/internal/metrics"
	"github.com/ignite/conference-hub/internal/pkg/distlock"
	"github.com/ignite/conference-hub/internal/pkg/logger"
	"github.com/ignite/conference-hub/internal/service/regform"
)

// RegistrationOptions tunes a registration import.
type RegistrationOptions struct {
	SkipExisting bool
	NotifyUser   bool
}

// InvitationOptions tunes an invitation import.
type InvitationOptions struct {
	SkipExisting    bool
	SkipModeration  bool
	SkipAccessCheck bool
	// Sender, Subject and Body are handed to the invitation template.
	Sender  string
	Subject string
	Body    string
}

// RegistrationsResult is the outcome of a registration import.
type RegistrationsResult struct {
	Registrations []*domain.Registration `json:"registrations"`
	Skipped       int                    `json:"skipped"`
}

// InvitationsResult is the outcome of an invitation import.
type InvitationsResult struct {
	Invitations []*domain.Invitation `json:"invitations"`
	Skipped     int                  `json:"skipped"`
}

// Service runs CSV imports.
type Service struct {
	forms     regform.FormSource
	repo      Repository
	registrar Registrar
	locks     Locker
	notifier  Notifier
	metrics   *metrics.Metrics
	log       *logger.Logger
	now       func() time.Time
}

// NewService creates an import service. notifier and m may be nil.
func NewService(forms regform.FormSource, repo Repository, registrar Registrar, locks Locker, notifier Notifier, m *metrics.Metrics) *Service {
	return &Service{
		forms:     forms,
		repo:      repo,
		registrar: registrar,
		locks:     locks,
		notifier:  notifier,
		metrics:   m,
		log:       logger.With("component", "importer"),
		now:       time.Now,
	}
}

// ImportUsers parses user records used to prefill forms. The batch is only
// checked against itself.
func (s *Service) ImportUsers(ctx context.Context, r io.Reader, columns []string) ([]domain.ImportRecord, error) {
	records, err := s.parse(r, columns)
	if err == nil {
		_, _, err = NewDeduplicator(Config{}, FlavourUsers, "").Process(ctx, records, s.repo)
	}
	s.observe(FlavourUsers, len(records), 0, err)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ImportRegistrations registers every row of r to formID. The rows are
// stored together or not at all.
func (s *Service) ImportRegistrations(ctx context.Context, formID string, r io.Reader, opts RegistrationOptions) (*RegistrationsResult, error) {
	var res *RegistrationsResult
	err := s.withFormLock(ctx, formID, func(ctx context.Context) error {
		form, err := s.forms.GetForm(ctx, formID)
		if err != nil {
			return err
		}
		records, err := s.parse(r, RegistrationColumns)
		if err != nil {
			return err
		}
		accepted, skipped, err := NewDeduplicator(Config{SkipExisting: opts.SkipExisting}, FlavourRegistrations, formID).Process(ctx, records, s.repo)
		if err != nil {
			return err
		}

		rows := make([]map[string]any, len(accepted))
		for i, c := range accepted {
			rows[i] = registrationData(form, c.Record)
		}
		created, err := s.registrar.CreateBatch(ctx, formID, rows,
			regform.SubmitOptions{Management: true, NotifyUser: opts.NotifyUser})
		var berr *regform.BatchError
		if errors.As(err, &berr) && berr.Index < len(accepted) {
			return fmt.Errorf("Row %d: %w", accepted[berr.Index].Row, berr.Err)
		}
		if err != nil {
			return err
		}

		res = &RegistrationsResult{Skipped: skipped}
		for _, c := range created {
			res.Registrations = append(res.Registrations, c.Registration)
		}
		return nil
	})

	accepted, skipped := 0, 0
	if res != nil {
		accepted, skipped = len(res.Registrations), res.Skipped
	}
	s.observe(FlavourRegistrations, accepted, skipped, err)
	if err != nil {
		return nil, err
	}
	s.log.Info("registrations imported", "form_id", formID, "created", accepted, "skipped", skipped)
	return res, nil
}

// ImportInvitations invites every row of r to formID and queues one
// invitation message per created invitation.
func (s *Service) ImportInvitations(ctx context.Context, formID string, r io.Reader, opts InvitationOptions) (*InvitationsResult, error) {
	var res *InvitationsResult
	err := s.withFormLock(ctx, formID, func(ctx context.Context) error {
		form, err := s.forms.GetForm(ctx, formID)
		if err != nil {
			return err
		}
		records, err := s.parse(r, InvitationColumns)
		if err != nil {
			return err
		}
		accepted, skipped, err := NewDeduplicator(Config{SkipExisting: opts.SkipExisting}, FlavourInvitations, formID).Process(ctx, records, s.repo)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		res = &InvitationsResult{Skipped: skipped}
		for _, c := range accepted {
			res.Invitations = append(res.Invitations, &domain.Invitation{
				ID:              uuid.New().String(),
				UUID:            uuid.New().String(),
				FormID:          form.ID,
				Email:           c.Record.Email(),
				FirstName:       c.Record.Get(ColumnFirstName),
				LastName:        c.Record.Get(ColumnLastName),
				Affiliation:     c.Record.Get(ColumnAffiliation),
				SkipModeration:  opts.SkipModeration,
				SkipAccessCheck: opts.SkipAccessCheck,
				State:           domain.InvitationPending,
				CreatedAt:       now,
			})
		}
		if len(res.Invitations) == 0 {
			return nil
		}
		if err := s.repo.CreateInvitations(ctx, res.Invitations); err != nil {
			return fmt.Errorf("create invitations: %w", err)
		}
		for _, inv := range res.Invitations {
			s.notifyInvitation(form, inv, opts)
		}
		return nil
	})

	accepted, skipped := 0, 0
	if res != nil {
		accepted, skipped = len(res.Invitations), res.Skipped
	}
	s.observe(FlavourInvitations, accepted, skipped, err)
	if err != nil {
		return nil, err
	}
	s.log.Info("invitations imported", "form_id", formID, "created", accepted, "skipped", skipped)
	return res, nil
}

func (s *Service) parse(r io.Reader, columns []string) ([]domain.ImportRecord, error) {
	records, err := ParseRecords(r, columns)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(records, ColumnFirstName, ColumnLastName); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Service) withFormLock(ctx context.Context, formID string, fn func(ctx context.Context) error) error {
	if s.locks == nil {
		return fn(ctx)
	}
	err := s.locks.Run(ctx, formID, fn)
	if errors.Is(err, distlock.ErrNotAcquired) {
		s.log.Warn("import lock busy", "form_id", formID)
		return ErrLocked
	}
	return err
}

func (s *Service) observe(f Flavour, accepted, skipped int, err error) {
	s.metrics.ObserveImport(f.String(), accepted, skipped, err)
	if err != nil && errors.Is(err, ErrImport) {
		s.log.Info("import rejected", "kind", f.String(), "error", err)
	}
}

func (s *Service) notifyInvitation(form *domain.Form, inv *domain.Invitation, opts InvitationOptions) {
	if s.notifier == nil {
		return
	}
	s.notifier.Enqueue(domain.Notification{
		Recipient: inv.Email,
		Template:  domain.TemplateInvitation,
		ReplyTo:   opts.Sender,
		Context: map[string]any{
			"invitation_uuid": inv.UUID,
			"first_name":      inv.FirstName,
			"last_name":       inv.LastName,
			"affiliation":     inv.Affiliation,
			"form_title":      form.Title,
			"subject":         opts.Subject,
			"body":            opts.Body,
		},
	})
}

// registrationData maps import columns onto the form's personal data fields.
// Columns with no matching field are dropped.
func registrationData(form *domain.Form, rec domain.ImportRecord) map[string]any {
	raw := make(map[string]any, len(rec))
	for column, value := range rec {
		if f, ok := form.PersonalDataField(domain.PersonalDataType(column)); ok {
			raw[f.ID] = value
		}
	}
	return raw
}

package regform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/conference-hub/internal/domain"
	"github.com/ignite/conference-hub/internal/metrics"
	"github.com/ignite/conference-hub/internal/pkg/email"
	"github.com/ignite/conference-hub/internal/pkg/logger"
)

// SubmitOptions describes the context of a submission.
type SubmitOptions struct {
	Management bool
	NotifyUser bool
}

// Result is what a create or modify call hands back to its caller.
type Result struct {
	Registration *domain.Registration         `json:"registration"`
	Resolved     *domain.ResolvedRegistration `json:"resolved"`
}

// Service implements registration create/modify on top of the Resolver.
type Service struct {
	forms    FormSource
	repo     Repository
	users    UserDirectory
	resolver *Resolver
	audit    AuditSink
	notifier Notifier
	metrics  *metrics.Metrics
	log      *logger.Logger
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithAudit records every diff in sink.
func WithAudit(sink AuditSink) Option { return func(s *Service) { s.audit = sink } }

// WithNotifier sends confirmations through n.
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithMetrics publishes resolution metrics.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithLogger overrides the service logger.
func WithLogger(l *logger.Logger) Option { return func(s *Service) { s.log = l } }

// NewService creates a registration service.
func NewService(cfg Config, forms FormSource, repo Repository, users UserDirectory, opts ...Option) *Service {
	s := &Service{
		forms:    forms,
		repo:     repo,
		users:    users,
		resolver: NewResolver(cfg),
		log:      logger.With("component", "regform"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolver exposes the underlying resolution engine.
func (s *Service) Resolver() *Resolver { return s.resolver }

// Create registers a new person to formID with the submitted data.
func (s *Service) Create(ctx context.Context, formID string, raw map[string]any, opts SubmitOptions) (*Result, error) {
	form, err := s.loadForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	res, err := s.prepare(ctx, form, raw, opts)
	if err != nil {
		return nil, err
	}
	reg := res.Registration
	if err := s.repo.CreateRegistration(ctx, reg, res.Resolved); err != nil {
		return nil, fmt.Errorf("create registration: %w", err)
	}
	s.log.Info("registration created", "registration_id", reg.ID, "form_id", reg.FormID, "email", reg.Email, "management", opts.Management)

	if opts.NotifyUser {
		s.notify(domain.TemplateRegistrationConfirmation, reg, form, res.Resolved)
	}
	return res, nil
}

// CreateBatch registers one person per entry of rows. Every entry is
// resolved and checked before anything is written, and the batch is stored
// in one transaction. A failing entry is reported as a *BatchError.
func (s *Service) CreateBatch(ctx context.Context, formID string, rows []map[string]any, opts SubmitOptions) ([]*Result, error) {
	form, err := s.loadForm(ctx, formID)
	if err != nil {
		return nil, err
	}

	batch := make([]*Result, 0, len(rows))
	emails := make(map[string]bool, len(rows))
	users := make(map[string]bool, len(rows))
	for i, raw := range rows {
		res, err := s.prepare(ctx, form, raw, opts)
		if err != nil {
			return nil, &BatchError{Index: i, Err: err}
		}
		reg := res.Registration
		if emails[reg.Email] {
			return nil, &BatchError{Index: i, Err: fmt.Errorf("%w: a registration with this email already exists", ErrAlreadyRegistered)}
		}
		emails[reg.Email] = true
		if reg.UserID != nil {
			if users[*reg.UserID] {
				return nil, &BatchError{Index: i, Err: fmt.Errorf("%w: a registration for this user already exists", ErrAlreadyRegistered)}
			}
			users[*reg.UserID] = true
		}
		batch = append(batch, res)
	}
	if len(batch) == 0 {
		return batch, nil
	}

	if err := s.repo.CreateRegistrations(ctx, batch); err != nil {
		return nil, fmt.Errorf("create registrations: %w", err)
	}
	s.log.Info("registrations created", "form_id", form.ID, "count", len(batch), "management", opts.Management)

	if opts.NotifyUser {
		for _, res := range batch {
			s.notify(domain.TemplateRegistrationConfirmation, res.Registration, form, res.Resolved)
		}
	}
	return batch, nil
}

// prepare resolves raw against form and builds the registration it would
// create, without storing anything.
func (s *Service) prepare(ctx context.Context, form *domain.Form, raw map[string]any, opts SubmitOptions) (*Result, error) {
	mode := Mode{Action: ActionCreate, Management: opts.Management}
	resolved, err := s.resolve(form.FieldsInOrder(), raw, mode, nil)
	if err != nil {
		return nil, err
	}

	reg := &domain.Registration{
		ID:        uuid.New().String(),
		FormID:    form.ID,
		EventID:   form.EventID,
		State:     domain.RegistrationComplete,
		CreatedAt: s.now().UTC(),
	}
	reg.UpdatedAt = reg.CreatedAt
	if err := applyPersonalData(form, resolved, reg); err != nil {
		return nil, err
	}
	if err := s.checkAvailable(ctx, reg); err != nil {
		return nil, err
	}
	return &Result{Registration: reg, Resolved: resolved}, nil
}

// Modify applies raw to an existing registration. Fields omitted from raw
// keep their stored value.
func (s *Service) Modify(ctx context.Context, registrationID string, raw map[string]any, opts SubmitOptions) (*Result, error) {
	reg, err := s.repo.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	form, err := s.loadForm(ctx, reg.FormID)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.GetExistingValues(ctx, reg.ID)
	if err != nil {
		return nil, fmt.Errorf("load existing values: %w", err)
	}

	fields := form.FieldsInOrder()
	mode := Mode{Action: ActionModify, Management: opts.Management}
	resolved, err := s.resolve(fields, raw, mode, existing)
	if err != nil {
		return nil, err
	}

	previousEmail := reg.Email
	if err := applyPersonalData(form, resolved, reg); err != nil {
		return nil, err
	}
	if reg.Email != previousEmail {
		if err := s.checkAvailable(ctx, reg); err != nil {
			return nil, err
		}
	}
	reg.UpdatedAt = s.now().UTC()

	if err := s.repo.Apply(ctx, reg, resolved); err != nil {
		return nil, fmt.Errorf("apply registration changes: %w", err)
	}

	if len(resolved.Diff) > 0 {
		s.log.Info("registration modified", "registration_id", reg.ID, "changed_fields", len(resolved.Diff), "management", opts.Management)
		if s.audit != nil {
			if err := s.audit.RecordChanges(ctx, reg, mode.Action.String(), resolved.Diff); err != nil {
				s.log.Warn("audit record failed", "registration_id", reg.ID, "error", err)
			}
		}
		if opts.NotifyUser {
			s.notify(domain.TemplateRegistrationModified, reg, form, resolved)
		}
	}
	return &Result{Registration: reg, Resolved: resolved}, nil
}

func (s *Service) resolve(fields []domain.FieldDefinition, raw map[string]any, mode Mode, existing map[string]domain.SubmissionValue) (*domain.ResolvedRegistration, error) {
	resolved, err := s.resolver.Resolve(fields, raw, mode, existing)
	if err == nil {
		err = s.resolver.CheckRequired(fields, resolved, mode)
	}
	if err != nil {
		s.metrics.ObserveResolution(mode.Action.String(), mode.Management, 0, err)
		return nil, err
	}
	s.metrics.ObserveResolution(mode.Action.String(), mode.Management, len(resolved.Diff), nil)
	return resolved, nil
}

func (s *Service) loadForm(ctx context.Context, formID string) (*domain.Form, error) {
	form, err := s.forms.GetForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	if err := form.Validate(); err != nil {
		return nil, err
	}
	return form, nil
}

// checkAvailable links the registration to the owner of its email and makes
// sure neither the email nor the user is registered already.
func (s *Service) checkAvailable(ctx context.Context, reg *domain.Registration) error {
	if other, err := s.repo.LookupRegistrationByEmail(ctx, reg.FormID, reg.Email); err == nil {
		if other.ID != reg.ID {
			return fmt.Errorf("%w: a registration with this email already exists", ErrAlreadyRegistered)
		}
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("lookup registration by email: %w", err)
	}

	user, err := s.users.LookupUserByEmail(ctx, reg.Email)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		reg.UserID = nil
		return nil
	}
	if other, err := s.repo.LookupRegistrationByUser(ctx, reg.FormID, user.ID); err == nil {
		if other.ID != reg.ID {
			return fmt.Errorf("%w: a registration for this user already exists", ErrAlreadyRegistered)
		}
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("lookup registration by user: %w", err)
	}
	reg.UserID = &user.ID
	return nil
}

// applyPersonalData copies email and names from personal data fields onto reg.
func applyPersonalData(form *domain.Form, resolved *domain.ResolvedRegistration, reg *domain.Registration) error {
	for _, target := range []struct {
		kind domain.PersonalDataType
		dst  *string
	}{
		{domain.PersonalEmail, &reg.Email},
		{domain.PersonalFirstName, &reg.FirstName},
		{domain.PersonalLastName, &reg.LastName},
	} {
		f, ok := form.PersonalDataField(target.kind)
		if !ok {
			continue
		}
		if v, ok := resolved.Lookup(f.ID); ok {
			if str, ok := v.Data.(string); ok {
				*target.dst = str
			}
		}
	}
	reg.Email = email.Normalize(reg.Email)
	if reg.Email == "" {
		f, _ := form.PersonalDataField(domain.PersonalEmail)
		return &ValidationError{FieldID: f.ID, Title: f.Title, Reason: "an email address is required"}
	}
	return nil
}

func (s *Service) notify(template string, reg *domain.Registration, form *domain.Form, resolved *domain.ResolvedRegistration) {
	if s.notifier == nil {
		return
	}
	s.notifier.Enqueue(domain.Notification{
		Recipient: reg.Email,
		Template:  template,
		Context: map[string]any{
			"registration_id": reg.ID,
			"first_name":      reg.FirstName,
			"last_name":       reg.LastName,
			"full_name":       reg.FullName(),
			"form_title":      form.Title,
			"changed_fields":  resolved.ChangedFields(),
		},
	})
}

// EmailStatus is the outcome of CheckEmail.
type EmailStatus string

const (
	EmailOK                    EmailStatus = "ok"
	EmailInvalid               EmailStatus = "invalid"
	EmailAlreadyRegistered     EmailStatus = "already_registered"
	EmailAlreadyRegisteredUser EmailStatus = "already_registered_user"
)

// EmailCheck describes whether an address can be used for a registration.
type EmailCheck struct {
	Status EmailStatus  `json:"status"`
	User   *domain.User `json:"user,omitempty"`
}

// CheckEmail reports whether addr may be used in formID. registrationID is
// the registration being edited, or empty for a new one.
func (s *Service) CheckEmail(ctx context.Context, formID, addr, registrationID string) (*EmailCheck, error) {
	addr = email.Normalize(addr)
	if !email.IsValid(addr) {
		return &EmailCheck{Status: EmailInvalid}, nil
	}

	other, err := s.repo.LookupRegistrationByEmail(ctx, formID, addr)
	switch {
	case err == nil && other.ID != registrationID:
		return &EmailCheck{Status: EmailAlreadyRegistered}, nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("lookup registration by email: %w", err)
	}

	user, err := s.users.LookupUserByEmail(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return &EmailCheck{Status: EmailOK}, nil
	}
	other, err = s.repo.LookupRegistrationByUser(ctx, formID, user.ID)
	switch {
	case err == nil && other.ID != registrationID:
		return &EmailCheck{Status: EmailAlreadyRegisteredUser, User: user}, nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("lookup registration by user: %w", err)
	}
	return &EmailCheck{Status: EmailOK, User: user}, nil
}

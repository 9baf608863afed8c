package importer_test

import (
	"context"
	"strings"
	"sync"

	"github.com/ignite/conference-hub/internal/domain"
	"github.com/ignite/conference-hub/internal/service/importer"
	"github.com/ignite/conference-hub/internal/service/regform"
)

// memIndex is an in-memory import repository for unit testing.
type memIndex struct {
	mu          sync.Mutex
	users       []domain.User
	regs        []domain.Registration
	invitations []*domain.Invitation
	failLookup  error
}

func (m *memIndex) LookupUserByEmail(_ context.Context, email string) (*domain.User, error) {
	if m.failLookup != nil {
		return nil, m.failLookup
	}
	for _, u := range m.users {
		for _, e := range u.AllEmails() {
			if e == strings.ToLower(email) {
				cp := u
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (m *memIndex) LookupRegistrationByEmail(_ context.Context, formID, email string) (*domain.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.regs {
		if m.regs[i].FormID == formID && strings.EqualFold(m.regs[i].Email, email) {
			return &m.regs[i], nil
		}
	}
	return nil, regform.ErrNotFound
}

func (m *memIndex) LookupRegistrationByUser(_ context.Context, formID, userID string) (*domain.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.regs {
		r := m.regs[i]
		if r.FormID == formID && r.UserID != nil && *r.UserID == userID {
			return &m.regs[i], nil
		}
	}
	return nil, regform.ErrNotFound
}

func (m *memIndex) LookupInvitationByEmail(_ context.Context, formID, email string) (*domain.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invitations {
		if inv.FormID == formID && strings.EqualFold(inv.Email, email) {
			return inv, nil
		}
	}
	return nil, importer.ErrNotFound
}

func (m *memIndex) CreateInvitations(_ context.Context, invs []*domain.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invitations = append(m.invitations, invs...)
	return nil
}

// addRegistration stores a registration the way the registration service
// would, linking the user owning the email.
func (m *memIndex) addRegistration(formID, email string) {
	reg := domain.Registration{ID: "reg-" + email, FormID: formID, Email: email}
	if u, _ := m.LookupUserByEmail(context.Background(), email); u != nil {
		reg.UserID = &u.ID
	}
	m.mu.Lock()
	m.regs = append(m.regs, reg)
	m.mu.Unlock()
}

type fakeRegistrar struct {
	index *memIndex
	calls []map[string]any
	opts  []regform.SubmitOptions
	// failAt is the zero-based row rejected with err; -1 fails the batch as
	// a whole.
	failAt int
	err    error
}

func (f *fakeRegistrar) CreateBatch(_ context.Context, formID string, rows []map[string]any, opts regform.SubmitOptions) ([]*regform.Result, error) {
	if f.err != nil {
		if f.failAt < 0 {
			return nil, f.err
		}
		return nil, &regform.BatchError{Index: f.failAt, Err: f.err}
	}
	var out []*regform.Result
	for _, raw := range rows {
		f.calls = append(f.calls, raw)
		f.opts = append(f.opts, opts)
		email, _ := raw["email"].(string)
		f.index.addRegistration(formID, email)
		reg := &domain.Registration{ID: "reg-" + email, FormID: formID, Email: email}
		if s, ok := raw["first"].(string); ok {
			reg.FirstName = s
		}
		if s, ok := raw["last"].(string); ok {
			reg.LastName = s
		}
		out = append(out, &regform.Result{Registration: reg})
	}
	return out, nil
}

type staticForms struct{ form *domain.Form }

func (s staticForms) GetForm(_ context.Context, id string) (*domain.Form, error) {
	if s.form == nil || s.form.ID != id {
		return nil, regform.ErrFormNotFound
	}
	return s.form, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (n *recordingNotifier) Enqueue(msg domain.Notification) {
	n.mu.Lock()
	n.sent = append(n.sent, msg)
	n.mu.Unlock()
}

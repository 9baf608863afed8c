package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/conference-hub/internal/audit"
	"github.com/ignite/conference-hub/internal/config"
	"github.com/ignite/conference-hub/internal/domain"
	"github.com/ignite/conference-hub/internal/metrics"
	"github.com/ignite/conference-hub/internal/service/importer"
	"github.com/ignite/conference-hub/internal/service/regform"
	"github.com/ignite/conference-hub/internal/service/reminder"
	"github.com/ignite/conference-hub/internal/storage"
)

type fakeRegistrations struct {
	lastRaw  map[string]any
	lastOpts regform.SubmitOptions
	err      error
}

func (f *fakeRegistrations) Create(_ context.Context, formID string, raw map[string]any, opts regform.SubmitOptions) (*regform.Result, error) {
	f.lastRaw, f.lastOpts = raw, opts
	if f.err != nil {
		return nil, f.err
	}
	return &regform.Result{Registration: &domain.Registration{ID: "reg-1", FormID: formID}}, nil
}

func (f *fakeRegistrations) Modify(_ context.Context, id string, raw map[string]any, opts regform.SubmitOptions) (*regform.Result, error) {
	f.lastRaw, f.lastOpts = raw, opts
	if f.err != nil {
		return nil, f.err
	}
	return &regform.Result{Registration: &domain.Registration{ID: id}}, nil
}

func (f *fakeRegistrations) CheckEmail(_ context.Context, _, addr, _ string) (*regform.EmailCheck, error) {
	if addr == "taken@example.com" {
		return &regform.EmailCheck{Status: regform.EmailAlreadyRegistered}, nil
	}
	return &regform.EmailCheck{Status: regform.EmailOK}, nil
}

type fakeImports struct {
	body string
	opts importer.InvitationOptions
	err  error
}

func (f *fakeImports) ImportUsers(_ context.Context, r io.Reader, columns []string) ([]domain.ImportRecord, error) {
	return importer.ParseRecords(r, columns)
}

func (f *fakeImports) ImportRegistrations(_ context.Context, _ string, r io.Reader, _ importer.RegistrationOptions) (*importer.RegistrationsResult, error) {
	data, _ := io.ReadAll(r)
	f.body = string(data)
	if f.err != nil {
		return nil, f.err
	}
	return &importer.RegistrationsResult{Skipped: 1}, nil
}

func (f *fakeImports) ImportInvitations(_ context.Context, _ string, r io.Reader, opts importer.InvitationOptions) (*importer.InvitationsResult, error) {
	data, _ := io.ReadAll(r)
	f.body, f.opts = string(data), opts
	return &importer.InvitationsResult{}, f.err
}

type fakeReminders struct{}

func (fakeReminders) Get(_ context.Context, id string) (*domain.Reminder, error) {
	if id != "rem-1" {
		return nil, reminder.ErrNotFound
	}
	return &domain.Reminder{ID: id, Recipients: []string{"a@example.com"}}, nil
}

func (fakeReminders) Recipients(_ context.Context, r *domain.Reminder) ([]string, error) {
	return r.Recipients, nil
}

func (fakeReminders) Send(_ context.Context, id string) (int, error) {
	if id == "rem-sent" {
		return 0, reminder.ErrAlreadySent
	}
	return 3, nil
}

type memObjects struct {
	objects  map[string]string
	archived []string
}

func (m *memObjects) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (m *memObjects) Archive(_ context.Context, key string, body io.Reader) error {
	m.archived = append(m.archived, key)
	return nil
}

type fakeAudit struct{}

func (fakeAudit) History(_ context.Context, id string) ([]audit.Item, error) {
	return []audit.Item{{RegistrationID: id, Action: "modify", Fields: []string{"bool1"}}}, nil
}

type fixture struct {
	regs    *fakeRegistrations
	imports *fakeImports
	objects *memObjects
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveResolution("create", false, 0, nil)

	f := &fixture{
		regs:    &fakeRegistrations{},
		imports: &fakeImports{},
		objects: &memObjects{objects: map[string]string{"batch.csv": "Ann,Lee,,,,ann@example.com\n"}},
	}
	srv := NewServer(config.ServerConfig{MaxUploadMB: 1, ManagementHeader: managerHeader}, Deps{
		Registrations: f.regs,
		Imports:       f.imports,
		Reminders:     fakeReminders{},
		Objects:       f.objects,
		Audit:         fakeAudit{},
		Health: NewHealthChecker(Probe{Name: "database", Critical: true, Ping: func(context.Context) error {
			return nil
		}}),
		Gatherer: reg,
	})
	f.handler = srv.Handler()
	return f
}

const managerHeader = "X-Conference-Manager"

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	return f.doWithHeader(method, target, body, "", "")
}

func (f *fixture) doWithHeader(method, target, body, key, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if key != "" {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])

	rec = f.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "regform_resolution_passes_total")
}

func TestReadiness_CriticalDown(t *testing.T) {
	hc := NewHealthChecker(
		Probe{Name: "database", Critical: true, Ping: func(context.Context) error { return errors.New("refused") }},
		Probe{Name: "redis"},
	)
	rec := httptest.NewRecorder()
	hc.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCreateRegistration(t *testing.T) {
	f := newFixture(t)

	rec := f.doWithHeader(http.MethodPost, "/api/forms/form-1/registrations",
		`{"data":{"bool1":true,"text":"meow"},"notify_user":true}`, managerHeader, "true")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, map[string]any{"bool1": true, "text": "meow"}, f.regs.lastRaw)
	assert.Equal(t, regform.SubmitOptions{Management: true, NotifyUser: true}, f.regs.lastOpts)

	reg := decodeBody(t, rec)["registration"].(map[string]any)
	assert.Equal(t, "form-1", reg["form_id"])
}

func TestSubmit_ManagementComesFromGateway(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		key    string
		value  string
		want   bool
	}{
		{"create with body flag only", http.MethodPost, "/api/forms/form-1/registrations", "", "", false},
		{"create with header", http.MethodPost, "/api/forms/form-1/registrations", managerHeader, "1", true},
		{"create with false header", http.MethodPost, "/api/forms/form-1/registrations", managerHeader, "false", false},
		{"modify with body flag only", http.MethodPatch, "/api/registrations/reg-7", "", "", false},
		{"modify with header", http.MethodPatch, "/api/registrations/reg-7", managerHeader, "true", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.doWithHeader(tt.method, tt.target, `{"data":{},"management":true}`, tt.key, tt.value)
			require.Less(t, rec.Code, 300)
			assert.Equal(t, tt.want, f.regs.lastOpts.Management)
		})
	}
}

func TestSubmit_ManagementDisabledWithoutHeaderName(t *testing.T) {
	regs := &fakeRegistrations{}
	h := NewServer(config.ServerConfig{}, Deps{Registrations: regs}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/forms/form-1/registrations", strings.NewReader(`{"data":{}}`))
	req.Header.Set(managerHeader, "true")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.False(t, regs.lastOpts.Management)
}

func TestCreateRegistration_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &regform.ValidationError{FieldID: "count", Reason: "not a number"}, http.StatusUnprocessableEntity, "validation_error"},
		{"duplicate", regform.ErrAlreadyRegistered, http.StatusConflict, "already_registered"},
		{"unknown form", regform.ErrFormNotFound, http.StatusNotFound, ""},
		{"broken form", domain.ErrInvalidForm, http.StatusUnprocessableEntity, "invalid_form"},
		{"storage", errors.New("connection reset"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.regs.err = tt.err
			rec := f.do(http.MethodPost, "/api/forms/form-1/registrations", `{"data":{}}`)
			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, decodeBody(t, rec)["code"])
			}
		})
	}
}

func TestCreateRegistration_BadJSON(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/forms/form-1/registrations", `{"data":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModifyRegistration(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPatch, "/api/registrations/reg-7", `{"data":{"bool1":false}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reg-7", decodeBody(t, rec)["registration"].(map[string]any)["id"])

	f.regs.err = regform.ErrNotFound
	rec = f.do(http.MethodPatch, "/api/registrations/nope", `{"data":{}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckEmail(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/forms/form-1/check-email?email=taken@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "already_registered", decodeBody(t, rec)["status"])
}

func TestImportRegistrations_BodyIsArchived(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/forms/form-1/import/registrations?skip_existing=true",
		"Ann,Lee,,,,ann@example.com\n")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["skipped"])
	require.Len(t, f.objects.archived, 1)
	assert.True(t, strings.HasPrefix(f.objects.archived[0], "imports/form-1/"))
}

func TestImportRegistrations_FromObjectStore(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/forms/form-1/import/registrations?s3_key=batch.csv", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Ann,Lee,,,,ann@example.com\n", f.imports.body)
	assert.Empty(t, f.objects.archived)

	rec = f.do(http.MethodPost, "/api/forms/form-1/import/registrations?s3_key=missing.csv", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportRegistrations_RowError(t *testing.T) {
	f := newFixture(t)
	f.imports.err = &importer.DuplicateEmailError{Row: 2, PriorRow: 1}
	rec := f.do(http.MethodPost, "/api/forms/form-1/import/registrations", "x")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "import_error", body["code"])
	assert.Equal(t, "Row 2: email address is not unique (see row 1)", body["error"])
	assert.Empty(t, f.objects.archived)

	f.imports.err = importer.ErrLocked
	rec = f.do(http.MethodPost, "/api/forms/form-1/import/registrations", "x")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestImportRegistrations_TooLarge(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/forms/form-1/import/registrations", strings.Repeat("a", 2<<20))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestImportInvitations_Options(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost,
		"/api/forms/form-1/import/invitations?skip_moderation=1&sender=org@example.com&subject=Join",
		"Ann,Lee,CERN,ann@example.com\n")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, f.imports.opts.SkipModeration)
	assert.False(t, f.imports.opts.SkipExisting)
	assert.Equal(t, "org@example.com", f.imports.opts.Sender)
	assert.Equal(t, "Join", f.imports.opts.Subject)
}

func TestImportUsers_Columns(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/import/users?columns=email,first_name,last_name",
		"ANN@example.com,Ann,Lee\n")
	require.Equal(t, http.StatusOK, rec.Code)
	users := decodeBody(t, rec)["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, "ann@example.com", users[0].(map[string]any)["email"])
}

func TestReminders(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/reminders/rem-1/recipients", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"a@example.com"}, decodeBody(t, rec)["recipients"])

	rec = f.do(http.MethodGet, "/api/reminders/nope/recipients", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/api/reminders/rem-1/send", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), decodeBody(t, rec)["sent"])

	rec = f.do(http.MethodPost, "/api/reminders/rem-sent/send", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegistrationHistory(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/registrations/reg-1/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	changes := decodeBody(t, rec)["changes"].([]any)
	require.Len(t, changes, 1)
}

func TestInvalidateForm(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodDelete, "/api/forms/form-1/cache", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

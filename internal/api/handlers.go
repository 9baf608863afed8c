package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/conference-hub/internal/pkg/httputil"
	"github.com/ignite/conference-hub/internal/pkg/logger"
	"github.com/ignite/conference-hub/internal/service/importer"
	"github.com/ignite/conference-hub/internal/service/regform"
)

var log = logger.With("component", "api")

// Handlers holds the HTTP handlers of the API.
type Handlers struct {
	deps             Deps
	maxUploadMB      int
	managementHeader string
}

// submitRequest is the body of a create or modify call. Management rights
// come from the request context, never from the body.
type submitRequest struct {
	Data       map[string]any `json:"data"`
	NotifyUser bool           `json:"notify_user"`
}

// CreateRegistration handles POST /api/forms/{formID}/registrations.
func (h *Handlers) CreateRegistration(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	res, err := h.deps.Registrations.Create(r.Context(), chi.URLParam(r, "formID"), req.Data,
		regform.SubmitOptions{Management: isManagement(r.Context()), NotifyUser: req.NotifyUser})
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.Created(w, res)
}

// ModifyRegistration handles PATCH /api/registrations/{registrationID}.
func (h *Handlers) ModifyRegistration(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	res, err := h.deps.Registrations.Modify(r.Context(), chi.URLParam(r, "registrationID"), req.Data,
		regform.SubmitOptions{Management: isManagement(r.Context()), NotifyUser: req.NotifyUser})
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, res)
}

// CheckEmail handles GET /api/forms/{formID}/check-email?email=&update=.
func (h *Handlers) CheckEmail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.deps.Registrations.CheckEmail(r.Context(), chi.URLParam(r, "formID"), q.Get("email"), q.Get("update"))
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, res)
}

// RegistrationHistory handles GET /api/registrations/{registrationID}/history.
func (h *Handlers) RegistrationHistory(w http.ResponseWriter, r *http.Request) {
	if h.deps.Audit == nil {
		httputil.Error(w, http.StatusNotImplemented, "audit log not configured")
		return
	}
	items, err := h.deps.Audit.History(r.Context(), chi.URLParam(r, "registrationID"))
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"changes": items})
}

// InvalidateForm handles DELETE /api/forms/{formID}/cache.
func (h *Handlers) InvalidateForm(w http.ResponseWriter, r *http.Request) {
	if h.deps.Forms != nil {
		if err := h.deps.Forms.Invalidate(r.Context(), chi.URLParam(r, "formID")); err != nil {
			respondError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportRegistrations handles POST /api/forms/{formID}/import/registrations.
func (h *Handlers) ImportRegistrations(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formID")
	q := r.URL.Query()
	data, ok := h.readImport(w, r)
	if !ok {
		return
	}
	res, err := h.deps.Imports.ImportRegistrations(r.Context(), formID, bytes.NewReader(data), importer.RegistrationOptions{
		SkipExisting: queryBool(q.Get("skip_existing")),
		NotifyUser:   queryBool(q.Get("notify_user")),
	})
	if err != nil {
		respondError(w, err)
		return
	}
	h.archive(r.Context(), r, formID, "registrations", data)
	httputil.Created(w, res)
}

// ImportInvitations handles POST /api/forms/{formID}/import/invitations.
func (h *Handlers) ImportInvitations(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formID")
	q := r.URL.Query()
	data, ok := h.readImport(w, r)
	if !ok {
		return
	}
	res, err := h.deps.Imports.ImportInvitations(r.Context(), formID, bytes.NewReader(data), importer.InvitationOptions{
		SkipExisting:    queryBool(q.Get("skip_existing")),
		SkipModeration:  queryBool(q.Get("skip_moderation")),
		SkipAccessCheck: queryBool(q.Get("skip_access_check")),
		Sender:          q.Get("sender"),
		Subject:         q.Get("subject"),
		Body:            q.Get("message"),
	})
	if err != nil {
		respondError(w, err)
		return
	}
	h.archive(r.Context(), r, formID, "invitations", data)
	httputil.Created(w, res)
}

// ImportUsers handles POST /api/import/users?columns=a,b,c.
func (h *Handlers) ImportUsers(w http.ResponseWriter, r *http.Request) {
	columns := importer.RegistrationColumns
	if raw := r.URL.Query().Get("columns"); raw != "" {
		columns = strings.Split(raw, ",")
		for i := range columns {
			columns[i] = strings.TrimSpace(columns[i])
		}
	}
	data, ok := h.readImport(w, r)
	if !ok {
		return
	}
	records, err := h.deps.Imports.ImportUsers(r.Context(), bytes.NewReader(data), columns)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"users": records})
}

// ReminderRecipients handles GET /api/reminders/{reminderID}/recipients.
func (h *Handlers) ReminderRecipients(w http.ResponseWriter, r *http.Request) {
	rem, err := h.deps.Reminders.Get(r.Context(), chi.URLParam(r, "reminderID"))
	if err != nil {
		respondError(w, err)
		return
	}
	recipients, err := h.deps.Reminders.Recipients(r.Context(), rem)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"recipients": recipients})
}

// SendReminder handles POST /api/reminders/{reminderID}/send.
func (h *Handlers) SendReminder(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.Reminders.Send(r.Context(), chi.URLParam(r, "reminderID"))
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, map[string]int{"sent": n})
}

// readImport returns the CSV payload, taken from the object store when
// ?s3_key= is given and from the request body otherwise.
func (h *Handlers) readImport(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	var src io.Reader
	if key := r.URL.Query().Get("s3_key"); key != "" {
		if h.deps.Objects == nil {
			httputil.Error(w, http.StatusNotImplemented, "object storage not configured")
			return nil, false
		}
		obj, err := h.deps.Objects.Open(r.Context(), key)
		if err != nil {
			respondError(w, err)
			return nil, false
		}
		defer obj.Close()
		src = obj
	} else {
		src = httputil.LimitBody(w, r, h.maxUploadMB)
	}

	data, err := io.ReadAll(src)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.TooLarge(w, h.maxUploadMB)
			return nil, false
		}
		respondError(w, fmt.Errorf("reading import: %w", err))
		return nil, false
	}
	return data, true
}

// archive keeps a copy of an uploaded batch. Batches read from the object
// store are already archived.
func (h *Handlers) archive(ctx context.Context, r *http.Request, formID, kind string, data []byte) {
	if h.deps.Objects == nil || r.URL.Query().Get("s3_key") != "" {
		return
	}
	key := fmt.Sprintf("imports/%s/%s-%s.csv", formID, time.Now().UTC().Format("20060102T150405Z"), kind)
	if err := h.deps.Objects.Archive(context.WithoutCancel(ctx), key, bytes.NewReader(data)); err != nil {
		log.Warn("archiving import failed", "form_id", formID, "kind", kind, "error", err)
	}
}

func queryBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

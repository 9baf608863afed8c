package api

import (
	"errors"
	"net/http"

	"github.com/ignite/conference-hub/internal/domain"
	"github.com/ignite/conference-hub/internal/pkg/httputil"
	"github.com/ignite/conference-hub/internal/service/importer"
	"github.com/ignite/conference-hub/internal/service/regform"
	"github.com/ignite/conference-hub/internal/service/reminder"
	"github.com/ignite/conference-hub/internal/storage"
)

// respondError maps service errors to HTTP responses. Anything unknown is
// logged and reported as a generic 500.
func respondError(w http.ResponseWriter, err error) {
	var (
		validation *regform.ValidationError
		tooLarge   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooLarge):
		httputil.ErrorCode(w, http.StatusRequestEntityTooLarge, "too_large", err.Error(), nil)
	case errors.Is(err, storage.ErrInvalidKey):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, importer.ErrImport):
		httputil.ErrorCode(w, http.StatusBadRequest, "import_error", err.Error(), nil)
	case errors.As(err, &validation):
		httputil.ErrorCode(w, http.StatusUnprocessableEntity, "validation_error", err.Error(),
			map[string]string{"field_id": validation.FieldID, "reason": validation.Reason})
	case errors.Is(err, regform.ErrAlreadyRegistered):
		httputil.ErrorCode(w, http.StatusConflict, "already_registered", err.Error(), nil)
	case errors.Is(err, importer.ErrLocked):
		httputil.ErrorCode(w, http.StatusConflict, "import_locked", err.Error(), nil)
	case errors.Is(err, reminder.ErrAlreadySent):
		httputil.ErrorCode(w, http.StatusConflict, "already_sent", err.Error(), nil)
	case errors.Is(err, reminder.ErrNoRecipient):
		httputil.ErrorCode(w, http.StatusUnprocessableEntity, "no_recipients", err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidForm):
		httputil.ErrorCode(w, http.StatusUnprocessableEntity, "invalid_form", err.Error(), nil)
	case errors.Is(err, regform.ErrNotFound),
		errors.Is(err, regform.ErrFormNotFound),
		errors.Is(err, reminder.ErrNotFound),
		errors.Is(err, storage.ErrObjectNotFound):
		httputil.NotFound(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}

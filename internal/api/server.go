// Package api exposes the registration services over HTTP.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ignite/conference-hub/internal/audit"
	"github.com/ignite/conference-hub/internal/config"
	"github.com/ignite/conference-hub/internal/domain"
	"github.com/ignite/conference-hub/internal/service/importer"
	"github.com/ignite/conference-hub/internal/service/regform"
)

// RegistrationService is the part of *regform.Service the handlers use.
type RegistrationService interface {
	Create(ctx context.Context, formID string, raw map[string]any, opts regform.SubmitOptions) (*regform.Result, error)
	Modify(ctx context.Context, registrationID string, raw map[string]any, opts regform.SubmitOptions) (*regform.Result, error)
	CheckEmail(ctx context.Context, formID, addr, registrationID string) (*regform.EmailCheck, error)
}

// ImportService is the part of *importer.Service the handlers use.
type ImportService interface {
	ImportUsers(ctx context.Context, r io.Reader, columns []string) ([]domain.ImportRecord, error)
	ImportRegistrations(ctx context.Context, formID string, r io.Reader, opts importer.RegistrationOptions) (*importer.RegistrationsResult, error)
	ImportInvitations(ctx context.Context, formID string, r io.Reader, opts importer.InvitationOptions) (*importer.InvitationsResult, error)
}

// ReminderService is the part of *reminder.Service the handlers use.
type ReminderService interface {
	Get(ctx context.Context, id string) (*domain.Reminder, error)
	Recipients(ctx context.Context, r *domain.Reminder) ([]string, error)
	Send(ctx context.Context, id string) (int, error)
}

// ObjectStore reads and archives import files; *storage.S3Source satisfies it.
type ObjectStore interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Archive(ctx context.Context, key string, body io.Reader) error
}

// FormCache drops cached form definitions; *cache.FormCache satisfies it.
type FormCache interface {
	Invalidate(ctx context.Context, formID string) error
}

// AuditLog returns the recorded change sets of a registration;
// *audit.Sink satisfies it.
type AuditLog interface {
	History(ctx context.Context, registrationID string) ([]audit.Item, error)
}

// Deps are the collaborators of the HTTP layer. Objects, Forms and Audit
// may be nil, in which case the routes depending on them answer 501.
type Deps struct {
	Registrations RegistrationService
	Imports       ImportService
	Reminders     ReminderService
	Objects       ObjectStore
	Forms         FormCache
	Audit         AuditLog
	Health        *HealthChecker
	Gatherer      prometheus.Gatherer
}

// Server represents the API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	h := &Handlers{deps: deps, maxUploadMB: cfg.MaxUploadMB, managementHeader: cfg.ManagementHeader}
	return &Server{
		config:  cfg,
		handler: SetupRoutes(h, cfg.AllowedOrigins),
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       5 * time.Minute,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(markManagement(h.managementHeader))

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if hc := h.deps.Health; hc != nil {
		r.Get("/health", hc.HandleHealth)
		r.Get("/health/ready", hc.HandleReadiness)
	} else {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	}
	if h.deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/forms/{formID}", func(r chi.Router) {
			r.Post("/registrations", h.CreateRegistration)
			r.Get("/check-email", h.CheckEmail)
			r.Post("/import/registrations", h.ImportRegistrations)
			r.Post("/import/invitations", h.ImportInvitations)
			r.Delete("/cache", h.InvalidateForm)
		})
		r.Route("/registrations/{registrationID}", func(r chi.Router) {
			r.Patch("/", h.ModifyRegistration)
			r.Get("/history", h.RegistrationHistory)
		})
		r.Post("/import/users", h.ImportUsers)
		r.Route("/reminders/{reminderID}", func(r chi.Router) {
			r.Get("/recipients", h.ReminderRecipients)
			r.Post("/send", h.SendReminder)
		})
	})

	return r
}

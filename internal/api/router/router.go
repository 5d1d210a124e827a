// Package router wires the HTTP API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bookinglink/bookinglink/internal/http/handlers"
	httpmiddleware "github.com/bookinglink/bookinglink/internal/http/middleware"
	"github.com/bookinglink/bookinglink/internal/tenancy"
	"github.com/bookinglink/bookinglink/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Slots              *handlers.SlotsHandler
	Appointments       *handlers.AppointmentsHandler
	Schedules          *handlers.SchedulesHandler
	Types              *handlers.TypesHandler
	Settings           *handlers.SettingsHandler
	Rules              *handlers.RulesHandler
	Export             *handlers.ExportHandler
	Audit              *handlers.AuditHandler
	MetricsHandler     http.Handler
	AuthSecret         string
	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.RateLimitPerSecond > 0 {
		r.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
	}

	// Public endpoints.
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Clinic-scoped API. Every route below requires a valid token.
	r.Route("/api", func(api chi.Router) {
		api.Use(httpmiddleware.Auth(cfg.AuthSecret))

		if cfg.Slots != nil {
			api.Get("/providers/{providerID}/slots", cfg.Slots.Get)
		}
		if cfg.Appointments != nil {
			api.Post("/appointments", cfg.Appointments.Create)
			api.Get("/appointments/{appointmentID}", cfg.Appointments.Get)
			api.Post("/appointments/{appointmentID}/status", cfg.Appointments.UpdateStatus)
			api.Delete("/recurrences/{groupID}", cfg.Appointments.CancelSeries)
			api.Get("/providers/{providerID}/appointments", cfg.Appointments.ListForProvider)
		}
		if cfg.Types != nil {
			api.Get("/appointment-types", cfg.Types.List)
			api.Get("/appointment-types/{typeID}", cfg.Types.Get)
		}

		// Staff-only management surface.
		api.Group(func(staff chi.Router) {
			staff.Use(httpmiddleware.RequireRole(tenancy.RoleStaff))

			if cfg.Schedules != nil {
				staff.Route("/providers/{providerID}", func(p chi.Router) {
					p.Get("/schedule", cfg.Schedules.GetWeekly)
					p.Put("/schedule", cfg.Schedules.PutWeekly)
					p.Get("/exceptions", cfg.Schedules.ListExceptions)
					p.Put("/exceptions/{date}", cfg.Schedules.PutException)
					p.Delete("/exceptions/{date}", cfg.Schedules.DeleteException)
				})
			}
			if cfg.Types != nil {
				staff.Post("/appointment-types", cfg.Types.Put)
				staff.Put("/appointment-types/{typeID}", cfg.Types.Put)
			}
			if cfg.Settings != nil {
				staff.Get("/clinic/settings", cfg.Settings.Get)
				staff.Put("/clinic/settings", cfg.Settings.Put)
			}
			if cfg.Rules != nil {
				staff.Get("/rules", cfg.Rules.List)
				staff.Post("/rules", cfg.Rules.Put)
				staff.Put("/rules/{ruleID}", cfg.Rules.Put)
				staff.Delete("/rules/{ruleID}", cfg.Rules.Delete)
			}
			if cfg.Export != nil {
				staff.Post("/export/appointments", cfg.Export.Create)
			}
			if cfg.Audit != nil {
				staff.Get("/audit/events", cfg.Audit.List)
			}
		})
	})

	return r
}

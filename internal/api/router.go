package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/majisafe/bridge/internal/pipeline"
	"github.com/majisafe/bridge/internal/repository"
	"github.com/majisafe/bridge/internal/verify"
)

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(
	svc *pipeline.Service,
	eventRepo *repository.EventRepo,
	verifier *verify.Verifier,
	dkgNodeURL string,
	allowedOrigins []string,
) http.Handler {
	h := &Handlers{
		pipeline:   svc,
		eventRepo:  eventRepo,
		verifier:   verifier,
		dkgNodeURL: dkgNodeURL,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Route("/api/v1", func(r chi.Router) {
		// Intake.
		r.Post("/sms", h.ReceiveSMS)
		r.Post("/confirmations", h.Confirm)

		// Session.
		r.Get("/session", h.GetSession)

		// Events.
		r.Get("/events", h.ListEvents)
		r.Post("/events/{eventID}/anchor", h.RetryAnchor)

		// Verification.
		r.Get("/verify", h.VerifyEvent)

		// Status.
		r.Get("/status", h.GetStatus)
	})

	return r
}

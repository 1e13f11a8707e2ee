package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/medicare-voice/intake/internal/http/handlers"
	httpmiddleware "github.com/medicare-voice/intake/internal/http/middleware"
	"github.com/medicare-voice/intake/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Voice          *handlers.VoiceHandler
	MetricsHandler http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", cfg.Voice.Health)
	r.Get("/status", cfg.Voice.Status)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		api.Post("/call", cfg.Voice.InitiateCall)

		// Voice webhooks answer mid-call; a panic here must become a
		// spoken apology, not a 500.
		api.Group(func(voice chi.Router) {
			voice.Use(httpmiddleware.TwiMLRecoverer(cfg.Logger))
			voice.Post("/welcome", cfg.Voice.Welcome)
			voice.Post("/conversation", cfg.Voice.Conversation)
			voice.Post("/confirm", cfg.Voice.Confirm)
			voice.Post("/call-status", cfg.Voice.CallStatus)
		})
	})

	return r
}

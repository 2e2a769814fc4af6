package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/formatexp/formatexp/pkg/auth"
	"github.com/formatexp/formatexp/pkg/credits"
	"github.com/formatexp/formatexp/pkg/waitlist"
)

const maxRequestBodyBytes = 64 * 1024

// Server is the HTTP API server.
type Server struct {
	accounts          credits.AccountStore
	materials         credits.MaterialStore
	gate              *credits.Gate
	tokens            *auth.TokenSigner
	waitlist          waitlist.Store
	checkout          CheckoutProvider
	webhookHandler    http.Handler
	successURL        string
	cancelURL         string
	redis             *redis.Client
	generateRateLimit int
	logger            credits.Logger

	router chi.Router
}

// NewServer creates the API server and builds its routes.
func NewServer(config Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	if config.GenerateRateLimit <= 0 {
		config.GenerateRateLimit = defaultGenerateRateLimit
	}
	if config.Logger == nil {
		config.Logger = &credits.NoopLogger{}
	}

	s := &Server{
		accounts:          config.Accounts,
		materials:         config.Materials,
		gate:              config.Gate,
		tokens:            config.Tokens,
		waitlist:          config.Waitlist,
		checkout:          config.Checkout,
		webhookHandler:    config.WebhookHandler,
		successURL:        config.CheckoutSuccessURL,
		cancelURL:         config.CheckoutCancelURL,
		redis:             config.Redis,
		generateRateLimit: config.GenerateRateLimit,
		logger:            config.Logger,
	}
	s.router = s.buildRouter()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/waitlist", s.handleWaitlist)

		// The webhook does its own signature verification and rate
		// limiting; it must not sit behind the session auth.
		if s.webhookHandler != nil {
			r.Handle("/billing/webhook", s.webhookHandler)
		}

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/me", s.handleMe)
			r.With(s.rateLimitGenerate).Post("/generate", s.handleGenerate)

			r.Get("/materials", s.handleListMaterials)
			r.Get("/materials/{id}", s.handleGetMaterial)
			r.Patch("/materials/{id}", s.handleUpdateMaterial)
			r.Delete("/materials/{id}", s.handleDeleteMaterial)

			r.Post("/billing/checkout", s.handleCheckout)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads and validates a JSON request body into v.
func decode(r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(nil, r.Body, maxRequestBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()

	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("malformed JSON body")
	}
	if err := validate.Struct(v); err != nil {
		return err
	}
	return nil
}

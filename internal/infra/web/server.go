package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-link-gateway/internal/infra/metrics"
	"telegram-link-gateway/internal/usecase"
)

// Server serves the health probe, Prometheus metrics, the Telegram webhook and the admin API.
type Server struct {
	statsUC usecase.StatsUseCase
	userUC  usecase.UserUseCase
	webhook http.Handler
	apiKey  string
	auth    *AuthManager
	log     *zerolog.Logger

	srv *http.Server
}

// NewServer builds the server. webhook may be nil in polling mode; an empty apiKey disables the admin API.
func NewServer(
	statsUC usecase.StatsUseCase,
	userUC usecase.UserUseCase,
	webhook http.Handler,
	apiKey string,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		statsUC: statsUC,
		userUC:  userUC,
		webhook: webhook,
		apiKey:  apiKey,
		auth:    auth,
		log:     logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	if s.webhook != nil {
		r.Method(http.MethodPost, "/telegram/{token}", s.webhook)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", s.loginHandler)
		r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
			s.auth.Clear(w)
			w.WriteHeader(http.StatusNoContent)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/stats", statsHandler(s.statsUC))
			r.Get("/identities", identitiesListHandler(s.userUC))
			r.Get("/identities/{id}", identityGetHandler(s.userUC))
		})
	})
	return r
}

// Start blocks serving on port until Shutdown.
func (s *Server) Start(port int) error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Int("port", port).Msg("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

type loginRequest struct {
	APIKey string `json:"api_key"`
}

// loginHandler exchanges the configured admin key for a session token.
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if s.apiKey == "" {
		s.log.Error().Msg("Admin API key is not configured")
		metrics.IncAdminLogin("disabled")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(s.apiKey)) != 1 {
		metrics.IncAdminLogin("denied")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		s.log.Error().Err(err).Msg("mint admin session")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	metrics.IncAdminLogin("ok")
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// authMiddleware requires a valid admin session (bearer header or cookie).
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

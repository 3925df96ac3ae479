package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gatekeeper-bot/gatekeeper/internal/application/groups"
	"github.com/gatekeeper-bot/gatekeeper/internal/application/history"
	"github.com/gatekeeper-bot/gatekeeper/internal/observability"
)

// Server holds dependencies for the ops HTTP handlers. The bot's user-facing
// surface is Telegram; this server exposes health, metrics and the
// authenticated management API.
type Server struct {
	groupsSvc  *groups.Service
	historySvc *history.Service
	ready      func(context.Context) error

	authToken       string
	authTokenBcrypt string

	logger zerolog.Logger
}

// NewServer creates the ops server. ready is probed by /readyz and may be nil
// for deployments without a database.
func NewServer(
	groupsSvc *groups.Service,
	historySvc *history.Service,
	ready func(context.Context) error,
	authToken string,
	authTokenBcrypt string,
	logger zerolog.Logger,
) *Server {
	return &Server{
		groupsSvc:       groupsSvc,
		historySvc:      historySvc,
		ready:           ready,
		authToken:       authToken,
		authTokenBcrypt: authTokenBcrypt,
		logger:          logger.With().Str("service", "ops").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(observability.HTTPMetricsMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", s.listGroups)
			r.Put("/{chatID}", s.putGroup)
			r.Delete("/{chatID}", s.deleteGroup)
		})

		r.Get("/history", s.queryHistory)
	})

	return r
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			respondError(w, http.StatusServiceUnavailable, "NOT_READY", err.Error())
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Helpers

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseChatIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
}

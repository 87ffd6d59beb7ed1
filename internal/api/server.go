// Package api serves the local HTTP surface: chat sessions, precedent search,
// document jobs, metrics, and the MCP tool server.
package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Nit2312/NyaySarthi/internal/chat"
	"github.com/Nit2312/NyaySarthi/internal/jobs"
	"github.com/Nit2312/NyaySarthi/internal/metrics"
	"github.com/Nit2312/NyaySarthi/internal/navigation"
	"github.com/Nit2312/NyaySarthi/internal/precedent"
	"github.com/Nit2312/NyaySarthi/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// SessionHistory lists persisted chat logs. *storage.Store satisfies it.
type SessionHistory interface {
	RecentSessions(limit int) ([]storage.SessionRecord, error)
}

// Deps holds everything the handlers need.
type Deps struct {
	Chat       *chat.Manager
	Navigator  *navigation.Navigator
	Precedents *precedent.Repository
	Pipeline   *jobs.Pipeline
	History    SessionHistory // optional
	Metrics    *metrics.Metrics
	Token      string
	Logger     *zap.Logger
}

// NewHandler builds the router. Everything except /health and /metrics sits
// behind BearerAuth.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	deps.Logger = deps.Logger.Named("api")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", handleOpenSession(deps))
			r.Get("/", handleListSessions(deps))
			r.Get("/history", handleSessionHistory(deps))
			r.Get("/{id}", handleGetSession(deps))
			r.Delete("/{id}", handleCloseSession(deps))
			r.Get("/{id}/messages", handleListMessages(deps))
			r.Post("/{id}/messages", handleSendMessage(deps))
		})

		r.Post("/precedents/search", handleSearch(deps))
		r.Get("/precedents/favorites", handleFavorites(deps))
		r.Get("/precedents/{id}", handleGetPrecedent(deps))
		r.Post("/precedents/{id}/favorite", handleToggleFavorite(deps))
		r.Get("/courts", handleCourts(deps))
		r.Get("/recent-cases", handleRecent(deps))

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", handleUpload(deps))
			r.Get("/", handleListJobs(deps))
			r.Get("/stats", handleJobStats(deps))
			r.Get("/selected", handleSelectedJob(deps))
			r.Get("/events", handleJobEvents(deps))
			r.Get("/{id}", handleGetJob(deps))
			r.Post("/{id}/select", handleSelectJob(deps))
			r.Delete("/{id}", handleRemoveJob(deps))
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

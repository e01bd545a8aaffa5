package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/careloop/careloop/internal/metrics"
	"github.com/careloop/careloop/internal/team"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	Service        *team.Service
	Metrics        *metrics.Metrics
	AllowedOrigins []string
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(secureHeaders)
	r.Use(corsMiddleware(deps.AllowedOrigins))
	r.Use(slogRequestLogger)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	// Handlers.
	teams := newTeamsHandler(deps.Service)
	patients := newPatientsHandler(deps.Service)

	// Health check.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Metrics summary.
	if deps.Metrics != nil {
		r.Get("/metrics", deps.Metrics.Handler())
	}

	r.Route("/api/v1", func(ar chi.Router) {
		// Reconciliation control.
		ar.Post("/refresh", teams.Refresh)
		ar.Get("/state", teams.GetState)

		// Teams.
		ar.Get("/teams", teams.ListTeams)
		ar.Post("/teams", teams.CreateTeam)
		ar.Get("/teams/{teamID}", teams.GetTeam)
		ar.Put("/teams/{teamID}", teams.EditTeam)
		ar.Post("/teams/{teamID}/leave", teams.LeaveTeam)

		// Memberships and invitations.
		ar.Post("/teams/{teamID}/invitations", teams.Invite)
		ar.Delete("/teams/{teamID}/members/{userID}", teams.RemoveMember)
		ar.Put("/teams/{teamID}/members/{userID}/role", teams.ChangeMemberRole)
		ar.Delete("/teams/{teamID}/patients/{userID}", patients.RemovePatient)

		// Patients and flags.
		ar.Get("/patients", patients.ListPatients)
		ar.Get("/patients/flagged", patients.ListFlagged)
		ar.Put("/patients/{userID}/flag", patients.Flag)
		ar.Delete("/patients/{userID}/flag", patients.Unflag)

		// Users.
		ar.Get("/users/{userID}", patients.GetUser)
	})

	return r
}

// slogRequestLogger is a simple structured logging middleware using slog.
func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", ww.BytesWritten(),
		)
	})
}

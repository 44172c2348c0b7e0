package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"competition-voting/internal/domain/authz"
	"competition-voting/internal/domain/competition"
	"competition-voting/internal/domain/user"
	"competition-voting/internal/domain/vote"
	"competition-voting/internal/platform/apperr"
	jwtpkg "competition-voting/internal/platform/jwt"
	"competition-voting/internal/worker"
)

// Pinger reports storage readiness. A nil Pinger means the store lives in
// process and is always ready.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ActivityReader reports vote activity observed in process.
type ActivityReader interface {
	Activity(competitionID uuid.UUID) (int64, time.Time)
}

type Deps struct {
	Users        *user.Service
	Competitions *competition.Service
	Votes        *vote.Service
	JWT          *jwtpkg.Manager
	TokenTTL     time.Duration
	VoteCh       chan<- worker.VoteEvent
	DB           Pinger
	Activity     ActivityReader

	// VoteRate and VoteBurst limit vote requests per voter.
	VoteRate  rate.Limit
	VoteBurst int
}

type Handler struct {
	userSvc  *user.Service
	compSvc  *competition.Service
	voteSvc  *vote.Service
	jwtMgr   *jwtpkg.Manager
	tokenTTL time.Duration
	voteCh   chan<- worker.VoteEvent
	db       Pinger
	activity ActivityReader
	now      func() time.Time
}

func NewRouter(d Deps) http.Handler {
	h := &Handler{
		userSvc:  d.Users,
		compSvc:  d.Competitions,
		voteSvc:  d.Votes,
		jwtMgr:   d.JWT,
		tokenTTL: d.TokenTTL,
		voteCh:   d.VoteCh,
		db:       d.DB,
		activity: d.Activity,
		now:      time.Now,
	}
	if h.tokenTTL <= 0 {
		h.tokenTTL = 24 * time.Hour
	}
	voteRate, voteBurst := d.VoteRate, d.VoteBurst
	if voteRate <= 0 {
		voteRate = rate.Every(time.Minute / 10)
	}
	if voteBurst <= 0 {
		voteBurst = 3
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(RequestLogger)
	r.Use(CORSMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", h.handleReady)
	r.Get("/swagger/*", httpSwagger.WrapHandler)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", h.handleRegister)
		r.Post("/auth/login", h.handleLogin)

		r.Get("/competitions", h.handleListCompetitions)
		r.Get("/competitions/{id}", h.handleGetCompetition)
		r.Get("/competitions/{id}/results", h.handleResults)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.JWT))

			r.Get("/users/me", h.handleMe)
			r.Put("/users/me", h.handleUpdateMe)

			r.Post("/competitions", h.handleCreateCompetition)
			r.Get("/competitions/{id}/details", h.handleCompetitionDetails)
			r.Put("/competitions/{id}", h.handleUpdateCompetition)
			r.Patch("/competitions/{id}/status", h.handleUpdateCompetitionStatus)
			r.Delete("/competitions/{id}", h.handleDeleteCompetition)

			r.Post("/competitions/{id}/options", h.handleAddOption)
			r.Put("/competitions/{id}/options/{optionId}", h.handleUpdateOption)
			r.Delete("/competitions/{id}/options/{optionId}", h.handleDeleteOption)
			r.With(RateLimitVotes(voteRate, voteBurst)).
				Post("/competitions/{id}/options/{optionId}/vote", h.handleVote)

			// Routes naming a target check admin rights in the service,
			// after the target is known to exist.
			r.Route("/admin", func(r chi.Router) {
				r.With(RequireRole(authz.AdminOnly)).Get("/users", h.handleListUsers)
				r.Get("/users/{id}", h.handleGetUser)
				r.Put("/users/{id}/role", h.handleUpdateUserRole)
				r.Delete("/users/{id}", h.handleDeleteUser)
				r.Post("/competitions/{id}/reconcile", h.handleReconcile)
			})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func parseIDParam(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "db_unavailable",
			"message": "database not ready",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func badID(kind string, err error) *apperr.AppError {
	return apperr.BadRequest("invalid_input", "invalid "+kind+" id", err).OnField(kind + "_id")
}

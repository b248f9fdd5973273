// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"devfolio/internal/enrich"
	custom_errors "devfolio/internal/errors"
	"devfolio/internal/model"
	"devfolio/internal/store"
	"devfolio/internal/syncer"
)

// ProjectSyncer runs the sync pipeline for one owner.
type ProjectSyncer interface {
	SyncOwnerProjects(ctx context.Context, ownerID uuid.UUID) (*syncer.Result, error)
}

// Enricher generates AI content; both operations always return a value.
type Enricher interface {
	EnrichProject(ctx context.Context, in enrich.ProjectInput) model.Enrichment
	SummarizeOwner(ctx context.Context, owner model.Owner, recent []model.Project) string
}

// Handler is the container for API dependencies.
type Handler struct {
	db         store.Querier
	syncer     ProjectSyncer
	enricher   Enricher
	newFetcher syncer.FetcherFactory
	logger     *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(db store.Querier, projectSyncer ProjectSyncer, enricher Enricher, newFetcher syncer.FetcherFactory, logger *slog.Logger) http.Handler {
	h := &Handler{
		db:         db,
		syncer:     projectSyncer,
		enricher:   enricher,
		newFetcher: newFetcher,
		logger:     logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/owners/{ownerID}/github/sync", h.syncProjects)
		r.Get("/owners/{ownerID}/github/repos", h.getRemoteRepos)
		r.Get("/owners/{ownerID}/projects", h.getOwnerProjects)
		r.Post("/owners/{ownerID}/ai/summary", h.generateOwnerSummary)
		r.Get("/projects/recent", h.getRecentProjects)
		r.Post("/ai/project-summary", h.previewProjectSummary)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// syncProjects triggers a sync of the owner's GitHub repositories.
// POST /v1/owners/{ownerID}/github/sync
func (h *Handler) syncProjects(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerIDParam(w, r)
	if !ok {
		return
	}

	result, err := h.syncer.SyncOwnerProjects(r.Context(), ownerID)
	if err != nil {
		switch {
		case errors.Is(err, custom_errors.ErrOwnerNotFound):
			respondWithError(w, http.StatusNotFound, "Owner not found")
		case errors.Is(err, custom_errors.ErrNotConnected):
			respondWithError(w, http.StatusBadRequest, "GitHub account not connected")
		case errors.Is(err, custom_errors.ErrSyncInProgress):
			respondWithError(w, http.StatusConflict, "A sync is already running for this owner")
		default:
			h.logger.Error("Sync failed", "owner", ownerID, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to sync projects")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"message":  "Projects synced successfully",
		"count":    len(result.Projects),
		"projects": result.Projects,
		"skipped":  result.Skipped,
	})
}

// getRemoteRepos lists the owner's repositories as seen by GitHub.
// GET /v1/owners/{ownerID}/github/repos
func (h *Handler) getRemoteRepos(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerIDParam(w, r)
	if !ok {
		return
	}

	owner, ok := h.loadOwner(w, r, ownerID)
	if !ok {
		return
	}
	if !owner.Connected() {
		respondWithError(w, http.StatusBadRequest, "GitHub account not connected")
		return
	}

	fetcher, err := h.newFetcher(owner.GithubAccessToken)
	if err != nil {
		h.logger.Error("Failed to build GitHub client", "owner", ownerID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch repositories")
		return
	}

	repos, err := fetcher.ListOwnerRepos(r.Context())
	if err != nil {
		h.logger.Error("Failed to fetch repositories", "owner", ownerID, "error", err)
		respondWithError(w, http.StatusBadGateway, "Failed to fetch repositories")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"repos": repos})
}

// getOwnerProjects returns the owner's persisted project catalog.
// GET /v1/owners/{ownerID}/projects
func (h *Handler) getOwnerProjects(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerIDParam(w, r)
	if !ok {
		return
	}
	if _, ok := h.loadOwner(w, r, ownerID); !ok {
		return
	}

	projects, err := h.db.ListOwnerProjects(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("Failed to list projects", "owner", ownerID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// getRecentProjects returns the most recently added projects across owners.
// GET /v1/projects/recent?limit=N
func (h *Handler) getRecentProjects(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		limitStr = "20" // Default limit
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 100 {
		respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 100.")
		return
	}

	projects, err := h.db.ListRecentProjects(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list recent projects", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// previewProjectSummary generates enrichment content for arbitrary project
// metadata without persisting anything. Never fails: the engine substitutes
// fallback content when the oracle is unavailable.
// POST /v1/ai/project-summary
func (h *Handler) previewProjectSummary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Language    string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == "" || req.Description == "" {
		respondWithError(w, http.StatusBadRequest, "Title and description are required")
		return
	}

	enrichment := h.enricher.EnrichProject(r.Context(), enrich.ProjectInput{
		Title:           req.Title,
		Description:     req.Description,
		PrimaryLanguage: req.Language,
	})

	respondWithJSON(w, http.StatusOK, enrichment)
}

// generateOwnerSummary builds the owner's AI profile narrative from their
// most recent projects and stores it on the owner record.
// POST /v1/owners/{ownerID}/ai/summary
func (h *Handler) generateOwnerSummary(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerIDParam(w, r)
	if !ok {
		return
	}
	owner, ok := h.loadOwner(w, r, ownerID)
	if !ok {
		return
	}

	projects, err := h.db.ListOwnerProjects(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("Failed to list projects", "owner", ownerID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if len(projects) > 10 {
		projects = projects[:10]
	}

	summary := h.enricher.SummarizeOwner(r.Context(), owner, projects)

	if err := h.db.UpdateOwnerSummary(r.Context(), ownerID, summary); err != nil {
		h.logger.Error("Failed to store owner summary", "owner", ownerID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"summary":          summary,
		"projectsAnalyzed": len(projects),
	})
}

func (h *Handler) ownerIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	ownerID, err := uuid.Parse(chi.URLParam(r, "ownerID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid owner id")
		return uuid.Nil, false
	}
	return ownerID, true
}

func (h *Handler) loadOwner(w http.ResponseWriter, r *http.Request, ownerID uuid.UUID) (model.Owner, bool) {
	owner, err := h.db.GetOwner(r.Context(), ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Owner not found")
			return model.Owner{}, false
		}
		h.logger.Error("Failed to get owner", "owner", ownerID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return model.Owner{}, false
	}
	return owner, true
}

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, map[string]string{"message": message})
}

// internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"devfolio/internal/enrich"
	custom_errors "devfolio/internal/errors"
	"devfolio/internal/model"
	"devfolio/internal/store"
)

// Description stored for remote repositories without one.
const noDescription = "No description provided"

// RepoFetcher lists an owner's remote repositories and their language
// breakdowns. Implemented by github.Client.
type RepoFetcher interface {
	ListOwnerRepos(ctx context.Context) ([]model.Repository, error)
	ListLanguages(ctx context.Context, fullName string) (map[string]int, error)
}

// FetcherFactory builds a RepoFetcher authenticated with an owner's token.
type FetcherFactory func(token string) (RepoFetcher, error)

// Enricher generates AI content for a project. Implemented by enrich.Engine;
// never returns an error (fallback values instead).
type Enricher interface {
	EnrichProject(ctx context.Context, in enrich.ProjectInput) model.Enrichment
}

// SkippedRepo describes a repository that could not be reconciled during a
// sync. The rest of the batch is unaffected.
type SkippedRepo struct {
	GithubRepoID int64  `json:"githubRepoId"`
	Name         string `json:"name"`
	Reason       string `json:"reason"`
}

// Result is the outcome of one sync call: the successfully reconciled
// projects plus a record of any repositories that were skipped.
type Result struct {
	Projects []model.Project `json:"projects"`
	Skipped  []SkippedRepo   `json:"skipped"`
}

// Syncer orchestrates pulling an owner's remote repositories into the local
// project catalog.
type Syncer struct {
	db          store.Querier
	newFetcher  FetcherFactory
	enricher    Enricher
	logger      *slog.Logger
	callTimeout time.Duration
	locks       *ownerLocks
}

// NewSyncer creates a new Syncer instance. callTimeout bounds each external
// call (fetcher, oracle); zero disables the bound.
func NewSyncer(db store.Querier, newFetcher FetcherFactory, enricher Enricher, logger *slog.Logger, callTimeout time.Duration) *Syncer {
	return &Syncer{
		db:          db,
		newFetcher:  newFetcher,
		enricher:    enricher,
		logger:      logger,
		callTimeout: callTimeout,
		locks:       newOwnerLocks(),
	}
}

// SyncOwnerProjects reconciles the owner's remote repositories against the
// local catalog.
//
// Fatal errors: unknown owner, missing credential (ErrNotConnected), a sync
// already running for the owner (ErrSyncInProgress), and repository-list
// failure — none of these commit any write. Everything else is isolated per
// repository: a failed language lookup or persistence error degrades or
// skips that one repository and the batch continues.
func (s *Syncer) SyncOwnerProjects(ctx context.Context, ownerID uuid.UUID) (*Result, error) {
	owner, err := s.db.GetOwner(ctx, ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, custom_errors.ErrOwnerNotFound
	} else if err != nil {
		return nil, fmt.Errorf("load owner: %w", err)
	}

	if !owner.Connected() {
		return nil, custom_errors.ErrNotConnected
	}

	if !s.locks.tryAcquire(owner.ID) {
		return nil, custom_errors.ErrSyncInProgress
	}
	defer s.locks.release(owner.ID)

	fetcher, err := s.newFetcher(owner.GithubAccessToken)
	if err != nil {
		return nil, fmt.Errorf("build github client: %w", err)
	}

	logger := s.logger.With("owner", owner.ID)
	logger.Info("Syncing owner projects")

	listCtx, cancel := s.withCallTimeout(ctx)
	repos, err := fetcher.ListOwnerRepos(listCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}

	result := &Result{Projects: []model.Project{}, Skipped: []SkippedRepo{}}
	for _, repo := range repos {
		// Only original, public repositories are eligible.
		if repo.Private || repo.Fork {
			continue
		}

		project, err := s.reconcileRepo(ctx, logger, fetcher, owner, repo)
		if err != nil {
			logger.Error("Failed to sync repository", "repo", repo.Name, "error", err)
			result.Skipped = append(result.Skipped, SkippedRepo{
				GithubRepoID: repo.GithubRepoID,
				Name:         repo.Name,
				Reason:       err.Error(),
			})
			continue
		}
		result.Projects = append(result.Projects, project)
	}

	if err := s.db.UpdateOwnerSyncTime(ctx, owner.ID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("record owner sync time: %w", err)
	}

	logger.Info("Sync finished", "synced", len(result.Projects), "skipped", len(result.Skipped))
	return result, nil
}

// reconcileRepo matches one remote repository to a local project, creating or
// updating it. Language-lookup failure is non-fatal: the existing breakdown
// is kept and the repository still syncs.
func (s *Syncer) reconcileRepo(ctx context.Context, logger *slog.Logger, fetcher RepoFetcher, owner model.Owner, repo model.Repository) (model.Project, error) {
	existing, err := s.db.GetProjectByRepoID(ctx, owner.ID, repo.GithubRepoID)
	isNew := errors.Is(err, pgx.ErrNoRows)
	if err != nil && !isNew {
		return model.Project{}, fmt.Errorf("lookup project: %w", err)
	}

	var project model.Project
	if isNew {
		project = newProjectFromRepo(owner.ID, repo)
	} else {
		project = existing
		applyRepoUpdate(&project, repo)
	}

	langCtx, cancel := s.withCallTimeout(ctx)
	languageBytes, err := fetcher.ListLanguages(langCtx, repo.FullName)
	cancel()
	if err != nil {
		logger.Warn("Failed to fetch languages, keeping existing breakdown", "repo", repo.Name, "error", err)
	} else {
		project.Languages = languagePercentages(languageBytes)
	}

	if project.NeedsEnrichment() {
		enrichCtx, cancel := s.withCallTimeout(ctx)
		project.Enrichment = s.enricher.EnrichProject(enrichCtx, enrich.ProjectInput{
			Title:           project.Title,
			Description:     project.Description,
			PrimaryLanguage: project.PrimaryLanguage,
			Languages:       project.Languages,
		})
		cancel()
	}

	now := time.Now().UTC()
	project.LastSyncAt = &now

	if isNew {
		return s.db.CreateProject(ctx, project)
	}
	return s.db.UpdateSyncedProject(ctx, project)
}

// newProjectFromRepo seeds a project from a remote repository observed for
// the first time.
func newProjectFromRepo(ownerID uuid.UUID, repo model.Repository) model.Project {
	description := noDescription
	if repo.Description != nil && *repo.Description != "" {
		description = *repo.Description
	}

	repoID := repo.GithubRepoID
	createdAt, updatedAt, pushedAt := repo.CreatedAt, repo.UpdatedAt, repo.PushedAt

	return model.Project{
		OwnerID:         ownerID,
		Title:           repo.Name,
		Description:     description,
		GithubURL:       repo.URL,
		GithubRepoID:    &repoID,
		PrimaryLanguage: derefString(repo.Language),
		Stars:           repo.Stars,
		Forks:           repo.Forks,
		Watchers:        repo.Watchers,
		Size:            repo.Size,
		SyncStatus:      model.SyncStatusSynced,
		RepoCreatedAt:   &createdAt,
		RepoUpdatedAt:   &updatedAt,
		RepoPushedAt:    &pushedAt,
	}
}

// applyRepoUpdate overwrites the provider-authoritative fields of an existing
// project. The remote description only wins when non-empty; engagement
// counters are never touched.
func applyRepoUpdate(project *model.Project, repo model.Repository) {
	project.Title = repo.Name
	if repo.Description != nil && *repo.Description != "" {
		project.Description = *repo.Description
	}
	project.PrimaryLanguage = derefString(repo.Language)
	project.Stars = repo.Stars
	project.Forks = repo.Forks
	project.Watchers = repo.Watchers
	project.Size = repo.Size

	updatedAt, pushedAt := repo.UpdatedAt, repo.PushedAt
	project.RepoUpdatedAt = &updatedAt
	project.RepoPushedAt = &pushedAt
	project.SyncStatus = model.SyncStatusSynced
}

// languagePercentages converts byte counts to integer percentage shares of
// the total. Entries are ordered lexically by name so the derived list is
// deterministic.
func languagePercentages(languageBytes map[string]int) []model.Language {
	total := 0
	for _, count := range languageBytes {
		total += count
	}

	languages := make([]model.Language, 0, len(languageBytes))
	if total <= 0 {
		return languages
	}

	names := make([]string, 0, len(languageBytes))
	for name := range languageBytes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		languages = append(languages, model.Language{
			Name:       name,
			Percentage: int(math.Round(float64(languageBytes[name]) / float64(total) * 100)),
		})
	}
	return languages
}

func (s *Syncer) withCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.callTimeout)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// internal/syncer/syncer_test.go
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devfolio/internal/enrich"
	custom_errors "devfolio/internal/errors"
	"devfolio/internal/model"
	"devfolio/internal/store"
)

// memStore is an in-memory store.Querier with the same write semantics as
// the SQL implementation: UpdateSyncedProject never touches likes/views.
type memStore struct {
	owners   map[uuid.UUID]model.Owner
	projects map[uuid.UUID]model.Project

	createCalls int
	createErr   error
	failTitles  map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		owners:     make(map[uuid.UUID]model.Owner),
		projects:   make(map[uuid.UUID]model.Project),
		failTitles: make(map[string]bool),
	}
}

var _ store.Querier = (*memStore)(nil)

func (m *memStore) GetOwner(_ context.Context, id uuid.UUID) (model.Owner, error) {
	owner, ok := m.owners[id]
	if !ok {
		return model.Owner{}, pgx.ErrNoRows
	}
	return owner, nil
}

func (m *memStore) CreateOwner(_ context.Context, owner model.Owner) (model.Owner, error) {
	if owner.ID == uuid.Nil {
		owner.ID = uuid.New()
	}
	m.owners[owner.ID] = owner
	return owner, nil
}

func (m *memStore) ListAutoSyncOwners(_ context.Context) ([]model.Owner, error) {
	var owners []model.Owner
	for _, o := range m.owners {
		if o.AutoSyncProjects && o.Connected() {
			owners = append(owners, o)
		}
	}
	return owners, nil
}

func (m *memStore) UpdateOwnerSyncTime(_ context.Context, id uuid.UUID, syncedAt time.Time) error {
	owner, ok := m.owners[id]
	if !ok {
		return pgx.ErrNoRows
	}
	owner.LastSyncAt = &syncedAt
	m.owners[id] = owner
	return nil
}

func (m *memStore) UpdateOwnerSummary(_ context.Context, id uuid.UUID, summary string) error {
	owner, ok := m.owners[id]
	if !ok {
		return pgx.ErrNoRows
	}
	owner.AISummary = summary
	m.owners[id] = owner
	return nil
}

func (m *memStore) GetProjectByRepoID(_ context.Context, ownerID uuid.UUID, githubRepoID int64) (model.Project, error) {
	for _, p := range m.projects {
		if p.OwnerID == ownerID && p.GithubRepoID != nil && *p.GithubRepoID == githubRepoID {
			return p, nil
		}
	}
	return model.Project{}, pgx.ErrNoRows
}

func (m *memStore) CreateProject(_ context.Context, project model.Project) (model.Project, error) {
	m.createCalls++
	if m.createErr != nil || m.failTitles[project.Title] {
		if m.createErr != nil {
			return model.Project{}, m.createErr
		}
		return model.Project{}, errors.New("insert failed")
	}
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	m.projects[project.ID] = project
	return project, nil
}

func (m *memStore) UpdateSyncedProject(_ context.Context, project model.Project) (model.Project, error) {
	existing, ok := m.projects[project.ID]
	if !ok {
		return model.Project{}, pgx.ErrNoRows
	}
	// Mirror the SQL statement: engagement counters come from the stored
	// row, never from the input.
	project.Likes = existing.Likes
	project.Views = existing.Views
	project.RepoCreatedAt = existing.RepoCreatedAt
	m.projects[project.ID] = project
	return project, nil
}

func (m *memStore) ListOwnerProjects(_ context.Context, ownerID uuid.UUID) ([]model.Project, error) {
	var projects []model.Project
	for _, p := range m.projects {
		if p.OwnerID == ownerID {
			projects = append(projects, p)
		}
	}
	return projects, nil
}

func (m *memStore) ListRecentProjects(_ context.Context, limit int) ([]model.Project, error) {
	var projects []model.Project
	for _, p := range m.projects {
		projects = append(projects, p)
		if len(projects) == limit {
			break
		}
	}
	return projects, nil
}

// fakeFetcher serves a scripted repository list and language breakdowns.
type fakeFetcher struct {
	repos     []model.Repository
	listErr   error
	languages map[string]map[string]int
	langErrs  map[string]error
}

func (f *fakeFetcher) ListOwnerRepos(_ context.Context) ([]model.Repository, error) {
	return f.repos, f.listErr
}

func (f *fakeFetcher) ListLanguages(_ context.Context, fullName string) (map[string]int, error) {
	if err, ok := f.langErrs[fullName]; ok {
		return nil, err
	}
	return f.languages[fullName], nil
}

// fakeEnricher records calls and serves the deterministic fallback.
type fakeEnricher struct {
	calls []enrich.ProjectInput
}

func (f *fakeEnricher) EnrichProject(_ context.Context, in enrich.ProjectInput) model.Enrichment {
	f.calls = append(f.calls, in)
	return enrich.FallbackEnrichment(in.PrimaryLanguage)
}

func newTestSyncer(db store.Querier, fetcher RepoFetcher, enricher Enricher) *Syncer {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	factory := func(string) (RepoFetcher, error) { return fetcher, nil }
	return NewSyncer(db, factory, enricher, logger, time.Second)
}

func strPtr(s string) *string { return &s }

func seedOwner(db *memStore, token string) model.Owner {
	owner, _ := db.CreateOwner(context.Background(), model.Owner{
		Name:              "Ada",
		Email:             "ada@example.com",
		AccountType:       model.AccountTypeStudent,
		GithubAccessToken: token,
		AutoSyncProjects:  true,
	})
	return owner
}

func testRepo(id int64, name string) model.Repository {
	return model.Repository{
		GithubRepoID: id,
		Name:         name,
		FullName:     "ada/" + name,
		Description:  strPtr("a " + name + " project"),
		Language:     strPtr("Go"),
		Stars:        10,
		Forks:        2,
		Watchers:     10,
		Size:         120,
		CreatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		PushedAt:     time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
		URL:          "https://github.com/ada/" + name,
	}
}

func TestSyncer_SyncOwnerProjects(t *testing.T) {
	ctx := context.Background()

	t.Run("fails fast with NotConnected and performs zero writes", func(t *testing.T) {
		db := newMemStore()
		owner := seedOwner(db, "")
		s := newTestSyncer(db, &fakeFetcher{}, &fakeEnricher{})

		_, err := s.SyncOwnerProjects(ctx, owner.ID)

		assert.ErrorIs(t, err, custom_errors.ErrNotConnected)
		assert.Empty(t, db.projects)
		assert.Nil(t, db.owners[owner.ID].LastSyncAt)
	})

	t.Run("returns OwnerNotFound for an unknown owner", func(t *testing.T) {
		s := newTestSyncer(newMemStore(), &fakeFetcher{}, &fakeEnricher{})

		_, err := s.SyncOwnerProjects(ctx, uuid.New())

		assert.ErrorIs(t, err, custom_errors.ErrOwnerNotFound)
	})

	t.Run("aborts the whole call when the repository list fails", func(t *testing.T) {
		db := newMemStore()
		owner := seedOwner(db, "tok")
		s := newTestSyncer(db, &fakeFetcher{listErr: errors.New("rate limited")}, &fakeEnricher{})

		_, err := s.SyncOwnerProjects(ctx, owner.ID)

		require.Error(t, err)
		assert.Empty(t, db.projects)
		assert.Nil(t, db.owners[owner.ID].LastSyncAt)
	})

	t.Run("skips private and forked repositories", func(t *testing.T) {
		db := newMemStore()
		owner := seedOwner(db, "tok")

		private := testRepo(1, "secret")
		private.Private = true
		forked := testRepo(2, "copy")
		forked.Fork = true
		fetcher := &fakeFetcher{repos: []model.Repository{private, forked, testRepo(3, "real")}}
		s := newTestSyncer(db, fetcher, &fakeEnricher{})

		result, err := s.SyncOwnerProjects(ctx, owner.ID)

		require.NoError(t, err)
		require.Len(t, result.Projects, 1)
		assert.Equal(t, "real", result.Projects[0].Title)
		assert.Len(t, db.projects, 1)
	})

	t.Run("creates a new project seeded from the repository", func(t *testing.T) {
		db := newMemStore()
		owner := seedOwner(db, "tok")
		repo := testRepo(42, "alpha")
		fetcher := &fakeFetcher{
			repos:     []model.Repository{repo},
			languages: map[string]map[string]int{"ada/alpha": {"Go": 700, "HTML": 300}},
		}
		enricher := &fakeEnricher{}
		s := newTestSyncer(db, fetcher, enricher)

		result, err := s.SyncOwnerProjects(ctx, owner.ID)

		require.NoError(t, err)
		require.Len(t, result.Projects, 1)
		p := result.Projects[0]
		assert.Equal(t, "alpha", p.Title)
		assert.Equal(t, "a alpha project", p.Description)
		require.NotNil(t, p.GithubRepoID)
		assert.Equal(t, int64(42), *p.GithubRepoID)
		assert.Equal(t, "Go", p.PrimaryLanguage)
		assert.Equal(t, 10, p.Stars)
		assert.Equal(t, model.SyncStatusSynced, p.SyncStatus)
		assert.Equal(t, []model.Language{{Name: "Go", Percentage: 70}, {Name: "HTML", Percentage: 30}}, p.Languages)
		assert.NotNil(t, p.LastSyncAt)
		require.Len(t, enricher.calls, 1)
		assert.Equal(t, "A Go project demonstrating modern development practices and technical skills.", p.Enrichment.Summary)
		assert.NotNil(t, db.owners[owner.ID].LastSyncAt)
	})

	t.Run("uses a placeholder when the repository has no description", func(t *testing.T) {
		db := newMemStore()
		owner := seedOwner(db, "tok")
		repo := testRepo(7, "bare")
		repo.Description = nil
		s := newTestSyncer(db, &fakeFetcher{repos: []model.Repository{repo}}, &fakeEnricher{})

		result, err := s.SyncOwnerProjects(ctx, owner.ID)

		require.NoError(t, err)
		assert.Equal(t, "No description provided", result.Projects[0].Description)
	})

	t.Run("is idempotent for an unchanged repository set", func(t *testing.T) {
		db := newMemStore()
		owner := seedOwner(db, "tok")
		fetcher := &fakeFetcher{repos: []model.Repository{testRepo(1, "alpha"), testRepo(2, "beta")}}
		s := newTestSyncer(db, fetcher, &fakeEnricher{})

		first, err := s.SyncOwnerProjects(ctx, owner.ID)
		require.NoError(t, err)
		second, err := s.SyncOwnerProjects(ctx, owner.ID)
		require.NoError(t, err)

		assert.Len(t, first.Projects, 2)
		assert.Len(t, second.Projects, 2)
		assert.Len(t, db.projects, 2, "no duplicate projects after resync")
		assert.Equal(t, 2, db.createCalls, "second pass must update, not create")
		assert.Equal(t, first.Projects[0].Stars, second.Projects[0].Stars)
	})

	t.Run("resync overwrites stats but preserves engagement counters", func(t *testing.T) {
		db := newMemStore()
		owner := seedOwner(db, "tok")
		fetcher := &fakeFetcher{repos: []model.Repository{testRepo(1, "alpha")}}
		s := newTestSyncer(db, fetcher, &fakeEnricher{})

		first, err := s.SyncOwnerProjects(ctx, owner.ID)
		require.NoError(t, err)

		// Interaction API racks up engagement between syncs.
		stored := db.projects[first.Projects[0].ID]
		stored.Likes = 50
		stored.Views = 200
		db.projects[stored.ID] = stored

		updated := testRepo(1, "alpha")
		updated.Stars = 99
		fetcher.repos = []model.Repository{updated}

		second, err := s.SyncOwnerProjects(ctx, owner.ID)
		require.NoError(t, err)

		p := second.Projects[0]
		assert.Equal(t, 99, p.Stars)
		assert.Equal(t, 50, p.Likes)
		assert.Equal(t, 200, p.Views)
	})

	t.Run("resync keeps the local description when the remote one is empty", func(t *testing.T) {
		db := newMemStore()
		owner := seedOwner(db, "tok")
		fetcher := &fakeFetcher{repos: []model.Repository{testRepo(1, "alpha")}}
		s := newTestSyncer(db, fetcher, &fakeEnricher{})

		_, err := s.SyncOwnerProjects(ctx, owner.ID)
		require.NoError(t, err)

		bare := testRepo(1, "alpha")
		bare.Description = strPtr("")
		fetcher.repos = []model.Repository{bare}

		result, err := s.SyncOwnerProjects(ctx, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, "a alpha project", result.Projects[0].Description)
	})

	t.Run("does not re-enrich an already enriched project", func(t *testing.T) {
		db := newMemStore()
		owner := seedOwner(db, "tok")
		fetcher := &fakeFetcher{repos: []model.Repository{testRepo(1, "alpha")}}
		enricher := &fakeEnricher{}
		s := newTestSyncer(db, fetcher, enricher)

		_, err := s.SyncOwnerProjects(ctx, owner.ID)
		require.NoError(t, err)
		_, err = s.SyncOwnerProjects(ctx, owner.ID)
		require.NoError(t, err)

		assert.Len(t, enricher.calls, 1, "enrichment runs only while summary/tags are empty")
	})

	t.Run("isolates a language-lookup failure to its repository", func(t *testing.T) {
		db := newMemStore()
		owner := seedOwner(db, "tok")
		fetcher := &fakeFetcher{
			repos: []model.Repository{testRepo(1, "one"), testRepo(2, "two"), testRepo(3, "three")},
			languages: map[string]map[string]int{
				"ada/one":   {"Go": 100},
				"ada/three": {"Rust": 100},
			},
			langErrs: map[string]error{"ada/two": errors.New("boom")},
		}
		s := newTestSyncer(db, fetcher, &fakeEnricher{})

		result, err := s.SyncOwnerProjects(ctx, owner.ID)

		require.NoError(t, err)
		require.Len(t, result.Projects, 3)
		assert.NotEmpty(t, result.Projects[0].Languages)
		assert.Empty(t, result.Projects[1].Languages)
		assert.NotEmpty(t, result.Projects[2].Languages)
		assert.Empty(t, result.Skipped)
	})

	t.Run("isolates a persistence failure and reports it as skipped", func(t *testing.T) {
		db := newMemStore()
		db.failTitles["two"] = true
		owner := seedOwner(db, "tok")
		fetcher := &fakeFetcher{repos: []model.Repository{testRepo(1, "one"), testRepo(2, "two"), testRepo(3, "three")}}
		s := newTestSyncer(db, fetcher, &fakeEnricher{})

		result, err := s.SyncOwnerProjects(ctx, owner.ID)

		require.NoError(t, err)
		require.Len(t, result.Projects, 2)
		require.Len(t, result.Skipped, 1)
		assert.Equal(t, int64(2), result.Skipped[0].GithubRepoID)
		assert.Equal(t, "two", result.Skipped[0].Name)
		assert.NotNil(t, db.owners[owner.ID].LastSyncAt)
	})

	t.Run("rejects a concurrent sync for the same owner", func(t *testing.T) {
		db := newMemStore()
		owner := seedOwner(db, "tok")
		s := newTestSyncer(db, &fakeFetcher{repos: []model.Repository{testRepo(1, "alpha")}}, &fakeEnricher{})

		require.True(t, s.locks.tryAcquire(owner.ID))
		defer s.locks.release(owner.ID)

		_, err := s.SyncOwnerProjects(ctx, owner.ID)

		assert.ErrorIs(t, err, custom_errors.ErrSyncInProgress)
	})

	t.Run("releases the owner lock after a failed sync", func(t *testing.T) {
		db := newMemStore()
		owner := seedOwner(db, "tok")
		fetcher := &fakeFetcher{listErr: errors.New("down")}
		s := newTestSyncer(db, fetcher, &fakeEnricher{})

		_, err := s.SyncOwnerProjects(ctx, owner.ID)
		require.Error(t, err)

		fetcher.listErr = nil
		_, err = s.SyncOwnerProjects(ctx, owner.ID)
		assert.NoError(t, err)
	})
}

func TestLanguagePercentages(t *testing.T) {
	t.Run("normalizes byte counts to integer percentages", func(t *testing.T) {
		got := languagePercentages(map[string]int{"A": 300, "B": 700})

		assert.Equal(t, []model.Language{{Name: "A", Percentage: 30}, {Name: "B", Percentage: 70}}, got)
	})

	t.Run("rounds to the nearest integer", func(t *testing.T) {
		got := languagePercentages(map[string]int{"Go": 1, "Make": 2})

		assert.Equal(t, []model.Language{{Name: "Go", Percentage: 33}, {Name: "Make", Percentage: 67}}, got)
	})

	t.Run("returns an empty list for no data", func(t *testing.T) {
		assert.Empty(t, languagePercentages(nil))
		assert.Empty(t, languagePercentages(map[string]int{}))
	})
}

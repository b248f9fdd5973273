// internal/store/store.go
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"devfolio/internal/model"
)

// Querier is the persistence interface consumed by the syncer and the API
// layer. Lookups return pgx.ErrNoRows when nothing matches. Writes are
// single-row operations; the catalog needs no multi-row transactions.
type Querier interface {
	GetOwner(ctx context.Context, id uuid.UUID) (model.Owner, error)
	CreateOwner(ctx context.Context, owner model.Owner) (model.Owner, error)
	ListAutoSyncOwners(ctx context.Context) ([]model.Owner, error)
	UpdateOwnerSyncTime(ctx context.Context, id uuid.UUID, syncedAt time.Time) error
	UpdateOwnerSummary(ctx context.Context, id uuid.UUID, summary string) error

	GetProjectByRepoID(ctx context.Context, ownerID uuid.UUID, githubRepoID int64) (model.Project, error)
	CreateProject(ctx context.Context, project model.Project) (model.Project, error)
	UpdateSyncedProject(ctx context.Context, project model.Project) (model.Project, error)
	ListOwnerProjects(ctx context.Context, ownerID uuid.UUID) ([]model.Project, error)
	ListRecentProjects(ctx context.Context, limit int) ([]model.Project, error)
}

// Store is the pgx-backed Querier implementation.
type Store struct {
	pool *pgxpool.Pool
}

var _ Querier = (*Store)(nil)

// New creates a Store on top of a pgx connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

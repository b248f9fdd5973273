// internal/store/owners.go
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"devfolio/internal/model"
)

const ownerColumns = `id, name, email, account_type, bio, skills,
	github_username, github_access_token, auto_sync_projects, ai_summary,
	last_sync_at, created_at, updated_at`

func (s *Store) GetOwner(ctx context.Context, id uuid.UUID) (model.Owner, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+ownerColumns+` FROM owners WHERE id = $1`, id)
	return scanOwner(row)
}

func (s *Store) CreateOwner(ctx context.Context, owner model.Owner) (model.Owner, error) {
	if owner.ID == uuid.Nil {
		owner.ID = uuid.New()
	}
	owner.Skills = nonNil(owner.Skills)
	row := s.pool.QueryRow(ctx, `
		INSERT INTO owners (id, name, email, account_type, bio, skills,
			github_username, github_access_token, auto_sync_projects, ai_summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+ownerColumns,
		owner.ID, owner.Name, owner.Email, owner.AccountType, owner.Bio,
		owner.Skills, owner.GithubUsername, owner.GithubAccessToken,
		owner.AutoSyncProjects, owner.AISummary)
	return scanOwner(row)
}

// ListAutoSyncOwners returns connected owners that opted into background
// synchronization.
func (s *Store) ListAutoSyncOwners(ctx context.Context) ([]model.Owner, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ownerColumns+`
		FROM owners
		WHERE auto_sync_projects AND github_access_token <> ''
		ORDER BY last_sync_at ASC NULLS FIRST`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []model.Owner
	for rows.Next() {
		owner, err := scanOwner(rows)
		if err != nil {
			return nil, err
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

func (s *Store) UpdateOwnerSyncTime(ctx context.Context, id uuid.UUID, syncedAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE owners SET last_sync_at = $2, updated_at = now() WHERE id = $1`,
		id, syncedAt)
	return err
}

func (s *Store) UpdateOwnerSummary(ctx context.Context, id uuid.UUID, summary string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE owners SET ai_summary = $2, updated_at = now() WHERE id = $1`,
		id, summary)
	return err
}

// nonNil keeps nil slices out of NOT NULL array columns.
func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func scanOwner(row pgx.Row) (model.Owner, error) {
	var o model.Owner
	err := row.Scan(
		&o.ID, &o.Name, &o.Email, &o.AccountType, &o.Bio, &o.Skills,
		&o.GithubUsername, &o.GithubAccessToken, &o.AutoSyncProjects,
		&o.AISummary, &o.LastSyncAt, &o.DBCreatedAt, &o.DBUpdatedAt)
	if err != nil {
		return model.Owner{}, err
	}
	return o, nil
}

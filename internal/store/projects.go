// internal/store/projects.go
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"devfolio/internal/model"
)

const projectColumns = `id, owner_id, title, description, github_url,
	github_repo_id, primary_language, languages, stars, forks, watchers, size,
	likes, views, ai_summary, ai_tags, skills_detected, complexity_score,
	sync_status, last_sync_at, repo_created_at, repo_updated_at,
	repo_pushed_at, created_at, updated_at`

func (s *Store) GetProjectByRepoID(ctx context.Context, ownerID uuid.UUID, githubRepoID int64) (model.Project, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE owner_id = $1 AND github_repo_id = $2`,
		ownerID, githubRepoID)
	return scanProject(row)
}

func (s *Store) CreateProject(ctx context.Context, project model.Project) (model.Project, error) {
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	project.Enrichment.Tags = nonNil(project.Enrichment.Tags)
	project.Enrichment.Skills = nonNil(project.Enrichment.Skills)
	languages, err := marshalLanguages(project.Languages)
	if err != nil {
		return model.Project{}, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO projects (id, owner_id, title, description, github_url,
			github_repo_id, primary_language, languages, stars, forks,
			watchers, size, ai_summary, ai_tags, skills_detected,
			complexity_score, sync_status, last_sync_at, repo_created_at,
			repo_updated_at, repo_pushed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING `+projectColumns,
		project.ID, project.OwnerID, project.Title, project.Description,
		project.GithubURL, project.GithubRepoID, project.PrimaryLanguage,
		languages, project.Stars, project.Forks, project.Watchers,
		project.Size, project.Enrichment.Summary, project.Enrichment.Tags,
		project.Enrichment.Skills, project.Enrichment.ComplexityScore,
		project.SyncStatus, project.LastSyncAt, project.RepoCreatedAt,
		project.RepoUpdatedAt, project.RepoPushedAt)
	return scanProject(row)
}

// UpdateSyncedProject overwrites the sync-owned fields of an existing
// project. Engagement counters (likes, views) are deliberately absent from
// the statement; the interaction API owns them.
func (s *Store) UpdateSyncedProject(ctx context.Context, project model.Project) (model.Project, error) {
	project.Enrichment.Tags = nonNil(project.Enrichment.Tags)
	project.Enrichment.Skills = nonNil(project.Enrichment.Skills)
	languages, err := marshalLanguages(project.Languages)
	if err != nil {
		return model.Project{}, err
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE projects SET
			title = $2, description = $3, primary_language = $4,
			languages = $5, stars = $6, forks = $7, watchers = $8,
			size = $9, ai_summary = $10, ai_tags = $11,
			skills_detected = $12, complexity_score = $13,
			sync_status = $14, last_sync_at = $15, repo_updated_at = $16,
			repo_pushed_at = $17, updated_at = now()
		WHERE id = $1
		RETURNING `+projectColumns,
		project.ID, project.Title, project.Description,
		project.PrimaryLanguage, languages, project.Stars, project.Forks,
		project.Watchers, project.Size, project.Enrichment.Summary,
		project.Enrichment.Tags, project.Enrichment.Skills,
		project.Enrichment.ComplexityScore, project.SyncStatus,
		project.LastSyncAt, project.RepoUpdatedAt, project.RepoPushedAt)
	return scanProject(row)
}

func (s *Store) ListOwnerProjects(ctx context.Context, ownerID uuid.UUID) ([]model.Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE owner_id = $1 ORDER BY created_at DESC`,
		ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProjects(rows)
}

func (s *Store) ListRecentProjects(ctx context.Context, limit int) ([]model.Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProjects(rows)
}

func collectProjects(rows pgx.Rows) ([]model.Project, error) {
	var projects []model.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func scanProject(row pgx.Row) (model.Project, error) {
	var (
		p         model.Project
		languages []byte
	)
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.GithubURL,
		&p.GithubRepoID, &p.PrimaryLanguage, &languages, &p.Stars, &p.Forks,
		&p.Watchers, &p.Size, &p.Likes, &p.Views, &p.Enrichment.Summary,
		&p.Enrichment.Tags, &p.Enrichment.Skills,
		&p.Enrichment.ComplexityScore, &p.SyncStatus, &p.LastSyncAt,
		&p.RepoCreatedAt, &p.RepoUpdatedAt, &p.RepoPushedAt,
		&p.DBCreatedAt, &p.DBUpdatedAt)
	if err != nil {
		return model.Project{}, err
	}

	if len(languages) > 0 {
		if err := json.Unmarshal(languages, &p.Languages); err != nil {
			return model.Project{}, fmt.Errorf("decode languages for project %s: %w", p.ID, err)
		}
	}
	return p, nil
}

func marshalLanguages(languages []model.Language) ([]byte, error) {
	if languages == nil {
		languages = []model.Language{}
	}
	return json.Marshal(languages)
}

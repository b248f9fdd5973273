// internal/model/models.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus tracks where a project sits in the synchronization lifecycle.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusError   SyncStatus = "error"
)

// AccountType distinguishes developer accounts from recruiter accounts.
type AccountType string

const (
	AccountTypeStudent   AccountType = "student"
	AccountTypeRecruiter AccountType = "recruiter"
)

// Owner is a registered developer account that may link a GitHub credential.
// The sync pipeline reads the token and auto-sync preference and writes
// LastSyncAt; everything else belongs to the account subsystem.
type Owner struct {
	ID                uuid.UUID
	Name              string
	Email             string
	AccountType       AccountType
	Bio               string
	Skills            []string
	GithubUsername    string
	GithubAccessToken string
	AutoSyncProjects  bool
	AISummary         string
	LastSyncAt        *time.Time
	DBCreatedAt       time.Time
	DBUpdatedAt       time.Time
}

// Connected reports whether the owner has a GitHub credential on file.
func (o Owner) Connected() bool {
	return o.GithubAccessToken != ""
}

// Language is one entry of a project's language breakdown. Percentages are
// integer shares of the total byte count and sum to roughly 100.
type Language struct {
	Name       string `json:"name"`
	Percentage int    `json:"percentage"`
}

// Enrichment is the AI-generated content attached to a project. Summary is
// always non-empty once generated; the engine substitutes a templated
// fallback when the oracle is unavailable or returns unusable output.
type Enrichment struct {
	Summary         string   `json:"summary"`
	Tags            []string `json:"tags"`
	Skills          []string `json:"skills"`
	ComplexityScore int      `json:"complexityScore"`
}

// Project is the locally persisted representation of a showcased body of
// work. GithubRepoID is set only for projects that originate from a sync;
// (OwnerID, GithubRepoID) is unique when the latter is present.
type Project struct {
	ID              uuid.UUID  `json:"id"`
	OwnerID         uuid.UUID  `json:"ownerId"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	GithubURL       string     `json:"githubUrl"`
	GithubRepoID    *int64     `json:"githubRepoId,omitempty"`
	PrimaryLanguage string     `json:"language"`
	Languages       []Language `json:"languages"`

	// Repository stats, provider-authoritative, overwritten on every sync.
	Stars    int `json:"stars"`
	Forks    int `json:"forks"`
	Watchers int `json:"watchers"`
	Size     int `json:"size"`

	// Engagement counters, owned by the interaction API. Sync never
	// touches them.
	Likes int `json:"likes"`
	Views int `json:"views"`

	Enrichment Enrichment `json:"enrichment"`

	SyncStatus SyncStatus `json:"syncStatus"`
	LastSyncAt *time.Time `json:"lastSyncAt,omitempty"`

	RepoCreatedAt *time.Time `json:"repoCreatedAt,omitempty"`
	RepoUpdatedAt *time.Time `json:"repoUpdatedAt,omitempty"`
	RepoPushedAt  *time.Time `json:"repoPushedAt,omitempty"`

	DBCreatedAt time.Time `json:"createdAt"`
	DBUpdatedAt time.Time `json:"updatedAt"`
}

// NeedsEnrichment reports whether sync should (re)generate the project's AI
// content: only when no summary exists or the tag list is empty. Description
// edits on an already-enriched project do not retrigger enrichment here.
func (p Project) NeedsEnrichment() bool {
	return p.Enrichment.Summary == "" || len(p.Enrichment.Tags) == 0
}

// Repository is the metadata of a remote GitHub repository as returned by
// the fetcher, before reconciliation into a Project.
type Repository struct {
	GithubRepoID int64     `json:"id"`
	Name         string    `json:"name"`
	FullName     string    `json:"fullName"`
	Description  *string   `json:"description"`
	Language     *string   `json:"language"`
	Stars        int       `json:"stars"`
	Forks        int       `json:"forks"`
	Watchers     int       `json:"watchers"`
	Size         int       `json:"size"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	PushedAt     time.Time `json:"pushedAt"`
	URL          string    `json:"htmlUrl"`
	Private      bool      `json:"isPrivate"`
	Fork         bool      `json:"isFork"`
}

// internal/github/client.go
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"devfolio/internal/model"
)

const (
	// Max repositories per page; the API caps at 100.
	perPage = 100
	// Total attempts per call, including the first one.
	maxRetries = 3

	retryInitialInterval = 200 * time.Millisecond
	retryMaxInterval     = 2 * time.Second
)

// Client is a wrapper around the go-github client, authenticated with a
// single owner's access token. Construct one per sync call.
type Client struct {
	gh     *github.Client
	logger *slog.Logger
}

// NewClient creates and configures a new Client instance. The provided token
// is used to create an authenticated http.Client. apiURL overrides the API
// base URL when non-empty (GitHub Enterprise, tests).
func NewClient(token, apiURL string, logger *slog.Logger) (*Client, error) {
	httpClient := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	))

	gh := github.NewClient(httpClient)
	if apiURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(apiURL, apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url %q: %w", apiURL, err)
		}
	}

	return &Client{gh: gh, logger: logger}, nil
}

// ListOwnerRepos fetches all repositories visible to the authenticated owner,
// most recently updated first. It handles API pagination transparently.
func (c *Client) ListOwnerRepos(ctx context.Context) ([]model.Repository, error) {
	opts := &github.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var all []model.Repository
	for {
		c.logger.Debug("Fetching repositories page", "page", opts.Page)

		var (
			repos []*github.Repository
			resp  *github.Response
		)
		err := c.retry(ctx, func() error {
			var err error
			repos, resp, err = c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, repo := range repos {
			all = append(all, toInternalRepository(repo))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// ListLanguages fetches the language-name to byte-count mapping for a
// repository identified by its "owner/name" full name.
func (c *Client) ListLanguages(ctx context.Context, fullName string) (map[string]int, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("invalid repository full name: %q", fullName)
	}

	var languages map[string]int
	err := c.retry(ctx, func() error {
		var err error
		languages, _, err = c.gh.Repositories.ListLanguages(ctx, owner, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return languages, nil
}

// retry runs op with bounded exponential backoff. Client-side errors (4xx)
// are not retried; server errors, rate limits, and transport failures are.
func (c *Client) retry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitialInterval
	bo.MaxInterval = retryMaxInterval

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}

		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode < 500 {
			return backoff.Permanent(err)
		}

		c.logger.Warn("GitHub call failed, retrying", "error", err)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries-1), ctx))
}

// toInternalRepository translates a github.Repository object to our internal
// model.Repository.
func toInternalRepository(r *github.Repository) model.Repository {
	return model.Repository{
		GithubRepoID: r.GetID(),
		Name:         r.GetName(),
		FullName:     r.GetFullName(),
		Description:  r.Description,
		Language:     r.Language,
		Stars:        r.GetStargazersCount(),
		Forks:        r.GetForksCount(),
		Watchers:     r.GetWatchersCount(),
		Size:         r.GetSize(),
		CreatedAt:    r.GetCreatedAt().Time,
		UpdatedAt:    r.GetUpdatedAt().Time,
		PushedAt:     r.GetPushedAt().Time,
		URL:          r.GetHTMLURL(),
		Private:      r.GetPrivate(),
		Fork:         r.GetFork(),
	}
}

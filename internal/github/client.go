// internal/github/client.go
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	apperrors "github-profile-analyzer/internal/errors"
	"github-profile-analyzer/internal/model"
)

const (
	graphQLEndpoint = "https://api.github.com/graphql"
	userAgent       = "github-profile-analyzer/1.0"

	// Per-call bound; a slow upstream delays the request up to this long.
	callTimeout = 30 * time.Second

	// Single page fetched for starred repos, repositories and commits.
	pageSize = 100
)

// contributionsQuery asks for a full year of daily contribution counts.
const contributionsQuery = `query($login: String!) {
  user(login: $login) {
    contributionsCollection {
      contributionCalendar {
        weeks {
          contributionDays {
            date
            contributionCount
          }
        }
      }
    }
  }
}`

// Client wraps a pool of authenticated go-github clients, one per configured
// token. Each call picks a credential with a uniform-random index so load
// spreads across rate limits. Adapters never retry; any failure surfaces as
// an *apperrors.UpstreamError carrying the upstream status.
type Client struct {
	pool       []*github.Client
	tokens     []string
	httpClient *http.Client
	graphQLURL string
	logger     *slog.Logger
}

// NewClient creates and configures a new Client instance. Each token gets its
// own authenticated http.Client via an oauth2 static token source.
func NewClient(tokens []string, logger *slog.Logger) *Client {
	ctx := context.Background()
	pool := make([]*github.Client, len(tokens))
	for i, token := range tokens {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		pool[i] = github.NewClient(oauth2.NewClient(ctx, ts))
	}

	return &Client{
		pool:       pool,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: callTimeout},
		graphQLURL: graphQLEndpoint,
		logger:     logger,
	}
}

// OverrideBaseURL points every pooled client and the GraphQL endpoint at a
// test server. Used by tests in other packages.
func (c *Client) OverrideBaseURL(url string) error {
	for i := range c.pool {
		gh, err := github.NewClient(nil).WithEnterpriseURLs(url, url)
		if err != nil {
			return err
		}
		c.pool[i] = gh
	}
	c.graphQLURL = url + "/graphql"
	return nil
}

func (c *Client) pick() int {
	return rand.IntN(len(c.pool))
}

// RateLimitSnapshot aggregates {limit, used, remaining} across every
// configured credential. Tokens whose probe fails are skipped; the call
// errors only when no token could be queried at all.
func (c *Client) RateLimitSnapshot(ctx context.Context) (*model.RateLimitSnapshot, error) {
	snap := &model.RateLimitSnapshot{}
	var lastErr error
	reached := false

	for i, gh := range c.pool {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		limits, _, err := gh.RateLimit.Get(callCtx)
		cancel()
		if err != nil {
			c.logger.Warn("Rate limit probe failed", "token_index", i, "error", err)
			lastErr = err
			continue
		}
		core := limits.GetCore()
		if core == nil {
			continue
		}
		snap.Limit += core.Limit
		snap.Remaining += core.Remaining
		snap.Used += core.Limit - core.Remaining
		reached = true
	}

	if !reached {
		return nil, upstreamError("github", lastErr)
	}
	return snap, nil
}

// StarredFullNames fetches the first page of the user's starred repositories
// and returns their full names ("owner/name").
func (c *Client) StarredFullNames(ctx context.Context, username string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	opts := &github.ActivityListStarredOptions{
		ListOptions: github.ListOptions{PerPage: pageSize},
	}
	starred, _, err := c.pool[c.pick()].Activity.ListStarred(ctx, username, opts)
	if err != nil {
		return nil, upstreamError("github", err)
	}

	names := make([]string, 0, len(starred))
	for _, s := range starred {
		names = append(names, s.GetRepository().GetFullName())
	}
	return names, nil
}

// GetUser fetches the user profile record and translates it into a profile
// summary seed: identity and counter fields populated, maps empty.
func (c *Client) GetUser(ctx context.Context, username string) (*model.ProfileSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	user, _, err := c.pool[c.pick()].Users.Get(ctx, username)
	if err != nil {
		return nil, upstreamError("github", err)
	}
	return toProfileSummary(user), nil
}

// ListRepositories fetches up to 100 repositories (single page) for the user.
func (c *Client) ListRepositories(ctx context.Context, username string) ([]model.Repository, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	opts := &github.RepositoryListByUserOptions{
		ListOptions: github.ListOptions{PerPage: pageSize},
	}
	repos, _, err := c.pool[c.pick()].Repositories.ListByUser(ctx, username, opts)
	if err != nil {
		return nil, upstreamError("github", err)
	}

	out := make([]model.Repository, 0, len(repos))
	for _, r := range repos {
		out = append(out, model.Repository{
			Name:   r.GetName(),
			Fork:   r.GetFork(),
			Fields: toRepoFields(r),
		})
	}
	return out, nil
}

// CommitAuthors returns the author logins of up to 100 recent commits on the
// repository. Only the first page is inspected; older authorship is invisible
// to callers. Commits without a linked GitHub account are skipped.
func (c *Client) CommitAuthors(ctx context.Context, owner, repo string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	opts := &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: pageSize},
	}
	commits, _, err := c.pool[c.pick()].Repositories.ListCommits(ctx, owner, repo, opts)
	if err != nil {
		return nil, upstreamError("github", err)
	}

	logins := make([]string, 0, len(commits))
	for _, commit := range commits {
		if commit.Author != nil {
			logins = append(logins, commit.Author.GetLogin())
		}
	}
	return logins, nil
}

// ContributionCalendar runs the contributions GraphQL query for the user.
// go-github has no GraphQL surface, so this is a plain POST with a bearer
// token picked from the pool.
func (c *Client) ContributionCalendar(ctx context.Context, username string) (*model.ContributionCalendar, error) {
	body, err := json.Marshal(map[string]any{
		"query":     contributionsQuery,
		"variables": map[string]string{"login": username},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal contributions query: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphQLURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new contributions request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.tokens[c.pick()])
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &apperrors.UpstreamError{Service: "github-graphql", StatusCode: http.StatusBadGateway, Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &apperrors.UpstreamError{Service: "github-graphql", StatusCode: resp.StatusCode, Body: string(errBody)}
	}

	var payload struct {
		Data struct {
			User *struct {
				ContributionsCollection struct {
					ContributionCalendar struct {
						Weeks []struct {
							ContributionDays []struct {
								Date              string `json:"date"`
								ContributionCount int    `json:"contributionCount"`
							} `json:"contributionDays"`
						} `json:"weeks"`
					} `json:"contributionCalendar"`
				} `json:"contributionsCollection"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode contributions response: %w", err)
	}
	if payload.Data.User == nil {
		return nil, &apperrors.UpstreamError{
			Service:    "github-graphql",
			StatusCode: http.StatusNotFound,
			Body:       fmt.Sprintf("user %q not found", username),
		}
	}

	cal := &model.ContributionCalendar{}
	for _, w := range payload.Data.User.ContributionsCollection.ContributionCalendar.Weeks {
		week := model.ContributionWeek{Days: make([]model.ContributionDay, 0, len(w.ContributionDays))}
		for _, d := range w.ContributionDays {
			week.Days = append(week.Days, model.ContributionDay{Date: d.Date, Count: d.ContributionCount})
		}
		cal.Weeks = append(cal.Weeks, week)
	}
	return cal, nil
}

// toProfileSummary translates a github.User into the summary seed. Pointer
// fields stay nil when GitHub omits them, which marshals to null.
func toProfileSummary(u *github.User) *model.ProfileSummary {
	return &model.ProfileSummary{
		Avatar:          u.AvatarURL,
		Username:        u.Login,
		Name:            u.Name,
		Company:         u.Company,
		Location:        u.Location,
		Blog:            u.Blog,
		Bio:             u.Bio,
		Email:           u.Email,
		Twitter:         u.TwitterUsername,
		Followers:       u.GetFollowers(),
		Following:       u.GetFollowing(),
		PublicRepoCount: u.GetPublicRepos(),
		OriginalRepos:   make(map[string]model.RepoFields),
		AuthoredForks:   make(map[string]model.RepoFields),
		Badges:          make(map[string]string),
	}
}

// toRepoFields translates a github.Repository object to our internal model.
func toRepoFields(r *github.Repository) model.RepoFields {
	fields := model.RepoFields{
		Description:    r.Description,
		Stars:          r.GetStargazersCount(),
		Forks:          r.GetForksCount(),
		Issues:         r.GetOpenIssues(),
		Watchers:       r.GetWatchers(),
		PrimaryLang:    r.Language,
		HasIssues:      r.GetHasIssues(),
		HasProjects:    r.GetHasProjects(),
		HasWiki:        r.GetHasWiki(),
		HasPages:       r.GetHasPages(),
		HasDownloads:   r.GetHasDownloads(),
		HasDiscussions: r.GetHasDiscussions(),
		Topics:         r.Topics,
	}
	if fields.Topics == nil {
		fields.Topics = []string{}
	}
	if r.License != nil {
		fields.License = r.License
	} else {
		fields.License = map[string]any{}
	}
	return fields
}

// upstreamError translates go-github errors into the shared taxonomy,
// preserving the upstream status. Transport errors map to 502.
func upstreamError(service string, err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return &apperrors.UpstreamError{Service: service, StatusCode: ghErr.Response.StatusCode, Body: ghErr.Message}
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) && rateErr.Response != nil {
		return &apperrors.UpstreamError{Service: service, StatusCode: rateErr.Response.StatusCode, Body: rateErr.Message}
	}
	body := "transport error"
	if err != nil {
		body = err.Error()
	}
	return &apperrors.UpstreamError{Service: service, StatusCode: http.StatusBadGateway, Body: body}
}

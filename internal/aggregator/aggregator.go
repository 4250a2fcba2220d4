// internal/aggregator/aggregator.go
package aggregator

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	apperrors "github-profile-analyzer/internal/errors"
	"github-profile-analyzer/internal/github"
	"github-profile-analyzer/internal/model"
)

// Number of fork authorship checks to run in parallel.
const forkCheckConcurrency = 5

// Prober reports the unlocked badge subset for a user. It absorbs its own
// failures and cannot fail the pipeline.
type Prober interface {
	Probe(ctx context.Context, username string) map[string]string
}

// Aggregator builds a normalized profile summary through an ordered sequence
// of upstream calls. Each step is gated on the previous step's success; the
// first failure aborts the whole pipeline. There are no retries.
type Aggregator struct {
	gh           *github.Client
	prober       Prober
	requiredRepo string
	logger       *slog.Logger
}

// New creates an Aggregator. requiredRepo is the "owner/name" the user must
// have starred for the pipeline to run.
func New(gh *github.Client, prober Prober, requiredRepo string, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		gh:           gh,
		prober:       prober,
		requiredRepo: requiredRepo,
		logger:       logger,
	}
}

// BuildSummary runs the full pipeline: quota check, eligibility gate, user
// profile, repository classification, badge probes.
func (a *Aggregator) BuildSummary(ctx context.Context, username string) (*model.ProfileSummary, error) {
	logger := a.logger.With("username", username)

	snap, err := a.gh.RateLimitSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if snap.Remaining == 0 {
		logger.Warn("GitHub quota exhausted, aborting pipeline")
		return nil, apperrors.ErrQuotaExhausted
	}

	eligible, err := a.checkEligibility(ctx, username)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, apperrors.ErrIneligible
	}

	summary, err := a.gh.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}

	repos, err := a.gh.ListRepositories(ctx, username)
	if err != nil {
		return nil, err
	}
	a.classifyRepositories(ctx, username, repos, summary)
	logger.Info("Classified repositories",
		"original", len(summary.OriginalRepos), "authored_forks", len(summary.AuthoredForks))

	summary.Badges = a.prober.Probe(ctx, username)
	logger.Info("Profile summary assembled", "badges", len(summary.Badges))

	return summary, nil
}

// checkEligibility reports whether the user has starred the required
// repository, by exact full-name match on the first starred page. A fetched
// list without the repository is a business-rule rejection, not an upstream
// failure.
func (a *Aggregator) checkEligibility(ctx context.Context, username string) (bool, error) {
	starred, err := a.gh.StarredFullNames(ctx, username)
	if err != nil {
		return false, err
	}
	return slices.Contains(starred, a.requiredRepo), nil
}

// classifyRepositories splits the listing into originals and authored forks.
// Non-forks are included unconditionally; a fork is included only when the
// user authored at least one of its recent commits. Fork checks run with
// bounded concurrency; map keys are unique names so ordering is irrelevant.
func (a *Aggregator) classifyRepositories(ctx context.Context, username string, repos []model.Repository, summary *model.ProfileSummary) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(forkCheckConcurrency)

	for _, repo := range repos {
		if !repo.Fork {
			summary.OriginalRepos[repo.Name] = repo.Fields
			continue
		}
		g.Go(func() error {
			if a.hasAuthoredCommit(gctx, username, repo.Name) {
				mu.Lock()
				summary.AuthoredForks[repo.Name] = repo.Fields
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
}

// hasAuthoredCommit inspects up to 100 recent commits for an author login
// exactly equal to the username (case-sensitive). A failed fetch counts as
// no authorship rather than a pipeline failure.
func (a *Aggregator) hasAuthoredCommit(ctx context.Context, username, repo string) bool {
	authors, err := a.gh.CommitAuthors(ctx, username, repo)
	if err != nil {
		a.logger.Debug("Commit authorship check failed", "repo", repo, "error", err)
		return false
	}
	return slices.Contains(authors, username)
}

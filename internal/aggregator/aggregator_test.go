// internal/aggregator/aggregator_test.go
package aggregator

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github-profile-analyzer/internal/errors"
	"github-profile-analyzer/internal/github"
)

// stubProber returns a fixed badge set without any network traffic.
type stubProber struct {
	badges map[string]string
}

func (s *stubProber) Probe(ctx context.Context, username string) map[string]string {
	return s.badges
}

// fakeGitHub records which endpoints were hit and serves canned responses.
type fakeGitHub struct {
	mu        sync.Mutex
	paths     []string
	remaining int
	starred   string
	responses map[string]string
	failures  map[string]int
}

func (f *fakeGitHub) record(path string) {
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.mu.Unlock()
}

func (f *fakeGitHub) seen(suffix string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.paths {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

func (f *fakeGitHub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.record(r.URL.Path)
		for suffix, status := range f.failures {
			if strings.HasSuffix(r.URL.Path, suffix) {
				w.WriteHeader(status)
				w.Write([]byte(`{"message": "boom"}`))
				return
			}
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/rate_limit"):
			w.Write([]byte(`{"resources": {"core": {"limit": 5000, "remaining": ` + strconv.Itoa(f.remaining) + `, "reset": 1735689600}}}`))
		case strings.HasSuffix(r.URL.Path, "/starred"):
			w.Write([]byte(`[{"repo": {"full_name": "` + f.starred + `"}}]`))
		default:
			for suffix, body := range f.responses {
				if strings.HasSuffix(r.URL.Path, suffix) {
					w.Write([]byte(body))
					return
				}
			}
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message": "Not Found"}`))
		}
	})
}

func setupAggregator(t *testing.T, fake *fakeGitHub, prober Prober) *Aggregator {
	t.Helper()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ghClient := github.NewClient([]string{"test-token"}, logger)
	require.NoError(t, ghClient.OverrideBaseURL(server.URL))

	if prober == nil {
		prober = &stubProber{badges: map[string]string{}}
	}
	return New(ghClient, prober, "0xarchit/github-profile-analyzer", logger)
}

func TestAggregator_BuildSummary(t *testing.T) {
	t.Run("classifies originals and authored forks", func(t *testing.T) {
		fake := &fakeGitHub{
			remaining: 4000,
			starred:   "0xarchit/github-profile-analyzer",
			responses: map[string]string{
				"/users/octocat": `{"login": "octocat", "followers": 2}`,
				"/users/octocat/repos": `[
					{"name": "A", "fork": false, "stargazers_count": 5},
					{"name": "B", "fork": true}
				]`,
				"/repos/octocat/B/commits": `[{"sha": "abc", "author": {"login": "octocat"}}]`,
			},
		}
		agg := setupAggregator(t, fake, &stubProber{badges: map[string]string{"yolo": "https://example.com/yolo.png"}})

		summary, err := agg.BuildSummary(context.Background(), "octocat")

		require.NoError(t, err)
		require.Contains(t, summary.OriginalRepos, "A")
		require.Contains(t, summary.AuthoredForks, "B")
		assert.NotContains(t, summary.OriginalRepos, "B")
		assert.NotContains(t, summary.AuthoredForks, "A")
		assert.Equal(t, 5, summary.OriginalRepos["A"].Stars)
		assert.Equal(t, map[string]string{"yolo": "https://example.com/yolo.png"}, summary.Badges)
	})

	t.Run("excludes forks without an authored commit", func(t *testing.T) {
		fake := &fakeGitHub{
			remaining: 4000,
			starred:   "0xarchit/github-profile-analyzer",
			responses: map[string]string{
				"/users/octocat":           `{"login": "octocat"}`,
				"/users/octocat/repos":     `[{"name": "B", "fork": true}]`,
				"/repos/octocat/B/commits": `[{"sha": "abc", "author": {"login": "someone-else"}}]`,
			},
		}
		agg := setupAggregator(t, fake, nil)

		summary, err := agg.BuildSummary(context.Background(), "octocat")

		require.NoError(t, err)
		assert.Empty(t, summary.OriginalRepos)
		assert.Empty(t, summary.AuthoredForks)
	})

	t.Run("authorship match is case-sensitive", func(t *testing.T) {
		fake := &fakeGitHub{
			remaining: 4000,
			starred:   "0xarchit/github-profile-analyzer",
			responses: map[string]string{
				"/users/octocat":           `{"login": "octocat"}`,
				"/users/octocat/repos":     `[{"name": "B", "fork": true}]`,
				"/repos/octocat/B/commits": `[{"sha": "abc", "author": {"login": "Octocat"}}]`,
			},
		}
		agg := setupAggregator(t, fake, nil)

		summary, err := agg.BuildSummary(context.Background(), "octocat")

		require.NoError(t, err)
		assert.Empty(t, summary.AuthoredForks)
	})

	t.Run("a failed commits fetch counts as no authorship", func(t *testing.T) {
		fake := &fakeGitHub{
			remaining: 4000,
			starred:   "0xarchit/github-profile-analyzer",
			responses: map[string]string{
				"/users/octocat":       `{"login": "octocat"}`,
				"/users/octocat/repos": `[{"name": "A", "fork": false}, {"name": "B", "fork": true}]`,
			},
			failures: map[string]int{"/repos/octocat/B/commits": http.StatusConflict},
		}
		agg := setupAggregator(t, fake, nil)

		summary, err := agg.BuildSummary(context.Background(), "octocat")

		require.NoError(t, err)
		assert.Contains(t, summary.OriginalRepos, "A")
		assert.Empty(t, summary.AuthoredForks)
	})

	t.Run("fails fast when quota is exhausted", func(t *testing.T) {
		fake := &fakeGitHub{remaining: 0}
		agg := setupAggregator(t, fake, nil)

		_, err := agg.BuildSummary(context.Background(), "octocat")

		require.ErrorIs(t, err, apperrors.ErrQuotaExhausted)
		assert.True(t, fake.seen("/rate_limit"))
		assert.False(t, fake.seen("/starred"))
		assert.False(t, fake.seen("/users/octocat"))
	})

	t.Run("rejects users who have not starred the required repository", func(t *testing.T) {
		fake := &fakeGitHub{remaining: 4000, starred: "golang/go"}
		agg := setupAggregator(t, fake, nil)

		_, err := agg.BuildSummary(context.Background(), "octocat")

		require.ErrorIs(t, err, apperrors.ErrIneligible)
		assert.False(t, fake.seen("/users/octocat"))
	})

	t.Run("propagates an upstream failure from the user fetch", func(t *testing.T) {
		fake := &fakeGitHub{
			remaining: 4000,
			starred:   "0xarchit/github-profile-analyzer",
			failures:  map[string]int{"/users/octocat": http.StatusBadGateway},
		}
		agg := setupAggregator(t, fake, nil)

		_, err := agg.BuildSummary(context.Background(), "octocat")

		var upstream *apperrors.UpstreamError
		require.ErrorAs(t, err, &upstream)
		assert.Equal(t, http.StatusBadGateway, upstream.StatusCode)
	})
}

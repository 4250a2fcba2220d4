// internal/badge/prober.go
package badge

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultBaseURL = "https://github.com"
	probeTimeout   = 10 * time.Second
	userAgent      = "github-profile-analyzer/1.0"
)

// Assets is the fixed catalog of achievement slugs mapped to their static
// badge images. Probed badge slugs are always a subset of these keys.
var Assets = map[string]string{
	"pull-shark":                    "https://github.githubassets.com/assets/pull-shark-default-498c279a747d.png",
	"starstruck":                    "https://github.githubassets.com/assets/starstruck-default--light-medium-65b31ef2251e.png",
	"pair-extraordinaire":           "https://github.githubassets.com/assets/pair-extraordinaire-default-579438a20e01.png",
	"galaxy-brain":                  "https://github.githubassets.com/assets/galaxy-brain-default-847262c21056.png",
	"yolo":                          "https://github.githubassets.com/assets/yolo-default-be0bbff04951.png",
	"quickdraw":                     "https://github.githubassets.com/assets/quickdraw-default--light-medium-5450fadcbe37.png",
	"highlight":                     "https://github.githubassets.com/assets/highlight-default--light-medium-30e41ef7e6e7.png",
	"community":                     "https://github.githubassets.com/assets/community-default-4c5bc57b9b55.png",
	"deep-diver":                    "https://github.githubassets.com/assets/deep-diver-default--light-medium-a7be3c095c3d.png",
	"arctic-code-vault-contributor": "https://github.githubassets.com/assets/arctic-code-vault-contributor-default-f5b6474c6028.png",
	"public-sponsor":                "https://github.githubassets.com/assets/public-sponsor-default-4e30fe60271d.png",
	"heart-on-your-sleeve":          "https://github.githubassets.com/assets/heart-on-your-sleeve-default-28aa2b2f7ffb.png",
	"open-sourcerer":                "https://github.githubassets.com/assets/open-sourcerer-default-64b1f529dcdb.png",
}

// Prober checks which achievements a user has unlocked by probing the public
// achievement pages. Probes are unauthenticated and cannot fail the pipeline.
type Prober struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

// NewProber creates a Prober against github.com.
func NewProber(logger *slog.Logger) *Prober {
	return &Prober{
		client:  &http.Client{Timeout: probeTimeout},
		baseURL: defaultBaseURL,
		logger:  logger,
	}
}

// OverrideBaseURL points probes at a test server. Used by tests in other
// packages.
func (p *Prober) OverrideBaseURL(url string) {
	p.baseURL = url
}

// Probe runs one concurrent HEAD probe per catalog slug and returns the
// unlocked subset mapped to asset URLs. All probes run at once; results are
// collected when the whole set completes. A probe that errors counts as
// locked, so this method never returns an error.
func (p *Prober) Probe(ctx context.Context, username string) map[string]string {
	var mu sync.Mutex
	unlocked := make(map[string]string)

	g, gctx := errgroup.WithContext(ctx)
	for slug, asset := range Assets {
		g.Go(func() error {
			if p.slugUnlocked(gctx, username, slug) {
				mu.Lock()
				unlocked[slug] = asset
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return unlocked
}

func (p *Prober) slugUnlocked(ctx context.Context, username, slug string) bool {
	probeURL := fmt.Sprintf("%s/%s?tab=achievements&achievement=%s",
		p.baseURL, url.PathEscape(username), url.QueryEscape(slug))

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, probeURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("Achievement probe failed", "slug", slug, "error", err)
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

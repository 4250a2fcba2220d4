// internal/heatmap/heatmap.go
package heatmap

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"github-profile-analyzer/internal/cache"
	"github-profile-analyzer/internal/github"
	"github-profile-analyzer/internal/model"
)

const (
	cellSize   = 10
	cellMargin = 2
	daysInWeek = 7

	// Freshness window for cached renders.
	cacheTTL = time.Hour

	background = "#1a1a1a"
	mutedFill  = "#2f3727"
)

//go:embed templates/heatmap.svg.tmpl
var heatmapTemplate string

var heatmapTmpl = template.Must(template.New("heatmap").Parse(heatmapTemplate))

type cell struct {
	X    int
	Y    int
	Fill string
}

type viewModel struct {
	Width      int
	Height     int
	CellSize   int
	Background string
	Cells      []cell
}

// Service renders contribution heat-maps with a response cache keyed by the
// caller's full request URL, so distinct usernames never collide.
type Service struct {
	gh     *github.Client
	cache  *cache.TTL
	logger *slog.Logger
}

// NewService creates a heat-map Service.
func NewService(gh *github.Client, c *cache.TTL, logger *slog.Logger) *Service {
	return &Service{gh: gh, cache: c, logger: logger}
}

// Render returns the SVG for a user's last year of contributions, serving
// from cache when the entry is still fresh.
func (s *Service) Render(ctx context.Context, username, cacheKey string) ([]byte, error) {
	if svg, ok := s.cache.Get(cacheKey); ok {
		s.logger.Debug("Heat-map cache hit", "key", cacheKey)
		return svg, nil
	}

	cal, err := s.gh.ContributionCalendar(ctx, username)
	if err != nil {
		return nil, err
	}

	svg, err := RenderSVG(cal)
	if err != nil {
		return nil, err
	}
	s.cache.Set(cacheKey, svg, cacheTTL)
	return svg, nil
}

// RenderSVG emits the calendar as a week-by-day grid. The output is
// deterministic: identical calendar input always yields byte-identical
// markup.
func RenderSVG(cal *model.ContributionCalendar) ([]byte, error) {
	maxCount := 1
	for _, week := range cal.Weeks {
		for _, day := range week.Days {
			if day.Count > maxCount {
				maxCount = day.Count
			}
		}
	}

	var cells []cell
	for wi, week := range cal.Weeks {
		for di, day := range week.Days {
			cells = append(cells, cell{
				X:    wi * (cellSize + cellMargin),
				Y:    di * (cellSize + cellMargin),
				Fill: fill(day.Count, maxCount),
			})
		}
	}

	vm := viewModel{
		Width:      len(cal.Weeks)*(cellSize+cellMargin) + cellMargin,
		Height:     daysInWeek*(cellSize+cellMargin) + cellMargin,
		CellSize:   cellSize,
		Background: background,
		Cells:      cells,
	}

	var buf bytes.Buffer
	if err := heatmapTmpl.Execute(&buf, vm); err != nil {
		return nil, fmt.Errorf("render heat-map svg: %w", err)
	}
	return buf.Bytes(), nil
}

// fill scales cell intensity linearly against the busiest day. Days with no
// contributions always get the muted fill, whatever the maximum is.
func fill(count, maxCount int) string {
	if count == 0 {
		return mutedFill
	}
	intensity := float64(count) / float64(maxCount)
	if intensity > 1 {
		intensity = 1
	}
	return fmt.Sprintf("rgba(0,255,0,%.2f)", 0.2+intensity*0.8)
}

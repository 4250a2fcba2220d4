// internal/api/handler.go
package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github-profile-analyzer/internal/aggregator"
	apperrors "github-profile-analyzer/internal/errors"
	"github-profile-analyzer/internal/github"
	"github-profile-analyzer/internal/heatmap"
	"github-profile-analyzer/internal/model"
)

//go:embed index.html
var frontendHTML []byte

// Analyzer produces the AI assessment for a profile summary. The returned
// object is opaque; it is merged structurally into the response.
type Analyzer interface {
	Analyze(ctx context.Context, summary *model.ProfileSummary) (map[string]any, error)
}

// Deps bundles everything the router needs.
type Deps struct {
	Github         *github.Client
	Aggregator     *aggregator.Aggregator
	Analyzer       Analyzer
	Heatmap        *heatmap.Service
	FrontendOrigin string
	RequiredRepo   string
	Logger         *slog.Logger
}

// Handler is the container for API dependencies.
type Handler struct {
	gh             *github.Client
	aggregator     *aggregator.Aggregator
	analyzer       Analyzer
	heatmap        *heatmap.Service
	frontendOrigin string
	requiredRepo   string
	logger         *slog.Logger
}

// NewRouter creates and configures a new chi router with all routes.
func NewRouter(d Deps) http.Handler {
	h := &Handler{
		gh:             d.Github,
		aggregator:     d.Aggregator,
		analyzer:       d.Analyzer,
		heatmap:        d.Heatmap,
		frontendOrigin: d.FrontendOrigin,
		requiredRepo:   d.RequiredRepo,
		logger:         d.Logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Get("/", h.frontend)
	r.Get("/rate_limit", h.rateLimit)
	r.Group(func(r chi.Router) {
		r.Use(h.requireAllowedOrigin)
		r.Get("/contributions", h.contributions)
		r.Get("/api", h.analyze)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "Invalid path")
	})

	return r
}

// frontend serves the embedded front-end document.
func (h *Handler) frontend(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(frontendHTML)
}

// rateLimit returns the aggregated quota across all configured credentials.
// GET /rate_limit
func (h *Handler) rateLimit(w http.ResponseWriter, r *http.Request) {
	snap, err := h.gh.RateLimitSnapshot(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"rate": snap})
}

// requireAllowedOrigin rejects requests whose Origin (falling back to
// Referer) does not start with the configured front-end origin. A plain
// prefix check, not CORS negotiation. Rejections make no upstream calls.
func (h *Handler) requireAllowedOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = r.Header.Get("Referer")
		}
		if !strings.HasPrefix(origin, h.frontendOrigin) {
			respondWithError(w, http.StatusForbidden, "Cross-origin requests are not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// contributions serves the heat-map SVG for a user.
// GET /contributions?username=<name>
func (h *Handler) contributions(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		respondWithError(w, http.StatusBadRequest, "Username parameter is required")
		return
	}

	svg, err := h.heatmap.Render(r.Context(), username, requestURL(r))
	if err != nil {
		h.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(svg)
}

// analyze runs the full aggregation pipeline plus the AI analysis and
// returns the merged document.
// GET /api?username=<name>
func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		respondWithError(w, http.StatusBadRequest, "Username parameter is required")
		return
	}

	summary, err := h.aggregator.BuildSummary(r.Context(), username)
	if err != nil {
		h.respondError(w, err)
		return
	}

	analysis, err := h.analyzer.Analyze(r.Context(), summary)
	if err != nil {
		h.respondError(w, err)
		return
	}

	merged, err := mergeResponse(summary, analysis)
	if err != nil {
		h.logger.Error("Failed to merge analysis into summary", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, merged)
}

// mergeResponse unions the marshalled summary with the opaque analysis
// object. Analysis keys win on collision.
func mergeResponse(summary *model.ProfileSummary, analysis map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]any)
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, err
	}
	maps.Copy(merged, analysis)
	return merged, nil
}

// respondError maps the error taxonomy to HTTP responses.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var upstream *apperrors.UpstreamError
	var malformed *apperrors.MalformedAnalysisError

	switch {
	case errors.Is(err, apperrors.ErrQuotaExhausted):
		respondWithError(w, http.StatusTooManyRequests, "GitHub API rate limit exceeded")
	case errors.Is(err, apperrors.ErrIneligible):
		respondWithJSON(w, http.StatusForbidden, map[string]any{
			"error":     fmt.Sprintf("You have not starred the %s repository", h.requiredRepo),
			"showPopup": true,
		})
	case errors.As(err, &malformed):
		h.logger.Error("AI returned malformed analysis", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to parse AI analysis")
	case errors.As(err, &upstream):
		h.logger.Warn("Upstream call failed", "service", upstream.Service, "status", upstream.StatusCode)
		respondWithError(w, upstream.StatusCode, fmt.Sprintf("%s error: %s", upstream.Service, upstream.Body))
	default:
		h.logger.Error("Unexpected pipeline error", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Internal error: %s", err))
	}
}

// requestURL reconstructs the full request identity used as the heat-map
// cache key, username query included.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

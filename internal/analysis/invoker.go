// internal/analysis/invoker.go
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	apperrors "github-profile-analyzer/internal/errors"
	"github-profile-analyzer/internal/model"
)

// analysisInstruction mandates the exact JSON shape the front end consumes.
const analysisInstruction = `You are a JSON generator that strictly evaluates a user's public GitHub profile data and returns a detailed analysis report with this structure:

{
  "score": <integer 0-100 representing overall profile strength>,
  "detailed_analysis": "<insightful summary based on popularity, repository quality, biography clarity, backlinks and web presence>",
  "improvement_areas": ["<brief, specific suggestions for weak areas such as missing repository descriptions or a thin bio>"],
  "diagnostics": ["<observations that do not affect the score, such as licensed repositories or archived projects>"],
  "project_ideas": {
    "project_idea_1": {"title": "<short title>", "description": "<detailed description>", "tech_stack": []}
  },
  "tag": {"tag_name": "<tag>", "description": "<one line explaining why this tag fits>"},
  "developer_type": "<e.g. tech explorer, geek, frontend dev, backend dev, fullstack dev>"
}

Requirements:
- Up to 3 unique project ideas matched to the user's visible skills; suggest basic-level projects when no skills are visible.
- The tag is sarcastic or funny but grounded in the profile.
- Use logical thresholds and weighted scoring for each subcomponent.
- Keep the tone constructive, data-driven and user-friendly.
- Avoid repetition and overly generic feedback.
- Return valid JSON only, all fields populated unless no data is available.`

// Invoker submits a profile summary to the generative endpoint and returns
// the parsed analysis object. The result is an opaque bag of fields: it is
// validated for being JSON and nothing else, so downstream consumers must
// handle missing or extra keys defensively.
type Invoker struct {
	keys      []string
	modelName string
	logger    *slog.Logger
}

// NewInvoker creates an Invoker over a pool of API keys; each call picks one
// key with a uniform-random index.
func NewInvoker(keys []string, modelName string, logger *slog.Logger) *Invoker {
	return &Invoker{keys: keys, modelName: modelName, logger: logger}
}

// Analyze serializes the summary as the sole user turn, paired with the fixed
// schema instruction, and requests strict JSON output.
func (inv *Invoker) Analyze(ctx context.Context, summary *model.ProfileSummary) (map[string]any, error) {
	payload, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("marshal profile summary: %w", err)
	}

	key := inv.keys[rand.IntN(len(inv.keys))]
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	defer client.Close()

	m := client.GenerativeModel(inv.modelName)
	m.ResponseMIMEType = "application/json"
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(analysisInstruction)}}

	resp, err := m.GenerateContent(ctx, genai.Text(payload))
	if err != nil {
		return nil, upstreamError(err)
	}

	raw, err := responseText(resp)
	if err != nil {
		return nil, err
	}
	inv.logger.Debug("AI analysis received", "bytes", len(raw))
	return parseAnalysis(raw)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &apperrors.MalformedAnalysisError{Err: errors.New("empty completion")}
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", &apperrors.MalformedAnalysisError{Err: errors.New("completion part is not text")}
	}
	return string(text), nil
}

// parseAnalysis accepts exactly one top-level JSON object. Anything else is
// fatal for the request.
func parseAnalysis(raw string) (map[string]any, error) {
	var analysis map[string]any
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, &apperrors.MalformedAnalysisError{Raw: raw, Err: err}
	}
	return analysis, nil
}

// upstreamError preserves the generative endpoint's status code where one
// exists; transport errors map to 502.
func upstreamError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &apperrors.UpstreamError{Service: "gemini", StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	return &apperrors.UpstreamError{Service: "gemini", StatusCode: http.StatusBadGateway, Body: err.Error()}
}

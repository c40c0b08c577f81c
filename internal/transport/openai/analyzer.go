package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/plantops/manualsearch/internal/domain"
)

const analysisTemperature = 0.1

// Analyzer implements domain.Analyzer over the chat completions API with
// JSON-schema constrained output. All failures, including malformed model
// output, surface as domain.ErrLanguageService so callers fall back to the
// rule-based path.
type Analyzer struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// AnalyzerConfig holds the language model settings.
type AnalyzerConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewAnalyzer creates an OpenAI-compatible query analyzer.
func NewAnalyzer(cfg *AnalyzerConfig) *Analyzer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Analyzer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

type queryAnalysisPayload struct {
	SearchTerms []string `json:"search_terms"`
	ContentType string   `json:"content_type"`
	Intent      string   `json:"intent"`
	Confidence  float64  `json:"confidence"`
}

type resultSelectionPayload struct {
	SelectedIndex *int    `json:"selected_index"`
	Confidence    float64 `json:"confidence"`
}

// AnalyzeQuery extracts search terms, a content-type preference, and intent
// from a raw operator query.
func (a *Analyzer) AnalyzeQuery(ctx context.Context, query string) (domain.QueryAnalysis, error) {
	raw, err := a.complete(ctx, queryAnalysisSystemPrompt, query, "query_analysis", queryAnalysisSchema)
	if err != nil {
		return domain.QueryAnalysis{}, err
	}

	var payload queryAnalysisPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.QueryAnalysis{}, fmt.Errorf("%w: decode analysis: %w", domain.ErrLanguageService, err)
	}

	analysis := domain.QueryAnalysis{
		SearchTerms: payload.SearchTerms,
		Intent:      payload.Intent,
		Confidence:  payload.Confidence,
	}
	switch strings.ToLower(payload.ContentType) {
	case "table":
		analysis.ContentType = domain.ContentTable
	case "figure":
		analysis.ContentType = domain.ContentFigure
	case "any", "":
		analysis.ContentType = ""
	default:
		return domain.QueryAnalysis{}, fmt.Errorf("%w: unexpected content type %q", domain.ErrLanguageService, payload.ContentType)
	}

	return analysis, nil
}

// SelectResult asks the model to arbitrate between ranked candidates.
// Index is -1 when the model judged none of them acceptable.
func (a *Analyzer) SelectResult(ctx context.Context, query string, candidates []domain.CandidateSummary) (domain.ResultSelection, error) {
	listing, err := json.Marshal(candidates)
	if err != nil {
		return domain.ResultSelection{}, fmt.Errorf("encode candidates: %w", err)
	}

	user := fmt.Sprintf("Query: %s\n\nResults:\n%s", query, listing)
	raw, err := a.complete(ctx, resultSelectionSystemPrompt, user, "result_selection", resultSelectionSchema)
	if err != nil {
		return domain.ResultSelection{}, err
	}

	var payload resultSelectionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.ResultSelection{}, fmt.Errorf("%w: decode selection: %w", domain.ErrLanguageService, err)
	}

	selection := domain.ResultSelection{Index: -1, Confidence: payload.Confidence}
	if payload.SelectedIndex != nil {
		idx := *payload.SelectedIndex
		if idx < 0 || idx >= len(candidates) {
			return domain.ResultSelection{}, fmt.Errorf("%w: selected index %d out of range", domain.ErrLanguageService, idx)
		}
		selection.Index = idx
	}

	return selection, nil
}

func (a *Analyzer) complete(ctx context.Context, system, user, schemaName string, schema json.RawMessage) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: analysisTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrLanguageService, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion response", domain.ErrLanguageService)
	}

	return resp.Choices[0].Message.Content, nil
}

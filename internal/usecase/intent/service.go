// Package intent turns a raw operator query into a structured search
// request: search terms, a content-type preference and per-query fusion
// weights. The language-understanding capability is the primary path; a
// deterministic rule-based fallback guarantees the adapter never fails.
package intent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/plantops/manualsearch/internal/domain"
)

// Request is the normalized search request handed to the retrieval pipeline.
// SemanticWeight and LexicalWeight always sum to 1 so fused scores stay
// comparably scaled across queries.
type Request struct {
	Query          string
	SearchTerms    []string
	ContentType    domain.ContentType // empty = no preference
	SemanticWeight float64
	LexicalWeight  float64
	Intent         string
	Confidence     float64
	// Degraded marks a request built by the rule-based fallback.
	Degraded bool
}

// Service is the query intent adapter.
type Service struct {
	analyzer domain.Analyzer // nil disables the primary path
	timeout  time.Duration
	logger   *zap.Logger
}

// New creates the intent adapter. analyzer may be nil, in which case every
// query takes the fallback path.
func New(analyzer domain.Analyzer, timeout time.Duration, logger *zap.Logger) *Service {
	return &Service{analyzer: analyzer, timeout: timeout, logger: logger}
}

// Analyze produces a search request for the query. It never fails: an
// unavailable or malformed analyzer response falls back to rule-based
// analysis, which always yields a usable (if coarser) request.
func (s *Service) Analyze(ctx context.Context, query string) Request {
	if s.analyzer != nil {
		actx, cancel := context.WithTimeout(ctx, s.timeout)
		analysis, err := s.analyzer.AnalyzeQuery(actx, query)
		cancel()

		if err == nil {
			if err = validate(analysis); err == nil {
				return buildRequest(query, analysis, false)
			}
		}
		s.logger.Warn("Query analysis degraded to rule-based fallback",
			zap.String("query", query),
			zap.Error(err),
		)
	}
	return buildRequest(query, RuleBasedAnalysis(query), true)
}

func validate(a domain.QueryAnalysis) error {
	switch a.ContentType {
	case "", domain.ContentTable, domain.ContentFigure:
	default:
		return domain.ErrLanguageService
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		return domain.ErrLanguageService
	}
	return nil
}

// buildRequest derives the fusion weights from the analysis. Specific search
// terms favor the lexical path; a vague query or a visual (figure) intent
// favors the semantic path. Weights always sum to 1.
func buildRequest(query string, a domain.QueryAnalysis, degraded bool) Request {
	semantic, lexical := 0.3, 0.7
	if len(a.SearchTerms) > 0 {
		semantic, lexical = 0.4, 0.6
	}
	if a.Confidence < 0.6 {
		semantic, lexical = 0.8, 0.2
	}
	if a.ContentType == domain.ContentFigure && semantic < 0.8 {
		semantic += 0.1
		lexical -= 0.1
	}

	return Request{
		Query:          query,
		SearchTerms:    a.SearchTerms,
		ContentType:    a.ContentType,
		SemanticWeight: semantic,
		LexicalWeight:  lexical,
		Intent:         a.Intent,
		Confidence:     a.Confidence,
		Degraded:       degraded,
	}
}

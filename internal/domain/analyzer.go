package domain

import "context"

// QueryAnalysis is the structured intent extracted from a raw operator query.
type QueryAnalysis struct {
	SearchTerms []string
	// ContentType is the preferred record type, or empty for no preference.
	ContentType ContentType
	Intent      string
	Confidence  float64
}

// CandidateSummary is the minimal candidate view shared with the analyzer
// during result arbitration.
type CandidateSummary struct {
	Index int         `json:"index"`
	ID    string      `json:"id"`
	Type  ContentType `json:"type"`
	Title string      `json:"title"`
}

// ResultSelection is the analyzer's arbitration over ranked candidates.
// Index is -1 when the analyzer judged no candidate acceptable.
type ResultSelection struct {
	Index      int
	Confidence float64
}

// Analyzer is the external language-understanding capability. It must be
// treated as unreliable: network errors and malformed structured output are
// expected, and every call site carries a deterministic fallback. The
// analyzer only refines decisions, it never gates availability.
type Analyzer interface {
	AnalyzeQuery(ctx context.Context, query string) (QueryAnalysis, error)
	SelectResult(ctx context.Context, query string, candidates []CandidateSummary) (ResultSelection, error)
}

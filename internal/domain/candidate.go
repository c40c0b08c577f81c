package domain

// MatchType records which retrieval sources contributed to a candidate.
type MatchType string

const (
	// MatchSemantic means the record came from the dense index only.
	MatchSemantic MatchType = "semantic"
	// MatchKeyword means the record came from the sparse index only.
	MatchKeyword MatchType = "keyword"
	// MatchHybrid means both indices returned the record.
	MatchHybrid MatchType = "hybrid"
)

// Candidate is a transient per-query ranking entry. Candidates exist only
// for the duration of one query and are never persisted.
//
// SemanticScore and LexicalScore are nil when the record did not appear in
// that source's top-K. Ordinal is the record's stable insertion position in
// the content store and is the deterministic tie-breaker everywhere.
type Candidate struct {
	Record        *ContentRecord
	Ordinal       int
	SemanticScore *float64
	LexicalScore  *float64
	FusedScore    float64
	MatchType     MatchType
}

package search

import (
	"context"

	"github.com/plantops/manualsearch/internal/domain"
	"github.com/plantops/manualsearch/internal/snapshot"
	"github.com/plantops/manualsearch/internal/usecase/intent"
)

// IntentAnalyzer produces a structured search request from a raw query.
// It never fails (rule-based fallback is mandatory).
type IntentAnalyzer interface {
	Analyze(ctx context.Context, query string) intent.Request
}

// DecisionGate classifies a fused candidate list into a terminal decision.
type DecisionGate interface {
	Decide(ctx context.Context, query string, candidates []domain.Candidate) domain.Decision
}

// RecordReader resolves store ordinals to content records.
type RecordReader interface {
	At(ordinal int) (*domain.ContentRecord, error)
}

// IndexProvider supplies the active immutable index pair.
type IndexProvider interface {
	Active() (*snapshot.Indexes, error)
}

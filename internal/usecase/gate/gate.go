// Package gate classifies a fused candidate list into one of three response
// regimes (single confident match, multiple ambiguous candidates, or no
// match) using calibrated confidence thresholds. The threshold decision is
// deterministic; an optional language-capability arbiter may refine it but
// never gates availability.
package gate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/plantops/manualsearch/internal/domain"
	"github.com/plantops/manualsearch/internal/metrics"
)

// Policy holds the confidence thresholds. These are business policy, tuned
// via configuration, never hard-coded at call sites. MinConfidence and
// SeparationMargin operate on fused RRF scores.
type Policy struct {
	MinConfidence    float64
	SeparationMargin float64
	MaxCandidates    int
}

// Gate applies the confidence policy to ranked candidates.
type Gate struct {
	policy  Policy
	arbiter domain.Analyzer // nil disables arbitration
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a selection gate. arbiter may be nil.
func New(policy Policy, arbiter domain.Analyzer, timeout time.Duration, logger *zap.Logger) *Gate {
	return &Gate{policy: policy, arbiter: arbiter, timeout: timeout, logger: logger}
}

// Decide runs the state machine over one query's fused candidate list and
// returns the terminal decision. Given identical candidates and policy the
// threshold outcome is identical across runs; only the arbiter's free-text
// reasoning may vary.
func (g *Gate) Decide(ctx context.Context, query string, candidates []domain.Candidate) domain.Decision {
	decision := g.threshold(candidates)

	if g.arbiter != nil && decision.Status != domain.StatusInsufficientInfo {
		decision = g.arbitrate(ctx, query, candidates, decision)
	}

	return decision
}

// threshold is the deterministic core: empty-or-weak list → insufficient
// info; a clear leader → success; near-tied contenders → multiple
// candidates capped at MaxCandidates.
func (g *Gate) threshold(candidates []domain.Candidate) domain.Decision {
	if len(candidates) == 0 || candidates[0].FusedScore < g.policy.MinConfidence {
		confidence := 0.0
		if len(candidates) > 0 {
			confidence = candidates[0].FusedScore
		}
		return domain.Decision{
			Status:     domain.StatusInsufficientInfo,
			Confidence: confidence,
			Message:    "No relevant tables or figures found for your query",
			Reasoning:  "no candidate cleared the confidence threshold",
		}
	}

	top := candidates[0]
	contenders := g.contenders(candidates)

	if len(contenders) == 0 {
		return domain.Decision{
			Status:     domain.StatusSuccess,
			Selected:   &top,
			Confidence: top.FusedScore,
			Message:    "Found a matching result",
			Reasoning:  "single candidate cleared the confidence threshold with clear separation",
		}
	}

	return domain.Decision{
		Status:       domain.StatusMultipleCandidates,
		Selected:     &top,
		Alternatives: contenders,
		Confidence:   top.FusedScore,
		Message:      fmt.Sprintf("Found %d candidates", len(contenders)+1),
		Reasoning:    "several candidates cleared the confidence threshold within the separation margin",
	}
}

// contenders returns the candidates after the top one that clear
// MinConfidence and sit within SeparationMargin of the top score, capped so
// the total candidate count never exceeds MaxCandidates.
func (g *Gate) contenders(candidates []domain.Candidate) []domain.Candidate {
	top := candidates[0].FusedScore
	var out []domain.Candidate
	for _, c := range candidates[1:] {
		if len(out) >= g.policy.MaxCandidates-1 {
			break
		}
		if c.FusedScore < g.policy.MinConfidence {
			break // list is sorted, nothing below clears the bar
		}
		if top-c.FusedScore > g.policy.SeparationMargin {
			break
		}
		out = append(out, c)
	}
	return out
}

// arbitrate asks the language capability to re-rank the gated candidates
// and assign a final confidence and reasoning. Any failure leaves the
// threshold decision standing, with the reasoning noting degraded mode.
func (g *Gate) arbitrate(
	ctx context.Context, query string,
	candidates []domain.Candidate, fallback domain.Decision,
) domain.Decision {
	summaries := make([]domain.CandidateSummary, 0, len(candidates))
	for i, c := range candidates {
		summaries = append(summaries, domain.CandidateSummary{
			Index: i,
			ID:    c.Record.ID,
			Type:  c.Record.Type,
			Title: c.Record.Title,
		})
	}

	actx, cancel := context.WithTimeout(ctx, g.timeout)
	selection, err := g.arbiter.SelectResult(actx, query, summaries)
	cancel()

	if err != nil || selection.Index >= len(candidates) {
		metrics.SearchDegradedTotal.WithLabelValues("arbiter_unavailable").Inc()
		g.logger.Warn("Result arbitration failed, keeping threshold decision",
			zap.String("query", query),
			zap.Error(err),
		)
		fallback.Reasoning += "; arbitration unavailable, threshold decision stands"
		return fallback
	}

	if selection.Index < 0 || selection.Confidence < 0.4 {
		return domain.Decision{
			Status:     domain.StatusInsufficientInfo,
			Confidence: selection.Confidence,
			Message:    "No confident match found",
			Reasoning:  "arbiter found no confident match among the candidates",
		}
	}

	selected := candidates[selection.Index]

	if selection.Confidence >= 0.8 {
		return domain.Decision{
			Status:     domain.StatusSuccess,
			Selected:   &selected,
			Confidence: selection.Confidence,
			Message:    "Found a matching result",
			Reasoning:  "arbiter confirmed a strong match",
		}
	}

	var alternatives []domain.Candidate
	for i, c := range candidates {
		if len(alternatives) >= g.policy.MaxCandidates-1 {
			break
		}
		if i == selection.Index {
			continue
		}
		alternatives = append(alternatives, c)
	}

	if len(alternatives) == 0 {
		return domain.Decision{
			Status:     domain.StatusSuccess,
			Selected:   &selected,
			Confidence: selection.Confidence,
			Message:    "Found a matching result",
			Reasoning:  "arbiter found a good match",
		}
	}

	return domain.Decision{
		Status:       domain.StatusMultipleCandidates,
		Selected:     &selected,
		Alternatives: alternatives,
		Confidence:   selection.Confidence,
		Message:      fmt.Sprintf("Found %d candidates", len(alternatives)+1),
		Reasoning:    "arbiter found a good match with alternatives available",
	}
}

// Package search orchestrates the retrieval pipeline: intent analysis,
// parallel dense/sparse index lookups, weighted reciprocal rank fusion and
// confidence-gated selection.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/plantops/manualsearch/internal/domain"
	"github.com/plantops/manualsearch/internal/index/lexical"
	"github.com/plantops/manualsearch/internal/index/semantic"
	"github.com/plantops/manualsearch/internal/metrics"
	"github.com/plantops/manualsearch/internal/usecase/intent"
)

// Options holds per-service retrieval tuning, sourced from configuration.
type Options struct {
	TopK          int
	MaxResults    int
	RankConstant  int
	MinConfidence float64
	EmbedTimeout  time.Duration
}

// Service runs queries against the active index snapshot. All per-query
// state is local; the service is safe for concurrent use.
type Service struct {
	records RecordReader
	indexes IndexProvider
	intent  IntentAnalyzer
	gate    DecisionGate
	opts    Options
	logger  *zap.Logger
}

// New creates the retrieval service.
func New(
	records RecordReader,
	indexes IndexProvider,
	intentSvc IntentAnalyzer,
	gate DecisionGate,
	opts Options,
	logger *zap.Logger,
) *Service {
	return &Service{
		records: records,
		indexes: indexes,
		intent:  intentSvc,
		gate:    gate,
		opts:    opts,
		logger:  logger,
	}
}

// Ask runs the confidence-gated pipeline and returns a tri-state decision:
// success, multiple_candidates or insufficient_info.
func (s *Service) Ask(ctx context.Context, query string, maxResults int) (domain.Decision, error) {
	start := time.Now()

	candidates, req, err := s.retrieve(ctx, query, maxResults)
	if err != nil {
		return domain.Decision{}, err
	}

	decision := s.gate.Decide(ctx, query, candidates)
	if req.Degraded {
		decision.Reasoning += "; query intent derived by rule-based fallback"
	}

	metrics.SearchDuration.WithLabelValues("ask").Observe(time.Since(start).Seconds())
	metrics.SearchRequestsTotal.WithLabelValues("ask", string(decision.Status)).Inc()
	return decision, nil
}

// List is the non-arbitrated mode: it returns every fused candidate above
// the confidence threshold, ordered, without the ambiguity regime.
func (s *Service) List(ctx context.Context, query string, maxResults int) ([]domain.Candidate, error) {
	start := time.Now()

	candidates, _, err := s.retrieve(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if c.FusedScore >= s.opts.MinConfidence {
			kept = append(kept, c)
		}
	}

	status := string(domain.StatusSuccess)
	if len(kept) == 0 {
		status = string(domain.StatusInsufficientInfo)
	}
	metrics.SearchDuration.WithLabelValues("list").Observe(time.Since(start).Seconds())
	metrics.SearchRequestsTotal.WithLabelValues("list", status).Inc()
	return kept, nil
}

// retrieve runs intent analysis, fans out to both indices in parallel,
// joins, fuses and resolves candidates. A failed semantic lookup degrades
// to the lexical path; it never fails the query.
func (s *Service) retrieve(ctx context.Context, query string, maxResults int) ([]domain.Candidate, intent.Request, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, intent.Request{}, domain.ErrInvalidQuery
	}

	idx, err := s.indexes.Active()
	if err != nil {
		return nil, intent.Request{}, err
	}

	req := s.intent.Analyze(ctx, query)
	if req.Degraded {
		metrics.SearchDegradedTotal.WithLabelValues("intent_fallback").Inc()
	}

	// Fan out to both indices; neither lookup waits on the other. The join
	// happens before fusion so one slow index never serializes the other.
	type semOut struct {
		hits []semantic.Hit
		err  error
	}
	semCh := make(chan semOut, 1)
	go func() {
		if idx.Semantic == nil {
			semCh <- semOut{}
			return
		}
		ectx, cancel := context.WithTimeout(ctx, s.opts.EmbedTimeout)
		defer cancel()
		hits, qerr := idx.Semantic.Query(ectx, query, s.opts.TopK)
		semCh <- semOut{hits: hits, err: qerr}
	}()

	lexCh := make(chan []sourceHit, 1)
	go func() {
		lexCh <- s.lexicalHits(idx.Lexical, req)
	}()

	sem := <-semCh
	lexHits := <-lexCh

	if err := ctx.Err(); err != nil {
		return nil, intent.Request{}, fmt.Errorf("query cancelled: %w", err)
	}

	if sem.err != nil {
		// Graceful degradation: lexical-only ranking.
		metrics.SearchDegradedTotal.WithLabelValues("embedding_unavailable").Inc()
		s.logger.Warn("Semantic lookup unavailable, degrading to lexical-only",
			zap.String("query", query),
			zap.Error(sem.err),
		)
		sem.hits = nil
	}

	semHits := make([]sourceHit, len(sem.hits))
	for i, h := range sem.hits {
		semHits[i] = sourceHit{Ordinal: h.Ordinal, Score: h.Score}
	}

	fused := fuseRRF(semHits, lexHits,
		req.SemanticWeight, req.LexicalWeight,
		s.opts.RankConstant, s.opts.TopK,
	)

	limit := s.effectiveLimit(maxResults)
	candidates := make([]domain.Candidate, 0, limit)
	for _, h := range fused {
		record, rerr := s.records.At(h.Ordinal)
		if rerr != nil {
			// Index/store inconsistency is a programming-error class fault.
			return nil, intent.Request{}, fmt.Errorf("resolve fused ordinal %d: %w", h.Ordinal, rerr)
		}
		if req.ContentType != "" && record.Type != req.ContentType {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			Record:        record,
			Ordinal:       h.Ordinal,
			SemanticScore: h.SemanticScore,
			LexicalScore:  h.LexicalScore,
			FusedScore:    h.Fused,
			MatchType:     h.Match,
		})
		if len(candidates) == limit {
			break
		}
	}

	return candidates, req, nil
}

// lexicalHits queries the sparse index. When the intent analysis extracted
// search terms, each term is queried separately and the per-term rank lists
// are merged by unweighted RRF; otherwise the raw query text is used.
func (s *Service) lexicalHits(idx *lexical.Index, req intent.Request) []sourceHit {
	if len(req.SearchTerms) == 0 {
		return toSourceHits(idx.Query(req.Query, s.opts.TopK))
	}

	lists := make([][]sourceHit, 0, len(req.SearchTerms))
	for _, term := range req.SearchTerms {
		if hits := idx.Query(term, s.opts.TopK); len(hits) > 0 {
			lists = append(lists, toSourceHits(hits))
		}
	}
	if len(lists) == 0 {
		return nil
	}
	return mergeRanked(lists, s.opts.RankConstant, s.opts.TopK)
}

func (s *Service) effectiveLimit(maxResults int) int {
	if maxResults <= 0 || maxResults > s.opts.MaxResults {
		return s.opts.MaxResults
	}
	return maxResults
}

func toSourceHits(hits []lexical.Hit) []sourceHit {
	out := make([]sourceHit, len(hits))
	for i, h := range hits {
		out[i] = sourceHit{Ordinal: h.Ordinal, Score: h.Score}
	}
	return out
}

package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/plantops/manualsearch/internal/domain"
	"github.com/plantops/manualsearch/internal/index/lexical"
	"github.com/plantops/manualsearch/internal/index/semantic"
	"github.com/plantops/manualsearch/internal/snapshot"
	"github.com/plantops/manualsearch/internal/store"
	"github.com/plantops/manualsearch/internal/usecase/gate"
	"github.com/plantops/manualsearch/internal/usecase/intent"
)

// testEmbedder maps known texts to fixed vectors; unknown text embeds to the
// zero vector (similarity 0 against everything).
type testEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (e *testEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return domain.EmbeddingResult{Embedding: v}, nil
	}
	return domain.EmbeddingResult{Embedding: []float32{0, 0, 0}}, nil
}

// stubIntent returns a fixed request, letting tests pin fusion weights.
type stubIntent struct {
	terms       []string
	contentType domain.ContentType
	wSem, wLex  float64
	degraded    bool
}

func (s *stubIntent) Analyze(_ context.Context, query string) intent.Request {
	return intent.Request{
		Query:          query,
		SearchTerms:    s.terms,
		ContentType:    s.contentType,
		SemanticWeight: s.wSem,
		LexicalWeight:  s.wLex,
		Confidence:     0.9,
		Degraded:       s.degraded,
	}
}

func testCitation(page int) domain.Citation {
	return domain.Citation{
		PageNo:      page,
		BoundingBox: domain.BoundingBox{X: 100, Y: 200, Width: 400, Height: 300},
	}
}

func testCorpus(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New([]domain.ContentRecord{
		{
			ID: "table_1", Type: domain.ContentTable,
			Title:                "Representative Sizing Coefficients for Rotary Shaft Valves",
			Body:                 "cv values for rotary shaft control valves",
			Citation:             testCitation(12),
			ExtractionConfidence: 0.95,
		},
		{
			ID: "table_2", Type: domain.ContentTable,
			Title:                "Flow Characteristics of Globe Valves",
			Body:                 "inherent characteristics",
			Citation:             testCitation(27),
			ExtractionConfidence: 0.9,
		},
		{
			ID: "figure_1", Type: domain.ContentFigure,
			Title:                "Butterfly Valve Assembly Drawing",
			Body:                 "exploded assembly view",
			Citation:             testCitation(41),
			ExtractionConfidence: 0.85,
		},
	})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return s
}

func testIndexes(s *store.Store, embedder domain.Embedder) *snapshot.Indexes {
	records := s.All()
	docs := make([]string, len(records))
	for i := range records {
		docs[i] = records[i].Title + " " + records[i].Body
	}
	recordVectors := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	return &snapshot.Indexes{
		Semantic: semantic.FromVectors(recordVectors, embedder, 0.7),
		Lexical:  lexical.New(docs),
	}
}

func testGate(policy gate.Policy) *gate.Gate {
	return gate.New(policy, nil, time.Second, zap.NewNop())
}

func defaultPolicy() gate.Policy {
	return gate.Policy{MinConfidence: 0.008, SeparationMargin: 0.002, MaxCandidates: 3}
}

func newTestService(s *store.Store, idx *snapshot.Indexes, ia IntentAnalyzer, g DecisionGate) *Service {
	holder := &snapshot.Holder{}
	holder.Install(idx)
	return New(s, holder, ia, g, Options{
		TopK:          10,
		MaxResults:    5,
		RankConstant:  60,
		MinConfidence: 0.008,
		EmbedTimeout:  time.Second,
	}, zap.NewNop())
}

func TestAsk_HybridMatch(t *testing.T) {
	s := testCorpus(t)
	embedder := &testEmbedder{vectors: map[string][]float32{
		"sizing coefficients rotary shaft valves": {1, 0, 0},
	}}
	ia := &stubIntent{
		terms: []string{"sizing", "coefficients", "rotary", "shaft", "valves"},
		wSem:  0.4, wLex: 0.6,
	}
	svc := newTestService(s, testIndexes(s, embedder), ia, testGate(defaultPolicy()))

	decision, err := svc.Ask(context.Background(), "sizing coefficients rotary shaft valves", 5)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if decision.Status != domain.StatusSuccess {
		t.Fatalf("status = %s, want success", decision.Status)
	}
	if decision.Selected == nil || decision.Selected.Record.ID != "table_1" {
		t.Fatalf("selected = %+v, want table_1", decision.Selected)
	}
	if decision.Selected.MatchType != domain.MatchHybrid {
		t.Errorf("match type = %s, want hybrid", decision.Selected.MatchType)
	}
	if decision.Selected.SemanticScore == nil || decision.Selected.LexicalScore == nil {
		t.Error("hybrid candidate must carry both source scores")
	}

	// Every returned result carries a complete citation.
	cit := decision.Selected.Record.Citation
	if err := cit.Validate(); err != nil {
		t.Errorf("citation invalid: %v", err)
	}
	if cit.PageNo != 12 {
		t.Errorf("page = %d, want 12", cit.PageNo)
	}
}

func TestAsk_OutOfDomainQuery(t *testing.T) {
	s := testCorpus(t)
	embedder := &testEmbedder{}
	ia := &stubIntent{terms: []string{"zebra", "migration", "patterns"}, wSem: 0.4, wLex: 0.6}
	svc := newTestService(s, testIndexes(s, embedder), ia, testGate(defaultPolicy()))

	decision, err := svc.Ask(context.Background(), "zebra migration patterns", 5)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if decision.Status != domain.StatusInsufficientInfo {
		t.Fatalf("status = %s, want insufficient_info", decision.Status)
	}
	if decision.Selected != nil {
		t.Errorf("selected = %+v, want nil", decision.Selected)
	}
	if decision.Message != "No relevant tables or figures found for your query" {
		t.Errorf("message = %q", decision.Message)
	}
}

func TestAsk_EmbeddingDownDegradesToKeyword(t *testing.T) {
	s := testCorpus(t)
	embedder := &testEmbedder{err: errors.New("provider down")}
	ia := &stubIntent{
		terms: []string{"globe", "valve", "flow", "characteristics"},
		wSem:  0.4, wLex: 0.6,
	}
	svc := newTestService(s, testIndexes(s, embedder), ia, testGate(defaultPolicy()))

	decision, err := svc.Ask(context.Background(), "globe valve flow characteristics", 5)
	if err != nil {
		t.Fatalf("Ask: %v (degradation must not surface as an error)", err)
	}
	if decision.Status != domain.StatusMultipleCandidates {
		t.Fatalf("status = %s, want multiple_candidates", decision.Status)
	}
	if decision.Selected.Record.ID != "table_2" {
		t.Errorf("selected = %s, want table_2", decision.Selected.Record.ID)
	}
	if decision.Selected.MatchType != domain.MatchKeyword {
		t.Errorf("match type = %s, want keyword", decision.Selected.MatchType)
	}
	if decision.Selected.SemanticScore != nil {
		t.Error("semantic score must be nil in keyword-only degraded mode")
	}
	for _, alt := range decision.Alternatives {
		if alt.MatchType != domain.MatchKeyword {
			t.Errorf("alternative %s match type = %s, want keyword", alt.Record.ID, alt.MatchType)
		}
	}
}

func TestAsk_EmptyQuery(t *testing.T) {
	s := testCorpus(t)
	svc := newTestService(s, testIndexes(s, &testEmbedder{}),
		&stubIntent{wSem: 0.4, wLex: 0.6}, testGate(defaultPolicy()))

	_, err := svc.Ask(context.Background(), "   ", 5)
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("err = %v, want ErrInvalidQuery", err)
	}
}

func TestAsk_IndexNotReady(t *testing.T) {
	s := testCorpus(t)
	holder := &snapshot.Holder{}
	svc := New(s, holder, &stubIntent{wSem: 0.4, wLex: 0.6}, testGate(defaultPolicy()), Options{
		TopK: 10, MaxResults: 5, RankConstant: 60, MinConfidence: 0.008, EmbedTimeout: time.Second,
	}, zap.NewNop())

	_, err := svc.Ask(context.Background(), "valve sizing", 5)
	if !errors.Is(err, domain.ErrIndexNotReady) {
		t.Errorf("err = %v, want ErrIndexNotReady", err)
	}
}

func TestList_ContentTypeFilter(t *testing.T) {
	s := testCorpus(t)
	embedder := &testEmbedder{vectors: map[string][]float32{
		"butterfly valve assembly": {0, 0, 1},
	}}
	// Table preference filters out the figure even though it dominates both
	// rank lists.
	ia := &stubIntent{
		terms:       []string{"butterfly", "assembly"},
		contentType: domain.ContentTable,
		wSem:        0.4, wLex: 0.6,
	}
	svc := newTestService(s, testIndexes(s, embedder), ia, testGate(defaultPolicy()))

	results, err := svc.List(context.Background(), "butterfly valve assembly", 5)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, c := range results {
		if c.Record.Type != domain.ContentTable {
			t.Errorf("result %s type = %s, want table", c.Record.ID, c.Record.Type)
		}
	}
}

func TestList_OrderedAboveThreshold(t *testing.T) {
	s := testCorpus(t)
	embedder := &testEmbedder{vectors: map[string][]float32{
		"sizing coefficients rotary shaft valves": {1, 0, 0},
	}}
	ia := &stubIntent{
		terms: []string{"sizing", "coefficients", "rotary", "shaft", "valves"},
		wSem:  0.4, wLex: 0.6,
	}
	svc := newTestService(s, testIndexes(s, embedder), ia, testGate(defaultPolicy()))

	results, err := svc.List(context.Background(), "sizing coefficients rotary shaft valves", 5)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Record.ID != "table_1" {
		t.Errorf("results[0] = %s, want table_1", results[0].Record.ID)
	}
	if results[0].FusedScore < results[1].FusedScore {
		t.Error("results not ordered by fused score descending")
	}
	for _, c := range results {
		if c.FusedScore < 0.008 {
			t.Errorf("result %s fused score %f below threshold", c.Record.ID, c.FusedScore)
		}
	}
}

func TestAsk_Deterministic(t *testing.T) {
	s := testCorpus(t)
	embedder := &testEmbedder{vectors: map[string][]float32{
		"sizing coefficients rotary shaft valves": {1, 0, 0},
	}}
	ia := &stubIntent{
		terms: []string{"sizing", "coefficients", "rotary", "shaft", "valves"},
		wSem:  0.4, wLex: 0.6,
	}
	svc := newTestService(s, testIndexes(s, embedder), ia, testGate(defaultPolicy()))

	first, err := svc.Ask(context.Background(), "sizing coefficients rotary shaft valves", 5)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	for i := 0; i < 5; i++ {
		got, err := svc.Ask(context.Background(), "sizing coefficients rotary shaft valves", 5)
		if err != nil {
			t.Fatalf("Ask run %d: %v", i, err)
		}
		if got.Status != first.Status ||
			got.Selected.Record.ID != first.Selected.Record.ID ||
			got.Selected.FusedScore != first.Selected.FusedScore {
			t.Fatalf("run %d diverged: %+v vs %+v", i, got, first)
		}
	}
}

func TestAsk_RuleFallbackNotedInReasoning(t *testing.T) {
	s := testCorpus(t)
	// No analyzer: the intent adapter always takes the rule-based path.
	ia := intent.New(nil, time.Second, zap.NewNop())
	policy := gate.Policy{MinConfidence: 0.0005, SeparationMargin: 0.0002, MaxCandidates: 3}
	idx := &snapshot.Indexes{Lexical: testIndexes(s, &testEmbedder{}).Lexical}
	svc := newTestService(s, idx, ia, testGate(policy))

	decision, err := svc.Ask(context.Background(), "sizing coefficients", 5)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if decision.Status != domain.StatusSuccess {
		t.Fatalf("status = %s, want success", decision.Status)
	}
	if !strings.Contains(decision.Reasoning, "rule-based fallback") {
		t.Errorf("reasoning = %q, want rule-based fallback note", decision.Reasoning)
	}
}

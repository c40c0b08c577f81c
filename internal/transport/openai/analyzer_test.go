package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/plantops/manualsearch/internal/domain"
)

// chatResponse mirrors the chat completions response shape.
func chatResponse(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
}

func newChatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatResponse(content))
	}))
}

func newTestAnalyzer(baseURL string) *Analyzer {
	return NewAnalyzer(&AnalyzerConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "test-model",
		Logger:  zap.NewNop(),
	})
}

func TestAnalyzeQuery(t *testing.T) {
	server := newChatServer(t, `{
		"search_terms": ["sizing coefficients", "rotary valves"],
		"content_type": "table",
		"intent": "find the sizing coefficient table",
		"confidence": 0.85
	}`)
	defer server.Close()

	analysis, err := newTestAnalyzer(server.URL).AnalyzeQuery(context.Background(), "sizing table?")
	if err != nil {
		t.Fatalf("AnalyzeQuery: %v", err)
	}
	if len(analysis.SearchTerms) != 2 {
		t.Errorf("terms = %v", analysis.SearchTerms)
	}
	if analysis.ContentType != domain.ContentTable {
		t.Errorf("content type = %s, want table", analysis.ContentType)
	}
	if analysis.Confidence != 0.85 {
		t.Errorf("confidence = %f, want 0.85", analysis.Confidence)
	}
}

func TestAnalyzeQuery_AnyContentType(t *testing.T) {
	server := newChatServer(t, `{"search_terms":[],"content_type":"any","intent":"","confidence":0.4}`)
	defer server.Close()

	analysis, err := newTestAnalyzer(server.URL).AnalyzeQuery(context.Background(), "stuff")
	if err != nil {
		t.Fatalf("AnalyzeQuery: %v", err)
	}
	if analysis.ContentType != "" {
		t.Errorf("content type = %q, want empty for any", analysis.ContentType)
	}
}

func TestAnalyzeQuery_MalformedOutput(t *testing.T) {
	server := newChatServer(t, `not json at all`)
	defer server.Close()

	_, err := newTestAnalyzer(server.URL).AnalyzeQuery(context.Background(), "q")
	if !errors.Is(err, domain.ErrLanguageService) {
		t.Errorf("err = %v, want ErrLanguageService", err)
	}
}

func TestAnalyzeQuery_UnknownContentType(t *testing.T) {
	server := newChatServer(t, `{"search_terms":[],"content_type":"poem","intent":"","confidence":0.4}`)
	defer server.Close()

	_, err := newTestAnalyzer(server.URL).AnalyzeQuery(context.Background(), "q")
	if !errors.Is(err, domain.ErrLanguageService) {
		t.Errorf("err = %v, want ErrLanguageService", err)
	}
}

func TestAnalyzeQuery_ProviderDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestAnalyzer(server.URL).AnalyzeQuery(context.Background(), "q")
	if !errors.Is(err, domain.ErrLanguageService) {
		t.Errorf("err = %v, want ErrLanguageService", err)
	}
}

func TestSelectResult(t *testing.T) {
	server := newChatServer(t, `{"selected_index":1,"confidence":0.9}`)
	defer server.Close()

	candidates := []domain.CandidateSummary{
		{Index: 0, ID: "table_1", Type: domain.ContentTable, Title: "A"},
		{Index: 1, ID: "table_2", Type: domain.ContentTable, Title: "B"},
	}
	sel, err := newTestAnalyzer(server.URL).SelectResult(context.Background(), "q", candidates)
	if err != nil {
		t.Fatalf("SelectResult: %v", err)
	}
	if sel.Index != 1 {
		t.Errorf("index = %d, want 1", sel.Index)
	}
	if sel.Confidence != 0.9 {
		t.Errorf("confidence = %f, want 0.9", sel.Confidence)
	}
}

func TestSelectResult_NullIndex(t *testing.T) {
	server := newChatServer(t, `{"selected_index":null,"confidence":0.2}`)
	defer server.Close()

	sel, err := newTestAnalyzer(server.URL).SelectResult(context.Background(), "q",
		[]domain.CandidateSummary{{Index: 0, ID: "table_1"}})
	if err != nil {
		t.Fatalf("SelectResult: %v", err)
	}
	if sel.Index != -1 {
		t.Errorf("index = %d, want -1 for null", sel.Index)
	}
}

func TestSelectResult_OutOfRange(t *testing.T) {
	server := newChatServer(t, `{"selected_index":9,"confidence":0.9}`)
	defer server.Close()

	_, err := newTestAnalyzer(server.URL).SelectResult(context.Background(), "q",
		[]domain.CandidateSummary{{Index: 0, ID: "table_1"}})
	if !errors.Is(err, domain.ErrLanguageService) {
		t.Errorf("err = %v, want ErrLanguageService", err)
	}
}

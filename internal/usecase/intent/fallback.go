package intent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/plantops/manualsearch/internal/domain"
)

// Cue words biasing the content-type preference.
var (
	tableCues  = []string{"table", "comparison", "factors", "values"}
	figureCues = []string{"figure", "diagram", "drawing", "shows", "image"}
)

// Filler words excluded from extracted search terms.
var fillerWords = map[string]bool{
	"the": true, "and": true, "for": true,
	"can": true, "you": true, "show": true, "need": true,
}

var wordRe = regexp.MustCompile(`\b\w{3,}\b`)

const maxFallbackTerms = 10

// RuleBasedAnalysis is the mandatory deterministic fallback: cue-word
// content-type detection plus simple keyword extraction. It always produces
// a usable analysis with middling confidence.
func RuleBasedAnalysis(query string) domain.QueryAnalysis {
	lower := strings.ToLower(query)

	var contentType domain.ContentType
	switch {
	case containsAny(lower, tableCues):
		contentType = domain.ContentTable
	case containsAny(lower, figureCues):
		contentType = domain.ContentFigure
	}

	var terms []string
	for _, w := range wordRe.FindAllString(lower, -1) {
		if fillerWords[w] {
			continue
		}
		terms = append(terms, w)
		if len(terms) == maxFallbackTerms {
			break
		}
	}

	intent := "General search query"
	if len(terms) > 0 {
		head := terms
		if len(head) > 3 {
			head = head[:3]
		}
		intent = fmt.Sprintf("User looking for content related to: %s", strings.Join(head, ", "))
	}

	return domain.QueryAnalysis{
		SearchTerms: terms,
		ContentType: contentType,
		Intent:      intent,
		Confidence:  0.5,
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

package chi

import "github.com/plantops/manualsearch/internal/domain"

// askRequest is the body for POST /v1/ask and POST /v1/search.
type askRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

// contentItem is the wire view of a content record with its citation.
type contentItem struct {
	ID                   string             `json:"id"`
	ContentType          domain.ContentType `json:"content_type"`
	Title                string             `json:"title"`
	Content              string             `json:"content,omitempty"`
	PageNo               int                `json:"page_no"`
	BoundingBox          domain.BoundingBox `json:"bounding_box"`
	ExtractionConfidence float64            `json:"extraction_confidence"`
}

// rankedResult carries one candidate plus its retrieval scores.
type rankedResult struct {
	Item           contentItem `json:"content_item"`
	RelevanceScore float64     `json:"relevance_score"`
	SemanticScore  *float64    `json:"semantic_score,omitempty"`
	KeywordScore   *float64    `json:"keyword_score,omitempty"`
	MatchType      string      `json:"match_type"`
}

// askResponse is the tri-state answer for POST /v1/ask.
type askResponse struct {
	Query                 string         `json:"query"`
	Status                string         `json:"status"`
	SelectedResult        *rankedResult  `json:"selected_result,omitempty"`
	AlternativeCandidates []rankedResult `json:"alternative_candidates,omitempty"`
	ConfidenceScore       float64        `json:"confidence_score"`
	Message               string         `json:"message,omitempty"`
	Reasoning             string         `json:"reasoning,omitempty"`
}

// searchResponse is the ordered candidate list for POST /v1/search.
type searchResponse struct {
	Query   string         `json:"query"`
	Status  string         `json:"status"`
	Results []rankedResult `json:"results"`
	Total   int            `json:"total"`
}

// statisticsResponse reports corpus composition for GET /v1/statistics.
type statisticsResponse struct {
	TotalRecords int  `json:"total_records"`
	Tables       int  `json:"tables"`
	Figures      int  `json:"figures"`
	TextBlocks   int  `json:"text_blocks"`
	IndexReady   bool `json:"index_ready"`
}

// errorResponse is the uniform error envelope.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func candidateToResult(c *domain.Candidate) rankedResult {
	return rankedResult{
		Item: contentItem{
			ID:                   c.Record.ID,
			ContentType:          c.Record.Type,
			Title:                c.Record.Title,
			Content:              c.Record.Body,
			PageNo:               c.Record.Citation.PageNo,
			BoundingBox:          c.Record.Citation.BoundingBox,
			ExtractionConfidence: c.Record.ExtractionConfidence,
		},
		RelevanceScore: c.FusedScore,
		SemanticScore:  c.SemanticScore,
		KeywordScore:   c.LexicalScore,
		MatchType:      string(c.MatchType),
	}
}

func decisionToResponse(query string, d domain.Decision) askResponse {
	resp := askResponse{
		Query:           query,
		Status:          string(d.Status),
		ConfidenceScore: d.Confidence,
		Message:         d.Message,
		Reasoning:       d.Reasoning,
	}
	if d.Selected != nil {
		r := candidateToResult(d.Selected)
		resp.SelectedResult = &r
	}
	if len(d.Alternatives) > 0 {
		resp.AlternativeCandidates = make([]rankedResult, len(d.Alternatives))
		for i := range d.Alternatives {
			resp.AlternativeCandidates[i] = candidateToResult(&d.Alternatives[i])
		}
	}
	return resp
}

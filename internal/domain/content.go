package domain

import "fmt"

// ContentType classifies a retrievable unit of manual content.
type ContentType string

const (
	// ContentTable is tabular content extracted from the manual.
	ContentTable ContentType = "table"
	// ContentFigure is a figure or diagram extracted from the manual.
	ContentFigure ContentType = "figure"
	// ContentText is a plain text block (parsed but not indexed).
	ContentText ContentType = "text_block"
)

// BoundingBox locates content on a page, in page-pixel units.
type BoundingBox struct {
	X      int `json:"top_left_x"`
	Y      int `json:"top_left_y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Citation identifies where a record originates in the source document.
// Every record returned to a caller carries a valid citation.
type Citation struct {
	PageNo      int         `json:"page_no"`
	BoundingBox BoundingBox `json:"bounding_box"`
}

// Validate checks the citation invariants: page_no >= 1 and a
// non-degenerate bounding box.
func (c Citation) Validate() error {
	if c.PageNo < 1 {
		return fmt.Errorf("page_no must be >= 1, got %d", c.PageNo)
	}
	if c.BoundingBox.Width <= 0 || c.BoundingBox.Height <= 0 {
		return fmt.Errorf("bounding box must have positive dimensions, got %dx%d",
			c.BoundingBox.Width, c.BoundingBox.Height)
	}
	return nil
}

// ContentRecord is an immutable unit of retrievable content. Records are
// created once at store build time and never mutated; indices hold record
// ordinals, never copies.
type ContentRecord struct {
	ID                   string      `json:"id"`
	Type                 ContentType `json:"content_type"`
	Title                string      `json:"title"`
	Body                 string      `json:"content"`
	Citation             Citation    `json:"citation"`
	ExtractionConfidence float64     `json:"extraction_confidence"`
}

// Validate checks record invariants enforced at ingestion time.
func (r *ContentRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record id is required")
	}
	switch r.Type {
	case ContentTable, ContentFigure, ContentText:
	default:
		return fmt.Errorf("record %s: unknown content type %q", r.ID, r.Type)
	}
	if r.ExtractionConfidence < 0 || r.ExtractionConfidence > 1 {
		return fmt.Errorf("record %s: extraction confidence %f outside [0,1]",
			r.ID, r.ExtractionConfidence)
	}
	if err := r.Citation.Validate(); err != nil {
		return fmt.Errorf("record %s: %w", r.ID, err)
	}
	return nil
}

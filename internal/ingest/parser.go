// Package ingest converts the manual's parsed layout data into content
// records. This is a one-time ETL step that runs at startup (or offline via
// indexctl), never per query.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/plantops/manualsearch/internal/domain"
)

// layoutDocument mirrors the layout-analysis JSON produced by the upstream
// OCR pipeline: pages of positioned text lines, some of which carry LaTeX
// figure/table markup.
type layoutDocument struct {
	Pages []layoutPage `json:"pages"`
}

type layoutPage struct {
	Page  int          `json:"page"`
	Lines []layoutLine `json:"lines"`
}

type layoutLine struct {
	Text       string       `json:"text"`
	Region     layoutRegion `json:"region"`
	Confidence *float64     `json:"confidence"`
}

type layoutRegion struct {
	TopLeftX int `json:"top_left_x"`
	TopLeftY int `json:"top_left_y"`
	Width    int `json:"width"`
	Height   int `json:"height"`
}

var (
	figureRe  = regexp.MustCompile(`(?s)\\begin\{figure\}(.*?)\\end\{figure\}`)
	tableRe   = regexp.MustCompile(`(?s)\\begin\{table\}(.*?)\\end\{table\}`)
	tabularRe = regexp.MustCompile(`(?s)\\begin\{tabular\}(.*?)\\end\{tabular\}`)
	captionRe = regexp.MustCompile(`\\caption\{(.*?)\}`)
)

// Corpus is the parsed manual content, grouped by record type. Figures and
// tables form the retrievable corpus; text blocks are kept for statistics
// only and are not indexed.
type Corpus struct {
	Figures    []domain.ContentRecord
	Tables     []domain.ContentRecord
	TextBlocks []domain.ContentRecord
}

// Retrievable returns the records that enter the content store, in page
// order: figures first, then tables (matching the upstream corpus layout).
func (c Corpus) Retrievable() []domain.ContentRecord {
	out := make([]domain.ContentRecord, 0, len(c.Figures)+len(c.Tables))
	out = append(out, c.Figures...)
	out = append(out, c.Tables...)
	return out
}

// ParseFile reads and parses the manual layout JSON at path.
func ParseFile(path string) (Corpus, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Corpus{}, fmt.Errorf("%w: read %s: %w", domain.ErrIngestion, path, err)
	}
	return Parse(data)
}

// Parse extracts figures, tables and text blocks from layout JSON bytes.
func Parse(data []byte) (Corpus, error) {
	var doc layoutDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Corpus{}, fmt.Errorf("%w: parse layout json: %w", domain.ErrIngestion, err)
	}
	if len(doc.Pages) == 0 {
		return Corpus{}, fmt.Errorf("%w: layout document has no pages", domain.ErrIngestion)
	}

	var c Corpus
	figureCount, tableCount, textCount := 0, 0, 0

	for _, page := range doc.Pages {
		for _, line := range page.Lines {
			switch {
			case figureRe.MatchString(line.Text):
				figureCount++
				inner := figureRe.FindStringSubmatch(line.Text)[1]
				c.Figures = append(c.Figures, domain.ContentRecord{
					ID:                   fmt.Sprintf("figure_%d", figureCount),
					Type:                 domain.ContentFigure,
					Title:                captionOrDefault(inner, "Figure", figureCount),
					Body:                 strings.TrimSpace(inner),
					Citation:             citationFor(page.Page, line.Region),
					ExtractionConfidence: confidenceOrDefault(line.Confidence),
				})

			case tableRe.MatchString(line.Text):
				tableCount++
				inner := tableRe.FindStringSubmatch(line.Text)[1]
				body := inner
				if m := tabularRe.FindStringSubmatch(inner); m != nil {
					body = m[1]
				}
				c.Tables = append(c.Tables, domain.ContentRecord{
					ID:                   fmt.Sprintf("table_%d", tableCount),
					Type:                 domain.ContentTable,
					Title:                captionOrDefault(inner, "Table", tableCount),
					Body:                 strings.TrimSpace(body),
					Citation:             citationFor(page.Page, line.Region),
					ExtractionConfidence: confidenceOrDefault(line.Confidence),
				})

			case strings.TrimSpace(line.Text) != "":
				textCount++
				c.TextBlocks = append(c.TextBlocks, domain.ContentRecord{
					ID:                   fmt.Sprintf("text_%d", textCount),
					Type:                 domain.ContentText,
					Title:                firstWords(line.Text, 8),
					Body:                 strings.TrimSpace(line.Text),
					Citation:             citationFor(page.Page, line.Region),
					ExtractionConfidence: confidenceOrDefault(line.Confidence),
				})
			}
		}
	}

	return c, nil
}

func captionOrDefault(latex, kind string, n int) string {
	if m := captionRe.FindStringSubmatch(latex); m != nil {
		return strings.TrimSpace(m[1])
	}
	return fmt.Sprintf("%s %d", kind, n)
}

func citationFor(page int, r layoutRegion) domain.Citation {
	return domain.Citation{
		PageNo: page,
		BoundingBox: domain.BoundingBox{
			X:      r.TopLeftX,
			Y:      r.TopLeftY,
			Width:  r.Width,
			Height: r.Height,
		},
	}
}

func confidenceOrDefault(c *float64) float64 {
	if c == nil {
		return 1.0
	}
	return *c
}

func firstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

// Package lexical implements the sparse term-statistics index: BM25 scoring
// over tokenized record text. The index is immutable after construction
// and safe for concurrent readers.
package lexical

import (
	"math"
	"sort"
	"strings"
)

// BM25 parameters. k1 saturates repeated-term contribution, b controls
// document-length normalization.
const (
	k1 = 1.5
	b  = 0.75
)

// Hit is a single scored document, identified by its store ordinal.
type Hit struct {
	Ordinal int
	Score   float64
}

// Stats is the serializable form of the index: per-document term
// frequencies and lengths, in store ordinal order.
type Stats struct {
	DocLengths []int
	TermFreqs  []map[string]uint32
}

// Index holds BM25 term statistics over the record corpus.
type Index struct {
	docLengths []int
	termFreqs  []map[string]uint32
	docFreq    map[string]int
	avgDocLen  float64
}

// New tokenizes the given document texts and builds the index. Ordinals are
// the positions in docs, matching store insertion order.
func New(docs []string) *Index {
	stats := Stats{
		DocLengths: make([]int, len(docs)),
		TermFreqs:  make([]map[string]uint32, len(docs)),
	}
	for i, doc := range docs {
		tokens := Tokenize(doc)
		tf := make(map[string]uint32, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		stats.DocLengths[i] = len(tokens)
		stats.TermFreqs[i] = tf
	}
	return FromStats(stats)
}

// FromStats rebuilds the index from previously serialized statistics.
func FromStats(stats Stats) *Index {
	idx := &Index{
		docLengths: stats.DocLengths,
		termFreqs:  stats.TermFreqs,
		docFreq:    make(map[string]int),
	}

	totalLen := 0
	for i, tf := range idx.termFreqs {
		totalLen += idx.docLengths[i]
		for term := range tf {
			idx.docFreq[term]++
		}
	}
	if len(idx.docLengths) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(idx.docLengths))
	}
	return idx
}

// Stats exposes the index statistics for snapshot serialization.
func (idx *Index) Stats() Stats {
	return Stats{DocLengths: idx.docLengths, TermFreqs: idx.termFreqs}
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	return len(idx.docLengths)
}

// Query tokenizes text and returns the top-k documents by BM25 score,
// descending, ties broken by ordinal. A query with no vocabulary overlap
// returns an empty slice, never an error.
func (idx *Index) Query(text string, k int) []Hit {
	tokens := Tokenize(text)
	if len(tokens) == 0 || len(idx.docLengths) == 0 {
		return nil
	}

	n := float64(len(idx.docLengths))
	scores := make([]float64, len(idx.docLengths))
	matched := false

	for _, term := range tokens {
		df, ok := idx.docFreq[term]
		if !ok {
			continue
		}
		matched = true
		// IDF with +1 inside the log keeps scores non-negative even for
		// terms present in most documents.
		idf := math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))

		for ord, tf := range idx.termFreqs {
			freq := float64(tf[term])
			if freq == 0 {
				continue
			}
			norm := 1 - b + b*float64(idx.docLengths[ord])/idx.avgDocLen
			scores[ord] += idf * freq * (k1 + 1) / (freq + k1*norm)
		}
	}
	if !matched {
		return nil
	}

	hits := make([]Hit, 0, len(scores))
	for ord, score := range scores {
		if score > 0 {
			hits = append(hits, Hit{Ordinal: ord, Score: score})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Ordinal < hits[j].Ordinal
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// Tokenize lowercases text, splits on whitespace and trims surrounding
// punctuation from each token.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := strings.Trim(f, ".,!?;:'\"-()[]{}|\\/&")
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// Package semantic implements the dense vector index: record titles are
// embedded once at build time, queries are embedded on demand and matched by
// cosine similarity. The index is immutable after construction.
package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/plantops/manualsearch/internal/domain"
)

// Hit is a single scored document, identified by its store ordinal.
type Hit struct {
	Ordinal int
	Score   float64
}

// Index holds L2-normalized record vectors in store ordinal order. With
// normalized vectors the dot product equals cosine similarity.
type Index struct {
	vectors       [][]float32
	embed         domain.Embedder
	minSimilarity float64
}

// Build embeds every record title through a bounded worker pool and
// constructs the index. Any embedding failure aborts the build with
// domain.ErrEmbeddingUnavailable; the caller may then run lexical-only.
func Build(
	ctx context.Context,
	records []domain.ContentRecord,
	embed domain.Embedder,
	workers int,
	minSimilarity float64,
	logger *zap.Logger,
) (*Index, error) {
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create embedding pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	vectors := make([][]float32, len(records))
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		buildErr error
	)

	for i := range records {
		ord := i
		title := records[i].Title
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			vec, err := embedText(ctx, embed, title)
			if err != nil {
				errOnce.Do(func() {
					buildErr = err
					cancel()
				})
				return
			}
			vectors[ord] = vec
		})
		if submitErr != nil {
			wg.Done()
			errOnce.Do(func() {
				buildErr = fmt.Errorf("submit embed task: %w", submitErr)
				cancel()
			})
			break
		}
	}
	wg.Wait()

	if buildErr != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, buildErr)
	}

	logger.Info("Semantic index built",
		zap.Int("records", len(records)),
		zap.Int("workers", workers),
	)

	return FromVectors(vectors, embed, minSimilarity), nil
}

// FromVectors constructs the index from previously computed (normalized)
// vectors, e.g. loaded from a snapshot. No embedding calls are made.
func FromVectors(vectors [][]float32, embed domain.Embedder, minSimilarity float64) *Index {
	return &Index{vectors: vectors, embed: embed, minSimilarity: minSimilarity}
}

// Vectors exposes the record vectors for snapshot serialization.
func (idx *Index) Vectors() [][]float32 {
	return idx.vectors
}

// Len returns the number of indexed records.
func (idx *Index) Len() int {
	return len(idx.vectors)
}

// Query embeds text and returns the top-k records by cosine similarity,
// descending, ties broken by ordinal. Records below the similarity floor are
// dropped. An unreachable embedding provider surfaces as
// domain.ErrEmbeddingUnavailable so the caller can degrade to lexical-only.
func (idx *Index) Query(ctx context.Context, text string, k int) ([]Hit, error) {
	qvec, err := embedText(ctx, idx.embed, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}

	hits := make([]Hit, 0, k)
	for ord, vec := range idx.vectors {
		score := dot(qvec, vec)
		if score > idx.minSimilarity {
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
	return hits, nil
}

// embedText cleans the text, embeds it and L2-normalizes the result.
// Blank text maps to the zero vector (similarity 0 against everything).
func embedText(ctx context.Context, embed domain.Embedder, text string) ([]float32, error) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if cleaned == "" {
		return nil, nil
	}
	res, err := embed.Embed(ctx, cleaned)
	if err != nil {
		return nil, fmt.Errorf("embed %q: %w", truncate(cleaned, 40), err)
	}
	return normalize(res.Embedding), nil
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

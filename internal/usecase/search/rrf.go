package search

import (
	"sort"

	"github.com/plantops/manualsearch/internal/domain"
)

// sourceHit is a rank-list entry from one retrieval source.
type sourceHit struct {
	Ordinal int
	Score   float64
}

// fusedHit is the weighted reciprocal-rank-fusion output for one record.
type fusedHit struct {
	Ordinal       int
	Fused         float64
	SemanticScore *float64
	LexicalScore  *float64
	Match         domain.MatchType
}

// fuseRRF merges the semantic and lexical rank lists via weighted reciprocal
// rank fusion. A record at 1-based rank r in a source list contributes
// weight/(rankConst+r); the fused score is the sum over both lists, so a
// record present in both always outranks an equal-rank record present in
// one (given equal weights). Ordering is fused score descending with store
// ordinal as the deterministic tie-break.
func fuseRRF(sem, lex []sourceHit, wSem, wLex float64, rankConst, topK int) []fusedHit {
	merged := make(map[int]*fusedHit, len(sem)+len(lex))

	for rank, h := range sem {
		score := h.Score
		merged[h.Ordinal] = &fusedHit{
			Ordinal:       h.Ordinal,
			Fused:         wSem / float64(rankConst+rank+1),
			SemanticScore: &score,
			Match:         domain.MatchSemantic,
		}
	}

	for rank, h := range lex {
		score := h.Score
		contribution := wLex / float64(rankConst+rank+1)
		if existing, ok := merged[h.Ordinal]; ok {
			existing.Fused += contribution
			existing.LexicalScore = &score
			existing.Match = domain.MatchHybrid
		} else {
			merged[h.Ordinal] = &fusedHit{
				Ordinal:      h.Ordinal,
				Fused:        contribution,
				LexicalScore: &score,
				Match:        domain.MatchKeyword,
			}
		}
	}

	fused := make([]fusedHit, 0, len(merged))
	for _, h := range merged {
		fused = append(fused, *h)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Fused != fused[j].Fused {
			return fused[i].Fused > fused[j].Fused
		}
		return fused[i].Ordinal < fused[j].Ordinal
	})

	if len(fused) > topK {
		fused = fused[:topK]
	}
	return fused
}

// mergeRanked combines several rank lists of the same source (one per search
// term) into a single list via unweighted RRF. The output scores are RRF
// sums; only their ordering matters to the final fusion step.
func mergeRanked(lists [][]sourceHit, rankConst, topK int) []sourceHit {
	if len(lists) == 1 {
		return lists[0]
	}

	scores := make(map[int]float64)
	for _, list := range lists {
		for rank, h := range list {
			scores[h.Ordinal] += 1.0 / float64(rankConst+rank+1)
		}
	}

	merged := make([]sourceHit, 0, len(scores))
	for ord, score := range scores {
		merged = append(merged, sourceHit{Ordinal: ord, Score: score})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].Ordinal < merged[j].Ordinal
	})

	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}

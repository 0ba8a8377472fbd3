// Package ranker scores chunks against a query with Okapi BM25.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/index"
)

const (
	k1 = 1.2
	b  = 0.75
)

type ScoredDoc struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
}

type RankParams struct {
	TotalDocs    int
	AvgDocLength float64
}

// Rank scores every chunk that appears in postingsPerTerm and returns the
// best limit of them, sorted by descending score with ties broken by chunk
// ID. A non-positive limit returns everything.
func Rank(
	postingsPerTerm map[string]index.PostingList,
	params RankParams,
	docLength func(chunkID string) int,
	limit int,
) []ScoredDoc {
	// Fixed term order keeps floating-point sums identical across runs.
	terms := make([]string, 0, len(postingsPerTerm))
	for term := range postingsPerTerm {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	scores := make(map[string]float64)
	for _, term := range terms {
		postings := postingsPerTerm[term]
		idf := computeIDF(params.TotalDocs, len(postings))
		for _, posting := range postings {
			tfNorm := computeTFNorm(
				float64(posting.Frequency),
				float64(docLength(posting.ChunkID)),
				params.AvgDocLength,
			)
			scores[posting.ChunkID] += idf * tfNorm
		}
	}

	result := make([]ScoredDoc, 0, len(scores))
	for chunkID, score := range scores {
		result = append(result, ScoredDoc{
			ChunkID: chunkID,
			Score:   math.Round(score*10000) / 10000,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].ChunkID < result[j].ChunkID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func computeIDF(totalDocs int, docFreq int) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}

package ranker

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/index"
)

// BenchmarkBM25Ranking measures BM25 scoring and sorting for different
// posting-list sizes.
func BenchmarkBM25Ranking(b *testing.B) {
	for _, numChunks := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("chunks_%d", numChunks), func(b *testing.B) {
			pl := make(index.PostingList, numChunks)
			for i := range pl {
				pl[i] = index.Posting{
					ChunkID:   fmt.Sprintf("doc-%d#0", i),
					Frequency: (i % 10) + 1,
				}
			}
			postings := map[string]index.PostingList{"locaca": pl}
			params := RankParams{TotalDocs: numChunks * 2, AvgDocLength: 150}
			length := func(id string) int { return 100 + len(id)*10 }

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = Rank(postings, params, length, 10)
			}
		})
	}
}

// BenchmarkBM25MultiTerm measures BM25 ranking with an increasing number of
// query terms.
func BenchmarkBM25MultiTerm(b *testing.B) {
	for _, tc := range []int{1, 3, 5, 10} {
		b.Run(fmt.Sprintf("terms_%d", tc), func(b *testing.B) {
			postings := make(map[string]index.PostingList)
			for t := 0; t < tc; t++ {
				pl := make(index.PostingList, 500)
				for i := range pl {
					pl[i] = index.Posting{ChunkID: fmt.Sprintf("doc-%d#0", i), Frequency: (i % 5) + 1}
				}
				postings[fmt.Sprintf("term%d", t)] = pl
			}
			params := RankParams{TotalDocs: 5000, AvgDocLength: 200}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = Rank(postings, params, func(string) int { return 180 }, 10)
			}
		})
	}
}

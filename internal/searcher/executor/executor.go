// Package executor runs the lexical and dense passes of a query against
// one index snapshot.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/dense"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/searcher/ranker"
)

// ErrDenseUnavailable is returned by Dense when the snapshot has no
// usable vector index.
var ErrDenseUnavailable = errors.New("dense index unavailable")

type SearchResult struct {
	Query      string             `json:"query"`
	Generation uint64             `json:"generation"`
	TotalHits  int                `json:"total_hits"`
	Results    []ranker.ScoredDoc `json:"results"`
	TermStats  map[string]int     `json:"term_stats"`
}

type Executor struct {
	logger *slog.Logger
}

func New() *Executor {
	return &Executor{
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Lexical scores every chunk containing at least one plan term with BM25
// and returns the best limit of them.
func (e *Executor) Lexical(ctx context.Context, snap *indexer.Snapshot, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	result := &SearchResult{
		Query:      plan.RawQuery,
		Generation: snap.Generation,
		Results:    []ranker.ScoredDoc{},
		TermStats:  make(map[string]int),
	}
	if plan.Empty() {
		return result, nil
	}

	postingsPerTerm := make(map[string]index.PostingList)
	candidates := make(map[string]struct{})
	for _, term := range plan.Terms {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("lexical pass: %w", err)
		}
		postings := snap.Lexical.Search(term)
		if len(postings) == 0 {
			continue
		}
		postingsPerTerm[term] = postings
		result.TermStats[term] = len(postings)
		for _, p := range postings {
			candidates[p.ChunkID] = struct{}{}
		}
	}

	stats := snap.Lexical.Stats()
	params := ranker.RankParams{
		TotalDocs:    stats.ChunkCount,
		AvgDocLength: stats.AvgLen,
	}
	result.Results = ranker.Rank(postingsPerTerm, params, snap.Lexical.ChunkLen, limit)
	result.TotalHits = len(candidates)

	e.logger.Debug("lexical pass executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"generation", snap.Generation,
		"candidates", result.TotalHits,
		"results", len(result.Results),
	)
	return result, nil
}

// Dense returns the limit chunks closest to the query vector.
func (e *Executor) Dense(ctx context.Context, snap *indexer.Snapshot, vector []float32, limit int) ([]dense.Hit, error) {
	if !snap.DenseAvailable() {
		return nil, ErrDenseUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dense pass: %w", err)
	}
	hits, err := snap.Dense.Search(vector, limit)
	if err != nil {
		return nil, fmt.Errorf("dense pass: %w", err)
	}
	e.logger.Debug("dense pass executed", "generation", snap.Generation, "results", len(hits))
	return hits, nil
}

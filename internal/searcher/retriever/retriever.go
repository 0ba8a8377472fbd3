// Package retriever implements hybrid retrieval: a BM25 lexical pass and a
// dense cosine pass over one index snapshot, fused with weighted
// reciprocal rank fusion. When the dense side is unavailable or fails the
// retriever serves lexical-only results with the same shape.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/citation"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/dense"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/embedding"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/requirements"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/tracing"
)

type Mode string

const (
	ModeHybrid  Mode = "hybrid"
	ModeLexical Mode = "lexical"
)

// Fallback reasons, also used as metric labels.
const (
	ReasonUnavailable = "unavailable"
	ReasonTimeout     = "timeout"
	ReasonCircuitOpen = "circuit_open"
	ReasonCancelled   = "cancelled"
	ReasonError       = "error"
)

// Result is one retrieved chunk. Ranks are 1-based positions in the
// lexical and dense candidate lists, zero when absent from that list.
type Result struct {
	Chunk         corpus.Chunk          `json:"chunk"`
	DocumentTitle string                `json:"document_title,omitempty"`
	Score         float64               `json:"score"`
	LexicalRank   int                   `json:"lexical_rank,omitempty"`
	DenseRank     int                   `json:"dense_rank,omitempty"`
	Citation      requirements.Citation `json:"citation"`
}

// Candidate converts r into evidence for requirement drafting.
func (r Result) Candidate() requirements.Candidate {
	return requirements.Candidate{Chunk: r.Chunk, DocumentTitle: r.DocumentTitle, Score: r.Score}
}

// Candidates converts a result slice.
func Candidates(results []Result) []requirements.Candidate {
	out := make([]requirements.Candidate, len(results))
	for i, r := range results {
		out[i] = r.Candidate()
	}
	return out
}

// SnapshotSource hands out the index snapshot to query. indexer.Holder
// implements it.
type SnapshotSource interface {
	Current() *indexer.Snapshot
}

// Status describes how the retriever is currently serving.
type Status struct {
	Configured     Mode      `json:"configured"`
	Mode           Mode      `json:"mode"`
	Degraded       bool      `json:"degraded"`
	Generation     uint64    `json:"generation"`
	Chunks         int       `json:"chunks"`
	DenseAvailable bool      `json:"dense_available"`
	DenseError     string    `json:"dense_error,omitempty"`
	Fallbacks      int64     `json:"fallbacks"`
	LastFallback   string    `json:"last_fallback,omitempty"`
	LastFallbackAt time.Time `json:"last_fallback_at,omitempty"`
	CircuitState   string    `json:"circuit_state"`
	CacheEntries   int       `json:"cache_entries"`
	CacheHits      int64     `json:"cache_hits"`
	CacheMisses    int64     `json:"cache_misses"`
}

type fallback struct {
	reason string
	at     time.Time
}

type Option func(*Retriever)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Retriever) { r.metrics = m }
}

// WithCitations sets how result citations are built.
func WithCitations(t citation.Tracker) Option {
	return func(r *Retriever) { r.tracker = t }
}

// WithBreaker overrides the circuit breaker guarding query embeddings.
func WithBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(r *Retriever) { r.breakerCfg = cfg }
}

type Retriever struct {
	source     SnapshotSource
	embedder   embedding.Embedder
	mode       Mode
	cfg        config.RetrievalConfig
	exec       *executor.Executor
	cache      *cache.QueryCache[[]Result]
	breaker    *resilience.CircuitBreaker
	breakerCfg resilience.CircuitBreakerConfig
	tracker    citation.Tracker
	metrics    *metrics.Metrics
	logger     *slog.Logger

	fallbacks    atomic.Int64
	lastFallback atomic.Pointer[fallback]
	lastDegraded atomic.Bool
}

// New creates a retriever over source. A nil embedder fixes the retriever
// in lexical mode for its whole lifetime; otherwise it runs hybrid on every
// snapshot that carries a dense index.
func New(source SnapshotSource, embedder embedding.Embedder, cfg config.RetrievalConfig, opts ...Option) (*Retriever, error) {
	r := &Retriever{
		source:   source,
		embedder: embedder,
		mode:     ModeLexical,
		cfg:      cfg,
		exec:     executor.New(),
		logger:   slog.Default().With("component", "retriever"),
	}
	if embedder != nil {
		r.mode = ModeHybrid
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.New(nil)
	}
	if r.cfg.TopK <= 0 {
		r.cfg.TopK = 5
	}

	qc, err := cache.New[[]Result](cfg.CacheSize, r.metrics)
	if err != nil {
		return nil, err
	}
	r.cache = qc

	onChange := r.breakerCfg.OnStateChange
	r.breakerCfg.OnStateChange = func(name string, s resilience.State) {
		r.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(s))
		if onChange != nil {
			onChange(name, s)
		}
	}
	r.breaker = resilience.NewCircuitBreaker("query-embedding", r.breakerCfg)

	r.logger.Info("retriever ready", "mode", r.mode, "top_k", r.cfg.TopK, "rrf_k", r.cfg.RRFK)
	return r, nil
}

// Mode is the retrieval mode chosen at construction.
func (r *Retriever) Mode() Mode {
	return r.mode
}

func (r *Retriever) modeFor(snap *indexer.Snapshot) Mode {
	if r.mode == ModeHybrid && snap.DenseAvailable() {
		return ModeHybrid
	}
	return ModeLexical
}

// Retrieve returns at most topK chunks for query, best first. A
// non-positive topK uses the configured default. An empty corpus or a
// query with no searchable terms yields an empty slice and no error. Dense
// failures never surface; only a failing lexical pass returns an error,
// together with an empty slice.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]Result, error) {
	start := time.Now()
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	snap := r.source.Current()
	mode := r.modeFor(snap)

	plan := parser.Parse(query)
	if plan.Empty() || snap.Chunks.Len() == 0 {
		r.metrics.RetrievalQueriesTotal.WithLabelValues(string(mode), "empty").Inc()
		return []Result{}, nil
	}

	key := cache.Key{Query: plan.Normalized, TopK: topK, Generation: snap.Generation}
	results, hit, err := r.cache.GetOrCompute(ctx, key, func(shared context.Context) ([]Result, bool, error) {
		if budget := r.computeBudget(); budget > 0 {
			var cancel context.CancelFunc
			shared, cancel = context.WithTimeout(shared, budget)
			defer cancel()
		}
		return r.compute(shared, snap, mode, plan, topK)
	})
	if err != nil && ctx.Err() != nil {
		err = callerFailure(ctx.Err())
	}

	cacheStatus := "miss"
	if hit {
		cacheStatus = "hit"
	}
	r.metrics.RetrievalLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	if err != nil {
		r.metrics.RetrievalQueriesTotal.WithLabelValues(string(mode), "error").Inc()
		logger.FromContext(ctx).Error("retrieval failed", "query", query, "error", err)
		return []Result{}, err
	}
	r.metrics.RetrievalQueriesTotal.WithLabelValues(string(mode), cacheStatus).Inc()
	r.metrics.RetrievalResultsCount.Observe(float64(len(results)))

	logger.FromContext(ctx).Debug("retrieval completed",
		"query", query,
		"mode", mode,
		"generation", snap.Generation,
		"results", len(results),
		"cache_hit", hit,
	)
	return slices.Clone(results), nil
}

func (r *Retriever) compute(ctx context.Context, snap *indexer.Snapshot, mode Mode, plan *parser.QueryPlan, topK int) ([]Result, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "retrieve", uuid.NewString())
	span.SetAttr("mode", string(mode))
	span.SetAttr("generation", snap.Generation)
	defer func() {
		span.End()
		span.Log(ctx)
	}()

	if r.mode == ModeHybrid && mode == ModeLexical {
		r.metrics.DenseFallbacksTotal.WithLabelValues(ReasonUnavailable).Inc()
	}

	pool := r.cfg.CandidatePool
	if pool < topK {
		pool = topK
	}

	var (
		lexical  *executor.SearchResult
		hits     []dense.Hit
		denseErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, s := tracing.StartChildSpan(gctx, "lexical")
		defer s.End()
		res, err := r.exec.Lexical(gctx, snap, plan, pool)
		if err != nil {
			return err
		}
		s.SetAttr("results", len(res.Results))
		lexical = res
		return nil
	})
	if mode == ModeHybrid {
		g.Go(func() error {
			dctx, s := tracing.StartChildSpan(gctx, "dense")
			defer s.End()
			hits, denseErr = r.dense(dctx, snap, plan.RawQuery, pool)
			s.SetAttr("results", len(hits))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, lexicalFailure(err)
	}

	degraded := false
	if mode == ModeHybrid {
		if denseErr != nil {
			r.recordFallback(ctx, denseErr)
			degraded = true
			hits = nil
		} else {
			r.lastDegraded.Store(false)
		}
	}

	lexIDs := make([]string, len(lexical.Results))
	for i, d := range lexical.Results {
		lexIDs[i] = d.ChunkID
	}
	denseIDs := make([]string, len(hits))
	for i, h := range hits {
		denseIDs[i] = h.ChunkID
	}
	fused := merger.Fuse(lexIDs, denseIDs, merger.Params{
		K:             r.cfg.RRFK,
		LexicalWeight: r.cfg.LexicalWeight,
		DenseWeight:   r.cfg.DenseWeight,
	}, topK)

	results := make([]Result, 0, len(fused))
	for _, f := range fused {
		chunk, ok := snap.Chunks.Chunk(f.ChunkID)
		if !ok {
			continue
		}
		res := Result{
			Chunk:       chunk,
			Score:       f.Score,
			LexicalRank: f.LexicalRank,
			DenseRank:   f.DenseRank,
		}
		if doc, ok := snap.Chunks.Document(chunk.DocumentID); ok {
			res.DocumentTitle = doc.Title
		}
		res.Citation = r.tracker.Cite(res.Candidate())
		results = append(results, res)
	}
	span.SetAttr("results", len(results))
	span.SetAttr("degraded", degraded)
	return results, !degraded, nil
}

// dense embeds the query under the circuit breaker and the external-call
// timeout, then searches the snapshot's vectors.
func (r *Retriever) dense(ctx context.Context, snap *indexer.Snapshot, query string, limit int) ([]dense.Hit, error) {
	var vec []float32
	err := r.breaker.ExecuteIgnoring(func() error {
		return resilience.WithTimeout(ctx, r.cfg.ExternalTimeout, "query-embedding", func(ctx context.Context) error {
			v, err := embedding.EmbedOne(ctx, r.embedder, query)
			if err != nil {
				return err
			}
			vec = v
			return nil
		})
	}, func(error) bool { return ctx.Err() != nil })

	switch {
	case err == nil:
		r.metrics.EmbeddingCallsTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, resilience.ErrCircuitOpen):
		r.metrics.EmbeddingCallsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	default:
		r.metrics.EmbeddingCallsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	return r.exec.Dense(ctx, snap, vec, limit)
}

func (r *Retriever) recordFallback(ctx context.Context, err error) {
	reason := fallbackReason(err)
	r.fallbacks.Add(1)
	r.lastFallback.Store(&fallback{reason: reason, at: time.Now().UTC()})
	r.lastDegraded.Store(true)
	r.metrics.DenseFallbacksTotal.WithLabelValues(reason).Inc()
	logger.FromContext(ctx).Warn("dense pass failed, serving lexical-only", "reason", reason, "error", err)
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return ReasonCircuitOpen
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCancelled
	case errors.Is(err, executor.ErrDenseUnavailable):
		return ReasonUnavailable
	default:
		return ReasonError
	}
}

// computeBudget bounds a shared computation, which no single caller can
// cancel: the embedding timeout plus a second for the lexical pass and
// fusion. Zero means unbounded.
func (r *Retriever) computeBudget() time.Duration {
	if r.cfg.ExternalTimeout <= 0 {
		return 0
	}
	return r.cfg.ExternalTimeout + time.Second
}

// callerFailure reports a retrieval the caller gave up on.
func callerFailure(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("retrieval: %w: %w", apperrors.ErrTimeout, err)
	}
	return fmt.Errorf("retrieval: %w: %w", apperrors.ErrRetrievalUnavailable, err)
}

func lexicalFailure(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Newf(apperrors.ErrTimeout, "lexical pass: %v", err)
	}
	return apperrors.Newf(apperrors.ErrRetrievalUnavailable, "lexical pass: %v", err)
}

// Status reports the mode in effect for the current snapshot and the
// fallback history. It is the only place dense fallbacks are visible.
func (r *Retriever) Status() Status {
	snap := r.source.Current()
	mode := r.modeFor(snap)
	st := Status{
		Configured:     r.mode,
		Mode:           mode,
		Degraded:       r.mode == ModeHybrid && (mode == ModeLexical || r.lastDegraded.Load()),
		Generation:     snap.Generation,
		Chunks:         snap.Chunks.Len(),
		DenseAvailable: snap.DenseAvailable(),
		DenseError:     snap.DenseError,
		Fallbacks:      r.fallbacks.Load(),
		CircuitState:   r.breaker.GetState().String(),
		CacheEntries:   r.cache.Len(),
	}
	if fb := r.lastFallback.Load(); fb != nil {
		st.LastFallback = fb.reason
		st.LastFallbackAt = fb.at
	}
	st.CacheHits, st.CacheMisses = r.cache.Stats()
	return st
}

// Invalidate drops cached results. It is hooked to snapshot swaps.
func (r *Retriever) Invalidate() {
	r.cache.Invalidate()
}

// Attach subscribes the retriever's cache to a holder's swaps.
func (r *Retriever) Attach(h *indexer.Holder) {
	h.OnSwap(func(*indexer.Snapshot) { r.Invalidate() })
}

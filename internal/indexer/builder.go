// Package indexer builds index generations from a corpus directory and
// serves the active generation to readers as an immutable Snapshot.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/chunker"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/chunkstore"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/dense"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/embedding"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/resilience"
)

// Catalog receives the documents and chunks of every committed generation.
type Catalog interface {
	Sync(ctx context.Context, generation uint64, docs []corpus.Document, chunks []corpus.Chunk) error
}

// BuildReport summarises one Rebuild.
type BuildReport struct {
	Generation     uint64
	Dir            string
	Documents      int
	Chunks         int
	Embedded       int
	Reused         int
	DenseAvailable bool
	DenseError     string
	Duration       time.Duration
}

// Builder turns a corpus directory into a new index generation.
type Builder struct {
	cfg       config.IndexerConfig
	chunker   *chunker.Chunker
	embedder  embedding.Embedder
	timeout   time.Duration
	retry     resilience.RetryConfig
	publisher kafka.Publisher
	catalog   Catalog
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithEmbedder enables dense vectors. Each batch call is bounded by timeout.
func WithEmbedder(e embedding.Embedder, timeout time.Duration) Option {
	return func(b *Builder) {
		b.embedder = e
		b.timeout = timeout
	}
}

// WithPublisher announces committed generations.
func WithPublisher(p kafka.Publisher) Option {
	return func(b *Builder) { b.publisher = p }
}

// WithCatalog mirrors committed generations into a document catalog.
func WithCatalog(c Catalog) Option {
	return func(b *Builder) { b.catalog = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// WithRetry overrides the backoff used for embedding batches.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(b *Builder) { b.retry = cfg }
}

func NewBuilder(cfg config.IndexerConfig, opts ...Option) *Builder {
	b := &Builder{
		cfg: cfg,
		chunker: chunker.New(
			chunker.WithChunkSize(cfg.ChunkSize),
			chunker.WithOverlap(cfg.ChunkOverlap),
		),
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
		},
		logger: slog.Default().With("component", "index-builder"),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.retry.Retryable = embedding.Retryable
	if b.metrics == nil {
		b.metrics = metrics.New(nil)
	}
	if b.cfg.EmbedBatchSize <= 0 {
		b.cfg.EmbedBatchSize = 64
	}
	return b
}

// Rebuild indexes corpusPath into a new generation under the data directory
// and points CURRENT at it. Rebuilding an unchanged corpus yields the same
// chunk IDs, postings and, for a deterministic embedder, the same vectors.
// A failed embedding pass does not fail the build: the generation is
// committed lexical-only and the report says why.
func (b *Builder) Rebuild(ctx context.Context, corpusPath string) (*BuildReport, error) {
	start := time.Now()
	report, err := b.rebuild(ctx, corpusPath)
	status := "success"
	if err != nil {
		status = "error"
	}
	b.metrics.IndexRebuildsTotal.WithLabelValues("rebuild", status).Inc()
	if err != nil {
		b.logger.Error("index rebuild failed", "corpus", corpusPath, "error", err)
		return nil, err
	}
	report.Duration = time.Since(start)
	b.logger.Info("index rebuild complete",
		"generation", report.Generation,
		"documents", report.Documents,
		"chunks", report.Chunks,
		"embedded", report.Embedded,
		"reused", report.Reused,
		"dense", report.DenseAvailable,
		"duration", report.Duration,
	)
	return report, nil
}

func (b *Builder) rebuild(ctx context.Context, corpusPath string) (*BuildReport, error) {
	dataDir := b.cfg.DataDir
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	docs, err := corpus.Load(ctx, corpusPath)
	if err != nil {
		return nil, err
	}

	gens, err := listGenerations(dataDir)
	if err != nil {
		return nil, err
	}
	var gen uint64 = 1
	if len(gens) > 0 {
		gen = gens[len(gens)-1] + 1
	}
	finalDir := GenerationDir(dataDir, gen)
	tmpDir := finalDir + ".tmp"
	if err := os.RemoveAll(tmpDir); err != nil {
		return nil, fmt.Errorf("clearing temp generation: %w", err)
	}
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return nil, fmt.Errorf("creating temp generation: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(tmpDir)
		}
	}()

	store, err := chunkstore.Create(filepath.Join(tmpDir, chunkstore.FileName))
	if err != nil {
		return nil, err
	}
	lexical := index.NewMemoryIndex()
	var allChunks []corpus.Chunk
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			store.Close()
			return nil, err
		}
		chunks := b.chunker.Split(doc)
		for _, c := range chunks {
			lexical.AddChunk(c.ID, doc.Title+" "+c.Text)
		}
		if err := store.Put(doc, chunks); err != nil {
			store.Close()
			return nil, fmt.Errorf("storing chunks of %s: %w", doc.Path, err)
		}
		allChunks = append(allChunks, chunks...)
	}
	if err := store.Close(); err != nil {
		return nil, fmt.Errorf("closing chunk store: %w", err)
	}
	if _, err := segment.NewWriter(tmpDir).Write(lexical); err != nil {
		return nil, err
	}

	report := &BuildReport{
		Generation: gen,
		Dir:        finalDir,
		Documents:  len(docs),
		Chunks:     len(allChunks),
	}
	manifest := Manifest{
		Generation:   gen,
		CreatedAt:    time.Now().UTC(),
		Documents:    len(docs),
		Chunks:       len(allChunks),
		ChunkSize:    b.cfg.ChunkSize,
		ChunkOverlap: b.cfg.ChunkOverlap,
	}

	if b.embedder != nil {
		vectors, reused, err := b.embedAll(ctx, dataDir, allChunks)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			report.DenseError = err.Error()
			b.logger.Warn("embedding failed, committing lexical-only generation", "error", err)
		default:
			if _, err := dense.Write(tmpDir, b.embedder.Dimensions(), vectors); err != nil {
				return nil, err
			}
			manifest.DenseAvailable = true
			manifest.EmbeddingModel = b.embedder.Model()
			manifest.Dimensions = b.embedder.Dimensions()
			report.DenseAvailable = true
			report.Reused = reused
			report.Embedded = len(vectors) - reused
		}
	}

	if err := writeManifest(tmpDir, manifest); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpDir, finalDir); err != nil {
		return nil, fmt.Errorf("committing generation: %w", err)
	}
	committed = true
	if err := writeCurrent(dataDir, gen); err != nil {
		return nil, err
	}
	b.prune(dataDir, gen)

	if b.catalog != nil {
		if err := b.catalog.Sync(ctx, gen, docs, allChunks); err != nil {
			b.logger.Warn("catalog sync failed", "generation", gen, "error", err)
		}
	}
	if b.publisher != nil {
		event := kafka.IndexRebuiltEvent(kafka.IndexRebuilt{
			Generation:     gen,
			DataDir:        dataDir,
			Documents:      len(docs),
			Chunks:         len(allChunks),
			DenseAvailable: report.DenseAvailable,
			BuiltAt:        manifest.CreatedAt,
		})
		if err := b.publisher.Publish(ctx, event); err != nil {
			b.logger.Warn("publishing rebuild event failed", "generation", gen, "error", err)
		}
	}
	return report, nil
}

// embedAll returns a vector per chunk. Vectors from the current generation
// are reused for chunks whose ID and text are unchanged and whose model and
// dimension match; only the rest are sent to the embedder.
func (b *Builder) embedAll(ctx context.Context, dataDir string, chunks []corpus.Chunk) (map[string][]float32, int, error) {
	vectors := make(map[string][]float32, len(chunks))
	prev := b.previousVectors(dataDir)

	var pending []corpus.Chunk
	for _, c := range chunks {
		if v, ok := prev.lookup(c); ok {
			vectors[c.ID] = v
			continue
		}
		pending = append(pending, c)
	}
	reused := len(vectors)

	for i := 0; i < len(pending); i += b.cfg.EmbedBatchSize {
		end := min(i+b.cfg.EmbedBatchSize, len(pending))
		batch := pending[i:end]
		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Text
		}
		var vecs [][]float32
		err := resilience.Retry(ctx, "embed-batch", b.retry, func() error {
			return resilience.WithTimeout(ctx, b.timeout, "embed-batch", func(ctx context.Context) error {
				out, err := b.embedder.Embed(ctx, texts)
				if err != nil {
					return err
				}
				vecs = out
				return nil
			})
		})
		if err != nil {
			b.metrics.EmbeddingCallsTotal.WithLabelValues("error").Inc()
			return nil, 0, fmt.Errorf("embedding chunks %d-%d: %w", i, end-1, err)
		}
		b.metrics.EmbeddingCallsTotal.WithLabelValues("success").Inc()
		if len(vecs) != len(batch) {
			return nil, 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(batch))
		}
		for j, c := range batch {
			if len(vecs[j]) != b.embedder.Dimensions() {
				return nil, 0, fmt.Errorf("chunk %s: %w", c.ID, dense.ErrDimensionMismatch)
			}
			vectors[c.ID] = vecs[j]
		}
		b.logger.Debug("embedded batch", "from", i, "to", end, "total", len(pending))
	}
	return vectors, reused, nil
}

type previousVectors struct {
	chunks *chunkstore.Set
	raw    map[string][]float32
}

func (p previousVectors) lookup(c corpus.Chunk) ([]float32, bool) {
	if p.chunks == nil {
		return nil, false
	}
	old, ok := p.chunks.Chunk(c.ID)
	if !ok || old.Text != c.Text {
		return nil, false
	}
	v, ok := p.raw[c.ID]
	return v, ok
}

func (b *Builder) previousVectors(dataDir string) previousVectors {
	gen, err := readCurrent(dataDir)
	if err != nil || gen == 0 {
		return previousVectors{}
	}
	dir := GenerationDir(dataDir, gen)
	m, err := readManifest(dir)
	if err != nil || !m.DenseAvailable ||
		m.EmbeddingModel != b.embedder.Model() || m.Dimensions != b.embedder.Dimensions() {
		return previousVectors{}
	}
	chunks, err := chunkstore.Load(filepath.Join(dir, chunkstore.FileName))
	if err != nil {
		return previousVectors{}
	}
	raw, err := dense.LoadRaw(filepath.Join(dir, dense.FileName))
	if err != nil {
		b.logger.Warn("previous vectors unreadable, re-embedding everything", "error", err)
		return previousVectors{}
	}
	return previousVectors{chunks: chunks, raw: raw}
}

// prune removes committed generations older than the newest
// GenerationsToKeep, never touching keep.
func (b *Builder) prune(dataDir string, keep uint64) {
	if b.cfg.GenerationsToKeep <= 0 {
		return
	}
	gens, err := listGenerations(dataDir)
	if err != nil {
		b.logger.Warn("listing generations for pruning failed", "error", err)
		return
	}
	excess := len(gens) - b.cfg.GenerationsToKeep
	for _, g := range gens {
		if excess <= 0 {
			break
		}
		if g == keep {
			continue
		}
		if err := os.RemoveAll(GenerationDir(dataDir, g)); err != nil && !errors.Is(err, os.ErrNotExist) {
			b.logger.Warn("pruning generation failed", "generation", g, "error", err)
			continue
		}
		b.logger.Info("pruned old generation", "generation", g)
		excess--
	}
}

package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/dense"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/embedding"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	*embedding.Hashing
	mu     sync.Mutex
	inputs int
	fail   error
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.inputs += len(texts)
	c.mu.Unlock()
	if c.fail != nil {
		return nil, c.fail
	}
	return c.Hashing.Embed(ctx, texts)
}

type recordingPublisher struct {
	events []kafka.Event
}

func (r *recordingPublisher) Publish(ctx context.Context, e kafka.Event) error {
	r.events = append(r.events, e)
	return nil
}

type recordingCatalog struct {
	generation uint64
	docs       int
	chunks     int
}

func (r *recordingCatalog) Sync(ctx context.Context, gen uint64, docs []corpus.Document, chunks []corpus.Chunk) error {
	r.generation, r.docs, r.chunks = gen, len(docs), len(chunks)
	return nil
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"veiculos/locacao.md":    "# Locação de veículos\n\nLocação de veículos leves com motorista e manutenção inclusa.",
		"veiculos/aquisicao.md":  "# Aquisição de veículos\n\nCompra de veículos novos, zero quilômetro, com garantia de fábrica.",
		"ti/impressoras.txt":     "Outsourcing de impressão\n\nServiço de impressão com comodato de impressoras multifuncionais.",
		"ti/notebooks.txt":       "Aquisição de notebooks\n\nNotebooks com 16 GB de memória e SSD de 512 GB.",
		"ignorado/digitaliz.pdf": "%PDF",
	}
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func testIndexerConfig(t *testing.T) config.IndexerConfig {
	return config.IndexerConfig{
		DataDir:           t.TempDir(),
		ChunkSize:         200,
		ChunkOverlap:      40,
		EmbedBatchSize:    2,
		GenerationsToKeep: 2,
	}
}

func TestRebuild_HybridGeneration(t *testing.T) {
	corpusDir := writeCorpus(t)
	cfg := testIndexerConfig(t)
	emb := &countingEmbedder{Hashing: embedding.NewHashing(32)}
	pub := &recordingPublisher{}
	cat := &recordingCatalog{}

	b := NewBuilder(cfg, WithEmbedder(emb, 0), WithPublisher(pub), WithCatalog(cat))
	report, err := b.Rebuild(context.Background(), corpusDir)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), report.Generation)
	assert.Equal(t, 4, report.Documents)
	assert.Equal(t, 4, report.Chunks)
	assert.True(t, report.DenseAvailable)
	assert.Equal(t, 4, report.Embedded)
	assert.Equal(t, 0, report.Reused)
	assert.Equal(t, 4, emb.inputs)

	snap, err := Open(cfg.DataDir)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.True(t, snap.DenseAvailable())
	assert.Equal(t, 4, snap.Chunks.Len())
	assert.Equal(t, snap.Chunks.ChunkIDs(), snap.Lexical.ChunkIDs())
	assert.Equal(t, 32, snap.Dense.Dim())
	assert.NotEmpty(t, snap.Lexical.Search("veiculo"))

	require.Len(t, pub.events, 1)
	ev := pub.events[0].Value.(kafka.IndexRebuilt)
	assert.Equal(t, uint64(1), ev.Generation)
	assert.True(t, ev.DenseAvailable)
	assert.Equal(t, uint64(1), cat.generation)
	assert.Equal(t, 4, cat.chunks)
}

func TestRebuild_IdempotentAndReusesVectors(t *testing.T) {
	corpusDir := writeCorpus(t)
	cfg := testIndexerConfig(t)
	emb := &countingEmbedder{Hashing: embedding.NewHashing(16)}
	b := NewBuilder(cfg, WithEmbedder(emb, 0))

	_, err := b.Rebuild(context.Background(), corpusDir)
	require.NoError(t, err)
	first, err := Open(cfg.DataDir)
	require.NoError(t, err)

	report, err := b.Rebuild(context.Background(), corpusDir)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), report.Generation)
	assert.Equal(t, 4, report.Reused)
	assert.Equal(t, 0, report.Embedded)
	assert.Equal(t, 4, emb.inputs, "second build must not call the embedder")

	second, err := Open(cfg.DataDir)
	require.NoError(t, err)
	assert.Equal(t, first.Lexical.Snapshot(), second.Lexical.Snapshot())
	assert.Equal(t, first.Chunks.ChunkIDs(), second.Chunks.ChunkIDs())

	q := []float32{1, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0}
	h1, err := first.Dense.Search(q, 10)
	require.NoError(t, err)
	h2, err := second.Dense.Search(q, 10)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestRebuild_EmbeddingFailureCommitsLexicalOnly(t *testing.T) {
	corpusDir := writeCorpus(t)
	cfg := testIndexerConfig(t)
	emb := &countingEmbedder{Hashing: embedding.NewHashing(8), fail: errors.New("backend down")}
	b := NewBuilder(cfg,
		WithEmbedder(emb, 0),
		WithRetry(resilience.RetryConfig{MaxAttempts: 1}),
	)

	report, err := b.Rebuild(context.Background(), corpusDir)
	require.NoError(t, err)
	assert.False(t, report.DenseAvailable)
	assert.Contains(t, report.DenseError, "backend down")

	snap, err := Open(cfg.DataDir)
	require.NoError(t, err)
	assert.False(t, snap.DenseAvailable())
	assert.Equal(t, 4, snap.Lexical.ChunkCount())
}

func TestRebuild_LexicalOnlyWithoutEmbedder(t *testing.T) {
	cfg := testIndexerConfig(t)
	report, err := NewBuilder(cfg).Rebuild(context.Background(), writeCorpus(t))
	require.NoError(t, err)
	assert.False(t, report.DenseAvailable)
	assert.Empty(t, report.DenseError)

	_, err = os.Stat(filepath.Join(report.Dir, dense.FileName))
	assert.True(t, os.IsNotExist(err))
}

func TestRebuild_PrunesOldGenerations(t *testing.T) {
	corpusDir := writeCorpus(t)
	cfg := testIndexerConfig(t)
	b := NewBuilder(cfg)
	for i := 0; i < 3; i++ {
		_, err := b.Rebuild(context.Background(), corpusDir)
		require.NoError(t, err)
	}
	gens, err := listGenerations(cfg.DataDir)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3}, gens)

	current, err := readCurrent(cfg.DataDir)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), current)
}

func TestRebuild_MissingCorpusFails(t *testing.T) {
	cfg := testIndexerConfig(t)
	_, err := NewBuilder(cfg).Rebuild(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)

	current, err := readCurrent(cfg.DataDir)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), current)
}

func TestOpen_RejectsIncompleteDenseIndex(t *testing.T) {
	cfg := testIndexerConfig(t)
	report, err := NewBuilder(cfg, WithEmbedder(embedding.NewHashing(4), 0)).
		Rebuild(context.Background(), writeCorpus(t))
	require.NoError(t, err)

	// Overwrite the vectors with a file that covers only one chunk.
	snap, err := Open(cfg.DataDir)
	require.NoError(t, err)
	ids := snap.Lexical.ChunkIDs()
	_, err = dense.Write(report.Dir, 4, map[string][]float32{ids[0]: {1, 0, 0, 0}})
	require.NoError(t, err)

	snap, err = Open(cfg.DataDir)
	require.NoError(t, err)
	assert.False(t, snap.DenseAvailable())
	assert.Contains(t, snap.DenseError, "no vector")
	assert.Equal(t, 4, snap.Lexical.ChunkCount())
}

func TestOpen_EmptyDataDir(t *testing.T) {
	snap, err := Open(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), snap.Generation)
	assert.Equal(t, 0, snap.Chunks.Len())
	assert.False(t, snap.DenseAvailable())
}

package indexer

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/chunkstore"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/dense"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/segment"
)

// Snapshot is one loaded, immutable index generation. Everything it
// references is held in memory, so a snapshot that has been swapped out
// stays valid for as long as an in-flight query holds the pointer.
type Snapshot struct {
	Generation uint64
	Manifest   Manifest
	Lexical    *index.MemoryIndex
	Chunks     *chunkstore.Set
	// Dense is nil when the generation has no usable vectors.
	Dense *dense.Index
	// DenseError says why Dense is nil, if a dense index was expected.
	DenseError string
}

// DenseAvailable reports whether dense retrieval can run on this snapshot.
func (s *Snapshot) DenseAvailable() bool {
	return s.Dense != nil
}

// EmptySnapshot is the snapshot served before any generation is committed.
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		Lexical: index.NewMemoryIndex(),
		Chunks:  chunkstore.NewSet(nil, nil),
	}
}

// NewSnapshot assembles a snapshot from in-memory parts. A dense index that
// lacks a vector for any lexical chunk is dropped.
func NewSnapshot(generation uint64, lexical *index.MemoryIndex, chunks *chunkstore.Set, dx *dense.Index) *Snapshot {
	s := &Snapshot{
		Generation: generation,
		Lexical:    lexical,
		Chunks:     chunks,
	}
	if dx != nil {
		if missing := dx.Missing(lexical.ChunkIDs()); len(missing) > 0 {
			s.DenseError = fmt.Sprintf("%d chunks have no vector (first: %s)", len(missing), missing[0])
		} else {
			s.Dense = dx
		}
	}
	return s
}

// Open loads the generation named by dataDir/CURRENT. With no CURRENT file
// it returns an empty snapshot. A missing or inconsistent dense index does
// not fail the load; the snapshot simply runs lexical-only.
func Open(dataDir string) (*Snapshot, error) {
	gen, err := readCurrent(dataDir)
	if err != nil {
		return nil, err
	}
	if gen == 0 {
		return EmptySnapshot(), nil
	}
	return openGeneration(dataDir, gen)
}

func openGeneration(dataDir string, gen uint64) (*Snapshot, error) {
	logger := slog.Default().With("component", "index-loader", "generation", gen)
	dir := GenerationDir(dataDir, gen)

	manifest, err := readManifest(dir)
	if err != nil {
		return nil, err
	}
	chunks, err := chunkstore.Load(filepath.Join(dir, chunkstore.FileName))
	if err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}
	lexical, _, err := segment.Load(filepath.Join(dir, segment.FileName))
	if err != nil {
		return nil, fmt.Errorf("loading lexical index: %w", err)
	}
	if lexical.ChunkCount() != chunks.Len() {
		return nil, fmt.Errorf("lexical index has %d chunks, chunk store has %d", lexical.ChunkCount(), chunks.Len())
	}

	var dx *dense.Index
	denseErr := ""
	if manifest.DenseAvailable {
		dx, err = dense.Load(filepath.Join(dir, dense.FileName))
		switch {
		case err != nil:
			denseErr = err.Error()
			dx = nil
		case manifest.Dimensions != 0 && dx.Dim() != manifest.Dimensions:
			denseErr = fmt.Sprintf("vector file has dim %d, manifest says %d", dx.Dim(), manifest.Dimensions)
			dx = nil
		}
	}

	snap := NewSnapshot(gen, lexical, chunks, dx)
	snap.Manifest = manifest
	if denseErr != "" {
		snap.DenseError = denseErr
	}
	if snap.DenseError != "" {
		logger.Warn("dense index rejected, serving lexical-only", "reason", snap.DenseError)
	}
	logger.Info("index generation loaded",
		"chunks", chunks.Len(),
		"documents", chunks.DocumentCount(),
		"dense", snap.DenseAvailable(),
	)
	return snap, nil
}

package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolder_ReloadSwapsAndNotifies(t *testing.T) {
	corpusDir := writeCorpus(t)
	cfg := testIndexerConfig(t)

	h, err := OpenHolder(cfg.DataDir, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), h.Current().Generation)

	var swapped []uint64
	h.OnSwap(func(s *Snapshot) { swapped = append(swapped, s.Generation) })

	before := h.Current()
	_, err = NewBuilder(cfg).Rebuild(context.Background(), corpusDir)
	require.NoError(t, err)

	changed, err := h.Reload(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, uint64(1), h.Current().Generation)
	assert.Equal(t, []uint64{1}, swapped)

	// A reader that grabbed the old snapshot still sees a consistent index.
	assert.Equal(t, 0, before.Lexical.ChunkCount())
	assert.Equal(t, 0, before.Chunks.Len())

	changed, err = h.Reload(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, []uint64{1}, swapped)
}

func TestHolder_Swap(t *testing.T) {
	h := NewHolder(t.TempDir(), nil, nil)
	next := EmptySnapshot()
	next.Generation = 9
	old := h.Swap(next)
	assert.Equal(t, uint64(0), old.Generation)
	assert.Same(t, next, h.Current())
}

func TestHolder_SwapRunsHooksInOrder(t *testing.T) {
	h := NewHolder(t.TempDir(), nil, nil)
	var calls []string
	h.OnSwap(func(s *Snapshot) { calls = append(calls, "cache") })
	h.OnSwap(func(s *Snapshot) {
		calls = append(calls, "status")
		// Hooks run outside the hook lock, so one may register another.
		h.OnSwap(func(*Snapshot) { calls = append(calls, "late") })
	})

	next := EmptySnapshot()
	next.Generation = 2
	h.Swap(next)
	assert.Equal(t, []string{"cache", "status"}, calls)

	calls = nil
	h.Swap(EmptySnapshot())
	assert.Equal(t, []string{"cache", "status", "late"}, calls)
}

func TestHolder_ReloadCancelled(t *testing.T) {
	h := NewHolder(t.TempDir(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Reload(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

package citation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/requirements"
)

func cand(doc, chunk string, score float64) requirements.Candidate {
	return requirements.Candidate{
		Chunk: corpus.Chunk{ID: chunk, DocumentID: doc, Text: "texto do trecho " + chunk},
		Score: score,
	}
}

func TestAttach_OrdersAndCaps(t *testing.T) {
	tr := New(3, 200)
	item := requirements.Item{Position: 2, Description: "Notebook"}

	got := tr.Attach(item, []requirements.Candidate{
		cand("b", "b#1", 0.5),
		cand("a", "a#0", 0.9),
		cand("a", "a#1", 0.5),
		cand("c", "c#0", 0.1),
	})

	require.Len(t, got.Citations, 3)
	assert.Equal(t, "a#0", got.Citations[0].ChunkID)
	assert.Equal(t, "a#1", got.Citations[1].ChunkID, "score tie breaks by document id")
	assert.Equal(t, "b#1", got.Citations[2].ChunkID)
	assert.Equal(t, 2, got.Position)
	assert.Empty(t, item.Citations, "input item is not mutated")
}

func TestAttach_DuplicateChunkKeepsBestScore(t *testing.T) {
	got := Tracker{}.Attach(requirements.Item{}, []requirements.Candidate{
		cand("a", "a#0", 0.2),
		cand("a", "a#0", 0.7),
	})
	require.Len(t, got.Citations, 1)
	assert.Equal(t, 0.7, got.Citations[0].Score)
}

func TestAttach_Deterministic(t *testing.T) {
	support := []requirements.Candidate{cand("x", "x#0", 0.3), cand("y", "y#0", 0.3), cand("w", "w#2", 0.3)}
	first := Tracker{}.Attach(requirements.Item{}, support)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Tracker{}.Attach(requirements.Item{}, support))
	}
	assert.Equal(t, "w#2", first.Citations[0].ChunkID)
}

func TestCite_TrimsExcerpt(t *testing.T) {
	c := requirements.Candidate{Chunk: corpus.Chunk{
		ID:         "d#0",
		DocumentID: "d",
		Text:       strings.Repeat("palavra ", 100),
	}}
	got := New(1, 30).Cite(c)
	assert.LessOrEqual(t, len([]rune(got.Excerpt)), 33)
	assert.True(t, strings.HasSuffix(got.Excerpt, "..."))
	assert.False(t, strings.Contains(got.Excerpt, "palavra pal"))
}

func TestList_NumbersAndCites(t *testing.T) {
	drafts := []requirements.Draft{
		{Item: requirements.Item{Description: "um"}, Support: []requirements.Candidate{cand("a", "a#0", 1)}},
		{Item: requirements.Item{Description: "dois"}, Support: []requirements.Candidate{cand("b", "b#0", 1)}},
	}
	l := New(2, 50).List(drafts)
	require.Equal(t, 2, l.Len())
	assert.Equal(t, 0, l.Revision)
	assert.Equal(t, 2, l.Items[1].Position)
	assert.Equal(t, "b#0", l.Items[1].Citations[0].ChunkID)
}

package chunker

import (
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/corpus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_Empty(t *testing.T) {
	assert.Nil(t, New().Split(corpus.Document{ID: "d"}))
	assert.Empty(t, New().Split(corpus.Document{ID: "d", Text: "   \n\t "}))
}

func TestSplit_ShortDocumentIsOneChunk(t *testing.T) {
	chunks := New().Split(corpus.Document{ID: "d", Text: "  aquisição de notebooks  "})
	require.Len(t, chunks, 1)
	assert.Equal(t, "d#0", chunks[0].ID)
	assert.Equal(t, "d", chunks[0].DocumentID)
	assert.Equal(t, 0, chunks[0].Position)
	assert.Equal(t, "aquisição de notebooks", chunks[0].Text)
	assert.Equal(t, SectionGeneral, chunks[0].SectionType)
}

func TestSplit_WordAlignedWithOverlap(t *testing.T) {
	text := strings.Repeat("palavra ", 20)
	c := New(WithChunkSize(30), WithOverlap(10))
	chunks := c.Split(corpus.Document{ID: "d", Text: text})
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Position)
		assert.Equal(t, corpus.ChunkID("d", i), ch.ID)
		for _, w := range strings.Fields(ch.Text) {
			assert.Equal(t, "palavra", w, "chunk %d split a word", i)
		}
		assert.LessOrEqual(t, len([]rune(ch.Text)), 30)
	}
	last := chunks[len(chunks)-1].Text
	assert.True(t, strings.HasSuffix(last, "palavra"))
}

func TestSplit_Deterministic(t *testing.T) {
	doc := corpus.Document{ID: "d", Text: strings.Repeat("locação de veículos leves ", 100)}
	c := New(WithChunkSize(120), WithOverlap(30))
	assert.Equal(t, c.Split(doc), c.Split(doc))
}

func TestSplit_SectionTypes(t *testing.T) {
	text := "# Objeto\nLocação de veículos.\n\n3. REQUISITOS DA CONTRATAÇÃO\n" +
		strings.Repeat("O veículo deve ter ar condicionado. ", 3)
	chunks := New(WithChunkSize(60), WithOverlap(0)).Split(corpus.Document{ID: "d", Text: text})
	require.NotEmpty(t, chunks)
	assert.Equal(t, "objeto", chunks[0].SectionType)
	assert.Equal(t, "requisitos", chunks[len(chunks)-1].SectionType)
}

func TestNew_ClampsOverlap(t *testing.T) {
	c := New(WithChunkSize(100), WithOverlap(150))
	assert.Equal(t, 25, c.overlap)
	c = New(WithChunkSize(-1), WithOverlap(-5))
	assert.Equal(t, DefaultChunkSize, c.chunkSize)
	assert.Equal(t, DefaultChunkOverlap, c.overlap)
}

package handler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/requirements"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/searcher/retriever"
	apperrors "github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/proto"
)

type stubRetriever struct {
	results     []retriever.Result
	err         error
	gotTopK     int
	invalidated int
	status      retriever.Status
}

func (s *stubRetriever) Retrieve(_ context.Context, _ string, topK int) ([]retriever.Result, error) {
	s.gotTopK = topK
	if s.err != nil {
		return []retriever.Result{}, s.err
	}
	return s.results, nil
}

func (s *stubRetriever) Status() retriever.Status { return s.status }
func (s *stubRetriever) Invalidate()              { s.invalidated++ }

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestRetrieve(t *testing.T) {
	stub := &stubRetriever{results: []retriever.Result{{
		Chunk:         corpus.Chunk{ID: "d1#0", DocumentID: "d1", Text: "Notebook com 16 GB", SectionType: "requisitos"},
		DocumentTitle: "ETP notebooks",
		Score:         0.03,
		Citation:      requirements.Citation{DocumentID: "d1", ChunkID: "d1#0", Excerpt: "Notebook com 16 GB", Score: 0.03},
	}}}
	h := New(stub, 5, 20)

	out, err := h.Retrieve(context.Background(), raw(t, proto.RetrieveRequest{Query: "notebook", TopK: 50}))
	require.NoError(t, err)
	assert.Equal(t, 20, stub.gotTopK)

	resp := out.(*proto.RetrieveResponse)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "d1#0", resp.Results[0].ChunkID)
	assert.Equal(t, "requisitos", resp.Results[0].SectionType)
	assert.Equal(t, "Notebook com 16 GB", resp.Results[0].Citation.Excerpt)
}

func TestRetrieve_DefaultTopK(t *testing.T) {
	stub := &stubRetriever{}
	h := New(stub, 5, 20)

	out, err := h.Retrieve(context.Background(), raw(t, proto.RetrieveRequest{Query: "notebook"}))
	require.NoError(t, err)
	assert.Equal(t, 5, stub.gotTopK)
	assert.Empty(t, out.(*proto.RetrieveResponse).Results)
}

func TestRetrieve_Errors(t *testing.T) {
	h := New(&stubRetriever{err: apperrors.New(apperrors.ErrTimeout, "lexical pass")}, 5, 20)
	_, err := h.Retrieve(context.Background(), raw(t, proto.RetrieveRequest{Query: "x"}))
	assert.Equal(t, apperrors.CodeRetrievalFailure, apperrors.Code(err))

	_, err = h.Retrieve(context.Background(), json.RawMessage(`{"query": 7}`))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestStatusAndInvalidate(t *testing.T) {
	stub := &stubRetriever{status: retriever.Status{
		Mode:         retriever.ModeLexical,
		Degraded:     true,
		Generation:   3,
		CircuitState: "open",
		CacheHits:    3,
		CacheMisses:  1,
	}}
	h := New(stub, 5, 20)

	out, err := h.Status(context.Background(), nil)
	require.NoError(t, err)
	st := out.(*proto.StatusResponse)
	assert.Equal(t, "lexical", st.Mode)
	assert.True(t, st.Degraded)
	assert.Equal(t, "75.0%", st.CacheHitRate)

	_, err = h.Invalidate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stub.invalidated)
}

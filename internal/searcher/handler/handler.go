// Package handler exposes the hybrid retriever over RPC:
// RetrievalService.Retrieve for ad-hoc queries and RetrievalService.Status
// and RetrievalService.Invalidate for operators.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/requirements"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/searcher/retriever"
	apperrors "github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/proto"
)

type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retriever.Result, error)
	Status() retriever.Status
	Invalidate()
}

type Handler struct {
	retriever   Retriever
	defaultTopK int
	maxTopK     int
	logger      *slog.Logger
}

func New(r Retriever, defaultTopK, maxTopK int) *Handler {
	if maxTopK < defaultTopK {
		maxTopK = defaultTopK
	}
	return &Handler{
		retriever:   r,
		defaultTopK: defaultTopK,
		maxTopK:     maxTopK,
		logger:      slog.Default().With("component", "retrieval-handler"),
	}
}

func (h *Handler) Register(s *grpc.Server) {
	s.Register("RetrievalService.Retrieve", h.Retrieve)
	s.Register("RetrievalService.Status", h.Status)
	s.Register("RetrievalService.Invalidate", h.Invalidate)
}

func (h *Handler) Retrieve(ctx context.Context, raw json.RawMessage) (any, error) {
	start := time.Now()
	var req proto.RetrieveRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "decoding retrieve request: %v", err)
	}

	topK := h.defaultTopK
	if req.TopK > 0 {
		topK = min(req.TopK, h.maxTopK)
	}

	results, err := h.retriever.Retrieve(ctx, req.Query, topK)
	if err != nil {
		logger.FromContext(ctx).Error("retrieval failed", "query", req.Query, "error", err)
		return nil, err
	}

	resp := &proto.RetrieveResponse{
		Query:     req.Query,
		Results:   make([]proto.RetrievedChunk, len(results)),
		LatencyMs: time.Since(start).Milliseconds(),
	}
	for i, r := range results {
		resp.Results[i] = proto.RetrievedChunk{
			ChunkID:       r.Chunk.ID,
			DocumentID:    r.Chunk.DocumentID,
			DocumentTitle: r.DocumentTitle,
			SectionType:   r.Chunk.SectionType,
			Text:          r.Chunk.Text,
			Score:         r.Score,
			Citation:      requirements.ProtoCitation(r.Citation),
		}
	}
	logger.FromContext(ctx).Info("retrieve completed",
		"query", req.Query,
		"returned", len(results),
		"latency_ms", resp.LatencyMs,
	)
	return resp, nil
}

func (h *Handler) Status(_ context.Context, _ json.RawMessage) (any, error) {
	return h.status(), nil
}

// Invalidate drops the retrieval cache and reports the resulting status.
func (h *Handler) Invalidate(_ context.Context, _ json.RawMessage) (any, error) {
	h.retriever.Invalidate()
	h.logger.Info("retrieval cache invalidated")
	return h.status(), nil
}

func (h *Handler) status() *proto.StatusResponse {
	st := h.retriever.Status()
	total := st.CacheHits + st.CacheMisses
	var hitRate float64
	if total > 0 {
		hitRate = float64(st.CacheHits) / float64(total) * 100
	}
	return &proto.StatusResponse{
		Mode:           string(st.Mode),
		Degraded:       st.Degraded,
		Generation:     st.Generation,
		Chunks:         st.Chunks,
		DenseAvailable: st.DenseAvailable,
		DenseError:     st.DenseError,
		Fallbacks:      st.Fallbacks,
		LastFallback:   st.LastFallback,
		CircuitState:   st.CircuitState,
		CacheEntries:   st.CacheEntries,
		CacheHits:      st.CacheHits,
		CacheMisses:    st.CacheMisses,
		CacheHitRate:   fmt.Sprintf("%.1f%%", hitRate),
	}
}

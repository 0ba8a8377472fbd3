// Package merger fuses the lexical and dense rankings into one list with
// weighted reciprocal rank fusion.
package merger

import (
	"container/heap"
)

// DefaultRRFK is the usual reciprocal rank fusion damping constant.
const DefaultRRFK = 60

type Params struct {
	K             int
	LexicalWeight float64
	DenseWeight   float64
}

// Fused is one chunk in the fused ranking. Ranks are 1-based; zero means
// the chunk did not appear in that list.
type Fused struct {
	ChunkID     string
	Score       float64
	LexicalRank int
	DenseRank   int
}

// Fuse combines two rankings of chunk IDs, each best-first, and returns at
// most limit chunks ordered by fused score. Ties go to the better lexical
// rank, chunks without one last, then to the smaller chunk ID. The result
// does not depend on which pass finished first.
func Fuse(lexical, dense []string, p Params, limit int) []Fused {
	if limit <= 0 {
		limit = 10
	}
	if p.K <= 0 {
		p.K = DefaultRRFK
	}

	byID := make(map[string]*Fused, len(lexical)+len(dense))
	get := func(id string) *Fused {
		f, ok := byID[id]
		if !ok {
			f = &Fused{ChunkID: id}
			byID[id] = f
		}
		return f
	}
	for i, id := range lexical {
		if f := get(id); f.LexicalRank == 0 {
			f.LexicalRank = i + 1
		}
	}
	for i, id := range dense {
		if f := get(id); f.DenseRank == 0 {
			f.DenseRank = i + 1
		}
	}

	h := &fusedHeap{}
	heap.Init(h)
	for _, f := range byID {
		f.Score = contribution(p.LexicalWeight, p.K, f.LexicalRank) + contribution(p.DenseWeight, p.K, f.DenseRank)
		heap.Push(h, *f)
		if h.Len() > limit {
			heap.Pop(h)
		}
	}

	result := make([]Fused, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(Fused)
	}
	return result
}

func contribution(weight float64, k, rank int) float64 {
	if rank == 0 {
		return 0
	}
	return weight / float64(k+rank)
}

// Better reports whether a sorts before b in a fused ranking.
func Better(a, b Fused) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.LexicalRank != b.LexicalRank {
		if a.LexicalRank == 0 {
			return false
		}
		if b.LexicalRank == 0 {
			return true
		}
		return a.LexicalRank < b.LexicalRank
	}
	return a.ChunkID < b.ChunkID
}

// fusedHeap keeps the worst entry on top so it can be evicted.
type fusedHeap []Fused

func (h fusedHeap) Len() int           { return len(h) }
func (h fusedHeap) Less(i, j int) bool { return Better(h[j], h[i]) }
func (h fusedHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *fusedHeap) Push(x interface{}) {
	*h = append(*h, x.(Fused))
}

func (h *fusedHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

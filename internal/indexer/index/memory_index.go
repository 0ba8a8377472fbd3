// Package index holds the in-memory inverted index over chunks. The builder
// fills one with AddChunk; once persisted and reloaded it is only read.
package index

import (
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/tokenizer"
)

type MemoryIndex struct {
	mu       sync.RWMutex
	index    map[string]map[string]*Posting
	lengths  map[string]int
	totalLen int64
	size     int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index:   make(map[string]map[string]*Posting),
		lengths: make(map[string]int),
	}
}

// AddChunk tokenizes text and indexes it under chunkID. Re-adding an
// existing chunk ID replaces its previous postings.
func (m *MemoryIndex) AddChunk(chunkID string, text string) {
	tokens := tokenizer.Tokenize(text)

	termData := make(map[string]*Posting)
	for _, token := range tokens {
		p, exists := termData[token.Term]
		if !exists {
			p = &Posting{
				ChunkID:   chunkID,
				Positions: make([]int, 0, 4),
			}
			termData[token.Term] = p
		}
		p.Frequency++
		p.Positions = append(p.Positions, token.Position)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, exists := m.lengths[chunkID]; exists {
		m.removeLocked(chunkID, old)
	}
	for term, posting := range termData {
		if _, exists := m.index[term]; !exists {
			m.index[term] = make(map[string]*Posting)
		}
		m.index[term][chunkID] = posting
		m.size += int64(len(term) + len(chunkID) + len(posting.Positions)*8 + 64)
	}
	m.lengths[chunkID] = len(tokens)
	m.totalLen += int64(len(tokens))
}

func (m *MemoryIndex) removeLocked(chunkID string, length int) {
	for term, docs := range m.index {
		if _, ok := docs[chunkID]; ok {
			delete(docs, chunkID)
			if len(docs) == 0 {
				delete(m.index, term)
			}
		}
	}
	delete(m.lengths, chunkID)
	m.totalLen -= int64(length)
}

// FromEntries rebuilds an index from persisted term entries and chunk
// lengths. Chunks with no indexable terms appear only in lengths.
func FromEntries(entries []TermEntry, lengths map[string]int) *MemoryIndex {
	m := NewMemoryIndex()
	for _, e := range entries {
		docs := make(map[string]*Posting, len(e.Postings))
		for i := range e.Postings {
			p := e.Postings[i]
			docs[p.ChunkID] = &p
			m.size += int64(len(e.Term) + len(p.ChunkID) + len(p.Positions)*8 + 64)
		}
		m.index[e.Term] = docs
	}
	for id, n := range lengths {
		m.lengths[id] = n
		m.totalLen += int64(n)
	}
	return m
}

// Search returns the postings for term sorted by chunk ID.
func (m *MemoryIndex) Search(term string) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs, exists := m.index[term]
	if !exists {
		return nil
	}
	result := make(PostingList, 0, len(docs))
	for _, posting := range docs {
		result = append(result, *posting)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ChunkID < result[j].ChunkID
	})
	return result
}

// Snapshot returns every term with its postings, both sorted, so that two
// indexes over the same chunks serialise identically.
func (m *MemoryIndex) Snapshot() []TermEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]TermEntry, 0, len(m.index))
	for term, docs := range m.index {
		postings := make(PostingList, 0, len(docs))
		for _, posting := range docs {
			postings = append(postings, *posting)
		}
		sort.Slice(postings, func(i, j int) bool {
			return postings[i].ChunkID < postings[j].ChunkID
		})
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// Lengths returns a copy of the per-chunk token counts.
func (m *MemoryIndex) Lengths() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int, len(m.lengths))
	for id, n := range m.lengths {
		out[id] = n
	}
	return out
}

// ChunkLen returns the token count of chunkID, or 0 if unknown.
func (m *MemoryIndex) ChunkLen(chunkID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lengths[chunkID]
}

// Has reports whether chunkID is indexed.
func (m *MemoryIndex) Has(chunkID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.lengths[chunkID]
	return ok
}

// ChunkIDs returns all indexed chunk IDs in ascending order.
func (m *MemoryIndex) ChunkIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.lengths))
	for id := range m.lengths {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *MemoryIndex) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Stats{ChunkCount: len(m.lengths)}
	if s.ChunkCount > 0 {
		s.AvgLen = float64(m.totalLen) / float64(s.ChunkCount)
	}
	return s
}

func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) ChunkCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.lengths)
}

// Package citation attaches the supporting passages to requirement items.
package citation

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/requirements"
)

const (
	DefaultMaxCitations = 3
	DefaultExcerptLen   = 200
)

// Tracker builds citations. The zero value uses the defaults.
type Tracker struct {
	MaxCitations int
	ExcerptLen   int
}

func New(maxCitations, excerptLen int) Tracker {
	return Tracker{MaxCitations: maxCitations, ExcerptLen: excerptLen}
}

// Cite builds the citation for one supporting candidate.
func (t Tracker) Cite(c requirements.Candidate) requirements.Citation {
	return requirements.Citation{
		DocumentID:    c.Chunk.DocumentID,
		DocumentTitle: c.DocumentTitle,
		ChunkID:       c.Chunk.ID,
		Excerpt:       requirements.Truncate(c.Chunk.Text, t.excerptLen()),
		Score:         c.Score,
	}
}

// Attach returns a copy of item whose citations are built from supporting,
// replacing any it had. Citations are ordered by descending score, then
// document ID, then chunk ID, and capped at MaxCitations. A chunk supplied
// more than once is cited once, with its highest score.
func (t Tracker) Attach(item requirements.Item, supporting []requirements.Candidate) requirements.Item {
	best := make(map[string]requirements.Candidate, len(supporting))
	for _, c := range supporting {
		if prev, ok := best[c.Chunk.ID]; !ok || c.Score > prev.Score {
			best[c.Chunk.ID] = c
		}
	}

	citations := make([]requirements.Citation, 0, len(best))
	for _, c := range best {
		citations = append(citations, t.Cite(c))
	}
	sort.Slice(citations, func(i, j int) bool {
		a, b := citations[i], citations[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DocumentID != b.DocumentID {
			return a.DocumentID < b.DocumentID
		}
		return a.ChunkID < b.ChunkID
	})
	if limit := t.maxCitations(); len(citations) > limit {
		citations = citations[:limit]
	}

	item.Citations = citations
	return item
}

// List cites every draft and numbers the result as a fresh list.
func (t Tracker) List(drafts []requirements.Draft) requirements.List {
	items := make([]requirements.Item, len(drafts))
	for i, d := range drafts {
		items[i] = t.Attach(d.Item, d.Support)
	}
	return requirements.NewList(items)
}

func (t Tracker) maxCitations() int {
	if t.MaxCitations <= 0 {
		return DefaultMaxCitations
	}
	return t.MaxCitations
}

func (t Tracker) excerptLen() int {
	if t.ExcerptLen <= 0 {
		return DefaultExcerptLen
	}
	return t.ExcerptLen
}

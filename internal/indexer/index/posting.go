package index

// Posting records one chunk's occurrences of a term.
type Posting struct {
	ChunkID   string `json:"c"`
	Frequency int    `json:"f"`
	Positions []int  `json:"p,omitempty"`
}

type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}

// Stats are the collection-level figures BM25 needs.
type Stats struct {
	ChunkCount int
	AvgLen     float64
}

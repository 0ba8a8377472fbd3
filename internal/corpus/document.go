// Package corpus defines the source documents and chunks the index is built
// from, and loads a corpus directory into Documents.
package corpus

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// Document is an immutable source text. ID is derived from the
// corpus-relative path, so re-ingesting a file replaces the same document.
type Document struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	SourceType    string `json:"sourceType"`
	ObjectiveSlug string `json:"objectiveSlug"`
	Path          string `json:"path"`
	Text          string `json:"-"`
}

// Chunk is a contiguous span of a Document. DocumentID is a lookup key only.
type Chunk struct {
	ID          string `json:"id"`
	DocumentID  string `json:"documentId"`
	Position    int    `json:"position"`
	Text        string `json:"text"`
	SectionType string `json:"sectionType"`
}

// DocumentID returns the stable identifier for a corpus-relative path.
func DocumentID(relPath string) string {
	sum := sha1.Sum([]byte(relPath))
	return hex.EncodeToString(sum[:8])
}

// ChunkID returns "<docID>#<position>".
func ChunkID(docID string, position int) string {
	return fmt.Sprintf("%s#%d", docID, position)
}

// Package chunker splits documents into overlapping, word-aligned chunks and
// tags each with the section heading it starts under.
package chunker

import (
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/tokenizer"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// SectionGeneral is the section type of text outside any recognised heading.
const SectionGeneral = "geral"

// Section keywords are matched against folded heading text in order.
var sectionKeywords = []struct {
	keyword string
	section string
}{
	{"requisit", "requisitos"},
	{"justificativ", "justificativa"},
	{"necessidade", "necessidade"},
	{"objeto", "objeto"},
	{"quantidade", "estimativa"},
	{"estimativ", "estimativa"},
	{"solucao", "solucao"},
	{"alternativ", "solucao"},
	{"risco", "riscos"},
}

// Chunker splits document text into fixed-size chunks.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the Chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a Chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

type heading struct {
	offset  int
	section string
}

// Split returns the chunks of doc. Boundaries are measured in runes and moved
// back to the nearest whitespace when one exists in the second half of the
// window. Whitespace-only chunks are dropped; positions stay contiguous.
func (c *Chunker) Split(doc corpus.Document) []corpus.Chunk {
	runes := []rune(doc.Text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	headings := findHeadings(runes)

	var chunks []corpus.Chunk
	position := 0
	start := 0
	for start < n {
		end := start + c.chunkSize
		if end >= n {
			end = n
		} else if cut := lastSpace(runes, start+c.chunkSize/2, end); cut > start {
			end = cut
		}

		text := strings.TrimSpace(string(runes[start:end]))
		if text != "" {
			chunks = append(chunks, corpus.Chunk{
				ID:          corpus.ChunkID(doc.ID, position),
				DocumentID:  doc.ID,
				Position:    position,
				Text:        text,
				SectionType: sectionAt(headings, start),
			})
			position++
		}
		if end == n {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = end
		}
		for next < end && !unicode.IsSpace(runes[next-1]) {
			next++
		}
		start = next
	}
	return chunks
}

func lastSpace(runes []rune, from, to int) int {
	for i := to; i > from; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return -1
}

func findHeadings(runes []rune) []heading {
	var hs []heading
	lineStart := 0
	for i := 0; i <= len(runes); i++ {
		if i < len(runes) && runes[i] != '\n' {
			continue
		}
		line := strings.TrimSpace(string(runes[lineStart:i]))
		if isHeading(line) {
			hs = append(hs, heading{offset: lineStart, section: classify(line)})
		}
		lineStart = i + 1
	}
	return hs
}

// isHeading accepts markdown headings, numbered titles ("3. REQUISITOS") and
// short upper-case lines.
func isHeading(line string) bool {
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, "#") {
		return true
	}
	if len([]rune(line)) > 80 {
		return false
	}
	hasLetter := false
	for _, r := range line {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

func classify(line string) string {
	folded := tokenizer.Fold(line)
	for _, kw := range sectionKeywords {
		if strings.Contains(folded, kw.keyword) {
			return kw.section
		}
	}
	return SectionGeneral
}

func sectionAt(hs []heading, offset int) string {
	section := SectionGeneral
	for _, h := range hs {
		if h.offset > offset {
			break
		}
		section = h.section
	}
	return section
}

// Package chunkstore persists the documents and chunks of one index
// generation in a bbolt file, and loads them back into an immutable Set.
package chunkstore

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/corpus"
	"go.etcd.io/bbolt"
)

const FileName = "chunks.db"

var (
	bucketDocs   = []byte("documents")
	bucketChunks = []byte("chunks")
)

// Store is a writable chunk store used while building a generation.
type Store struct {
	db *bbolt.DB
}

// Create opens a fresh store at path, replacing any existing file.
func Create(path string) (*Store, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale chunk store: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening chunk store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketDocs); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketChunks)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Put writes a document and its chunks in one transaction.
func (s *Store) Put(doc corpus.Document, chunks []corpus.Chunk) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(storedDocument{Document: doc, Text: doc.Text})
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocs).Put([]byte(doc.ID), data); err != nil {
			return err
		}
		b := tx.Bucket(bucketChunks)
		for _, c := range chunks {
			data, err := json.Marshal(c)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(c.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

// storedDocument keeps the text, which Document omits from JSON.
type storedDocument struct {
	corpus.Document
	Text string `json:"text"`
}

// Set is the read-only content of a chunk store held in memory.
type Set struct {
	docs   map[string]corpus.Document
	chunks map[string]corpus.Chunk
	ids    []string
}

// Load reads every document and chunk at path and closes the file.
func Load(path string) (*Set, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("opening chunk store: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("opening chunk store: %w", err)
	}
	defer db.Close()

	set := &Set{
		docs:   make(map[string]corpus.Document),
		chunks: make(map[string]corpus.Chunk),
	}
	err = db.View(func(tx *bbolt.Tx) error {
		docs := tx.Bucket(bucketDocs)
		chunks := tx.Bucket(bucketChunks)
		if docs == nil || chunks == nil {
			return fmt.Errorf("chunk store is missing buckets")
		}
		if err := docs.ForEach(func(k, v []byte) error {
			var d storedDocument
			if err := json.Unmarshal(v, &d); err != nil {
				return fmt.Errorf("decoding document %s: %w", k, err)
			}
			d.Document.Text = d.Text
			set.docs[string(k)] = d.Document
			return nil
		}); err != nil {
			return err
		}
		return chunks.ForEach(func(k, v []byte) error {
			var c corpus.Chunk
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("decoding chunk %s: %w", k, err)
			}
			set.chunks[string(k)] = c
			set.ids = append(set.ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(set.ids)
	return set, nil
}

// NewSet builds a Set directly from documents and chunks.
func NewSet(docs []corpus.Document, chunks []corpus.Chunk) *Set {
	set := &Set{
		docs:   make(map[string]corpus.Document, len(docs)),
		chunks: make(map[string]corpus.Chunk, len(chunks)),
		ids:    make([]string, 0, len(chunks)),
	}
	for _, d := range docs {
		set.docs[d.ID] = d
	}
	for _, c := range chunks {
		if _, dup := set.chunks[c.ID]; !dup {
			set.ids = append(set.ids, c.ID)
		}
		set.chunks[c.ID] = c
	}
	sort.Strings(set.ids)
	return set
}

func (s *Set) Chunk(id string) (corpus.Chunk, bool) {
	c, ok := s.chunks[id]
	return c, ok
}

func (s *Set) Document(id string) (corpus.Document, bool) {
	d, ok := s.docs[id]
	return d, ok
}

// ChunkIDs returns all chunk IDs in ascending order. The slice is shared.
func (s *Set) ChunkIDs() []string {
	return s.ids
}

func (s *Set) Len() int {
	return len(s.ids)
}

func (s *Set) DocumentCount() int {
	return len(s.docs)
}

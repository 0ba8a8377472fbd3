// Package dense stores chunk embeddings in a flat vector file and answers
// brute-force cosine-similarity queries over them.
//
// File layout (v1):
//
//	0..7   magic "ETPVEC01"
//	8..15  dim (uint64)
//	16..23 count (uint64)
//	then count records: id length (uint16), id bytes, dim float32 values
package dense

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
)

const (
	HeaderSize = 24
	FileName   = "dense.vec"
)

var fileMagic = [8]byte{'E', 'T', 'P', 'V', 'E', 'C', '0', '1'}

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Hit is one scored chunk from a dense query.
type Hit struct {
	ChunkID string
	Score   float64
}

// Index is an immutable in-memory set of unit-normalised vectors.
type Index struct {
	dim  int
	ids  []string
	vecs [][]float32
	pos  map[string]int
}

// Write atomically writes vectors to dir/dense.vec with ids in ascending
// order. Every vector must have length dim.
func Write(dir string, dim int, vectors map[string][]float32) (string, error) {
	if dim <= 0 {
		return "", fmt.Errorf("invalid dim: %d", dim)
	}
	ids := make([]string, 0, len(vectors))
	for id, v := range vectors {
		if len(v) != dim {
			return "", fmt.Errorf("chunk %s: %w: got %d, want %d", id, ErrDimensionMismatch, len(v), dim)
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	finalPath := filepath.Join(dir, FileName)
	tmpPath := finalPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating vector file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	header := make([]byte, HeaderSize)
	copy(header[:8], fileMagic[:])
	binary.LittleEndian.PutUint64(header[8:16], uint64(dim))
	binary.LittleEndian.PutUint64(header[16:24], uint64(len(ids)))
	if _, err := w.Write(header); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}
	buf := make([]byte, 4)
	for _, id := range ids {
		if len(id) > math.MaxUint16 {
			return "", fmt.Errorf("chunk id too long: %d bytes", len(id))
		}
		binary.LittleEndian.PutUint16(buf[:2], uint16(len(id)))
		if _, err := w.Write(buf[:2]); err != nil {
			return "", err
		}
		if _, err := w.WriteString(id); err != nil {
			return "", err
		}
		for _, x := range vectors[id] {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(x))
			if _, err := w.Write(buf); err != nil {
				return "", err
			}
		}
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("flushing vector file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing vector file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming vector file: %w", err)
	}
	return finalPath, nil
}

// Load reads a vector file fully into memory, normalising every vector.
func Load(path string) (*Index, error) {
	var idx *Index
	dim, err := readFile(path, func(dim, count int) {
		idx = &Index{
			dim:  dim,
			ids:  make([]string, 0, count),
			vecs: make([][]float32, 0, count),
			pos:  make(map[string]int, count),
		}
	}, func(id string, v []float32) {
		idx.pos[id] = len(idx.ids)
		idx.ids = append(idx.ids, id)
		idx.vecs = append(idx.vecs, Normalize(v))
	})
	if err != nil {
		return nil, err
	}
	idx.dim = dim
	return idx, nil
}

// New builds an index from in-memory vectors, normalising each one.
func New(dim int, vectors map[string][]float32) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dim: %d", dim)
	}
	ids := make([]string, 0, len(vectors))
	for id, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("chunk %s: %w: got %d, want %d", id, ErrDimensionMismatch, len(v), dim)
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	idx := &Index{
		dim:  dim,
		ids:  ids,
		vecs: make([][]float32, len(ids)),
		pos:  make(map[string]int, len(ids)),
	}
	for i, id := range ids {
		idx.pos[id] = i
		idx.vecs[i] = Normalize(vectors[id])
	}
	return idx, nil
}

// LoadRaw reads a vector file into a map of unnormalised vectors, as they
// were written. The builder uses it to carry vectors across generations.
func LoadRaw(path string) (map[string][]float32, error) {
	var out map[string][]float32
	_, err := readFile(path, func(_, count int) {
		out = make(map[string][]float32, count)
	}, func(id string, v []float32) {
		out[id] = v
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func readFile(path string, init func(dim, count int), record func(id string, v []float32)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening vector file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, fmt.Errorf("vector file too small for header: %w", err)
	}
	var mg [8]byte
	copy(mg[:], header[:8])
	if mg != fileMagic {
		return 0, errors.New("invalid vector file header (magic mismatch)")
	}
	dim := int(binary.LittleEndian.Uint64(header[8:16]))
	count := int(binary.LittleEndian.Uint64(header[16:24]))
	if dim <= 0 {
		return 0, errors.New("invalid vector file header (dim=0)")
	}
	init(dim, count)

	lenBuf := make([]byte, 2)
	vecBuf := make([]byte, 4*dim)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, lenBuf); err != nil {
			return 0, fmt.Errorf("reading record %d: %w", i, err)
		}
		idBuf := make([]byte, binary.LittleEndian.Uint16(lenBuf))
		if _, err := io.ReadFull(r, idBuf); err != nil {
			return 0, fmt.Errorf("reading record %d id: %w", i, err)
		}
		if _, err := io.ReadFull(r, vecBuf); err != nil {
			return 0, fmt.Errorf("reading record %d vector: %w", i, err)
		}
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(vecBuf[4*j:]))
		}
		record(string(idBuf), v)
	}
	return dim, nil
}

// Dim returns the vector dimension.
func (x *Index) Dim() int { return x.dim }

// Len returns the number of vectors.
func (x *Index) Len() int { return len(x.ids) }

// Has reports whether chunkID has a vector.
func (x *Index) Has(chunkID string) bool {
	_, ok := x.pos[chunkID]
	return ok
}

// Missing returns the ids from want that have no vector, in input order.
func (x *Index) Missing(want []string) []string {
	var missing []string
	for _, id := range want {
		if !x.Has(id) {
			missing = append(missing, id)
		}
	}
	return missing
}

// Search returns the k chunks most similar to query, sorted by descending
// cosine similarity with ties broken by chunk ID. Chunks with a
// non-positive similarity are excluded.
func (x *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), x.dim)
	}
	if k <= 0 {
		return nil, nil
	}
	q := Normalize(query)
	hits := make([]Hit, 0, len(x.ids))
	for i, v := range x.vecs {
		s := dot(q, v)
		if s <= 0 {
			continue
		}
		hits = append(hits, Hit{ChunkID: x.ids[i], Score: s})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Normalize returns a unit-length copy of v. A zero vector is returned as
// zeros.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

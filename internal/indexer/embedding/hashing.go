package embedding

import (
	"context"
	"hash/fnv"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/tokenizer"
)

// Hashing is a deterministic bag-of-terms embedder: each stemmed term is
// hashed into one of dims buckets with a hashed sign. It needs no network
// and gives identical vectors across rebuilds.
type Hashing struct {
	dims int
}

func NewHashing(dims int) *Hashing {
	if dims <= 0 {
		dims = 256
	}
	return &Hashing{dims: dims}
}

func (h *Hashing) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v := make([]float32, h.dims)
		for _, term := range tokenizer.Terms(text) {
			f := fnv.New64a()
			f.Write([]byte(term))
			sum := f.Sum64()
			bucket := int(sum % uint64(h.dims))
			if sum&(1<<63) != 0 {
				v[bucket]--
			} else {
				v[bucket]++
			}
		}
		out[i] = v
	}
	return out, nil
}

func (h *Hashing) Dimensions() int { return h.dims }

func (h *Hashing) Model() string { return "hashing" }

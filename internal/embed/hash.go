package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

// DefaultHashDimension is the vector size of the hash embedder.
const DefaultHashDimension = 384

// Hash is a deterministic local embedder. It hashes character unigrams and
// bigrams of the whitespace-collapsed text into a signed feature vector.
// Korean has no reliable word boundaries without a morphological analyzer,
// so character n-grams carry the lexical signal.
type Hash struct {
	dim int
}

// NewHash creates a hash embedder. dim <= 0 uses DefaultHashDimension.
func NewHash(dim int) *Hash {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return &Hash{dim: dim}
}

// Name implements Embedder.
func (h *Hash) Name() string {
	return fmt.Sprintf("hash-ngram-%d", h.dim)
}

// Dimension implements Embedder.
func (h *Hash) Dimension() int {
	return h.dim
}

// Embed implements Embedder.
func (h *Hash) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *Hash) vector(text string) []float32 {
	v := make([]float32, h.dim)
	runes := []rune(strings.Join(strings.Fields(strings.ToLower(text)), " "))

	for i, r := range runes {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		h.add(v, string(r), 1)
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) && !unicode.IsPunct(runes[i+1]) {
			h.add(v, string(runes[i:i+2]), 2)
		}
	}
	Normalize(v)
	return v
}

func (h *Hash) add(v []float32, feature string, weight float32) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()
	idx := int(sum % uint64(h.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	v[idx] += weight
}

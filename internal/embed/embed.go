// Package embed turns text into vectors for the index.
//
// The same Embedder must be used to build a collection and to query it. The
// name and dimension of the embedder are stored with each collection so a
// mismatch is detected instead of silently ranking garbage.
package embed

import (
	"context"
	"fmt"
	"math"

	"github.com/hpungsan/semu/internal/config"
)

// Embedder produces one vector per input text.
type Embedder interface {
	// Name identifies the embedding space, e.g. "hash-ngram-384".
	Name() string

	// Dimension is the vector length.
	Dimension() int

	// Embed returns vectors in input order. Blocks until the whole batch is done.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// New builds the embedder selected by cfg.
func New(cfg config.EmbedderConfig) (Embedder, error) {
	switch cfg.Type {
	case "", "hash":
		return NewHash(cfg.Dimension), nil
	case "openai":
		return NewOpenAI(OpenAIConfig{
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			APIKeyEnv: cfg.APIKeyEnv,
		})
	default:
		return nil, fmt.Errorf("unknown embedder type %q (want hash or openai)", cfg.Type)
	}
}

// Normalize scales v to unit L2 length in place. Zero vectors are left as is.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

// CosineDistance returns 1 - cos(a, b). A zero vector is at distance 1 from everything.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

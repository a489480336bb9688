package embed

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is the embedding model used when none is configured.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIConfig configures the OpenAI-compatible embedder.
type OpenAIConfig struct {
	Model     string
	BaseURL   string
	APIKeyEnv string

	// APIKey overrides APIKeyEnv when set.
	APIKey string

	// Dimension overrides the model's known vector size.
	Dimension int
}

// OpenAI embeds text with an OpenAI-compatible embeddings endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
	dim    int
}

// NewOpenAI creates an OpenAI embedder. The API key is read from the
// environment variable named by cfg.APIKeyEnv (default OPENAI_API_KEY).
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	key := cfg.APIKey
	if key == "" {
		env := cfg.APIKeyEnv
		if env == "" {
			env = "OPENAI_API_KEY"
		}
		key = os.Getenv(env)
		if key == "" {
			return nil, fmt.Errorf("%s environment variable not set", env)
		}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}

	clientCfg := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	dim := 1536
	if cfg.Model == "text-embedding-3-large" {
		dim = 3072
	}
	if cfg.Dimension > 0 {
		dim = cfg.Dimension
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		dim:    dim,
	}, nil
}

// Name implements Embedder.
func (e *OpenAI) Name() string {
	return "openai:" + e.model
}

// Dimension implements Embedder.
func (e *OpenAI) Dimension() int {
	return e.dim
}

// Embed implements Embedder. All texts go out in one request.
func (e *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i, x := range d.Embedding {
			v[i] = float32(x)
		}
		if len(v) != e.dim {
			return nil, fmt.Errorf("openai embeddings: got dimension %d, want %d", len(v), e.dim)
		}
		Normalize(v)
		out[d.Index] = v
	}
	return out, nil
}

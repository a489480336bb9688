package ops

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hpungsan/semu/internal/config"
	"github.com/hpungsan/semu/internal/errors"
	"github.com/hpungsan/semu/internal/vectorstore"
)

// QueryInput contains parameters for the Query operation.
type QueryInput struct {
	Collection string // default: cfg.Collection
	Query      string
	K          int // default: 5, max: 50
}

// QueryOutput contains the result of the Query operation.
type QueryOutput struct {
	Query      string              `json:"query"`
	Collection string              `json:"collection"`
	Results    []vectorstore.Match `json:"results"`
	Empty      bool                `json:"empty"`
	Reason     string              `json:"reason,omitempty"`
}

// Query returns the k chunks nearest to the query text.
//
// A missing or empty collection is not an error: the output is marked Empty
// with the reason. A collection built by another embedder is EMBEDDING_MISMATCH.
func Query(ctx context.Context, store *vectorstore.Store, cfg *config.Config, logger *slog.Logger, input QueryInput) (*QueryOutput, error) {
	text := strings.TrimSpace(input.Query)
	if text == "" {
		return nil, errors.NewInvalidRequest("query is required")
	}
	collection, err := resolveCollection(input.Collection, cfg)
	if err != nil {
		return nil, err
	}
	k := clamp(input.K, DefaultQueryK, MaxQueryK)

	out := &QueryOutput{Query: text, Collection: collection, Results: []vectorstore.Match{}}

	if _, err := store.Collection(ctx, collection); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			logger.Warn("query against missing collection", "collection", collection)
			out.Empty, out.Reason = true, EmptyCollectionNotFound
			return out, nil
		}
		return nil, err
	}

	n, err := store.Count(ctx, collection)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		out.Empty, out.Reason = true, EmptyNoVectors
		return out, nil
	}

	matches, err := store.Query(ctx, collection, text, k)
	if err != nil {
		return nil, err
	}
	out.Results = matches
	logger.Debug("query served", "collection", collection, "k", k, "results", len(matches))
	return out, nil
}

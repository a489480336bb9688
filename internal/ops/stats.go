package ops

import (
	"context"

	"github.com/hpungsan/semu/internal/config"
	"github.com/hpungsan/semu/internal/db"
	"github.com/hpungsan/semu/internal/errors"
	"github.com/hpungsan/semu/internal/vectorstore"
)

// StatsInput contains parameters for the Stats operation.
type StatsInput struct {
	Collection string // default: cfg.Collection
}

// StatsOutput contains the result of the Stats operation.
type StatsOutput struct {
	Collection string         `json:"collection"`
	Exists     bool           `json:"exists"`
	Total      int            `json:"total"`
	ByLawName  map[string]int `json:"by_law_name"`
	ByType     map[string]int `json:"by_type"`
	Embedder   string         `json:"embedder,omitempty"`
	Dimension  int            `json:"dimension,omitempty"`
	Compatible bool           `json:"compatible"`
	LastRun    *db.Run        `json:"last_run,omitempty"`
}

// Stats summarizes a collection. Record chunks carry no law name and are
// counted under the empty key of ByLawName.
func Stats(ctx context.Context, store *vectorstore.Store, cfg *config.Config, input StatsInput) (*StatsOutput, error) {
	collection, err := resolveCollection(input.Collection, cfg)
	if err != nil {
		return nil, err
	}
	out := &StatsOutput{
		Collection: collection,
		ByLawName:  map[string]int{},
		ByType:     map[string]int{},
	}

	c, err := db.GetCollection(ctx, store.DB(), collection)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return out, nil
		}
		return nil, err
	}
	out.Exists = true
	out.Embedder, out.Dimension = c.Embedder, c.Dimension
	e := store.Embedder()
	out.Compatible = c.Embedder == e.Name() && c.Dimension == e.Dimension()

	if out.Total, err = db.CountChunks(ctx, store.DB(), collection); err != nil {
		return nil, err
	}
	if out.ByLawName, err = db.CountByMetadata(ctx, store.DB(), collection, "law_name"); err != nil {
		return nil, err
	}
	if out.ByType, err = db.CountByMetadata(ctx, store.DB(), collection, "type"); err != nil {
		return nil, err
	}

	runs, err := db.ListRuns(ctx, store.DB(), collection, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) > 0 {
		out.LastRun = &runs[0]
	}
	return out, nil
}

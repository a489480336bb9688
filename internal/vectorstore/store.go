// Package vectorstore is the persistent vector index over the SQLite database.
package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/hpungsan/semu/internal/db"
	"github.com/hpungsan/semu/internal/embed"
	"github.com/hpungsan/semu/internal/errors"
)

// Match is one ranked search result. Lower distance is more similar.
type Match struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Distance float64           `json:"distance"`
}

// Store binds a database handle to the embedder used for every read and write.
// Construct one per process and pass it where needed.
type Store struct {
	db       *sql.DB
	embedder embed.Embedder
}

// New creates a Store.
func New(database *sql.DB, embedder embed.Embedder) *Store {
	return &Store{db: database, embedder: embedder}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Embedder returns the store's embedder.
func (s *Store) Embedder() embed.Embedder {
	return s.embedder
}

// Collection returns the named collection after checking it was built with
// the store's embedder. Returns NOT_FOUND or EMBEDDING_MISMATCH.
func (s *Store) Collection(ctx context.Context, name string) (*db.Collection, error) {
	c, err := db.GetCollection(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	if err := s.checkCompatible(c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetOrCreateCollection returns the named collection, creating it for the
// store's embedder if missing.
func (s *Store) GetOrCreateCollection(ctx context.Context, name string) (*db.Collection, error) {
	c, err := s.Collection(ctx, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	c = &db.Collection{Name: name, Embedder: s.embedder.Name(), Dimension: s.embedder.Dimension()}
	if err := db.CreateCollection(ctx, s.db, c); err != nil {
		return nil, err
	}
	// Re-read so a concurrent creator's row wins
	return s.Collection(ctx, name)
}

// Upsert embeds texts and writes them under ids in one transaction.
// The three slices must have equal length.
func (s *Store) Upsert(ctx context.Context, collection string, ids, texts []string, metadatas []map[string]string) error {
	if len(ids) != len(texts) || len(ids) != len(metadatas) {
		return errors.NewInvalidRequest(fmt.Sprintf("upsert: %d ids, %d texts, %d metadatas", len(ids), len(texts), len(metadatas)))
	}
	if len(ids) == 0 {
		return nil
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding batch: %w", err)
	}
	if len(vectors) != len(ids) {
		return fmt.Errorf("embedding batch: got %d vectors for %d texts", len(vectors), len(ids))
	}

	rows := make([]db.ChunkRow, len(ids))
	for i := range ids {
		rows[i] = db.ChunkRow{ID: ids[i], Text: texts[i], Metadata: metadatas[i], Embedding: vectors[i]}
	}
	return db.UpsertChunks(ctx, s.db, collection, rows)
}

// Query embeds text and returns up to k nearest chunks by cosine distance,
// ascending. Ties are broken by id.
func (s *Store) Query(ctx context.Context, collection, text string, k int) ([]Match, error) {
	if k <= 0 {
		return []Match{}, nil
	}
	if _, err := s.Collection(ctx, collection); err != nil {
		return nil, err
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding query: got %d vectors", len(vectors))
	}
	q := vectors[0]

	top := make([]Match, 0, k+1)
	err = db.ScanChunks(ctx, s.db, collection, func(r db.ChunkRow) error {
		m := Match{ID: r.ID, Text: r.Text, Metadata: r.Metadata, Distance: embed.CosineDistance(q, r.Embedding)}
		i := sort.Search(len(top), func(i int) bool { return less(m, top[i]) })
		if i >= k {
			return nil
		}
		top = append(top, Match{})
		copy(top[i+1:], top[i:])
		top[i] = m
		if len(top) > k {
			top = top[:k]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return top, nil
}

// Count returns the number of chunks in the collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	return db.CountChunks(ctx, s.db, collection)
}

// Drop deletes the collection and all of its chunks.
func (s *Store) Drop(ctx context.Context, collection string) error {
	return db.DeleteCollection(ctx, s.db, collection)
}

func (s *Store) checkCompatible(c *db.Collection) error {
	if c.Embedder != s.embedder.Name() || c.Dimension != s.embedder.Dimension() {
		return errors.NewEmbeddingMismatch(c.Name,
			fmt.Sprintf("%s/%d", c.Embedder, c.Dimension),
			fmt.Sprintf("%s/%d", s.embedder.Name(), s.embedder.Dimension()))
	}
	return nil
}

func less(a, b Match) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.ID < b.ID
}

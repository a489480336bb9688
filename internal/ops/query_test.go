package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/semu/internal/embed"
	"github.com/hpungsan/semu/internal/errors"
	"github.com/hpungsan/semu/internal/vectorstore"
)

func TestQuery_EmptyQuery(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := Query(context.Background(), env.store, env.cfg, discard, QueryInput{Query: "  \n"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestQuery_NoVectors(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.store.GetOrCreateCollection(context.Background(), env.cfg.Collection)
	require.NoError(t, err)

	out, err := Query(context.Background(), env.store, env.cfg, discard, QueryInput{Query: "소득세"})
	require.NoError(t, err)
	assert.True(t, out.Empty)
	assert.Equal(t, EmptyNoVectors, out.Reason)
	assert.NotNil(t, out.Results)
}

func TestQuery_DefaultAndMaxK(t *testing.T) {
	env := newTestEnv(t, nil)
	for i, id := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		env.writeRecord(t, "r"+id+".json", id, string(rune('가'+i)))
	}
	env.ingest(t, IngestInput{SkipLocal: true})

	out, err := Query(context.Background(), env.store, env.cfg, discard, QueryInput{Query: "판례"})
	require.NoError(t, err)
	assert.Len(t, out.Results, DefaultQueryK)

	out, err = Query(context.Background(), env.store, env.cfg, discard, QueryInput{Query: "판례", K: 1000})
	require.NoError(t, err)
	assert.Len(t, out.Results, 7)
}

func TestQuery_EmbeddingMismatch(t *testing.T) {
	env := newTestEnv(t, nil)
	env.writeRecord(t, "r.json", "1", "가")
	env.ingest(t, IngestInput{SkipLocal: true})

	other := vectorstore.New(env.store.DB(), embed.NewHash(128))
	_, err := Query(context.Background(), other, env.cfg, discard, QueryInput{Query: "판례"})
	assert.True(t, errors.Is(err, errors.ErrEmbeddingMismatch), "err = %v", err)
}

func TestQuery_CollectionOverride(t *testing.T) {
	env := newTestEnv(t, nil)
	env.writeRecord(t, "r.json", "1", "가")
	env.ingest(t, IngestInput{Collection: "precedents", SkipLocal: true})

	out, err := Query(context.Background(), env.store, env.cfg, discard, QueryInput{Collection: "precedents", Query: "판례"})
	require.NoError(t, err)
	assert.Equal(t, "precedents", out.Collection)
	assert.Len(t, out.Results, 1)

	out, err = Query(context.Background(), env.store, env.cfg, discard, QueryInput{Query: "판례"})
	require.NoError(t, err)
	assert.True(t, out.Empty)
}

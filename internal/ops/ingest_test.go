package ops

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"

	"github.com/hpungsan/semu/internal/chunk"
	"github.com/hpungsan/semu/internal/config"
	"github.com/hpungsan/semu/internal/db"
	"github.com/hpungsan/semu/internal/embed"
	"github.com/hpungsan/semu/internal/errors"
	"github.com/hpungsan/semu/internal/vectorstore"
)

const precedentJSON = `{
  "PrecService": {
    "판례일련번호": "%s",
    "사건명": "%s",
    "판결요지": "부가가치세 매입세액 공제 요건",
    "판례내용": "원고는 매입세액을 공제받을 수 있다."
  }
}`

const lawText = "「부가가치세법」\n제1조(목적) 이 법은 부가가치세의 과세 요건을 정한다.\n제2조(정의) 사업자란 ...\n" +
	"「소득세법」\n제1조(목적) 이 법은 개인의 소득에 대하여 과세한다.\n"

var discard = slog.New(slog.DiscardHandler)

type testEnv struct {
	store      *vectorstore.Store
	cfg        *config.Config
	recordsDir string
	localDir   string
}

func newTestEnv(t *testing.T, e embed.Embedder) *testEnv {
	t.Helper()
	base := t.TempDir()
	database, err := db.Init(base)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	if e == nil {
		e = embed.NewHash(64)
	}
	env := &testEnv{
		store:      vectorstore.New(database, e),
		cfg:        config.DefaultConfig(),
		recordsDir: filepath.Join(base, "records"),
		localDir:   filepath.Join(base, "local"),
	}
	require.NoError(t, os.MkdirAll(env.recordsDir, 0o755))
	require.NoError(t, os.MkdirAll(env.localDir, 0o755))
	env.cfg.RecordsDir = env.recordsDir
	env.cfg.LocalDir = env.localDir
	return env
}

func (env *testEnv) writeRecord(t *testing.T, name, id, title string) {
	t.Helper()
	body := strings.Replace(strings.Replace(precedentJSON, "%s", id, 1), "%s", title, 1)
	require.NoError(t, os.WriteFile(filepath.Join(env.recordsDir, name), []byte(body), 0o644))
}

func (env *testEnv) writeLocal(t *testing.T, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(env.localDir, name), data, 0o644))
}

func (env *testEnv) ingest(t *testing.T, input IngestInput) *IngestOutput {
	t.Helper()
	out, err := Ingest(context.Background(), env.store, env.cfg, discard, input)
	require.NoError(t, err)
	return out
}

func (env *testEnv) count(t *testing.T) int {
	t.Helper()
	n, err := env.store.Count(context.Background(), env.cfg.Collection)
	require.NoError(t, err)
	return n
}

// flakyEmbedder fails on the listed call numbers (1-based).
type flakyEmbedder struct {
	embed.Embedder
	calls  int
	failOn map[int]bool
}

func (f *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.failOn[f.calls] {
		return nil, stderrors.New("embedding service unavailable")
	}
	return f.Embedder.Embed(ctx, texts)
}

func TestIngest_RecordsAndLocal(t *testing.T) {
	env := newTestEnv(t, nil)
	env.writeRecord(t, "prec_1.json", "228541", "부가가치세부과처분취소")
	env.writeRecord(t, "prec_2.json", "228542", "법인세부과처분취소")
	env.writeRecord(t, "prec_noid.json", "", "아이디없음")
	require.NoError(t, os.WriteFile(filepath.Join(env.recordsDir, "broken.json"), []byte("{not json"), 0o644))
	env.writeLocal(t, "tax.txt", []byte(lawText))

	out := env.ingest(t, IngestInput{})

	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, config.DefaultCollection, out.Collection)
	assert.Equal(t, 2, out.Records)
	assert.Equal(t, 1, out.Files)
	assert.Equal(t, 3, out.Segments)
	assert.Equal(t, out.Chunks, out.Written)
	assert.Empty(t, out.FailedBatches)
	assert.Equal(t, out.Chunks, env.count(t))

	reasons := map[string]string{}
	for _, s := range out.Skipped {
		reasons[s.Filename] = s.Reason
	}
	assert.Equal(t, map[string]string{
		"prec_noid.json": ReasonMissingIdentity,
		"broken.json":    ReasonMalformedInput,
	}, reasons)

	row, err := db.GetChunk(context.Background(), env.store.DB(), config.DefaultCollection, "228541")
	require.NoError(t, err)
	assert.Equal(t, "case", row.Metadata["tag"])
	assert.Contains(t, row.Text, "[부가가치세부과처분취소]")

	byLaw, err := db.CountByMetadata(context.Background(), env.store.DB(), config.DefaultCollection, "law_name")
	require.NoError(t, err)
	assert.Equal(t, 2, byLaw["부가가치세법"])
	assert.Equal(t, 1, byLaw["소득세법"])
}

func TestIngest_Idempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	env.writeRecord(t, "prec_1.json", "1", "가")
	env.writeLocal(t, "tax.txt", []byte(lawText))

	first := env.ingest(t, IngestInput{})
	n := env.count(t)
	second := env.ingest(t, IngestInput{})

	assert.Equal(t, first.Chunks, second.Chunks)
	assert.Equal(t, n, env.count(t))
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestIngest_NoInput(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := Ingest(context.Background(), env.store, env.cfg, discard, IngestInput{})
	require.True(t, errors.Is(err, errors.ErrNoInput), "err = %v", err)

	runs, err := Runs(context.Background(), env.store, RunsInput{})
	require.NoError(t, err)
	require.Len(t, runs.Runs, 1)
	assert.NotNil(t, runs.Runs[0].FinishedAt)
}

func TestIngest_MissingDirectories(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := Ingest(context.Background(), env.store, env.cfg, discard, IngestInput{
		RecordsDir: filepath.Join(env.recordsDir, "nope"),
		LocalDir:   filepath.Join(env.localDir, "nope"),
	})
	assert.True(t, errors.Is(err, errors.ErrNoInput), "err = %v", err)
}

func TestIngest_BothSkipped(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := Ingest(context.Background(), env.store, env.cfg, discard, IngestInput{SkipRecords: true, SkipLocal: true})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestIngest_FailedBatchDoesNotAbort(t *testing.T) {
	flaky := &flakyEmbedder{Embedder: embed.NewHash(64), failOn: map[int]bool{2: true}}
	env := newTestEnv(t, flaky)
	env.cfg.BatchSize = 1
	env.writeRecord(t, "a.json", "1", "가")
	env.writeRecord(t, "b.json", "2", "나")
	env.writeRecord(t, "c.json", "3", "다")

	out := env.ingest(t, IngestInput{SkipLocal: true})

	assert.Equal(t, 3, out.Chunks)
	assert.Equal(t, 2, out.Written)
	require.Len(t, out.FailedBatches, 1)
	assert.Equal(t, 1, out.FailedBatches[0].Batch)
	assert.Contains(t, out.FailedBatches[0].Error, "embedding service unavailable")
	assert.Equal(t, 2, env.count(t))

	// A re-run fills the gap
	out = env.ingest(t, IngestInput{SkipLocal: true})
	assert.Empty(t, out.FailedBatches)
	assert.Equal(t, 3, env.count(t))
}

func TestIngest_CP949(t *testing.T) {
	env := newTestEnv(t, nil)
	encoded, err := korean.EUCKR.NewEncoder().String(lawText)
	require.NoError(t, err)
	env.writeLocal(t, "cp949.txt", []byte(encoded))
	env.writeLocal(t, "utf8.txt", []byte(lawText))

	out := env.ingest(t, IngestInput{SkipRecords: true})
	assert.Equal(t, 2, out.Files)

	a, err := db.GetChunk(context.Background(), env.store.DB(), config.DefaultCollection, "local_cp949.txt_1_9")
	require.NoError(t, err)
	b, err := db.GetChunk(context.Background(), env.store.DB(), config.DefaultCollection, "local_utf8.txt_1_9")
	require.NoError(t, err)
	assert.Equal(t, b.Text, a.Text)
	assert.Equal(t, "부가가치세법", a.Metadata["law_name"])
}

func TestIngest_Reset(t *testing.T) {
	env := newTestEnv(t, nil)
	env.writeRecord(t, "prec_1.json", "1", "가")
	env.writeLocal(t, "tax.txt", []byte(lawText))
	env.ingest(t, IngestInput{})

	out := env.ingest(t, IngestInput{Reset: true, SkipRecords: true})

	assert.Equal(t, out.Chunks, env.count(t))
	_, err := db.GetChunk(context.Background(), env.store.DB(), config.DefaultCollection, "1")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestIngest_ResetMissingCollection(t *testing.T) {
	env := newTestEnv(t, nil)
	env.writeRecord(t, "prec_1.json", "1", "가")

	out := env.ingest(t, IngestInput{Reset: true})
	assert.Equal(t, 1, out.Written)
}

func TestIngest_EmbeddingMismatch(t *testing.T) {
	env := newTestEnv(t, nil)
	env.writeRecord(t, "prec_1.json", "1", "가")
	env.ingest(t, IngestInput{})

	other := vectorstore.New(env.store.DB(), embed.NewHash(32))
	_, err := Ingest(context.Background(), other, env.cfg, discard, IngestInput{})
	assert.True(t, errors.Is(err, errors.ErrEmbeddingMismatch), "err = %v", err)
}

func TestIngest_Cancelled(t *testing.T) {
	env := newTestEnv(t, nil)
	env.writeRecord(t, "prec_1.json", "1", "가")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Ingest(ctx, env.store, env.cfg, discard, IngestInput{})
	assert.True(t, errors.Is(err, errors.ErrCancelled), "err = %v", err)
}

func TestIngest_DuplicateIDsKeepLast(t *testing.T) {
	env := newTestEnv(t, nil)
	env.writeRecord(t, "a.json", "1", "먼저")
	env.writeRecord(t, "b.json", "1", "나중")

	out := env.ingest(t, IngestInput{SkipLocal: true})

	assert.Equal(t, 2, out.Records)
	assert.Equal(t, 1, out.Duplicates)
	assert.Equal(t, 1, env.count(t))
	row, err := db.GetChunk(context.Background(), env.store.DB(), config.DefaultCollection, "1")
	require.NoError(t, err)
	assert.Equal(t, "나중", row.Metadata["case_name"])
}

func TestDedupeChunks(t *testing.T) {
	in := []chunk.Chunk{{ID: "a", Text: "1"}, {ID: "b", Text: "2"}, {ID: "a", Text: "3"}}

	out, dups := dedupeChunks(in)

	assert.Equal(t, 1, dups)
	assert.Equal(t, []chunk.Chunk{{ID: "a", Text: "3"}, {ID: "b", Text: "2"}}, out)
}

package ops

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hpungsan/semu/internal/chunk"
	"github.com/hpungsan/semu/internal/config"
	"github.com/hpungsan/semu/internal/db"
	"github.com/hpungsan/semu/internal/errors"
	"github.com/hpungsan/semu/internal/record"
	"github.com/hpungsan/semu/internal/segment"
	"github.com/hpungsan/semu/internal/source"
	"github.com/hpungsan/semu/internal/vectorstore"
)

// IngestInput contains parameters for the Ingest operation.
type IngestInput struct {
	Collection  string // default: cfg.Collection
	RecordsDir  string // default: cfg.RecordsDir
	LocalDir    string // default: cfg.LocalDir
	SkipRecords bool
	SkipLocal   bool

	// Reset drops the collection before ingesting.
	Reset bool

	// PDF enables *.pdf files in LocalDir when set.
	PDF *source.PDFExtractor
}

// IngestOutput contains the result of the Ingest operation.
type IngestOutput struct {
	RunID         string         `json:"run_id"`
	Collection    string         `json:"collection"`
	Records       int            `json:"records"`
	Files         int            `json:"files"`
	Segments      int            `json:"segments"`
	Chunks        int            `json:"chunks"`
	Duplicates    int            `json:"duplicates"`
	Written       int            `json:"written"`
	FailedBatches []BatchFailure `json:"failed_batches"`
	Skipped       []source.Skip  `json:"skipped"`
}

// Ingest runs one full ingestion pass: load, normalize or segment, chunk, write.
//
// Unparsable files and records without an id are skipped and reported. Zero
// ingestible documents is a NO_INPUT error. Every pass is recorded as a run,
// including failed and cancelled ones.
func Ingest(ctx context.Context, store *vectorstore.Store, cfg *config.Config, logger *slog.Logger, input IngestInput) (*IngestOutput, error) {
	collection, err := resolveCollection(input.Collection, cfg)
	if err != nil {
		return nil, err
	}
	recordsDir := firstNonEmpty(input.RecordsDir, cfg.RecordsDir)
	localDir := firstNonEmpty(input.LocalDir, cfg.LocalDir)
	if input.SkipRecords && input.SkipLocal {
		return nil, errors.NewInvalidRequest("nothing to ingest: both records and local files are skipped")
	}

	if ctx.Err() != nil {
		return nil, errors.NewCancelled("ingest")
	}

	runID, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	run := &db.Run{ID: runID, Collection: collection, StartedAt: time.Now().Unix()}
	if err := db.InsertRun(ctx, store.DB(), run); err != nil {
		return nil, err
	}
	logger = logger.With("run_id", runID, "collection", collection)
	logger.Info("ingest started", "records_dir", recordsDir, "local_dir", localDir)

	out := &IngestOutput{
		RunID:         runID,
		Collection:    collection,
		FailedBatches: []BatchFailure{},
		Skipped:       []source.Skip{},
	}
	finish := func(err error) (*IngestOutput, error) {
		run.Records, run.Files, run.Chunks = out.Records, out.Files, out.Written
		run.FailedBatches, run.Skipped = len(out.FailedBatches), len(out.Skipped)
		if ferr := db.FinishRun(context.WithoutCancel(ctx), store.DB(), run); ferr != nil {
			logger.Error("failed to record run", "error", ferr)
		}
		if err != nil {
			logger.Error("ingest failed", "error", err)
			return out, err
		}
		logger.Info("ingest finished",
			"records", out.Records, "files", out.Files, "chunks", out.Chunks,
			"written", out.Written, "failed_batches", len(out.FailedBatches), "skipped", len(out.Skipped))
		return out, nil
	}

	if input.Reset {
		if err := store.Drop(ctx, collection); err != nil && !errors.Is(err, errors.ErrNotFound) {
			return finish(err)
		}
		logger.Info("collection reset")
	}
	if _, err := store.GetOrCreateCollection(ctx, collection); err != nil {
		return finish(err)
	}

	var loaderOpts []source.LoaderOption
	if input.PDF != nil {
		loaderOpts = append(loaderOpts, source.WithPDF(input.PDF))
	}
	loader := source.NewLoader(logger, loaderOpts...)
	chunker := chunk.New(
		chunk.WithChunkSize(cfg.ChunkSize),
		chunk.WithOverlap(cfg.ChunkOverlap),
		chunk.WithEnrichment(cfg.Enrich()),
	)

	var chunks []chunk.Chunk

	if !input.SkipRecords {
		files, skipped, err := loader.LoadRecords(ctx, recordsDir)
		out.Skipped = append(out.Skipped, skipped...)
		if err != nil {
			return finish(err)
		}
		for _, f := range files {
			r, err := record.Normalize(f.Filename, f.Payload)
			if err != nil {
				reason := ReasonMalformedInput
				if errors.Is(err, errors.ErrMissingIdentity) {
					reason = ReasonMissingIdentity
				}
				logger.Warn("skipping record", "file", f.Filename, "reason", reason, "error", err)
				out.Skipped = append(out.Skipped, source.Skip{Filename: f.Filename, Reason: reason, Message: err.Error()})
				continue
			}
			out.Records++
			chunks = append(chunks, chunker.Record(f.Filename, r, r.Text(cfg.SummaryMaxChars))...)
		}
	}

	if !input.SkipLocal {
		texts, skipped, err := loader.LoadTexts(ctx, localDir)
		out.Skipped = append(out.Skipped, skipped...)
		if err != nil {
			return finish(err)
		}
		segmenter := segment.New(segment.WithMarker(cfg.Marker), segment.WithLookback(cfg.LookbackChars))
		for _, tf := range texts {
			segments := segmenter.Segment(tf.Text)
			out.Files++
			out.Segments += len(segments)
			logger.Debug("segmented file", "file", tf.Filename, "encoding", tf.Encoding, "segments", len(segments))
			chunks = append(chunks, chunker.Segments(tf.Filename, tf.Text, segments)...)
		}
	}

	if out.Records == 0 && out.Files == 0 {
		var dirs []string
		if !input.SkipRecords {
			dirs = append(dirs, recordsDir)
		}
		if !input.SkipLocal {
			dirs = append(dirs, localDir)
		}
		return finish(errors.NewNoInput(dirs...))
	}

	chunks, out.Duplicates = dedupeChunks(chunks)
	if out.Duplicates > 0 {
		logger.Warn("duplicate chunk ids in one pass, last one kept", "duplicates", out.Duplicates)
	}
	out.Chunks = len(chunks)

	written, err := Write(ctx, store, logger, WriteInput{
		Collection: collection,
		Chunks:     chunks,
		BatchSize:  cfg.BatchSize,
	})
	if written != nil {
		out.Written = written.Written
		out.FailedBatches = written.FailedBatches
	}
	return finish(err)
}

// dedupeChunks keeps the last chunk for each id, in first-seen position.
func dedupeChunks(chunks []chunk.Chunk) ([]chunk.Chunk, int) {
	pos := make(map[string]int, len(chunks))
	result := make([]chunk.Chunk, 0, len(chunks))
	dups := 0
	for _, c := range chunks {
		if i, ok := pos[c.ID]; ok {
			result[i] = c
			dups++
			continue
		}
		pos[c.ID] = len(result)
		result = append(result, c)
	}
	return result, dups
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

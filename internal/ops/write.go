package ops

import (
	"context"
	"log/slog"

	"github.com/hpungsan/semu/internal/chunk"
	"github.com/hpungsan/semu/internal/config"
	"github.com/hpungsan/semu/internal/errors"
	"github.com/hpungsan/semu/internal/vectorstore"
)

// WriteInput contains parameters for the Write operation.
type WriteInput struct {
	Collection string
	Chunks     []chunk.Chunk
	BatchSize  int // default: 100, max: 500
}

// BatchFailure describes one batch that could not be written.
type BatchFailure struct {
	Batch int    `json:"batch"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Error string `json:"error"`
}

// WriteOutput contains the result of the Write operation.
type WriteOutput struct {
	Written       int            `json:"written"`
	Batches       int            `json:"batches"`
	FailedBatches []BatchFailure `json:"failed_batches"`
}

// Write upserts chunks into a collection in fixed-size batches.
//
// Each batch is embedded and stored in its own transaction. A failed batch is
// logged and recorded, and the remaining batches still run; a re-run with the
// same chunks fills the gap. Cancellation is checked between batches and
// returns the partial output together with a CANCELLED error.
// The collection must already exist.
func Write(ctx context.Context, store *vectorstore.Store, logger *slog.Logger, input WriteInput) (*WriteOutput, error) {
	size := config.ClampBatchSize(input.BatchSize)
	out := &WriteOutput{FailedBatches: []BatchFailure{}}

	for start, batch := 0, 0; start < len(input.Chunks); start, batch = start+size, batch+1 {
		if err := ctx.Err(); err != nil {
			return out, errors.NewCancelled("write")
		}

		end := min(start+size, len(input.Chunks))
		part := input.Chunks[start:end]

		ids := make([]string, len(part))
		texts := make([]string, len(part))
		metas := make([]map[string]string, len(part))
		for i, c := range part {
			ids[i], texts[i], metas[i] = c.ID, c.Text, c.Metadata
		}

		out.Batches++
		if err := store.Upsert(ctx, input.Collection, ids, texts, metas); err != nil {
			logger.Error("batch write failed", "batch", batch, "start", start, "end", end, "error", err)
			out.FailedBatches = append(out.FailedBatches, BatchFailure{Batch: batch, Start: start, End: end, Error: err.Error()})
			continue
		}
		out.Written += len(part)
		logger.Debug("batch written", "batch", batch, "chunks", len(part))
	}

	return out, nil
}

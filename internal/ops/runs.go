package ops

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/semu/internal/db"
	"github.com/hpungsan/semu/internal/vectorstore"
)

// RunsInput contains parameters for the Runs operation.
type RunsInput struct {
	Collection string // empty lists runs of every collection
	Limit      int    // default: 20, max: 100
}

// RunsOutput contains the result of the Runs operation.
type RunsOutput struct {
	Runs []db.Run `json:"runs"`
}

// Runs lists recent ingestion runs, newest first.
func Runs(ctx context.Context, store *vectorstore.Store, input RunsInput) (*RunsOutput, error) {
	limit := clamp(input.Limit, DefaultRunsLimit, MaxRunsLimit)
	runs, err := db.ListRuns(ctx, store.DB(), input.Collection, limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []db.Run{}
	}
	return &RunsOutput{Runs: runs}, nil
}

// generateULID generates a new run id.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

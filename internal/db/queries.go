package db

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/hpungsan/semu/internal/errors"
)

// Collection is a named set of chunks embedded with one embedder.
type Collection struct {
	Name      string `json:"name"`
	Embedder  string `json:"embedder"`
	Dimension int    `json:"dimension"`
	CreatedAt int64  `json:"created_at"`
}

// ChunkRow is a stored chunk with its embedding.
type ChunkRow struct {
	ID        string
	Text      string
	Metadata  map[string]string
	Embedding []float32
}

// Run records one ingestion pass.
type Run struct {
	ID            string `json:"id"`
	Collection    string `json:"collection"`
	StartedAt     int64  `json:"started_at"`
	FinishedAt    *int64 `json:"finished_at,omitempty"`
	Records       int    `json:"records"`
	Files         int    `json:"files"`
	Chunks        int    `json:"chunks"`
	FailedBatches int    `json:"failed_batches"`
	Skipped       int    `json:"skipped"`
}

// GetCollection retrieves a collection by name.
// Returns NOT_FOUND if the collection does not exist.
func GetCollection(ctx context.Context, db *sql.DB, name string) (*Collection, error) {
	row := db.QueryRowContext(ctx, `
		SELECT name, embedder, dimension, created_at
		FROM collections
		WHERE name = ?
	`, name)

	var c Collection
	err := row.Scan(&c.Name, &c.Embedder, &c.Dimension, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(name)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &c, nil
}

// CreateCollection inserts a collection. An existing collection with the same
// name is left untouched.
func CreateCollection(ctx context.Context, db *sql.DB, c *Collection) error {
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().Unix()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO collections (name, embedder, dimension, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, c.Name, c.Embedder, c.Dimension, c.CreatedAt)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// DeleteCollection removes a collection and all of its chunks.
func DeleteCollection(ctx context.Context, db *sql.DB, name string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ?`, name); err != nil {
		return errors.NewInternal(err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound(name)
	}
	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// UpsertChunks writes rows into a collection in one transaction.
// A row whose id already exists is fully replaced.
func UpsertChunks(ctx context.Context, db *sql.DB, collection string, rows []ChunkRow) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (collection, id, text, metadata_json, embedding, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			text = excluded.text,
			metadata_json = excluded.metadata_json,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, r := range rows {
		metadataJSON, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, collection, r.ID, r.Text,
			string(metadataJSON), EncodeVector(r.Embedding), now); err != nil {
			return fmt.Errorf("saving chunk %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// CountChunks returns the number of chunks in a collection.
func CountChunks(ctx context.Context, db *sql.DB, collection string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// GetChunk retrieves one chunk by id.
func GetChunk(ctx context.Context, db *sql.DB, collection, id string) (*ChunkRow, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, text, metadata_json, embedding
		FROM chunks
		WHERE collection = ? AND id = ?
	`, collection, id)

	var (
		r        ChunkRow
		metaJSON string
		blob     []byte
	)
	err := row.Scan(&r.ID, &r.Text, &metaJSON, &blob)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &r.Metadata); err != nil {
		return nil, errors.NewInternal(err)
	}
	r.Embedding = DecodeVector(blob)
	return &r, nil
}

// ScanChunks streams every chunk of a collection to fn in id order.
// Iteration stops at the first error returned by fn.
func ScanChunks(ctx context.Context, db *sql.DB, collection string, fn func(ChunkRow) error) error {
	rows, err := db.QueryContext(ctx, `
		SELECT id, text, metadata_json, embedding
		FROM chunks
		WHERE collection = ?
		ORDER BY id
	`, collection)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r        ChunkRow
			metaJSON string
			blob     []byte
		)
		if err := rows.Scan(&r.ID, &r.Text, &metaJSON, &blob); err != nil {
			return errors.NewInternal(err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &r.Metadata); err != nil {
			return errors.NewInternal(err)
		}
		r.Embedding = DecodeVector(blob)
		if err := fn(r); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// CountByMetadata groups the chunks of a collection by one metadata key.
// Chunks without the key are counted under the empty string.
func CountByMetadata(ctx context.Context, db *sql.DB, collection, key string) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT COALESCE(json_extract(metadata_json, ?), ''), COUNT(*)
		FROM chunks
		WHERE collection = ?
		GROUP BY 1
	`, "$."+key, collection)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			value string
			n     int
		)
		if err := rows.Scan(&value, &n); err != nil {
			return nil, errors.NewInternal(err)
		}
		counts[value] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return counts, nil
}

// InsertRun stores a new ingest run.
func InsertRun(ctx context.Context, db *sql.DB, r *Run) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO ingest_runs (id, collection, started_at, finished_at,
			records, files, chunks, failed_batches, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Collection, r.StartedAt, toNullInt64(r.FinishedAt),
		r.Records, r.Files, r.Chunks, r.FailedBatches, r.Skipped)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// FinishRun stores the final counters of a run and stamps finished_at.
func FinishRun(ctx context.Context, db *sql.DB, r *Run) error {
	now := time.Now().Unix()
	result, err := db.ExecContext(ctx, `
		UPDATE ingest_runs
		SET finished_at = ?, records = ?, files = ?, chunks = ?,
			failed_batches = ?, skipped = ?
		WHERE id = ?
	`, now, r.Records, r.Files, r.Chunks, r.FailedBatches, r.Skipped, r.ID)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound(r.ID)
	}
	r.FinishedAt = &now
	return nil
}

// ListRuns returns the most recent runs, newest first.
// An empty collection lists runs of every collection.
func ListRuns(ctx context.Context, db *sql.DB, collection string, limit int) ([]Run, error) {
	query := `
		SELECT id, collection, started_at, finished_at,
			records, files, chunks, failed_batches, skipped
		FROM ingest_runs
	`
	args := []any{}
	if collection != "" {
		query += " WHERE collection = ?"
		args = append(args, collection)
	}
	// ULIDs sort by creation time within the same second
	query += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			r        Run
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Collection, &r.StartedAt, &finished,
			&r.Records, &r.Files, &r.Chunks, &r.FailedBatches, &r.Skipped); err != nil {
			return nil, errors.NewInternal(err)
		}
		if finished.Valid {
			r.FinishedAt = &finished.Int64
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return runs, nil
}

// EncodeVector converts a []float32 to a little-endian byte slice for storage.
func EncodeVector(v []float32) []byte {
	if len(v) == 0 {
		return []byte{}
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector converts a stored byte slice back to []float32.
func DecodeVector(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v
}

// toNullInt64 converts a *int64 to sql.NullInt64.
func toNullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

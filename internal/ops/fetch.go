package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hpungsan/semu/internal/config"
	"github.com/hpungsan/semu/internal/errors"
	"github.com/hpungsan/semu/internal/lawapi"
	"github.com/hpungsan/semu/internal/record"
)

// maxTitleChars caps the title part of a fetched filename.
const maxTitleChars = 60

// LawClient is the part of the law API the Fetch operation needs.
type LawClient interface {
	Search(ctx context.Context, target, query string, page int) ([]map[string]any, error)
	Detail(ctx context.Context, target, id string) (map[string]any, error)
}

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	RecordsDir string   // default: cfg.RecordsDir
	Targets    []string // default: cfg.LawAPI.Targets
	Keywords   []string // default: cfg.LawAPI.Keywords
	PerKeyword int      // default: cfg.LawAPI.PerKeyword
}

// FetchedFile describes one saved record file.
type FetchedFile struct {
	Target   string `json:"target"`
	Keyword  string `json:"keyword"`
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

// FetchFailure describes one request that failed and was skipped.
type FetchFailure struct {
	Target  string `json:"target"`
	Keyword string `json:"keyword"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error"`
}

// FetchOutput contains the result of the Fetch operation.
type FetchOutput struct {
	RecordsDir string         `json:"records_dir"`
	Saved      []FetchedFile  `json:"saved"`
	Failed     []FetchFailure `json:"failed"`
}

// Fetch downloads the top documents for every (target, keyword) pair and
// writes each as "{target}_{id}_{title}.json" into the records directory.
//
// A failing search or detail request is logged and skipped. When nothing was
// saved and at least one request failed, the last failure is returned as
// UPSTREAM.
func Fetch(ctx context.Context, client LawClient, cfg *config.Config, logger *slog.Logger, input FetchInput) (*FetchOutput, error) {
	dir := firstNonEmpty(input.RecordsDir, cfg.RecordsDir)
	targets := input.Targets
	if len(targets) == 0 {
		targets = cfg.LawAPI.Targets
	}
	keywords := input.Keywords
	if len(keywords) == 0 {
		keywords = cfg.LawAPI.Keywords
	}
	perKeyword := input.PerKeyword
	if perKeyword <= 0 {
		perKeyword = cfg.LawAPI.PerKeyword
	}
	if len(targets) == 0 || len(keywords) == 0 || perKeyword <= 0 {
		return nil, errors.NewInvalidRequest("fetch needs at least one target, one keyword and a positive per-keyword count")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("creating records dir: %w", err))
	}

	out := &FetchOutput{RecordsDir: dir, Saved: []FetchedFile{}, Failed: []FetchFailure{}}
	var lastErr error
	var lastTarget string
	fail := func(target, keyword, id string, err error) {
		logger.Warn("fetch failed", "target", target, "keyword", keyword, "id", id, "error", err)
		out.Failed = append(out.Failed, FetchFailure{Target: target, Keyword: keyword, ID: id, Error: err.Error()})
		lastErr, lastTarget = err, target
	}

	for _, target := range targets {
		for _, keyword := range keywords {
			if ctx.Err() != nil {
				return out, errors.NewCancelled("fetch")
			}

			items, err := client.Search(ctx, target, keyword, 1)
			if err != nil {
				if ctx.Err() != nil {
					return out, errors.NewCancelled("fetch")
				}
				fail(target, keyword, "", err)
				continue
			}
			logger.Info("search results", "target", target, "keyword", keyword, "items", len(items))

			saved := 0
			for _, item := range items {
				if saved >= perKeyword {
					break
				}
				id := lawapi.ItemID(item)
				if id == "" {
					continue
				}

				doc, err := client.Detail(ctx, target, id)
				if err != nil {
					if ctx.Err() != nil {
						return out, errors.NewCancelled("fetch")
					}
					fail(target, keyword, id, err)
					continue
				}

				name, err := saveRecord(dir, target, id, doc)
				if err != nil {
					fail(target, keyword, id, err)
					continue
				}
				saved++
				logger.Info("saved record", "file", name)
				out.Saved = append(out.Saved, FetchedFile{Target: target, Keyword: keyword, ID: id, Filename: name})
			}
		}
	}

	if len(out.Saved) == 0 && lastErr != nil {
		return out, errors.NewUpstream(lastTarget, lastErr)
	}
	return out, nil
}

// RecordFilename names a fetched document. The id and title are taken from
// the normalized document when it can be read, falling back to the search id.
func RecordFilename(target, searchID string, doc map[string]any) string {
	id, title := searchID, "unknown_title"
	if r, err := record.Normalize("", doc); err == nil {
		id = r.ID
		if r.Title != "" {
			title = record.Truncate(r.Title, maxTitleChars)
		}
	}
	return SanitizeForFilename(fmt.Sprintf("%s_%s_%s", target, id, title)) + ".json"
}

func saveRecord(dir, target, id string, doc map[string]any) (string, error) {
	name := RecordFilename(target, id, doc)
	path := filepath.Join(dir, name)
	if err := ValidatePath(path, PathCheckWrite); err != nil {
		return "", err
	}

	f, err := openFileNoFollow(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return "", err
	}
	return name, f.Close()
}

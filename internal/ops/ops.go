package ops

import (
	"strings"

	"github.com/hpungsan/semu/internal/config"
	"github.com/hpungsan/semu/internal/errors"
)

// Result limits
const (
	DefaultQueryK    = 5
	MaxQueryK        = 50
	DefaultScanLimit = 50
	MaxScanLimit     = 500
	DefaultRunsLimit = 20
	MaxRunsLimit     = 100
)

// Skip reasons reported by ingestion.
const (
	ReasonMalformedInput  = "malformed_input"
	ReasonMissingIdentity = "missing_identity"
)

// Empty-result reasons reported by Query.
const (
	EmptyCollectionNotFound = "collection_not_found"
	EmptyNoVectors          = "no_vectors"
)

// clamp applies a default for n <= 0 and caps n at maximum.
func clamp(n, def, maximum int) int {
	if n <= 0 {
		return def
	}
	return min(n, maximum)
}

// resolveCollection returns the trimmed collection name, falling back to the config.
func resolveCollection(name string, cfg *config.Config) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" && cfg != nil {
		name = cfg.Collection
	}
	if name == "" {
		name = config.DefaultCollection
	}
	if strings.ContainsAny(name, "\x00\n\r") {
		return "", errors.NewInvalidRequest("collection name must not contain control characters")
	}
	return name, nil
}

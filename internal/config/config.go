package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Defaults for the ingestion pipeline.
const (
	DefaultCollection      = "tax_laws"
	DefaultChunkSize       = 1000
	DefaultChunkOverlap    = 200
	DefaultBatchSize       = 100
	MaxBatchSize           = 500
	DefaultSummaryMaxChars = 1500
	DefaultMarker          = "제1조(목적)"
	DefaultLookbackChars   = 200
	DefaultRecordsDir      = "data/precedents"
	DefaultLocalDir        = "tax db"
)

// EmbedderConfig selects the embedding backend.
// The same backend must be used for ingestion and queries of a collection.
type EmbedderConfig struct {
	// Type is "hash" (local, deterministic) or "openai".
	Type string `json:"type,omitempty"`

	// Model is the remote embedding model (openai only).
	Model string `json:"model,omitempty"`

	// Dimension is the vector size for the hash embedder.
	Dimension int `json:"dimension,omitempty"`

	// BaseURL overrides the OpenAI-compatible endpoint.
	BaseURL string `json:"base_url,omitempty"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `json:"api_key_env,omitempty"`
}

// LawAPIConfig configures the law.go.kr DRF client used by fetch.
type LawAPIConfig struct {
	BaseURL string `json:"base_url,omitempty"`

	// UserIDEnv names the environment variables checked (in order) for the OC parameter.
	UserIDEnv []string `json:"user_id_env,omitempty"`

	// Targets are DRF target codes: prec, expc, adjud, hunjae.
	Targets []string `json:"targets,omitempty"`

	// Keywords are the search queries issued per target.
	Keywords []string `json:"keywords,omitempty"`

	// PerKeyword caps how many detail records are saved per (target, keyword).
	PerKeyword int `json:"per_keyword,omitempty"`

	// RequestsPerSecond paces calls to the API.
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`

	TimeoutSecs int `json:"timeout_secs,omitempty"`
}

// Config holds application configuration.
type Config struct {
	// Collection is the vector store collection to ingest into and query.
	Collection string `json:"collection,omitempty"`

	// ChunkSize is the chunk window in characters.
	ChunkSize int `json:"chunk_size,omitempty"`

	// ChunkOverlap is the number of characters shared by consecutive chunks.
	ChunkOverlap int `json:"chunk_overlap,omitempty"`

	// BatchSize is the number of chunks per upsert call (max 500).
	BatchSize int `json:"batch_size,omitempty"`

	// SummaryMaxChars truncates record content before chunking.
	SummaryMaxChars int `json:"summary_max_chars,omitempty"`

	// Marker is the opening-article boilerplate that starts each statute.
	Marker string `json:"marker,omitempty"`

	// LookbackChars is the window before a marker searched for the law name.
	LookbackChars int `json:"lookback_chars,omitempty"`

	// EnrichChunks prefixes chunk text with "[name]\n". nil means enabled.
	EnrichChunks *bool `json:"enrich_chunks,omitempty"`

	// RecordsDir holds JSON case records saved by fetch.
	RecordsDir string `json:"records_dir,omitempty"`

	// LocalDir holds local law text (and PDF) files.
	LocalDir string `json:"local_dir,omitempty"`

	Embedder EmbedderConfig `json:"embedder"`
	LawAPI   LawAPIConfig   `json:"law_api"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Collection:      DefaultCollection,
		ChunkSize:       DefaultChunkSize,
		ChunkOverlap:    DefaultChunkOverlap,
		BatchSize:       DefaultBatchSize,
		SummaryMaxChars: DefaultSummaryMaxChars,
		Marker:          DefaultMarker,
		LookbackChars:   DefaultLookbackChars,
		RecordsDir:      DefaultRecordsDir,
		LocalDir:        DefaultLocalDir,
		Embedder: EmbedderConfig{
			Type:      "hash",
			Dimension: 384,
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		LawAPI: LawAPIConfig{
			BaseURL:           "https://www.law.go.kr/DRF",
			UserIDEnv:         []string{"LAW_API_USER_ID", "LAW_API_KEY"},
			Targets:           []string{"prec", "expc", "adjud", "hunjae"},
			Keywords:          []string{"법인세", "소득세", "부가가치세"},
			PerKeyword:        5,
			RequestsPerSecond: 5,
			TimeoutSecs:       30,
		},
	}
}

// Enrich reports whether chunk text gets the "[name]" prefix.
func (c *Config) Enrich() bool {
	return c.EnrichChunks == nil || *c.EnrichChunks
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.semu.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.semu) and repo (.semu) directories.
// Repo config is found by walking upward from startDir to find the nearest .semu/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .semu/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".semu", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; the disabled tool list is merged
// and deduplicated. API targets and keywords are replaced, not merged, so a
// repo config can narrow a fetch.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		Collection:      pickString(overlay.Collection, base.Collection),
		ChunkSize:       pickInt(overlay.ChunkSize, base.ChunkSize),
		ChunkOverlap:    pickInt(overlay.ChunkOverlap, base.ChunkOverlap),
		BatchSize:       pickInt(overlay.BatchSize, base.BatchSize),
		SummaryMaxChars: pickInt(overlay.SummaryMaxChars, base.SummaryMaxChars),
		Marker:          pickString(overlay.Marker, base.Marker),
		LookbackChars:   pickInt(overlay.LookbackChars, base.LookbackChars),
		RecordsDir:      pickString(overlay.RecordsDir, base.RecordsDir),
		LocalDir:        pickString(overlay.LocalDir, base.LocalDir),
		DBMaxOpenConns:  pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:  pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
	}

	result.EnrichChunks = base.EnrichChunks
	if overlay.EnrichChunks != nil {
		result.EnrichChunks = overlay.EnrichChunks
	}

	result.Embedder = EmbedderConfig{
		Type:      pickString(overlay.Embedder.Type, base.Embedder.Type),
		Model:     pickString(overlay.Embedder.Model, base.Embedder.Model),
		Dimension: pickInt(overlay.Embedder.Dimension, base.Embedder.Dimension),
		BaseURL:   pickString(overlay.Embedder.BaseURL, base.Embedder.BaseURL),
		APIKeyEnv: pickString(overlay.Embedder.APIKeyEnv, base.Embedder.APIKeyEnv),
	}

	result.LawAPI = LawAPIConfig{
		BaseURL:     pickString(overlay.LawAPI.BaseURL, base.LawAPI.BaseURL),
		UserIDEnv:   pickSlice(overlay.LawAPI.UserIDEnv, base.LawAPI.UserIDEnv),
		Targets:     pickSlice(overlay.LawAPI.Targets, base.LawAPI.Targets),
		Keywords:    pickSlice(overlay.LawAPI.Keywords, base.LawAPI.Keywords),
		PerKeyword:  pickInt(overlay.LawAPI.PerKeyword, base.LawAPI.PerKeyword),
		TimeoutSecs: pickInt(overlay.LawAPI.TimeoutSecs, base.LawAPI.TimeoutSecs),
	}
	result.LawAPI.RequestsPerSecond = overlay.LawAPI.RequestsPerSecond
	if result.LawAPI.RequestsPerSecond == 0 {
		result.LawAPI.RequestsPerSecond = base.LawAPI.RequestsPerSecond
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// ClampBatchSize bounds a batch size to [1, MaxBatchSize].
func ClampBatchSize(n int) int {
	if n <= 0 {
		return DefaultBatchSize
	}
	return min(n, MaxBatchSize)
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickSlice(overlay, base []string) []string {
	if cleaned := mergeStringSlice(nil, overlay); len(cleaned) > 0 {
		return cleaned
	}
	return mergeStringSlice(nil, base)
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

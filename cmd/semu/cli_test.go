package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/semu/internal/config"
	"github.com/hpungsan/semu/internal/db"
	"github.com/hpungsan/semu/internal/embed"
	"github.com/hpungsan/semu/internal/ops"
	"github.com/hpungsan/semu/internal/vectorstore"
)

const testLawText = "「법인세법」\n제1조(목적) 이 법은 법인세의 과세 요건과 절차를 규정한다.\n"

// setupTestStore creates a temporary store and config with source dirs.
func setupTestStore(t *testing.T) (*vectorstore.Store, *config.Config, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.RecordsDir = filepath.Join(tmpDir, "records")
	cfg.LocalDir = filepath.Join(tmpDir, "local")
	for _, dir := range []string{cfg.RecordsDir, cfg.LocalDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(cfg.LocalDir, "corp.txt"), []byte(testLawText), 0o644); err != nil {
		t.Fatal(err)
	}

	cleanup := func() {
		database.Close()
	}
	return vectorstore.New(database, embed.NewHash(32)), cfg, cleanup
}

// runCLI runs the app with args and returns what it wrote to stdout.
func runCLI(t *testing.T, store *vectorstore.Store, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(store, cfg, nil)

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := app.Run(append([]string{"semu"}, args...))

	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	os.Stdout = oldStdout

	return buf.String(), err
}

func TestCLIIngestAndQuery(t *testing.T) {
	store, cfg, cleanup := setupTestStore(t)
	defer cleanup()

	out, err := runCLI(t, store, cfg, "ingest")
	if err != nil {
		t.Fatalf("ingest command failed: %v", err)
	}
	var ingest ops.IngestOutput
	if err := json.Unmarshal([]byte(out), &ingest); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if ingest.Files != 1 || ingest.Written == 0 {
		t.Errorf("ingest = %+v, want 1 file and written chunks", ingest)
	}

	out, err = runCLI(t, store, cfg, "query", "--k=1", "법인세", "과세")
	if err != nil {
		t.Fatalf("query command failed: %v", err)
	}
	var query ops.QueryOutput
	if err := json.Unmarshal([]byte(out), &query); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if query.Query != "법인세 과세" {
		t.Errorf("query = %q, want joined args", query.Query)
	}
	if len(query.Results) != 1 {
		t.Errorf("results = %d, want 1", len(query.Results))
	}
}

func TestCLIQueryFormats(t *testing.T) {
	store, cfg, cleanup := setupTestStore(t)
	defer cleanup()
	if _, err := runCLI(t, store, cfg, "ingest", "--skip-records"); err != nil {
		t.Fatalf("ingest command failed: %v", err)
	}

	md, err := runCLI(t, store, cfg, "query", "--format=markdown", "법인세")
	if err != nil {
		t.Fatalf("query markdown failed: %v", err)
	}
	if !strings.HasPrefix(md, "# 검색 결과: 법인세") {
		t.Errorf("markdown output = %q", md)
	}

	html, err := runCLI(t, store, cfg, "query", "-f", "html", "법인세")
	if err != nil {
		t.Fatalf("query html failed: %v", err)
	}
	if !strings.Contains(html, "<h1>") {
		t.Errorf("html output = %q", html)
	}

	if _, err := runCLI(t, store, cfg, "query", "--format=xml", "법인세"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestCLIStatsAndRuns(t *testing.T) {
	store, cfg, cleanup := setupTestStore(t)
	defer cleanup()
	if _, err := runCLI(t, store, cfg, "ingest"); err != nil {
		t.Fatalf("ingest command failed: %v", err)
	}

	out, err := runCLI(t, store, cfg, "stats")
	if err != nil {
		t.Fatalf("stats command failed: %v", err)
	}
	var stats ops.StatsOutput
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if stats.Total == 0 || stats.ByLawName["법인세법"] == 0 {
		t.Errorf("stats = %+v", stats)
	}

	out, err = runCLI(t, store, cfg, "runs", "--limit=5")
	if err != nil {
		t.Fatalf("runs command failed: %v", err)
	}
	var runs ops.RunsOutput
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if len(runs.Runs) != 1 {
		t.Errorf("runs = %d, want 1", len(runs.Runs))
	}
}

func TestCLIScan(t *testing.T) {
	store, cfg, cleanup := setupTestStore(t)
	defer cleanup()

	out, err := runCLI(t, store, cfg, "scan", filepath.Join(cfg.LocalDir, "corp.txt"))
	if err != nil {
		t.Fatalf("scan command failed: %v", err)
	}
	var scan ops.ScanOutput
	if err := json.Unmarshal([]byte(out), &scan); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if scan.Total != 1 || scan.Occurrences[0].LawName != "법인세법" {
		t.Errorf("scan = %+v", scan)
	}
}

func TestCLIErrorHandling(t *testing.T) {
	store, cfg, cleanup := setupTestStore(t)
	defer cleanup()

	t.Run("query without text returns error", func(t *testing.T) {
		if _, err := runCLI(t, store, cfg, "query"); err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("ingest with nothing to ingest returns error", func(t *testing.T) {
		_, err := runCLI(t, store, cfg, "ingest", "--skip-local")
		if err == nil || !strings.Contains(err.Error(), "[NO_INPUT]") {
			t.Errorf("expected NO_INPUT error, got %v", err)
		}
	})

	t.Run("scan without path returns error", func(t *testing.T) {
		if _, err := runCLI(t, store, cfg, "scan"); err == nil {
			t.Error("expected error, got nil")
		}
	})
}

// TestIsCLIMode tests the isCLIMode function.
func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"semu"}, expected: false},
		{name: "ingest command", args: []string{"semu", "ingest"}, expected: true},
		{name: "query command", args: []string{"semu", "query", "법인세"}, expected: true},
		{name: "global flags then command", args: []string{"semu", "--home", "/tmp/x", "--verbose", "stats"}, expected: true},
		{name: "only global flags", args: []string{"semu", "--home=/tmp/x"}, expected: false},
		{name: "help flag", args: []string{"semu", "--help"}, expected: true},
		{name: "version flag", args: []string{"semu", "-v"}, expected: true},
		{name: "unknown command", args: []string{"semu", "serve"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isCLIMode(tt.args); got != tt.expected {
				t.Errorf("isCLIMode(%v) = %v, want %v", tt.args, got, tt.expected)
			}
		})
	}
}

// TestIsHelpOrVersion tests the isHelpOrVersion function.
func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		args     []string
		expected bool
	}{
		{[]string{"semu"}, false},
		{[]string{"semu", "help"}, true},
		{[]string{"semu", "-h"}, true},
		{[]string{"semu", "--version"}, true},
		{[]string{"semu", "ingest", "--help"}, false},
	}

	for _, tt := range tests {
		if got := isHelpOrVersion(tt.args); got != tt.expected {
			t.Errorf("isHelpOrVersion(%v) = %v, want %v", tt.args, got, tt.expected)
		}
	}
}

func TestGlobalFlags(t *testing.T) {
	tests := []struct {
		args        []string
		wantHome    string
		wantVerbose bool
	}{
		{[]string{"semu"}, "", false},
		{[]string{"semu", "--home", "/data/semu", "ingest"}, "/data/semu", false},
		{[]string{"semu", "--home=/data/semu", "-V", "query", "x"}, "/data/semu", true},
		{[]string{"semu", "query", "--verbose"}, "", false},
	}

	for _, tt := range tests {
		home, verbose := globalFlags(tt.args)
		if home != tt.wantHome || verbose != tt.wantVerbose {
			t.Errorf("globalFlags(%v) = (%q, %v), want (%q, %v)", tt.args, home, verbose, tt.wantHome, tt.wantVerbose)
		}
	}
}

func TestResolveBaseDir(t *testing.T) {
	t.Setenv("SEMU_HOME", "/env/semu")

	if got, _ := resolveBaseDir("/flag/semu"); got != "/flag/semu" {
		t.Errorf("resolveBaseDir(flag) = %q", got)
	}
	if got, _ := resolveBaseDir(""); got != "/env/semu" {
		t.Errorf("resolveBaseDir(env) = %q", got)
	}

	t.Setenv("SEMU_HOME", "")
	got, err := resolveBaseDir("")
	if err != nil {
		t.Fatalf("resolveBaseDir failed: %v", err)
	}
	if filepath.Base(got) != ".semu" {
		t.Errorf("resolveBaseDir(default) = %q, want ~/.semu", got)
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hpungsan/semu/internal/config"
	"github.com/hpungsan/semu/internal/db"
	"github.com/hpungsan/semu/internal/embed"
	"github.com/hpungsan/semu/internal/mcp"
	"github.com/hpungsan/semu/internal/vectorstore"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"ingest": true, "query": true, "stats": true,
	"scan": true, "fetch": true, "runs": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	cmd := firstCommand(args)
	if cmd == "" {
		return false // No command → MCP server
	}
	if cliCommands[cmd] {
		return true
	}
	return cmd == "--help" || cmd == "-h" || cmd == "--version" || cmd == "-v"
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	cmd := firstCommand(args)
	return cmd == "--help" || cmd == "-h" || cmd == "--version" || cmd == "-v" || cmd == "help"
}

// firstCommand returns the first argument that is not a global flag.
func firstCommand(args []string) string {
	for i := 1; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--home":
			i++
		case strings.HasPrefix(a, "--home="), a == "--verbose", a == "-V":
		default:
			return a
		}
	}
	return ""
}

// globalFlags extracts --home and --verbose ahead of the CLI parser; the
// database and logger exist before any command runs.
func globalFlags(args []string) (home string, verbose bool) {
	for i := 1; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--home" && i+1 < len(args):
			home = args[i+1]
			i++
		case strings.HasPrefix(a, "--home="):
			home = strings.TrimPrefix(a, "--home=")
		case a == "--verbose" || a == "-V":
			verbose = true
		case !strings.HasPrefix(a, "-"):
			return home, verbose
		}
	}
	return home, verbose
}

// resolveBaseDir picks the data directory: --home, then SEMU_HOME, then ~/.semu.
func resolveBaseDir(home string) (string, error) {
	if home != "" {
		return home, nil
	}
	if env := os.Getenv("SEMU_HOME"); env != "" {
		return env, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".semu"), nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___  ___ _ __ ___  _   _
  / __|/ _ \ '_ \ _ \| | | |
  \__ \  __/ | | | | | |_| |
  |___/\___|_| |_| |_|\__,_|

  Korean tax law retrieval index

  Usage: semu <command> [options]
         semu --help

  MCP server mode requires piped input.`)
}

func main() {
	args := os.Args

	// No command + interactive terminal → show banner and exit
	if firstCommand(args) == "" && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion(args) {
		app := newCLIApp(nil, nil, nil)
		if err := app.Run(args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Secrets such as LAW_API_USER_ID and OPENAI_API_KEY may live in .env
	_ = godotenv.Load()

	home, verbose := globalFlags(args)
	logger := newLogger(verbose)

	baseDir, err := resolveBaseDir(home)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine working directory: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("unknown tools in disabled_tools", "tools", unknown)
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	embedder, err := embed.New(cfg.Embedder)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to create embedder: %v\n", err)
		os.Exit(1)
	}
	store := vectorstore.New(database, embedder)
	logger.Debug("store ready", "base_dir", baseDir, "embedder", embedder.Name(), "dimension", embedder.Dimension())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// CLI mode: known subcommand
	if isCLIMode(args) {
		app := newCLIApp(store, cfg, logger)
		if err := app.RunContext(ctx, args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			stop()
			database.Close()
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if cmd := firstCommand(args); cmd != "" && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", cmd)
		fmt.Fprintf(os.Stderr, "Run 'semu --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(store, cfg, logger, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

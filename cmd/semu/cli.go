package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/semu/internal/config"
	"github.com/hpungsan/semu/internal/errors"
	"github.com/hpungsan/semu/internal/lawapi"
	"github.com/hpungsan/semu/internal/ops"
	"github.com/hpungsan/semu/internal/report"
	"github.com/hpungsan/semu/internal/source"
	"github.com/hpungsan/semu/internal/vectorstore"
)

// Output formats of the query command.
const (
	formatJSON     = "json"
	formatMarkdown = "markdown"
	formatHTML     = "html"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(store *vectorstore.Store, cfg *config.Config, logger *slog.Logger) *cli.App {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	app := &cli.App{
		Name:    "semu",
		Usage:   "Korean tax law retrieval index",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "home", Usage: "Data directory (default ~/.semu)", EnvVars: []string{"SEMU_HOME"}},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"V"}, Usage: "Debug logging on stderr"},
		},
		Commands: []*cli.Command{
			ingestCmd(store, cfg, logger),
			queryCmd(store, cfg, logger),
			statsCmd(store, cfg),
			scanCmd(cfg),
			fetchCmd(cfg, logger),
			runsCmd(store),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// ingestCmd creates the ingest command.
func ingestCmd(store *vectorstore.Store, cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Build or refresh the index from case records and local law texts",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "collection", Aliases: []string{"c"}, Usage: "Collection name (default from config)"},
			&cli.StringFlag{Name: "records-dir", Usage: "Directory of fetched *.json records"},
			&cli.StringFlag{Name: "local-dir", Usage: "Directory of *.txt (and *.pdf) law texts"},
			&cli.BoolFlag{Name: "reset", Usage: "Drop the collection first"},
			&cli.BoolFlag{Name: "skip-records", Usage: "Do not ingest records"},
			&cli.BoolFlag{Name: "skip-local", Usage: "Do not ingest local law texts"},
			&cli.BoolFlag{Name: "pdf", Usage: "Also extract *.pdf files with pdftotext"},
		},
		Action: func(c *cli.Context) error {
			input := ops.IngestInput{
				Collection:  c.String("collection"),
				RecordsDir:  c.String("records-dir"),
				LocalDir:    c.String("local-dir"),
				Reset:       c.Bool("reset"),
				SkipRecords: c.Bool("skip-records"),
				SkipLocal:   c.Bool("skip-local"),
			}
			if c.Bool("pdf") {
				pdf, err := pdfExtractor()
				if err != nil {
					return outputError(err)
				}
				input.PDF = pdf
			}

			output, err := ops.Ingest(c.Context, store, cfg, logger, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// queryCmd creates the query command.
func queryCmd(store *vectorstore.Store, cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Search the index",
		ArgsUsage: "<text>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "collection", Aliases: []string{"c"}, Usage: "Collection name (default from config)"},
			&cli.IntFlag{Name: "k", Value: ops.DefaultQueryK, Usage: "Number of results (max 50)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: formatJSON, Usage: "Output format: json|markdown|html"},
		},
		Action: func(c *cli.Context) error {
			format := c.String("format")
			if format != formatJSON && format != formatMarkdown && format != formatHTML {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("unknown format %q (json|markdown|html)", format)))
			}

			output, err := ops.Query(c.Context, store, cfg, logger, ops.QueryInput{
				Collection: c.String("collection"),
				Query:      strings.Join(c.Args().Slice(), " "),
				K:          c.Int("k"),
			})
			if err != nil {
				return outputError(err)
			}

			switch format {
			case formatMarkdown:
				_, err = fmt.Fprint(os.Stdout, report.Markdown(output))
				return err
			case formatHTML:
				html, err := report.HTML(output)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				_, err = fmt.Fprint(os.Stdout, html)
				return err
			}
			return outputJSON(output)
		},
	}
}

// statsCmd creates the stats command.
func statsCmd(store *vectorstore.Store, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Summarize a collection",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "collection", Aliases: []string{"c"}, Usage: "Collection name (default from config)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Stats(c.Context, store, cfg, ops.StatsInput{Collection: c.String("collection")})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// scanCmd creates the scan command.
func scanCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "List statute markers in a text file with their resolved law names",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultScanLimit, Usage: "Maximum occurrences (max 500)"},
			&cli.BoolFlag{Name: "pdf", Usage: "Allow *.pdf files through pdftotext"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("path is required"))
			}
			input := ops.ScanInput{Path: c.Args().First(), Limit: c.Int("limit")}
			if c.Bool("pdf") {
				pdf, err := pdfExtractor()
				if err != nil {
					return outputError(err)
				}
				input.PDF = pdf
			}

			output, err := ops.Scan(c.Context, cfg, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// fetchCmd creates the fetch command.
func fetchCmd(cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Download case records from the law.go.kr open API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "records-dir", Usage: "Output directory (default from config)"},
			&cli.StringSliceFlag{Name: "target", Aliases: []string{"t"}, Usage: "Targets: prec, expc, adjud, hunjae (repeatable)"},
			&cli.StringSliceFlag{Name: "keyword", Aliases: []string{"k"}, Usage: "Search keywords (repeatable)"},
			&cli.IntFlag{Name: "per-keyword", Aliases: []string{"n"}, Usage: "Documents per target and keyword"},
		},
		Action: func(c *cli.Context) error {
			client := lawapi.New(cfg.LawAPI)
			if client.UserID() == "" {
				logger.Warn("law API user id is not set; requests may be rejected", "env", cfg.LawAPI.UserIDEnv)
			}

			output, err := ops.Fetch(c.Context, client, cfg, logger, ops.FetchInput{
				RecordsDir: c.String("records-dir"),
				Targets:    c.StringSlice("target"),
				Keywords:   c.StringSlice("keyword"),
				PerKeyword: c.Int("per-keyword"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// runsCmd creates the runs command.
func runsCmd(store *vectorstore.Store) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List recent ingestion runs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "collection", Aliases: []string{"c"}, Usage: "Only runs of this collection"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultRunsLimit, Usage: "Maximum runs (max 100)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Runs(c.Context, store, ops.RunsInput{
				Collection: c.String("collection"),
				Limit:      c.Int("limit"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// Helper functions

// pdfExtractor returns a pdftotext extractor, or an error if it is not installed.
func pdfExtractor() (*source.PDFExtractor, error) {
	pdf := source.NewPDFExtractor(nil)
	if !pdf.Available() {
		return nil, errors.NewInvalidRequest(source.ErrPDFToolNotFound.Error())
	}
	return pdf, nil
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if sErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", sErr.Code, sErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

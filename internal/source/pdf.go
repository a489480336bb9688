package source

import (
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strings"
)

// PDFTool is the external command used to extract PDF text.
const PDFTool = "pdftotext"

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = stderrors.New("pdftotext not found in PATH (install poppler-utils)")

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// PDFExtractor turns PDF files into text with pdftotext.
type PDFExtractor struct {
	runner   CommandRunner
	lookPath func(string) (string, error)
}

// NewPDFExtractor creates an extractor. A nil runner uses ExecRunner.
func NewPDFExtractor(runner CommandRunner) *PDFExtractor {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &PDFExtractor{runner: runner, lookPath: exec.LookPath}
}

// Available reports whether pdftotext can be found.
func (p *PDFExtractor) Available() bool {
	_, err := p.lookPath(PDFTool)
	return err == nil
}

// Extract returns the text layer of the PDF at path, keeping the page layout.
func (p *PDFExtractor) Extract(ctx context.Context, path string) (string, error) {
	if !p.Available() {
		return "", ErrPDFToolNotFound
	}

	out, err := p.runner.Run(ctx, PDFTool, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}

	text, _, err := Decode(out)
	if err != nil {
		return "", err
	}
	// Form feeds separate pages
	text = strings.ReplaceAll(text, "\f", "\n")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text layer in %s", path)
	}
	return text, nil
}

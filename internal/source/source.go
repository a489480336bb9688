// Package source reads case records and local law text from disk.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"

	"github.com/hpungsan/semu/internal/errors"
)

// Encoding labels reported for decoded text files.
const (
	EncodingUTF8  = "utf-8"
	EncodingCP949 = "cp949"
	EncodingPDF   = "pdf"
)

// ReasonMalformedInput marks a file skipped because it could not be parsed or decoded.
const ReasonMalformedInput = "malformed_input"

// RecordFile is one decoded JSON case record.
type RecordFile struct {
	Filename string
	Payload  map[string]any
}

// TextFile is one decoded local law text.
type TextFile struct {
	Filename string
	Text     string
	Encoding string
}

// Skip describes a file left out of a load.
type Skip struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
	Message  string `json:"message,omitempty"`
}

// Loader reads source directories.
type Loader struct {
	logger *slog.Logger
	pdf    *PDFExtractor
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPDF enables *.pdf files in LoadTexts through the given extractor.
func WithPDF(p *PDFExtractor) LoaderOption {
	return func(l *Loader) {
		l.pdf = p
	}
}

// NewLoader creates a Loader. A nil logger discards output.
func NewLoader(logger *slog.Logger, opts ...LoaderOption) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	l := &Loader{logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadRecords decodes every *.json file in dir, in name order.
// Files that are not a JSON object are skipped. A missing dir yields nothing.
func (l *Loader) LoadRecords(ctx context.Context, dir string) ([]RecordFile, []Skip, error) {
	names, err := l.list(dir, ".json")
	if err != nil || names == nil {
		return nil, nil, err
	}

	var (
		records []RecordFile
		skipped []Skip
	)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return records, skipped, errors.NewCancelled("load records")
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return records, skipped, errors.NewInternal(err)
		}
		payload, err := decodeObject(data)
		if err != nil {
			skipped = append(skipped, l.skip(name, err))
			continue
		}
		records = append(records, RecordFile{Filename: name, Payload: payload})
	}
	return records, skipped, nil
}

// LoadTexts reads every *.txt file in dir (and *.pdf when PDF extraction is
// enabled), in name order. A missing dir yields nothing.
func (l *Loader) LoadTexts(ctx context.Context, dir string) ([]TextFile, []Skip, error) {
	exts := []string{".txt"}
	if l.pdf != nil {
		exts = append(exts, ".pdf")
	}
	names, err := l.list(dir, exts...)
	if err != nil || names == nil {
		return nil, nil, err
	}

	var (
		texts   []TextFile
		skipped []Skip
	)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return texts, skipped, errors.NewCancelled("load texts")
		}

		path := filepath.Join(dir, name)
		if strings.EqualFold(filepath.Ext(name), ".pdf") {
			text, err := l.pdf.Extract(ctx, path)
			if err != nil {
				skipped = append(skipped, l.skip(name, err))
				continue
			}
			texts = append(texts, TextFile{Filename: name, Text: text, Encoding: EncodingPDF})
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return texts, skipped, errors.NewInternal(err)
		}
		text, enc, err := Decode(data)
		if err != nil {
			skipped = append(skipped, l.skip(name, err))
			continue
		}
		texts = append(texts, TextFile{Filename: name, Text: text, Encoding: enc})
	}
	return texts, skipped, nil
}

// ReadText reads and decodes a single text or PDF file.
func (l *Loader) ReadText(ctx context.Context, path string) (*TextFile, error) {
	name := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		if l.pdf == nil {
			return nil, errors.NewInvalidRequest("pdf extraction is not enabled")
		}
		text, err := l.pdf.Extract(ctx, path)
		if err != nil {
			return nil, errors.NewMalformedInput(name, err)
		}
		return &TextFile{Filename: name, Text: text, Encoding: EncodingPDF}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewNotFound(path)
		}
		return nil, errors.NewInternal(err)
	}
	text, enc, err := Decode(data)
	if err != nil {
		return nil, errors.NewMalformedInput(name, err)
	}
	return &TextFile{Filename: name, Text: text, Encoding: enc}, nil
}

// Decode returns data as text. Valid UTF-8 is used as is (without BOM);
// anything else is decoded as CP949.
func Decode(data []byte) (string, string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), EncodingUTF8, nil
	}

	out, err := korean.EUCKR.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", fmt.Errorf("decoding cp949: %w", err)
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", "", fmt.Errorf("not valid utf-8 or cp949")
	}
	return string(out), EncodingCP949, nil
}

// list returns the names of regular files in dir with one of exts.
// Returns nil, nil when dir does not exist.
func (l *Loader) list(dir string, exts ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("source directory not found", "dir", dir)
			return nil, nil
		}
		return nil, errors.NewInternal(err)
	}

	names := []string{}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range exts {
			if ext == want {
				names = append(names, e.Name())
				break
			}
		}
	}
	return names, nil
}

func (l *Loader) skip(name string, err error) Skip {
	l.logger.Warn("skipping file", "file", name, "reason", ReasonMalformedInput, "error", err)
	return Skip{Filename: name, Reason: ReasonMalformedInput, Message: err.Error()}
}

// decodeObject parses a JSON object, keeping numbers exact.
func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, fmt.Errorf("not a JSON object")
	}
	return payload, nil
}

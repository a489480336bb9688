package ops

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/hpungsan/semu/internal/config"
	"github.com/hpungsan/semu/internal/errors"
	"github.com/hpungsan/semu/internal/segment"
	"github.com/hpungsan/semu/internal/source"
)

// Context widths around a scanned marker, in characters.
const (
	ScanPreContext  = 200
	ScanPostContext = 100
)

// ScanInput contains parameters for the Scan operation.
type ScanInput struct {
	Path  string
	Limit int // default: 50, max: 500

	// PDF enables scanning *.pdf files when set.
	PDF *source.PDFExtractor
}

// Occurrence is one marker hit with its surrounding text.
type Occurrence struct {
	Offset  int    `json:"offset"`
	LawName string `json:"law_name"`
	Pre     string `json:"pre"`
	Post    string `json:"post"`
}

// ScanOutput contains the result of the Scan operation.
type ScanOutput struct {
	File        string       `json:"file"`
	Encoding    string       `json:"encoding"`
	Marker      string       `json:"marker"`
	Total       int          `json:"total"`
	Truncated   bool         `json:"truncated"`
	Occurrences []Occurrence `json:"occurrences"`
}

// Scan lists the marker occurrences of one source file together with the law
// name each would be segmented under. Newlines in the context are flattened.
func Scan(ctx context.Context, cfg *config.Config, input ScanInput) (*ScanOutput, error) {
	if err := ValidatePath(input.Path, PathCheckRead); err != nil {
		return nil, err
	}
	limit := clamp(input.Limit, DefaultScanLimit, MaxScanLimit)

	tf, err := readSource(ctx, input.Path, input.PDF)
	if err != nil {
		return nil, err
	}

	segmenter := segment.New(segment.WithMarker(cfg.Marker), segment.WithLookback(cfg.LookbackChars))
	marker := segmenter.Marker()
	markerLen := len([]rune(marker))
	runes := []rune(tf.Text)

	offsets := segment.Occurrences(tf.Text, marker)
	out := &ScanOutput{
		File:        tf.Filename,
		Encoding:    tf.Encoding,
		Marker:      marker,
		Total:       len(offsets),
		Truncated:   len(offsets) > limit,
		Occurrences: []Occurrence{},
	}
	for _, off := range offsets[:min(limit, len(offsets))] {
		pre := runes[max(0, off-ScanPreContext):off]
		post := runes[off:min(len(runes), off+markerLen+ScanPostContext)]
		out.Occurrences = append(out.Occurrences, Occurrence{
			Offset:  off,
			LawName: segmenter.ResolveAt(runes, off),
			Pre:     flatten(string(pre)),
			Post:    flatten(string(post)),
		})
	}
	return out, nil
}

// readSource reads a text file without following a final symlink, or
// extracts a PDF when an extractor is given.
func readSource(ctx context.Context, path string, pdf *source.PDFExtractor) (*source.TextFile, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		var opts []source.LoaderOption
		if pdf != nil {
			opts = append(opts, source.WithPDF(pdf))
		}
		return source.NewLoader(nil, opts...).ReadText(ctx, path)
	}

	f, err := openFileNoFollowRead(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	name := filepath.Base(path)
	text, enc, err := source.Decode(data)
	if err != nil {
		return nil, errors.NewMalformedInput(name, err)
	}
	return &source.TextFile{Filename: name, Text: text, Encoding: enc}, nil
}

func flatten(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}

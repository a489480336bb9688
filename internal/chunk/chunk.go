// Package chunk provides fixed-size overlapping text windows with stable ids.
package chunk

import (
	"fmt"

	"github.com/hpungsan/semu/internal/record"
	"github.com/hpungsan/semu/internal/segment"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Retrieval tags stored under the "tag" metadata key.
const (
	TagLaw  = "law"
	TagCase = "case"
)

// LawType is the type label of chunks cut from local law text.
const LawType = "법령"

// LocalSource is the source label of chunks cut from local files.
const LocalSource = "local_file"

// Chunk is the unit written to the index.
type Chunk struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Start    int               `json:"start"`
	End      int               `json:"end"`
	Metadata map[string]string `json:"metadata"`
}

// Span is a window [Start, End) in characters.
type Span struct {
	Start int
	End   int
}

// Chunker splits text into fixed-size overlapping windows.
type Chunker struct {
	size    int
	overlap int
	enrich  bool
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithEnrichment toggles the "[name]\n" text prefix.
func WithEnrichment(enabled bool) Option {
	return func(c *Chunker) {
		c.enrich = enabled
	}
}

// New creates a chunker. Enrichment is on by default.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:    DefaultChunkSize,
		overlap: DefaultChunkOverlap,
		enrich:  true,
	}
	for _, opt := range opts {
		opt(c)
	}

	// Overlap must leave a positive stride
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}
	return c
}

// Size returns the window size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Windows returns the spans covering a text of n characters.
// Windows advance by size-overlap and stop once one reaches the end, so the
// last window may be short. n == 0 yields no windows.
func (c *Chunker) Windows(n int) []Span {
	if n <= 0 {
		return nil
	}
	stride := c.size - c.overlap
	spans := make([]Span, 0, n/stride+1)
	for start := 0; ; start += stride {
		end := min(start+c.size, n)
		spans = append(spans, Span{Start: start, End: end})
		if end == n {
			return spans
		}
	}
}

// Segments chunks a segmented document.
// Ids are local_{filename}_{segmentIndex}_{start} where start is the chunk's
// character offset in the whole document.
func (c *Chunker) Segments(filename, text string, segments []segment.Segment) []Chunk {
	runes := []rune(text)
	var chunks []Chunk
	for _, seg := range segments {
		body := runes[seg.Start:seg.End]
		for part, w := range c.Windows(len(body)) {
			start, end := seg.Start+w.Start, seg.Start+w.End
			id := fmt.Sprintf("local_%s_%d_%d", filename, seg.Index, start)
			chunks = append(chunks, Chunk{
				ID:    id,
				Text:  c.decorate(seg.LawName, string(body[w.Start:w.End])),
				Start: start,
				End:   end,
				Metadata: map[string]string{
					"source":    LocalSource,
					"doc_id":    id,
					"filename":  filename,
					"case_name": fmt.Sprintf("%s (Part %d)", seg.LawName, part+1),
					"law_name":  seg.LawName,
					"type":      LawType,
					"tag":       TagLaw,
				},
			})
		}
	}
	return chunks
}

// Record chunks a normalized record's rendered text.
// The first chunk id is the record id; later chunks are {id}_{i}.
func (c *Chunker) Record(filename string, r *record.Record, text string) []Chunk {
	runes := []rune(text)
	windows := c.Windows(len(runes))
	chunks := make([]Chunk, 0, len(windows))
	for i, w := range windows {
		id := r.ID
		if i > 0 {
			id = fmt.Sprintf("%s_%d", r.ID, i)
		}
		meta := r.Metadata(filename)
		meta["tag"] = TagCase
		chunks = append(chunks, Chunk{
			ID:       id,
			Text:     c.decorate(r.Title, string(runes[w.Start:w.End])),
			Start:    w.Start,
			End:      w.End,
			Metadata: meta,
		})
	}
	return chunks
}

func (c *Chunker) decorate(name, body string) string {
	if !c.enrich || name == "" {
		return body
	}
	return "[" + name + "]\n" + body
}

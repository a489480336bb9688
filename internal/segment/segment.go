// Package segment splits extracted multi-law text into per-statute segments.
//
// Statutes are found by their opening-article marker. The law name of a
// segment is resolved from the text just before its marker by an ordered list
// of resolvers. Offsets are character (rune) offsets.
package segment

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMarker is the opening-article boilerplate of Korean statutes.
	DefaultMarker = "제1조(목적)"

	// DefaultLookback is how many characters before a marker are searched for a name.
	DefaultLookback = 200

	// UnknownLaw names a segment whose law name could not be resolved.
	UnknownLaw = "Unknown Law"

	// UnknownDocument names the single segment of a text with no markers.
	UnknownDocument = "Unknown Document"
)

// Segment is a span [Start, End) of a document attributed to one law.
type Segment struct {
	Index   int    `json:"index"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	LawName string `json:"law_name"`
}

// Len returns the segment length in characters.
func (s Segment) Len() int {
	return s.End - s.Start
}

// Segmenter finds marker occurrences and attributes each to a law name.
type Segmenter struct {
	marker    string
	lookback  int
	resolvers []Resolver
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithMarker sets the statute boundary marker. Empty keeps the default.
func WithMarker(marker string) Option {
	return func(s *Segmenter) {
		if marker != "" {
			s.marker = marker
		}
	}
}

// WithLookback sets the name search window in characters.
func WithLookback(n int) Option {
	return func(s *Segmenter) {
		if n > 0 {
			s.lookback = n
		}
	}
}

// WithResolvers replaces the resolver chain.
func WithResolvers(resolvers ...Resolver) Option {
	return func(s *Segmenter) {
		s.resolvers = resolvers
	}
}

// New creates a Segmenter with the bracket and suffix-line resolvers.
func New(opts ...Option) *Segmenter {
	s := &Segmenter{
		marker:    DefaultMarker,
		lookback:  DefaultLookback,
		resolvers: DefaultResolvers(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Marker returns the configured marker.
func (s *Segmenter) Marker() string {
	return s.marker
}

// Segment splits text into contiguous ordered segments covering [0, len).
//
// Each marker starts a segment that runs to the next marker or the end of the
// text. Text before the first marker becomes segment 0 and carries the first
// marker's law name. Text with no marker is one UnknownDocument segment.
func (s *Segmenter) Segment(text string) []Segment {
	runes := []rune(text)
	total := len(runes)

	offsets := Occurrences(text, s.marker)
	if len(offsets) == 0 {
		return []Segment{{Index: 0, Start: 0, End: total, LawName: UnknownDocument}}
	}

	segments := make([]Segment, 0, len(offsets)+1)
	for i, off := range offsets {
		end := total
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		name := s.ResolveAt(runes, off)
		if i == 0 && off > 0 {
			segments = append(segments, Segment{Start: 0, End: off, LawName: name})
		}
		segments = append(segments, Segment{Start: off, End: end, LawName: name})
	}
	for i := range segments {
		segments[i].Index = i
	}
	return segments
}

// ResolveAt resolves the law name for a marker at offset.
func (s *Segmenter) ResolveAt(runes []rune, offset int) string {
	start := max(0, offset-s.lookback)
	window := string(runes[start:offset])
	for _, r := range s.resolvers {
		if name, ok := r.Resolve(window); ok {
			return name
		}
	}
	return UnknownLaw
}

// Occurrences returns the character offsets of every marker occurrence.
// Each search resumes one character past the previous match start.
func Occurrences(text, marker string) []int {
	if marker == "" {
		return nil
	}

	var (
		offsets  []int
		bytePos  int
		runePos  int
		lastByte int
	)
	for {
		i := strings.Index(text[bytePos:], marker)
		if i < 0 {
			return offsets
		}
		match := bytePos + i
		runePos += utf8.RuneCountInString(text[lastByte:match])
		lastByte = match
		offsets = append(offsets, runePos)

		_, size := utf8.DecodeRuneInString(text[match:])
		bytePos = match + size
	}
}

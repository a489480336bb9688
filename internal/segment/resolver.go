package segment

import (
	"regexp"
	"strings"
)

// Resolver tries to find a law name in the text preceding a marker.
type Resolver interface {
	Resolve(window string) (string, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(window string) (string, bool)

// Resolve calls f.
func (f ResolverFunc) Resolve(window string) (string, bool) {
	return f(window)
}

// DefaultResolvers returns the bracket resolver followed by the suffix-line resolver.
func DefaultResolvers() []Resolver {
	return []Resolver{BracketResolver{}, NewSuffixLineResolver()}
}

// bracketRegex matches 「...」 without nested brackets, so the capture is the innermost quote.
var bracketRegex = regexp.MustCompile(`「([^「」]+)」`)

// BracketResolver takes the text of the last 「...」 quotation in the window.
type BracketResolver struct{}

// Resolve implements Resolver.
func (BracketResolver) Resolve(window string) (string, bool) {
	matches := bracketRegex.FindAllStringSubmatch(window, -1)
	if len(matches) == 0 {
		return "", false
	}
	name := strings.TrimSpace(matches[len(matches)-1][1])
	return name, name != ""
}

// DefaultSuffixes are the endings of statute titles: Act, Decree, Regulation.
var DefaultSuffixes = []string{"법", "령", "규칙"}

// SuffixLineResolver scans the window's lines from last to first and returns
// the first trimmed line ending in one of its suffixes.
//
// Ordinary prose lines ending in these suffixes also match. There is no
// registry of law names to check against.
type SuffixLineResolver struct {
	Suffixes []string
}

// NewSuffixLineResolver creates a resolver for DefaultSuffixes.
func NewSuffixLineResolver() SuffixLineResolver {
	return SuffixLineResolver{Suffixes: DefaultSuffixes}
}

// Resolve implements Resolver.
func (r SuffixLineResolver) Resolve(window string) (string, bool) {
	lines := strings.Split(window, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		for _, suffix := range r.Suffixes {
			if strings.HasSuffix(line, suffix) {
				return line, true
			}
		}
	}
	return "", false
}

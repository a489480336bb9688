// Package record normalizes law API case records into one uniform shape.
package record

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hpungsan/semu/internal/errors"
)

// Kind identifies which case schema a payload carries.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindPrecedent
	KindInterpretation
	KindAdjudication
	KindConstitutional
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindPrecedent:
		return "precedent"
	case KindInterpretation:
		return "interpretation"
	case KindAdjudication:
		return "adjudication"
	case KindConstitutional:
		return "constitutional"
	default:
		return "unrecognized"
	}
}

// CaseType is the display label stored with every record chunk.
type CaseType string

const (
	TypeRuling         CaseType = "판례"
	TypeInterpretation CaseType = "법령해석"
	TypeAdjudication   CaseType = "행정심판"
	TypeConstitutional CaseType = "헌재결정"
	TypeOther          CaseType = "기타"
)

// schema describes where one case kind keeps its fields.
// Each field lists candidate keys; the first non-empty value wins.
type schema struct {
	root     string
	nested   string
	id       []string
	title    []string
	summary  []string
	content  []string
	caseType CaseType
}

// detectOrder is the order root keys are checked in.
var detectOrder = []Kind{KindPrecedent, KindInterpretation, KindAdjudication, KindConstitutional}

var schemas = map[Kind]schema{
	KindPrecedent: {
		root:     "PrecService",
		nested:   "판례정보",
		id:       []string{"판례일련번호"},
		title:    []string{"사건명"},
		summary:  []string{"판결요지"},
		content:  []string{"판례내용"},
		caseType: TypeRuling,
	},
	KindInterpretation: {
		root:     "ExpcService",
		nested:   "법령해석정보",
		id:       []string{"법령해석일련번호"},
		title:    []string{"안건명"},
		summary:  []string{"회신", "주문"},
		content:  []string{"이유"},
		caseType: TypeInterpretation,
	},
	KindAdjudication: {
		root:     "AdjudService",
		nested:   "행정심판정보",
		id:       []string{"행정심판일련번호"},
		title:    []string{"심판사건명"},
		summary:  []string{"재결요지"},
		content:  []string{"이유"},
		caseType: TypeAdjudication,
	},
	KindConstitutional: {
		root:     "HunjaeService",
		nested:   "헌재결정정보",
		id:       []string{"헌재결정일련번호"},
		title:    []string{"사건명"},
		summary:  []string{"결정요지"},
		content:  []string{"전문"},
		caseType: TypeConstitutional,
	},
}

// Record is a normalized case record.
type Record struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Content string   `json:"content"`
	Type    CaseType `json:"type"`
	Kind    Kind     `json:"-"`

	// Source is "law_api_{root}" for recognized kinds.
	Source string `json:"source"`
}

// Detect returns the kind of payload by its root key.
func Detect(payload map[string]any) Kind {
	for _, k := range detectOrder {
		if _, ok := payload[schemas[k].root]; ok {
			return k
		}
	}
	return KindUnrecognized
}

// Normalize converts a decoded JSON payload into a Record.
// Unrecognized payloads are read with the precedent field names at the top
// level. A payload without an id is rejected with MISSING_IDENTITY.
func Normalize(filename string, payload map[string]any) (*Record, error) {
	kind := Detect(payload)

	var (
		s      schema
		raw    map[string]any
		source string
	)
	if kind == KindUnrecognized {
		s = schemas[KindPrecedent]
		s.caseType = TypeOther
		raw = payload
		source = "law_api_unknown"
	} else {
		s = schemas[kind]
		raw, _ = payload[s.root].(map[string]any)
		if raw == nil {
			return nil, errors.NewMalformedInput(filename, fmt.Errorf("%s is not an object", s.root))
		}
		if inner, ok := raw[s.nested].(map[string]any); ok {
			raw = inner
		}
		source = "law_api_" + s.root
	}

	r := &Record{
		ID:      strings.TrimSpace(field(raw, s.id)),
		Title:   field(raw, s.title),
		Summary: field(raw, s.summary),
		Content: field(raw, s.content),
		Type:    s.caseType,
		Kind:    kind,
		Source:  source,
	}
	if r.ID == "" {
		return nil, errors.NewMissingIdentity(filename)
	}
	return r, nil
}

// Text renders the record as the indexed document body.
// Content is cut to maxContent characters; maxContent <= 0 keeps it whole.
func (r *Record) Text(maxContent int) string {
	var b strings.Builder
	b.WriteString("구분: ")
	b.WriteString(string(r.Type))
	b.WriteString("\n사건명/안건명: ")
	b.WriteString(r.Title)
	b.WriteString("\n\n요지:\n")
	b.WriteString(r.Summary)
	b.WriteString("\n\n내용:\n")
	b.WriteString(Truncate(r.Content, maxContent))
	return b.String()
}

// Metadata returns the metadata attached to every chunk of the record.
func (r *Record) Metadata(filename string) map[string]string {
	return map[string]string{
		"source":    r.Source,
		"doc_id":    r.ID,
		"case_name": r.Title,
		"type":      string(r.Type),
		"filename":  filename,
	}
}

// Truncate returns the first n characters of s. n <= 0 returns s unchanged.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// field returns the first non-empty value among keys.
func field(raw map[string]any, keys []string) string {
	for _, k := range keys {
		if v := stringify(raw[k]); strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// stringify renders a decoded JSON value as text.
// Numbers keep their integer form; lists are joined line by line.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

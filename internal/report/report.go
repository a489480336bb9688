// Package report renders query results as Markdown or HTML.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/hpungsan/semu/internal/ops"
)

// Markdown renders a query result for people reading it in a terminal or a
// document. Chunk text is quoted verbatim.
func Markdown(out *ops.QueryOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# 검색 결과: %s\n\n", escape(out.Query))
	fmt.Fprintf(&b, "컬렉션 `%s`, 결과 %d건\n", out.Collection, len(out.Results))

	if out.Empty || len(out.Results) == 0 {
		b.WriteString("\n검색 결과가 없습니다.")
		if out.Reason != "" {
			fmt.Fprintf(&b, " (%s)", out.Reason)
		}
		b.WriteString("\n")
		return b.String()
	}

	for i, m := range out.Results {
		title := m.Metadata["case_name"]
		if title == "" {
			title = m.ID
		}
		fmt.Fprintf(&b, "\n## %d. %s\n\n", i+1, escape(title))
		fmt.Fprintf(&b, "- 구분: %s\n", escape(m.Metadata["type"]))
		if law := m.Metadata["law_name"]; law != "" {
			fmt.Fprintf(&b, "- 법령: %s\n", escape(law))
		}
		fmt.Fprintf(&b, "- 출처: %s\n", escape(m.Metadata["source"]))
		fmt.Fprintf(&b, "- 거리: %.4f\n", m.Distance)
		fmt.Fprintf(&b, "- ID: `%s`\n\n", strings.ReplaceAll(m.ID, "`", "'"))
		b.WriteString(quote(m.Text))
	}
	return b.String()
}

// HTML renders the Markdown report as an HTML fragment. Raw HTML inside
// chunk text is not passed through.
func HTML(out *ops.QueryOutput) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(Markdown(out)), &buf); err != nil {
		return "", fmt.Errorf("rendering html: %w", err)
	}
	return buf.String(), nil
}

func quote(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		b.WriteString("> ")
		b.WriteString(escape(line))
		b.WriteString("  \n")
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`,
	"[", `\[`, "]", `\]`, "<", `\<`, ">", `\>`, "#", `\#`,
)

func escape(s string) string {
	return markdownEscaper.Replace(s)
}

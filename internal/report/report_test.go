package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/semu/internal/ops"
	"github.com/hpungsan/semu/internal/vectorstore"
)

func sampleOutput() *ops.QueryOutput {
	return &ops.QueryOutput{
		Query:      "부가가치세 매입세액",
		Collection: "tax_laws",
		Results: []vectorstore.Match{
			{
				ID:       "local_tax.txt_1_9",
				Text:     "[부가가치세법]\n제1조(목적) 이 법은 ...",
				Distance: 0.125,
				Metadata: map[string]string{
					"case_name": "부가가치세법 (Part 1)",
					"law_name":  "부가가치세법",
					"type":      "법령",
					"source":    "local_file",
				},
			},
			{
				ID:       "228541",
				Text:     "구분: 판례\n<script>alert(1)</script>",
				Distance: 0.5,
				Metadata: map[string]string{"case_name": "매입세액_공제", "type": "판례", "source": "law_api_PrecService"},
			},
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleOutput())

	assert.True(t, strings.HasPrefix(md, "# 검색 결과: 부가가치세 매입세액\n"))
	assert.Contains(t, md, "결과 2건")
	assert.Contains(t, md, "## 1. 부가가치세법 (Part 1)")
	assert.Contains(t, md, "- 법령: 부가가치세법")
	assert.Contains(t, md, "- 거리: 0.1250")
	assert.Contains(t, md, "> \\[부가가치세법\\]  \n> 제1조(목적) 이 법은 ...  \n")
	assert.Contains(t, md, "## 2. 매입세액\\_공제")
	assert.Less(t, strings.Index(md, "## 1."), strings.Index(md, "## 2."))
}

func TestMarkdown_Empty(t *testing.T) {
	md := Markdown(&ops.QueryOutput{Query: "소득세", Collection: "tax_laws", Empty: true, Reason: ops.EmptyNoVectors})

	assert.Contains(t, md, "검색 결과가 없습니다. (no_vectors)")
	assert.NotContains(t, md, "## 1.")
}

func TestHTML(t *testing.T) {
	html, err := HTML(sampleOutput())
	require.NoError(t, err)

	assert.Contains(t, html, "<h1>검색 결과: 부가가치세 매입세액</h1>")
	assert.Contains(t, html, "<h2>1. 부가가치세법 (Part 1)</h2>")
	assert.Contains(t, html, "<blockquote>")
	assert.Contains(t, html, "<code>228541</code>")
	assert.NotContains(t, html, "<script>")
}

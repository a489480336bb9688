package lawapi

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
)

func TestParseXML_Detail(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<PrecService>
  <판례정보일련번호>1</판례정보일련번호>
  <판례일련번호>228541</판례일련번호>
  <사건명><![CDATA[법인세부과처분취소]]></사건명>
  <판결요지>요지 &amp; 이유</판결요지>
  <참조조문/>
</PrecService>`

	got, err := ParseXML(strings.NewReader(doc))
	require.NoError(t, err)

	root, ok := got["PrecService"].(map[string]any)
	require.True(t, ok, "root key kept: %v", got)
	assert.Equal(t, "228541", root["판례일련번호"])
	assert.Equal(t, "법인세부과처분취소", root["사건명"])
	assert.Equal(t, "요지 & 이유", root["판결요지"])
	assert.Equal(t, "", root["참조조문"])
}

func TestParseXML_RepeatedElementsBecomeList(t *testing.T) {
	doc := `<PrecSearch><totalCnt>2</totalCnt><prec id="1"><사건명>가</사건명></prec><prec id="2"><사건명>나</사건명></prec></PrecSearch>`

	got, err := ParseXML(strings.NewReader(doc))
	require.NoError(t, err)

	root := got["PrecSearch"].(map[string]any)
	items, ok := root["prec"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "1", first["@id"])
	assert.Equal(t, "가", first["사건명"])
	assert.Equal(t, "2", root["totalCnt"])
}

func TestParseXML_MixedText(t *testing.T) {
	got, err := ParseXML(strings.NewReader(`<a lang="ko">본문<b>x</b></a>`))
	require.NoError(t, err)

	a := got["a"].(map[string]any)
	assert.Equal(t, "본문", a["#text"])
	assert.Equal(t, "ko", a["@lang"])
	assert.Equal(t, "x", a["b"])
}

func TestParseXML_EUCKR(t *testing.T) {
	body, err := korean.EUCKR.NewEncoder().String(`<?xml version="1.0" encoding="EUC-KR"?><r><사건명>부가가치세</사건명></r>`)
	require.NoError(t, err)

	got, err := ParseXML(bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	assert.Equal(t, "부가가치세", got["r"].(map[string]any)["사건명"])
}

func TestParseXML_Errors(t *testing.T) {
	_, err := ParseXML(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ParseXML(strings.NewReader("<a><b></a>"))
	assert.Error(t, err)
}

package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"

	"github.com/hpungsan/semu/internal/config"
	"github.com/hpungsan/semu/internal/errors"
)

func TestScan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tax.txt")
	require.NoError(t, os.WriteFile(path, []byte(lawText), 0o644))

	out, err := Scan(context.Background(), config.DefaultConfig(), ScanInput{Path: path})
	require.NoError(t, err)

	assert.Equal(t, "tax.txt", out.File)
	assert.Equal(t, "utf-8", out.Encoding)
	assert.Equal(t, 2, out.Total)
	assert.False(t, out.Truncated)
	require.Len(t, out.Occurrences, 2)

	first := out.Occurrences[0]
	assert.Equal(t, 9, first.Offset)
	assert.Equal(t, "부가가치세법", first.LawName)
	assert.Equal(t, "「부가가치세법」 ", first.Pre)
	assert.True(t, strings.HasPrefix(first.Post, "제1조(목적)"))
	assert.NotContains(t, first.Post, "\n")

	assert.Equal(t, "소득세법", out.Occurrences[1].LawName)
}

func TestScan_Limit(t *testing.T) {
	text := strings.Repeat("「법인세법」\n제1조(목적) 내용\n", 5)
	path := filepath.Join(t.TempDir(), "many.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))

	out, err := Scan(context.Background(), config.DefaultConfig(), ScanInput{Path: path, Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, 5, out.Total)
	assert.True(t, out.Truncated)
	assert.Len(t, out.Occurrences, 2)
}

func TestScan_CP949(t *testing.T) {
	encoded, err := korean.EUCKR.NewEncoder().String(lawText)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "cp949.txt")
	require.NoError(t, os.WriteFile(path, []byte(encoded), 0o644))

	out, err := Scan(context.Background(), config.DefaultConfig(), ScanInput{Path: path})
	require.NoError(t, err)
	assert.Equal(t, "cp949", out.Encoding)
	assert.Equal(t, 2, out.Total)
}

func TestScan_Errors(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	cfg := config.DefaultConfig()

	_, err := Scan(ctx, cfg, ScanInput{Path: filepath.Join(dir, "missing.txt")})
	assert.True(t, errors.Is(err, errors.ErrNotFound), "err = %v", err)

	_, err = Scan(ctx, cfg, ScanInput{Path: filepath.Join(dir, "law.docx")})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "err = %v", err)

	pdf := filepath.Join(dir, "law.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0o644))
	_, err = Scan(ctx, cfg, ScanInput{Path: pdf})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "err = %v", err)
}

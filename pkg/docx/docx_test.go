package docx

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type zipPart struct {
	name    string
	content string
}

func writeArchive(t *testing.T, name string, parts []zipPart) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	for _, part := range parts {
		w, err := zw.Create(part.name)
		require.NoError(t, err)
		_, err = io.WriteString(w, part.content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func readEntry(t *testing.T, path, entry string) string {
	t.Helper()

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != entry {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		raw, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		return string(raw)
	}
	t.Fatalf("entry %s not found in %s", entry, path)
	return ""
}

func TestFillReplacesTokens(t *testing.T) {
	tpl := writeArchive(t, "cert.docx", []zipPart{
		{"word/document.xml", `<w:t>Awarded to {{recipientName}} for {{courseName}}</w:t>`},
		{"[Content_Types].xml", `<Types/>`},
		{"word/media/image1.png", "binarybits"},
	})
	out := filepath.Join(t.TempDir(), "out.docx")

	err := Fill(tpl, map[string]string{
		"recipientName": "Jane Doe",
		"courseName":    "Go 101",
	}, out)
	require.NoError(t, err)

	body := readEntry(t, out, "word/document.xml")
	assert.Contains(t, body, "Awarded to Jane Doe for Go 101")
	assert.NotContains(t, body, "{{")

	// non-text parts pass through untouched
	assert.Equal(t, "binarybits", readEntry(t, out, "word/media/image1.png"))
}

func TestFillEscapesXMLValues(t *testing.T) {
	tpl := writeArchive(t, "cert.docx", []zipPart{
		{"word/document.xml", `<w:t>{{recipientName}}</w:t>`},
	})
	out := filepath.Join(t.TempDir(), "out.docx")

	err := Fill(tpl, map[string]string{"recipientName": `Q&A <Dept>`}, out)
	require.NoError(t, err)

	body := readEntry(t, out, "word/document.xml")
	assert.Contains(t, body, "Q&amp;A &lt;Dept&gt;")
}

func TestFillMatchesTokensSplitAcrossRuns(t *testing.T) {
	tpl := writeArchive(t, "cert.docx", []zipPart{
		{"word/document.xml", `<w:t>{{recipient</w:t><w:t>Name}}</w:t> done`},
	})
	out := filepath.Join(t.TempDir(), "out.docx")

	err := Fill(tpl, map[string]string{"recipientName": "Jane"}, out)
	require.NoError(t, err)

	body := readEntry(t, out, "word/document.xml")
	assert.Contains(t, body, "Jane")
	assert.NotContains(t, body, "recipientName")
}

func TestFillLeavesUnmappedTokens(t *testing.T) {
	tpl := writeArchive(t, "cert.docx", []zipPart{
		{"word/document.xml", `<w:t>{{recipientName}} {{issueDate}}</w:t>`},
	})
	out := filepath.Join(t.TempDir(), "out.docx")

	err := Fill(tpl, map[string]string{"recipientName": "Jane"}, out)
	require.NoError(t, err)

	body := readEntry(t, out, "word/document.xml")
	assert.Contains(t, body, "Jane")
	assert.Contains(t, body, "{{issueDate}}")
}

func TestFillRejectsUnterminatedToken(t *testing.T) {
	tpl := writeArchive(t, "cert.docx", []zipPart{
		{"word/document.xml", `<w:t>{{recipientName</w:t>`},
	})
	out := filepath.Join(t.TempDir(), "out.docx")

	err := Fill(tpl, map[string]string{"recipientName": "Jane"}, out)
	require.Error(t, err)
	assert.True(t, IsTemplateError(err))

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCheckTokens(t *testing.T) {
	tpl := writeArchive(t, "cert.docx", []zipPart{
		{"word/document.xml", `<w:t>{{recipientName}} earned {{courseName}}</w:t>`},
		{"word/header1.xml", `<w:t>{{ issuer }}</w:t>`},
	})

	assert.NoError(t, CheckTokens(tpl))
}

func TestCheckTokensRejectsUnterminated(t *testing.T) {
	tpl := writeArchive(t, "cert.pptx", []zipPart{
		{"ppt/slides/slide1.xml", `<a:t>Presented to {{recipientName</a:t>`},
	})

	err := CheckTokens(tpl)
	require.Error(t, err)
	assert.True(t, IsTemplateError(err))
}

func TestCheckTokensIgnoresNonTextParts(t *testing.T) {
	tpl := writeArchive(t, "cert.pptx", []zipPart{
		{"ppt/slides/slide1.xml", `<a:t>{{ok}}</a:t>`},
		{"ppt/notesSlides/notesSlide1.xml", `<a:t>{{broken</a:t>`},
	})

	assert.NoError(t, CheckTokens(tpl))
}

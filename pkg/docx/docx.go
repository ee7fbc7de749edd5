// Package docx fills placeholder tokens inside OOXML documents (DOCX and
// PPTX). Both formats are zip archives of XML parts; the filler rewrites
// the text-bearing parts entry by entry and leaves everything else intact.
package docx

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// TemplateError reports malformed placeholder syntax inside the document,
// as opposed to I/O failures reading or writing the files.
type TemplateError struct {
	Part   string
	Reason string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template syntax error in %s: %s", e.Part, e.Reason)
}

// IsTemplateError reports whether err is a placeholder-syntax failure.
func IsTemplateError(err error) bool {
	var te *TemplateError
	return errors.As(err, &te)
}

const (
	tokenOpen  = "{{"
	tokenClose = "}}"
)

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Fill copies the template archive to outputPath, replacing every
// {{placeholder}} token that has an entry in values. Tokens without a
// supplied value are left as literal text. The template file itself is
// never modified.
func Fill(templatePath string, values map[string]string, outputPath string) error {
	reader, err := zip.OpenReader(templatePath)
	if err != nil {
		return fmt.Errorf("open template archive: %w", err)
	}
	defer reader.Close() //nolint:errcheck

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	writer := zip.NewWriter(out)

	for _, entry := range reader.File {
		if err := copyEntry(writer, entry, values); err != nil {
			writer.Close()  //nolint:errcheck
			out.Close()     //nolint:errcheck
			os.Remove(outputPath) //nolint:errcheck
			return err
		}
	}

	if err := writer.Close(); err != nil {
		out.Close() //nolint:errcheck
		return fmt.Errorf("finalize output archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	return nil
}

func copyEntry(writer *zip.Writer, entry *zip.File, values map[string]string) error {
	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %s: %w", entry.Name, err)
	}
	defer rc.Close() //nolint:errcheck

	w, err := writer.Create(entry.Name)
	if err != nil {
		return fmt.Errorf("create archive entry %s: %w", entry.Name, err)
	}

	if !isTextPart(entry.Name) {
		if _, err := io.Copy(w, rc); err != nil {
			return fmt.Errorf("copy archive entry %s: %w", entry.Name, err)
		}
		return nil
	}

	raw, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read archive entry %s: %w", entry.Name, err)
	}

	content := string(raw)
	if err := checkTokenSyntax(entry.Name, content); err != nil {
		return err
	}
	for name, value := range values {
		content = replaceToken(content, tokenOpen+name+tokenClose, xmlEscaper.Replace(value))
	}

	if _, err := io.WriteString(w, content); err != nil {
		return fmt.Errorf("write archive entry %s: %w", entry.Name, err)
	}
	return nil
}

// CheckTokens validates the placeholder syntax across the document's
// text parts without filling anything. Upload rejects templates that
// would fail every later generation run.
func CheckTokens(templatePath string) error {
	reader, err := zip.OpenReader(templatePath)
	if err != nil {
		return fmt.Errorf("open template archive: %w", err)
	}
	defer reader.Close() //nolint:errcheck

	for _, entry := range reader.File {
		if !isTextPart(entry.Name) {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return fmt.Errorf("open archive entry %s: %w", entry.Name, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close() //nolint:errcheck
		if err != nil {
			return fmt.Errorf("read archive entry %s: %w", entry.Name, err)
		}
		if err := checkTokenSyntax(entry.Name, string(raw)); err != nil {
			return err
		}
	}
	return nil
}

// isTextPart selects the XML parts that carry document text: the main
// body, headers and footers for DOCX, slides for PPTX.
func isTextPart(name string) bool {
	switch {
	case name == "word/document.xml":
		return true
	case strings.HasPrefix(name, "word/header") && strings.HasSuffix(name, ".xml"):
		return true
	case strings.HasPrefix(name, "word/footer") && strings.HasSuffix(name, ".xml"):
		return true
	case strings.HasPrefix(name, "ppt/slides/slide") && strings.HasSuffix(name, ".xml"):
		return true
	}
	return false
}

// checkTokenSyntax walks the tag-stripped text and rejects an opening
// token marker that never closes.
func checkTokenSyntax(part, content string) error {
	text := stripTags(content)
	for {
		start := strings.Index(text, tokenOpen)
		if start == -1 {
			return nil
		}
		end := strings.Index(text[start:], tokenClose)
		if end == -1 {
			return &TemplateError{Part: part, Reason: "unterminated placeholder token"}
		}
		text = text[start+end+len(tokenClose):]
	}
}

// replaceToken substitutes every occurrence of token with value. When
// the token text is split across XML runs (the editor interleaves tags
// mid-token), a tag-skipping scan matches it anyway; the interleaved
// tags are dropped together with the token.
func replaceToken(content, token, value string) string {
	if strings.Contains(content, token) {
		return strings.ReplaceAll(content, token, value)
	}

	contentRunes := []rune(content)
	tokenRunes := []rune(token)
	if len(tokenRunes) == 0 {
		return content
	}

	result := make([]rune, 0, len(contentRunes))
	i := 0
	for i < len(contentRunes) {
		if end, ok := matchAcrossTags(contentRunes, i, tokenRunes); ok {
			result = append(result, []rune(value)...)
			i = end
			continue
		}
		result = append(result, contentRunes[i])
		i++
	}
	return string(result)
}

// matchAcrossTags attempts to match token starting at pos, treating any
// <...> span as invisible. The scan window is bounded so a stray brace
// cannot make the matcher walk the whole document.
func matchAcrossTags(content []rune, pos int, token []rune) (int, bool) {
	idx := 0
	cur := pos
	inTag := false

	for cur < len(content) && idx < len(token) {
		ch := content[cur]
		switch {
		case ch == '<':
			inTag = true
		case ch == '>':
			inTag = false
		case !inTag:
			if ch != token[idx] {
				return pos, false
			}
			idx++
		}
		cur++

		if cur-pos > len(token)*10 {
			return pos, false
		}
	}

	return cur, idx == len(token)
}

func stripTags(content string) string {
	var b strings.Builder
	b.Grow(len(content))
	inTag := false
	for _, ch := range content {
		switch {
		case ch == '<':
			inTag = true
		case ch == '>':
			inTag = false
		case !inTag:
			b.WriteRune(ch)
		}
	}
	return b.String()
}

package service

import (
	"fmt"
	"strings"

	"github.com/sameerreddy213/certmaker-api/pkg/tabular"
)

// recipientPlaceholder is the placeholder conventionally bound to the
// recipient's name. When a column maps to it, that column also names the
// certificate.
const recipientPlaceholder = "recipientName"

// resolveFields projects one data row through the column-to-placeholder
// mapping. Columns missing from the row contribute an empty value, so a
// sparse row still fills every mapped placeholder.
func resolveFields(row tabular.Row, mappings map[string]string) map[string]string {
	fields := make(map[string]string, len(mappings))
	for column, placeholder := range mappings {
		if placeholder == "" {
			continue
		}
		fields[placeholder] = row[column]
	}
	return fields
}

// resolveRecipient picks a display name for a row: the column mapped to
// the recipient placeholder, then the first header column, then a
// positional fallback. Candidate columns are walked in header order so
// two columns mapped to the recipient placeholder resolve the same way
// on every run.
func resolveRecipient(row tabular.Row, headers []string, mappings map[string]string, ordinal int) string {
	for _, column := range headers {
		if mappings[column] != recipientPlaceholder {
			continue
		}
		if name := strings.TrimSpace(row[column]); name != "" {
			return name
		}
	}
	if len(headers) > 0 {
		if name := strings.TrimSpace(row[headers[0]]); name != "" {
			return name
		}
	}
	return fmt.Sprintf("Recipient %d", ordinal+1)
}

// safeFilename lowercases a recipient name and keeps only filesystem-safe
// runes. An empty result means the caller should fall back to a generated
// name.
func safeFilename(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '.':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-.")
}

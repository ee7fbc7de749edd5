package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sameerreddy213/certmaker-api/pkg/tabular"
)

func TestResolveFields(t *testing.T) {
	row := tabular.Row{"Name": "Jane Doe", "Course": "Go", "Extra": "ignored"}
	mappings := map[string]string{"Name": "recipientName", "Course": "courseName", "Missing": "eventDate"}

	fields := resolveFields(row, mappings)
	require.Equal(t, map[string]string{
		"recipientName": "Jane Doe",
		"courseName":    "Go",
		"eventDate":     "",
	}, fields)
}

func TestResolveFieldsSkipsEmptyPlaceholder(t *testing.T) {
	fields := resolveFields(tabular.Row{"Name": "Jane"}, map[string]string{"Name": ""})
	require.Empty(t, fields)
}

func TestResolveRecipientFallbackChain(t *testing.T) {
	headers := []string{"Name", "Course"}
	mappings := map[string]string{"Name": "recipientName"}

	// Mapped recipient column wins.
	require.Equal(t, "Jane Doe", resolveRecipient(tabular.Row{"Name": "Jane Doe"}, headers, mappings, 0))

	// Blank mapped value falls back to the first header column.
	require.Equal(t, "Go", resolveRecipient(tabular.Row{"Name": "  ", "Course": "x"}, []string{"Course"}, mappings, 0))

	// Nothing usable yields a positional name.
	require.Equal(t, "Recipient 3", resolveRecipient(tabular.Row{}, headers, map[string]string{}, 2))
}

func TestResolveRecipientDeterministicWithDuplicateMapping(t *testing.T) {
	headers := []string{"Preferred", "Legal"}
	mappings := map[string]string{"Legal": "recipientName", "Preferred": "recipientName"}
	row := tabular.Row{"Preferred": "Janie", "Legal": "Jane Doe"}

	// two columns map to the recipient placeholder; header order decides,
	// not map iteration order
	for i := 0; i < 50; i++ {
		require.Equal(t, "Janie", resolveRecipient(row, headers, mappings, 0))
	}

	// an empty earlier column defers to the next mapped one
	row["Preferred"] = " "
	require.Equal(t, "Jane Doe", resolveRecipient(row, headers, mappings, 0))
}

func TestSafeFilename(t *testing.T) {
	require.Equal(t, "jane-doe", safeFilename("Jane Doe"))
	require.Equal(t, "oconnor", safeFilename("O'Connor "))
	require.Equal(t, "", safeFilename("状元"))
	require.Equal(t, "a-b", safeFilename("-a b.-"))
}

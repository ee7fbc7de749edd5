// Package tabular parses uploaded spreadsheets into ordered row records.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for file extensions the loader does not handle.
var ErrUnsupportedFormat = errors.New("unsupported dataset format")

// Row maps a header column name to the stringified cell value.
type Row map[string]string

// Dataset is the parsed spreadsheet: the header in sheet order plus one
// record per data row. All rows share the header set; cells are coerced
// to strings at parse time.
type Dataset struct {
	Headers []string
	Rows    []Row
}

// Parse reads a spreadsheet file and dispatches on its extension.
// The first row is treated as the header; zero data rows yields an
// empty Dataset, which callers reject before creating a batch.
func Parse(path string) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		return parseXLSX(path)
	case ".csv":
		return parseCSV(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func parseXLSX(path string) (*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return &Dataset{}, nil
	}

	return buildDataset(rows[0], rows[1:]), nil
}

func parseCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return &Dataset{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		records = append(records, record)
	}

	return buildDataset(header, records), nil
}

func buildDataset(header []string, records [][]string) *Dataset {
	headers := make([]string, 0, len(header))
	for _, cell := range header {
		name := strings.TrimSpace(cell)
		if name != "" {
			headers = append(headers, name)
		}
	}

	ds := &Dataset{Headers: headers}
	for _, record := range records {
		if isBlank(record) {
			continue
		}
		row := make(Row, len(headers))
		col := 0
		for _, cell := range header {
			name := strings.TrimSpace(cell)
			if name == "" {
				col++
				continue
			}
			if col < len(record) {
				row[name] = record[col]
			} else {
				row[name] = ""
			}
			col++
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

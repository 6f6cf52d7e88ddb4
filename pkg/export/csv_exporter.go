// Package export renders tabular query results as CSV or PDF documents.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"unicode/utf8"
)

// Dataset is a header row plus records keyed by header.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders a Dataset as delimited text.
type CSVExporter struct {
	comma rune
}

// NewCSVExporter builds an exporter whose default delimiter is a comma.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{comma: ','}
}

// ParseDelimiter accepts a single character or the names "tab", "comma",
// "semicolon" and "pipe". Empty selects a comma.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "", "comma":
		return ',', nil
	case "tab", `\t`:
		return '\t', nil
	case "semicolon":
		return ';', nil
	case "pipe":
		return '|', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q", s)
	}
	return r, nil
}

// Render writes data using the default delimiter.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	return e.RenderDelimited(data, e.comma)
}

// RenderDelimited writes data using comma as the field separator.
func (e *CSVExporter) RenderDelimited(data Dataset, comma rune) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	writer.Comma = comma
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	record := make([]string, len(data.Headers))
	for _, row := range data.Rows {
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

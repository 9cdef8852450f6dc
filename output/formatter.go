// Package output renders query result rows.
//
// Every formatter receives the declared column order alongside the rows so
// headers and JSON keys follow the query's COLUMNS instead of map order.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Formatter defines the interface for output formatters.
type Formatter interface {
	// Format writes rows, using columns as the column order
	Format(columns []string, rows []map[string]interface{}) error

	// SetOutput changes the output writer
	SetOutput(w io.Writer)
}

// Supported format names
const (
	FormatJSONL = "jsonl"
	FormatJSON  = "json"
	FormatCSV   = "csv"
	FormatTable = "table"
)

// Formats lists the names accepted by New
var Formats = []string{FormatJSONL, FormatJSON, FormatCSV, FormatTable}

// New returns the formatter registered under name, writing to w
func New(name string, w io.Writer) (Formatter, error) {
	switch strings.ToLower(name) {
	case FormatJSONL:
		return NewJSONLinesFormatter(w), nil
	case FormatJSON:
		return NewJSONFormatter(w), nil
	case FormatCSV:
		return NewCSVFormatter(w), nil
	case FormatTable:
		return NewTableFormatter(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (expected one of %s)", name, strings.Join(Formats, ", "))
	}
}

package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// CSVFormatter outputs rows as CSV format
type CSVFormatter struct {
	writer io.Writer
}

// NewCSVFormatter creates a new CSV formatter
func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{writer: w}
}

// SetOutput sets the output writer
func (c *CSVFormatter) SetOutput(w io.Writer) {
	c.writer = w
}

// Format writes a header row followed by one record per row
func (c *CSVFormatter) Format(columns []string, rows []map[string]interface{}) error {
	columns = resolveColumns(columns, rows)
	if len(columns) == 0 {
		return nil
	}

	csvWriter := csv.NewWriter(c.writer)
	if err := csvWriter.Write(columns); err != nil {
		return err
	}
	for _, row := range rows {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = sanitizeCell(formatValue(row[col]))
		}
		if err := csvWriter.Write(record); err != nil {
			return err
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return nil
}

// resolveColumns returns columns, or the sorted union of row keys when no
// columns are declared
func resolveColumns(columns []string, rows []map[string]interface{}) []string {
	if len(columns) > 0 {
		return columns
	}
	columnSet := make(map[string]bool)
	for _, row := range rows {
		for col := range row {
			columnSet[col] = true
		}
	}
	resolved := make([]string, 0, len(columnSet))
	for col := range columnSet {
		resolved = append(resolved, col)
	}
	sort.Strings(resolved)
	return resolved
}

// formatValue converts a value to its text form
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// sanitizeCell guards against CSV injection by quoting values that a
// spreadsheet would evaluate as a formula. Plain negative numbers pass.
func sanitizeCell(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '\n', '|':
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return s
		}
		return "'" + strings.ReplaceAll(s, "'", "''")
	}
	return s
}

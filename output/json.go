package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// JSONLinesFormatter outputs rows as JSON Lines format
type JSONLinesFormatter struct {
	writer io.Writer
}

// NewJSONLinesFormatter creates a new JSON Lines formatter
func NewJSONLinesFormatter(w io.Writer) *JSONLinesFormatter {
	return &JSONLinesFormatter{writer: w}
}

// SetOutput sets the output writer
func (j *JSONLinesFormatter) SetOutput(w io.Writer) {
	j.writer = w
}

// Format writes one JSON object per line with keys in column order
func (j *JSONLinesFormatter) Format(columns []string, rows []map[string]interface{}) error {
	for _, row := range rows {
		line, err := marshalOrdered(columns, row)
		if err != nil {
			return err
		}
		line = append(line, '\n')
		if _, err := j.writer.Write(line); err != nil {
			return err
		}
	}
	return nil
}

// JSONFormatter outputs a single {"result": [...]} document, the same body
// the HTTP server returns for a query
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a new JSON document formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// SetOutput sets the output writer
func (j *JSONFormatter) SetOutput(w io.Writer) {
	j.writer = w
}

// Format writes all rows as one JSON document
func (j *JSONFormatter) Format(columns []string, rows []map[string]interface{}) error {
	var buf bytes.Buffer
	buf.WriteString(`{"result":[`)
	for i, row := range rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		obj, err := marshalOrdered(columns, row)
		if err != nil {
			return err
		}
		buf.Write(obj)
	}
	buf.WriteString("]}\n")
	_, err := j.writer.Write(buf.Bytes())
	return err
}

// marshalOrdered encodes row as a JSON object whose keys follow columns.
// Keys of row that are not listed in columns are appended in no particular
// order after them.
func marshalOrdered(columns []string, row map[string]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	written := make(map[string]bool, len(row))
	first := true

	writeField := func(key string, value interface{}) error {
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode column %s: %w", key, err)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	for _, col := range columns {
		value, ok := row[col]
		if !ok || written[col] {
			continue
		}
		written[col] = true
		if err := writeField(col, value); err != nil {
			return nil, err
		}
	}
	for key, value := range row {
		if written[key] {
			continue
		}
		if err := writeField(key, value); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

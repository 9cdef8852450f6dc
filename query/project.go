package query

import (
	"sort"

	"github.com/vegasq/insightq"
	"github.com/vegasq/insightq/dataset"
)

// ProjectRecords builds one output row per record with exactly the given
// columns. Every column must be a qualified key of a catalog field.
func ProjectRecords(records []dataset.Record, columns []string) ([]map[string]interface{}, error) {
	result := make([]map[string]interface{}, 0, len(records))
	for _, r := range records {
		row, err := projectRow(columns, func(col string) (interface{}, bool) {
			key, ok := ParseKey(col)
			if !ok {
				return nil, false
			}
			return dataset.Value(r, key.Field)
		})
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, nil
}

// ProjectGroups builds one output row per group. Qualified columns resolve
// against the GROUP values and plain names against the aggregates.
func ProjectGroups(groups []GroupedRow, columns []string) ([]map[string]interface{}, error) {
	result := make([]map[string]interface{}, 0, len(groups))
	for _, g := range groups {
		row, err := projectRow(columns, func(col string) (interface{}, bool) {
			if _, ok := ParseKey(col); ok {
				v, ok := g.Group[col]
				return v, ok
			}
			v, ok := g.Aggregate[col]
			return v, ok
		})
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, nil
}

func projectRow(columns []string, lookup func(string) (interface{}, bool)) (map[string]interface{}, error) {
	row := make(map[string]interface{}, len(columns))
	for _, col := range columns {
		if col == "" {
			return nil, insightq.ValidationErr("column name is empty", nil)
		}
		value, ok := lookup(col)
		if !ok || value == nil {
			return nil, insightq.ValidationErr("column value not found", map[string]any{"column": col})
		}
		row[col] = value
	}
	return row, nil
}

// ApplyOrder sorts a copy of rows by order.
//
// A single-key order sorts ascending. A multi-key order compares keys in
// turn; the first unequal key decides, UP ascending and DOWN descending.
// Both sorts are stable, so rows equal on every key keep their input order.
func ApplyOrder(rows []map[string]interface{}, order *Order) ([]map[string]interface{}, error) {
	if order == nil || len(rows) == 0 {
		return rows, nil
	}
	if len(order.Keys) == 0 {
		return nil, insightq.ValidationErr("ORDER has no keys", nil)
	}

	desc := false
	switch order.Dir {
	case "", Up:
	case Down:
		desc = true
	default:
		return nil, insightq.ValidationErr("ORDER dir must be UP or DOWN", map[string]any{"dir": order.Dir})
	}

	sorted := make([]map[string]interface{}, len(rows))
	copy(sorted, rows)

	sort.SliceStable(sorted, func(i, j int) bool {
		for _, key := range order.Keys {
			cmp := compareValues(sorted[i][key], sorted[j][key])
			if cmp != 0 {
				if desc {
					return cmp > 0
				}
				return cmp < 0
			}
		}
		return false
	})

	return sorted, nil
}

// compareValues compares two values and returns:
// -1 if a < b
//
//	0 if a == b
//
// +1 if a > b
func compareValues(a, b interface{}) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	aNum, aIsNum := toFloat64(a)
	bNum, bIsNum := toFloat64(b)
	if aIsNum && bIsNum {
		if aNum < bNum {
			return -1
		}
		if aNum > bNum {
			return 1
		}
		return 0
	}

	aStr, aIsStr := a.(string)
	bStr, bIsStr := b.(string)
	if aIsStr && bIsStr {
		if aStr < bStr {
			return -1
		}
		if aStr > bStr {
			return 1
		}
		return 0
	}

	// Numbers sort before strings
	if aIsNum {
		return -1
	}
	return 1
}

func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	default:
		return 0, false
	}
}

package query

import (
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/vegasq/insightq"
	"github.com/vegasq/insightq/dataset"
)

// Matches evaluates filter f against record r of the given kind.
//
// And and Or short-circuit. A field outside the kind's catalog, or of the
// wrong type for its comparator, fails the whole evaluation.
func Matches(r dataset.Record, f Filter, kind dataset.Kind) (bool, error) {
	switch f := f.(type) {
	case All:
		return true, nil

	case And:
		for _, child := range f.Children {
			ok, err := Matches(r, child, kind)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case Or:
		for _, child := range f.Children {
			ok, err := Matches(r, child, kind)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case Not:
		ok, err := Matches(r, f.Child, kind)
		if err != nil {
			return false, err
		}
		return !ok, nil

	case Compare:
		return compare(r, f, kind)

	case Match:
		if !dataset.IsDimensionField(kind, f.Key.Field) {
			return false, insightq.ValidationErr("IS field is not a string field", map[string]any{"key": f.Key.String()})
		}
		value, _ := r.Dimension(f.Key.Field)
		return wildcardMatch(f.Pattern, value)

	default:
		return false, insightq.ValidationErr("unknown filter", map[string]any{"filter": f})
	}
}

func compare(r dataset.Record, f Compare, kind dataset.Kind) (bool, error) {
	if !dataset.IsMeasureField(kind, f.Key.Field) {
		return false, insightq.ValidationErr("comparison field is not a numeric field", map[string]any{"key": f.Key.String()})
	}
	value, _ := r.Measure(f.Key.Field)

	switch f.Op {
	case GT:
		return value > f.Value, nil
	case LT:
		return value < f.Value, nil
	case EQ:
		return value == f.Value, nil
	default:
		return false, insightq.ValidationErr("invalid comparator", map[string]any{"op": f.Op})
	}
}

// wildcardMatch matches value against pattern. A '*' may appear only as the
// first and/or last character: "*x" is ends-with, "x*" starts-with and "*x*"
// contains. Without '*' the match is exact.
func wildcardMatch(pattern, value string) (bool, error) {
	prefix, suffix, term, err := splitPattern(pattern)
	if err != nil {
		return false, err
	}

	switch {
	case prefix && suffix:
		return strings.Contains(value, term), nil
	case prefix:
		return strings.HasSuffix(value, term), nil
	case suffix:
		return strings.HasPrefix(value, term), nil
	default:
		return value == term, nil
	}
}

// splitPattern strips the boundary wildcards of pattern
func splitPattern(pattern string) (prefix, suffix bool, term string, err error) {
	prefix = strings.HasPrefix(pattern, "*")
	suffix = len(pattern) > 1 && strings.HasSuffix(pattern, "*")

	term = pattern
	if prefix {
		term = term[1:]
	}
	if suffix {
		term = term[:len(term)-1]
	}
	if strings.Contains(term, "*") {
		return false, false, "", insightq.ValidationErr("wildcard not at boundary", map[string]any{"pattern": pattern})
	}
	return prefix, suffix, term, nil
}

// ApplyFilter returns the records of rows matching f, in input order
func ApplyFilter(rows []dataset.Record, f Filter, kind dataset.Kind) ([]dataset.Record, error) {
	if _, ok := f.(All); ok {
		return rows, nil
	}

	var result []dataset.Record
	for _, r := range rows {
		ok, err := Matches(r, f, kind)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, r)
		}
	}
	return result, nil
}

// ApplyFilterPool filters rows in contiguous chunks on pool and concatenates
// the chunk results, so the output order equals the input order.
func ApplyFilterPool(pool *ants.Pool, rows []dataset.Record, f Filter, kind dataset.Kind) ([]dataset.Record, error) {
	if _, ok := f.(All); ok {
		return rows, nil
	}

	workers := pool.Cap()
	if workers <= 0 {
		workers = 1
	}
	chunkSize := (len(rows) + workers - 1) / workers
	if chunkSize == 0 {
		return nil, nil
	}

	type chunkResult struct {
		rows []dataset.Record
		err  error
	}
	results := make([]chunkResult, (len(rows)+chunkSize-1)/chunkSize)

	var wg sync.WaitGroup
	for i := range results {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]
		slot := &results[i]

		task := func() {
			defer wg.Done()
			slot.rows, slot.err = ApplyFilter(chunk, f, kind)
		}

		wg.Add(1)
		if err := pool.Submit(task); err != nil {
			// Pool closed or overloaded: run the chunk on this goroutine.
			task()
		}
	}
	wg.Wait()

	var filtered []dataset.Record
	for _, res := range results {
		if res.err != nil {
			return nil, res.err
		}
		filtered = append(filtered, res.rows...)
	}
	return filtered, nil
}

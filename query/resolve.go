package query

import (
	"github.com/vegasq/insightq"
	"github.com/vegasq/insightq/dataset"
)

// Source looks up registered datasets by id
type Source interface {
	Get(id string) (*dataset.Dataset, bool)
}

// TargetID returns the dataset id a query targets: the first GROUP key when
// the query has transformations, otherwise the first column.
func TargetID(q *Query) (string, error) {
	if q.Transformations != nil {
		if len(q.Transformations.Group) == 0 {
			return "", insightq.ValidationErr("GROUP is empty", nil)
		}
		return q.Transformations.Group[0].Dataset, nil
	}

	if len(q.Options.Columns) == 0 {
		return "", insightq.ValidationErr("COLUMNS is empty", nil)
	}
	key, ok := ParseKey(q.Options.Columns[0])
	if !ok {
		return "", insightq.ValidationErr("first column is not a qualified key", map[string]any{"column": q.Options.Columns[0]})
	}
	return key.Dataset, nil
}

// Resolve checks q against the datasets in src and returns the single
// dataset it targets.
//
// Every qualified key in the query must name the same dataset, that dataset
// must be registered, and every field must belong to its kind's catalog with
// the right type for the place it is used in.
func Resolve(q *Query, src Source) (*dataset.Dataset, error) {
	id, err := TargetID(q)
	if err != nil {
		return nil, err
	}

	for _, key := range q.keys() {
		if key.Dataset != id {
			return nil, insightq.ValidationErr("mismatched dataset ids", map[string]any{
				"target": id,
				"found":  key.Dataset,
			})
		}
	}

	ds, ok := src.Get(id)
	if !ok {
		return nil, insightq.ValidationErr("dataset not found", map[string]any{"id": id})
	}

	if err := validateFilterFields(q.Where, ds.Kind); err != nil {
		return nil, err
	}
	if q.Transformations != nil {
		if err := validateTransformations(q.Transformations, q.Options.Columns, ds.Kind); err != nil {
			return nil, err
		}
	} else if err := validateColumns(q.Options.Columns, ds.Kind); err != nil {
		return nil, err
	}
	if err := validateOrder(q.Options); err != nil {
		return nil, err
	}

	return ds, nil
}

func validateFilterFields(f Filter, kind dataset.Kind) error {
	switch f := f.(type) {
	case All:
		return nil
	case And:
		for _, child := range f.Children {
			if err := validateFilterFields(child, kind); err != nil {
				return err
			}
		}
	case Or:
		for _, child := range f.Children {
			if err := validateFilterFields(child, kind); err != nil {
				return err
			}
		}
	case Not:
		return validateFilterFields(f.Child, kind)
	case Compare:
		if !dataset.IsMeasureField(kind, f.Key.Field) {
			return insightq.ValidationErr("comparison field is not a numeric field", map[string]any{"key": f.Key.String()})
		}
	case Match:
		if !dataset.IsDimensionField(kind, f.Key.Field) {
			return insightq.ValidationErr("IS field is not a string field", map[string]any{"key": f.Key.String()})
		}
		if _, _, _, err := splitPattern(f.Pattern); err != nil {
			return err
		}
	default:
		return insightq.ValidationErr("unknown filter", map[string]any{"filter": f})
	}
	return nil
}

func validateColumns(columns []string, kind dataset.Kind) error {
	for _, col := range columns {
		key, ok := ParseKey(col)
		if !ok {
			return insightq.ValidationErr("column is not a qualified key", map[string]any{"column": col})
		}
		if !dataset.IsField(kind, key.Field) {
			return insightq.ValidationErr("invalid column field", map[string]any{"column": col})
		}
	}
	return nil
}

func validateTransformations(t *Transformations, columns []string, kind dataset.Kind) error {
	names := make(map[string]bool, len(t.Group)+len(t.Apply))

	for _, key := range t.Group {
		if !dataset.IsField(kind, key.Field) {
			return insightq.ValidationErr("invalid GROUP field", map[string]any{"key": key.String()})
		}
		names[key.String()] = true
	}

	applied := make(map[string]bool, len(t.Apply))
	for _, rule := range t.Apply {
		if applied[rule.Name] {
			return insightq.ValidationErr("duplicate apply name", map[string]any{"name": rule.Name})
		}
		if names[rule.Name] {
			return insightq.ValidationErr("apply name collides with a GROUP key", map[string]any{"name": rule.Name})
		}
		applied[rule.Name] = true

		switch rule.Op {
		case OpMax, OpMin, OpAvg, OpSum:
			if !dataset.IsMeasureField(kind, rule.Key.Field) {
				return insightq.ValidationErr("aggregation key is not numeric", map[string]any{"name": rule.Name, "key": rule.Key.String()})
			}
		case OpCount:
			if !dataset.IsField(kind, rule.Key.Field) {
				return insightq.ValidationErr("invalid aggregation key", map[string]any{"name": rule.Name, "key": rule.Key.String()})
			}
		default:
			return insightq.ValidationErr("invalid aggregation operator", map[string]any{"op": rule.Op})
		}
	}

	for name := range applied {
		names[name] = true
	}
	for _, col := range columns {
		if !names[col] {
			return insightq.ValidationErr("apply keys do not match columns", map[string]any{"column": col})
		}
	}
	return nil
}

func validateOrder(opts Options) error {
	if opts.Order == nil {
		return nil
	}
	if len(opts.Order.Keys) == 0 {
		return insightq.ValidationErr("ORDER has no keys", nil)
	}
	if opts.Order.Dir != "" && opts.Order.Dir != Up && opts.Order.Dir != Down {
		return insightq.ValidationErr("ORDER dir must be UP or DOWN", map[string]any{"dir": opts.Order.Dir})
	}
	for _, key := range opts.Order.Keys {
		if !contains(opts.Columns, key) {
			return insightq.ValidationErr("ORDER key is not in COLUMNS", map[string]any{"key": key})
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

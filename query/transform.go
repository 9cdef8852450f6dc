package query

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vegasq/insightq"
	"github.com/vegasq/insightq/dataset"
)

// GroupedRow is one group after aggregation. Member records are not kept.
type GroupedRow struct {
	Group     map[string]interface{} // qualified GROUP key -> value
	Aggregate map[string]interface{} // apply name -> value
}

// group holds the members of one distinct GROUP key tuple
type group struct {
	values  map[string]interface{}
	members []dataset.Record
}

// Transform groups rows by t.Group and computes t.Apply for every group.
//
// Groups are emitted in order of first appearance and members keep their
// input order. No rows yields no groups.
func Transform(rows []dataset.Record, t *Transformations, kind dataset.Kind) ([]GroupedRow, error) {
	groups, err := groupRows(rows, t.Group)
	if err != nil {
		return nil, err
	}

	result := make([]GroupedRow, 0, len(groups))
	for _, g := range groups {
		aggregates := make(map[string]interface{}, len(t.Apply))
		for _, rule := range t.Apply {
			if _, exists := aggregates[rule.Name]; exists {
				return nil, insightq.ValidationErr("duplicate apply name", map[string]any{"name": rule.Name})
			}
			value, err := aggregate(rule, g.members, kind)
			if err != nil {
				return nil, err
			}
			aggregates[rule.Name] = value
		}
		result = append(result, GroupedRow{Group: g.values, Aggregate: aggregates})
	}
	return result, nil
}

func groupRows(rows []dataset.Record, keys []Key) ([]*group, error) {
	var groups []*group
	index := make(map[string]*group)

	for _, r := range rows {
		key, values, err := computeGroupKey(r, keys)
		if err != nil {
			return nil, err
		}

		if g, exists := index[key]; exists {
			g.members = append(g.members, r)
			continue
		}
		g := &group{values: values, members: []dataset.Record{r}}
		index[key] = g
		groups = append(groups, g)
	}
	return groups, nil
}

// computeGroupKey builds a map key from the GROUP field values of r
func computeGroupKey(r dataset.Record, keys []Key) (string, map[string]interface{}, error) {
	var keyBuilder strings.Builder
	values := make(map[string]interface{}, len(keys))

	for i, key := range keys {
		value, ok := dataset.Value(r, key.Field)
		if !ok {
			return "", nil, insightq.ValidationErr("invalid GROUP field", map[string]any{"key": key.String()})
		}

		if i > 0 {
			keyBuilder.WriteString("\x00||\x00")
		}
		// %#v keeps 1 and "1" apart
		keyBuilder.WriteString(fmt.Sprintf("%#v", value))
		values[key.String()] = value
	}
	return keyBuilder.String(), values, nil
}

func aggregate(rule ApplyRule, members []dataset.Record, kind dataset.Kind) (float64, error) {
	switch rule.Op {
	case OpMax, OpMin, OpAvg, OpSum:
		if !dataset.IsMeasureField(kind, rule.Key.Field) {
			return 0, insightq.ValidationErr("aggregation key is not numeric", map[string]any{"name": rule.Name, "key": rule.Key.String()})
		}
	case OpCount:
		if !dataset.IsField(kind, rule.Key.Field) {
			return 0, insightq.ValidationErr("invalid aggregation key", map[string]any{"name": rule.Name, "key": rule.Key.String()})
		}
	default:
		return 0, insightq.ValidationErr("invalid aggregation operator", map[string]any{"op": rule.Op})
	}

	switch rule.Op {
	case OpMax:
		return evaluateMax(members, rule.Key.Field), nil
	case OpMin:
		return evaluateMin(members, rule.Key.Field), nil
	case OpAvg:
		return evaluateAvg(members, rule.Key.Field), nil
	case OpSum:
		return evaluateSum(members, rule.Key.Field), nil
	default:
		return evaluateCount(members, rule.Key.Field), nil
	}
}

func evaluateMax(members []dataset.Record, field string) float64 {
	result := math.Inf(-1)
	for _, r := range members {
		if v, ok := r.Measure(field); ok && v > result {
			result = v
		}
	}
	return result
}

func evaluateMin(members []dataset.Record, field string) float64 {
	result := math.Inf(1)
	for _, r := range members {
		if v, ok := r.Measure(field); ok && v < result {
			result = v
		}
	}
	return result
}

// decimalSum adds the field values of members without float accumulation drift
func decimalSum(members []dataset.Record, field string) decimal.Decimal {
	total := decimal.Zero
	for _, r := range members {
		if v, ok := r.Measure(field); ok {
			total = total.Add(decimal.NewFromFloat(v))
		}
	}
	return total
}

// evaluateAvg rounds half away from zero to two places
func evaluateAvg(members []dataset.Record, field string) float64 {
	if len(members) == 0 {
		return 0
	}
	avg := decimalSum(members, field).Div(decimal.NewFromInt(int64(len(members))))
	return avg.Round(2).InexactFloat64()
}

func evaluateSum(members []dataset.Record, field string) float64 {
	return decimalSum(members, field).Round(2).InexactFloat64()
}

// evaluateCount counts distinct values, not members
func evaluateCount(members []dataset.Record, field string) float64 {
	seen := make(map[interface{}]struct{}, len(members))
	for _, r := range members {
		if v, ok := dataset.Value(r, field); ok {
			seen[v] = struct{}{}
		}
	}
	return float64(len(seen))
}

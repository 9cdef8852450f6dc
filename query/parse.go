package query

import (
	_ "embed"
	"encoding/json"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/vegasq/insightq"
)

//go:embed schema.json
var schemaJSON string

var querySchema = mustCompileSchema(schemaJSON)

func mustCompileSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic("query: invalid embedded schema: " + err.Error())
	}
	return schema
}

// Parse decodes a JSON query document into a Query.
//
// The document is first checked against the query schema for its overall
// shape, then every filter, transformation and order clause is decoded into
// the typed tree. Field names are not checked against a dataset here; see
// Resolve.
func Parse(raw []byte) (*Query, error) {
	if err := ValidateQueryLength(raw); err != nil {
		return nil, err
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, insightq.ValidationErr("query is not a JSON object", map[string]any{"err": err})
	}
	return ParseObject(doc)
}

// ParseObject decodes an already unmarshalled query document
func ParseObject(doc map[string]interface{}) (*Query, error) {
	if doc == nil {
		return nil, insightq.ValidationErr("query is empty", nil)
	}
	if err := validateShape(doc); err != nil {
		return nil, err
	}

	q := &Query{}

	where, err := parseFilter(doc["WHERE"], newDepthCounter())
	if err != nil {
		return nil, err
	}
	q.Where = where

	opts := doc["OPTIONS"].(map[string]interface{})
	q.Options.Columns = toStrings(opts["COLUMNS"].([]interface{}))

	if raw, ok := doc["TRANSFORMATIONS"]; ok {
		t, err := parseTransformations(raw.(map[string]interface{}))
		if err != nil {
			return nil, err
		}
		q.Transformations = t
	}

	if raw, ok := opts["ORDER"]; ok {
		order, err := parseOrder(raw)
		if err != nil {
			return nil, err
		}
		q.Options.Order = order
	}

	return q, nil
}

func validateShape(doc map[string]interface{}) error {
	result, err := querySchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return insightq.ValidationErr("query schema validation failed", map[string]any{"err": err})
	}
	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		sort.Strings(errs)
		return insightq.ValidationErr("query does not match schema", map[string]any{"errors": errs})
	}
	return nil
}

func parseFilter(v interface{}, depth *depthCounter) (Filter, error) {
	if err := depth.Enter(); err != nil {
		return nil, err
	}
	defer depth.Exit()

	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, insightq.ValidationErr("filter must be an object", map[string]any{"filter": v})
	}
	if len(obj) == 0 {
		return All{}, nil
	}
	if len(obj) > 1 {
		return nil, insightq.ValidationErr("filter must have exactly one key", map[string]any{"keys": sortedKeys(obj)})
	}

	for op, operand := range obj {
		switch op {
		case "AND", "OR":
			children, err := parseFilterList(op, operand, depth)
			if err != nil {
				return nil, err
			}
			if op == "AND" {
				return And{Children: children}, nil
			}
			return Or{Children: children}, nil

		case "NOT":
			inner, ok := operand.(map[string]interface{})
			if !ok {
				return nil, insightq.ValidationErr("NOT operand must be an object", nil)
			}
			if len(inner) == 0 {
				return nil, insightq.ValidationErr("no conditions provided", map[string]any{"op": op})
			}
			child, err := parseFilter(inner, depth)
			if err != nil {
				return nil, err
			}
			return Not{Child: child}, nil

		case string(GT), string(LT), string(EQ):
			key, value, err := parseOperand(op, operand)
			if err != nil {
				return nil, err
			}
			num, ok := value.(float64)
			if !ok {
				return nil, insightq.ValidationErr("comparison value must be a number", map[string]any{"op": op, "value": value})
			}
			return Compare{Op: Comparator(op), Key: key, Value: num}, nil

		case "IS":
			key, value, err := parseOperand(op, operand)
			if err != nil {
				return nil, err
			}
			pattern, ok := value.(string)
			if !ok {
				return nil, insightq.ValidationErr("IS value must be a string", map[string]any{"value": value})
			}
			return Match{Key: key, Pattern: pattern}, nil

		default:
			return nil, insightq.ValidationErr("invalid filter key", map[string]any{"key": op})
		}
	}
	panic("unreachable")
}

func parseFilterList(op string, operand interface{}, depth *depthCounter) ([]Filter, error) {
	list, ok := operand.([]interface{})
	if !ok {
		return nil, insightq.ValidationErr(op+" operand must be an array", nil)
	}
	children := make([]Filter, 0, len(list))
	for _, item := range list {
		child, err := parseFilter(item, depth)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// parseOperand decodes a comparator operand such as {"sections_avg": 97}
func parseOperand(op string, operand interface{}) (Key, interface{}, error) {
	obj, ok := operand.(map[string]interface{})
	if !ok {
		return Key{}, nil, insightq.ValidationErr(op+" operand must be an object", nil)
	}
	if len(obj) == 0 {
		return Key{}, nil, insightq.ValidationErr("no conditions provided", map[string]any{"op": op})
	}
	if len(obj) > 1 {
		return Key{}, nil, insightq.ValidationErr(op+" operand must have exactly one key", map[string]any{"keys": sortedKeys(obj)})
	}
	for name, value := range obj {
		key, ok := ParseKey(name)
		if !ok {
			return Key{}, nil, insightq.ValidationErr("invalid qualified key", map[string]any{"key": name})
		}
		return key, value, nil
	}
	panic("unreachable")
}

func parseTransformations(obj map[string]interface{}) (*Transformations, error) {
	t := &Transformations{}

	for _, name := range toStrings(obj["GROUP"].([]interface{})) {
		key, ok := ParseKey(name)
		if !ok {
			return nil, insightq.ValidationErr("GROUP key is not a qualified key", map[string]any{"key": name})
		}
		t.Group = append(t.Group, key)
	}

	for _, item := range obj["APPLY"].([]interface{}) {
		rule, err := parseApplyRule(item.(map[string]interface{}))
		if err != nil {
			return nil, err
		}
		t.Apply = append(t.Apply, rule)
	}

	return t, nil
}

// parseApplyRule decodes {"<name>": {"<OP>": "<qualified key>"}}
func parseApplyRule(obj map[string]interface{}) (ApplyRule, error) {
	for name, body := range obj {
		if strings.TrimSpace(name) == "" {
			return ApplyRule{}, insightq.ValidationErr("apply name is empty", nil)
		}
		if strings.Contains(name, "_") {
			return ApplyRule{}, insightq.ValidationErr("apply name contains an underscore", map[string]any{"name": name})
		}

		inner, ok := body.(map[string]interface{})
		if !ok || len(inner) != 1 {
			return ApplyRule{}, insightq.ValidationErr("apply body must have exactly one operator", map[string]any{"name": name})
		}
		for op, target := range inner {
			switch ApplyOp(op) {
			case OpMax, OpMin, OpAvg, OpSum, OpCount:
			default:
				return ApplyRule{}, insightq.ValidationErr("invalid aggregation operator", map[string]any{"op": op})
			}
			field, ok := target.(string)
			if !ok {
				return ApplyRule{}, insightq.ValidationErr("apply target must be a string", map[string]any{"name": name})
			}
			key, ok := ParseKey(field)
			if !ok {
				return ApplyRule{}, insightq.ValidationErr("apply target is not a qualified key", map[string]any{"key": field})
			}
			return ApplyRule{Name: name, Op: ApplyOp(op), Key: key}, nil
		}
	}
	return ApplyRule{}, insightq.ValidationErr("apply rule is empty", nil)
}

func parseOrder(v interface{}) (*Order, error) {
	switch v := v.(type) {
	case string:
		return &Order{Keys: []string{v}}, nil

	case map[string]interface{}:
		if len(v) == 0 {
			return nil, insightq.ValidationErr("ORDER is empty", nil)
		}
		for name := range v {
			if name != "dir" && name != "keys" {
				return nil, insightq.ValidationErr("invalid ORDER key", map[string]any{"key": name})
			}
		}

		dir, ok := v["dir"].(string)
		if !ok {
			return nil, insightq.ValidationErr("ORDER dir is missing", nil)
		}
		if Direction(dir) != Up && Direction(dir) != Down {
			return nil, insightq.ValidationErr("ORDER dir must be UP or DOWN", map[string]any{"dir": dir})
		}

		list, ok := v["keys"].([]interface{})
		if !ok || len(list) == 0 {
			return nil, insightq.ValidationErr("ORDER keys must be a non-empty array", nil)
		}
		keys := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, insightq.ValidationErr("ORDER key must be a string", map[string]any{"key": item})
			}
			keys = append(keys, s)
		}
		return &Order{Dir: Direction(dir), Keys: keys}, nil

	default:
		return nil, insightq.ValidationErr("invalid ORDER", map[string]any{"order": v})
	}
}

func toStrings(list []interface{}) []string {
	out := make([]string, len(list))
	for i, v := range list {
		out[i], _ = v.(string)
	}
	return out
}

func sortedKeys(obj map[string]interface{}) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

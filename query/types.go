package query

import (
	"strings"
)

// Key is a qualified field reference of the form "<dataset>_<field>"
type Key struct {
	Dataset string
	Field   string
}

// ParseKey splits a qualified key at its first underscore.
// It reports false when s has no underscore or either side is empty.
func ParseKey(s string) (Key, bool) {
	i := strings.IndexByte(s, '_')
	if i <= 0 || i == len(s)-1 {
		return Key{}, false
	}
	return Key{Dataset: s[:i], Field: s[i+1:]}, true
}

func (k Key) String() string {
	return k.Dataset + "_" + k.Field
}

// Filter is a node of the WHERE expression tree.
//
// The set of implementations is closed: All, And, Or, Not, Compare, Match.
type Filter interface {
	isFilter()
}

// All matches every record
type All struct{}

// And matches when every child matches. An empty And matches everything.
type And struct {
	Children []Filter
}

// Or matches when at least one child matches. An empty Or matches nothing.
type Or struct {
	Children []Filter
}

// Not negates its child
type Not struct {
	Child Filter
}

// Comparator is a numeric comparison operator
type Comparator string

const (
	GT Comparator = "GT"
	LT Comparator = "LT"
	EQ Comparator = "EQ"
)

// Compare tests a measure field against a number
type Compare struct {
	Op    Comparator
	Key   Key
	Value float64
}

// Match tests a dimension field against a pattern that may carry a leading
// and/or trailing '*' wildcard
type Match struct {
	Key     Key
	Pattern string
}

func (All) isFilter()     {}
func (And) isFilter()     {}
func (Or) isFilter()      {}
func (Not) isFilter()     {}
func (Compare) isFilter() {}
func (Match) isFilter()   {}

// ApplyOp is an aggregation operator
type ApplyOp string

const (
	OpMax   ApplyOp = "MAX"
	OpMin   ApplyOp = "MIN"
	OpAvg   ApplyOp = "AVG"
	OpSum   ApplyOp = "SUM"
	OpCount ApplyOp = "COUNT"
)

// ApplyRule is a named aggregation computed per group
type ApplyRule struct {
	Name string
	Op   ApplyOp
	Key  Key
}

// Transformations groups filtered records and aggregates each group
type Transformations struct {
	Group []Key
	Apply []ApplyRule
}

// Direction is a multi-key sort direction
type Direction string

const (
	Up   Direction = "UP"
	Down Direction = "DOWN"
)

// Order describes how the result is sorted.
//
// A single-key order has an empty Dir and exactly one key and sorts
// ascending. A multi-key order has Dir set and at least one key.
type Order struct {
	Dir  Direction
	Keys []string
}

// Options selects and orders the output columns
type Options struct {
	Columns []string
	Order   *Order
}

// Query is a decoded query
type Query struct {
	Where           Filter
	Options         Options
	Transformations *Transformations
}

// keys returns every qualified key referenced anywhere in q, in the order
// WHERE, GROUP, APPLY, COLUMNS, ORDER. Unqualified names are skipped.
func (q *Query) keys() []Key {
	var keys []Key
	keys = appendFilterKeys(keys, q.Where)
	if q.Transformations != nil {
		keys = append(keys, q.Transformations.Group...)
		for _, rule := range q.Transformations.Apply {
			keys = append(keys, rule.Key)
		}
	}
	for _, col := range q.Options.Columns {
		if k, ok := ParseKey(col); ok {
			keys = append(keys, k)
		}
	}
	if q.Options.Order != nil {
		for _, col := range q.Options.Order.Keys {
			if k, ok := ParseKey(col); ok {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

func appendFilterKeys(keys []Key, f Filter) []Key {
	switch f := f.(type) {
	case And:
		for _, child := range f.Children {
			keys = appendFilterKeys(keys, child)
		}
	case Or:
		for _, child := range f.Children {
			keys = appendFilterKeys(keys, child)
		}
	case Not:
		keys = appendFilterKeys(keys, f.Child)
	case Compare:
		keys = append(keys, f.Key)
	case Match:
		keys = append(keys, f.Key)
	}
	return keys
}

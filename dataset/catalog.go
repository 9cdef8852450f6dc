package dataset

// fieldSet lists the measure (numeric) and dimension (string) fields of a kind
type fieldSet struct {
	measures   []string
	dimensions []string
}

var catalog = map[Kind]fieldSet{
	KindSections: {
		measures:   []string{"avg", "pass", "fail", "audit", "year"},
		dimensions: []string{"dept", "id", "instructor", "title", "uuid"},
	},
	KindRooms: {
		measures:   []string{"lat", "lon", "seats"},
		dimensions: []string{"fullname", "shortname", "number", "name", "address", "type", "furniture", "href"},
	},
}

// IsMeasureField reports whether field is a numeric field of kind
func IsMeasureField(kind Kind, field string) bool {
	return contains(catalog[kind].measures, field)
}

// IsDimensionField reports whether field is a string field of kind
func IsDimensionField(kind Kind, field string) bool {
	return contains(catalog[kind].dimensions, field)
}

// IsField reports whether field belongs to the catalog of kind
func IsField(kind Kind, field string) bool {
	return IsMeasureField(kind, field) || IsDimensionField(kind, field)
}

// Fields returns every field name of kind, measures first
func Fields(kind Kind) []string {
	set := catalog[kind]
	fields := make([]string, 0, len(set.measures)+len(set.dimensions))
	fields = append(fields, set.measures...)
	return append(fields, set.dimensions...)
}

// Value returns a record field as a float64 (measure) or string (dimension).
// It reports false when field is not in the record kind's catalog.
func Value(r Record, field string) (interface{}, bool) {
	kind := r.Kind()
	if IsMeasureField(kind, field) {
		return r.Measure(field)
	}
	if IsDimensionField(kind, field) {
		return r.Dimension(field)
	}
	return nil, false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

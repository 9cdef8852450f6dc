// Package query decodes and evaluates JSON queries over a single dataset.
//
// A query has a WHERE filter, OPTIONS with the output COLUMNS and an
// optional ORDER, and optional TRANSFORMATIONS that group the filtered
// records and aggregate each group:
//
//	{
//	    "WHERE": {"GT": {"sections_avg": 97}},
//	    "OPTIONS": {
//	        "COLUMNS": ["sections_dept", "maxAvg"],
//	        "ORDER": {"dir": "DOWN", "keys": ["maxAvg"]}
//	    },
//	    "TRANSFORMATIONS": {
//	        "GROUP": ["sections_dept"],
//	        "APPLY": [{"maxAvg": {"MAX": "sections_avg"}}]
//	    }
//	}
//
// # Filters
//
// WHERE is {} (match everything) or an object with exactly one key:
// AND and OR take an array of filters, NOT takes a filter, GT, LT and EQ
// compare a numeric field with a number, and IS compares a string field with
// a pattern. A pattern may start and/or end with '*':
//
//	{"IS": {"sections_dept": "cp*"}}   // starts with "cp"
//	{"IS": {"sections_dept": "*sc"}}   // ends with "sc"
//	{"IS": {"sections_dept": "*ps*"}}  // contains "ps"
//
// # Evaluation
//
// Every qualified key ("<dataset>_<field>") must name the same dataset. The
// pipeline is resolve, filter, transform, cap, project and sort:
//
//	engine := query.NewEngine(store)
//	rows, err := engine.EvaluateJSON(raw)
//	if insightq.ErrIs(err, insightq.CodeResultTooLarge) {
//	    // more than MaxResultRows rows survived filtering and grouping
//	}
//
// # Aggregation
//
// MAX, MIN, AVG and SUM take numeric fields; COUNT counts distinct values of
// any field. SUM and AVG are computed in decimal arithmetic and rounded half
// away from zero to two places.
package query

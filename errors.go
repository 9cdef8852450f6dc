// Package insightq holds the error kinds shared by the dataset store and the
// query engine.
//
// Every failure reported to a caller is one of three kinds:
//   - InsightError: malformed query, bad field, type mismatch, mismatched
//     dataset ids, missing dataset, duplicate names, wildcard misuse, bad ids
//   - ResultTooLargeError: more than 5000 rows survive filtering and grouping
//   - NotFoundError: removing a dataset id that is not registered
//
// Use ErrIs to test the kind of an error, including wrapped errors.
package insightq

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error codes.
const (
	CodeValidation     = "InsightError"
	CodeResultTooLarge = "ResultTooLargeError"
	CodeNotFound       = "NotFoundError"
)

// Err is a typed failure carrying a code, a short title and optional context.
type Err struct {
	Code  string
	Title string
	Data  map[string]any
}

func (e Err) Error() string {
	fields := []string{
		e.Code + ": " + e.Title,
	}

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := e.Data[k]
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		fields = append(fields, fmt.Sprintf("%s = %+v", k, v))
	}

	return strings.Join(fields, "; ")
}

// ErrIs reports whether err, or any error it wraps, is an Err with the given code.
func ErrIs(err error, code string) bool {
	var e Err
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// ValidationErr reports invalid input: a malformed query or dataset id.
func ValidationErr(title string, data map[string]any) error {
	return Err{
		Code:  CodeValidation,
		Title: title,
		Data:  data,
	}
}

// ResultTooLargeErr reports a query whose result exceeds the row cap.
func ResultTooLargeErr(title string, data map[string]any) error {
	return Err{
		Code:  CodeResultTooLarge,
		Title: title,
		Data:  data,
	}
}

// NotFoundErr reports a reference to a dataset that is not registered.
func NotFoundErr(title string, data map[string]any) error {
	return Err{
		Code:  CodeNotFound,
		Title: title,
		Data:  data,
	}
}

// Package ingest builds datasets from zip archives.
//
// A sections archive holds one JSON file per course under courses/, each
// with a "result" array of section objects. A rooms archive holds an
// index.htm listing buildings and one HTML page per building listing its
// rooms; building addresses are resolved to coordinates with a Geocoder.
//
// Both readers return a *dataset.Dataset ready to be added to a
// dataset.Store:
//
//	ds, err := ingest.Sections("ubc", zipBytes)
//	ds, err := ingest.Rooms(ctx, "campus", zipBytes, geocoder)
package ingest

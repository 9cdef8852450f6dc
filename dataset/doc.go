// Package dataset holds the in-memory datasets that queries run against.
//
// A dataset is an ordered sequence of uniformly-shaped records tagged with a
// kind: course sections or campus rooms. The package provides the record
// types, the static field catalog for each kind, a concurrency-safe store
// keyed by dataset id, and parquet snapshots for persisting datasets across
// restarts.
//
// # Basic Usage
//
// Registering a dataset and looking it up:
//
//	store := dataset.NewStore()
//	ids, err := store.Add(&dataset.Dataset{
//	    ID:   "sections",
//	    Kind: dataset.KindSections,
//	    Rows: dataset.SectionRecords(sections),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ds, ok := store.Get("sections")
//
// # Field Catalog
//
// Field names are fixed per kind. Measure fields are numeric and dimension
// fields are strings:
//
//	dataset.IsMeasureField(dataset.KindSections, "avg")      // true
//	dataset.IsDimensionField(dataset.KindRooms, "furniture") // true
//
// # Snapshots
//
// A store opened on a directory writes one parquet file per dataset and
// restores all of them on the next Open:
//
//	store, err := dataset.Open("./data")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Snapshots use github.com/parquet-go/parquet-go with zstd compression.
package dataset

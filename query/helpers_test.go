package query

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vegasq/insightq/dataset"
)

// sampleSections returns a small sections dataset covering a few
// departments, instructors and years
func sampleSections() []dataset.Section {
	return []dataset.Section{
		{Dept: "cpsc", ID: "310", Instructor: "holmes, reid", Title: "intr sftwr eng", UUID: "1", Year: 2015, Avg: 78.5, Pass: 120, Fail: 5, Audit: 1},
		{Dept: "cpsc", ID: "310", Instructor: "baniassad, elisa", Title: "intr sftwr eng", UUID: "2", Year: 2016, Avg: 81.2, Pass: 140, Fail: 2, Audit: 0},
		{Dept: "cpsc", ID: "110", Instructor: "kiczales, gregor", Title: "comptn, progrmng", UUID: "3", Year: 2015, Avg: 72.0, Pass: 300, Fail: 40, Audit: 3},
		{Dept: "math", ID: "100", Instructor: "loveys, james", Title: "diff calculus", UUID: "4", Year: 1900, Avg: 65.3, Pass: 800, Fail: 90, Audit: 0},
		{Dept: "math", ID: "220", Instructor: "", Title: "math proof", UUID: "5", Year: 2014, Avg: 97.5, Pass: 30, Fail: 0, Audit: 0},
		{Dept: "epse", ID: "421", Instructor: "smith, anne", Title: "asmt learning", UUID: "6", Year: 2015, Avg: 98.7, Pass: 20, Fail: 0, Audit: 0},
	}
}

func sampleRooms() []dataset.Room {
	return []dataset.Room{
		{Fullname: "Hugh Dempster Pavilion", Shortname: "DMP", Number: "110", Name: "DMP_110", Address: "6245 Agronomy Road V6T 1Z4",
			Type: "Tiered Large Group", Furniture: "Classroom-Fixed Tablets", Href: "http://example.com/DMP-110", Lat: 49.26125, Lon: -123.24807, Seats: 120},
		{Fullname: "Hugh Dempster Pavilion", Shortname: "DMP", Number: "201", Name: "DMP_201", Address: "6245 Agronomy Road V6T 1Z4",
			Type: "Small Group", Furniture: "Classroom-Movable Tables & Chairs", Href: "http://example.com/DMP-201", Lat: 49.26125, Lon: -123.24807, Seats: 40},
		{Fullname: "Woodward (Instructional Resources Centre-IRC)", Shortname: "WOOD", Number: "2", Name: "WOOD_2", Address: "2194 Health Sciences Mall",
			Type: "Tiered Large Group", Furniture: "Classroom-Fixed Tables/Fixed Chairs", Href: "http://example.com/WOOD-2", Lat: 49.26478, Lon: -123.24673, Seats: 503},
	}
}

// bulkSections returns n sections spread across ten departments
func bulkSections(n int) []dataset.Section {
	sections := make([]dataset.Section, n)
	for i := range sections {
		sections[i] = dataset.Section{
			Dept:  fmt.Sprintf("dept%d", i%10),
			ID:    fmt.Sprintf("%d", 100+i%400),
			UUID:  fmt.Sprintf("%d", i),
			Title: "bulk",
			Year:  float64(2000 + i%20),
			Avg:   float64(50 + i%50),
			Pass:  float64(i % 200),
		}
	}
	return sections
}

// newTestStore registers sampleSections as "sections" and sampleRooms as "rooms"
func newTestStore(t *testing.T) *dataset.Store {
	t.Helper()
	store := dataset.NewStore()
	_, err := store.Add(&dataset.Dataset{ID: "sections", Kind: dataset.KindSections, Rows: dataset.SectionRecords(sampleSections())})
	require.NoError(t, err)
	_, err = store.Add(&dataset.Dataset{ID: "rooms", Kind: dataset.KindRooms, Rows: dataset.RoomRecords(sampleRooms())})
	require.NoError(t, err)
	return store
}

func sKey(field string) Key {
	return Key{Dataset: "sections", Field: field}
}

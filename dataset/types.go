package dataset

import (
	"fmt"

	"github.com/vegasq/insightq"
)

// Kind tags the shape of every record in a dataset
type Kind string

const (
	KindSections Kind = "sections"
	KindRooms    Kind = "rooms"
)

// ParseKind converts a kind name to a Kind
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindSections:
		return KindSections, nil
	case KindRooms:
		return KindRooms, nil
	default:
		return "", insightq.ValidationErr("unknown dataset kind", map[string]any{"kind": s})
	}
}

// Record is a single immutable row of a dataset.
//
// Measure answers numeric fields and Dimension answers string fields. Both
// report false for a field outside the record kind's catalog.
type Record interface {
	Kind() Kind
	Measure(field string) (float64, bool)
	Dimension(field string) (string, bool)
}

// Section is one offering of a course
type Section struct {
	Dept       string  `parquet:"dept" json:"dept"`
	ID         string  `parquet:"id" json:"id"`
	Instructor string  `parquet:"instructor" json:"instructor"`
	Title      string  `parquet:"title" json:"title"`
	UUID       string  `parquet:"uuid" json:"uuid"`
	Year       float64 `parquet:"year" json:"year"`
	Avg        float64 `parquet:"avg" json:"avg"`
	Pass       float64 `parquet:"pass" json:"pass"`
	Fail       float64 `parquet:"fail" json:"fail"`
	Audit      float64 `parquet:"audit" json:"audit"`
}

// Kind returns KindSections
func (s Section) Kind() Kind { return KindSections }

// Measure returns the value of a section measure field
func (s Section) Measure(field string) (float64, bool) {
	switch field {
	case "year":
		return s.Year, true
	case "avg":
		return s.Avg, true
	case "pass":
		return s.Pass, true
	case "fail":
		return s.Fail, true
	case "audit":
		return s.Audit, true
	default:
		return 0, false
	}
}

// Dimension returns the value of a section dimension field
func (s Section) Dimension(field string) (string, bool) {
	switch field {
	case "dept":
		return s.Dept, true
	case "id":
		return s.ID, true
	case "instructor":
		return s.Instructor, true
	case "title":
		return s.Title, true
	case "uuid":
		return s.UUID, true
	default:
		return "", false
	}
}

// Room is one bookable room in a campus building
type Room struct {
	Fullname  string  `parquet:"fullname" json:"fullname"`
	Shortname string  `parquet:"shortname" json:"shortname"`
	Number    string  `parquet:"number" json:"number"`
	Name      string  `parquet:"name" json:"name"`
	Address   string  `parquet:"address" json:"address"`
	Type      string  `parquet:"type" json:"type"`
	Furniture string  `parquet:"furniture" json:"furniture"`
	Href      string  `parquet:"href" json:"href"`
	Lat       float64 `parquet:"lat" json:"lat"`
	Lon       float64 `parquet:"lon" json:"lon"`
	Seats     float64 `parquet:"seats" json:"seats"`
}

// Kind returns KindRooms
func (r Room) Kind() Kind { return KindRooms }

// Measure returns the value of a room measure field
func (r Room) Measure(field string) (float64, bool) {
	switch field {
	case "lat":
		return r.Lat, true
	case "lon":
		return r.Lon, true
	case "seats":
		return r.Seats, true
	default:
		return 0, false
	}
}

// Dimension returns the value of a room dimension field
func (r Room) Dimension(field string) (string, bool) {
	switch field {
	case "fullname":
		return r.Fullname, true
	case "shortname":
		return r.Shortname, true
	case "number":
		return r.Number, true
	case "name":
		return r.Name, true
	case "address":
		return r.Address, true
	case "type":
		return r.Type, true
	case "furniture":
		return r.Furniture, true
	case "href":
		return r.Href, true
	default:
		return "", false
	}
}

// Dataset is a named, kind-tagged, ordered sequence of records.
//
// A dataset is never modified after it is registered in a Store; queries may
// keep reading Rows after the dataset is removed.
type Dataset struct {
	ID   string
	Kind Kind
	Rows []Record
}

// Info summarizes a registered dataset
type Info struct {
	ID      string `json:"id"`
	Kind    Kind   `json:"kind"`
	NumRows int    `json:"numRows"`
}

// Info returns the dataset summary
func (d *Dataset) Info() Info {
	return Info{ID: d.ID, Kind: d.Kind, NumRows: len(d.Rows)}
}

// SectionRecords wraps sections as records
func SectionRecords(sections []Section) []Record {
	rows := make([]Record, len(sections))
	for i, s := range sections {
		rows[i] = s
	}
	return rows
}

// RoomRecords wraps rooms as records
func RoomRecords(rooms []Room) []Record {
	rows := make([]Record, len(rooms))
	for i, r := range rooms {
		rows[i] = r
	}
	return rows
}

// validateRows checks that every record matches the dataset kind
func (d *Dataset) validateRows() error {
	for i, row := range d.Rows {
		if row == nil || row.Kind() != d.Kind {
			return fmt.Errorf("row %d of dataset %q does not match kind %s", i, d.ID, d.Kind)
		}
	}
	return nil
}

package ingest

import (
	"archive/zip"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/vegasq/insightq"
	"github.com/vegasq/insightq/dataset"
)

const (
	coursesDir = "courses/"

	// overallYear replaces the year of "overall" sections
	overallYear = 1900
)

// requiredSectionFields must all be present for a section to be kept
var requiredSectionFields = []string{
	"id", "Course", "Title", "Professor", "Subject", "Year", "Avg", "Pass", "Fail", "Audit",
}

// courseFile is the JSON layout of one course file
type courseFile struct {
	Result []map[string]interface{} `json:"result"`
}

// Sections builds a sections dataset from a zip archive.
//
// Every entry must live under courses/ and every file must be a JSON course
// file. Sections missing a required field are skipped. Sections keep the
// order of the archive entries.
func Sections(id string, data []byte, opts ...Option) (*dataset.Dataset, error) {
	o := newOptions(opts)

	zr, err := openZip(data)
	if err != nil {
		return nil, err
	}

	var files []*zip.File
	for _, f := range zr.File {
		if !strings.Contains(f.Name, coursesDir) {
			return nil, insightq.ValidationErr("archive entry is not under courses/", map[string]any{"name": f.Name})
		}
		if f.FileInfo().IsDir() {
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return nil, insightq.ValidationErr("archive has no course files", nil)
	}

	perFile := make([][]dataset.Section, len(files))
	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			sections, err := readCourseFile(f)
			if err != nil {
				return err
			}
			perFile[i] = sections
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var sections []dataset.Section
	for _, s := range perFile {
		sections = append(sections, s...)
	}
	if len(sections) == 0 {
		return nil, insightq.ValidationErr("archive contains no valid sections", nil)
	}
	level.Debug(o.logger).Log("msg", "parsed sections archive", "id", id, "files", len(files), "sections", len(sections))

	return &dataset.Dataset{ID: id, Kind: dataset.KindSections, Rows: dataset.SectionRecords(sections)}, nil
}

func readCourseFile(f *zip.File) ([]dataset.Section, error) {
	data, err := readEntry(f)
	if err != nil {
		return nil, err
	}

	var course courseFile
	if err := json.Unmarshal(data, &course); err != nil {
		return nil, insightq.ValidationErr("course file is not valid JSON", map[string]any{"name": f.Name, "err": err})
	}

	sections := make([]dataset.Section, 0, len(course.Result))
	for _, raw := range course.Result {
		if s, ok := parseSection(raw); ok {
			sections = append(sections, s)
		}
	}
	return sections, nil
}

// parseSection converts one raw section. It reports false when a required
// field is missing or a numeric field is not a number.
func parseSection(raw map[string]interface{}) (dataset.Section, bool) {
	for _, field := range requiredSectionFields {
		if v, ok := raw[field]; !ok || v == nil {
			return dataset.Section{}, false
		}
	}

	var s dataset.Section
	var ok bool

	s.UUID = stringValue(raw["id"])
	s.ID = stringValue(raw["Course"])
	s.Title = stringValue(raw["Title"])
	s.Instructor = stringValue(raw["Professor"])
	s.Dept = stringValue(raw["Subject"])

	if section, _ := raw["Section"].(string); section == "overall" {
		s.Year = overallYear
	} else if s.Year, ok = numberValue(raw["Year"]); !ok {
		return dataset.Section{}, false
	}
	if s.Avg, ok = numberValue(raw["Avg"]); !ok {
		return dataset.Section{}, false
	}
	if s.Pass, ok = numberValue(raw["Pass"]); !ok {
		return dataset.Section{}, false
	}
	if s.Fail, ok = numberValue(raw["Fail"]); !ok {
		return dataset.Section{}, false
	}
	if s.Audit, ok = numberValue(raw["Audit"]); !ok {
		return dataset.Section{}, false
	}
	return s, true
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

func numberValue(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

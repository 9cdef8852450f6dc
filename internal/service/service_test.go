package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/insightq"
	"github.com/vegasq/insightq/dataset"
	"github.com/vegasq/insightq/ingest"
	"github.com/vegasq/insightq/internal/metrics"
)

const coursesJSON = `{"result": [
	{"id": 1, "Course": "310", "Title": "sftwr eng", "Professor": "holmes", "Subject": "cpsc",
	 "Year": "2015", "Avg": 70, "Pass": 10, "Fail": 1, "Audit": 0, "Section": "101"},
	{"id": 2, "Course": "310", "Title": "sftwr eng", "Professor": "baniassad", "Subject": "cpsc",
	 "Year": "2016", "Avg": 75, "Pass": 20, "Fail": 2, "Audit": 0, "Section": "102"},
	{"id": 3, "Course": "100", "Title": "calculus", "Professor": "loveys", "Subject": "math",
	 "Year": "2016", "Avg": 80.5, "Pass": 30, "Fail": 3, "Audit": 1, "Section": "101"}
]}`

const roomsIndex = `<html><body><table><tbody><tr>
<td class="views-field views-field-field-building-code">DMP</td>
<td class="views-field views-field-title"><a href="./campus/DMP.htm">Hugh Dempster Pavilion</a></td>
<td class="views-field views-field-field-building-address">6245 Agronomy Road</td>
<td class="views-field views-field-nothing"><a href="./campus/DMP.htm">More info</a></td>
</tr></tbody></table></body></html>`

const roomsBuilding = `<html><body><table><tbody><tr>
<td class="views-field views-field-field-room-number"><a href="http://example.com/DMP-110">110</a></td>
<td class="views-field views-field-field-room-capacity">120</td>
<td class="views-field views-field-field-room-furniture">Classroom-Fixed Tablets</td>
<td class="views-field views-field-field-room-type">Tiered Large Group</td>
<td class="views-field views-field-nothing"><a href="http://example.com/DMP-110">More info</a></td>
</tr></tbody></table></body></html>`

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func sectionsZip(t *testing.T) []byte {
	return zipOf(t, map[string]string{"courses/CPSC310": coursesJSON})
}

func roomsZip(t *testing.T) []byte {
	return zipOf(t, map[string]string{"index.htm": roomsIndex, "campus/DMP.htm": roomsBuilding})
}

type staticGeocoder struct {
	err error
}

func (g staticGeocoder) Geocode(context.Context, string) (ingest.Location, error) {
	if g.err != nil {
		return ingest.Location{}, g.err
	}
	return ingest.Location{Lat: 49.26, Lon: -123.24}, nil
}

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	return New(dataset.NewStore(), staticGeocoder{}, opts...)
}

func TestService_AddListRemove(t *testing.T) {
	svc := newService(t)

	ids, err := svc.AddDataset(context.Background(), "courses", "sections", sectionsZip(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"courses"}, ids)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Datasets))

	ids, err = svc.AddDataset(context.Background(), "campus", "rooms", roomsZip(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"campus", "courses"}, ids)

	assert.Equal(t, []dataset.Info{
		{ID: "campus", Kind: dataset.KindRooms, NumRows: 1},
		{ID: "courses", Kind: dataset.KindSections, NumRows: 3},
	}, svc.ListDatasets())
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Datasets))

	removed, err := svc.RemoveDataset("courses")
	require.NoError(t, err)
	assert.Equal(t, "courses", removed)
	assert.Len(t, svc.ListDatasets(), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Datasets))

	_, err = svc.RemoveDataset("courses")
	assert.True(t, insightq.ErrIs(err, insightq.CodeNotFound))
}

func TestService_AddDatasetErrors(t *testing.T) {
	svc := newService(t)
	_, err := svc.AddDataset(context.Background(), "courses", "sections", sectionsZip(t))
	require.NoError(t, err)

	tests := []struct {
		name string
		id   string
		kind string
		data []byte
	}{
		{"duplicate id", "courses", "sections", sectionsZip(t)},
		{"underscore id", "my_courses", "sections", sectionsZip(t)},
		{"blank id", "  ", "sections", sectionsZip(t)},
		{"unknown kind", "other", "buildings", sectionsZip(t)},
		{"not a zip", "other", "sections", []byte("hello")},
		{"rooms archive as sections", "other", "sections", roomsZip(t)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddDataset(context.Background(), tt.id, tt.kind, tt.data)
			assert.True(t, insightq.ErrIs(err, insightq.CodeValidation), "got %v", err)
		})
	}
	assert.Len(t, svc.ListDatasets(), 1)
}

func TestService_RoomsWithoutLocations(t *testing.T) {
	svc := New(dataset.NewStore(), staticGeocoder{err: errors.New("unreachable")})
	_, err := svc.AddDataset(context.Background(), "campus", "rooms", roomsZip(t))
	assert.True(t, insightq.ErrIs(err, insightq.CodeValidation), "got %v", err)
}

func TestService_PerformQuery(t *testing.T) {
	pool, err := ants.NewPool(2)
	require.NoError(t, err)
	defer pool.Release()

	svc := newService(t, WithQueryPool(pool, 1), WithIngestConcurrency(2))
	_, err = svc.AddDataset(context.Background(), "courses", "sections", sectionsZip(t))
	require.NoError(t, err)

	rows, err := svc.PerformQuery([]byte(`{
		"WHERE": {"IS": {"courses_dept": "cpsc"}},
		"OPTIONS": {"COLUMNS": ["courses_dept", "overallAvg"]},
		"TRANSFORMATIONS": {
			"GROUP": ["courses_dept"],
			"APPLY": [{"overallAvg": {"AVG": "courses_avg"}}]
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, []map[string]interface{}{{"courses_dept": "cpsc", "overallAvg": 72.5}}, rows)

	_, err = svc.PerformQuery([]byte(`{"WHERE": {}, "OPTIONS": {"COLUMNS": ["rooms_seats"]}}`))
	assert.True(t, insightq.ErrIs(err, insightq.CodeValidation))
}

func TestService_Query(t *testing.T) {
	svc := newService(t)
	_, err := svc.AddDataset(context.Background(), "courses", "sections", sectionsZip(t))
	require.NoError(t, err)

	columns, rows, err := svc.Query([]byte(`{
		"WHERE": {"GT": {"courses_avg": 72}},
		"OPTIONS": {"COLUMNS": ["courses_uuid", "courses_avg"], "ORDER": "courses_avg"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"courses_uuid", "courses_avg"}, columns)
	assert.Equal(t, []map[string]interface{}{
		{"courses_uuid": "2", "courses_avg": 75.0},
		{"courses_uuid": "3", "courses_avg": 80.5},
	}, rows)

	_, _, err = svc.Query([]byte(`not json`))
	assert.True(t, insightq.ErrIs(err, insightq.CodeValidation))
}

package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// zipEntry is a file (or a directory when name ends in /) of a test archive
type zipEntry struct {
	name string
	body string
}

func buildZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		if !strings.HasSuffix(e.name, "/") {
			_, err = w.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// fakeGeocoder answers from a fixed table and counts lookups
type fakeGeocoder struct {
	mu        sync.Mutex
	locations map[string]Location
	calls     map[string]int
}

func newFakeGeocoder(locations map[string]Location) *fakeGeocoder {
	return &fakeGeocoder{locations: locations, calls: make(map[string]int)}
}

func (g *fakeGeocoder) Geocode(_ context.Context, address string) (Location, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[address]++
	loc, ok := g.locations[address]
	if !ok {
		return Location{}, fmt.Errorf("%w: %s", ErrNoLocation, address)
	}
	return loc, nil
}

func (g *fakeGeocoder) callCount(address string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[address]
}

const indexHTML = `<html><body>
<table class="views-table">
<thead><tr><th class="views-field views-field-field-building-code">Code</th></tr></thead>
<tbody>
<tr>
  <td class="views-field views-field-field-building-image"><img src="x.jpg"></td>
  <td class="views-field views-field-field-building-code">DMP</td>
  <td class="views-field views-field-title"><a href="./campus/buildings/DMP.htm">Hugh Dempster Pavilion</a></td>
  <td class="views-field views-field-field-building-address">6245 Agronomy Road V6T 1Z4</td>
  <td class="views-field views-field-nothing"><a href="./campus/buildings/DMP.htm">More info</a></td>
</tr>
<tr>
  <td class="views-field views-field-field-building-image"><img src="y.jpg"></td>
  <td class="views-field views-field-field-building-code">NOWHERE</td>
  <td class="views-field views-field-title"><a href="./campus/buildings/NOWHERE.htm">Lost Hall</a></td>
  <td class="views-field views-field-field-building-address">1 Unknown Street</td>
  <td class="views-field views-field-nothing"><a href="./campus/buildings/NOWHERE.htm">More info</a></td>
</tr>
<tr>
  <td class="views-field views-field-field-building-image"><img src="z.jpg"></td>
  <td class="views-field views-field-field-building-code">EMPTY</td>
  <td class="views-field views-field-title"><a href="./campus/buildings/EMPTY.htm">Empty Hall</a></td>
  <td class="views-field views-field-field-building-address">2 Empty Street</td>
  <td class="views-field views-field-nothing"><a href="./campus/buildings/EMPTY.htm">More info</a></td>
</tr>
<tr>
  <td class="views-field views-field-field-building-image"><img src="w.jpg"></td>
  <td class="views-field views-field-field-building-code">WOOD</td>
  <td class="views-field views-field-title"><a href="./campus/buildings/WOOD.htm">Woodward</a></td>
  <td class="views-field views-field-field-building-address">2194 Health Sciences Mall</td>
  <td class="views-field views-field-nothing"><a href="./campus/buildings/WOOD.htm">More info</a></td>
</tr>
</tbody>
</table>
</body></html>`

func roomRowHTML(number, capacity, furniture, roomType string) string {
	return fmt.Sprintf(`<tr>
  <td class="views-field views-field-field-room-number"><a href="http://example.com/room/%[1]s">%[1]s</a></td>
  <td class="views-field views-field-field-room-capacity">
    %[2]s
  </td>
  <td class="views-field views-field-field-room-furniture">%[3]s</td>
  <td class="views-field views-field-field-room-type">%[4]s</td>
  <td class="views-field views-field-nothing"><a href="http://example.com/room/%[1]s">More info</a></td>
</tr>`, number, capacity, furniture, roomType)
}

func buildingHTML(rows ...string) string {
	return `<html><body><table><thead><tr><th>Room</th></tr></thead><tbody>` +
		strings.Join(rows, "\n") + `</tbody></table></body></html>`
}

func roomsArchive(t *testing.T) []byte {
	t.Helper()
	return buildZip(t,
		zipEntry{name: "index.htm", body: indexHTML},
		zipEntry{name: "campus/"},
		zipEntry{name: "campus/buildings/"},
		zipEntry{name: "campus/buildings/DMP.htm", body: buildingHTML(
			roomRowHTML("110", "120", "Classroom-Fixed Tablets", "Tiered Large Group"),
			roomRowHTML("201", "40", "Classroom-Movable Tables &amp; Chairs", "Small Group"),
			roomRowHTML("bad", "n/a", "Classroom-Movable Tables", "Small Group"),
		)},
		zipEntry{name: "campus/buildings/NOWHERE.htm", body: buildingHTML(
			roomRowHTML("1", "10", "Classroom-Movable Tables", "Small Group"),
		)},
		zipEntry{name: "campus/buildings/EMPTY.htm", body: `<html><body><p>No rooms</p></body></html>`},
		zipEntry{name: "campus/buildings/WOOD.htm", body: buildingHTML(
			roomRowHTML("2", "503", "Classroom-Fixed Tables/Fixed Chairs", "Tiered Large Group"),
		)},
	)
}

func testLocations() map[string]Location {
	return map[string]Location{
		"6245 Agronomy Road V6T 1Z4": {Lat: 49.26125, Lon: -123.24807},
		"2194 Health Sciences Mall":  {Lat: 49.26478, Lon: -123.24673},
		"2 Empty Street":             {Lat: 1, Lon: 2},
	}
}

package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/go-kit/log/level"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"github.com/vegasq/insightq"
	"github.com/vegasq/insightq/dataset"
)

const indexFile = "index.htm"

// Column classes of the building and room tables
const (
	classPrefix       = "views-field "
	classBuildingCode = "views-field-field-building-code"
	classBuildingName = "views-field-title"
	classBuildingAddr = "views-field-field-building-address"
	classLink         = "views-field-nothing"
	classRoomNumber   = "views-field-field-room-number"
	classRoomCapacity = "views-field-field-room-capacity"
	classRoomFurn     = "views-field-field-room-furniture"
	classRoomType     = "views-field-field-room-type"
)

// tableCellClasses mark a td as part of a building or room table
var tableCellClasses = []string{
	"views-field",
	classRoomNumber, classRoomCapacity, classRoomFurn, classRoomType,
	classBuildingName, classBuildingAddr, "views-field-field-building-image", classBuildingCode,
	classLink,
}

type building struct {
	code     string
	fullname string
	address  string
	href     string
}

type roomRow struct {
	number    string
	seats     float64
	furniture string
	roomType  string
	href      string
}

// Rooms builds a rooms dataset from a zip archive.
//
// index.htm lists the buildings; each building page lists its rooms. Every
// building with rooms is geocoded once. Buildings the geocoder cannot place
// are skipped. Rooms keep the order of the buildings in index.htm.
func Rooms(ctx context.Context, id string, data []byte, geocoder Geocoder, opts ...Option) (*dataset.Dataset, error) {
	o := newOptions(opts)

	zr, err := openZip(data)
	if err != nil {
		return nil, err
	}

	index, ok := findEntry(zr, indexFile)
	if !ok {
		return nil, insightq.ValidationErr("rooms archive has no index.htm", nil)
	}
	indexHTML, err := readEntry(index)
	if err != nil {
		return nil, err
	}

	buildings, err := parseBuildings(indexHTML)
	if err != nil {
		return nil, err
	}

	perBuilding := make([][]dataset.Room, len(buildings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, b := range buildings {
		i, b := i, b
		g.Go(func() error {
			rooms, err := buildingRooms(gctx, zr, b, geocoder, o)
			if err != nil {
				return err
			}
			perBuilding[i] = rooms
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rooms []dataset.Room
	for _, r := range perBuilding {
		rooms = append(rooms, r...)
	}
	if len(rooms) == 0 {
		return nil, insightq.ValidationErr("archive contains no valid rooms", nil)
	}
	level.Debug(o.logger).Log("msg", "parsed rooms archive", "id", id, "buildings", len(buildings), "rooms", len(rooms))

	return &dataset.Dataset{ID: id, Kind: dataset.KindRooms, Rows: dataset.RoomRecords(rooms)}, nil
}

func buildingRooms(ctx context.Context, zr *zip.Reader, b building, geocoder Geocoder, o *options) ([]dataset.Room, error) {
	if b.href == "" {
		return nil, nil
	}

	page, ok := findEntry(zr, b.href)
	if !ok {
		return nil, insightq.ValidationErr("building page not found", map[string]any{"building": b.code, "href": b.href})
	}
	pageHTML, err := readEntry(page)
	if err != nil {
		return nil, err
	}

	rows, err := parseRooms(pageHTML)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	loc, err := geocoder.Geocode(ctx, b.address)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		level.Warn(o.logger).Log("msg", "skipping building without location", "building", b.code, "address", b.address, "err", err)
		return nil, nil
	}

	rooms := make([]dataset.Room, 0, len(rows))
	for _, r := range rows {
		rooms = append(rooms, dataset.Room{
			Fullname:  b.fullname,
			Shortname: b.code,
			Number:    r.number,
			Name:      b.code + "_" + r.number,
			Address:   b.address,
			Type:      r.roomType,
			Furniture: r.furniture,
			Href:      r.href,
			Lat:       loc.Lat,
			Lon:       loc.Lon,
			Seats:     r.seats,
		})
	}
	return rooms, nil
}

// parseBuildings extracts the building table of index.htm
func parseBuildings(page []byte) ([]building, error) {
	rows, err := tableRows(page)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		return nil, insightq.ValidationErr("index.htm has no building table", nil)
	}

	var buildings []building
	for _, tr := range rows {
		cols := childElements(tr, atom.Td)
		code := findColumn(cols, classBuildingCode)
		name := findColumn(cols, classBuildingName)
		addr := findColumn(cols, classBuildingAddr)
		link := findColumn(cols, classLink)
		if code == nil || name == nil || addr == nil || link == nil {
			continue
		}

		b := building{
			code:    firstText(code),
			address: firstText(addr),
		}
		if a := firstChild(name, atom.A); a != nil {
			b.fullname = firstText(a)
		}
		if a := firstChild(link, atom.A); a != nil {
			b.href = strings.TrimPrefix(attr(a, "href"), "./")
		}
		buildings = append(buildings, b)
	}
	return buildings, nil
}

// parseRooms extracts the room table of a building page. A page without a
// room table has no rooms.
func parseRooms(page []byte) ([]roomRow, error) {
	rows, err := tableRows(page)
	if err != nil {
		return nil, err
	}

	var rooms []roomRow
	for _, tr := range rows {
		cols := childElements(tr, atom.Td)
		number := findColumn(cols, classRoomNumber)
		capacity := findColumn(cols, classRoomCapacity)
		furniture := findColumn(cols, classRoomFurn)
		roomType := findColumn(cols, classRoomType)
		link := findColumn(cols, classLink)
		if number == nil || capacity == nil || furniture == nil || roomType == nil || link == nil {
			continue
		}

		numberLink := firstChild(number, atom.A)
		hrefLink := firstChild(link, atom.A)
		if numberLink == nil || hrefLink == nil {
			continue
		}
		seats, err := strconv.ParseFloat(firstText(capacity), 64)
		if err != nil {
			continue
		}

		rooms = append(rooms, roomRow{
			number:    firstText(numberLink),
			seats:     seats,
			furniture: firstText(furniture),
			roomType:  firstText(roomType),
			href:      attr(hrefLink, "href"),
		})
	}
	return rooms, nil
}

// tableRows finds the first td carrying a views-field class and returns the
// tr rows of its table section. It returns nil rows when there is no such td.
func tableRows(page []byte) ([]*html.Node, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, insightq.ValidationErr("invalid HTML", map[string]any{"err": err})
	}

	cell := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Td && isTableCell(n)
	})
	if cell == nil || cell.Parent == nil || cell.Parent.Parent == nil {
		return nil, nil
	}
	return childElements(cell.Parent.Parent, atom.Tr), nil
}

func isTableCell(n *html.Node) bool {
	for _, class := range strings.Fields(attr(n, "class")) {
		for _, valid := range tableCellClasses {
			if strings.Contains(class, valid) {
				return true
			}
		}
	}
	return false
}

// findNode returns the first node in document order that satisfies match
func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

func childElements(n *html.Node, a atom.Atom) []*html.Node {
	var children []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			children = append(children, c)
		}
	}
	return children
}

func firstChild(n *html.Node, a atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
	}
	return nil
}

// findColumn returns the cell whose class is exactly "views-field <class>"
func findColumn(cols []*html.Node, class string) *html.Node {
	for _, col := range cols {
		if attr(col, "class") == classPrefix+class {
			return col
		}
	}
	return nil
}

// firstText returns the trimmed content of the first text child of n
func firstText(n *html.Node) string {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			return strings.TrimSpace(c.Data)
		}
	}
	return ""
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

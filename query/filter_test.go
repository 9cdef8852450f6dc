package query

import (
	"strings"
	"testing"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/insightq"
	"github.com/vegasq/insightq/dataset"
)

func TestMatches(t *testing.T) {
	section := dataset.Section{Dept: "cpsc", ID: "310", Instructor: "holmes, reid", Avg: 78.5, Year: 2015}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"all", All{}, true},
		{"gt true", Compare{Op: GT, Key: sKey("avg"), Value: 70}, true},
		{"gt false", Compare{Op: GT, Key: sKey("avg"), Value: 78.5}, false},
		{"lt true", Compare{Op: LT, Key: sKey("avg"), Value: 80}, true},
		{"lt false", Compare{Op: LT, Key: sKey("avg"), Value: 78.5}, false},
		{"eq exact", Compare{Op: EQ, Key: sKey("avg"), Value: 78.5}, true},
		{"eq no epsilon", Compare{Op: EQ, Key: sKey("avg"), Value: 78.50000001}, false},
		{"is exact", Match{Key: sKey("dept"), Pattern: "cpsc"}, true},
		{"is exact mismatch", Match{Key: sKey("dept"), Pattern: "cps"}, false},
		{"is starts with", Match{Key: sKey("dept"), Pattern: "cp*"}, true},
		{"is ends with", Match{Key: sKey("dept"), Pattern: "*sc"}, true},
		{"is contains", Match{Key: sKey("instructor"), Pattern: "*mes, r*"}, true},
		{"is star only", Match{Key: sKey("dept"), Pattern: "*"}, true},
		{"is double star", Match{Key: sKey("dept"), Pattern: "**"}, true},
		{"and", And{Children: []Filter{
			Compare{Op: GT, Key: sKey("avg"), Value: 70},
			Match{Key: sKey("dept"), Pattern: "cpsc"},
		}}, true},
		{"and one false", And{Children: []Filter{
			Compare{Op: GT, Key: sKey("avg"), Value: 70},
			Match{Key: sKey("dept"), Pattern: "math"},
		}}, false},
		{"or", Or{Children: []Filter{
			Compare{Op: GT, Key: sKey("avg"), Value: 90},
			Compare{Op: EQ, Key: sKey("year"), Value: 2015},
		}}, true},
		{"or all false", Or{Children: []Filter{
			Compare{Op: GT, Key: sKey("avg"), Value: 90},
			Match{Key: sKey("dept"), Pattern: "math"},
		}}, false},
		{"not", Not{Child: Match{Key: sKey("dept"), Pattern: "math"}}, true},
		{"empty and is true", And{}, true},
		{"empty or is false", Or{}, false},
		{"not empty or", Not{Child: Or{}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Matches(section, tt.filter, dataset.KindSections)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatches_Errors(t *testing.T) {
	section := dataset.Section{Dept: "cpsc", Avg: 78.5}

	tests := []struct {
		name   string
		filter Filter
	}{
		{"wildcard in middle", Match{Key: sKey("dept"), Pattern: "c*sc"}},
		{"wildcard in middle with boundaries", Match{Key: sKey("dept"), Pattern: "*c*c*"}},
		{"compare on string field", Compare{Op: GT, Key: sKey("dept"), Value: 1}},
		{"is on numeric field", Match{Key: sKey("avg"), Pattern: "7*"}},
		{"unknown field", Compare{Op: GT, Key: sKey("seats"), Value: 1}},
		{"invalid comparator", Compare{Op: "GE", Key: sKey("avg"), Value: 1}},
		{"error inside and", And{Children: []Filter{All{}, Match{Key: sKey("dept"), Pattern: "a*b"}}}},
		{"error inside not", Not{Child: Compare{Op: LT, Key: sKey("title"), Value: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Matches(section, tt.filter, dataset.KindSections)
			assert.True(t, insightq.ErrIs(err, insightq.CodeValidation), "got %v", err)
		})
	}
}

func TestMatches_RoomFields(t *testing.T) {
	room := sampleRooms()[0]

	ok, err := Matches(room, Compare{Op: GT, Key: Key{"rooms", "seats"}, Value: 100}, dataset.KindRooms)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Matches(room, Match{Key: Key{"rooms", "furniture"}, Pattern: "*Tablets"}, dataset.KindRooms)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = Matches(room, Compare{Op: GT, Key: Key{"rooms", "avg"}, Value: 1}, dataset.KindRooms)
	assert.Error(t, err)
}

// propertyFilters is a set of valid section filters used by the algebraic
// property tests below
func propertyFilters() []Filter {
	return []Filter{
		All{},
		And{},
		Or{},
		Compare{Op: GT, Key: sKey("avg"), Value: 75},
		Compare{Op: LT, Key: sKey("year"), Value: 2015},
		Compare{Op: EQ, Key: sKey("fail"), Value: 0},
		Match{Key: sKey("dept"), Pattern: "cpsc"},
		Match{Key: sKey("title"), Pattern: "*eng"},
		Match{Key: sKey("instructor"), Pattern: "*a*"},
		Or{Children: []Filter{Match{Key: sKey("dept"), Pattern: "math"}, Compare{Op: GT, Key: sKey("pass"), Value: 200}}},
	}
}

func TestMatches_AllMatchesEverything(t *testing.T) {
	for _, r := range dataset.SectionRecords(sampleSections()) {
		ok, err := Matches(r, All{}, dataset.KindSections)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestMatches_NotNegates(t *testing.T) {
	for _, r := range dataset.SectionRecords(sampleSections()) {
		for _, f := range propertyFilters() {
			got, err := Matches(r, f, dataset.KindSections)
			require.NoError(t, err)
			negated, err := Matches(r, Not{Child: f}, dataset.KindSections)
			require.NoError(t, err)
			assert.Equal(t, !got, negated, "filter %#v", f)
		}
	}
}

func TestMatches_DeMorgan(t *testing.T) {
	filters := propertyFilters()
	for _, r := range dataset.SectionRecords(sampleSections()) {
		for _, a := range filters {
			for _, b := range filters {
				left, err := Matches(r, Not{Child: And{Children: []Filter{a, b}}}, dataset.KindSections)
				require.NoError(t, err)
				right, err := Matches(r, Or{Children: []Filter{Not{Child: a}, Not{Child: b}}}, dataset.KindSections)
				require.NoError(t, err)
				assert.Equal(t, left, right, "a=%#v b=%#v", a, b)
			}
		}
	}
}

func TestWildcardRoundTrip(t *testing.T) {
	values := []string{"abc", "abcdef", "xabc", "xxabcxx", "ab", "bca", "", "ABC"}

	for _, v := range values {
		starts, err := wildcardMatch("abc*", v)
		require.NoError(t, err)
		assert.Equal(t, strings.HasPrefix(v, "abc"), starts, "abc* vs %q", v)

		contains, err := wildcardMatch("*abc*", v)
		require.NoError(t, err)
		assert.Equal(t, strings.Contains(v, "abc"), contains, "*abc* vs %q", v)

		ends, err := wildcardMatch("*abc", v)
		require.NoError(t, err)
		assert.Equal(t, strings.HasSuffix(v, "abc"), ends, "*abc vs %q", v)

		exact, err := wildcardMatch("abc", v)
		require.NoError(t, err)
		assert.Equal(t, v == "abc", exact, "abc vs %q", v)
	}
}

func TestApplyFilter_KeepsOrder(t *testing.T) {
	rows := dataset.SectionRecords(sampleSections())

	got, err := ApplyFilter(rows, Match{Key: sKey("dept"), Pattern: "cpsc"}, dataset.KindSections)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "1", got[0].(dataset.Section).UUID)
	assert.Equal(t, "2", got[1].(dataset.Section).UUID)
	assert.Equal(t, "3", got[2].(dataset.Section).UUID)
}

func TestApplyFilterPool_MatchesSequential(t *testing.T) {
	pool, err := ants.NewPool(4)
	require.NoError(t, err)
	defer pool.Release()

	rows := dataset.SectionRecords(bulkSections(10007))
	filter := Or{Children: []Filter{
		Compare{Op: GT, Key: sKey("avg"), Value: 95},
		Match{Key: sKey("dept"), Pattern: "dept3"},
	}}

	want, err := ApplyFilter(rows, filter, dataset.KindSections)
	require.NoError(t, err)

	got, err := ApplyFilterPool(pool, rows, filter, dataset.KindSections)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestApplyFilterPool_PropagatesErrors(t *testing.T) {
	pool, err := ants.NewPool(2)
	require.NoError(t, err)
	defer pool.Release()

	rows := dataset.SectionRecords(bulkSections(100))
	_, err = ApplyFilterPool(pool, rows, Match{Key: sKey("dept"), Pattern: "d*3"}, dataset.KindSections)
	assert.True(t, insightq.ErrIs(err, insightq.CodeValidation))
}

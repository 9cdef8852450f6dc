package dataset

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/insightq"
)

func sectionsDataset(id string, n int) *Dataset {
	sections := make([]Section, n)
	for i := range sections {
		sections[i] = Section{
			Dept: "cpsc",
			ID:   fmt.Sprintf("%d", 100+i),
			UUID: fmt.Sprintf("%d", i),
			Avg:  float64(60 + i%40),
			Year: 2015,
		}
	}
	return &Dataset{ID: id, Kind: KindSections, Rows: SectionRecords(sections)}
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"sections", false},
		{"ubc2023", false},
		{"", true},
		{"   ", true},
		{"my_sections", true},
		{"my sections", true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.id), func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.wantErr {
				assert.True(t, insightq.ErrIs(err, insightq.CodeValidation), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStore_AddGetRemove(t *testing.T) {
	store := NewStore()

	ids, err := store.Add(sectionsDataset("sections", 3))
	require.NoError(t, err)
	assert.Equal(t, []string{"sections"}, ids)

	ids, err = store.Add(sectionsDataset("archive", 2))
	require.NoError(t, err)
	assert.Equal(t, []string{"archive", "sections"}, ids)

	ds, ok := store.Get("sections")
	require.True(t, ok)
	assert.Equal(t, KindSections, ds.Kind)
	assert.Len(t, ds.Rows, 3)

	assert.Equal(t, []Info{
		{ID: "archive", Kind: KindSections, NumRows: 2},
		{ID: "sections", Kind: KindSections, NumRows: 3},
	}, store.List())

	removed, err := store.Remove("sections")
	require.NoError(t, err)
	assert.Equal(t, "sections", removed)

	_, ok = store.Get("sections")
	assert.False(t, ok)
	assert.Equal(t, []string{"archive"}, store.IDs())
}

func TestStore_AddRejectsDuplicateID(t *testing.T) {
	store := NewStore()
	_, err := store.Add(sectionsDataset("sections", 1))
	require.NoError(t, err)

	_, err = store.Add(sectionsDataset("sections", 5))
	assert.True(t, insightq.ErrIs(err, insightq.CodeValidation))

	ds, _ := store.Get("sections")
	assert.Len(t, ds.Rows, 1, "existing dataset must not be replaced")
}

func TestStore_AddRejectsMismatchedRows(t *testing.T) {
	store := NewStore()
	ds := &Dataset{ID: "rooms", Kind: KindRooms, Rows: []Record{Section{}}}

	_, err := store.Add(ds)
	assert.True(t, insightq.ErrIs(err, insightq.CodeValidation))
	assert.Equal(t, 0, store.Len())
}

func TestStore_Remove(t *testing.T) {
	store := NewStore()

	_, err := store.Remove("missing")
	assert.True(t, insightq.ErrIs(err, insightq.CodeNotFound))

	_, err = store.Remove("bad_id")
	assert.True(t, insightq.ErrIs(err, insightq.CodeValidation))
}

func TestStore_GetSurvivesRemove(t *testing.T) {
	store := NewStore()
	_, err := store.Add(sectionsDataset("sections", 10))
	require.NoError(t, err)

	ds, ok := store.Get("sections")
	require.True(t, ok)

	_, err = store.Remove("sections")
	require.NoError(t, err)

	// The reader keeps a consistent view of the removed dataset.
	assert.Len(t, ds.Rows, 10)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("ds%d", i)
			_, err := store.Add(sectionsDataset(id, 5))
			assert.NoError(t, err)
			_, _ = store.Get(id)
			_ = store.List()
			if i%2 == 0 {
				_, err = store.Remove(id)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, store.Len())
}

package dataset

import (
	"sort"
	"strings"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/vegasq/insightq"
)

// Store maps dataset ids to registered datasets.
//
// Mutations are serialized by a single lock. Datasets are immutable once
// added, so a dataset obtained from Get stays consistent even if it is removed
// while a query is still reading it.
type Store struct {
	mu       sync.RWMutex
	datasets map[string]*Dataset
	dir      string
	logger   log.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the store logger
func WithLogger(logger log.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an in-memory store with no snapshot directory
func NewStore(opts ...Option) *Store {
	s := &Store{
		datasets: make(map[string]*Dataset),
		logger:   log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a store that persists snapshots in dir and restores the
// snapshots already present there.
func Open(dir string, opts ...Option) (*Store, error) {
	s := NewStore(opts...)
	s.dir = dir

	datasets, err := LoadSnapshots(dir)
	if err != nil {
		level.Error(s.logger).Log("msg", "failed to load snapshots", "dir", dir, "err", err)
		return nil, err
	}
	for _, ds := range datasets {
		s.datasets[ds.ID] = ds
		level.Info(s.logger).Log("msg", "restored dataset", "id", ds.ID, "kind", ds.Kind, "rows", len(ds.Rows))
	}
	return s, nil
}

// ValidateID checks that id is usable as a dataset id: non-empty, not only
// whitespace, and free of spaces and underscores.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return insightq.ValidationErr("dataset id is empty", map[string]any{"id": id})
	}
	if strings.Contains(id, "_") || strings.Contains(id, " ") {
		return insightq.ValidationErr("dataset id contains an underscore or space", map[string]any{"id": id})
	}
	return nil
}

// Add registers ds and returns every registered id in sorted order.
//
// An id that is invalid or already registered is rejected; existing datasets
// are never replaced. When the store has a snapshot dir the dataset is
// persisted before it becomes visible.
func (s *Store) Add(ds *Dataset) ([]string, error) {
	if err := ValidateID(ds.ID); err != nil {
		return nil, err
	}
	if _, err := ParseKind(string(ds.Kind)); err != nil {
		return nil, err
	}
	if err := ds.validateRows(); err != nil {
		return nil, insightq.ValidationErr("dataset rows do not match kind", map[string]any{"err": err})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.datasets[ds.ID]; exists {
		return nil, insightq.ValidationErr("dataset id already exists", map[string]any{"id": ds.ID})
	}

	if s.dir != "" {
		if err := SaveSnapshot(s.dir, ds); err != nil {
			level.Error(s.logger).Log("msg", "failed to save snapshot", "id", ds.ID, "err", err)
			return nil, err
		}
	}

	s.datasets[ds.ID] = ds
	level.Info(s.logger).Log("msg", "added dataset", "id", ds.ID, "kind", ds.Kind, "rows", len(ds.Rows))

	return s.idsLocked(), nil
}

// Remove unregisters dataset id and deletes its snapshot
func (s *Store) Remove(id string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.datasets[id]; !exists {
		return "", insightq.NotFoundErr("dataset not found", map[string]any{"id": id})
	}

	if s.dir != "" {
		if err := DeleteSnapshot(s.dir, id); err != nil {
			level.Error(s.logger).Log("msg", "failed to delete snapshot", "id", id, "err", err)
			return "", err
		}
	}

	delete(s.datasets, id)
	level.Info(s.logger).Log("msg", "removed dataset", "id", id)

	return id, nil
}

// Get returns the dataset registered under id
func (s *Store) Get(id string) (*Dataset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.datasets[id]
	return ds, ok
}

// IDs returns the registered dataset ids in sorted order
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.idsLocked()
}

// List returns a summary of every registered dataset, sorted by id
func (s *Store) List() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]Info, 0, len(s.datasets))
	for _, id := range s.idsLocked() {
		infos = append(infos, s.datasets[id].Info())
	}
	return infos
}

// Len returns the number of registered datasets
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.datasets)
}

func (s *Store) idsLocked() []string {
	ids := make([]string, 0, len(s.datasets))
	for id := range s.datasets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

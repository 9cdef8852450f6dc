// Package service ties dataset ingestion, the dataset store and the query
// engine together behind the operations exposed by the server and CLI.
package service

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/panjf2000/ants/v2"

	"github.com/vegasq/insightq"
	"github.com/vegasq/insightq/dataset"
	"github.com/vegasq/insightq/ingest"
	"github.com/vegasq/insightq/internal/metrics"
	"github.com/vegasq/insightq/query"
)

// Service is safe for concurrent use
type Service struct {
	store      *dataset.Store
	engine     *query.Engine
	geocoder   ingest.Geocoder
	logger     log.Logger
	ingestOpts []ingest.Option
	engineOpts []query.EngineOption
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger handed to ingestion and the engine
func WithLogger(logger log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithIngestConcurrency bounds how many archive files or buildings one
// AddDataset call processes at once
func WithIngestConcurrency(n int) Option {
	return func(s *Service) {
		s.ingestOpts = append(s.ingestOpts, ingest.WithConcurrency(n))
	}
}

// WithQueryPool filters datasets of at least threshold rows on pool
func WithQueryPool(pool *ants.Pool, threshold int) Option {
	return func(s *Service) {
		s.engineOpts = append(s.engineOpts, query.WithPool(pool, threshold))
	}
}

// New creates a service over store. geocoder places the buildings of rooms
// datasets.
func New(store *dataset.Store, geocoder ingest.Geocoder, opts ...Option) *Service {
	s := &Service{
		store:    store,
		geocoder: geocoder,
		logger:   log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.ingestOpts = append(s.ingestOpts, ingest.WithLogger(s.logger))
	s.engineOpts = append(s.engineOpts, query.WithEngineLogger(s.logger))
	s.engine = query.NewEngine(store, s.engineOpts...)

	metrics.Datasets.Set(float64(store.Len()))
	return s
}

// AddDataset ingests the zip archive data as a dataset of kind and registers
// it under id. It returns the ids of all registered datasets.
func (s *Service) AddDataset(ctx context.Context, id, kind string, data []byte) ([]string, error) {
	if err := dataset.ValidateID(id); err != nil {
		return nil, err
	}
	k, err := dataset.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	if _, exists := s.store.Get(id); exists {
		return nil, insightq.ValidationErr("dataset id already exists", map[string]any{"id": id})
	}

	var ds *dataset.Dataset
	switch k {
	case dataset.KindSections:
		ds, err = ingest.Sections(id, data, s.ingestOpts...)
	case dataset.KindRooms:
		ds, err = ingest.Rooms(ctx, id, data, s.geocoder, s.ingestOpts...)
	}
	if err != nil {
		level.Warn(s.logger).Log("msg", "failed to ingest dataset", "id", id, "kind", kind, "err", err)
		return nil, err
	}

	ids, err := s.store.Add(ds)
	if err != nil {
		return nil, err
	}
	metrics.Datasets.Set(float64(s.store.Len()))
	return ids, nil
}

// RemoveDataset unregisters id and returns it
func (s *Service) RemoveDataset(id string) (string, error) {
	removed, err := s.store.Remove(id)
	if err != nil {
		return "", err
	}
	metrics.Datasets.Set(float64(s.store.Len()))
	return removed, nil
}

// ListDatasets summarizes every registered dataset, ordered by id
func (s *Service) ListDatasets() []dataset.Info {
	return s.store.List()
}

// PerformQuery evaluates the JSON query raw
func (s *Service) PerformQuery(raw []byte) ([]map[string]interface{}, error) {
	return s.engine.EvaluateJSON(raw)
}

// Query evaluates raw and also returns the query's declared columns, which
// formatters use to order their output
func (s *Service) Query(raw []byte) ([]string, []map[string]interface{}, error) {
	q, rows, err := s.engine.EvaluateJSONQuery(raw)
	if err != nil {
		return nil, nil, err
	}
	return q.Options.Columns, rows, nil
}

package query

import (
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/panjf2000/ants/v2"

	"github.com/vegasq/insightq"
	"github.com/vegasq/insightq/dataset"
	"github.com/vegasq/insightq/internal/metrics"
)

// DefaultParallelThreshold is the dataset size from which filtering runs on
// the worker pool, when the engine has one
const DefaultParallelThreshold = 10000

// Engine evaluates queries against the datasets of a Source.
//
// An Engine holds no per-query state and is safe for concurrent use.
type Engine struct {
	source    Source
	logger    log.Logger
	pool      *ants.Pool
	threshold int
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithEngineLogger sets the engine logger
func WithEngineLogger(logger log.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPool filters datasets of at least threshold rows on pool
func WithPool(pool *ants.Pool, threshold int) EngineOption {
	return func(e *Engine) {
		e.pool = pool
		if threshold > 0 {
			e.threshold = threshold
		}
	}
}

// NewEngine creates an engine reading datasets from source
func NewEngine(source Source, opts ...EngineOption) *Engine {
	e := &Engine{
		source:    source,
		logger:    log.NewNopLogger(),
		threshold: DefaultParallelThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateJSON parses raw and evaluates it
func (e *Engine) EvaluateJSON(raw []byte) ([]map[string]interface{}, error) {
	_, rows, err := e.EvaluateJSONQuery(raw)
	return rows, err
}

// EvaluateJSONQuery is EvaluateJSON that also returns the parsed query, or
// nil when raw does not parse
func (e *Engine) EvaluateJSONQuery(raw []byte) (*Query, []map[string]interface{}, error) {
	start := time.Now()
	q, err := Parse(raw)
	if err != nil {
		observe(start, nil, err)
		return nil, nil, err
	}
	rows, err := e.evaluate(start, q)
	return q, rows, err
}

// Evaluate runs q and returns its rows.
//
// The pipeline is: resolve the dataset, filter every record, group and
// aggregate when q has transformations, enforce the MaxResultRows cap,
// then project and sort. The cap is checked after aggregation so grouping
// can bring a large filtered set under it.
func (e *Engine) Evaluate(q *Query) ([]map[string]interface{}, error) {
	return e.evaluate(time.Now(), q)
}

func (e *Engine) evaluate(start time.Time, q *Query) ([]map[string]interface{}, error) {
	rows, ds, err := e.run(q)
	observe(start, rows, err)

	if ds != nil {
		level.Debug(e.logger).Log(
			"msg", "query evaluated",
			"dataset", ds.ID,
			"rows_in", len(ds.Rows),
			"rows_out", len(rows),
			"duration", time.Since(start),
			"err", err,
		)
	}
	return rows, err
}

func (e *Engine) run(q *Query) ([]map[string]interface{}, *dataset.Dataset, error) {
	ds, err := Resolve(q, e.source)
	if err != nil {
		return nil, nil, err
	}

	filtered, err := e.filter(ds, q.Where)
	if err != nil {
		return nil, ds, err
	}

	var rows []map[string]interface{}
	if q.Transformations != nil {
		groups, err := Transform(filtered, q.Transformations, ds.Kind)
		if err != nil {
			return nil, ds, err
		}
		if err := checkResultSize(len(groups)); err != nil {
			return nil, ds, err
		}
		rows, err = ProjectGroups(groups, q.Options.Columns)
		if err != nil {
			return nil, ds, err
		}
	} else {
		if err := checkResultSize(len(filtered)); err != nil {
			return nil, ds, err
		}
		rows, err = ProjectRecords(filtered, q.Options.Columns)
		if err != nil {
			return nil, ds, err
		}
	}

	rows, err = ApplyOrder(rows, q.Options.Order)
	if err != nil {
		return nil, ds, err
	}
	return rows, ds, nil
}

func (e *Engine) filter(ds *dataset.Dataset, f Filter) ([]dataset.Record, error) {
	if e.pool != nil && len(ds.Rows) >= e.threshold {
		return ApplyFilterPool(e.pool, ds.Rows, f, ds.Kind)
	}
	return ApplyFilter(ds.Rows, f, ds.Kind)
}

func checkResultSize(n int) error {
	if n > MaxResultRows {
		return insightq.ResultTooLargeErr("query result exceeds row limit", map[string]any{
			"rows": n,
			"max":  MaxResultRows,
		})
	}
	return nil
}

func observe(start time.Time, rows []map[string]interface{}, err error) {
	metrics.QueryDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.QueriesTotal.WithLabelValues(metrics.StatusOK).Inc()
		metrics.QueryResultRows.Observe(float64(len(rows)))
	case insightq.ErrIs(err, insightq.CodeResultTooLarge):
		metrics.QueriesTotal.WithLabelValues(metrics.StatusTooLarge).Inc()
	case insightq.ErrIs(err, insightq.CodeValidation):
		metrics.QueriesTotal.WithLabelValues(metrics.StatusInvalid).Inc()
	default:
		metrics.QueriesTotal.WithLabelValues(metrics.StatusError).Inc()
	}
}

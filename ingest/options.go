package ingest

import (
	"github.com/go-kit/log"
)

// DefaultConcurrency bounds how many archive files or buildings are
// processed at once
const DefaultConcurrency = 8

type options struct {
	concurrency int
	logger      log.Logger
}

// Option configures an ingestion run
type Option func(*options)

// WithConcurrency sets how many files or buildings are processed at once
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithLogger sets the logger that reports skipped buildings and files
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		concurrency: DefaultConcurrency,
		logger:      log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

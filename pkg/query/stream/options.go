package stream

import "go.uber.org/zap"

type Option func(*options)

type options struct {
	logger *zap.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	mergeDefaultOptions(o)
	return o
}

func mergeDefaultOptions(o *options) {
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
}

// WithLogger sets the logger the Reader reports its lifecycle to.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

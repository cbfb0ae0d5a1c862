package sentvec

import (
	"log/slog"

	"github.com/hupe1980/sentvec/codec"
	"github.com/hupe1980/sentvec/vectors"
)

// DefaultBufferSize bounds the number of vectors in flight between the
// vector source and the index build.
const DefaultBufferSize = 1024

type options struct {
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	bufferSize       int
	source           vectors.Source
}

// Option configures New and Load.
type Option func(*options)

// WithCodec configures the codec used to write the config artifact.
// Loading detects the codec from the artifact itself.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &sentvec.BasicMetricsCollector{}
//	emb, _ := sentvec.New(cfg, sentvec.WithMetricsCollector(metrics))
//	// ... use emb ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, Avg latency: %dns\n", stats.SearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithBufferSize bounds how many transformed vectors may wait between the
// vector source and the matrix being built. Values below 1 select
// DefaultBufferSize.
func WithBufferSize(n int) Option {
	return func(o *options) {
		o.bufferSize = n
	}
}

// WithSource uses src instead of resolving the configured method. The
// source is also kept across Load.
func WithSource(src vectors.Source) Option {
	return func(o *options) {
		o.source = src
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		bufferSize:       DefaultBufferSize,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.bufferSize < 1 {
		o.bufferSize = DefaultBufferSize
	}
	return o
}

package sentvec

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordIndex is called after each index build.
	// count is the number of documents, err is nil if successful.
	RecordIndex(count int, duration time.Duration, err error)

	// RecordSearch is called after each search operation.
	RecordSearch(limit int, duration time.Duration, err error)

	// RecordTransform is called after each Transform and Similarity call.
	// count is the number of documents transformed.
	RecordTransform(count int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordIndex(int, time.Duration, error)     {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordTransform(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	IndexCount          atomic.Int64
	IndexErrors         atomic.Int64
	IndexDocuments      atomic.Int64
	IndexTotalNanos     atomic.Int64
	SearchCount         atomic.Int64
	SearchErrors        atomic.Int64
	SearchTotalNanos    atomic.Int64
	TransformCount      atomic.Int64
	TransformErrors     atomic.Int64
	TransformDocuments  atomic.Int64
	TransformTotalNanos atomic.Int64
}

// RecordIndex implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIndex(count int, duration time.Duration, err error) {
	b.IndexCount.Add(1)
	b.IndexTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.IndexErrors.Add(1)
		return
	}
	b.IndexDocuments.Add(int64(count))
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordTransform implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTransform(count int, duration time.Duration, err error) {
	b.TransformCount.Add(1)
	b.TransformDocuments.Add(int64(count))
	b.TransformTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.TransformErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		IndexCount:         b.IndexCount.Load(),
		IndexErrors:        b.IndexErrors.Load(),
		IndexDocuments:     b.IndexDocuments.Load(),
		IndexAvgNanos:      avg(b.IndexTotalNanos.Load(), b.IndexCount.Load()),
		SearchCount:        b.SearchCount.Load(),
		SearchErrors:       b.SearchErrors.Load(),
		SearchAvgNanos:     avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		TransformCount:     b.TransformCount.Load(),
		TransformErrors:    b.TransformErrors.Load(),
		TransformDocuments: b.TransformDocuments.Load(),
		TransformAvgNanos:  avg(b.TransformTotalNanos.Load(), b.TransformCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	IndexCount         int64
	IndexErrors        int64
	IndexDocuments     int64
	IndexAvgNanos      int64
	SearchCount        int64
	SearchErrors       int64
	SearchAvgNanos     int64
	TransformCount     int64
	TransformErrors    int64
	TransformDocuments int64
	TransformAvgNanos  int64
}

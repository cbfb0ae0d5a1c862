// Package ivf provides an inverted file index.
//
// A coarse quantizer of spherical k-means centroids splits the stored vectors
// into partitions. Vectors and queries are routed by the same maximum inner
// product rule, so a query equal to a stored vector always probes that
// vector's partition first.
package ivf

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/sentvec/distance"
	"github.com/hupe1980/sentvec/index"
	"github.com/hupe1980/sentvec/internal/kmeans"
	"github.com/hupe1980/sentvec/internal/queue"
	"github.com/hupe1980/sentvec/matrix"
	"github.com/hupe1980/sentvec/model"
	"github.com/hupe1980/sentvec/quantization"
)

// Compile-time check to ensure IVF satisfies the index interface.
var _ index.Index = (*IVF)(nil)

func init() {
	index.Register(index.KindIVF, func(opts index.Options) (index.Index, error) {
		return New(opts)
	}, load)
}

// partition is one inverted list.
type partition struct {
	ids     []model.ID
	vectors *index.Vectors
}

// IVF is an inverted file index with inner-product scoring.
type IVF struct {
	mu         sync.RWMutex
	opts       index.Options
	centroids  *matrix.Matrix
	partitions []partition
	ids        *index.IDs
	sq         *quantization.ScalarQuantizer
}

// New creates an untrained IVF index.
func New(opts index.Options) (*IVF, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("ivf: %w", err)
	}
	return &IVF{
		opts: opts,
		ids:  index.NewIDs(),
	}, nil
}

func (*IVF) Kind() index.Kind { return index.KindIVF }

func (x *IVF) Dimension() int { return x.opts.Dimension }

func (x *IVF) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.ids.Len()
}

func (x *IVF) Trained() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.centroids != nil
}

// NProbe returns the number of partitions scanned per query.
func (x *IVF) NProbe() int { return x.opts.NProbe }

// Partitions returns the number of trained partitions.
func (x *IVF) Partitions() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.partitions)
}

// Train fits the centroids with spherical k-means on m. When m has fewer rows
// than the configured partitions, one partition per row is used.
// Retraining a non-empty index is rejected.
func (x *IVF) Train(ctx context.Context, m *matrix.Matrix) error {
	if m.Empty() {
		return kmeans.ErrNotEnoughVectors
	}
	if m.Cols != x.opts.Dimension {
		return &index.ErrDimensionMismatch{Expected: x.opts.Dimension, Actual: m.Cols}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.ids.Len() > 0 {
		return fmt.Errorf("ivf: cannot retrain an index holding %d vectors", x.ids.Len())
	}

	centroids, err := kmeans.Train(ctx, m, kmeans.Options{
		K:          min(x.opts.Partitions, m.Rows),
		Iterations: x.opts.Iterations,
		Seed:       x.opts.Seed,
		Metric:     distance.MetricDot,
		Spherical:  true,
	})
	if err != nil {
		return fmt.Errorf("ivf: train: %w", err)
	}

	var sq *quantization.ScalarQuantizer
	if x.opts.Quantize {
		sq = quantization.NewScalarQuantizer(x.opts.Dimension)
		if err := sq.Train(m); err != nil {
			return fmt.Errorf("ivf: train quantizer: %w", err)
		}
	}

	partitions := make([]partition, centroids.Rows)
	for i := range partitions {
		vecs, err := index.NewVectors(x.opts.Dimension, sq)
		if err != nil {
			return fmt.Errorf("ivf: %w", err)
		}
		partitions[i].vectors = vecs
	}

	x.centroids = centroids
	x.sq = sq
	x.partitions = partitions
	return nil
}

func (x *IVF) Add(ctx context.Context, ids []model.ID, m *matrix.Matrix) error {
	if err := index.CheckBatch(x.opts.Dimension, ids, m); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.centroids == nil {
		return index.ErrNotTrained
	}
	if err := x.ids.Check(ids); err != nil {
		return err
	}

	assignments, err := kmeans.AssignAll(ctx, m, x.centroids, distance.MetricDot, 0)
	if err != nil {
		return err
	}
	for i, p := range assignments {
		part := &x.partitions[p]
		part.ids = append(part.ids, ids[i])
		part.vectors.Append(m.Row(i))
	}
	x.ids.Append(ids...)
	return nil
}

// Search probes the NProbe closest partitions concurrently and merges their
// results. When those partitions hold fewer than k vectors, further partitions
// are probed in centroid order until k candidates are available.
func (x *IVF) Search(ctx context.Context, q []float32, k int) ([]model.Result, error) {
	if len(q) != x.opts.Dimension {
		return nil, &index.ErrDimensionMismatch{Expected: x.opts.Dimension, Actual: len(q)}
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.centroids == nil {
		return nil, index.ErrNotTrained
	}
	if k <= 0 || x.ids.Len() == 0 {
		return []model.Result{}, nil
	}

	order, err := kmeans.FindClosestCentroids(q, x.centroids, x.centroids.Rows, distance.MetricDot)
	if err != nil {
		return nil, err
	}
	probes := x.probes(order, min(k, x.ids.Len()))

	lists := make([][]model.Result, len(probes))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range probes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			lists[i] = x.partitions[p].search(q, k)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return queue.Merge(k, lists...), nil
}

// probes returns the prefix of order to scan: at least NProbe partitions,
// extended until they hold want vectors.
func (x *IVF) probes(order []int, want int) []int {
	n, held := 0, 0
	for n < len(order) && (n < x.opts.NProbe || held < want) {
		held += len(x.partitions[order[n]].ids)
		n++
	}
	return order[:n]
}

func (p *partition) search(q []float32, k int) []model.Result {
	top := queue.NewTopK(k)
	for i, id := range p.ids {
		top.Push(model.Result{ID: id, Score: p.vectors.Dot(q, i)})
	}
	return top.Results()
}

func (x *IVF) Contains(id model.ID) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.ids.Contains(id)
}

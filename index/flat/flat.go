// Package flat provides an exact, id-mapped index that scores every stored vector.
package flat

import (
	"context"
	"sync"

	"github.com/hupe1980/sentvec/index"
	"github.com/hupe1980/sentvec/internal/queue"
	"github.com/hupe1980/sentvec/matrix"
	"github.com/hupe1980/sentvec/model"
	"github.com/hupe1980/sentvec/quantization"
)

// Compile-time check to ensure Flat satisfies the index interface.
var _ index.Index = (*Flat)(nil)

// cancelCheck is the number of vectors scanned between context checks.
const cancelCheck = 4096

func init() {
	index.Register(index.KindFlat, func(opts index.Options) (index.Index, error) {
		return New(opts)
	}, load)
}

// Flat represents a flat index for vector storage and search.
// Reads may run concurrently; writes are serialized.
type Flat struct {
	mu      sync.RWMutex
	opts    index.Options
	ids     *index.IDs
	sq      *quantization.ScalarQuantizer
	vectors *index.Vectors
}

// New creates an empty flat index.
func New(opts index.Options) (*Flat, error) {
	if opts.Dimension <= 0 {
		return nil, &index.ErrDimensionMismatch{Expected: 1, Actual: opts.Dimension}
	}

	f := &Flat{
		opts: opts,
		ids:  index.NewIDs(),
	}
	if opts.Quantize {
		f.sq = quantization.NewScalarQuantizer(opts.Dimension)
		if err := f.sq.SetBounds(index.UnitBounds(opts.Dimension)); err != nil {
			return nil, err
		}
	}
	vecs, err := index.NewVectors(opts.Dimension, f.sq)
	if err != nil {
		return nil, err
	}
	f.vectors = vecs
	return f, nil
}

func (*Flat) Kind() index.Kind { return index.KindFlat }

func (f *Flat) Dimension() int { return f.opts.Dimension }

func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ids.Len()
}

// Trained always returns true.
func (*Flat) Trained() bool { return true }

// Train calibrates the SQ8 bounds on m when quantization is enabled and the
// index is still empty. Otherwise it does nothing.
func (f *Flat) Train(_ context.Context, m *matrix.Matrix) error {
	if f.sq == nil || m.Empty() {
		return nil
	}
	if m.Cols != f.opts.Dimension {
		return &index.ErrDimensionMismatch{Expected: f.opts.Dimension, Actual: m.Cols}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.vectors.Len() > 0 {
		return nil
	}
	return f.sq.Train(m)
}

func (f *Flat) Add(ctx context.Context, ids []model.ID, m *matrix.Matrix) error {
	if err := index.CheckBatch(f.opts.Dimension, ids, m); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ids.Check(ids); err != nil {
		return err
	}
	for i := range ids {
		f.vectors.Append(m.Row(i))
	}
	f.ids.Append(ids...)
	return nil
}

func (f *Flat) Search(ctx context.Context, q []float32, k int) ([]model.Result, error) {
	if len(q) != f.opts.Dimension {
		return nil, &index.ErrDimensionMismatch{Expected: f.opts.Dimension, Actual: len(q)}
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if k <= 0 || f.ids.Len() == 0 {
		return []model.Result{}, nil
	}

	top := queue.NewTopK(k)
	for i := 0; i < f.ids.Len(); i++ {
		if i%cancelCheck == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		top.Push(model.Result{ID: f.ids.At(i), Score: f.vectors.Dot(q, i)})
	}
	return top.Results(), nil
}

func (f *Flat) Contains(id model.ID) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ids.Contains(id)
}

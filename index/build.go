package index

import (
	"context"

	"github.com/hupe1980/sentvec/matrix"
	"github.com/hupe1980/sentvec/model"
)

// Build selects the structure for m, trains it on m and adds every row.
// ids[i] is stored for row i.
func Build(ctx context.Context, ids []model.ID, m *matrix.Matrix, threshold int, opts Options) (Index, error) {
	opts.Dimension = m.Cols
	if err := CheckBatch(m.Cols, ids, m); err != nil {
		return nil, err
	}

	idx, err := New(SelectKind(m.Rows, threshold), opts)
	if err != nil {
		return nil, err
	}
	if err := idx.Train(ctx, m); err != nil {
		return nil, err
	}
	if err := idx.Add(ctx, ids, m); err != nil {
		return nil, err
	}
	return idx, nil
}

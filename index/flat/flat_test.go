package flat

import (
	"bytes"
	"context"
	"testing"

	"github.com/hupe1980/sentvec/index"
	"github.com/hupe1980/sentvec/matrix"
	"github.com/hupe1980/sentvec/model"
	"github.com/hupe1980/sentvec/persistence"
	"github.com/hupe1980/sentvec/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlat(t *testing.T, dim int, quantize bool) *Flat {
	t.Helper()
	f, err := New(index.Options{Dimension: dim, Quantize: quantize})
	require.NoError(t, err)
	return f
}

func TestFlat(t *testing.T) {
	ctx := context.Background()

	t.Run("Add", func(t *testing.T) {
		f := newFlat(t, 3, false)
		m, _ := matrix.FromRows([][]float32{{1, 0, 0}, {0, 1, 0}})

		require.NoError(t, f.Add(ctx, []model.ID{10, 20}, m))
		assert.Equal(t, 2, f.Len())
		assert.True(t, f.Contains(10))
		assert.False(t, f.Contains(30))
		assert.Equal(t, index.KindFlat, f.Kind())
		assert.True(t, f.Trained())
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		f := newFlat(t, 3, false)
		m, _ := matrix.FromRows([][]float32{{1, 0}})

		err := f.Add(ctx, []model.ID{1}, m)
		assert.IsType(t, &index.ErrDimensionMismatch{}, err)

		_, err = f.Search(ctx, []float32{1, 0}, 1)
		assert.IsType(t, &index.ErrDimensionMismatch{}, err)
	})

	t.Run("DuplicateID", func(t *testing.T) {
		f := newFlat(t, 2, false)
		m, _ := matrix.FromRows([][]float32{{1, 0}, {0, 1}})

		var dup *index.ErrDuplicateID
		err := f.Add(ctx, []model.ID{5, 5}, m)
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, model.ID(5), dup.ID)
		assert.Equal(t, 0, f.Len())

		require.NoError(t, f.Add(ctx, []model.ID{5, 6}, m))
		err = f.Add(ctx, []model.ID{7, 6}, m)
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, model.ID(6), dup.ID)
		assert.Equal(t, 2, f.Len())
	})

	t.Run("LengthMismatch", func(t *testing.T) {
		f := newFlat(t, 2, false)
		m, _ := matrix.FromRows([][]float32{{1, 0}})
		assert.ErrorIs(t, f.Add(ctx, []model.ID{1, 2}, m), index.ErrLengthMismatch)
	})

	t.Run("Search", func(t *testing.T) {
		f := newFlat(t, 2, false)
		m, _ := matrix.FromRows([][]float32{{1, 0}, {0, 1}, {0.6, 0.8}})
		require.NoError(t, f.Add(ctx, []model.ID{0, 1, 2}, m))

		res, err := f.Search(ctx, []float32{1, 0}, 2)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, model.ID(0), res[0].ID)
		assert.Equal(t, model.ID(2), res[1].ID)
		assert.InDelta(t, 1.0, res[0].Score, 1e-6)
		assert.InDelta(t, 0.6, res[1].Score, 1e-6)

		all, err := f.Search(ctx, []float32{1, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		none, err := f.Search(ctx, []float32{1, 0}, 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("TieBreak", func(t *testing.T) {
		f := newFlat(t, 2, false)
		m, _ := matrix.FromRows([][]float32{{0, 1}, {0, 1}, {0, 1}})
		require.NoError(t, f.Add(ctx, []model.ID{9, 3, 6}, m))

		res, err := f.Search(ctx, []float32{0, 1}, 3)
		require.NoError(t, err)
		assert.Equal(t, []model.ID{3, 6, 9}, []model.ID{res[0].ID, res[1].ID, res[2].ID})
	})

	t.Run("Cancelled", func(t *testing.T) {
		f := newFlat(t, 2, false)
		m, _ := matrix.FromRows([][]float32{{1, 0}})
		require.NoError(t, f.Add(ctx, []model.ID{1}, m))

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := f.Search(cctx, []float32{1, 0}, 1)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFlat_SelfMatch(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(4)
	m := rng.UnitMatrix(500, 32)
	ids := testutil.SequentialIDs(0, 500)

	for _, quantize := range []bool{false, true} {
		f := newFlat(t, 32, quantize)
		require.NoError(t, f.Train(ctx, m))
		require.NoError(t, f.Add(ctx, ids, m))

		for i := 0; i < m.Rows; i += 37 {
			res, err := f.Search(ctx, m.Row(i), 1)
			require.NoError(t, err)
			assert.Equal(t, ids[i], res[0].ID, "quantize=%v row=%d", quantize, i)
		}
	}
}

func TestFlat_Binary(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(5)
	m := rng.UnitMatrix(64, 8)
	ids := testutil.SequentialIDs(1000, 64)

	for _, tc := range []struct {
		name        string
		quantize    bool
		compression persistence.Compression
	}{
		{"Raw", false, persistence.CompressionNone},
		{"LZ4", false, persistence.CompressionLZ4},
		{"SQ8ZSTD", true, persistence.CompressionZSTD},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFlat(t, 8, tc.quantize)
			require.NoError(t, f.Train(ctx, m))
			require.NoError(t, f.Add(ctx, ids, m))

			var buf bytes.Buffer
			require.NoError(t, index.Encode(&buf, f, tc.compression))

			loaded, err := index.Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, index.KindFlat, loaded.Kind())
			assert.Equal(t, 64, loaded.Len())
			assert.Equal(t, 8, loaded.Dimension())
			assert.True(t, loaded.Contains(1063))

			want, err := f.Search(ctx, m.Row(3), 5)
			require.NoError(t, err)
			got, err := loaded.Search(ctx, m.Row(3), 5)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestFlat_DecodeCorrupt(t *testing.T) {
	ctx := context.Background()
	f := newFlat(t, 2, false)
	m, _ := matrix.FromRows([][]float32{{1, 0}})
	require.NoError(t, f.Add(ctx, []model.ID{1}, m))

	var buf bytes.Buffer
	require.NoError(t, index.Encode(&buf, f, persistence.CompressionNone))
	data := buf.Bytes()
	data[len(data)-6] ^= 0xff

	_, err := index.Decode(bytes.NewReader(data))
	assert.Error(t, err)
}

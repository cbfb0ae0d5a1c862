package quantization

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/hupe1980/sentvec/matrix"
	"github.com/hupe1980/sentvec/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomMatrix(rows, cols int, seed int64) *matrix.Matrix {
	rng := rand.New(rand.NewSource(seed))
	m := matrix.New(rows, cols)
	for i := range m.Data {
		m.Data[i] = rng.Float32()*2 - 1
	}
	return m
}

func TestScalarQuantizer_EncodeDecode(t *testing.T) {
	m := randomMatrix(100, 16, 1)
	sq := NewScalarQuantizer(16)
	require.NoError(t, sq.Train(m))
	assert.True(t, sq.Trained())

	tol := sq.QuantizationError() + 1e-6
	for r := 0; r < m.Rows; r++ {
		code := sq.Encode(m.Row(r), nil)
		assert.Len(t, code, 16)
		dec := sq.Decode(code, nil)
		for i := range dec {
			assert.InDelta(t, m.Row(r)[i], dec[i], float64(tol))
		}
	}
}

func TestScalarQuantizer_Dot(t *testing.T) {
	m := randomMatrix(50, 8, 2)
	sq := NewScalarQuantizer(8)
	require.NoError(t, sq.Train(m))

	q := m.Row(0)
	code := sq.Encode(m.Row(1), nil)
	dec := sq.Decode(code, nil)

	var want float32
	for i := range q {
		want += q[i] * dec[i]
	}
	assert.InDelta(t, want, sq.Dot(q, code), 1e-5)
}

func TestScalarQuantizer_ConstantDimension(t *testing.T) {
	m, err := matrix.FromRows([][]float32{{1, 0.5}, {1, -0.5}})
	require.NoError(t, err)
	sq := NewScalarQuantizer(2)
	require.NoError(t, sq.Train(m))

	dec := sq.Decode(sq.Encode([]float32{1, 0.5}, nil), nil)
	assert.InDelta(t, 1.0, dec[0], 1e-6)
	assert.InDelta(t, 0.5, dec[1], 1e-2)
}

func TestScalarQuantizer_TrainErrors(t *testing.T) {
	sq := NewScalarQuantizer(4)
	assert.Error(t, sq.Train(matrix.New(0, 4)))
	assert.Error(t, sq.Train(matrix.New(2, 3)))
	assert.Error(t, sq.SetBounds([]float32{0}, []float32{1}))
}

func TestScalarQuantizer_WriteRead(t *testing.T) {
	m := randomMatrix(20, 4, 3)
	sq := NewScalarQuantizer(4)
	require.NoError(t, sq.Train(m))

	var buf bytes.Buffer
	w := persistence.NewWriter(&buf, persistence.MagicIndex)
	sq.Write(w)
	require.NoError(t, w.Close())

	r, err := persistence.NewReader(&buf, persistence.MagicIndex)
	require.NoError(t, err)
	got, err := ReadScalarQuantizer(r, 4)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	assert.Equal(t, sq.Mins(), got.Mins())
	assert.Equal(t, sq.Maxs(), got.Maxs())
	assert.Equal(t, sq.Encode(m.Row(0), nil), got.Encode(m.Row(0), nil))
}

func TestReadScalarQuantizer_DimensionMismatch(t *testing.T) {
	sq := NewScalarQuantizer(2)
	require.NoError(t, sq.SetBounds([]float32{-1, -1}, []float32{1, 1}))

	var buf bytes.Buffer
	w := persistence.NewWriter(&buf, persistence.MagicIndex)
	sq.Write(w)
	require.NoError(t, w.Close())

	r, err := persistence.NewReader(&buf, persistence.MagicIndex)
	require.NoError(t, err)
	_, err = ReadScalarQuantizer(r, 3)
	var corrupt *persistence.ErrCorrupt
	assert.ErrorAs(t, err, &corrupt)
}

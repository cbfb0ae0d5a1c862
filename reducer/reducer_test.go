package reducer

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/hupe1980/sentvec/matrix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// corpus builds rows dominated by a shared direction plus seeded noise.
func corpus(rows, cols int, seed int64) (*matrix.Matrix, []float32) {
	rng := rand.New(rand.NewSource(seed))
	dir := make([]float32, cols)
	var norm float64
	for i := range dir {
		dir[i] = float32(rng.NormFloat64())
		norm += float64(dir[i]) * float64(dir[i])
	}
	for i := range dir {
		dir[i] /= float32(math.Sqrt(norm))
	}

	m := matrix.New(rows, cols)
	for r := 0; r < rows; r++ {
		scale := float32(5 + rng.Float64()*5)
		row := m.Row(r)
		for i := range row {
			row[i] = scale*dir[i] + float32(rng.NormFloat64()*0.1)
		}
	}
	return m, dir
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestFit_DominantDirection(t *testing.T) {
	m, dir := corpus(200, 16, 1)

	model, err := Fit(context.Background(), m, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, model.Components())
	assert.Equal(t, 16, model.Dimension())

	c := model.Component(0)
	assert.InDelta(t, 1.0, math.Abs(dot(c, dir)), 1e-3)
	assert.InDelta(t, 1.0, dot(c, c), 1e-5)
}

func TestFit_Orthonormal(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m := matrix.New(50, 8)
	for i := range m.Data {
		m.Data[i] = float32(rng.NormFloat64())
	}

	model, err := Fit(context.Background(), m, 3)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			assert.InDelta(t, want, dot(model.Component(i), model.Component(j)), 1e-5)
		}
	}
}

func TestFit_Deterministic(t *testing.T) {
	m, _ := corpus(100, 12, 3)
	a, err := Fit(context.Background(), m, 2)
	require.NoError(t, err)
	b, err := Fit(context.Background(), m, 2)
	require.NoError(t, err)
	assert.Equal(t, a.components, b.components)
}

func TestFit_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Fit(ctx, matrix.New(0, 4), 1)
	assert.ErrorIs(t, err, ErrEmptyMatrix)

	m := matrix.New(3, 4)
	tests := []struct {
		name string
		k    int
	}{
		{"Zero", 0},
		{"Negative", -1},
		{"ExceedsRows", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(ctx, m, tt.k)
			var ic *ErrInvalidComponents
			require.True(t, errors.As(err, &ic))
			assert.Equal(t, 3, ic.Max)
			assert.Equal(t, tt.k, ic.Requested)
		})
	}
}

func TestFit_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m, _ := corpus(10, 4, 1)
	_, err := Fit(ctx, m, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApply_RemovesProjection(t *testing.T) {
	m, _ := corpus(100, 10, 5)
	model, err := Fit(context.Background(), m, 2)
	require.NoError(t, err)

	x := m.Clone()
	require.NoError(t, model.Apply(x))
	for r := 0; r < x.Rows; r++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(t, 0, dot(x.Row(r), model.Component(j)), 1e-3)
		}
	}
}

func TestApply_PathsConsistent(t *testing.T) {
	for _, k := range []int{1, 3} {
		m, _ := corpus(40, 9, int64(k))
		model, err := Fit(context.Background(), m, k)
		require.NoError(t, err)

		batch := m.Clone()
		require.NoError(t, model.Apply(batch))

		for r := 0; r < m.Rows; r++ {
			v := append([]float32(nil), m.Row(r)...)
			require.NoError(t, model.ApplyVector(v))
			assert.InDeltaSlice(t, batch.Row(r), v, 1e-6)
		}
	}
}

func TestApply_MatchesDefinition(t *testing.T) {
	model, err := New(2, 3, []float32{
		1, 0, 0,
		0, 1, 0,
	})
	require.NoError(t, err)

	v := []float32{3, 4, 5}
	require.NoError(t, model.ApplyVector(v))
	assert.Equal(t, []float32{0, 0, 5}, v)
}

func TestApply_DimensionMismatch(t *testing.T) {
	model, err := New(1, 3, []float32{1, 0, 0})
	require.NoError(t, err)

	var dm *ErrDimensionMismatch
	assert.True(t, errors.As(model.ApplyVector([]float32{1, 2}), &dm))
	assert.True(t, errors.As(model.Apply(matrix.New(2, 2)), &dm))
	assert.NoError(t, model.Apply(matrix.New(0, 3)))
}

func TestModel_RoundTrip(t *testing.T) {
	m, _ := corpus(30, 6, 11)
	model, err := Fit(context.Background(), m, 2)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = model.WriteTo(&buf)
	require.NoError(t, err)

	loaded, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, model.components, loaded.components)

	data, err := model.MarshalBinary()
	require.NoError(t, err)
	var other Model
	require.NoError(t, other.UnmarshalBinary(data))
	assert.Equal(t, 2, other.Components())
	assert.Equal(t, 6, other.Dimension())
}

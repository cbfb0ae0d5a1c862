package reducer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/sentvec/matrix"
	"github.com/hupe1980/sentvec/persistence"
)

// ErrEmptyMatrix is returned when fitting on a matrix without rows.
var ErrEmptyMatrix = errors.New("reducer: empty matrix")

// ErrInvalidComponents indicates a component count outside [1, min(rows, cols)].
// Fit never clamps the requested count.
type ErrInvalidComponents struct {
	Requested int
	Max       int
}

func (e *ErrInvalidComponents) Error() string {
	return fmt.Sprintf("reducer: invalid component count %d (must be between 1 and %d)", e.Requested, e.Max)
}

// ErrDimensionMismatch indicates an input width that differs from the fitted width.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("reducer: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// maxValues caps the component matrix size accepted by Read.
const maxValues = 1 << 28

// Model holds k orthonormal principal-component rows. It is immutable after Fit.
type Model struct {
	k          int
	dim        int
	components []float32 // k x dim, row-major
}

// Fit learns the top k principal components of m.
func Fit(ctx context.Context, m *matrix.Matrix, k int) (*Model, error) {
	if m.Empty() || m.Cols == 0 {
		return nil, ErrEmptyMatrix
	}
	if limit := min(m.Rows, m.Cols); k < 1 || k > limit {
		return nil, &ErrInvalidComponents{Requested: k, Max: limit}
	}

	g, err := gram(ctx, m)
	if err != nil {
		return nil, err
	}
	sigma, v, err := svd(ctx, g)
	if err != nil {
		return nil, err
	}

	return &Model{
		k:          k,
		dim:        m.Cols,
		components: topComponents(sigma, v, k),
	}, nil
}

// New constructs a model from explicit component rows (k x dim, row-major).
func New(k, dim int, components []float32) (*Model, error) {
	if k < 1 || dim < 1 {
		return nil, &ErrInvalidComponents{Requested: k, Max: dim}
	}
	if len(components) != k*dim {
		return nil, fmt.Errorf("reducer: expected %d component values, got %d", k*dim, len(components))
	}
	c := make([]float32, len(components))
	copy(c, components)
	return &Model{k: k, dim: dim, components: c}, nil
}

// Components returns the number of principal components.
func (m *Model) Components() int { return m.k }

// Dimension returns the input width.
func (m *Model) Dimension() int { return m.dim }

// Component returns a copy of component row i.
func (m *Model) Component(i int) []float32 {
	out := make([]float32, m.dim)
	copy(out, m.components[i*m.dim:(i+1)*m.dim])
	return out
}

func (m *Model) component(i int) []float32 {
	return m.components[i*m.dim : (i+1)*m.dim]
}

// project computes dot(x, c) in float64. Every path uses it.
func project(x, c []float32) float32 {
	var sum float64
	for i := range x {
		sum += float64(x[i]) * float64(c[i])
	}
	return float32(sum)
}

// removeRow subtracts the reconstruction of x from x. factor is scratch of length k.
func (m *Model) removeRow(x, factor []float32) {
	for j := 0; j < m.k; j++ {
		factor[j] = project(x, m.component(j))
	}
	for j := 0; j < m.k; j++ {
		f := factor[j]
		c := m.component(j)
		for i := range x {
			x[i] -= f * c[i]
		}
	}
}

// Apply removes the principal components from every row of x in place.
func (m *Model) Apply(x *matrix.Matrix) error {
	if x.Empty() {
		return nil
	}
	if x.Cols != m.dim {
		return &ErrDimensionMismatch{Expected: m.dim, Actual: x.Cols}
	}

	if m.k == 1 {
		// Outer product: all factors first, then x -= factor * pc.
		pc := m.component(0)
		factor := make([]float32, x.Rows)
		for r := 0; r < x.Rows; r++ {
			factor[r] = project(x.Row(r), pc)
		}
		for r := 0; r < x.Rows; r++ {
			row, f := x.Row(r), factor[r]
			for i := range row {
				row[i] -= f * pc[i]
			}
		}
		return nil
	}

	// Row-wise to bound scratch memory to k floats.
	factor := make([]float32, m.k)
	for r := 0; r < x.Rows; r++ {
		m.removeRow(x.Row(r), factor)
	}
	return nil
}

// ApplyVector removes the principal components from a single vector in place.
func (m *Model) ApplyVector(v []float32) error {
	if len(v) != m.dim {
		return &ErrDimensionMismatch{Expected: m.dim, Actual: len(v)}
	}
	m.removeRow(v, make([]float32, m.k))
	return nil
}

// WriteTo serializes the model.
// Layout: [k u32][dim u32][components f32 * k*dim].
func (m *Model) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := persistence.NewWriter(cw, persistence.MagicReducer)
	bw.Uint32(uint32(m.k))
	bw.Uint32(uint32(m.dim))
	bw.Float32s(m.components)
	err := bw.Close()
	return cw.n, err
}

// Read deserializes a model written by WriteTo.
func Read(r io.Reader) (*Model, error) {
	br, err := persistence.NewReader(r, persistence.MagicReducer)
	if err != nil {
		return nil, err
	}
	k := int(br.Uint32())
	dim := int(br.Uint32())
	if br.Err() == nil && (k < 1 || dim < 1 || k > dim || k*dim > maxValues) {
		br.Fail(&persistence.ErrCorrupt{Reason: fmt.Sprintf("reducer shape %dx%d", k, dim)})
	}
	var components []float32
	if br.Err() == nil {
		components = make([]float32, k*dim)
		br.Float32sInto(components)
	}
	if err := br.Close(); err != nil {
		return nil, err
	}
	return &Model{k: k, dim: dim, components: components}, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *Model) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *Model) UnmarshalBinary(data []byte) error {
	out, err := Read(bytes.NewReader(data))
	if err != nil {
		return err
	}
	*m = *out
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

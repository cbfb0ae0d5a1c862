package quantization

import (
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/sentvec/matrix"
	"github.com/hupe1980/sentvec/persistence"
)

// ScalarQuantizer implements 8-bit scalar quantization with per-dimension
// min/max bounds, which gives noticeably better recall than a global range.
type ScalarQuantizer struct {
	dimension int
	mins      []float32
	maxs      []float32
	scales    []float32 // 255 / (max - min)
	invScales []float32 // (max - min) / 255
	trained   bool
}

// NewScalarQuantizer creates an untrained quantizer for dimension-wide vectors.
func NewScalarQuantizer(dimension int) *ScalarQuantizer {
	return &ScalarQuantizer{dimension: dimension}
}

// Dimension returns the vector width.
func (sq *ScalarQuantizer) Dimension() int { return sq.dimension }

// Trained reports whether bounds are set.
func (sq *ScalarQuantizer) Trained() bool { return sq.trained }

// Mins returns the per-dimension minimum values.
func (sq *ScalarQuantizer) Mins() []float32 { return sq.mins }

// Maxs returns the per-dimension maximum values.
func (sq *ScalarQuantizer) Maxs() []float32 { return sq.maxs }

// Train calibrates the per-dimension bounds on the rows of m.
func (sq *ScalarQuantizer) Train(m *matrix.Matrix) error {
	if m.Empty() {
		return errors.New("quantization: no vectors provided for training")
	}
	if m.Cols != sq.dimension {
		return fmt.Errorf("quantization: dimension mismatch: expected %d, got %d", sq.dimension, m.Cols)
	}

	mins := make([]float32, sq.dimension)
	maxs := make([]float32, sq.dimension)
	for i := range mins {
		mins[i] = math.MaxFloat32
		maxs[i] = -math.MaxFloat32
	}
	for r := 0; r < m.Rows; r++ {
		for i, v := range m.Row(r) {
			mins[i] = min(mins[i], v)
			maxs[i] = max(maxs[i], v)
		}
	}
	return sq.SetBounds(mins, maxs)
}

// SetBounds initializes the quantizer with pre-computed bounds.
func (sq *ScalarQuantizer) SetBounds(mins, maxs []float32) error {
	if len(mins) != sq.dimension || len(maxs) != sq.dimension {
		return errors.New("quantization: bounds dimension mismatch")
	}
	sq.mins = append([]float32(nil), mins...)
	sq.maxs = append([]float32(nil), maxs...)
	sq.scales = make([]float32, sq.dimension)
	sq.invScales = make([]float32, sq.dimension)

	for i := range sq.dimension {
		diff := sq.maxs[i] - sq.mins[i]
		if diff < 1e-9 {
			continue
		}
		sq.scales[i] = 255.0 / diff
		sq.invScales[i] = diff / 255.0
	}
	sq.trained = true
	return nil
}

// Encode quantizes v into dst (allocated when too small) and returns it.
func (sq *ScalarQuantizer) Encode(v []float32, dst []byte) []byte {
	if cap(dst) < sq.dimension {
		dst = make([]byte, sq.dimension)
	}
	dst = dst[:sq.dimension]
	for i, val := range v {
		val = min(max(val, sq.mins[i]), sq.maxs[i])
		dst[i] = uint8((val-sq.mins[i])*sq.scales[i] + 0.5)
	}
	return dst
}

// Decode reconstructs a vector from code into dst (allocated when too small).
func (sq *ScalarQuantizer) Decode(code []byte, dst []float32) []float32 {
	if cap(dst) < sq.dimension {
		dst = make([]float32, sq.dimension)
	}
	dst = dst[:sq.dimension]
	for i, c := range code {
		dst[i] = sq.mins[i] + float32(c)*sq.invScales[i]
	}
	return dst
}

// Dot computes the dot product between a float32 query and a quantized vector.
func (sq *ScalarQuantizer) Dot(q []float32, code []byte) float32 {
	var dot float32
	for i, c := range code {
		dot += q[i] * (sq.mins[i] + float32(c)*sq.invScales[i])
	}
	return dot
}

// BytesPerDimension returns 1 (uint8 storage).
func (sq *ScalarQuantizer) BytesPerDimension() int { return 1 }

// QuantizationError estimates the maximum per-dimension reconstruction error.
func (sq *ScalarQuantizer) QuantizationError() float32 {
	var worst float32
	for i := range sq.invScales {
		worst = max(worst, sq.invScales[i]/2)
	}
	return worst
}

// Write emits the quantizer bounds into an artifact body.
func (sq *ScalarQuantizer) Write(w *persistence.Writer) {
	w.Uint32(uint32(sq.dimension))
	w.Float32s(sq.mins)
	w.Float32s(sq.maxs)
}

// ReadScalarQuantizer reads bounds written by Write.
func ReadScalarQuantizer(r *persistence.Reader, dimension int) (*ScalarQuantizer, error) {
	dim := int(r.Uint32())
	if err := r.Err(); err != nil {
		return nil, err
	}
	if dim != dimension {
		return nil, &persistence.ErrCorrupt{Reason: fmt.Sprintf("quantizer dimension %d, expected %d", dim, dimension)}
	}
	mins := make([]float32, dim)
	maxs := make([]float32, dim)
	r.Float32sInto(mins)
	r.Float32sInto(maxs)
	if err := r.Err(); err != nil {
		return nil, err
	}
	sq := NewScalarQuantizer(dim)
	if err := sq.SetBounds(mins, maxs); err != nil {
		return nil, err
	}
	return sq, nil
}

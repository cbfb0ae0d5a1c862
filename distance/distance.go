package distance

import (
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/sentvec/matrix"
)

// ErrDegenerateVector is returned when a zero-norm vector is normalized.
var ErrDegenerateVector = errors.New("degenerate vector: zero L2 norm")

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Norm returns the L2 norm of v, accumulated in float64.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero (or non-finite) L2 norm; v is left untouched in that case.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm := Norm(v)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return false
	}
	inv := 1 / norm
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return true
}

// Normalize rescales v to unit L2 norm in place.
func Normalize(v []float32) error {
	if !NormalizeL2InPlace(v) {
		return ErrDegenerateVector
	}
	return nil
}

// RowError reports the first degenerate row met by NormalizeRows.
type RowError struct {
	Row int
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, ErrDegenerateVector)
}

func (e *RowError) Unwrap() error { return ErrDegenerateVector }

// NormalizeRows rescales every row of m to unit L2 norm in place.
// On a degenerate row it returns *RowError; rows before it are already normalized.
func NormalizeRows(m *matrix.Matrix) error {
	for i := range m.Rows {
		if !NormalizeL2InPlace(m.Row(i)) {
			return &RowError{Row: i}
		}
	}
	return nil
}

// Metric represents the similarity used for vector comparison.
type Metric int

const (
	MetricL2 Metric = iota
	MetricDot
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "L2"
	case MetricDot:
		return "Dot"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

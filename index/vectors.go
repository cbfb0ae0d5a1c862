package index

import (
	"fmt"

	"github.com/hupe1980/sentvec/distance"
	"github.com/hupe1980/sentvec/persistence"
	"github.com/hupe1980/sentvec/quantization"
)

// Vectors is append-only vector storage, either raw float32 or SQ8 codes.
type Vectors struct {
	dim   int
	n     int
	data  []float32
	codes []byte
	sq    *quantization.ScalarQuantizer
}

// NewVectors creates storage for dim-wide vectors.
// A non-nil sq switches the storage to 8-bit codes and must be trained.
func NewVectors(dim int, sq *quantization.ScalarQuantizer) (*Vectors, error) {
	if sq != nil && !sq.Trained() {
		return nil, ErrNotTrained
	}
	return &Vectors{dim: dim, sq: sq}, nil
}

// Len returns the number of stored vectors.
func (v *Vectors) Len() int { return v.n }

// Append stores x.
func (v *Vectors) Append(x []float32) {
	if v.sq == nil {
		v.data = append(v.data, x...)
		v.n++
		return
	}
	start := len(v.codes)
	v.codes = append(v.codes, make([]byte, v.dim)...)
	v.sq.Encode(x, v.codes[start:])
	v.n++
}

// Dot returns the inner product of q and the i-th vector.
func (v *Vectors) Dot(q []float32, i int) float32 {
	if v.sq == nil {
		return distance.Dot(q, v.data[i*v.dim:(i+1)*v.dim])
	}
	return v.sq.Dot(q, v.codes[i*v.dim:(i+1)*v.dim])
}

// Write emits the count followed by the payload.
func (v *Vectors) Write(w *persistence.Writer) {
	w.Uint64(uint64(v.n))
	if v.sq == nil {
		w.Float32s(v.data)
		return
	}
	w.Bytes(v.codes)
}

// ReadVectors reads storage written by Write. sq must match the writer's.
func ReadVectors(r *persistence.Reader, dim int, sq *quantization.ScalarQuantizer) (*Vectors, error) {
	n := r.Uint64()
	if err := r.Err(); err != nil {
		return nil, err
	}
	if n*uint64(dim) > maxElements {
		return nil, &persistence.ErrCorrupt{Reason: "vector count too large"}
	}

	v := &Vectors{dim: dim, n: int(n), sq: sq}
	if sq == nil {
		v.data = make([]float32, int(n)*dim)
		r.Float32sInto(v.data)
	} else {
		v.codes = r.Bytes(n * uint64(dim))
		if r.Err() == nil && len(v.codes) != int(n)*dim {
			r.Fail(&persistence.ErrCorrupt{Reason: fmt.Sprintf("%d code bytes, expected %d", len(v.codes), int(n)*dim)})
		}
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return v, nil
}

// UnitBounds returns per-dimension SQ8 bounds of [-1, 1].
func UnitBounds(dim int) ([]float32, []float32) {
	mins := make([]float32, dim)
	maxs := make([]float32, dim)
	for i := range mins {
		mins[i], maxs[i] = -1, 1
	}
	return mins, maxs
}

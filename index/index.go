package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/sentvec/matrix"
	"github.com/hupe1980/sentvec/model"
	"github.com/hupe1980/sentvec/persistence"
)

var (
	// ErrNotTrained is returned when vectors are added to an untrained index.
	ErrNotTrained = errors.New("index not trained")

	// ErrUnknownKind is returned for an unregistered index kind.
	ErrUnknownKind = errors.New("unknown index kind")

	// ErrLengthMismatch is returned when ids and vectors differ in count.
	ErrLengthMismatch = errors.New("ids and vectors differ in length")
)

// ErrDimensionMismatch is a named error type for dimension mismatch
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrDuplicateID is returned when an id is already stored or repeats in a batch.
type ErrDuplicateID struct {
	ID model.ID
}

func (e *ErrDuplicateID) Error() string {
	return fmt.Sprintf("duplicate id %d", e.ID)
}

// Kind identifies an index structure.
type Kind uint8

const (
	KindFlat Kind = 1
	KindIVF  Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindFlat:
		return "Flat"
	case KindIVF:
		return "IVF"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// DefaultThreshold is the corpus size at which IVF replaces Flat.
const DefaultThreshold = 5000

// SelectKind chooses the structure for a corpus of n vectors.
// A non-positive threshold falls back to DefaultThreshold.
func SelectKind(n, threshold int) Kind {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if n < threshold {
		return KindFlat
	}
	return KindIVF
}

// Options contains configuration shared by all index structures.
type Options struct {
	// Dimension is the fixed vector width. It must be > 0.
	Dimension int

	// Partitions is the number of IVF centroids.
	Partitions int

	// NProbe is the number of IVF partitions scanned per query.
	NProbe int

	// Iterations bounds k-means training.
	Iterations int

	// Seed makes training reproducible.
	Seed int64

	// Quantize stores vectors as 8-bit scalar codes.
	Quantize bool
}

// DefaultOptions contains the default index options.
var DefaultOptions = Options{
	Partitions: 100,
	NProbe:     6,
	Iterations: 25,
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.Dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", o.Dimension)
	}
	if o.Partitions <= 0 {
		return fmt.Errorf("invalid partitions %d", o.Partitions)
	}
	if o.NProbe <= 0 {
		return fmt.Errorf("invalid nprobe %d", o.NProbe)
	}
	if o.Iterations <= 0 {
		return fmt.Errorf("invalid iterations %d", o.Iterations)
	}
	return nil
}

// Index is an inner-product search structure over unit-length vectors keyed by id.
type Index interface {
	// Kind returns the structure kind.
	Kind() Kind

	// Dimension returns the vector width.
	Dimension() int

	// Len returns the number of stored vectors.
	Len() int

	// Trained reports whether Add may be called.
	Trained() bool

	// Train fits the structure to a sample. It is a no-op for structures that need no training.
	Train(ctx context.Context, m *matrix.Matrix) error

	// Add stores the rows of m under ids. Either every row is stored or none.
	Add(ctx context.Context, ids []model.ID, m *matrix.Matrix) error

	// Search returns up to k results ordered by descending score, ties by ascending id.
	Search(ctx context.Context, q []float32, k int) ([]model.Result, error)

	// Contains reports whether id is stored.
	Contains(id model.ID) bool

	// WriteBody serializes the structure-specific state.
	WriteBody(w *persistence.Writer)
}

// CheckBatch validates an Add batch against the index dimension.
func CheckBatch(dim int, ids []model.ID, m *matrix.Matrix) error {
	if len(ids) != m.Rows {
		return fmt.Errorf("%w: %d ids, %d vectors", ErrLengthMismatch, len(ids), m.Rows)
	}
	if m.Rows > 0 && m.Cols != dim {
		return &ErrDimensionMismatch{Expected: dim, Actual: m.Cols}
	}
	return nil
}
